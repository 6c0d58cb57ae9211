package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/voicecall/internal/apperr"
	"github.com/ashureev/voicecall/internal/domain"
	"github.com/ashureev/voicecall/internal/guardrails"
	"github.com/ashureev/voicecall/internal/metrics"
)

// GuardrailHandler manages the operator guardrails.
type GuardrailHandler struct {
	store   *guardrails.Store
	metrics *metrics.Metrics
}

// NewGuardrailHandler creates a guardrail handler. m may be nil.
func NewGuardrailHandler(store *guardrails.Store, m *metrics.Metrics) *GuardrailHandler {
	return &GuardrailHandler{store: store, metrics: m}
}

type uploadGuardrailsRequest struct {
	Guardrails []domain.Guardrail `json:"guardrails" validate:"required"`
}

type deleteByQuestionRequest struct {
	Question string `json:"question" validate:"required"`
}

// RegisterRoutes registers the guardrail routes.
func (h *GuardrailHandler) RegisterRoutes(r chi.Router) {
	r.Post("/upload-guardrails", h.Upload)
	r.Route("/guardrails", func(r chi.Router) {
		r.Get("/", h.List)
		r.Delete("/", h.Clear)
		r.Post("/delete", h.DeleteByQuestion)
		r.Delete("/{index}", h.DeleteByIndex)
	})
}

// Upload replaces the whole guardrail list.
func (h *GuardrailHandler) Upload(w http.ResponseWriter, r *http.Request) {
	var req uploadGuardrailsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	n, err := h.store.ReplaceAll(req.Guardrails)
	if err != nil {
		slog.Warn("Rejected guardrail upload", "error", err)
		writeError(w, r, err)
		return
	}
	h.metrics.SetGuardrails(n)
	slog.Info("Guardrails uploaded", "count", n)

	JSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("Successfully uploaded %d guardrail(s)", n),
		"count":   n,
	})
}

// List returns the guardrails with their current indices.
func (h *GuardrailHandler) List(w http.ResponseWriter, _ *http.Request) {
	list := h.store.List()
	JSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"guardrails": list,
		"count":      len(list),
	})
}

// DeleteByIndex removes the guardrail at the index in the path.
func (h *GuardrailHandler) DeleteByIndex(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "index")
	index, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, r, apperr.NewNotFound(fmt.Sprintf("Guardrail at index %s not found", raw)))
		return
	}

	removed, err := h.store.DeleteByIndex(index)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.metrics.SetGuardrails(h.store.Len())
	slog.Info("Guardrail deleted", "index", index)

	JSON(w, http.StatusOK, map[string]any{
		"status":            "success",
		"message":           fmt.Sprintf("Successfully deleted guardrail at index %d", index),
		"deleted_guardrail": removed,
	})
}

// DeleteByQuestion removes the first guardrail matching the question text.
func (h *GuardrailHandler) DeleteByQuestion(w http.ResponseWriter, r *http.Request) {
	var req deleteByQuestionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	index, removed, err := h.store.DeleteByQuestion(req.Question)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.metrics.SetGuardrails(h.store.Len())
	slog.Info("Guardrail deleted", "index", index, "by", "question")

	JSON(w, http.StatusOK, map[string]any{
		"status":            "success",
		"message":           "Successfully deleted guardrail matching question",
		"deleted_guardrail": removed,
		"deleted_index":     index,
	})
}

// Clear removes every guardrail.
func (h *GuardrailHandler) Clear(w http.ResponseWriter, _ *http.Request) {
	n := h.store.Clear()
	h.metrics.SetGuardrails(0)
	slog.Info("Guardrails cleared", "count", n)

	JSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": fmt.Sprintf("Cleared %d guardrail(s)", n),
	})
}
