package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/voicecall/internal/apperr"
	"github.com/ashureev/voicecall/internal/tools"
)

// ToolDispatcher runs tool calls.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, name string, args json.RawMessage) tools.Invocation
	Names() []string
}

// ToolHandler exposes the tool calls over plain HTTP. The response body is
// the same payload the conversation engine receives.
type ToolHandler struct {
	tools ToolDispatcher
}

// NewToolHandler creates a tool handler.
func NewToolHandler(d ToolDispatcher) *ToolHandler {
	return &ToolHandler{tools: d}
}

// RegisterRoutes registers the tool routes.
func (h *ToolHandler) RegisterRoutes(r chi.Router) {
	r.Route("/tools", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/{name}", h.Call)
	})
}

// List returns the registered tool names.
func (h *ToolHandler) List(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{"tools": h.tools.Names()})
}

// Call runs one tool with the request body as its arguments. Tool failures
// are absorbed into the payload; only an unknown tool or unreadable body is
// reported as an HTTP error.
func (h *ToolHandler) Call(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !slices.Contains(h.tools.Names(), name) {
		writeError(w, r, apperr.NewNotFound(fmt.Sprintf("Unknown tool: %s", name)))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, apperr.NewValidation("Request body too large"))
		return
	}
	if len(body) > 0 && !json.Valid(body) {
		writeError(w, r, apperr.NewValidation("Request body must be a JSON object"))
		return
	}

	inv := h.tools.Dispatch(r.Context(), name, body)
	w.Header().Set("X-Invocation-Id", inv.ID)
	JSON(w, http.StatusOK, inv.Payload)
}
