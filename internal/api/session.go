package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/voicecall/internal/apperr"
	"github.com/ashureev/voicecall/internal/domain"
	"github.com/ashureev/voicecall/internal/session"
	"github.com/ashureev/voicecall/internal/store"
)

const (
	defaultSessionListLimit = 50
	maxSessionListLimit     = 500
)

// SessionStarter starts call sessions and reports the live ones.
type SessionStarter interface {
	Start(ctx context.Context) (session.StartResult, error)
	Active() []domain.CallSession
	Get(id string) (domain.CallSession, bool)
}

// SessionHandler serves /start and the call log.
type SessionHandler struct {
	sessions SessionStarter
	repo     store.Repository
	limit    func(http.Handler) http.Handler
}

// NewSessionHandler creates a session handler. limit, when non-nil, wraps
// POST /start.
func NewSessionHandler(sessions SessionStarter, repo store.Repository, limit func(http.Handler) http.Handler) *SessionHandler {
	return &SessionHandler{sessions: sessions, repo: repo, limit: limit}
}

type startResponse struct {
	RoomURL string `json:"room_url"`
	Token   string `json:"token"`
}

// RegisterRoutes registers the session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.limit != nil {
			r.Use(h.limit)
		}
		r.Post("/start", h.Start)
	})
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/active", h.ListActive)
		r.Get("/{id}", h.Get)
	})
}

// Start provisions a room and starts a bot session in it. Any failure is a 500.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	res, err := h.sessions.Start(r.Context())
	if err != nil {
		slog.Error("Failed to start session", "error", err)
		Error(w, http.StatusInternalServerError, apperr.MessageOf(err))
		return
	}
	JSON(w, http.StatusOK, startResponse{RoomURL: res.RoomURL, Token: res.Token})
}

// List returns the most recent calls from the call log.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultSessionListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, apperr.NewValidation("limit must be a positive integer"))
			return
		}
		limit = min(n, maxSessionListLimit)
	}

	calls, err := h.repo.ListCalls(r.Context(), limit)
	if err != nil {
		writeError(w, r, apperr.NewUnavailable("call log unavailable", err))
		return
	}
	if calls == nil {
		calls = []*domain.CallSession{}
	}
	JSON(w, http.StatusOK, map[string]any{"sessions": calls, "count": len(calls)})
}

// ListActive returns the sessions running in this process.
func (h *SessionHandler) ListActive(w http.ResponseWriter, _ *http.Request) {
	active := h.sessions.Active()
	if active == nil {
		active = []domain.CallSession{}
	}
	JSON(w, http.StatusOK, map[string]any{"sessions": active, "count": len(active)})
}

// Get returns one session, preferring the live view over the call log.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if live, ok := h.sessions.Get(id); ok {
		JSON(w, http.StatusOK, live)
		return
	}

	call, err := h.repo.GetCall(r.Context(), id)
	if err != nil {
		writeError(w, r, apperr.NewUnavailable("call log unavailable", err))
		return
	}
	if call == nil {
		writeError(w, r, apperr.NewNotFound("session not found"))
		return
	}
	JSON(w, http.StatusOK, call)
}
