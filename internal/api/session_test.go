package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/voicecall/internal/apperr"
	"github.com/ashureev/voicecall/internal/domain"
	"github.com/ashureev/voicecall/internal/middleware"
	"github.com/ashureev/voicecall/internal/session"
	"github.com/ashureev/voicecall/internal/store"
)

type fakeSessions struct {
	mu     sync.Mutex
	result session.StartResult
	err    error
	starts int
	active []domain.CallSession
}

func (f *fakeSessions) Start(context.Context) (session.StartResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return f.result, f.err
}

func (f *fakeSessions) Active() []domain.CallSession { return f.active }

func (f *fakeSessions) Get(id string) (domain.CallSession, bool) {
	for _, s := range f.active {
		if s.ID == id {
			return s, true
		}
	}
	return domain.CallSession{}, false
}

type fakeRepo struct {
	mu      sync.Mutex
	calls   map[string]*domain.CallSession
	order   []string
	err     error
	pingErr error
	limit   int
}

func newFakeRepo(calls ...*domain.CallSession) *fakeRepo {
	f := &fakeRepo{calls: make(map[string]*domain.CallSession)}
	for _, c := range calls {
		f.calls[c.ID] = c
		f.order = append([]string{c.ID}, f.order...)
	}
	return f
}

func (f *fakeRepo) CreateCall(context.Context, *domain.CallSession) error           { return nil }
func (f *fakeRepo) AttachRoom(context.Context, string, string, string) error        { return nil }
func (f *fakeRepo) UpdateCallState(context.Context, string, domain.CallState) error { return nil }
func (f *fakeRepo) EndCall(context.Context, string, store.CallSummary) error        { return nil }
func (f *fakeRepo) DeleteEndedBefore(context.Context, time.Time) (int64, error)     { return 0, nil }
func (f *fakeRepo) Ping(context.Context) error                                      { return f.pingErr }
func (f *fakeRepo) Close() error                                                    { return nil }

func (f *fakeRepo) GetCall(_ context.Context, id string) (*domain.CallSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.calls[id], nil
}

func (f *fakeRepo) ListCalls(_ context.Context, limit int) ([]*domain.CallSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	var out []*domain.CallSession
	for _, id := range f.order {
		if len(out) == limit {
			break
		}
		out = append(out, f.calls[id])
	}
	return out, nil
}

func sessionRouter(sessions SessionStarter, repo store.Repository, limit func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	NewSessionHandler(sessions, repo, limit).RegisterRoutes(r)
	return r
}

func TestStart_ReturnsRoomAndToken(t *testing.T) {
	sessions := &fakeSessions{result: session.StartResult{SessionID: "01J", RoomURL: "https://example.daily.co/r1", Token: "tok"}}
	r := sessionRouter(sessions, newFakeRepo(), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/start", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var body map[string]string
	decodeBody(t, w, &body)
	want := map[string]string{"room_url": "https://example.daily.co/r1", "token": "tok"}
	if len(body) != len(want) || body["room_url"] != want["room_url"] || body["token"] != want["token"] {
		t.Errorf("Expected %v, got %v", want, body)
	}
}

func TestStart_FailureIs500(t *testing.T) {
	for _, err := range []error{
		apperr.NewUpstream("room provisioning failed", nil),
		apperr.NewUnavailable("session manager is shutting down", nil),
	} {
		r := sessionRouter(&fakeSessions{err: err}, newFakeRepo(), nil)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/start", nil))

		if w.Code != http.StatusInternalServerError {
			t.Errorf("%v: expected status 500, got %d", err, w.Code)
		}
		var body map[string]string
		decodeBody(t, w, &body)
		if body["error"] != apperr.MessageOf(err) {
			t.Errorf("Expected error %q, got %q", apperr.MessageOf(err), body["error"])
		}
	}
}

func TestStart_RateLimited(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	limiter := middleware.NewRateLimiter(ctx, 2, time.Minute)
	sessions := &fakeSessions{result: session.StartResult{RoomURL: "u", Token: "t"}}
	r := sessionRouter(sessions, newFakeRepo(), limiter.Middleware)

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i, code := range want {
		req := httptest.NewRequest(http.MethodPost, "/start", nil)
		req.RemoteAddr = "10.0.0.7:5555"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != code {
			t.Errorf("Request %d: expected status %d, got %d", i, code, w.Code)
		}
	}
	if sessions.starts != 2 {
		t.Errorf("Expected 2 starts, got %d", sessions.starts)
	}

	// Other routes are not limited.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/sessions/active", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

type sessionList struct {
	Sessions []domain.CallSession `json:"sessions"`
	Count    int                  `json:"count"`
}

func TestListSessions(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	repo := newFakeRepo(
		&domain.CallSession{ID: "a", State: domain.CallEnded, CreatedAt: now},
		&domain.CallSession{ID: "b", State: domain.CallRunning, CreatedAt: now.Add(time.Minute)},
	)
	r := sessionRouter(&fakeSessions{}, repo, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions?limit=1", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var body sessionList
	decodeBody(t, w, &body)
	if body.Count != 1 || len(body.Sessions) != 1 {
		t.Fatalf("Expected one session, got %+v", body)
	}
	if body.Sessions[0].ID != "b" {
		t.Errorf("Expected newest session b, got %q", body.Sessions[0].ID)
	}
	if repo.limit != 1 {
		t.Errorf("Expected limit 1 passed to repository, got %d", repo.limit)
	}
}

func TestListSessions_BadLimit(t *testing.T) {
	r := sessionRouter(&fakeSessions{}, newFakeRepo(), nil)

	for _, q := range []string{"0", "-3", "ten"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions?limit="+q, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: expected status 400, got %d", q, w.Code)
		}
	}
}

func TestListSessions_StoreDown(t *testing.T) {
	repo := newFakeRepo()
	repo.err = context.DeadlineExceeded
	r := sessionRouter(&fakeSessions{}, repo, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestListActiveSessions_EmptyIsArray(t *testing.T) {
	r := sessionRouter(&fakeSessions{}, newFakeRepo(), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/active", nil))

	if !strings.Contains(w.Body.String(), `"sessions":[]`) {
		t.Errorf("Expected an empty array, got %s", w.Body.String())
	}
	var body sessionList
	decodeBody(t, w, &body)
	if body.Count != 0 {
		t.Errorf("Expected count 0, got %d", body.Count)
	}
}

func TestGetSession_PrefersLiveView(t *testing.T) {
	live := domain.CallSession{ID: "x", State: domain.CallParticipantJoined, Participants: 1}
	repo := newFakeRepo(&domain.CallSession{ID: "x", State: domain.CallRunning})
	r := sessionRouter(&fakeSessions{active: []domain.CallSession{live}}, repo, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/x", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var got domain.CallSession
	decodeBody(t, w, &got)
	if got.State != domain.CallParticipantJoined || got.Participants != 1 {
		t.Errorf("Expected the live view, got %+v", got)
	}
}

func TestGetSession_FromCallLog(t *testing.T) {
	repo := newFakeRepo(&domain.CallSession{ID: "y", State: domain.CallEnded, TranscriptForwarded: true})
	r := sessionRouter(&fakeSessions{}, repo, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/y", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var got domain.CallSession
	decodeBody(t, w, &got)
	if !got.IsEnded() || !got.TranscriptForwarded {
		t.Errorf("Expected the ended call from the log, got %+v", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}
