package session

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/ashureev/voicecall/internal/domain"
)

// tracker indexes the sessions that are currently running.
type tracker struct {
	mu     sync.RWMutex
	active map[string]*call
}

func newTracker() *tracker {
	return &tracker{active: make(map[string]*call)}
}

func (t *tracker) get(id string) *call {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active[id]
}

func (t *tracker) register(c *call) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[c.id] = c
	slog.Info("Call session registered", "session_id", c.id)
}

func (t *tracker) unregister(c *call) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if current, ok := t.active[c.id]; ok && current == c {
		delete(t.active, c.id)
		slog.Info("Call session unregistered", "session_id", c.id)
	}
}

func (t *tracker) snapshots() []domain.CallSession {
	t.mu.RLock()
	out := make([]domain.CallSession, 0, len(t.active))
	for _, c := range t.active {
		out = append(out, c.snapshot())
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
