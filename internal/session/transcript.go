package session

import (
	"strings"
	"sync"

	"github.com/ashureev/voicecall/internal/domain"
)

// Transcript is the session-owned conversation context.
type Transcript struct {
	mu    sync.Mutex
	turns []domain.Turn
}

// Append records one turn.
func (t *Transcript) Append(role domain.Role, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns, domain.Turn{Role: role, Content: content})
}

// Turns returns a copy of the recorded turns.
func (t *Transcript) Turns() []domain.Turn {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Spoken returns the user and assistant turns with content, in order.
func (t *Transcript) Spoken() []domain.Turn {
	var out []domain.Turn
	for _, turn := range t.Turns() {
		if turn.Content == "" {
			continue
		}
		if turn.Role == domain.RoleUser || turn.Role == domain.RoleAssistant {
			out = append(out, turn)
		}
	}
	return out
}

// Render labels each spoken turn with its speaker, one per line.
func (t *Transcript) Render(agent string) string {
	spoken := t.Spoken()
	lines := make([]string, 0, len(spoken))
	for _, turn := range spoken {
		speaker := "User"
		if turn.Role == domain.RoleAssistant {
			speaker = agent + " (Agent)"
		}
		lines = append(lines, speaker+": "+turn.Content)
	}
	return strings.Join(lines, "\n")
}
