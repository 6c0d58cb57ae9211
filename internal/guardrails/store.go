// Package guardrails holds the operator-supplied instruction pairs that are
// rendered into the system instruction of every new call session.
package guardrails

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ashureev/voicecall/internal/apperr"
	"github.com/ashureev/voicecall/internal/domain"
)

// Store is an ordered, mutex-guarded list of guardrails. The lock is held only
// for in-memory work and every read copies out.
type Store struct {
	mu      sync.Mutex
	entries []domain.Guardrail
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// ReplaceAll validates every entry and, only if all are valid, replaces the
// whole list. Questions and answers are stored trimmed.
func (s *Store) ReplaceAll(entries []domain.Guardrail) (int, error) {
	if len(entries) == 0 {
		return 0, apperr.NewValidation("At least one guardrail (question-answer pair) is required")
	}

	validated := make([]domain.Guardrail, 0, len(entries))
	for i, g := range entries {
		q := strings.TrimSpace(g.Question)
		a := strings.TrimSpace(g.Answer)
		if q == "" {
			return 0, apperr.NewValidationAt(i, fmt.Sprintf("Guardrail at index %d has an empty question", i))
		}
		if a == "" {
			return 0, apperr.NewValidationAt(i, fmt.Sprintf("Guardrail at index %d has an empty answer", i))
		}
		validated = append(validated, domain.Guardrail{Question: q, Answer: a})
	}

	s.mu.Lock()
	s.entries = validated
	s.mu.Unlock()

	return len(validated), nil
}

// List returns a snapshot of the guardrails with their positional indices.
func (s *Store) List() []domain.IndexedGuardrail {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.IndexedGuardrail, len(s.entries))
	for i, g := range s.entries {
		out[i] = domain.IndexedGuardrail{Index: i, Question: g.Question, Answer: g.Answer}
	}
	return out
}

// Len returns the number of stored guardrails.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// DeleteByIndex removes the guardrail at position i. Later entries shift down.
func (s *Store) DeleteByIndex(i int) (domain.Guardrail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	if i < 0 || i >= n {
		maxIndex := 0
		if n > 0 {
			maxIndex = n - 1
		}
		return domain.Guardrail{}, apperr.NewNotFound(fmt.Sprintf(
			"Guardrail at index %d not found. There are %d guardrail(s) (indices 0-%d).", i, n, maxIndex))
	}

	return s.removeLocked(i), nil
}

// DeleteByQuestion removes the first guardrail whose question matches text.
// An exact case-insensitive match is tried first, then substring containment
// in either direction. It returns the index the entry held before removal.
func (s *Store) DeleteByQuestion(text string) (int, domain.Guardrail, error) {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return -1, domain.Guardrail{}, apperr.NewValidation("Question cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, g := range s.entries {
		if strings.ToLower(strings.TrimSpace(g.Question)) == needle {
			return i, s.removeLocked(i), nil
		}
	}
	for i, g := range s.entries {
		q := strings.ToLower(strings.TrimSpace(g.Question))
		if strings.Contains(q, needle) || strings.Contains(needle, q) {
			return i, s.removeLocked(i), nil
		}
	}

	return -1, domain.Guardrail{}, apperr.NewNotFound(fmt.Sprintf(
		"No guardrail found matching question: '%s'. Use GET /guardrails to see all available guardrails.", text))
}

// Clear removes every guardrail and returns how many were removed.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	s.entries = nil
	return n
}

func (s *Store) removeLocked(i int) domain.Guardrail {
	removed := s.entries[i]
	s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
	return removed
}
