package guardrails

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/voicecall/internal/apperr"
	"github.com/ashureev/voicecall/internal/domain"
)

func seed(t *testing.T, s *Store, pairs ...string) {
	t.Helper()
	var entries []domain.Guardrail
	for i := 0; i+1 < len(pairs); i += 2 {
		entries = append(entries, domain.Guardrail{Question: pairs[i], Answer: pairs[i+1]})
	}
	_, err := s.ReplaceAll(entries)
	require.NoError(t, err)
}

func TestReplaceAll_TrimsAndReplaces(t *testing.T) {
	s := NewStore()
	seed(t, s, "old?", "old answer")

	n, err := s.ReplaceAll([]domain.Guardrail{
		{Question: "  What is the fee?  ", Answer: " Two lakh per year. "},
		{Question: "Is there a hostel?", Answer: "Yes."},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got := s.List()
	require.Len(t, got, 2)
	assert.Equal(t, domain.IndexedGuardrail{Index: 0, Question: "What is the fee?", Answer: "Two lakh per year."}, got[0])
	assert.Equal(t, 1, got[1].Index)
}

func TestReplaceAll_RejectsBatchAtomically(t *testing.T) {
	s := NewStore()
	seed(t, s, "keep me?", "kept")
	before := s.List()

	_, err := s.ReplaceAll([]domain.Guardrail{
		{Question: "valid?", Answer: "valid"},
		{Question: "also valid?", Answer: "   "},
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
	assert.Equal(t, "Guardrail at index 1 has an empty answer", apperr.MessageOf(err))
	assert.Equal(t, before, s.List())

	_, err = s.ReplaceAll([]domain.Guardrail{{Question: "", Answer: "x"}})
	assert.Equal(t, "Guardrail at index 0 has an empty question", apperr.MessageOf(err))

	_, err = s.ReplaceAll(nil)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
	assert.Equal(t, before, s.List())
}

func TestDeleteByIndex_CompactsIndices(t *testing.T) {
	s := NewStore()
	seed(t, s, "q0", "a0", "q1", "a1", "q2", "a2")

	removed, err := s.DeleteByIndex(1)
	require.NoError(t, err)
	assert.Equal(t, "q1", removed.Question)

	got := s.List()
	require.Len(t, got, 2)
	for i, g := range got {
		assert.Equal(t, i, g.Index)
	}
	assert.Equal(t, "q2", got[1].Question)
}

func TestDeleteByIndex_OutOfRange(t *testing.T) {
	s := NewStore()
	seed(t, s, "q0", "a0", "q1", "a1")

	for _, i := range []int{-1, 2, 99} {
		_, err := s.DeleteByIndex(i)
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	}
	_, err := s.DeleteByIndex(5)
	assert.Equal(t, "Guardrail at index 5 not found. There are 2 guardrail(s) (indices 0-1).", apperr.MessageOf(err))

	empty := NewStore()
	_, err = empty.DeleteByIndex(0)
	assert.Equal(t, "Guardrail at index 0 not found. There are 0 guardrail(s) (indices 0-0).", apperr.MessageOf(err))
}

func TestDeleteByQuestion_ExactPassWins(t *testing.T) {
	s := NewStore()
	seed(t, s,
		"what is your fee structure for hostels?", "substring candidate",
		"what is your fee?", "exact candidate",
	)

	idx, removed, err := s.DeleteByQuestion("What IS your fee?")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "exact candidate", removed.Answer)
	assert.Equal(t, 1, s.Len())
}

func TestDeleteByQuestion_SubstringEitherDirection(t *testing.T) {
	s := NewStore()
	seed(t, s, "How do I apply?", "online", "Is there a hostel for girls?", "yes")

	idx, removed, err := s.DeleteByQuestion("hostel")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "yes", removed.Answer)

	idx, _, err = s.DeleteByQuestion("Please tell me: how do i apply? thanks")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 0, s.Len())
}

func TestDeleteByQuestion_Errors(t *testing.T) {
	s := NewStore()
	seed(t, s, "q", "a")

	_, _, err := s.DeleteByQuestion("   ")
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, _, err = s.DeleteByQuestion("scholarships")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
	assert.Contains(t, apperr.MessageOf(err), "No guardrail found matching question: 'scholarships'")
	assert.Equal(t, 1, s.Len())
}

func TestClear(t *testing.T) {
	s := NewStore()
	seed(t, s, "q0", "a0", "q1", "a1")

	assert.Equal(t, 2, s.Clear())
	assert.Empty(t, s.List())
	assert.Equal(t, 0, s.Clear())
}

func TestConcurrentReplaceAndList(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				batch := make([]domain.Guardrail, 1+i%5)
				for j := range batch {
					batch[j] = domain.Guardrail{
						Question: fmt.Sprintf("q-%d-%d-%d", w, i, j),
						Answer:   fmt.Sprintf("a-%d-%d-%d", w, i, j),
					}
				}
				_, _ = s.ReplaceAll(batch)
				if i%7 == 0 {
					_, _ = s.DeleteByIndex(0)
				}
			}
		}(w)
	}

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				snapshot := s.List()
				for idx, g := range snapshot {
					if g.Index != idx || g.Question == "" || g.Answer == "" {
						t.Errorf("observed partial list entry %+v at %d", g, idx)
						return
					}
				}
			}
		}()
	}

	wg.Wait()
}

func TestRender(t *testing.T) {
	s := NewStore()
	assert.Equal(t, "", s.Render())

	seed(t, s, "What is the fee?", "Say it depends on the branch.", "Hostel?", "Yes, on campus.")
	out := s.Render()

	assert.True(t, strings.HasPrefix(out, "\n\n# CUSTOM INSTRUCTIONS AND GUARDRAILS\n\n"))
	assert.True(t, strings.HasSuffix(out, "# END OF CUSTOM INSTRUCTIONS AND GUARDRAILS\n"))
	assert.Contains(t, out, "## Instruction 1\n\n**When asked (or similar to):** What is the fee?\n\n**You should respond like this:** Say it depends on the branch.\n\n")
	assert.Contains(t, out, "## Instruction 2\n\n")
	assert.Less(t, strings.Index(out, "Instruction 1"), strings.Index(out, "Instruction 2"))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`guardrails:
  - question: How do I apply?
    answer: Through the admissions portal.
`), 0o600))
	got, err := LoadFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, []domain.Guardrail{{Question: "How do I apply?", Answer: "Through the admissions portal."}}, got)

	jsonPath := filepath.Join(dir, "seed.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"guardrails":[{"question":"a?","answer":"b"}]}`), 0o600))
	got, err = LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
