package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordToolCall("get_career_paths", "ok", time.Millisecond)
	m.SessionStarted()
	m.SessionEnded("completed")
	m.SessionFailed()
	m.RecordTranscriptForward("ok")
	m.RecordDirectoryLookup("found")
	m.SetGuardrails(3)
}

func TestRecordToolCall(t *testing.T) {
	m := New("test")
	m.RecordToolCall("get_detailed_information", "error", 30*time.Second)
	m.RecordToolCall("get_detailed_information", "error", time.Second)
	m.RecordToolCall("get_detailed_information", "ok", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("get_detailed_information", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues("get_detailed_information", "ok")))
}

func TestSessionGauge(t *testing.T) {
	m := New("test")
	m.SessionStarted()
	m.SessionStarted()
	m.SessionEnded("completed")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsTotal.WithLabelValues("completed")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New("voicecall")
	m.SetGuardrails(4)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "voicecall_guardrails 4")
}
