package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ashureev/voicecall/internal/apperr"
	"github.com/ashureev/voicecall/internal/domain"
	"github.com/ashureev/voicecall/internal/upstream"
)

type fakeDelivery struct {
	mu    sync.Mutex
	resp  *upstream.DeliveryResponse
	err   error
	calls []upstream.DeliveryRequest
}

func (f *fakeDelivery) Send(_ context.Context, req upstream.DeliveryRequest) (*upstream.DeliveryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.resp, f.err
}

type fakeResolver struct {
	mu     sync.Mutex
	rec    *domain.UserRecord
	err    error
	panics bool
	calls  []domain.NormalizedContact
}

func (f *fakeResolver) Resolve(_ context.Context, c domain.NormalizedContact) (*domain.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if f.panics {
		panic("resolver exploded")
	}
	return f.rec, f.err
}

func newDispatcher(t *testing.T, deps Deps, opts ...Option) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(deps, opts...)
	require.NoError(t, err)
	return d
}

func args(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestDispatcher_RegistersFourTools(t *testing.T) {
	d := newDispatcher(t, Deps{})

	var names []string
	for _, def := range d.Definitions() {
		names = append(names, def.Name)
	}
	assert.Equal(t, []string{
		"get_detailed_information",
		"get_career_paths",
		"get_alumni_info",
		"check_user_exists",
	}, names)
	assert.Equal(t, []string{"query"}, d.Definitions()[0].InputSchema.Required)
	assert.Empty(t, d.Definitions()[3].InputSchema.Required)
}

func TestDetailedInfo_NoContactSkipsUpstream(t *testing.T) {
	delivery := &fakeDelivery{}
	d := newDispatcher(t, Deps{Delivery: delivery})

	inv := d.Dispatch(context.Background(), "get_detailed_information", args(t, map[string]any{"query": "CSE brochure"}))

	assert.Equal(t, StatusIncomplete, inv.Outcome.Status)
	assert.Equal(t, DetailedInfoResult{Summary: msgNeedContact}, inv.Payload)
	assert.Empty(t, delivery.calls)
}

func TestDetailedInfo_NormalizesContact(t *testing.T) {
	delivery := &fakeDelivery{resp: &upstream.DeliveryResponse{
		Status:         "success",
		Summary:        "Here is the CSE brochure.",
		WhatsAppStatus: upstream.ChannelStatus{Status: "success"},
		EmailStatus:    upstream.ChannelStatus{Status: "success"},
	}}
	d := newDispatcher(t, Deps{Delivery: delivery})

	inv := d.Dispatch(context.Background(), "get_detailed_information", args(t, map[string]any{
		"query":        "CSE brochure",
		"phone_number": "+91 84382 32949",
		"email":        " Student@Example.com ",
	}))

	require.Equal(t, StatusOK, inv.Outcome.Status)
	require.Len(t, delivery.calls, 1)
	assert.Equal(t, upstream.DeliveryRequest{
		Query:  "CSE brochure",
		Number: "918438232949",
		Email:  "student@example.com",
	}, delivery.calls[0])
	assert.Equal(t, DetailedInfoResult{
		Summary:      "Here is the CSE brochure.\n\nInformation has been successfully sent via WhatsApp, email.",
		WhatsAppSent: true,
		EmailSent:    true,
	}, inv.Payload)
}

func TestDetailedInfo_DeliveryMessages(t *testing.T) {
	tests := []struct {
		name string
		resp upstream.DeliveryResponse
		want string
	}{
		{
			name: "email only",
			resp: upstream.DeliveryResponse{Status: "success", EmailStatus: upstream.ChannelStatus{Status: "success"}},
			want: "Information has been successfully sent via email.",
		},
		{
			name: "both skipped",
			resp: upstream.DeliveryResponse{
				Status:         "success",
				WhatsAppStatus: upstream.ChannelStatus{Status: "skipped"},
				EmailStatus:    upstream.ChannelStatus{Status: "skipped"},
			},
			want: msgDeliveryBothSkip,
		},
		{
			name: "in progress",
			resp: upstream.DeliveryResponse{Status: "success", WhatsAppStatus: upstream.ChannelStatus{Status: "pending"}},
			want: msgDeliveryPreparing,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := tt.resp
			d := newDispatcher(t, Deps{Delivery: &fakeDelivery{resp: &resp}})

			inv := d.Dispatch(context.Background(), "get_detailed_information", args(t, map[string]any{"query": "q", "email": "a@b.co"}))
			require.Equal(t, StatusOK, inv.Outcome.Status)
			assert.Equal(t, tt.want, inv.Payload.(DetailedInfoResult).Summary)
		})
	}
}

func TestDetailedInfo_UpstreamFailureIsAbsorbed(t *testing.T) {
	tests := []struct {
		name     string
		delivery *fakeDelivery
		wantMsg  string
	}{
		{"transport error", &fakeDelivery{err: apperr.NewUpstream("Server returned status 500", nil)}, "Server returned status 500"},
		{"error status", &fakeDelivery{resp: &upstream.DeliveryResponse{Status: "error", Error: "quota exceeded"}}, "quota exceeded"},
		{"error status without detail", &fakeDelivery{resp: &upstream.DeliveryResponse{Status: "error"}}, msgDeliveryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDispatcher(t, Deps{Delivery: tt.delivery})

			inv := d.Dispatch(context.Background(), "get_detailed_information", args(t, map[string]any{"query": "q", "phone_number": "8438232949"}))

			assert.Equal(t, StatusError, inv.Outcome.Status)
			assert.True(t, apperr.Is(inv.Outcome.Err, apperr.CodeUpstreamFailure))
			assert.Equal(t, tt.wantMsg, apperr.MessageOf(inv.Outcome.Err))
			assert.Equal(t, DetailedInfoResult{Summary: msgDeliveryTrouble}, inv.Payload)
		})
	}
}

func TestDetailedInfo_TimeoutKeepsPayloadShape(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	d := newDispatcher(t, Deps{Delivery: upstream.NewDeliveryClient(srv.URL, 50*time.Millisecond)})
	inv := d.Dispatch(context.Background(), "get_detailed_information", args(t, map[string]any{"query": "q", "phone_number": "8438232949"}))

	assert.Equal(t, StatusError, inv.Outcome.Status)
	assert.Equal(t, "The request took too long to process", apperr.MessageOf(inv.Outcome.Err))

	raw, err := json.Marshal(inv.Payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary":"I'm having trouble processing your request right now. Please try again in a moment.","whatsapp_sent":false,"email_sent":false}`, string(raw))
}

func TestCareerPaths(t *testing.T) {
	d := newDispatcher(t, Deps{})

	inv := d.Dispatch(context.Background(), "get_career_paths", args(t, map[string]any{"branch": "computer science"}))
	require.Equal(t, StatusOK, inv.Outcome.Status)
	res := inv.Payload.(CareerPathsResult)
	assert.Equal(t, "computer science", res.Branch)
	assert.Contains(t, res.CareerPaths, "Software Developer - Build applications and software systems")

	inv = d.Dispatch(context.Background(), "get_career_paths", args(t, map[string]any{"branch": "underwater basket weaving"}))
	assert.Equal(t, StatusOK, inv.Outcome.Status)
	assert.Equal(t, CareerPathsResult{Branch: "underwater basket weaving", CareerPaths: []string{msgNoCareerPaths}}, inv.Payload)

	inv = d.Dispatch(context.Background(), "get_career_paths", args(t, map[string]any{"branch": ""}))
	assert.Equal(t, []string{msgNoCareerPaths}, inv.Payload.(CareerPathsResult).CareerPaths)
}

func TestAlumniInfo(t *testing.T) {
	d := newDispatcher(t, Deps{})

	inv := d.Dispatch(context.Background(), "get_alumni_info", args(t, map[string]any{"branch": "Information Technology"}))
	require.Equal(t, StatusOK, inv.Outcome.Status)
	res := inv.Payload.(AlumniInfoResult)
	assert.NotEqual(t, notAvailable, res.PlacementStats.AveragePackage)
	assert.NotEmpty(t, res.TopRecruiters)

	inv = d.Dispatch(context.Background(), "get_alumni_info", args(t, map[string]any{"branch": "astrology"}))
	raw, err := json.Marshal(inv.Payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"branch": "astrology",
		"placement_stats": {"average_package": "N/A", "highest_package": "N/A", "placement_rate": "N/A"},
		"top_recruiters": [],
		"alumni_highlights": ["Please contact the counseling office for specific alumni information for this branch."],
		"external_programs": []
	}`, string(raw))
}

func TestCheckUser_NoContactNeverCallsDirectory(t *testing.T) {
	resolver := &fakeResolver{}
	d := newDispatcher(t, Deps{Directory: resolver})

	for _, raw := range []json.RawMessage{nil, []byte(`{}`), []byte(`{"phone_number":"  ","email":""}`)} {
		inv := d.Dispatch(context.Background(), "check_user_exists", raw)
		assert.Equal(t, StatusIncomplete, inv.Outcome.Status)
		assert.Equal(t, CheckUserResult{Message: msgCheckNeedContact}, inv.Payload)
	}
	assert.Empty(t, resolver.calls)
}

func TestCheckUser_Found(t *testing.T) {
	resolver := &fakeResolver{rec: &domain.UserRecord{
		ID:        "u1",
		Profile:   domain.UserProfile{Name: "Asha", Email: "asha@example.com", Phone: "918438232949"},
		Analytics: domain.AnalyticsRecord{City: "Vellore", IntentLevel: "high"},
	}}
	d := newDispatcher(t, Deps{Directory: resolver})

	inv := d.Dispatch(context.Background(), "check_user_exists", args(t, map[string]any{"phone_number": "8438232949"}))
	require.Equal(t, StatusOK, inv.Outcome.Status)
	require.Len(t, resolver.calls, 1)
	assert.Equal(t, "918438232949", resolver.calls[0].Dialable)

	raw, err := json.Marshal(inv.Payload)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, true, got["user_exists"])
	assert.Equal(t, map[string]any{"name": "Asha", "email": "asha@example.com", "phone": "918438232949"}, got["user_profile"])
	assert.Equal(t, map[string]any{"city": "Vellore", "intent_level": "high"}, got["analytics"])
	assert.Contains(t, got["message"], "Found existing user profile for Asha.")
}

func TestCheckUser_EmptyAnalyticsProjectsToEmptyObject(t *testing.T) {
	resolver := &fakeResolver{rec: &domain.UserRecord{ID: "u2", Profile: domain.UserProfile{Name: "Ravi"}}}
	d := newDispatcher(t, Deps{Directory: resolver})

	inv := d.Dispatch(context.Background(), "check_user_exists", args(t, map[string]any{"email": "ravi@example.com"}))
	raw, err := json.Marshal(inv.Payload)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"analytics":{}`)
}

func TestCheckUser_Outcomes(t *testing.T) {
	tests := []struct {
		name       string
		resolver   *fakeResolver
		wantStatus Status
		wantMsg    string
	}{
		{"not found", &fakeResolver{err: apperr.NewNotFound("no match")}, StatusOK, msgCheckNotFound},
		{"unavailable", &fakeResolver{err: apperr.NewUnavailable("down", errors.New("dial tcp"))}, StatusError, msgCheckNotFound},
		{"panic", &fakeResolver{panics: true}, StatusError, msgCheckError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDispatcher(t, Deps{Directory: tt.resolver})

			inv := d.Dispatch(context.Background(), "check_user_exists", args(t, map[string]any{"email": "a@b.co"}))
			assert.Equal(t, tt.wantStatus, inv.Outcome.Status)
			assert.Equal(t, CheckUserResult{Message: tt.wantMsg}, inv.Payload)
		})
	}

	d := newDispatcher(t, Deps{})
	inv := d.Dispatch(context.Background(), "check_user_exists", args(t, map[string]any{"email": "a@b.co"}))
	assert.Equal(t, StatusError, inv.Outcome.Status)
	assert.True(t, apperr.Is(inv.Outcome.Err, apperr.CodeUnavailable))
	assert.Equal(t, CheckUserResult{Message: msgCheckNotFound}, inv.Payload)
}

func TestDispatch_SchemaViolationIsIncomplete(t *testing.T) {
	delivery := &fakeDelivery{}
	d := newDispatcher(t, Deps{Delivery: delivery})

	inv := d.Dispatch(context.Background(), "get_detailed_information", args(t, map[string]any{"phone_number": "8438232949"}))
	assert.Equal(t, StatusIncomplete, inv.Outcome.Status)
	assert.IsType(t, DetailedInfoResult{}, inv.Payload)
	assert.Empty(t, delivery.calls)

	inv = d.Dispatch(context.Background(), "get_career_paths", args(t, map[string]any{"branch": 42}))
	assert.Equal(t, StatusIncomplete, inv.Outcome.Status)
	assert.Equal(t, []string{msgNoCareerPaths}, inv.Payload.(CareerPathsResult).CareerPaths)
}

func TestDispatch_UnknownTool(t *testing.T) {
	d := newDispatcher(t, Deps{})

	inv := d.Dispatch(context.Background(), "book_flight", nil)
	assert.Equal(t, StatusError, inv.Outcome.Status)
	assert.True(t, apperr.Is(inv.Outcome.Err, apperr.CodeNotFound))
	assert.NotNil(t, inv.Payload)
	assert.NotEmpty(t, inv.ID)
}

func TestDispatch_RecordsSpanWithOutcome(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	d := newDispatcher(t, Deps{Delivery: &fakeDelivery{err: apperr.NewUpstream("down", nil)}}, WithTracerProvider(tp))
	d.Dispatch(context.Background(), "get_detailed_information", args(t, map[string]any{"query": "q", "email": "a@b.co"}))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "tools.Dispatch", spans[0].Name)

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "get_detailed_information", attrs["tool.name"])
	assert.Equal(t, "error", attrs["tool.outcome"])
}
