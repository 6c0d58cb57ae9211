package upstream

import (
	"context"
	"net/http"
	"time"
)

// SummarizerClient hands finished conversations to the summarization service.
type SummarizerClient struct {
	url  string
	http *http.Client
}

// NewSummarizerClient creates a client with the given per-call timeout.
func NewSummarizerClient(url string, timeout time.Duration) *SummarizerClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &SummarizerClient{url: url, http: &http.Client{Timeout: timeout}}
}

// Forward posts the speaker-labelled conversation text.
func (c *SummarizerClient) Forward(ctx context.Context, conversation string) error {
	return postJSON(ctx, c.http, c.url, map[string]string{"conversation": conversation}, nil)
}
