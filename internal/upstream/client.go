// Package upstream contains clients for the external information-delivery
// and conversation-summarization services.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ashureev/voicecall/internal/apperr"
)

// DefaultTimeout bounds every upstream call.
const DefaultTimeout = 30 * time.Second

const maxErrorBody = 4 << 10

// postJSON sends body to url and decodes a JSON response into out (if non-nil).
// Every failure is returned as an UPSTREAM_FAILURE.
func postJSON(ctx context.Context, hc *http.Client, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return apperr.NewUpstream("encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return apperr.NewUpstream("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return apperr.NewUpstream("The request took too long to process", err)
		}
		return apperr.NewUpstream("request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := fmt.Sprintf("Server returned status %d", resp.StatusCode)
		var detail struct {
			Detail any `json:"detail"`
		}
		if json.Unmarshal(raw, &detail) == nil && detail.Detail != nil {
			msg = fmt.Sprintf("%s: %v", msg, detail.Detail)
		}
		e := apperr.NewUpstream(msg, nil)
		e.Details = map[string]any{"status": resp.StatusCode, "body": string(raw)}
		return e
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.NewUpstream("decode response", err)
	}
	return nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
