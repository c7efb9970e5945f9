package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/updraft/internal/retry"
)

// HTTPExecutor dispatches build jobs to a remote builder endpoint as JSON.
// Transient failures (network errors, 5xx) are retried per the backoff policy;
// a 4xx rejection is final.
type HTTPExecutor struct {
	endpoint string
	client   *http.Client
	policy   retry.Policy
}

// NewHTTPExecutor creates an executor that POSTs jobs to the given endpoint.
func NewHTTPExecutor(endpoint string) *HTTPExecutor {
	return &HTTPExecutor{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		policy:   retry.DefaultPolicy(),
	}
}

// Name identifies the executor variant.
func (e *HTTPExecutor) Name() string { return "http" }

// Dispatch POSTs the job descriptor to the remote builder. A non-2xx response
// after retries is a dispatch failure; the build never started.
func (e *HTTPExecutor) Dispatch(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= e.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying job dispatch",
				slog.String("build_id", job.BuildID),
				slog.Int("attempt", attempt),
				slog.Any("error", lastErr))
			select {
			case <-time.After(e.policy.Delay(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		var retryable bool
		lastErr, retryable = e.post(ctx, body)
		if lastErr == nil {
			return nil
		}
		if !retryable {
			return lastErr
		}
	}
	return lastErr
}

func (e *HTTPExecutor) post(ctx context.Context, body []byte) (err error, retryable bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err), false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch to %s: %w", e.endpoint, err), true
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return nil, false
	case resp.StatusCode >= 500:
		return fmt.Errorf("executor unavailable: status %d", resp.StatusCode), true
	default:
		return fmt.Errorf("executor rejected job: status %d", resp.StatusCode), false
	}
}
