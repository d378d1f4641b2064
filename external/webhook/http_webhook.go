package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/foxseedlab/planning-poker/internal/webhook"
)

const (
	requestTimeout = 10 * time.Second
	maxAttempts    = 3
	retryBaseDelay = 500 * time.Millisecond

	headerSchemaVersion = "X-Poker-Schema-Version"
	headerEvent         = "X-Poker-Event"
	eventSessionSummary = "session.summary"
)

// HTTPSender POSTs summaries as JSON. Server errors and transport failures
// are retried with a doubling delay; other statuses fail at once.
type HTTPSender struct {
	webhookURL string
	client     *http.Client
	retryDelay time.Duration
}

func NewHTTPSender(webhookURL string) webhook.Sender {
	return &HTTPSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: requestTimeout},
		retryDelay: retryBaseDelay,
	}
}

func (s *HTTPSender) SendSessionSummary(ctx context.Context, payload webhook.SessionSummaryPayload) error {
	if s.webhookURL == "" {
		return nil
	}
	if payload.SchemaVersion == 0 {
		payload.SchemaVersion = webhook.SessionSummarySchemaVersion
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode session summary: %w", err)
	}

	delay := s.retryDelay
	for attempt := 1; ; attempt++ {
		retry, err := s.post(ctx, payload.SchemaVersion, b)
		if err == nil {
			return nil
		}
		if !retry || attempt == maxAttempts {
			return fmt.Errorf("session summary webhook failed after %d attempt(s): %w", attempt, err)
		}
		slog.Warn("session summary webhook failed, retrying", "error", err, "attempt", attempt, "session_id", payload.SessionID)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// post reports whether a failure is worth retrying.
func (s *HTTPSender) post(ctx context.Context, schemaVersion int, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerSchemaVersion, strconv.Itoa(schemaVersion))
	req.Header.Set(headerEvent, eventSessionSummary)
	resp, err := s.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if !isHTTPSuccessStatus(resp.StatusCode) {
		return resp.StatusCode >= http.StatusInternalServerError, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return false, nil
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
