package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/foxseedlab/planning-poker/internal/webhook"
)

func samplePayload() webhook.SessionSummaryPayload {
	return webhook.SessionSummaryPayload{
		SchemaVersion:  webhook.SessionSummarySchemaVersion,
		SessionID:      "s-1",
		SessionName:    "Sprint 1",
		SessionCode:    "482913",
		EstimationMode: "mean",
		Participants:   []string{"Alice", "Bob"},
		TaskCount:      1,
		Tasks: []webhook.SessionSummaryTask{{
			TaskID: "t-1",
			Title:  "Login form",
			Result: "5.5",
			Votes: []webhook.SessionSummaryVote{
				{ParticipantID: "p-1", Name: "Alice", Value: "3"},
				{ParticipantID: "p-2", Name: "Bob", Value: "8"},
			},
		}},
	}
}

func TestSendSessionSummary_EmptyWebhookURL(t *testing.T) {
	sender := NewHTTPSender("")
	if err := sender.SendSessionSummary(context.Background(), samplePayload()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestSendSessionSummary_Success(t *testing.T) {
	var got webhook.SessionSummaryPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}
		if v := r.Header.Get("X-Poker-Schema-Version"); v != "1" {
			t.Errorf("unexpected schema version header: %q", v)
		}
		if e := r.Header.Get("X-Poker-Event"); e != "session.summary" {
			t.Errorf("unexpected event header: %q", e)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	if err := sender.SendSessionSummary(context.Background(), samplePayload()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.SchemaVersion != webhook.SessionSummarySchemaVersion || got.SessionCode != "482913" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if len(got.Tasks) != 1 || len(got.Tasks[0].Votes) != 2 || got.Tasks[0].Votes[1].Name != "Bob" {
		t.Fatalf("unexpected tasks: %+v", got.Tasks)
	}
}

func newFastSender(url string) *HTTPSender {
	s := NewHTTPSender(url).(*HTTPSender)
	s.retryDelay = time.Millisecond
	return s
}

func TestSendSessionSummary_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	if err := newFastSender(server.URL).SendSessionSummary(context.Background(), samplePayload()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestSendSessionSummary_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := newFastSender(server.URL).SendSessionSummary(context.Background(), samplePayload()); err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestSendSessionSummary_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	if err := newFastSender(server.URL).SendSessionSummary(context.Background(), samplePayload()); err == nil {
		t.Fatal("expected error after repeated server errors")
	}
	if calls.Load() != maxAttempts {
		t.Fatalf("expected %d attempts, got %d", maxAttempts, calls.Load())
	}
}

func TestSendSessionSummary_StopsRetryingWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cancel()
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sender := newFastSender(server.URL)
	sender.retryDelay = time.Hour
	if err := sender.SendSessionSummary(ctx, samplePayload()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
