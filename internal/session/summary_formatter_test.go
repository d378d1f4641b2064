package session

import (
	"strings"
	"testing"
	"time"

	"github.com/foxseedlab/planning-poker/internal/repository"
	"github.com/foxseedlab/planning-poker/internal/round"
	"github.com/shopspring/decimal"
)

func summaryFixture() (*repository.Session, []round.Outcome) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	s := &repository.Session{
		ID:        "session-1",
		Name:      "Sprint 12",
		Code:      "482913",
		Mode:      repository.EstimationModeMean,
		CreatedAt: start,
		ClosedAt:  &end,
	}
	mean := decimal.RequireFromString("5.5")
	outcomes := []round.Outcome{
		{
			Task:  repository.Task{ID: "task-1", Title: "Login form", Position: 0, ClosedAt: &end},
			Tally: []round.TallyEntry{{ParticipantID: "p-1", Name: "Alice", Value: "3"}, {ParticipantID: "p-2", Name: "Bob", Value: "8"}},
			Summary: round.Summary{
				Mode:         repository.EstimationModeMean,
				VoteCount:    2,
				NumericCount: 2,
				Mean:         &mean,
			},
		},
		{
			Task:    repository.Task{ID: "task-2", Title: "Password reset", Position: 1},
			Summary: round.Summary{Mode: repository.EstimationModeMean},
		},
	}
	return s, outcomes
}

func TestBuildSummaryText(t *testing.T) {
	s, outcomes := summaryFixture()
	tokyo := time.FixedZone("JST", 9*60*60)

	got := string(buildSummaryText(s, []string{"Alice", "Bob"}, outcomes, "Asia/Tokyo", tokyo))
	want := strings.Join([]string{
		"Session: Sprint 12 (482913)",
		"Mode: mean",
		"Period: 2026-03-01 09:00:00 ~ 2026-03-01 10:30:00 (Asia/Tokyo)",
		"Participants: Alice, Bob",
		"",
		"1. Login form [closed] 5.5",
		"   Alice: 3",
		"   Bob: 8",
		"",
		"2. Password reset [open] -",
		"   (no votes)",
	}, "\n")
	if got != want {
		t.Fatalf("unexpected summary text:\n%s\nwant:\n%s", got, want)
	}
}

func TestBuildSummaryText_NoParticipants(t *testing.T) {
	s, _ := summaryFixture()
	got := string(buildSummaryText(s, nil, nil, "UTC", nil))
	if !strings.Contains(got, "Participants: (none)") {
		t.Fatalf("expected empty participant marker, got %q", got)
	}
}

func TestBuildSummaryWebhookPayload(t *testing.T) {
	s, outcomes := summaryFixture()

	p := buildSummaryWebhookPayload(s, nil, outcomes, "UTC", time.UTC)
	if p.SchemaVersion != 1 || p.SessionCode != "482913" || p.EstimationMode != "mean" {
		t.Fatalf("unexpected header: %+v", p)
	}
	if p.StartAt != "2026-03-01T00:00:00Z" || p.EndAt != "2026-03-01T01:30:00Z" || p.DurationSeconds != 5400 {
		t.Fatalf("unexpected period: %s %s %d", p.StartAt, p.EndAt, p.DurationSeconds)
	}
	if p.Participants == nil || len(p.Participants) != 0 {
		t.Fatalf("expected an empty participant list, got %#v", p.Participants)
	}
	if p.TaskCount != 2 || !p.Tasks[0].Closed || p.Tasks[0].Result != "5.5" || p.Tasks[1].Closed || p.Tasks[1].Result != "" {
		t.Fatalf("unexpected tasks: %+v", p.Tasks)
	}
	if len(p.Tasks[0].Votes) != 2 || p.Tasks[0].Votes[1].ParticipantID != "p-2" || p.Tasks[1].Votes == nil {
		t.Fatalf("unexpected votes: %+v", p.Tasks)
	}
}

func TestBuildSummaryWebhookPayload_OpenSessionHasZeroDuration(t *testing.T) {
	s, _ := summaryFixture()
	s.ClosedAt = nil
	p := buildSummaryWebhookPayload(s, []string{"Alice"}, nil, "UTC", time.UTC)
	if p.DurationSeconds != 0 || p.EndAt != p.StartAt || p.Tasks == nil {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestClosedAnnouncement(t *testing.T) {
	got := closedAnnouncement("Sprint 12", "482913", 2, 3)
	if !strings.Contains(got, `"Sprint 12" (482913)`) || !strings.Contains(got, "2 task(s) estimated by 3 participant(s)") {
		t.Fatalf("unexpected announcement: %q", got)
	}
}
