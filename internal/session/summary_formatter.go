package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/foxseedlab/planning-poker/internal/repository"
	"github.com/foxseedlab/planning-poker/internal/round"
	"github.com/foxseedlab/planning-poker/internal/webhook"
)

const summaryTimeLayout = "2006-01-02 15:04:05"

func summaryFilename(s *repository.Session) string {
	return fmt.Sprintf("planning-poker-%s-%s.txt", s.Code, s.ID)
}

func sessionEnd(s *repository.Session) time.Time {
	if s.ClosedAt != nil {
		return *s.ClosedAt
	}
	return s.CreatedAt
}

func buildSummaryText(s *repository.Session, participants []string, outcomes []round.Outcome, timezone string, loc *time.Location) []byte {
	loc = safeLocation(loc)
	names := summaryNoParticipants
	if len(participants) > 0 {
		names = strings.Join(participants, ", ")
	}

	lines := []string{
		fmt.Sprintf("%s: %s (%s)", summaryLabelSession, s.Name, s.Code),
		fmt.Sprintf("%s: %s", summaryLabelMode, s.Mode),
		fmt.Sprintf("%s: %s ~ %s (%s)", summaryLabelPeriod,
			s.CreatedAt.In(loc).Format(summaryTimeLayout),
			sessionEnd(s).In(loc).Format(summaryTimeLayout),
			timezone),
		fmt.Sprintf("%s: %s", summaryLabelParticipants, names),
	}
	for i, o := range outcomes {
		state := summaryOpenMarker
		if o.Task.ClosedAt != nil {
			state = summaryClosedMarker
		}
		result := o.Summary.Result()
		if result == "" {
			result = summaryNoResult
		}
		lines = append(lines, "", fmt.Sprintf("%d. %s [%s] %s", i+1, o.Task.Title, state, result))
		if len(o.Tally) == 0 {
			lines = append(lines, "   "+summaryNoVotes)
		}
		for _, e := range o.Tally {
			lines = append(lines, fmt.Sprintf("   %s: %s", e.Name, e.Value))
		}
	}
	return []byte(strings.Join(lines, "\n"))
}

func buildSummaryWebhookPayload(s *repository.Session, participants []string, outcomes []round.Outcome, timezone string, loc *time.Location) webhook.SessionSummaryPayload {
	loc = safeLocation(loc)
	endedAt := sessionEnd(s)
	durationSeconds := int64(endedAt.Sub(s.CreatedAt).Seconds())
	if durationSeconds < 0 {
		durationSeconds = 0
	}

	tasks := make([]webhook.SessionSummaryTask, 0, len(outcomes))
	for _, o := range outcomes {
		votes := make([]webhook.SessionSummaryVote, 0, len(o.Tally))
		for _, e := range o.Tally {
			votes = append(votes, webhook.SessionSummaryVote{
				ParticipantID: e.ParticipantID,
				Name:          e.Name,
				Value:         e.Value,
			})
		}
		tasks = append(tasks, webhook.SessionSummaryTask{
			TaskID:      o.Task.ID,
			Title:       o.Task.Title,
			Description: o.Task.Description,
			Position:    o.Task.Position,
			Closed:      o.Task.ClosedAt != nil,
			Result:      o.Summary.Result(),
			Consensus:   o.Summary.Consensus,
			Votes:       votes,
		})
	}
	if participants == nil {
		participants = []string{}
	}

	return webhook.SessionSummaryPayload{
		SchemaVersion:   webhook.SessionSummarySchemaVersion,
		SessionID:       s.ID,
		SessionName:     s.Name,
		SessionCode:     s.Code,
		EstimationMode:  string(s.Mode),
		StartAt:         s.CreatedAt.In(loc).Format(time.RFC3339),
		EndAt:           endedAt.In(loc).Format(time.RFC3339),
		Timezone:        timezone,
		DurationSeconds: durationSeconds,
		Participants:    participants,
		TaskCount:       len(tasks),
		Tasks:           tasks,
	}
}

func safeLocation(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
