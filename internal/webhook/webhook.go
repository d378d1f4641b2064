package webhook

import "context"

const SessionSummarySchemaVersion = 1

type SessionSummaryPayload struct {
	SchemaVersion   int                  `json:"schema_version"`
	SessionID       string               `json:"session_id"`
	SessionName     string               `json:"session_name"`
	SessionCode     string               `json:"session_code"`
	EstimationMode  string               `json:"estimation_mode"`
	StartAt         string               `json:"start_at"`
	EndAt           string               `json:"end_at"`
	Timezone        string               `json:"timezone"`
	DurationSeconds int64                `json:"duration_seconds"`
	Participants    []string             `json:"participants"`
	TaskCount       int                  `json:"task_count"`
	Tasks           []SessionSummaryTask `json:"tasks"`
}

type SessionSummaryTask struct {
	TaskID      string               `json:"task_id"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Position    int                  `json:"position"`
	Closed      bool                 `json:"closed"`
	Result      string               `json:"result"`
	Consensus   bool                 `json:"consensus"`
	Votes       []SessionSummaryVote `json:"votes"`
}

type SessionSummaryVote struct {
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
	Value         string `json:"value"`
}

type Sender interface {
	SendSessionSummary(ctx context.Context, payload SessionSummaryPayload) error
}
