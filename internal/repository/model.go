package repository

import "time"

type EstimationMode string

const (
	EstimationModeMean      EstimationMode = "mean"
	EstimationModeUnanimity EstimationMode = "unanimity"
)

func (m EstimationMode) Valid() bool {
	return m == EstimationModeMean || m == EstimationModeUnanimity
}

type Participant struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	SessionID *string    `json:"session_id"`
	JoinedAt  *time.Time `json:"joined_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func (p *Participant) InSession() bool {
	return p.SessionID != nil && *p.SessionID != ""
}

type ParticipantRef struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	JoinedAt *time.Time `json:"joined_at"`
}

type Session struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Code      string         `json:"code"`
	IsActive  bool           `json:"is_active"`
	Mode      EstimationMode `json:"mode"`
	CreatedAt time.Time      `json:"created_at"`
	ClosedAt  *time.Time     `json:"closed_at"`
}

type Task struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Position    int        `json:"position"`
	IsCurrent   bool       `json:"is_current"`
	CreatedAt   time.Time  `json:"created_at"`
	ClosedAt    *time.Time `json:"closed_at"`
}

type Vote struct {
	ID            string    `json:"id"`
	TaskID        string    `json:"task_id"`
	ParticipantID string    `json:"participant_id"`
	Value         string    `json:"value"`
	VotedAt       time.Time `json:"voted_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// TalliedVote is a vote joined with its voter's current display name.
// ParticipantName is nil when the participant record no longer exists.
type TalliedVote struct {
	Vote
	ParticipantName *string
}
