package repository

import (
	"context"
	"errors"
	"time"
)

// ErrConflict is returned by inserts that violate a uniqueness constraint
// (participant name, active session code).
var ErrConflict = errors.New("repository: unique constraint violated")

type CreateParticipantInput struct {
	Name      string
	CreatedAt time.Time
}

type AttachParticipantInput struct {
	ParticipantID string
	SessionID     string
	JoinedAt      time.Time
}

type CreateSessionInput struct {
	Name      string
	Code      string
	Mode      EstimationMode
	CreatedAt time.Time
}

type DeactivateSessionInput struct {
	SessionID string
	ClosedAt  time.Time
}

type TaskDraft struct {
	Title       string
	Description string
}

type CreateTasksInput struct {
	SessionID string
	Drafts    []TaskDraft
	CreatedAt time.Time
}

type UpdateTaskInput struct {
	TaskID      string
	Title       *string
	Description *string
}

type CloseTaskInput struct {
	TaskID   string
	ClosedAt time.Time
}

type UpsertVoteInput struct {
	TaskID        string
	ParticipantID string
	Value         string
	VotedAt       time.Time
}

// Point lookups return (nil, nil) when the record does not exist.
type ParticipantRepository interface {
	CreateParticipant(ctx context.Context, input CreateParticipantInput) (*Participant, error)
	GetParticipant(ctx context.Context, id string) (*Participant, error)
	GetParticipantByName(ctx context.Context, name string) (*Participant, error)
	DeleteParticipant(ctx context.Context, id string) error
	// AttachParticipant only succeeds for a participant with no session;
	// it returns (nil, nil) otherwise.
	AttachParticipant(ctx context.Context, input AttachParticipantInput) (*Participant, error)
	DetachParticipant(ctx context.Context, id string) (*Participant, error)
	DetachSessionParticipants(ctx context.Context, sessionID string) ([]ParticipantRef, error)
	ListSessionParticipants(ctx context.Context, sessionID string) ([]ParticipantRef, error)
}

type SessionRepository interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	GetActiveSessionByCode(ctx context.Context, code string) (*Session, error)
	// DeactivateSession reports false when the session was missing or
	// already inactive.
	DeactivateSession(ctx context.Context, input DeactivateSessionInput) (bool, error)
}

type TaskRepository interface {
	CreateTasks(ctx context.Context, input CreateTasksInput) ([]Task, error)
	GetTask(ctx context.Context, id string) (*Task, error)
	ListTasksBySessionID(ctx context.Context, sessionID string) ([]Task, error)
	UpdateTask(ctx context.Context, input UpdateTaskInput) (*Task, error)
	DeleteTask(ctx context.Context, id string) (bool, error)
	// SetCurrentTask clears the marker on every task of the session, then
	// sets it on taskID when taskID is not empty.
	SetCurrentTask(ctx context.Context, sessionID, taskID string) error
	CloseTask(ctx context.Context, input CloseTaskInput) (*Task, error)
	ReopenTask(ctx context.Context, id string) error
}

type VoteRepository interface {
	UpsertVote(ctx context.Context, input UpsertVoteInput) (*Vote, error)
	ListVotesByTaskID(ctx context.Context, taskID string) ([]TalliedVote, error)
	DeleteVotesByTaskID(ctx context.Context, taskID string) (int64, error)
	DeleteVote(ctx context.Context, taskID, participantID string) (bool, error)
}

type Repository interface {
	ParticipantRepository
	SessionRepository
	TaskRepository
	VoteRepository
	// InTx runs fn against a repository bound to a single transaction.
	// The transaction commits when fn returns nil.
	InTx(ctx context.Context, fn func(tx Repository) error) error
}
