// Package round drives voting on a session's tasks and computes round
// outcomes.
package round

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/foxseedlab/planning-poker/internal/apperr"
	"github.com/foxseedlab/planning-poker/internal/identity"
	"github.com/foxseedlab/planning-poker/internal/repository"
)

var (
	ErrTaskNotFound            = apperr.New(apperr.ErrNotFound, "task not found")
	ErrSessionNotFound         = apperr.New(apperr.ErrNotFound, "session not found")
	ErrParticipantNotFound     = identity.ErrParticipantNotFound
	ErrParticipantNotInSession = apperr.New(apperr.ErrConflict, "participant is not in the task's session")
)

type TallyEntry struct {
	ParticipantID string    `json:"participant_id"`
	Name          string    `json:"name"`
	Value         string    `json:"value"`
	VotedAt       time.Time `json:"voted_at"`
}

type Outcome struct {
	Task    repository.Task `json:"task"`
	Tally   []TallyEntry    `json:"tally"`
	Summary Summary         `json:"summary"`
}

// Progress is the result of Advance. When Exhausted is true Task is nil
// and Index equals the number of tasks.
type Progress struct {
	Task      *repository.Task `json:"task"`
	Index     int              `json:"index"`
	Exhausted bool             `json:"exhausted"`
}

// TaskPatch updates only the fields that are set.
type TaskPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type Engine struct {
	repo   repository.Repository
	policy Policy
	now    func() time.Time
}

func NewEngine(repo repository.Repository, policy Policy) *Engine {
	return &Engine{repo: repo, policy: policy, now: time.Now}
}

func (e *Engine) Policy() Policy {
	return e.policy
}

func (e *Engine) mustTask(ctx context.Context, op, taskID string) (*repository.Task, error) {
	task, err := e.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, apperr.Dependency(op, "load task", err)
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

func (e *Engine) mustSession(ctx context.Context, op, sessionID string) (*repository.Session, error) {
	s, err := e.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, apperr.Dependency(op, "load session", err)
	}
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// CastVote records value as the participant's vote on the task, replacing
// any earlier vote. The first submission time is kept for tally order.
func (e *Engine) CastVote(ctx context.Context, taskID, participantID, value string) (*repository.Vote, error) {
	if err := apperr.RequireID("task_id", taskID); err != nil {
		return nil, err
	}
	if err := apperr.RequireID("participant_id", participantID); err != nil {
		return nil, err
	}
	card, err := ParseCard(value)
	if err != nil {
		return nil, err
	}

	task, err := e.mustTask(ctx, "cast vote", taskID)
	if err != nil {
		return nil, err
	}
	p, err := e.repo.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, apperr.Dependency("cast vote", "load participant", err)
	}
	if p == nil {
		return nil, ErrParticipantNotFound
	}
	if !p.InSession() || *p.SessionID != task.SessionID {
		return nil, ErrParticipantNotInSession
	}

	v, err := e.repo.UpsertVote(ctx, repository.UpsertVoteInput{
		TaskID:        taskID,
		ParticipantID: participantID,
		Value:         string(card),
		VotedAt:       e.now(),
	})
	if err != nil {
		return nil, apperr.Dependency("cast vote", "upsert vote", err)
	}
	slog.Debug("vote cast", "task_id", taskID, "participant_id", participantID)
	return v, nil
}

// Tally lists the task's votes in first-submission order. Voters whose
// record is gone are listed under their raw id.
func (e *Engine) Tally(ctx context.Context, taskID string) ([]TallyEntry, error) {
	if err := apperr.RequireID("task_id", taskID); err != nil {
		return nil, err
	}
	if _, err := e.mustTask(ctx, "tally", taskID); err != nil {
		return nil, err
	}
	return e.tally(ctx, "tally", taskID)
}

func (e *Engine) tally(ctx context.Context, op, taskID string) ([]TallyEntry, error) {
	votes, err := e.repo.ListVotesByTaskID(ctx, taskID)
	if err != nil {
		return nil, apperr.Dependency(op, "list votes", err)
	}
	entries := make([]TallyEntry, 0, len(votes))
	for _, v := range votes {
		name := v.ParticipantID
		if v.ParticipantName != nil {
			name = *v.ParticipantName
		}
		entries = append(entries, TallyEntry{
			ParticipantID: v.ParticipantID,
			Name:          name,
			Value:         v.Value,
			VotedAt:       v.VotedAt,
		})
	}
	return entries, nil
}

// CloseRound marks the task's round complete and reports its outcome.
// Closing again keeps the first close time.
func (e *Engine) CloseRound(ctx context.Context, taskID string) (*Outcome, error) {
	if err := apperr.RequireID("task_id", taskID); err != nil {
		return nil, err
	}
	task, err := e.repo.CloseTask(ctx, repository.CloseTaskInput{TaskID: taskID, ClosedAt: e.now()})
	if err != nil {
		return nil, apperr.Dependency("close round", "close task", err)
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	s, err := e.mustSession(ctx, "close round", task.SessionID)
	if err != nil {
		return nil, err
	}
	tally, err := e.tally(ctx, "close round", taskID)
	if err != nil {
		return nil, err
	}
	slog.Info("round closed", "task_id", taskID, "session_id", task.SessionID, "votes", len(tally))
	return &Outcome{Task: *task, Tally: tally, Summary: e.policy.Summarize(s.Mode, tally)}, nil
}

// Outcomes reports every task of the session without closing anything.
func (e *Engine) Outcomes(ctx context.Context, s *repository.Session) ([]Outcome, error) {
	tasks, err := e.repo.ListTasksBySessionID(ctx, s.ID)
	if err != nil {
		return nil, apperr.Dependency("outcomes", "list tasks", err)
	}
	out := make([]Outcome, 0, len(tasks))
	for _, t := range tasks {
		tally, err := e.tally(ctx, "outcomes", t.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, Outcome{Task: t, Tally: tally, Summary: e.policy.Summarize(s.Mode, tally)})
	}
	return out, nil
}

// Advance moves past currentIndex (-1 before the first task) and marks the
// next task current. Past the last task it clears the marker and reports
// Exhausted; the caller is expected to disable the session then.
func (e *Engine) Advance(ctx context.Context, sessionID string, currentIndex int) (*Progress, error) {
	if err := apperr.RequireID("session_id", sessionID); err != nil {
		return nil, err
	}
	if currentIndex < -1 {
		return nil, apperr.Invalid("current index must be -1 or greater, got %d", currentIndex)
	}
	if _, err := e.mustSession(ctx, "advance", sessionID); err != nil {
		return nil, err
	}
	tasks, err := e.repo.ListTasksBySessionID(ctx, sessionID)
	if err != nil {
		return nil, apperr.Dependency("advance", "list tasks", err)
	}

	next := currentIndex + 1
	if next >= len(tasks) {
		if err := e.repo.SetCurrentTask(ctx, sessionID, ""); err != nil {
			return nil, apperr.Dependency("advance", "clear current task", err)
		}
		slog.Info("task list exhausted", "session_id", sessionID, "tasks", len(tasks))
		return &Progress{Index: len(tasks), Exhausted: true}, nil
	}

	task := tasks[next]
	if err := e.repo.SetCurrentTask(ctx, sessionID, task.ID); err != nil {
		return nil, apperr.Dependency("advance", "set current task", err)
	}
	task.IsCurrent = true
	return &Progress{Task: &task, Index: next}, nil
}

// ResetVotes deletes every vote on the task and reopens its round.
func (e *Engine) ResetVotes(ctx context.Context, taskID string) error {
	if err := apperr.RequireID("task_id", taskID); err != nil {
		return err
	}
	if _, err := e.mustTask(ctx, "reset votes", taskID); err != nil {
		return err
	}
	var deleted int64
	err := e.repo.InTx(ctx, func(tx repository.Repository) error {
		var err error
		if deleted, err = tx.DeleteVotesByTaskID(ctx, taskID); err != nil {
			return apperr.Dependency("reset votes", "delete votes", err)
		}
		if err := tx.ReopenTask(ctx, taskID); err != nil {
			return apperr.Dependency("reset votes", "reopen task", err)
		}
		return nil
	})
	if err != nil {
		return apperr.FromTx("reset votes", err)
	}
	slog.Info("votes reset", "task_id", taskID, "deleted", deleted)
	return nil
}

// RetractVote removes one participant's vote. Retracting a vote that does
// not exist is not an error.
func (e *Engine) RetractVote(ctx context.Context, taskID, participantID string) error {
	if err := apperr.RequireID("task_id", taskID); err != nil {
		return err
	}
	if err := apperr.RequireID("participant_id", participantID); err != nil {
		return err
	}
	if _, err := e.repo.DeleteVote(ctx, taskID, participantID); err != nil {
		return apperr.Dependency("retract vote", "delete vote", err)
	}
	return nil
}

func normalizeDraft(d repository.TaskDraft) (repository.TaskDraft, error) {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return d, apperr.Invalid("task title is required")
	}
	return d, nil
}

// CreateTasks appends drafts to the session's task list in the given order.
func (e *Engine) CreateTasks(ctx context.Context, sessionID string, drafts []repository.TaskDraft) ([]repository.Task, error) {
	if err := apperr.RequireID("session_id", sessionID); err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		return nil, apperr.Invalid("at least one task is required")
	}
	normalized := make([]repository.TaskDraft, len(drafts))
	for i, d := range drafts {
		n, err := normalizeDraft(d)
		if err != nil {
			return nil, err
		}
		normalized[i] = n
	}
	if _, err := e.mustSession(ctx, "create tasks", sessionID); err != nil {
		return nil, err
	}
	tasks, err := e.repo.CreateTasks(ctx, repository.CreateTasksInput{
		SessionID: sessionID,
		Drafts:    normalized,
		CreatedAt: e.now(),
	})
	if err != nil {
		return nil, apperr.Dependency("create tasks", "insert tasks", err)
	}
	slog.Info("tasks created", "session_id", sessionID, "count", len(tasks))
	return tasks, nil
}

func (e *Engine) CreateTask(ctx context.Context, sessionID, title, description string) (*repository.Task, error) {
	tasks, err := e.CreateTasks(ctx, sessionID, []repository.TaskDraft{{Title: title, Description: description}})
	if err != nil {
		return nil, err
	}
	return &tasks[0], nil
}

func (e *Engine) UpdateTask(ctx context.Context, taskID string, patch TaskPatch) (*repository.Task, error) {
	if err := apperr.RequireID("task_id", taskID); err != nil {
		return nil, err
	}
	if patch.Title == nil && patch.Description == nil {
		return nil, apperr.Invalid("nothing to update")
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, apperr.Invalid("task title is required")
		}
		patch.Title = &title
	}
	task, err := e.repo.UpdateTask(ctx, repository.UpdateTaskInput{
		TaskID:      taskID,
		Title:       patch.Title,
		Description: patch.Description,
	})
	if err != nil {
		return nil, apperr.Dependency("update task", "update", err)
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

// DeleteTask removes the task together with its votes.
func (e *Engine) DeleteTask(ctx context.Context, taskID string) error {
	if err := apperr.RequireID("task_id", taskID); err != nil {
		return err
	}
	ok, err := e.repo.DeleteTask(ctx, taskID)
	if err != nil {
		return apperr.Dependency("delete task", "delete", err)
	}
	if !ok {
		return ErrTaskNotFound
	}
	slog.Info("task deleted", "task_id", taskID)
	return nil
}

func (e *Engine) ListTasks(ctx context.Context, sessionID string) ([]repository.Task, error) {
	if err := apperr.RequireID("session_id", sessionID); err != nil {
		return nil, err
	}
	tasks, err := e.repo.ListTasksBySessionID(ctx, sessionID)
	if err != nil {
		return nil, apperr.Dependency("list tasks", "list", err)
	}
	return tasks, nil
}

func (e *Engine) GetTask(ctx context.Context, taskID string) (*repository.Task, error) {
	if err := apperr.RequireID("task_id", taskID); err != nil {
		return nil, err
	}
	return e.mustTask(ctx, "get task", taskID)
}

// SetCurrentTask marks taskID as the session's current task. An empty
// taskID clears the marker.
func (e *Engine) SetCurrentTask(ctx context.Context, sessionID, taskID string) error {
	if err := apperr.RequireID("session_id", sessionID); err != nil {
		return err
	}
	if taskID != "" {
		if err := apperr.RequireID("task_id", taskID); err != nil {
			return err
		}
		task, err := e.mustTask(ctx, "set current task", taskID)
		if err != nil {
			return err
		}
		if task.SessionID != sessionID {
			return ErrTaskNotFound
		}
	}
	if err := e.repo.SetCurrentTask(ctx, sessionID, taskID); err != nil {
		return apperr.Dependency("set current task", "update", err)
	}
	return nil
}
