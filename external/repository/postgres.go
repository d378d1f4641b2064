package repository

import (
	"context"
	"errors"
	"slices"

	"github.com/foxseedlab/planning-poker/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepository struct {
	pool *pgxpool.Pool
	db   pgQuerier
	inTx bool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool, db: pool}
}

func (r *PostgresRepository) InTx(ctx context.Context, fn func(tx repository.Repository) error) error {
	if r.inTx {
		return fn(r)
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&PostgresRepository{pool: r.pool, db: tx, inTx: true})
	})
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

const pgParticipantColumns = `id, name, session_id, joined_at, created_at`

func scanPgParticipant(row pgx.Row) (*repository.Participant, error) {
	var p repository.Participant
	if err := row.Scan(&p.ID, &p.Name, &p.SessionID, &p.JoinedAt, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *PostgresRepository) CreateParticipant(ctx context.Context, input repository.CreateParticipantInput) (*repository.Participant, error) {
	p, err := scanPgParticipant(r.db.QueryRow(ctx,
		`INSERT INTO participants (id, name, created_at)
		 VALUES ($1, $2, $3)
		 RETURNING `+pgParticipantColumns,
		uuid.NewString(), input.Name, input.CreatedAt))
	if isPgUniqueViolation(err) {
		return nil, repository.ErrConflict
	}
	return p, err
}

func (r *PostgresRepository) GetParticipant(ctx context.Context, id string) (*repository.Participant, error) {
	return scanPgParticipant(r.db.QueryRow(ctx,
		`SELECT `+pgParticipantColumns+` FROM participants WHERE id = $1`, id))
}

func (r *PostgresRepository) GetParticipantByName(ctx context.Context, name string) (*repository.Participant, error) {
	return scanPgParticipant(r.db.QueryRow(ctx,
		`SELECT `+pgParticipantColumns+` FROM participants WHERE name = $1`, name))
}

func (r *PostgresRepository) DeleteParticipant(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM participants WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) AttachParticipant(ctx context.Context, input repository.AttachParticipantInput) (*repository.Participant, error) {
	return scanPgParticipant(r.db.QueryRow(ctx,
		`UPDATE participants SET session_id = $2, joined_at = $3
		 WHERE id = $1 AND session_id IS NULL
		 RETURNING `+pgParticipantColumns,
		input.ParticipantID, input.SessionID, input.JoinedAt))
}

func (r *PostgresRepository) DetachParticipant(ctx context.Context, id string) (*repository.Participant, error) {
	return scanPgParticipant(r.db.QueryRow(ctx,
		`UPDATE participants SET session_id = NULL, joined_at = NULL
		 WHERE id = $1
		 RETURNING `+pgParticipantColumns,
		id))
}

func (r *PostgresRepository) DetachSessionParticipants(ctx context.Context, sessionID string) ([]repository.ParticipantRef, error) {
	rows, err := r.db.Query(ctx,
		`WITH detached AS (
			SELECT id, name, joined_at FROM participants WHERE session_id = $1 FOR UPDATE
		 )
		 UPDATE participants p SET session_id = NULL, joined_at = NULL
		 FROM detached d WHERE p.id = d.id
		 RETURNING d.id, d.name, d.joined_at`,
		sessionID)
	if err != nil {
		return nil, err
	}
	refs, err := collectPgParticipantRefs(rows)
	if err != nil {
		return nil, err
	}
	sortParticipantRefs(refs)
	return refs, nil
}

func (r *PostgresRepository) ListSessionParticipants(ctx context.Context, sessionID string) ([]repository.ParticipantRef, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, joined_at FROM participants
		 WHERE session_id = $1 ORDER BY joined_at ASC, name ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	return collectPgParticipantRefs(rows)
}

func collectPgParticipantRefs(rows pgx.Rows) ([]repository.ParticipantRef, error) {
	defer rows.Close()
	list := []repository.ParticipantRef{}
	for rows.Next() {
		var ref repository.ParticipantRef
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.JoinedAt); err != nil {
			return nil, err
		}
		list = append(list, ref)
	}
	return list, rows.Err()
}

func sortParticipantRefs(refs []repository.ParticipantRef) {
	slices.SortStableFunc(refs, func(a, b repository.ParticipantRef) int {
		switch {
		case a.JoinedAt == nil && b.JoinedAt == nil:
		case a.JoinedAt == nil:
			return 1
		case b.JoinedAt == nil:
			return -1
		default:
			if c := a.JoinedAt.Compare(*b.JoinedAt); c != 0 {
				return c
			}
		}
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
}

const pgSessionColumns = `id, name, code, is_active, mode, created_at, closed_at`

func scanPgSession(row pgx.Row) (*repository.Session, error) {
	var s repository.Session
	var mode string
	if err := row.Scan(&s.ID, &s.Name, &s.Code, &s.IsActive, &mode, &s.CreatedAt, &s.ClosedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.Mode = repository.EstimationMode(mode)
	return &s, nil
}

func (r *PostgresRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	s, err := scanPgSession(r.db.QueryRow(ctx,
		`INSERT INTO sessions (id, name, code, is_active, mode, created_at)
		 VALUES ($1, $2, $3, TRUE, $4, $5)
		 RETURNING `+pgSessionColumns,
		uuid.NewString(), input.Name, input.Code, string(input.Mode), input.CreatedAt))
	if isPgUniqueViolation(err) {
		return nil, repository.ErrConflict
	}
	return s, err
}

func (r *PostgresRepository) GetSession(ctx context.Context, id string) (*repository.Session, error) {
	return scanPgSession(r.db.QueryRow(ctx,
		`SELECT `+pgSessionColumns+` FROM sessions WHERE id = $1`, id))
}

func (r *PostgresRepository) GetActiveSessionByCode(ctx context.Context, code string) (*repository.Session, error) {
	return scanPgSession(r.db.QueryRow(ctx,
		`SELECT `+pgSessionColumns+` FROM sessions
		 WHERE code = $1 AND is_active
		 LIMIT 1`,
		code))
}

func (r *PostgresRepository) DeactivateSession(ctx context.Context, input repository.DeactivateSessionInput) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE sessions SET is_active = FALSE, closed_at = $2 WHERE id = $1 AND is_active`,
		input.SessionID, input.ClosedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const pgTaskColumns = `id, session_id, title, description, position, is_current, created_at, closed_at`

func scanPgTask(row pgx.Row) (*repository.Task, error) {
	var t repository.Task
	if err := row.Scan(&t.ID, &t.SessionID, &t.Title, &t.Description, &t.Position, &t.IsCurrent, &t.CreatedAt, &t.ClosedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *PostgresRepository) CreateTasks(ctx context.Context, input repository.CreateTasksInput) ([]repository.Task, error) {
	created := make([]repository.Task, 0, len(input.Drafts))
	err := r.InTx(ctx, func(txRepo repository.Repository) error {
		tx := txRepo.(*PostgresRepository)
		var next int
		if err := tx.db.QueryRow(ctx,
			`SELECT COALESCE(MAX(position), -1) + 1 FROM tasks WHERE session_id = $1`,
			input.SessionID).Scan(&next); err != nil {
			return err
		}
		for i, d := range input.Drafts {
			t, err := scanPgTask(tx.db.QueryRow(ctx,
				`INSERT INTO tasks (id, session_id, title, description, position, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 RETURNING `+pgTaskColumns,
				uuid.NewString(), input.SessionID, d.Title, d.Description, next+i, input.CreatedAt))
			if err != nil {
				return err
			}
			created = append(created, *t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *PostgresRepository) GetTask(ctx context.Context, id string) (*repository.Task, error) {
	return scanPgTask(r.db.QueryRow(ctx,
		`SELECT `+pgTaskColumns+` FROM tasks WHERE id = $1`, id))
}

func (r *PostgresRepository) ListTasksBySessionID(ctx context.Context, sessionID string) ([]repository.Task, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+pgTaskColumns+` FROM tasks
		 WHERE session_id = $1 ORDER BY position ASC, created_at ASC, seq ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []repository.Task{}
	for rows.Next() {
		t, err := scanPgTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) UpdateTask(ctx context.Context, input repository.UpdateTaskInput) (*repository.Task, error) {
	return scanPgTask(r.db.QueryRow(ctx,
		`UPDATE tasks SET title = COALESCE($2, title), description = COALESCE($3, description)
		 WHERE id = $1
		 RETURNING `+pgTaskColumns,
		input.TaskID, input.Title, input.Description))
}

func (r *PostgresRepository) DeleteTask(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) SetCurrentTask(ctx context.Context, sessionID, taskID string) error {
	return r.InTx(ctx, func(txRepo repository.Repository) error {
		tx := txRepo.(*PostgresRepository)
		if _, err := tx.db.Exec(ctx,
			`UPDATE tasks SET is_current = FALSE WHERE session_id = $1 AND is_current`,
			sessionID); err != nil {
			return err
		}
		if taskID == "" {
			return nil
		}
		_, err := tx.db.Exec(ctx,
			`UPDATE tasks SET is_current = TRUE WHERE id = $1 AND session_id = $2`,
			taskID, sessionID)
		return err
	})
}

func (r *PostgresRepository) CloseTask(ctx context.Context, input repository.CloseTaskInput) (*repository.Task, error) {
	return scanPgTask(r.db.QueryRow(ctx,
		`UPDATE tasks SET closed_at = COALESCE(closed_at, $2)
		 WHERE id = $1
		 RETURNING `+pgTaskColumns,
		input.TaskID, input.ClosedAt))
}

func (r *PostgresRepository) ReopenTask(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `UPDATE tasks SET closed_at = NULL WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) UpsertVote(ctx context.Context, input repository.UpsertVoteInput) (*repository.Vote, error) {
	var v repository.Vote
	err := r.db.QueryRow(ctx,
		`INSERT INTO votes (id, task_id, participant_id, value, voted_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 ON CONFLICT (task_id, participant_id)
		 DO UPDATE SET value = EXCLUDED.value, voted_at = EXCLUDED.voted_at
		 RETURNING id, task_id, participant_id, value, voted_at, created_at`,
		uuid.NewString(), input.TaskID, input.ParticipantID, input.Value, input.VotedAt).
		Scan(&v.ID, &v.TaskID, &v.ParticipantID, &v.Value, &v.VotedAt, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *PostgresRepository) ListVotesByTaskID(ctx context.Context, taskID string) ([]repository.TalliedVote, error) {
	rows, err := r.db.Query(ctx,
		`SELECT v.id, v.task_id, v.participant_id, v.value, v.voted_at, v.created_at, p.name
		 FROM votes v LEFT JOIN participants p ON p.id = v.participant_id
		 WHERE v.task_id = $1
		 ORDER BY v.created_at ASC, v.seq ASC`,
		taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []repository.TalliedVote{}
	for rows.Next() {
		var tv repository.TalliedVote
		if err := rows.Scan(&tv.ID, &tv.TaskID, &tv.ParticipantID, &tv.Value, &tv.VotedAt, &tv.CreatedAt, &tv.ParticipantName); err != nil {
			return nil, err
		}
		list = append(list, tv)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) DeleteVotesByTaskID(ctx context.Context, taskID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM votes WHERE task_id = $1`, taskID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) DeleteVote(ctx context.Context, taskID, participantID string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM votes WHERE task_id = $1 AND participant_id = $2`,
		taskID, participantID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
