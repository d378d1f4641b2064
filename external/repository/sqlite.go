package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/foxseedlab/planning-poker/internal/repository"
	"github.com/foxseedlab/planning-poker/internal/watch"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Timestamps are stored as unix nanoseconds.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		code TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		mode TEXT NOT NULL CHECK (mode IN ('mean', 'unanimity')),
		created_at INTEGER NOT NULL,
		closed_at INTEGER
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_active_code ON sessions (code) WHERE is_active = 1`,
	`CREATE TABLE IF NOT EXISTS participants (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		session_id TEXT REFERENCES sessions(id),
		joined_at INTEGER,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL,
		is_current INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		closed_at INTEGER
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_current ON tasks (session_id) WHERE is_current = 1`,
	`CREATE TABLE IF NOT EXISTS votes (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		participant_id TEXT NOT NULL,
		value TEXT NOT NULL,
		voted_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE(task_id, participant_id)
	)`,
}

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// SQLiteRepository is the embedded store. It publishes its own changes to
// the hub; inside a transaction they are held back until commit.
type SQLiteRepository struct {
	db      *sql.DB
	q       sqlQuerier
	hub     *watch.Hub
	pending *[]watch.Change
}

const sqliteForeignKeysPragma = "_pragma=foreign_keys(1)"

// withForeignKeys adds the foreign key pragma to dsn so the driver applies
// it to every connection it opens, including replacements.
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, sqliteForeignKeysPragma) {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + sqliteForeignKeysPragma
}

// OpenSQLite opens dsn with a single connection so that ":memory:" keeps
// one database for the lifetime of the pool.
func OpenSQLite(ctx context.Context, dsn string, hub *watch.Hub) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", withForeignKeys(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
		}
	}
	return &SQLiteRepository{db: db, q: db, hub: hub}, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) InTx(ctx context.Context, fn func(tx repository.Repository) error) error {
	if r.pending != nil {
		return fn(r)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	pending := []watch.Change{}
	if err := fn(&SQLiteRepository{db: r.db, q: tx, hub: r.hub, pending: &pending}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if r.hub != nil {
		for _, c := range pending {
			r.hub.Publish(c)
		}
	}
	return nil
}

func (r *SQLiteRepository) publish(table string, keys map[string][]string) {
	c := watch.Change{Table: table, Keys: keys}
	if r.pending != nil {
		*r.pending = append(*r.pending, c)
		return
	}
	if r.hub != nil {
		r.hub.Publish(c)
	}
}

func isSQLiteUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func fromNullNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

func optionalString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

const sqliteParticipantColumns = `id, name, session_id, joined_at, created_at`

func scanSQLiteParticipant(row rowScanner) (*repository.Participant, error) {
	var p repository.Participant
	var sessionID sql.NullString
	var joinedAt sql.NullInt64
	var createdAt int64
	if err := row.Scan(&p.ID, &p.Name, &sessionID, &joinedAt, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.SessionID = nullString(sessionID)
	p.JoinedAt = fromNullNanos(joinedAt)
	p.CreatedAt = fromNanos(createdAt)
	return &p, nil
}

func (r *SQLiteRepository) publishParticipant(before *string, p *repository.Participant) {
	r.publish(watch.TableParticipants, map[string][]string{
		"id":         {p.ID},
		"session_id": {stringValue(before), stringValue(p.SessionID)},
	})
}

func (r *SQLiteRepository) CreateParticipant(ctx context.Context, input repository.CreateParticipantInput) (*repository.Participant, error) {
	p, err := scanSQLiteParticipant(r.q.QueryRowContext(ctx,
		`INSERT INTO participants (id, name, created_at)
		 VALUES (?, ?, ?)
		 RETURNING `+sqliteParticipantColumns,
		uuid.NewString(), input.Name, toNanos(input.CreatedAt)))
	if isSQLiteUniqueViolation(err) {
		return nil, repository.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	r.publishParticipant(nil, p)
	return p, nil
}

func (r *SQLiteRepository) GetParticipant(ctx context.Context, id string) (*repository.Participant, error) {
	return scanSQLiteParticipant(r.q.QueryRowContext(ctx,
		`SELECT `+sqliteParticipantColumns+` FROM participants WHERE id = ?`, id))
}

func (r *SQLiteRepository) GetParticipantByName(ctx context.Context, name string) (*repository.Participant, error) {
	return scanSQLiteParticipant(r.q.QueryRowContext(ctx,
		`SELECT `+sqliteParticipantColumns+` FROM participants WHERE name = ?`, name))
}

func (r *SQLiteRepository) DeleteParticipant(ctx context.Context, id string) error {
	p, err := scanSQLiteParticipant(r.q.QueryRowContext(ctx,
		`DELETE FROM participants WHERE id = ? RETURNING `+sqliteParticipantColumns, id))
	if err != nil || p == nil {
		return err
	}
	r.publishParticipant(p.SessionID, p)
	return nil
}

func (r *SQLiteRepository) AttachParticipant(ctx context.Context, input repository.AttachParticipantInput) (*repository.Participant, error) {
	p, err := scanSQLiteParticipant(r.q.QueryRowContext(ctx,
		`UPDATE participants SET session_id = ?, joined_at = ?
		 WHERE id = ? AND session_id IS NULL
		 RETURNING `+sqliteParticipantColumns,
		input.SessionID, toNanos(input.JoinedAt), input.ParticipantID))
	if err != nil || p == nil {
		return p, err
	}
	r.publishParticipant(nil, p)
	return p, nil
}

func (r *SQLiteRepository) DetachParticipant(ctx context.Context, id string) (*repository.Participant, error) {
	var before *repository.Participant
	var after *repository.Participant
	err := r.InTx(ctx, func(txRepo repository.Repository) error {
		tx := txRepo.(*SQLiteRepository)
		var err error
		if before, err = tx.GetParticipant(ctx, id); err != nil || before == nil {
			return err
		}
		after, err = scanSQLiteParticipant(tx.q.QueryRowContext(ctx,
			`UPDATE participants SET session_id = NULL, joined_at = NULL
			 WHERE id = ?
			 RETURNING `+sqliteParticipantColumns,
			id))
		if err != nil {
			return err
		}
		tx.publishParticipant(before.SessionID, after)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return after, nil
}

func (r *SQLiteRepository) DetachSessionParticipants(ctx context.Context, sessionID string) ([]repository.ParticipantRef, error) {
	var refs []repository.ParticipantRef
	err := r.InTx(ctx, func(txRepo repository.Repository) error {
		tx := txRepo.(*SQLiteRepository)
		var err error
		if refs, err = tx.ListSessionParticipants(ctx, sessionID); err != nil {
			return err
		}
		if _, err := tx.q.ExecContext(ctx,
			`UPDATE participants SET session_id = NULL, joined_at = NULL WHERE session_id = ?`,
			sessionID); err != nil {
			return err
		}
		for _, ref := range refs {
			tx.publish(watch.TableParticipants, map[string][]string{
				"id":         {ref.ID},
				"session_id": {sessionID, ""},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *SQLiteRepository) ListSessionParticipants(ctx context.Context, sessionID string) ([]repository.ParticipantRef, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, name, joined_at FROM participants
		 WHERE session_id = ? ORDER BY joined_at ASC, name ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []repository.ParticipantRef{}
	for rows.Next() {
		var ref repository.ParticipantRef
		var joinedAt sql.NullInt64
		if err := rows.Scan(&ref.ID, &ref.Name, &joinedAt); err != nil {
			return nil, err
		}
		ref.JoinedAt = fromNullNanos(joinedAt)
		list = append(list, ref)
	}
	return list, rows.Err()
}

const sqliteSessionColumns = `id, name, code, is_active, mode, created_at, closed_at`

func scanSQLiteSession(row rowScanner) (*repository.Session, error) {
	var s repository.Session
	var mode string
	var createdAt int64
	var closedAt sql.NullInt64
	if err := row.Scan(&s.ID, &s.Name, &s.Code, &s.IsActive, &mode, &createdAt, &closedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.Mode = repository.EstimationMode(mode)
	s.CreatedAt = fromNanos(createdAt)
	s.ClosedAt = fromNullNanos(closedAt)
	return &s, nil
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	s, err := scanSQLiteSession(r.q.QueryRowContext(ctx,
		`INSERT INTO sessions (id, name, code, is_active, mode, created_at)
		 VALUES (?, ?, ?, 1, ?, ?)
		 RETURNING `+sqliteSessionColumns,
		uuid.NewString(), input.Name, input.Code, string(input.Mode), toNanos(input.CreatedAt)))
	if isSQLiteUniqueViolation(err) {
		return nil, repository.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	r.publish(watch.TableSessions, map[string][]string{"id": {s.ID}})
	return s, nil
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (*repository.Session, error) {
	return scanSQLiteSession(r.q.QueryRowContext(ctx,
		`SELECT `+sqliteSessionColumns+` FROM sessions WHERE id = ?`, id))
}

func (r *SQLiteRepository) GetActiveSessionByCode(ctx context.Context, code string) (*repository.Session, error) {
	return scanSQLiteSession(r.q.QueryRowContext(ctx,
		`SELECT `+sqliteSessionColumns+` FROM sessions
		 WHERE code = ? AND is_active = 1
		 LIMIT 1`,
		code))
}

func (r *SQLiteRepository) DeactivateSession(ctx context.Context, input repository.DeactivateSessionInput) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE sessions SET is_active = 0, closed_at = ? WHERE id = ? AND is_active = 1`,
		toNanos(input.ClosedAt), input.SessionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		r.publish(watch.TableSessions, map[string][]string{"id": {input.SessionID}})
	}
	return n == 1, nil
}

const sqliteTaskColumns = `id, session_id, title, description, position, is_current, created_at, closed_at`

func scanSQLiteTask(row rowScanner) (*repository.Task, error) {
	var t repository.Task
	var createdAt int64
	var closedAt sql.NullInt64
	if err := row.Scan(&t.ID, &t.SessionID, &t.Title, &t.Description, &t.Position, &t.IsCurrent, &createdAt, &closedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.CreatedAt = fromNanos(createdAt)
	t.ClosedAt = fromNullNanos(closedAt)
	return &t, nil
}

func (r *SQLiteRepository) publishTask(t *repository.Task) {
	r.publish(watch.TableTasks, map[string][]string{
		"id":         {t.ID},
		"session_id": {t.SessionID},
	})
}

func (r *SQLiteRepository) CreateTasks(ctx context.Context, input repository.CreateTasksInput) ([]repository.Task, error) {
	created := make([]repository.Task, 0, len(input.Drafts))
	err := r.InTx(ctx, func(txRepo repository.Repository) error {
		tx := txRepo.(*SQLiteRepository)
		var next int
		if err := tx.q.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position), -1) + 1 FROM tasks WHERE session_id = ?`,
			input.SessionID).Scan(&next); err != nil {
			return err
		}
		for i, d := range input.Drafts {
			t, err := scanSQLiteTask(tx.q.QueryRowContext(ctx,
				`INSERT INTO tasks (id, session_id, title, description, position, created_at)
				 VALUES (?, ?, ?, ?, ?, ?)
				 RETURNING `+sqliteTaskColumns,
				uuid.NewString(), input.SessionID, d.Title, d.Description, next+i, toNanos(input.CreatedAt)))
			if err != nil {
				return err
			}
			tx.publishTask(t)
			created = append(created, *t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *SQLiteRepository) GetTask(ctx context.Context, id string) (*repository.Task, error) {
	return scanSQLiteTask(r.q.QueryRowContext(ctx,
		`SELECT `+sqliteTaskColumns+` FROM tasks WHERE id = ?`, id))
}

func (r *SQLiteRepository) ListTasksBySessionID(ctx context.Context, sessionID string) ([]repository.Task, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+sqliteTaskColumns+` FROM tasks
		 WHERE session_id = ? ORDER BY position ASC, created_at ASC, rowid ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []repository.Task{}
	for rows.Next() {
		t, err := scanSQLiteTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

func (r *SQLiteRepository) UpdateTask(ctx context.Context, input repository.UpdateTaskInput) (*repository.Task, error) {
	t, err := scanSQLiteTask(r.q.QueryRowContext(ctx,
		`UPDATE tasks SET title = COALESCE(?, title), description = COALESCE(?, description)
		 WHERE id = ?
		 RETURNING `+sqliteTaskColumns,
		optionalString(input.Title), optionalString(input.Description), input.TaskID))
	if err != nil || t == nil {
		return t, err
	}
	r.publishTask(t)
	return t, nil
}

func (r *SQLiteRepository) DeleteTask(ctx context.Context, id string) (bool, error) {
	t, err := scanSQLiteTask(r.q.QueryRowContext(ctx,
		`DELETE FROM tasks WHERE id = ? RETURNING `+sqliteTaskColumns, id))
	if err != nil || t == nil {
		return false, err
	}
	r.publishTask(t)
	r.publish(watch.TableVotes, map[string][]string{"task_id": {t.ID}})
	return true, nil
}

func (r *SQLiteRepository) SetCurrentTask(ctx context.Context, sessionID, taskID string) error {
	return r.InTx(ctx, func(txRepo repository.Repository) error {
		tx := txRepo.(*SQLiteRepository)
		if _, err := tx.q.ExecContext(ctx,
			`UPDATE tasks SET is_current = 0 WHERE session_id = ? AND is_current = 1`,
			sessionID); err != nil {
			return err
		}
		if taskID != "" {
			if _, err := tx.q.ExecContext(ctx,
				`UPDATE tasks SET is_current = 1 WHERE id = ? AND session_id = ?`,
				taskID, sessionID); err != nil {
				return err
			}
		}
		tx.publish(watch.TableTasks, map[string][]string{"session_id": {sessionID}})
		return nil
	})
}

func (r *SQLiteRepository) CloseTask(ctx context.Context, input repository.CloseTaskInput) (*repository.Task, error) {
	t, err := scanSQLiteTask(r.q.QueryRowContext(ctx,
		`UPDATE tasks SET closed_at = COALESCE(closed_at, ?)
		 WHERE id = ?
		 RETURNING `+sqliteTaskColumns,
		toNanos(input.ClosedAt), input.TaskID))
	if err != nil || t == nil {
		return t, err
	}
	r.publishTask(t)
	return t, nil
}

func (r *SQLiteRepository) ReopenTask(ctx context.Context, id string) error {
	t, err := scanSQLiteTask(r.q.QueryRowContext(ctx,
		`UPDATE tasks SET closed_at = NULL WHERE id = ? RETURNING `+sqliteTaskColumns, id))
	if err != nil || t == nil {
		return err
	}
	r.publishTask(t)
	return nil
}

func (r *SQLiteRepository) publishVote(taskID, participantID string) {
	r.publish(watch.TableVotes, map[string][]string{
		"task_id":        {taskID},
		"participant_id": {participantID},
	})
}

func (r *SQLiteRepository) UpsertVote(ctx context.Context, input repository.UpsertVoteInput) (*repository.Vote, error) {
	var v repository.Vote
	var votedAt, createdAt int64
	err := r.q.QueryRowContext(ctx,
		`INSERT INTO votes (id, task_id, participant_id, value, voted_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (task_id, participant_id)
		 DO UPDATE SET value = excluded.value, voted_at = excluded.voted_at
		 RETURNING id, task_id, participant_id, value, voted_at, created_at`,
		uuid.NewString(), input.TaskID, input.ParticipantID, input.Value,
		toNanos(input.VotedAt), toNanos(input.VotedAt)).
		Scan(&v.ID, &v.TaskID, &v.ParticipantID, &v.Value, &votedAt, &createdAt)
	if err != nil {
		return nil, err
	}
	v.VotedAt = fromNanos(votedAt)
	v.CreatedAt = fromNanos(createdAt)
	r.publishVote(v.TaskID, v.ParticipantID)
	return &v, nil
}

func (r *SQLiteRepository) ListVotesByTaskID(ctx context.Context, taskID string) ([]repository.TalliedVote, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT v.id, v.task_id, v.participant_id, v.value, v.voted_at, v.created_at, p.name
		 FROM votes v LEFT JOIN participants p ON p.id = v.participant_id
		 WHERE v.task_id = ?
		 ORDER BY v.created_at ASC, v.rowid ASC`,
		taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []repository.TalliedVote{}
	for rows.Next() {
		var tv repository.TalliedVote
		var votedAt, createdAt int64
		var name sql.NullString
		if err := rows.Scan(&tv.ID, &tv.TaskID, &tv.ParticipantID, &tv.Value, &votedAt, &createdAt, &name); err != nil {
			return nil, err
		}
		tv.VotedAt = fromNanos(votedAt)
		tv.CreatedAt = fromNanos(createdAt)
		tv.ParticipantName = nullString(name)
		list = append(list, tv)
	}
	return list, rows.Err()
}

func (r *SQLiteRepository) DeleteVotesByTaskID(ctx context.Context, taskID string) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM votes WHERE task_id = ?`, taskID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.publish(watch.TableVotes, map[string][]string{"task_id": {taskID}})
	}
	return n, nil
}

func (r *SQLiteRepository) DeleteVote(ctx context.Context, taskID, participantID string) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM votes WHERE task_id = ? AND participant_id = ?`,
		taskID, participantID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		r.publishVote(taskID, participantID)
	}
	return n > 0, nil
}
