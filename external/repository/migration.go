package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL,
		code TEXT NOT NULL CHECK (code ~ '^[0-9]{6}$'),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		mode TEXT NOT NULL CHECK (mode IN ('mean', 'unanimity')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		closed_at TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_active_code ON sessions (code) WHERE is_active`,
	`CREATE TABLE IF NOT EXISTS participants (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL UNIQUE,
		session_id UUID REFERENCES sessions(id),
		joined_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_participants_session ON participants (session_id, joined_at) WHERE session_id IS NOT NULL`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		seq BIGINT GENERATED ALWAYS AS IDENTITY,
		session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL,
		is_current BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		closed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_session ON tasks (session_id, position)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_current ON tasks (session_id) WHERE is_current`,
	`CREATE TABLE IF NOT EXISTS votes (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		seq BIGINT GENERATED ALWAYS AS IDENTITY,
		task_id UUID NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		participant_id UUID NOT NULL,
		value TEXT NOT NULL,
		voted_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE(task_id, participant_id)
	)`,
	// Each trigger names the key columns whose old and new values are sent
	// with the change.
	`CREATE OR REPLACE FUNCTION poker_notify_change() RETURNS trigger AS $$
	DECLARE
		keys jsonb := '{}'::jsonb;
		col text;
		vals jsonb;
	BEGIN
		FOREACH col IN ARRAY TG_ARGV LOOP
			vals := '[]'::jsonb;
			IF TG_OP <> 'INSERT' THEN
				vals := vals || jsonb_build_array(to_jsonb(OLD) ->> col);
			END IF;
			IF TG_OP <> 'DELETE' THEN
				vals := vals || jsonb_build_array(to_jsonb(NEW) ->> col);
			END IF;
			keys := keys || jsonb_build_object(col, vals);
		END LOOP;
		PERFORM pg_notify('` + notifyChannel + `', jsonb_build_object('table', TG_TABLE_NAME, 'keys', keys)::text);
		RETURN NULL;
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS sessions_notify ON sessions`,
	`CREATE TRIGGER sessions_notify AFTER INSERT OR UPDATE OR DELETE ON sessions
		FOR EACH ROW EXECUTE FUNCTION poker_notify_change('id')`,
	`DROP TRIGGER IF EXISTS participants_notify ON participants`,
	`CREATE TRIGGER participants_notify AFTER INSERT OR UPDATE OR DELETE ON participants
		FOR EACH ROW EXECUTE FUNCTION poker_notify_change('id', 'session_id')`,
	`DROP TRIGGER IF EXISTS tasks_notify ON tasks`,
	`CREATE TRIGGER tasks_notify AFTER INSERT OR UPDATE OR DELETE ON tasks
		FOR EACH ROW EXECUTE FUNCTION poker_notify_change('id', 'session_id')`,
	`DROP TRIGGER IF EXISTS votes_notify ON votes`,
	`CREATE TRIGGER votes_notify AFTER INSERT OR UPDATE OR DELETE ON votes
		FOR EACH ROW EXECUTE FUNCTION poker_notify_change('id', 'task_id', 'participant_id')`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
