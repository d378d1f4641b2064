package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/foxseedlab/planning-poker/internal/config"
	"github.com/foxseedlab/planning-poker/internal/repository"
	"github.com/foxseedlab/planning-poker/internal/watch"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/do/v2"
)

const (
	databaseInitTimeout = 15 * time.Second
	sqliteScheme        = "sqlite:"
)

// sqliteDSN reports whether url selects the embedded store and returns the
// driver DSN, e.g. "sqlite::memory:" or "sqlite:///var/lib/poker.db".
func sqliteDSN(url string) (string, bool) {
	if !strings.HasPrefix(url, sqliteScheme) {
		return "", false
	}
	dsn := strings.TrimPrefix(url, sqliteScheme)
	if strings.HasPrefix(dsn, "///") {
		dsn = strings.TrimPrefix(dsn, "//")
	}
	return dsn, true
}

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*watch.Hub, error) {
		return watch.NewHub(), nil
	})

	do.Provide(injector, func(i do.Injector) (*pgxpool.Pool, error) {
		cfg := do.MustInvoke[*config.Config](i)
		ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
		defer cancel()

		p, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect database: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		if err := RunMigration(ctx, p); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to run migration: %w", err)
		}
		return p, nil
	})

	do.Provide(injector, func(i do.Injector) (repository.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if dsn, ok := sqliteDSN(cfg.DatabaseURL); ok {
			ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
			defer cancel()
			r, err := OpenSQLite(ctx, dsn, do.MustInvoke[*watch.Hub](i))
			if err != nil {
				return nil, err
			}
			return r, nil
		}
		pool, err := do.Invoke[*pgxpool.Pool](i)
		if err != nil {
			return nil, err
		}
		return NewPostgresRepository(pool), nil
	})

	do.Provide(injector, func(i do.Injector) (watch.Notifier, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.WatchMode == config.WatchModePoll {
			return watch.Interval{Every: cfg.WatchPollInterval}, nil
		}
		hub := do.MustInvoke[*watch.Hub](i)
		if _, ok := sqliteDSN(cfg.DatabaseURL); ok {
			return hub, nil
		}
		pool, err := do.Invoke[*pgxpool.Pool](i)
		if err != nil {
			return nil, err
		}
		return NewPostgresNotifier(pool, hub), nil
	})
}
