package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/planning-poker/internal/watch"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	notifyChannel    = "poker_changes"
	listenRetryDelay = 2 * time.Second
)

type changePayload struct {
	Table string              `json:"table"`
	Keys  map[string][]string `json:"keys"`
}

// PostgresNotifier relays row changes raised by the poker_notify_change
// trigger to in-process subscribers.
type PostgresNotifier struct {
	pool *pgxpool.Pool
	hub  *watch.Hub
}

func NewPostgresNotifier(pool *pgxpool.Pool, hub *watch.Hub) *PostgresNotifier {
	return &PostgresNotifier{pool: pool, hub: hub}
}

func (n *PostgresNotifier) Subscribe(ctx context.Context, topic watch.Topic) (<-chan struct{}, error) {
	return n.hub.Subscribe(ctx, topic)
}

// Run listens until ctx is done, reconnecting after connection loss.
func (n *PostgresNotifier) Run(ctx context.Context) error {
	for {
		err := n.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("change listener disconnected", "error", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(listenRetryDelay):
		}
	}
}

func (n *PostgresNotifier) listen(ctx context.Context) error {
	pooled, err := n.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	conn := pooled.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	slog.Debug("listening for changes", "channel", notifyChannel)
	// Anything missed while disconnected is picked up by a full refetch.
	n.hub.Broadcast()

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		var p changePayload
		if err := json.Unmarshal([]byte(notification.Payload), &p); err != nil {
			slog.Warn("dropping malformed change notification", "error", err)
			continue
		}
		n.hub.Publish(watch.Change{Table: p.Table, Keys: p.Keys})
	}
}
