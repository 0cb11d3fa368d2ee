package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/shareflow/internal/domain"
)

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository wires the append-only outbound alert table.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationSink {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) Notify(ctx context.Context, n domain.Notification) error {
	if r.pool == nil {
		return fmt.Errorf("notification repository not initialized")
	}

	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO notifications (severity, subject, message) VALUES ($1, $2, $3)`,
		string(n.Severity),
		n.Subject,
		n.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}
	return nil
}
