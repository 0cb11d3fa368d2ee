package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresQueue implements Queue on the queue_messages table. Visibility is a
// visible_at timestamp: receiving pushes it past the window, so an undeleted
// message naturally reappears for redelivery. FOR UPDATE SKIP LOCKED keeps
// concurrent consumers off the same row.
type PostgresQueue struct {
	pool       *pgxpool.Pool
	visibility time.Duration
}

// NewPostgresQueue creates a queue with the given visibility window.
func NewPostgresQueue(pool *pgxpool.Pool, visibility time.Duration) *PostgresQueue {
	return &PostgresQueue{pool: pool, visibility: visibility}
}

func (q *PostgresQueue) Enqueue(ctx context.Context, queue string, payload []byte, delay time.Duration) (uuid.UUID, error) {
	id := uuid.New()
	_, err := q.pool.Exec(
		ctx,
		`INSERT INTO queue_messages (id, queue, payload, visible_at)
		 VALUES ($1, $2, $3, now() + make_interval(secs => $4::float8))`,
		id,
		queue,
		payload,
		delay.Seconds(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to enqueue message: %w", err)
	}
	return id, nil
}

func (q *PostgresQueue) Receive(ctx context.Context, queue string) (*Message, error) {
	row := q.pool.QueryRow(
		ctx,
		`UPDATE queue_messages
		 SET delivery_count = delivery_count + 1,
		     visible_at = now() + make_interval(secs => $2::float8)
		 WHERE id = (
		     SELECT id FROM queue_messages
		     WHERE queue = $1 AND visible_at <= now()
		     ORDER BY enqueued_at
		     LIMIT 1
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, queue, payload, delivery_count, visible_at, enqueued_at`,
		queue,
		q.visibility.Seconds(),
	)

	var msg Message
	err := row.Scan(&msg.ID, &msg.Queue, &msg.Payload, &msg.DeliveryCount, &msg.VisibleAt, &msg.EnqueuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to receive message: %w", err)
	}
	return &msg, nil
}

func (q *PostgresQueue) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := q.pool.Exec(ctx, `DELETE FROM queue_messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete message %s: %w", id, err)
	}
	return nil
}

func (q *PostgresQueue) DeadLetter(ctx context.Context, id uuid.UUID, lastError string) error {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin dead-letter transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(
		ctx,
		`INSERT INTO dead_letter_messages (id, queue, payload, delivery_count, enqueued_at, last_error)
		 SELECT id, queue, payload, delivery_count, enqueued_at, $2
		 FROM queue_messages WHERE id = $1`,
		id,
		lastError,
	)
	if err != nil {
		return fmt.Errorf("failed to copy message %s to dead-letter table: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("message %s not found for dead-lettering", id)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM queue_messages WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to remove dead-lettered message %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit dead-letter move: %w", err)
	}
	return nil
}

func (q *PostgresQueue) Size(ctx context.Context, queue string) (int, error) {
	var count int
	err := q.pool.QueryRow(ctx, `SELECT count(*) FROM queue_messages WHERE queue = $1`, queue).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}
