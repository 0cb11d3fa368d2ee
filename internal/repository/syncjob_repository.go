package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/shareflow/internal/domain"
)

type syncJobRepository struct {
	pool *pgxpool.Pool
}

// NewSyncJobRepository wires the append-only sync execution table.
func NewSyncJobRepository(pool *pgxpool.Pool) SyncJobStore {
	return &syncJobRepository{pool: pool}
}

func (r *syncJobRepository) Begin(ctx context.Context, syncType domain.SyncType) (uuid.UUID, error) {
	if r.pool == nil {
		return uuid.Nil, fmt.Errorf("sync job repository not initialized")
	}

	id := uuid.New()
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO sync_jobs (id, sync_type, status, started_at) VALUES ($1, $2, $3, now())`,
		id,
		string(syncType),
		string(domain.SyncJobRunning),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin sync job: %w", err)
	}
	return id, nil
}

func (r *syncJobRepository) Finish(ctx context.Context, id uuid.UUID, status domain.SyncJobStatus, errMsg string) error {
	if r.pool == nil {
		return fmt.Errorf("sync job repository not initialized")
	}

	tag, err := r.pool.Exec(
		ctx,
		`UPDATE sync_jobs SET status = $1, error = $2, finished_at = now() WHERE id = $3 AND status = $4`,
		string(status),
		errMsg,
		id,
		string(domain.SyncJobRunning),
	)
	if err != nil {
		return fmt.Errorf("failed to finish sync job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sync job %s is not running", id)
	}
	return nil
}

func (r *syncJobRepository) MarkInterrupted(ctx context.Context) ([]domain.SyncJobRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("sync job repository not initialized")
	}

	rows, err := r.pool.Query(
		ctx,
		`UPDATE sync_jobs SET status = $1, finished_at = now()
		 WHERE status = $2
		 RETURNING id, sync_type, status, error, started_at, finished_at`,
		string(domain.SyncJobInterrupted),
		string(domain.SyncJobRunning),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark interrupted sync jobs: %w", err)
	}
	defer rows.Close()

	records := []domain.SyncJobRecord{}
	for rows.Next() {
		var (
			rec        domain.SyncJobRecord
			typeRaw    string
			statusRaw  string
			errRaw     pgtype.Text
			finishedAt pgtype.Timestamptz
		)
		if scanErr := rows.Scan(&rec.ID, &typeRaw, &statusRaw, &errRaw, &rec.StartedAt, &finishedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan interrupted sync job: %w", scanErr)
		}
		rec.Type = domain.SyncType(typeRaw)
		rec.Status = domain.SyncJobStatus(statusRaw)
		if errRaw.Valid {
			rec.Error = errRaw.String
		}
		if finishedAt.Valid {
			finished := finishedAt.Time
			rec.FinishedAt = &finished
		}
		records = append(records, rec)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate interrupted sync jobs: %w", rowsErr)
	}
	return records, nil
}
