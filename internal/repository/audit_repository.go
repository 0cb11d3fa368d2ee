package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/shareflow/internal/domain"
)

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository wires the append-only audit table backed by pgxpool.
func NewAuditRepository(pool *pgxpool.Pool) AuditSink {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Record(ctx context.Context, rec domain.AuditRecord) error {
	if r.pool == nil {
		return fmt.Errorf("audit repository not initialized")
	}

	oldJSON, err := json.Marshal(rec.OldValues)
	if err != nil {
		return fmt.Errorf("failed to marshal old values: %w", err)
	}
	newJSON, err := json.Marshal(rec.NewValues)
	if err != nil {
		return fmt.Errorf("failed to marshal new values: %w", err)
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO audit_records (kind, business_id, action, old_values, new_values, actor, origin)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(rec.Kind),
		rec.BusinessID,
		rec.Action,
		oldJSON,
		newJSON,
		rec.Actor,
		string(rec.Origin),
	)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

func (r *auditRepository) ListByBusinessID(ctx context.Context, kind domain.ResourceKind, businessID string) ([]domain.AuditRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("audit repository not initialized")
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, kind, business_id, action, old_values, new_values, actor, origin, created_at
		 FROM audit_records
		 WHERE kind = $1 AND business_id = $2
		 ORDER BY created_at, id`,
		string(kind),
		businessID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer rows.Close()

	records := []domain.AuditRecord{}
	for rows.Next() {
		var (
			rec       domain.AuditRecord
			kindRaw   string
			originRaw string
			oldJSON   json.RawMessage
			newJSON   json.RawMessage
			createdAt pgtype.Timestamptz
		)
		if scanErr := rows.Scan(
			&rec.ID, &kindRaw, &rec.BusinessID, &rec.Action,
			&oldJSON, &newJSON, &rec.Actor, &originRaw, &createdAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", scanErr)
		}

		rec.Kind = domain.ResourceKind(kindRaw)
		rec.Origin = domain.Origin(originRaw)
		if len(oldJSON) > 0 {
			if err := json.Unmarshal(oldJSON, &rec.OldValues); err != nil {
				return nil, fmt.Errorf("failed to decode old values: %w", err)
			}
		}
		if len(newJSON) > 0 {
			if err := json.Unmarshal(newJSON, &rec.NewValues); err != nil {
				return nil, fmt.Errorf("failed to decode new values: %w", err)
			}
		}
		if createdAt.Valid {
			rec.CreatedAt = createdAt.Time
		}
		records = append(records, rec)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate audit records: %w", rowsErr)
	}
	return records, nil
}
