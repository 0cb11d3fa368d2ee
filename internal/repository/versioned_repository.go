package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/shareflow/internal/domain"
)

// One versioned table per resource kind, all sharing the same column set.
var tableForKind = map[domain.ResourceKind]string{
	domain.KindTenant:    "tenant_versions",
	domain.KindRecipient: "recipient_versions",
	domain.KindShare:     "share_versions",
	domain.KindPipeline:  "pipeline_versions",
	domain.KindWorkOrder: "work_order_versions",
}

const versionColumns = `surrogate_id, business_id, attributes, effective_from, effective_to,
	is_current, is_deleted, version, created_by, change_reason, origin`

// versionedRepository implements VersionedStore on Postgres.
type versionedRepository struct {
	pool *pgxpool.Pool
}

// NewVersionedRepository creates the Postgres-backed SCD2 store.
func NewVersionedRepository(pool *pgxpool.Pool) VersionedStore {
	return &versionedRepository{pool: pool}
}

func (r *versionedRepository) Create(ctx context.Context, kind domain.ResourceKind, businessID string, attrs map[string]any, meta domain.ChangeMeta) (domain.EntityVersion, error) {
	table, err := tableName(kind)
	if err != nil {
		return domain.EntityVersion{}, err
	}

	var created domain.EntityVersion
	err = r.withTx(ctx, "create", func(tx pgx.Tx) error {
		current, err := lockCurrent(ctx, tx, table, businessID)
		switch {
		case err == nil && !current.IsDeleted:
			return &domain.ConflictError{Kind: kind, BusinessID: businessID}
		case err == nil && current.IsDeleted:
			// Revive a soft-deleted entity: the timeline continues at N+1.
			created, err = insertNextVersion(ctx, tx, table, kind, current, attrs, false, meta)
			return err
		case errors.Is(err, pgx.ErrNoRows):
			created, err = insertFirstVersion(ctx, tx, table, kind, businessID, attrs, meta)
			return err
		default:
			return err
		}
	})
	if err != nil {
		return domain.EntityVersion{}, err
	}
	return created, nil
}

func (r *versionedRepository) Update(ctx context.Context, kind domain.ResourceKind, businessID string, attrs map[string]any, meta domain.ChangeMeta) (domain.EntityVersion, error) {
	table, err := tableName(kind)
	if err != nil {
		return domain.EntityVersion{}, err
	}

	var updated domain.EntityVersion
	err = r.withTx(ctx, "update", func(tx pgx.Tx) error {
		current, err := lockCurrent(ctx, tx, table, businessID)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && current.IsDeleted) {
			return &domain.NotFoundError{Kind: kind, BusinessID: businessID}
		}
		if err != nil {
			return err
		}
		updated, err = insertNextVersion(ctx, tx, table, kind, current, attrs, false, meta)
		return err
	})
	if err != nil {
		return domain.EntityVersion{}, err
	}
	return updated, nil
}

func (r *versionedRepository) SoftDelete(ctx context.Context, kind domain.ResourceKind, businessID string, meta domain.ChangeMeta) (domain.EntityVersion, error) {
	table, err := tableName(kind)
	if err != nil {
		return domain.EntityVersion{}, err
	}

	var deleted domain.EntityVersion
	err = r.withTx(ctx, "soft delete", func(tx pgx.Tx) error {
		current, err := lockCurrent(ctx, tx, table, businessID)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && current.IsDeleted) {
			return &domain.NotFoundError{Kind: kind, BusinessID: businessID}
		}
		if err != nil {
			return err
		}
		deleted, err = insertNextVersion(ctx, tx, table, kind, current, current.Attributes, true, meta)
		return err
	})
	if err != nil {
		return domain.EntityVersion{}, err
	}
	return deleted, nil
}

func (r *versionedRepository) GetCurrent(ctx context.Context, kind domain.ResourceKind, businessID string) (domain.EntityVersion, error) {
	table, err := tableName(kind)
	if err != nil {
		return domain.EntityVersion{}, err
	}

	row := r.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT %s FROM %s WHERE business_id = $1 AND is_current AND NOT is_deleted`,
		versionColumns, table,
	), businessID)

	version, err := scanVersion(row, kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.EntityVersion{}, &domain.NotFoundError{Kind: kind, BusinessID: businessID}
	}
	if err != nil {
		return domain.EntityVersion{}, fmt.Errorf("failed to get current %s version: %w", kind, err)
	}
	return version, nil
}

func (r *versionedRepository) GetAt(ctx context.Context, kind domain.ResourceKind, businessID string, ts time.Time) (domain.EntityVersion, error) {
	table, err := tableName(kind)
	if err != nil {
		return domain.EntityVersion{}, err
	}

	// effective_to carries the MaxDate sentinel for the current version, so a
	// plain half-open range comparison still behaves as open-ended.
	row := r.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT %s FROM %s WHERE business_id = $1 AND effective_from <= $2 AND effective_to > $2`,
		versionColumns, table,
	), businessID, ts)

	version, err := scanVersion(row, kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.EntityVersion{}, &domain.NotFoundError{Kind: kind, BusinessID: businessID}
	}
	if err != nil {
		return domain.EntityVersion{}, fmt.Errorf("failed to get %s version at %s: %w", kind, ts, err)
	}
	return version, nil
}

func (r *versionedRepository) GetHistory(ctx context.Context, kind domain.ResourceKind, businessID string) ([]domain.EntityVersion, error) {
	table, err := tableName(kind)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM %s WHERE business_id = $1 ORDER BY version`,
		versionColumns, table,
	), businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s history: %w", kind, err)
	}
	defer rows.Close()

	return collectVersions(rows, kind)
}

func (r *versionedRepository) ListCurrent(ctx context.Context, kind domain.ResourceKind) ([]domain.EntityVersion, error) {
	table, err := tableName(kind)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM %s WHERE is_current AND NOT is_deleted ORDER BY business_id`,
		versionColumns, table,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to list current %s versions: %w", kind, err)
	}
	defer rows.Close()

	return collectVersions(rows, kind)
}

// withTx runs fn inside one transaction; domain errors pass through untouched,
// anything else is wrapped as a PersistenceError.
func (r *versionedRepository) withTx(ctx context.Context, op string, fn func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return &domain.PersistenceError{Op: op, Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		if domain.IsConflict(err) || domain.IsNotFound(err) {
			return err
		}
		return &domain.PersistenceError{Op: op, Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return &domain.PersistenceError{Op: op, Err: fmt.Errorf("failed to commit: %w", err)}
	}
	return nil
}

func lockCurrent(ctx context.Context, tx pgx.Tx, table, businessID string) (domain.EntityVersion, error) {
	row := tx.QueryRow(ctx, fmt.Sprintf(
		`SELECT %s FROM %s WHERE business_id = $1 AND is_current FOR UPDATE`,
		versionColumns, table,
	), businessID)
	return scanVersion(row, "")
}

func insertFirstVersion(ctx context.Context, tx pgx.Tx, table string, kind domain.ResourceKind, businessID string, attrs map[string]any, meta domain.ChangeMeta) (domain.EntityVersion, error) {
	version := domain.EntityVersion{
		SurrogateID:   uuid.New(),
		BusinessID:    businessID,
		Kind:          kind,
		Attributes:    attrs,
		EffectiveFrom: time.Now().UTC(),
		EffectiveTo:   domain.MaxDate,
		IsCurrent:     true,
		Version:       1,
		CreatedBy:     meta.Actor,
		ChangeReason:  meta.Reason,
		Origin:        meta.Origin,
	}
	if err := insertVersion(ctx, tx, table, version); err != nil {
		return domain.EntityVersion{}, err
	}
	return version, nil
}

func insertNextVersion(ctx context.Context, tx pgx.Tx, table string, kind domain.ResourceKind, current domain.EntityVersion, attrs map[string]any, deleted bool, meta domain.ChangeMeta) (domain.EntityVersion, error) {
	now := time.Now().UTC()

	tag, err := tx.Exec(ctx, fmt.Sprintf(
		`UPDATE %s SET effective_to = $1, is_current = FALSE WHERE surrogate_id = $2`,
		table,
	), now, current.SurrogateID)
	if err != nil {
		return domain.EntityVersion{}, fmt.Errorf("failed to expire version %d: %w", current.Version, err)
	}
	if tag.RowsAffected() != 1 {
		return domain.EntityVersion{}, fmt.Errorf("expected to expire exactly one row, expired %d", tag.RowsAffected())
	}

	next := domain.EntityVersion{
		SurrogateID:   uuid.New(),
		BusinessID:    current.BusinessID,
		Kind:          kind,
		Attributes:    attrs,
		EffectiveFrom: now,
		EffectiveTo:   domain.MaxDate,
		IsCurrent:     true,
		IsDeleted:     deleted,
		Version:       current.Version + 1,
		CreatedBy:     meta.Actor,
		ChangeReason:  meta.Reason,
		Origin:        meta.Origin,
	}
	if err := insertVersion(ctx, tx, table, next); err != nil {
		return domain.EntityVersion{}, err
	}
	return next, nil
}

func insertVersion(ctx context.Context, tx pgx.Tx, table string, v domain.EntityVersion) error {
	attrsJSON, err := json.Marshal(v.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}

	_, err = tx.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		table, versionColumns,
	),
		v.SurrogateID, v.BusinessID, attrsJSON, v.EffectiveFrom, v.EffectiveTo,
		v.IsCurrent, v.IsDeleted, v.Version, v.CreatedBy, v.ChangeReason, string(v.Origin),
	)
	if err != nil {
		return fmt.Errorf("failed to insert version %d: %w", v.Version, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner, kind domain.ResourceKind) (domain.EntityVersion, error) {
	var (
		v         domain.EntityVersion
		attrsJSON json.RawMessage
		origin    string
	)
	if err := row.Scan(
		&v.SurrogateID, &v.BusinessID, &attrsJSON, &v.EffectiveFrom, &v.EffectiveTo,
		&v.IsCurrent, &v.IsDeleted, &v.Version, &v.CreatedBy, &v.ChangeReason, &origin,
	); err != nil {
		return domain.EntityVersion{}, err
	}

	if err := json.Unmarshal(attrsJSON, &v.Attributes); err != nil {
		return domain.EntityVersion{}, fmt.Errorf("failed to decode attributes for %s: %w", v.BusinessID, err)
	}
	v.Kind = kind
	v.Origin = domain.Origin(origin)
	return v, nil
}

func collectVersions(rows pgx.Rows, kind domain.ResourceKind) ([]domain.EntityVersion, error) {
	versions := []domain.EntityVersion{}
	for rows.Next() {
		version, err := scanVersion(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s version: %w", kind, err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s versions: %w", kind, err)
	}
	return versions, nil
}

func tableName(kind domain.ResourceKind) (string, error) {
	table, ok := tableForKind[kind]
	if !ok {
		return "", fmt.Errorf("no versioned table for resource kind %q", kind)
	}
	return table, nil
}
