package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/shareflow/internal/domain"
)

// VersionedStore is the SCD2 persistence contract shared by every resource
// kind. All mutations are expire-and-insert inside one transaction: a reader
// never observes zero or two current versions for one business id.
type VersionedStore interface {
	// Create inserts version 1 with is_current=true and the MaxDate sentinel
	// end date. A current, non-deleted version for the same business id yields
	// a ConflictError. A soft-deleted entity is revived as version N+1.
	Create(ctx context.Context, kind domain.ResourceKind, businessID string, attrs map[string]any, meta domain.ChangeMeta) (domain.EntityVersion, error)

	// Update expires the current version and inserts version N+1 atomically.
	Update(ctx context.Context, kind domain.ResourceKind, businessID string, attrs map[string]any, meta domain.ChangeMeta) (domain.EntityVersion, error)

	// SoftDelete expires the current version and inserts version N+1 carrying
	// is_deleted=true. The row is never physically removed.
	SoftDelete(ctx context.Context, kind domain.ResourceKind, businessID string, meta domain.ChangeMeta) (domain.EntityVersion, error)

	// GetCurrent returns the unique current, non-deleted version.
	GetCurrent(ctx context.Context, kind domain.ResourceKind, businessID string) (domain.EntityVersion, error)

	// GetAt returns the version whose validity interval contains ts.
	GetAt(ctx context.Context, kind domain.ResourceKind, businessID string, ts time.Time) (domain.EntityVersion, error)

	// GetHistory returns every version ordered by version number.
	GetHistory(ctx context.Context, kind domain.ResourceKind, businessID string) ([]domain.EntityVersion, error)

	// ListCurrent returns all current, non-deleted versions of one kind.
	ListCurrent(ctx context.Context, kind domain.ResourceKind) ([]domain.EntityVersion, error)
}

// AuditSink is the append-only write path for state-transition records.
type AuditSink interface {
	Record(ctx context.Context, rec domain.AuditRecord) error
	ListByBusinessID(ctx context.Context, kind domain.ResourceKind, businessID string) ([]domain.AuditRecord, error)
}

// NotificationSink is the append-only write path for outbound alerts.
type NotificationSink interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// SyncJobStore records background sync executions.
type SyncJobStore interface {
	// Begin appends a RUNNING record and returns its id.
	Begin(ctx context.Context, syncType domain.SyncType) (uuid.UUID, error)

	// Finish transitions the record to a terminal status.
	Finish(ctx context.Context, id uuid.UUID, status domain.SyncJobStatus, errMsg string) error

	// MarkInterrupted transitions every RUNNING record to INTERRUPTED and
	// returns the records it touched. Called once at process start.
	MarkInterrupted(ctx context.Context) ([]domain.SyncJobRecord, error)
}
