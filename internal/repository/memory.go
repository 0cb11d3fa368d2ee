package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/shareflow/internal/domain"
)

// MemoryStore is an in-memory VersionedStore with the same SCD2 semantics as
// the Postgres repository. It backs package tests and keeps the store contract
// verifiable without a live database.
type MemoryStore struct {
	mu       sync.Mutex
	versions map[domain.ResourceKind]map[string][]domain.EntityVersion
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		versions: map[domain.ResourceKind]map[string][]domain.EntityVersion{},
	}
}

func (m *MemoryStore) Create(ctx context.Context, kind domain.ResourceKind, businessID string, attrs map[string]any, meta domain.ChangeMeta) (domain.EntityVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	timeline := m.timeline(kind, businessID)
	if len(timeline) > 0 {
		current := timeline[len(timeline)-1]
		if !current.IsDeleted {
			return domain.EntityVersion{}, &domain.ConflictError{Kind: kind, BusinessID: businessID}
		}
		return m.append(kind, businessID, attrs, false, meta), nil
	}

	version := domain.EntityVersion{
		SurrogateID:   uuid.New(),
		BusinessID:    businessID,
		Kind:          kind,
		Attributes:    cloneAttrs(attrs),
		EffectiveFrom: time.Now().UTC(),
		EffectiveTo:   domain.MaxDate,
		IsCurrent:     true,
		Version:       1,
		CreatedBy:     meta.Actor,
		ChangeReason:  meta.Reason,
		Origin:        meta.Origin,
	}
	m.store(kind, businessID, version)
	return version, nil
}

func (m *MemoryStore) Update(ctx context.Context, kind domain.ResourceKind, businessID string, attrs map[string]any, meta domain.ChangeMeta) (domain.EntityVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	timeline := m.timeline(kind, businessID)
	if len(timeline) == 0 || timeline[len(timeline)-1].IsDeleted {
		return domain.EntityVersion{}, &domain.NotFoundError{Kind: kind, BusinessID: businessID}
	}
	return m.append(kind, businessID, attrs, false, meta), nil
}

func (m *MemoryStore) SoftDelete(ctx context.Context, kind domain.ResourceKind, businessID string, meta domain.ChangeMeta) (domain.EntityVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	timeline := m.timeline(kind, businessID)
	if len(timeline) == 0 || timeline[len(timeline)-1].IsDeleted {
		return domain.EntityVersion{}, &domain.NotFoundError{Kind: kind, BusinessID: businessID}
	}
	current := timeline[len(timeline)-1]
	return m.append(kind, businessID, current.Attributes, true, meta), nil
}

func (m *MemoryStore) GetCurrent(ctx context.Context, kind domain.ResourceKind, businessID string) (domain.EntityVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	timeline := m.timeline(kind, businessID)
	if len(timeline) == 0 {
		return domain.EntityVersion{}, &domain.NotFoundError{Kind: kind, BusinessID: businessID}
	}
	current := timeline[len(timeline)-1]
	if current.IsDeleted || !current.IsCurrent {
		return domain.EntityVersion{}, &domain.NotFoundError{Kind: kind, BusinessID: businessID}
	}
	return cloneVersion(current), nil
}

func (m *MemoryStore) GetAt(ctx context.Context, kind domain.ResourceKind, businessID string, ts time.Time) (domain.EntityVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, version := range m.timeline(kind, businessID) {
		if version.Covers(ts) {
			return cloneVersion(version), nil
		}
	}
	return domain.EntityVersion{}, &domain.NotFoundError{Kind: kind, BusinessID: businessID}
}

func (m *MemoryStore) GetHistory(ctx context.Context, kind domain.ResourceKind, businessID string) ([]domain.EntityVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	timeline := m.timeline(kind, businessID)
	out := make([]domain.EntityVersion, len(timeline))
	for i, version := range timeline {
		out[i] = cloneVersion(version)
	}
	return out, nil
}

func (m *MemoryStore) ListCurrent(ctx context.Context, kind domain.ResourceKind) ([]domain.EntityVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []domain.EntityVersion{}
	for _, timeline := range m.versions[kind] {
		current := timeline[len(timeline)-1]
		if current.IsCurrent && !current.IsDeleted {
			out = append(out, cloneVersion(current))
		}
	}
	return out, nil
}

// append expires the current head and adds version N+1. Caller holds the lock.
func (m *MemoryStore) append(kind domain.ResourceKind, businessID string, attrs map[string]any, deleted bool, meta domain.ChangeMeta) domain.EntityVersion {
	timeline := m.timeline(kind, businessID)
	now := time.Now().UTC()

	head := &m.versions[kind][businessID][len(timeline)-1]
	head.IsCurrent = false
	head.EffectiveTo = now

	next := domain.EntityVersion{
		SurrogateID:   uuid.New(),
		BusinessID:    businessID,
		Kind:          kind,
		Attributes:    cloneAttrs(attrs),
		EffectiveFrom: now,
		EffectiveTo:   domain.MaxDate,
		IsCurrent:     true,
		IsDeleted:     deleted,
		Version:       head.Version + 1,
		CreatedBy:     meta.Actor,
		ChangeReason:  meta.Reason,
		Origin:        meta.Origin,
	}
	m.store(kind, businessID, next)
	return cloneVersion(next)
}

func (m *MemoryStore) timeline(kind domain.ResourceKind, businessID string) []domain.EntityVersion {
	return m.versions[kind][businessID]
}

func (m *MemoryStore) store(kind domain.ResourceKind, businessID string, version domain.EntityVersion) {
	if m.versions[kind] == nil {
		m.versions[kind] = map[string][]domain.EntityVersion{}
	}
	m.versions[kind][businessID] = append(m.versions[kind][businessID], version)
}

func cloneAttrs(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

func cloneVersion(v domain.EntityVersion) domain.EntityVersion {
	v.Attributes = cloneAttrs(v.Attributes)
	return v
}

// MemoryAuditSink collects audit records in memory for tests.
type MemoryAuditSink struct {
	mu      sync.Mutex
	Records []domain.AuditRecord
}

func NewMemoryAuditSink() *MemoryAuditSink { return &MemoryAuditSink{} }

func (s *MemoryAuditSink) Record(ctx context.Context, rec domain.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = int64(len(s.Records) + 1)
	rec.CreatedAt = time.Now().UTC()
	s.Records = append(s.Records, rec)
	return nil
}

func (s *MemoryAuditSink) ListByBusinessID(ctx context.Context, kind domain.ResourceKind, businessID string) ([]domain.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.AuditRecord{}
	for _, rec := range s.Records {
		if rec.Kind == kind && rec.BusinessID == businessID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// MemoryNotificationSink collects notifications in memory for tests.
type MemoryNotificationSink struct {
	mu            sync.Mutex
	Notifications []domain.Notification
}

func NewMemoryNotificationSink() *MemoryNotificationSink { return &MemoryNotificationSink{} }

func (s *MemoryNotificationSink) Notify(ctx context.Context, n domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = int64(len(s.Notifications) + 1)
	n.CreatedAt = time.Now().UTC()
	s.Notifications = append(s.Notifications, n)
	return nil
}

// MemorySyncJobStore records sync executions in memory for tests.
type MemorySyncJobStore struct {
	mu   sync.Mutex
	Jobs []domain.SyncJobRecord
}

func NewMemorySyncJobStore() *MemorySyncJobStore { return &MemorySyncJobStore{} }

// Seed pre-loads a record, e.g. a RUNNING job left by a dead process.
func (s *MemorySyncJobStore) Seed(rec domain.SyncJobRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Jobs = append(s.Jobs, rec)
}

func (s *MemorySyncJobStore) Begin(ctx context.Context, syncType domain.SyncType) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := domain.SyncJobRecord{
		ID:        uuid.New(),
		Type:      syncType,
		Status:    domain.SyncJobRunning,
		StartedAt: time.Now().UTC(),
	}
	s.Jobs = append(s.Jobs, rec)
	return rec.ID, nil
}

func (s *MemorySyncJobStore) Finish(ctx context.Context, id uuid.UUID, status domain.SyncJobStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Jobs {
		if s.Jobs[i].ID == id && s.Jobs[i].Status == domain.SyncJobRunning {
			now := time.Now().UTC()
			s.Jobs[i].Status = status
			s.Jobs[i].Error = errMsg
			s.Jobs[i].FinishedAt = &now
			return nil
		}
	}
	return &domain.NotFoundError{Kind: "sync_job", BusinessID: id.String()}
}

func (s *MemorySyncJobStore) MarkInterrupted(ctx context.Context) ([]domain.SyncJobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	interrupted := []domain.SyncJobRecord{}
	for i := range s.Jobs {
		if s.Jobs[i].Status == domain.SyncJobRunning {
			now := time.Now().UTC()
			s.Jobs[i].Status = domain.SyncJobInterrupted
			s.Jobs[i].FinishedAt = &now
			interrupted = append(interrupted, s.Jobs[i])
		}
	}
	return interrupted, nil
}
