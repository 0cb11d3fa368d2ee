package domain

import (
	"time"

	"github.com/google/uuid"
)

// SyncType identifies one periodic background synchronization.
type SyncType string

const (
	SyncDirectory SyncType = "directory"
	SyncCatalog   SyncType = "catalog"
	SyncMetrics   SyncType = "metrics"
)

// AllSyncTypes lists every sync type the scheduler seeds and drives.
var AllSyncTypes = []SyncType{SyncDirectory, SyncCatalog, SyncMetrics}

// SyncJobStatus is the lifecycle of one sync execution record.
type SyncJobStatus string

const (
	SyncJobRunning     SyncJobStatus = "RUNNING"
	SyncJobSucceeded   SyncJobStatus = "SUCCEEDED"
	SyncJobFailed      SyncJobStatus = "FAILED"
	SyncJobInterrupted SyncJobStatus = "INTERRUPTED"
)

// SyncJobRecord is one append-only execution record of a background sync.
// A RUNNING record left behind by a dead process is transitioned to
// INTERRUPTED on the next startup.
type SyncJobRecord struct {
	ID         uuid.UUID     `json:"id"`
	Type       SyncType      `json:"type"`
	Status     SyncJobStatus `json:"status"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}
