package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/shareflow/internal/domain"
	"github.com/rpattn/shareflow/internal/queue"
	"github.com/rpattn/shareflow/internal/repository"
)

type stubHandler struct {
	typ  domain.SyncType
	err  error
	runs int
}

func (h *stubHandler) Type() domain.SyncType { return h.typ }

func (h *stubHandler) Run(ctx context.Context) error {
	h.runs++
	return h.err
}

type schedulerFixture struct {
	scheduler     *Scheduler
	queue         *queue.MemoryQueue
	jobs          *repository.MemorySyncJobStore
	notifications *repository.MemoryNotificationSink
}

func newSchedulerFixture(handlers []SyncHandler, maxDeliveries int) *schedulerFixture {
	q := queue.NewMemoryQueue(0)
	jobs := repository.NewMemorySyncJobStore()
	notifications := repository.NewMemoryNotificationSink()
	cfg := SchedulerConfig{
		Intervals:     map[domain.SyncType]time.Duration{domain.SyncDirectory: time.Hour},
		MaxDeliveries: maxDeliveries,
		PollInterval:  time.Millisecond,
	}
	return &schedulerFixture{
		scheduler:     NewScheduler(q, jobs, notifications, handlers, cfg),
		queue:         q,
		jobs:          jobs,
		notifications: notifications,
	}
}

func TestStartupRecoversInterruptedJobs(t *testing.T) {
	handler := &stubHandler{typ: domain.SyncDirectory}
	f := newSchedulerFixture([]SyncHandler{handler}, 5)
	ctx := context.Background()

	f.jobs.Seed(domain.SyncJobRecord{
		ID:        uuid.New(),
		Type:      domain.SyncDirectory,
		Status:    domain.SyncJobRunning,
		StartedAt: time.Now().UTC().Add(-time.Hour),
	})

	if err := f.scheduler.Startup(ctx); err != nil {
		t.Fatalf("startup failed: %v", err)
	}

	if f.jobs.Jobs[0].Status != domain.SyncJobInterrupted {
		t.Errorf("expected RUNNING job marked INTERRUPTED, got %s", f.jobs.Jobs[0].Status)
	}

	warnings := 0
	for _, n := range f.notifications.Notifications {
		if n.Severity == domain.SeverityWarning {
			warnings++
		}
	}
	if warnings != 1 {
		t.Errorf("expected exactly one interruption alert, got %d", warnings)
	}
}

func TestStartupSeedsEmptyQueue(t *testing.T) {
	handler := &stubHandler{typ: domain.SyncDirectory}
	f := newSchedulerFixture([]SyncHandler{handler}, 5)
	ctx := context.Background()

	if err := f.scheduler.Startup(ctx); err != nil {
		t.Fatalf("startup failed: %v", err)
	}

	size, _ := f.queue.Size(ctx, queue.SyncQueue)
	if size != 1 {
		t.Fatalf("expected one seeded message per handler, got %d", size)
	}

	// A second startup must not duplicate the recurring message.
	if err := f.scheduler.Startup(ctx); err != nil {
		t.Fatalf("second startup failed: %v", err)
	}
	if size, _ := f.queue.Size(ctx, queue.SyncQueue); size != 1 {
		t.Errorf("expected seeding skipped on non-empty queue, got %d messages", size)
	}
}

func TestSyncSuccessSchedulesNextOccurrence(t *testing.T) {
	handler := &stubHandler{typ: domain.SyncDirectory}
	f := newSchedulerFixture([]SyncHandler{handler}, 5)
	ctx := context.Background()

	if err := f.scheduler.Startup(ctx); err != nil {
		t.Fatalf("startup failed: %v", err)
	}
	msg, err := f.queue.Receive(ctx, queue.SyncQueue)
	if err != nil || msg == nil {
		t.Fatalf("failed to receive seeded message: %v", err)
	}

	f.scheduler.Handle(ctx, msg)

	if handler.runs != 1 {
		t.Errorf("expected one handler run, got %d", handler.runs)
	}
	if len(f.jobs.Jobs) != 1 || f.jobs.Jobs[0].Status != domain.SyncJobSucceeded {
		t.Errorf("expected one SUCCEEDED job record, got %+v", f.jobs.Jobs)
	}

	// The next occurrence exists but is delayed by the interval.
	size, _ := f.queue.Size(ctx, queue.SyncQueue)
	if size != 1 {
		t.Fatalf("expected the next occurrence enqueued, got %d messages", size)
	}
	if early, _ := f.queue.Receive(ctx, queue.SyncQueue); early != nil {
		t.Errorf("next occurrence should not be visible before its interval elapses")
	}
}

func TestSyncFailureDeadLettersPastBudget(t *testing.T) {
	handler := &stubHandler{typ: domain.SyncDirectory, err: errors.New("directory down")}
	f := newSchedulerFixture([]SyncHandler{handler}, 5)
	ctx := context.Background()

	if err := f.scheduler.Startup(ctx); err != nil {
		t.Fatalf("startup failed: %v", err)
	}

	// Zero visibility makes every undeleted message instantly redeliverable.
	for {
		msg, err := f.queue.Receive(ctx, queue.SyncQueue)
		if err != nil {
			t.Fatalf("receive failed: %v", err)
		}
		if msg == nil {
			break
		}
		f.scheduler.Handle(ctx, msg)
	}

	// Threshold 5 allows deliveries 1..5 to retry; delivery 6 is diverted.
	if handler.runs != 6 {
		t.Errorf("expected 6 handler runs before dead-lettering, got %d", handler.runs)
	}
	if len(f.queue.DeadLetters) != 1 {
		t.Fatalf("expected one dead-lettered message, got %d", len(f.queue.DeadLetters))
	}
	if f.queue.DeadLetters[0].DeliveryCount != 6 {
		t.Errorf("expected dead-lettered message on delivery 6, got %d", f.queue.DeadLetters[0].DeliveryCount)
	}

	errorAlerts := 0
	for _, n := range f.notifications.Notifications {
		if n.Severity == domain.SeverityError {
			errorAlerts++
		}
	}
	if errorAlerts != 1 {
		t.Errorf("expected exactly one dead-letter alert, got %d", errorAlerts)
	}

	for _, job := range f.jobs.Jobs {
		if job.Status != domain.SyncJobFailed {
			t.Errorf("expected every execution recorded FAILED, got %s", job.Status)
		}
	}
}

func TestUnknownSyncTypeIsDeadLettered(t *testing.T) {
	handler := &stubHandler{typ: domain.SyncDirectory}
	f := newSchedulerFixture([]SyncHandler{handler}, 5)
	ctx := context.Background()

	payload, _ := json.Marshal(SyncMessage{SyncType: "weather"})
	if _, err := f.queue.Enqueue(ctx, queue.SyncQueue, payload, 0); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}
	msg, err := f.queue.Receive(ctx, queue.SyncQueue)
	if err != nil || msg == nil {
		t.Fatalf("failed to receive message: %v", err)
	}

	f.scheduler.Handle(ctx, msg)

	if len(f.queue.DeadLetters) != 1 {
		t.Errorf("expected unknown sync type dead-lettered, got %d", len(f.queue.DeadLetters))
	}
	if len(f.jobs.Jobs) != 0 {
		t.Errorf("expected no job record for an unroutable message, got %d", len(f.jobs.Jobs))
	}
}
