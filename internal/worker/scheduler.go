package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/rpattn/shareflow/internal/domain"
	"github.com/rpattn/shareflow/internal/queue"
	"github.com/rpattn/shareflow/internal/repository"
)

// SyncHandler implements one periodic background synchronization.
type SyncHandler interface {
	Type() domain.SyncType
	Run(ctx context.Context) error
}

// SyncMessage is the payload of a recurring sync queue message. Exactly one
// message per sync type exists at a time, so all runs of one type are
// serialized by the message lifecycle itself.
type SyncMessage struct {
	SyncType domain.SyncType `json:"sync_type"`
}

// SchedulerConfig tunes the sync scheduler.
type SchedulerConfig struct {
	// Intervals gives the recurrence interval per sync type.
	Intervals map[domain.SyncType]time.Duration
	// MaxDeliveries bounds redeliveries of a failing message before it is
	// diverted to the dead-letter queue.
	MaxDeliveries int
	// PollInterval is the idle sleep between empty receives.
	PollInterval time.Duration
}

// Scheduler drives the self-rescheduling background sync loop. The queue's
// delivery delay stands in for a timer service: finishing a run enqueues the
// next occurrence with the type's interval as delay.
type Scheduler struct {
	queue         queue.Queue
	jobs          repository.SyncJobStore
	notifications repository.NotificationSink
	handlers      map[domain.SyncType]SyncHandler
	cfg           SchedulerConfig
}

// NewScheduler wires the sync scheduler.
func NewScheduler(q queue.Queue, jobs repository.SyncJobStore, notifications repository.NotificationSink, handlers []SyncHandler, cfg SchedulerConfig) *Scheduler {
	byType := make(map[domain.SyncType]SyncHandler, len(handlers))
	for _, h := range handlers {
		byType[h.Type()] = h
	}
	return &Scheduler{queue: q, jobs: jobs, notifications: notifications, handlers: byType, cfg: cfg}
}

// Startup performs crash recovery and first-deployment seeding: sync jobs
// still RUNNING from a dead process instance become INTERRUPTED with an alert,
// and an empty sync queue is reseeded with one message per sync type.
func (s *Scheduler) Startup(ctx context.Context) error {
	interrupted, err := s.jobs.MarkInterrupted(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover interrupted sync jobs: %w", err)
	}
	for _, job := range interrupted {
		log.Printf("sync job %s (%s) was left running by a previous instance, marked INTERRUPTED", job.ID, job.Type)
		s.alert(ctx, domain.SeverityWarning, "sync job interrupted",
			fmt.Sprintf("sync job %s of type %s was interrupted by a process restart", job.ID, job.Type))
	}

	size, err := s.queue.Size(ctx, queue.SyncQueue)
	if err != nil {
		return fmt.Errorf("failed to inspect sync queue: %w", err)
	}
	if size > 0 {
		return nil
	}

	for syncType := range s.handlers {
		payload, err := json.Marshal(SyncMessage{SyncType: syncType})
		if err != nil {
			return fmt.Errorf("failed to marshal seed message: %w", err)
		}
		if _, err := s.queue.Enqueue(ctx, queue.SyncQueue, payload, 0); err != nil {
			return fmt.Errorf("failed to seed sync queue: %w", err)
		}
		log.Printf("seeded sync queue with initial %s message", syncType)
	}
	return nil
}

// Run polls the sync queue until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("sync scheduler started")
	for {
		select {
		case <-ctx.Done():
			log.Printf("sync scheduler stopped")
			return
		default:
		}

		msg, err := s.queue.Receive(ctx, queue.SyncQueue)
		if err != nil {
			log.Printf("failed to receive sync message: %v", err)
			s.sleep(ctx)
			continue
		}
		if msg == nil {
			s.sleep(ctx)
			continue
		}

		s.Handle(ctx, msg)
	}
}

// Handle processes one sync message: record the execution, run the handler,
// and either reschedule the next occurrence or let the message retry. Past
// the delivery budget the message moves to the dead-letter queue with an
// alert instead of retrying forever.
func (s *Scheduler) Handle(ctx context.Context, msg *queue.Message) {
	var payload SyncMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("dropping malformed sync message %s: %v", msg.ID, err)
		if err := s.queue.Delete(ctx, msg.ID); err != nil {
			log.Printf("failed to delete malformed sync message %s: %v", msg.ID, err)
		}
		return
	}

	handler, ok := s.handlers[payload.SyncType]
	if !ok {
		log.Printf("no handler for sync type %q, dead-lettering message %s", payload.SyncType, msg.ID)
		if err := s.queue.DeadLetter(ctx, msg.ID, "unknown sync type"); err != nil {
			log.Printf("failed to dead-letter sync message %s: %v", msg.ID, err)
		}
		return
	}

	jobID, err := s.jobs.Begin(ctx, payload.SyncType)
	if err != nil {
		log.Printf("failed to record sync job start for %s: %v", payload.SyncType, err)
		return
	}

	runErr := handler.Run(ctx)
	if runErr == nil {
		if err := s.jobs.Finish(ctx, jobID, domain.SyncJobSucceeded, ""); err != nil {
			log.Printf("failed to record sync job success for %s: %v", payload.SyncType, err)
		}
		if err := s.queue.Delete(ctx, msg.ID); err != nil {
			log.Printf("failed to delete sync message %s: %v", msg.ID, err)
			return
		}
		s.scheduleNext(ctx, payload.SyncType)
		return
	}

	log.Printf("sync %s failed on delivery %d: %v", payload.SyncType, msg.DeliveryCount, runErr)
	if err := s.jobs.Finish(ctx, jobID, domain.SyncJobFailed, runErr.Error()); err != nil {
		log.Printf("failed to record sync job failure for %s: %v", payload.SyncType, err)
	}

	if msg.DeliveryCount > s.cfg.MaxDeliveries {
		if err := s.queue.DeadLetter(ctx, msg.ID, runErr.Error()); err != nil {
			log.Printf("failed to dead-letter sync message %s: %v", msg.ID, err)
			return
		}
		s.alert(ctx, domain.SeverityError, "sync dead-lettered",
			fmt.Sprintf("sync %s exhausted %d deliveries, last error: %v", payload.SyncType, msg.DeliveryCount, runErr))
		return
	}
	// Not deleted: the message reappears after the visibility window.
}

// scheduleNext enqueues the next occurrence with the type's interval as
// delivery delay.
func (s *Scheduler) scheduleNext(ctx context.Context, syncType domain.SyncType) {
	interval := s.cfg.Intervals[syncType]
	payload, err := json.Marshal(SyncMessage{SyncType: syncType})
	if err != nil {
		log.Printf("failed to marshal next %s message: %v", syncType, err)
		return
	}
	if _, err := s.queue.Enqueue(ctx, queue.SyncQueue, payload, interval); err != nil {
		log.Printf("failed to schedule next %s run: %v", syncType, err)
	}
}

func (s *Scheduler) alert(ctx context.Context, severity domain.NotificationSeverity, subject, message string) {
	n := domain.Notification{Severity: severity, Subject: subject, Message: message}
	if err := s.notifications.Notify(ctx, n); err != nil {
		log.Printf("failed to record notification %q: %v", subject, err)
	}
}

func (s *Scheduler) sleep(ctx context.Context) {
	timer := time.NewTimer(s.cfg.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
