package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rpattn/shareflow/internal/domain"
	"github.com/rpattn/shareflow/internal/queue"
	"github.com/rpattn/shareflow/internal/repository"
	"github.com/rpattn/shareflow/internal/worker"
)

func newServiceFixture() (*Service, *queue.MemoryQueue, *repository.WorkOrderStore) {
	workOrders := repository.NewWorkOrderStore(repository.NewMemoryStore())
	q := queue.NewMemoryQueue(0)
	return NewService(workOrders, q), q, workOrders
}

func TestSubmitEnqueuesValidConfig(t *testing.T) {
	svc, q, _ := newServiceFixture()
	ctx := context.Background()

	cfg := domain.SharingConfig{
		Strategy:  domain.StrategyCreate,
		Requester: "alice",
		Shares:    []domain.ShareSpec{{Name: "share-a", Objects: []string{"orders"}}},
	}

	id, err := svc.Submit(ctx, cfg)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	status, err := svc.GetStatus(ctx, id)
	if err != nil {
		t.Fatalf("failed to load status: %v", err)
	}
	if status.Status != domain.WorkOrderInProgress {
		t.Errorf("expected IN_PROGRESS, got %s", status.Status)
	}

	msg, err := q.Receive(ctx, queue.ProvisioningQueue)
	if err != nil || msg == nil {
		t.Fatalf("expected one enqueued message, got %v", err)
	}
	var payload worker.ProvisionMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload.WorkOrderID != id {
		t.Errorf("expected message for work order %s, got %s", id, payload.WorkOrderID)
	}
}

func TestSubmitPersistsValidationFailure(t *testing.T) {
	svc, q, _ := newServiceFixture()
	ctx := context.Background()

	cfg := domain.SharingConfig{
		Strategy: domain.StrategyCreate,
		Shares:   []domain.ShareSpec{{Name: "share-a"}},
	}

	id, err := svc.Submit(ctx, cfg)
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if id == "" {
		t.Fatalf("expected the failed submission to still return an id")
	}

	status, err := svc.GetStatus(ctx, id)
	if err != nil {
		t.Fatalf("failed to load status: %v", err)
	}
	if status.Status != domain.WorkOrderValidationFailed {
		t.Errorf("expected VALIDATION_FAILED, got %s", status.Status)
	}
	if status.Error == "" {
		t.Errorf("expected the validation message persisted")
	}

	// Invalid submissions are never executed.
	if size, _ := q.Size(ctx, queue.ProvisioningQueue); size != 0 {
		t.Errorf("expected no message for an invalid config, got %d", size)
	}
}

func TestGetHistoryReturnsLifecycle(t *testing.T) {
	svc, _, workOrders := newServiceFixture()
	ctx := context.Background()

	cfg := domain.SharingConfig{
		Strategy:  domain.StrategyCreate,
		Requester: "alice",
		Shares:    []domain.ShareSpec{{Name: "share-a"}},
	}
	id, err := svc.Submit(ctx, cfg)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := workOrders.Transition(ctx, id, domain.WorkOrderCompleted, "done", ""); err != nil {
		t.Fatalf("failed to transition: %v", err)
	}

	history, err := svc.GetHistory(ctx, id)
	if err != nil {
		t.Fatalf("failed to load history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 lifecycle entries, got %d", len(history))
	}
	if history[0].Status != domain.WorkOrderInProgress || history[1].Status != domain.WorkOrderCompleted {
		t.Errorf("unexpected lifecycle: %s then %s", history[0].Status, history[1].Status)
	}
}
