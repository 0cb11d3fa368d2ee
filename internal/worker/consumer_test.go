package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rpattn/shareflow/internal/domain"
	"github.com/rpattn/shareflow/internal/provisioner"
	"github.com/rpattn/shareflow/internal/queue"
	"github.com/rpattn/shareflow/internal/reconcile"
	"github.com/rpattn/shareflow/internal/repository"
)

// okRemote accepts every provisioning call.
type okRemote struct{}

func (okRemote) CreateRecipient(ctx context.Context, name, kind string, attrs map[string]string) (string, error) {
	return "remote-" + name, nil
}
func (okRemote) DeleteRecipient(ctx context.Context, name string) error { return nil }
func (okRemote) CreateShare(ctx context.Context, name string, attrs map[string]string) (string, error) {
	return "remote-" + name, nil
}
func (okRemote) DeleteShare(ctx context.Context, name string) error { return nil }
func (okRemote) AttachObjects(ctx context.Context, shareName string, objects []string) error {
	return nil
}
func (okRemote) DetachObjects(ctx context.Context, shareName string, objects []string) error {
	return nil
}
func (okRemote) AttachRecipients(ctx context.Context, shareName string, recipients []string) error {
	return nil
}
func (okRemote) DetachRecipients(ctx context.Context, shareName string, recipients []string) error {
	return nil
}
func (okRemote) CreatePipeline(ctx context.Context, name string, config map[string]string) (string, error) {
	return "remote-" + name, nil
}
func (okRemote) DeletePipeline(ctx context.Context, name string) error { return nil }
func (okRemote) SchedulePipeline(ctx context.Context, pipelineID, cronOrContinuous string) error {
	return nil
}
func (okRemote) ListRecipientAddresses(ctx context.Context, name string) ([]string, error) {
	return nil, nil
}
func (okRemote) ListShareObjects(ctx context.Context, name string) ([]string, error) {
	return nil, nil
}

type consumerFixture struct {
	consumer   *Consumer
	queue      *queue.MemoryQueue
	store      *repository.MemoryStore
	workOrders *repository.WorkOrderStore
}

func newConsumerFixture() *consumerFixture {
	store := repository.NewMemoryStore()
	workOrders := repository.NewWorkOrderStore(store)
	audit := repository.NewMemoryAuditSink()
	q := queue.NewMemoryQueue(0)

	orchestrator := provisioner.NewOrchestrator(store, workOrders, audit, okRemote{})
	reconciler := reconcile.NewEngine(store, workOrders, audit, okRemote{})
	return &consumerFixture{
		consumer:   NewConsumer(q, workOrders, orchestrator, reconciler, time.Millisecond),
		queue:      q,
		store:      store,
		workOrders: workOrders,
	}
}

func (f *consumerFixture) enqueueAndReceive(t *testing.T, payload []byte) *queue.Message {
	t.Helper()
	ctx := context.Background()
	if _, err := f.queue.Enqueue(ctx, queue.ProvisioningQueue, payload, 0); err != nil {
		t.Fatalf("failed to enqueue: %v", err)
	}
	msg, err := f.queue.Receive(ctx, queue.ProvisioningQueue)
	if err != nil || msg == nil {
		t.Fatalf("failed to receive message: %v", err)
	}
	return msg
}

func TestConsumerRunsCreateStrategy(t *testing.T) {
	f := newConsumerFixture()
	ctx := context.Background()

	cfg := domain.SharingConfig{
		Strategy:  domain.StrategyCreate,
		Requester: "alice",
		Shares:    []domain.ShareSpec{{Name: "share-a", Objects: []string{"orders"}}},
	}
	wo, err := f.workOrders.Create(ctx, cfg, domain.WorkOrderInProgress, "")
	if err != nil {
		t.Fatalf("failed to create work order: %v", err)
	}

	payload, _ := json.Marshal(ProvisionMessage{WorkOrderID: wo.ID})
	msg := f.enqueueAndReceive(t, payload)

	if err := f.consumer.Handle(ctx, msg); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	done, err := f.workOrders.Get(ctx, wo.ID)
	if err != nil {
		t.Fatalf("failed to load work order: %v", err)
	}
	if done.Status != domain.WorkOrderCompleted {
		t.Errorf("expected COMPLETED, got %s (%s)", done.Status, done.Error)
	}

	if size, _ := f.queue.Size(ctx, queue.ProvisioningQueue); size != 0 {
		t.Errorf("expected message deleted after terminal status, queue size %d", size)
	}
}

func TestConsumerDropsMalformedPayload(t *testing.T) {
	f := newConsumerFixture()
	ctx := context.Background()

	msg := f.enqueueAndReceive(t, []byte("not json"))
	if err := f.consumer.Handle(ctx, msg); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	if size, _ := f.queue.Size(ctx, queue.ProvisioningQueue); size != 0 {
		t.Errorf("expected malformed message dropped, queue size %d", size)
	}
}

func TestConsumerDeletesMessageForTerminalWorkOrder(t *testing.T) {
	f := newConsumerFixture()
	ctx := context.Background()

	cfg := domain.SharingConfig{
		Strategy:  domain.StrategyCreate,
		Requester: "alice",
		Shares:    []domain.ShareSpec{{Name: "share-a"}},
	}
	wo, err := f.workOrders.Create(ctx, cfg, domain.WorkOrderInProgress, "")
	if err != nil {
		t.Fatalf("failed to create work order: %v", err)
	}
	if _, err := f.workOrders.Transition(ctx, wo.ID, domain.WorkOrderCompleted, "", ""); err != nil {
		t.Fatalf("failed to complete work order: %v", err)
	}

	payload, _ := json.Marshal(ProvisionMessage{WorkOrderID: wo.ID})
	msg := f.enqueueAndReceive(t, payload)

	if err := f.consumer.Handle(ctx, msg); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	done, _ := f.workOrders.Get(ctx, wo.ID)
	if done.Version != 2 {
		t.Errorf("redelivery must not touch a terminal work order, got version %d", done.Version)
	}
	if size, _ := f.queue.Size(ctx, queue.ProvisioningQueue); size != 0 {
		t.Errorf("expected redelivered message deleted, queue size %d", size)
	}
}

func TestConsumerFailsUnknownStrategy(t *testing.T) {
	f := newConsumerFixture()
	ctx := context.Background()

	cfg := domain.SharingConfig{
		Strategy:  "UPSERT",
		Requester: "alice",
		Shares:    []domain.ShareSpec{{Name: "share-a"}},
	}
	wo, err := f.workOrders.Create(ctx, cfg, domain.WorkOrderInProgress, "")
	if err != nil {
		t.Fatalf("failed to create work order: %v", err)
	}

	payload, _ := json.Marshal(ProvisionMessage{WorkOrderID: wo.ID})
	msg := f.enqueueAndReceive(t, payload)

	if err := f.consumer.Handle(ctx, msg); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	done, _ := f.workOrders.Get(ctx, wo.ID)
	if done.Status != domain.WorkOrderFailed {
		t.Errorf("expected FAILED for unknown strategy, got %s", done.Status)
	}
}
