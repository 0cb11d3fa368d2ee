// Package worker drives the queue-based execution model: the provisioning
// consumer and the self-rescheduling background sync scheduler.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/rpattn/shareflow/internal/domain"
	"github.com/rpattn/shareflow/internal/provisioner"
	"github.com/rpattn/shareflow/internal/queue"
	"github.com/rpattn/shareflow/internal/reconcile"
	"github.com/rpattn/shareflow/internal/repository"
)

// ProvisionMessage is the payload of a provisioning queue message: just the
// reference to the unit of work.
type ProvisionMessage struct {
	WorkOrderID string `json:"work_order_id"`
}

// Consumer receives provisioning messages one at a time and dispatches to the
// saga or the reconciler based on the work order's strategy. The message is
// deleted only after the terminal status is persisted; a crash before that
// leads to at-least-once redelivery, which both execution paths tolerate.
type Consumer struct {
	queue        queue.Queue
	workOrders   *repository.WorkOrderStore
	orchestrator *provisioner.Orchestrator
	reconciler   *reconcile.Engine
	pollInterval time.Duration
}

// NewConsumer wires a provisioning consumer.
func NewConsumer(q queue.Queue, workOrders *repository.WorkOrderStore, orchestrator *provisioner.Orchestrator, reconciler *reconcile.Engine, pollInterval time.Duration) *Consumer {
	return &Consumer{
		queue:        q,
		workOrders:   workOrders,
		orchestrator: orchestrator,
		reconciler:   reconciler,
		pollInterval: pollInterval,
	}
}

// Run polls the provisioning queue until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	log.Printf("provisioning consumer started")
	for {
		select {
		case <-ctx.Done():
			log.Printf("provisioning consumer stopped")
			return
		default:
		}

		msg, err := c.queue.Receive(ctx, queue.ProvisioningQueue)
		if err != nil {
			log.Printf("failed to receive provisioning message: %v", err)
			c.sleep(ctx)
			continue
		}
		if msg == nil {
			c.sleep(ctx)
			continue
		}

		if err := c.Handle(ctx, msg); err != nil {
			// The message stays put and reappears after the visibility window.
			log.Printf("provisioning message %s will be redelivered: %v", msg.ID, err)
		}
	}
}

// Handle processes one provisioning message.
func (c *Consumer) Handle(ctx context.Context, msg *queue.Message) error {
	var payload ProvisionMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		// Unparseable payloads can never succeed; drop them.
		log.Printf("dropping malformed provisioning message %s: %v", msg.ID, err)
		return c.queue.Delete(ctx, msg.ID)
	}

	wo, err := c.workOrders.Get(ctx, payload.WorkOrderID)
	if err != nil {
		return fmt.Errorf("failed to load work order %s: %w", payload.WorkOrderID, err)
	}

	// A redelivery after the terminal status was persisted but before the
	// delete went through: nothing left to do.
	if wo.Status.Terminal() {
		return c.queue.Delete(ctx, msg.ID)
	}

	switch wo.Strategy {
	case domain.StrategyCreate:
		err = c.orchestrator.Run(ctx, wo)
	case domain.StrategyReconcile:
		err = c.reconciler.Run(ctx, wo)
	default:
		_, err = c.workOrders.Transition(ctx, wo.ID, domain.WorkOrderFailed, "", fmt.Sprintf("unknown strategy %q", wo.Strategy))
	}
	if err != nil {
		return err
	}

	return c.queue.Delete(ctx, msg.ID)
}

func (c *Consumer) sleep(ctx context.Context) {
	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
