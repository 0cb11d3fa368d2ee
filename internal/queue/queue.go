// Package queue implements the delayed/invisible-message primitive driving
// both the provisioning consumer and the background sync scheduler. A message,
// once received, is hidden from other consumers for a visibility window; a
// message that is not deleted reappears after that window elapses.
package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Queue names used by the execution model.
const (
	ProvisioningQueue = "provisioning"
	SyncQueue         = "sync"
)

// Message is one queued unit of delivery. DeliveryCount counts every receive,
// including the current one.
type Message struct {
	ID            uuid.UUID
	Queue         string
	Payload       []byte
	DeliveryCount int
	VisibleAt     time.Time
	EnqueuedAt    time.Time
}

// Queue is the delayed-message contract. Enqueue-with-delay stands in for a
// timer service; swapping in a real broker only requires another
// implementation of this interface.
type Queue interface {
	// Enqueue makes a message deliverable after the given delay.
	Enqueue(ctx context.Context, queue string, payload []byte, delay time.Duration) (uuid.UUID, error)

	// Receive returns the next visible message, hiding it for the visibility
	// window, or nil when the queue is empty.
	Receive(ctx context.Context, queue string) (*Message, error)

	// Delete removes a message permanently. Only called after the work it
	// references reached a terminal state.
	Delete(ctx context.Context, id uuid.UUID) error

	// DeadLetter diverts a message that exhausted its retry budget.
	DeadLetter(ctx context.Context, id uuid.UUID, lastError string) error

	// Size counts messages in a queue regardless of visibility.
	Size(ctx context.Context, queue string) (int, error)
}
