package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is an in-memory Queue with the same visibility semantics as the
// Postgres implementation. It backs worker tests; a zero visibility window
// makes undeleted messages immediately redeliverable.
type MemoryQueue struct {
	mu          sync.Mutex
	visibility  time.Duration
	messages    map[uuid.UUID]*Message
	DeadLetters []Message // messages diverted by DeadLetter, in order
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue(visibility time.Duration) *MemoryQueue {
	return &MemoryQueue{
		visibility: visibility,
		messages:   map[uuid.UUID]*Message{},
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, queue string, payload []byte, delay time.Duration) (uuid.UUID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	msg := &Message{
		ID:         uuid.New(),
		Queue:      queue,
		Payload:    append([]byte(nil), payload...),
		VisibleAt:  now.Add(delay),
		EnqueuedAt: now,
	}
	q.messages[msg.ID] = msg
	return msg.ID, nil
}

func (q *MemoryQueue) Receive(ctx context.Context, queue string) (*Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	candidates := []*Message{}
	for _, msg := range q.messages {
		if msg.Queue == queue && !msg.VisibleAt.After(now) {
			candidates = append(candidates, msg)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].EnqueuedAt.Before(candidates[j].EnqueuedAt)
	})

	picked := candidates[0]
	picked.DeliveryCount++
	picked.VisibleAt = now.Add(q.visibility)

	out := *picked
	out.Payload = append([]byte(nil), picked.Payload...)
	return &out, nil
}

func (q *MemoryQueue) Delete(ctx context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.messages, id)
	return nil
}

func (q *MemoryQueue) DeadLetter(ctx context.Context, id uuid.UUID, lastError string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if msg, ok := q.messages[id]; ok {
		q.DeadLetters = append(q.DeadLetters, *msg)
		delete(q.messages, id)
	}
	return nil
}

func (q *MemoryQueue) Size(ctx context.Context, queue string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	count := 0
	for _, msg := range q.messages {
		if msg.Queue == queue {
			count++
		}
	}
	return count, nil
}
