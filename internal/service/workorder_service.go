// Package service exposes the submission boundary: submit a config, query a
// work order's status, read its full lifecycle history.
package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rpattn/shareflow/internal/domain"
	"github.com/rpattn/shareflow/internal/queue"
	"github.com/rpattn/shareflow/internal/repository"
	"github.com/rpattn/shareflow/internal/worker"
)

// Service decouples ingestion from execution: Submit only persists the work
// order and enqueues a message; a consumer picks it up later.
type Service struct {
	workOrders *repository.WorkOrderStore
	queue      queue.Queue
}

// NewService wires the work-order service.
func NewService(workOrders *repository.WorkOrderStore, q queue.Queue) *Service {
	return &Service{workOrders: workOrders, queue: q}
}

// Status is the externally visible view of one work order.
type Status struct {
	ID       string                 `json:"id"`
	Status   domain.WorkOrderStatus `json:"status"`
	Strategy domain.Strategy        `json:"strategy"`
	Progress string                 `json:"progress,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// Submit validates and persists a config bundle and enqueues it for
// execution. A validation failure still persists the work order (status
// VALIDATION_FAILED, never retried) and returns both the id and the error.
func (s *Service) Submit(ctx context.Context, cfg domain.SharingConfig) (string, error) {
	if verr := cfg.Validate(); verr != nil {
		wo, err := s.workOrders.Create(ctx, cfg, domain.WorkOrderValidationFailed, verr.Error())
		if err != nil {
			return "", err
		}
		return wo.ID, verr
	}

	wo, err := s.workOrders.Create(ctx, cfg, domain.WorkOrderInProgress, "")
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(worker.ProvisionMessage{WorkOrderID: wo.ID})
	if err != nil {
		return "", fmt.Errorf("failed to marshal provisioning message: %w", err)
	}
	if _, err := s.queue.Enqueue(ctx, queue.ProvisioningQueue, payload, 0); err != nil {
		return "", fmt.Errorf("failed to enqueue work order %s: %w", wo.ID, err)
	}
	return wo.ID, nil
}

// GetStatus returns the current status view of a work order.
func (s *Service) GetStatus(ctx context.Context, id string) (Status, error) {
	wo, err := s.workOrders.Get(ctx, id)
	if err != nil {
		return Status{}, err
	}
	return Status{
		ID:       wo.ID,
		Status:   wo.Status,
		Strategy: wo.Strategy,
		Progress: wo.Progress,
		Error:    wo.Error,
	}, nil
}

// GetHistory returns every lifecycle version of a work order in order.
func (s *Service) GetHistory(ctx context.Context, id string) ([]Status, error) {
	orders, err := s.workOrders.History(ctx, id)
	if err != nil {
		return nil, err
	}

	out := make([]Status, len(orders))
	for i, wo := range orders {
		out[i] = Status{
			ID:       wo.ID,
			Status:   wo.Status,
			Strategy: wo.Strategy,
			Progress: wo.Progress,
			Error:    wo.Error,
		}
	}
	return out, nil
}
