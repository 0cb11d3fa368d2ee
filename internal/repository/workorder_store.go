package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rpattn/shareflow/internal/domain"
)

// WorkOrderStore layers work-order semantics over the generic versioned store.
// Every status transition is one more version of the same business id, so the
// provisioning lifecycle reads back as plain version history.
type WorkOrderStore struct {
	store VersionedStore
}

// NewWorkOrderStore wraps a versioned store.
func NewWorkOrderStore(store VersionedStore) *WorkOrderStore {
	return &WorkOrderStore{store: store}
}

// Create persists version 1 of a new work order and returns it.
func (s *WorkOrderStore) Create(ctx context.Context, cfg domain.SharingConfig, status domain.WorkOrderStatus, errMsg string) (domain.WorkOrder, error) {
	wo := domain.WorkOrder{
		ID:       uuid.NewString(),
		Strategy: cfg.Strategy,
		Status:   status,
		Error:    errMsg,
		Config:   cfg,
		Version:  1,
	}

	attrs, err := wo.Attributes()
	if err != nil {
		return domain.WorkOrder{}, err
	}

	meta := domain.ChangeMeta{Actor: cfg.Requester, Reason: "submitted", Origin: domain.OriginDocument}
	if _, err := s.store.Create(ctx, domain.KindWorkOrder, wo.ID, attrs, meta); err != nil {
		return domain.WorkOrder{}, fmt.Errorf("failed to persist work order: %w", err)
	}
	return wo, nil
}

// Get loads the current version of a work order.
func (s *WorkOrderStore) Get(ctx context.Context, id string) (domain.WorkOrder, error) {
	version, err := s.store.GetCurrent(ctx, domain.KindWorkOrder, id)
	if err != nil {
		return domain.WorkOrder{}, err
	}
	return domain.WorkOrderFromVersion(version)
}

// History returns every lifecycle version of a work order in order.
func (s *WorkOrderStore) History(ctx context.Context, id string) ([]domain.WorkOrder, error) {
	versions, err := s.store.GetHistory(ctx, domain.KindWorkOrder, id)
	if err != nil {
		return nil, err
	}

	orders := make([]domain.WorkOrder, len(versions))
	for i, version := range versions {
		order, err := domain.WorkOrderFromVersion(version)
		if err != nil {
			return nil, fmt.Errorf("failed to decode work order version %d: %w", version.Version, err)
		}
		orders[i] = order
	}
	return orders, nil
}

// Transition writes a new version carrying the given status, progress and
// error narrative.
func (s *WorkOrderStore) Transition(ctx context.Context, id string, status domain.WorkOrderStatus, progress, errMsg string) (domain.WorkOrder, error) {
	wo, err := s.Get(ctx, id)
	if err != nil {
		return domain.WorkOrder{}, err
	}
	if wo.Status.Terminal() {
		return wo, nil
	}

	wo.Status = status
	if progress != "" {
		wo.Progress = progress
	}
	wo.Error = errMsg

	attrs, err := wo.Attributes()
	if err != nil {
		return domain.WorkOrder{}, err
	}

	meta := domain.ChangeMeta{Actor: wo.Config.Requester, Reason: "status " + string(status), Origin: domain.OriginDocument}
	updated, err := s.store.Update(ctx, domain.KindWorkOrder, id, attrs, meta)
	if err != nil {
		return domain.WorkOrder{}, fmt.Errorf("failed to transition work order %s: %w", id, err)
	}
	wo.Version = updated.Version
	return wo, nil
}

// AppendProgress adds one line to the progress narrative without changing the
// status.
func (s *WorkOrderStore) AppendProgress(ctx context.Context, id, line string) error {
	wo, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if wo.Progress == "" {
		wo.Progress = line
	} else {
		wo.Progress += "\n" + line
	}

	attrs, err := wo.Attributes()
	if err != nil {
		return err
	}

	meta := domain.ChangeMeta{Actor: wo.Config.Requester, Reason: "progress", Origin: domain.OriginDocument}
	if _, err := s.store.Update(ctx, domain.KindWorkOrder, id, attrs, meta); err != nil {
		return fmt.Errorf("failed to append work order progress: %w", err)
	}
	return nil
}
