package domain

import (
	"encoding/json"
	"fmt"
)

// WorkOrderStatus is the lifecycle status of one submitted config bundle.
type WorkOrderStatus string

const (
	WorkOrderInProgress       WorkOrderStatus = "IN_PROGRESS"
	WorkOrderCompleted        WorkOrderStatus = "COMPLETED"
	WorkOrderFailed           WorkOrderStatus = "FAILED"
	WorkOrderValidationFailed WorkOrderStatus = "VALIDATION_FAILED"
)

// Terminal reports whether no further status transition may happen.
func (s WorkOrderStatus) Terminal() bool {
	return s == WorkOrderCompleted || s == WorkOrderFailed || s == WorkOrderValidationFailed
}

// WorkOrder is the unit of work tracking one submitted configuration bundle.
// It is persisted as a versioned entity of KindWorkOrder, so every status
// transition is a new version and the full provisioning history is queryable.
type WorkOrder struct {
	ID       string
	Strategy Strategy
	Status   WorkOrderStatus
	Progress string
	Error    string
	Config   SharingConfig
	Version  int64
}

// Attributes flattens the work order into the versioned store's attribute map.
// The config is round-tripped through JSON so the stored shape matches what a
// JSONB column holds.
func (w WorkOrder) Attributes() (map[string]any, error) {
	raw, err := json.Marshal(w.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal work order config: %w", err)
	}
	var cfg map[string]any
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to normalize work order config: %w", err)
	}
	return map[string]any{
		"strategy": string(w.Strategy),
		"status":   string(w.Status),
		"progress": w.Progress,
		"error":    w.Error,
		"config":   cfg,
	}, nil
}

// WorkOrderFromVersion rebuilds a work order from a stored version row.
func WorkOrderFromVersion(v EntityVersion) (WorkOrder, error) {
	wo := WorkOrder{
		ID:       v.BusinessID,
		Strategy: Strategy(v.StringAttr("strategy")),
		Status:   WorkOrderStatus(v.StringAttr("status")),
		Progress: v.StringAttr("progress"),
		Error:    v.StringAttr("error"),
		Version:  v.Version,
	}

	raw, err := json.Marshal(v.Attributes["config"])
	if err != nil {
		return WorkOrder{}, fmt.Errorf("failed to re-encode work order config: %w", err)
	}
	if err := json.Unmarshal(raw, &wo.Config); err != nil {
		return WorkOrder{}, fmt.Errorf("failed to decode work order config: %w", err)
	}
	return wo, nil
}
