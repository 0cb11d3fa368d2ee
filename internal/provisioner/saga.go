// Package provisioner drives the ordered creation saga for a CREATE work
// order: recipients before shares, shares before pipelines, with a
// compensating rollback when any step fails.
package provisioner

import (
	"context"
	"fmt"
	"log"

	"github.com/rpattn/shareflow/internal/domain"
	"github.com/rpattn/shareflow/internal/remote"
	"github.com/rpattn/shareflow/internal/repository"
)

// Saga states, reached strictly in order. FAILED is reachable from any
// non-terminal state.
const (
	StateInit                = "INIT"
	StateRecipientsCreated   = "RECIPIENTS_CREATED"
	StateSharesCreated       = "SHARES_CREATED"
	StateObjectsAttached     = "OBJECTS_ATTACHED"
	StatePermissionsAttached = "PERMISSIONS_ATTACHED"
	StatePipelinesCreated    = "PIPELINES_CREATED"
	StateScheduled           = "SCHEDULED"
	StateCompleted           = "COMPLETED"
)

// ledger records every entity created during one saga run, keyed by resource
// kind. It is a plain value scoped to the run; the compensator consumes it in
// reverse creation order and it is discarded on completion.
type ledger struct {
	recipients []string
	shares     []string
	pipelines  []string
}

// Orchestrator executes creation sagas.
type Orchestrator struct {
	store      repository.VersionedStore
	workOrders *repository.WorkOrderStore
	audit      repository.AuditSink
	remote     remote.Client
}

// NewOrchestrator wires the saga against its collaborators.
func NewOrchestrator(store repository.VersionedStore, workOrders *repository.WorkOrderStore, audit repository.AuditSink, client remote.Client) *Orchestrator {
	return &Orchestrator{store: store, workOrders: workOrders, audit: audit, remote: client}
}

// Run executes the saga for one work order. A step failure marks the work
// order FAILED, runs the compensator, and still returns nil: the terminal
// state is persisted and the queue message may be deleted. A non-nil error
// means the terminal state could not be persisted and the message must be
// redelivered.
func (o *Orchestrator) Run(ctx context.Context, wo domain.WorkOrder) error {
	cfg := wo.Config
	created := &ledger{}

	if err := o.workOrders.AppendProgress(ctx, wo.ID, "state: "+StateInit); err != nil {
		return err
	}

	steps := []struct {
		state string
		run   func(context.Context, domain.SharingConfig, *ledger) error
	}{
		{StateRecipientsCreated, o.createRecipients},
		{StateSharesCreated, o.createShares},
		{StateObjectsAttached, o.attachObjects},
		{StatePermissionsAttached, o.attachRecipients},
		{StatePipelinesCreated, o.createPipelines},
		{StateScheduled, o.schedulePipelines},
	}

	for _, step := range steps {
		if err := step.run(ctx, cfg, created); err != nil {
			log.Printf("saga for work order %s failed before %s: %v", wo.ID, step.state, err)
			o.compensate(ctx, created)
			if _, terr := o.workOrders.Transition(ctx, wo.ID, domain.WorkOrderFailed, "rolled back after failure before "+step.state, err.Error()); terr != nil {
				return fmt.Errorf("failed to persist FAILED status: %w", terr)
			}
			return nil
		}
		if err := o.workOrders.AppendProgress(ctx, wo.ID, "state: "+step.state); err != nil {
			return err
		}
	}

	if _, err := o.workOrders.Transition(ctx, wo.ID, domain.WorkOrderCompleted, "state: "+StateCompleted, ""); err != nil {
		return fmt.Errorf("failed to persist COMPLETED status: %w", err)
	}
	return nil
}

func (o *Orchestrator) createRecipients(ctx context.Context, cfg domain.SharingConfig, created *ledger) error {
	for _, spec := range cfg.Recipients {
		exists, err := o.alreadyProvisioned(ctx, domain.KindRecipient, spec.Name)
		if err != nil {
			return err
		}
		if exists {
			log.Printf("recipient %q already has a current version, skipping create", spec.Name)
			continue
		}

		remoteID, err := o.remote.CreateRecipient(ctx, spec.Name, spec.Kind, spec.Properties)
		if err != nil {
			return &domain.RemoteProvisioningError{Op: "createRecipient " + spec.Name, Err: err}
		}

		attrs := map[string]any{
			"name":      spec.Name,
			"kind":      spec.Kind,
			"addresses": spec.Addresses,
			"remote_id": remoteID,
		}
		if len(spec.Properties) > 0 {
			attrs["properties"] = spec.Properties
		}
		version, err := o.store.Create(ctx, domain.KindRecipient, spec.Name, attrs, o.meta(cfg, "created by saga"))
		if err != nil {
			return err
		}
		created.recipients = append(created.recipients, spec.Name)
		o.recordAudit(ctx, domain.KindRecipient, spec.Name, "create", nil, version.Attributes, cfg.Requester)
	}
	return nil
}

func (o *Orchestrator) createShares(ctx context.Context, cfg domain.SharingConfig, created *ledger) error {
	for _, spec := range cfg.Shares {
		exists, err := o.alreadyProvisioned(ctx, domain.KindShare, spec.Name)
		if err != nil {
			return err
		}
		if exists {
			log.Printf("share %q already has a current version, skipping create", spec.Name)
			continue
		}

		remoteID, err := o.remote.CreateShare(ctx, spec.Name, map[string]string{"business_line": cfg.BusinessLine})
		if err != nil {
			return &domain.RemoteProvisioningError{Op: "createShare " + spec.Name, Err: err}
		}

		attrs := map[string]any{
			"name":       spec.Name,
			"objects":    spec.Objects,
			"recipients": spec.Recipients,
			"remote_id":  remoteID,
		}
		version, err := o.store.Create(ctx, domain.KindShare, spec.Name, attrs, o.meta(cfg, "created by saga"))
		if err != nil {
			return err
		}
		created.shares = append(created.shares, spec.Name)
		o.recordAudit(ctx, domain.KindShare, spec.Name, "create", nil, version.Attributes, cfg.Requester)
	}
	return nil
}

func (o *Orchestrator) attachObjects(ctx context.Context, cfg domain.SharingConfig, _ *ledger) error {
	for _, spec := range cfg.Shares {
		if len(spec.Objects) == 0 {
			continue
		}
		if err := o.remote.AttachObjects(ctx, spec.Name, spec.Objects); err != nil {
			return &domain.RemoteProvisioningError{Op: "attachObjects " + spec.Name, Err: err}
		}
	}
	return nil
}

func (o *Orchestrator) attachRecipients(ctx context.Context, cfg domain.SharingConfig, _ *ledger) error {
	for _, spec := range cfg.Shares {
		if len(spec.Recipients) == 0 {
			continue
		}
		if err := o.remote.AttachRecipients(ctx, spec.Name, spec.Recipients); err != nil {
			return &domain.RemoteProvisioningError{Op: "attachRecipients " + spec.Name, Err: err}
		}
	}
	return nil
}

func (o *Orchestrator) createPipelines(ctx context.Context, cfg domain.SharingConfig, created *ledger) error {
	for _, share := range cfg.Shares {
		for _, spec := range share.Pipelines {
			exists, err := o.alreadyProvisioned(ctx, domain.KindPipeline, spec.Name)
			if err != nil {
				return err
			}
			if exists {
				log.Printf("pipeline %q already has a current version, skipping create", spec.Name)
				continue
			}

			remoteID, err := o.remote.CreatePipeline(ctx, spec.Name, map[string]string{
				"share":  share.Name,
				"source": spec.Source,
				"target": spec.Target,
			})
			if err != nil {
				return &domain.RemoteProvisioningError{Op: "createPipeline " + spec.Name, Err: err}
			}

			attrs := map[string]any{
				"name":          spec.Name,
				"share":         share.Name,
				"source":        spec.Source,
				"target":        spec.Target,
				"schedule_mode": string(spec.Schedule.Mode),
				"schedule_expr": spec.Schedule.Expr,
				"timezone":      spec.Schedule.Timezone,
				"remote_id":     remoteID,
			}
			version, err := o.store.Create(ctx, domain.KindPipeline, spec.Name, attrs, o.meta(cfg, "created by saga"))
			if err != nil {
				return err
			}
			created.pipelines = append(created.pipelines, spec.Name)
			o.recordAudit(ctx, domain.KindPipeline, spec.Name, "create", nil, version.Attributes, cfg.Requester)
		}
	}
	return nil
}

func (o *Orchestrator) schedulePipelines(ctx context.Context, cfg domain.SharingConfig, _ *ledger) error {
	for _, share := range cfg.Shares {
		for _, spec := range share.Pipelines {
			current, err := o.store.GetCurrent(ctx, domain.KindPipeline, spec.Name)
			if err != nil {
				return err
			}
			pipelineID := current.StringAttr("remote_id")
			if err := o.remote.SchedulePipeline(ctx, pipelineID, ScheduleString(spec.Schedule)); err != nil {
				return &domain.RemoteProvisioningError{Op: "schedulePipeline " + spec.Name, Err: err}
			}
		}
	}
	return nil
}

// compensate soft-deletes everything in the ledger in reverse creation order.
// Failures are logged and do not abort the sweep; every entry is attempted.
// Remote deletion is issued best-effort alongside the store soft-delete; the
// audit trail, not remote cleanup, is the recovery mechanism.
func (o *Orchestrator) compensate(ctx context.Context, created *ledger) {
	meta := domain.ChangeMeta{Actor: "compensator", Reason: "rollback", Origin: domain.OriginCompensator}

	for i := len(created.pipelines) - 1; i >= 0; i-- {
		name := created.pipelines[i]
		if err := o.remote.DeletePipeline(ctx, name); err != nil {
			log.Printf("rollback: remote pipeline delete %q failed: %v", name, err)
		}
		o.softDelete(ctx, domain.KindPipeline, name, meta)
	}
	for i := len(created.shares) - 1; i >= 0; i-- {
		name := created.shares[i]
		if err := o.remote.DeleteShare(ctx, name); err != nil {
			log.Printf("rollback: remote share delete %q failed: %v", name, err)
		}
		o.softDelete(ctx, domain.KindShare, name, meta)
	}
	for i := len(created.recipients) - 1; i >= 0; i-- {
		name := created.recipients[i]
		if err := o.remote.DeleteRecipient(ctx, name); err != nil {
			log.Printf("rollback: remote recipient delete %q failed: %v", name, err)
		}
		o.softDelete(ctx, domain.KindRecipient, name, meta)
	}
}

func (o *Orchestrator) softDelete(ctx context.Context, kind domain.ResourceKind, name string, meta domain.ChangeMeta) {
	deleted, err := o.store.SoftDelete(ctx, kind, name, meta)
	if err != nil {
		log.Printf("rollback: soft delete of %s %q failed: %v", kind, name, err)
		return
	}
	o.recordAudit(ctx, kind, name, "soft-delete", deleted.Attributes, nil, "compensator")
}

// alreadyProvisioned reports whether a current, non-deleted version exists.
// Such steps are skipped on re-entry so redelivered work orders never
// duplicate resources.
func (o *Orchestrator) alreadyProvisioned(ctx context.Context, kind domain.ResourceKind, name string) (bool, error) {
	_, err := o.store.GetCurrent(ctx, kind, name)
	if err == nil {
		return true, nil
	}
	if domain.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func (o *Orchestrator) meta(cfg domain.SharingConfig, reason string) domain.ChangeMeta {
	return domain.ChangeMeta{Actor: cfg.Requester, Reason: reason, Origin: domain.OriginDocument}
}

func (o *Orchestrator) recordAudit(ctx context.Context, kind domain.ResourceKind, businessID, action string, oldValues, newValues map[string]any, actor string) {
	origin := domain.OriginDocument
	if actor == "compensator" {
		origin = domain.OriginCompensator
	}
	rec := domain.AuditRecord{
		Kind:       kind,
		BusinessID: businessID,
		Action:     action,
		OldValues:  oldValues,
		NewValues:  newValues,
		Actor:      actor,
		Origin:     origin,
	}
	if err := o.audit.Record(ctx, rec); err != nil {
		log.Printf("failed to record audit entry for %s %q: %v", kind, businessID, err)
	}
}

// ScheduleString renders a schedule for the remote scheduling call.
func ScheduleString(s domain.Schedule) string {
	if s.Mode == domain.ScheduleContinuous {
		return "continuous"
	}
	if s.Timezone != "" {
		return fmt.Sprintf("cron:%s %s", s.Expr, s.Timezone)
	}
	return "cron:" + s.Expr
}
