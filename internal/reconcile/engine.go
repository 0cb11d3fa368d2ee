// Package reconcile applies incremental updates from a RECONCILE work order.
// It never creates top-level resources: updates referencing an unknown
// business key are logged and skipped, and failures on one resource do not
// halt reconciliation of the others.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/rpattn/shareflow/internal/domain"
	"github.com/rpattn/shareflow/internal/provisioner"
	"github.com/rpattn/shareflow/internal/remote"
	"github.com/rpattn/shareflow/internal/repository"
)

// Engine executes reconciliation runs.
type Engine struct {
	store      repository.VersionedStore
	workOrders *repository.WorkOrderStore
	audit      repository.AuditSink
	remote     remote.Client
}

// NewEngine wires the reconciler against its collaborators.
func NewEngine(store repository.VersionedStore, workOrders *repository.WorkOrderStore, audit repository.AuditSink, client remote.Client) *Engine {
	return &Engine{store: store, workOrders: workOrders, audit: audit, remote: client}
}

type tally struct {
	changed int
	clean   int
	skipped int
	failed  []string
}

// Run reconciles every resource named by the work order's config. The
// aggregate outcome is COMPLETED when at least one resource was processed
// successfully, FAILED when none were. A non-nil error means the terminal
// status could not be persisted.
func (e *Engine) Run(ctx context.Context, wo domain.WorkOrder) error {
	cfg := wo.Config
	counts := &tally{}

	for _, spec := range cfg.Recipients {
		e.reconcileRecipient(ctx, cfg, spec, counts)
	}
	for _, spec := range cfg.Shares {
		e.reconcileShare(ctx, cfg, spec, counts)
		for _, pipeline := range spec.Pipelines {
			e.reconcilePipeline(ctx, cfg, pipeline, counts)
		}
	}

	narrative := fmt.Sprintf("reconciled: %d changed, %d unchanged, %d skipped, %d failed",
		counts.changed, counts.clean, counts.skipped, len(counts.failed))

	status := domain.WorkOrderCompleted
	errMsg := ""
	if len(counts.failed) > 0 {
		errMsg = strings.Join(counts.failed, "; ")
		if counts.changed == 0 && counts.clean == 0 {
			status = domain.WorkOrderFailed
		}
	}

	if _, err := e.workOrders.Transition(ctx, wo.ID, status, narrative, errMsg); err != nil {
		return fmt.Errorf("failed to persist reconciliation outcome: %w", err)
	}
	return nil
}

func (e *Engine) reconcileRecipient(ctx context.Context, cfg domain.SharingConfig, spec domain.RecipientSpec, counts *tally) {
	current, ok := e.loadTarget(ctx, domain.KindRecipient, spec.Name, counts)
	if !ok {
		return
	}

	toAdd, toRemove := resolveDelta(current.StringSliceAttr("addresses"), spec.Addresses, spec.AddressesToAdd, spec.AddressesToRemove)
	if len(toAdd) == 0 && len(toRemove) == 0 {
		counts.clean++
		return
	}

	attrs := current.CloneAttributes()
	attrs["addresses"] = domain.ApplySetDelta(current.StringSliceAttr("addresses"), toAdd, toRemove)

	if err := e.applyUpdate(ctx, cfg, domain.KindRecipient, spec.Name, current, attrs); err != nil {
		counts.failed = append(counts.failed, fmt.Sprintf("recipient %s: %v", spec.Name, err))
		return
	}
	counts.changed++
}

func (e *Engine) reconcileShare(ctx context.Context, cfg domain.SharingConfig, spec domain.ShareSpec, counts *tally) {
	current, ok := e.loadTarget(ctx, domain.KindShare, spec.Name, counts)
	if !ok {
		return
	}

	objectsAdd, objectsRemove := resolveDelta(current.StringSliceAttr("objects"), spec.Objects, spec.ObjectsToAdd, spec.ObjectsToRemove)
	recipientsAdd, recipientsRemove := resolveDelta(current.StringSliceAttr("recipients"), spec.Recipients, spec.RecipientsToAdd, spec.RecipientsToRemove)

	if len(objectsAdd)+len(objectsRemove)+len(recipientsAdd)+len(recipientsRemove) == 0 {
		counts.clean++
		return
	}

	if err := e.applyShareRemote(ctx, spec.Name, objectsAdd, objectsRemove, recipientsAdd, recipientsRemove); err != nil {
		counts.failed = append(counts.failed, fmt.Sprintf("share %s: %v", spec.Name, err))
		return
	}

	attrs := current.CloneAttributes()
	attrs["objects"] = domain.ApplySetDelta(current.StringSliceAttr("objects"), objectsAdd, objectsRemove)
	attrs["recipients"] = domain.ApplySetDelta(current.StringSliceAttr("recipients"), recipientsAdd, recipientsRemove)

	if err := e.applyUpdate(ctx, cfg, domain.KindShare, spec.Name, current, attrs); err != nil {
		counts.failed = append(counts.failed, fmt.Sprintf("share %s: %v", spec.Name, err))
		return
	}
	counts.changed++
}

func (e *Engine) reconcilePipeline(ctx context.Context, cfg domain.SharingConfig, spec domain.PipelineSpec, counts *tally) {
	current, ok := e.loadTarget(ctx, domain.KindPipeline, spec.Name, counts)
	if !ok {
		return
	}

	// Scalar attributes update only on inequality, and always through a new
	// version, never an in-place overwrite.
	sameSchedule := current.StringAttr("schedule_mode") == string(spec.Schedule.Mode) &&
		current.StringAttr("schedule_expr") == spec.Schedule.Expr &&
		current.StringAttr("timezone") == spec.Schedule.Timezone
	if sameSchedule {
		counts.clean++
		return
	}

	pipelineID := current.StringAttr("remote_id")
	if err := e.remote.SchedulePipeline(ctx, pipelineID, provisioner.ScheduleString(spec.Schedule)); err != nil {
		counts.failed = append(counts.failed, fmt.Sprintf("pipeline %s: %v", spec.Name, err))
		return
	}

	attrs := current.CloneAttributes()
	attrs["schedule_mode"] = string(spec.Schedule.Mode)
	attrs["schedule_expr"] = spec.Schedule.Expr
	attrs["timezone"] = spec.Schedule.Timezone

	if err := e.applyUpdate(ctx, cfg, domain.KindPipeline, spec.Name, current, attrs); err != nil {
		counts.failed = append(counts.failed, fmt.Sprintf("pipeline %s: %v", spec.Name, err))
		return
	}
	counts.changed++
}

// loadTarget fetches the reconciliation target. An unknown business key is a
// warning and a skip, never an error.
func (e *Engine) loadTarget(ctx context.Context, kind domain.ResourceKind, name string, counts *tally) (domain.EntityVersion, bool) {
	current, err := e.store.GetCurrent(ctx, kind, name)
	if domain.IsNotFound(err) {
		log.Printf("reconcile: %s %q has no current version, skipping", kind, name)
		counts.skipped++
		return domain.EntityVersion{}, false
	}
	if err != nil {
		counts.failed = append(counts.failed, fmt.Sprintf("%s %s: %v", kind, name, err))
		return domain.EntityVersion{}, false
	}
	return current, true
}

func (e *Engine) applyShareRemote(ctx context.Context, shareName string, objectsAdd, objectsRemove, recipientsAdd, recipientsRemove []string) error {
	if len(objectsAdd) > 0 {
		if err := e.remote.AttachObjects(ctx, shareName, objectsAdd); err != nil {
			return err
		}
	}
	if len(objectsRemove) > 0 {
		if err := e.remote.DetachObjects(ctx, shareName, objectsRemove); err != nil {
			return err
		}
	}
	if len(recipientsAdd) > 0 {
		if err := e.remote.AttachRecipients(ctx, shareName, recipientsAdd); err != nil {
			return err
		}
	}
	if len(recipientsRemove) > 0 {
		if err := e.remote.DetachRecipients(ctx, shareName, recipientsRemove); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) applyUpdate(ctx context.Context, cfg domain.SharingConfig, kind domain.ResourceKind, name string, current domain.EntityVersion, attrs map[string]any) error {
	meta := domain.ChangeMeta{Actor: cfg.Requester, Reason: "reconciliation", Origin: domain.OriginDocument}
	updated, err := e.store.Update(ctx, kind, name, attrs, meta)
	if err != nil {
		return err
	}

	rec := domain.AuditRecord{
		Kind:       kind,
		BusinessID: name,
		Action:     "update",
		OldValues:  current.Attributes,
		NewValues:  updated.Attributes,
		Actor:      cfg.Requester,
		Origin:     domain.OriginDocument,
	}
	if err := e.audit.Record(ctx, rec); err != nil {
		log.Printf("failed to record audit entry for %s %q: %v", kind, name, err)
	}
	return nil
}

// resolveDelta picks the reconciliation mode: a present declarative set wins
// over explicit add/remove lists; with neither, there is nothing to do.
func resolveDelta(current, desired, add, remove []string) (toAdd, toRemove []string) {
	if desired != nil {
		return domain.SetDelta(current, desired)
	}
	if len(add) > 0 || len(remove) > 0 {
		return domain.ExplicitDelta(current, add, remove)
	}
	return nil, nil
}
