package worker

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/rpattn/shareflow/internal/domain"
	"github.com/rpattn/shareflow/internal/remote"
	"github.com/rpattn/shareflow/internal/repository"
)

// DirectorySyncHandler refreshes recipient address sets from the external
// directory. A drifted recipient gets a new version with origin
// background-sync.
type DirectorySyncHandler struct {
	store  repository.VersionedStore
	audit  repository.AuditSink
	remote remote.Client
}

func NewDirectorySyncHandler(store repository.VersionedStore, audit repository.AuditSink, client remote.Client) *DirectorySyncHandler {
	return &DirectorySyncHandler{store: store, audit: audit, remote: client}
}

func (h *DirectorySyncHandler) Type() domain.SyncType { return domain.SyncDirectory }

func (h *DirectorySyncHandler) Run(ctx context.Context) error {
	recipients, err := h.store.ListCurrent(ctx, domain.KindRecipient)
	if err != nil {
		return fmt.Errorf("failed to list recipients: %w", err)
	}

	for _, current := range recipients {
		addresses, err := h.remote.ListRecipientAddresses(ctx, current.BusinessID)
		if err != nil {
			return fmt.Errorf("failed to list addresses for recipient %s: %w", current.BusinessID, err)
		}
		sort.Strings(addresses)

		if equalSets(current.StringSliceAttr("addresses"), addresses) {
			continue
		}

		attrs := current.CloneAttributes()
		attrs["addresses"] = addresses
		if err := syncUpdate(ctx, h.store, h.audit, domain.KindRecipient, current, attrs, "directory sync"); err != nil {
			return err
		}
	}
	return nil
}

// CatalogSyncHandler refreshes share object lists from the remote catalog.
type CatalogSyncHandler struct {
	store  repository.VersionedStore
	audit  repository.AuditSink
	remote remote.Client
}

func NewCatalogSyncHandler(store repository.VersionedStore, audit repository.AuditSink, client remote.Client) *CatalogSyncHandler {
	return &CatalogSyncHandler{store: store, audit: audit, remote: client}
}

func (h *CatalogSyncHandler) Type() domain.SyncType { return domain.SyncCatalog }

func (h *CatalogSyncHandler) Run(ctx context.Context) error {
	shares, err := h.store.ListCurrent(ctx, domain.KindShare)
	if err != nil {
		return fmt.Errorf("failed to list shares: %w", err)
	}

	for _, current := range shares {
		objects, err := h.remote.ListShareObjects(ctx, current.BusinessID)
		if err != nil {
			return fmt.Errorf("failed to list objects for share %s: %w", current.BusinessID, err)
		}
		sort.Strings(objects)

		if equalSets(current.StringSliceAttr("objects"), objects) {
			continue
		}

		attrs := current.CloneAttributes()
		attrs["objects"] = objects
		if err := syncUpdate(ctx, h.store, h.audit, domain.KindShare, current, attrs, "catalog sync"); err != nil {
			return err
		}
	}
	return nil
}

// MetricsSyncHandler counts current rows per resource kind and records the
// result as an outbound notification.
type MetricsSyncHandler struct {
	store         repository.VersionedStore
	notifications repository.NotificationSink
}

func NewMetricsSyncHandler(store repository.VersionedStore, notifications repository.NotificationSink) *MetricsSyncHandler {
	return &MetricsSyncHandler{store: store, notifications: notifications}
}

func (h *MetricsSyncHandler) Type() domain.SyncType { return domain.SyncMetrics }

func (h *MetricsSyncHandler) Run(ctx context.Context) error {
	message := ""
	for _, kind := range []domain.ResourceKind{domain.KindRecipient, domain.KindShare, domain.KindPipeline} {
		current, err := h.store.ListCurrent(ctx, kind)
		if err != nil {
			return fmt.Errorf("failed to count %s rows: %w", kind, err)
		}
		if message != "" {
			message += ", "
		}
		message += fmt.Sprintf("%s=%d", kind, len(current))
	}

	n := domain.Notification{
		Severity: domain.SeverityInfo,
		Subject:  "sharing metrics",
		Message:  message,
	}
	if err := h.notifications.Notify(ctx, n); err != nil {
		return fmt.Errorf("failed to record metrics notification: %w", err)
	}
	return nil
}

func syncUpdate(ctx context.Context, store repository.VersionedStore, audit repository.AuditSink, kind domain.ResourceKind, current domain.EntityVersion, attrs map[string]any, reason string) error {
	meta := domain.ChangeMeta{Actor: "sync", Reason: reason, Origin: domain.OriginSync}
	updated, err := store.Update(ctx, kind, current.BusinessID, attrs, meta)
	if err != nil {
		return fmt.Errorf("failed to apply %s update for %s %s: %w", reason, kind, current.BusinessID, err)
	}

	rec := domain.AuditRecord{
		Kind:       kind,
		BusinessID: current.BusinessID,
		Action:     "update",
		OldValues:  current.Attributes,
		NewValues:  updated.Attributes,
		Actor:      "sync",
		Origin:     domain.OriginSync,
	}
	if err := audit.Record(ctx, rec); err != nil {
		log.Printf("failed to record audit entry for %s %q: %v", kind, current.BusinessID, err)
	}
	return nil
}

func equalSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, item := range a {
		set[item] = true
	}
	for _, item := range b {
		if !set[item] {
			return false
		}
	}
	return true
}
