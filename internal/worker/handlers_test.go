package worker

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/rpattn/shareflow/internal/domain"
	"github.com/rpattn/shareflow/internal/repository"
)

// listRemote serves canned directory and catalog listings.
type listRemote struct {
	okRemote
	addresses map[string][]string
	objects   map[string][]string
}

func (r listRemote) ListRecipientAddresses(ctx context.Context, name string) ([]string, error) {
	return r.addresses[name], nil
}

func (r listRemote) ListShareObjects(ctx context.Context, name string) ([]string, error) {
	return r.objects[name], nil
}

func seedEntity(t *testing.T, store *repository.MemoryStore, kind domain.ResourceKind, name string, attrs map[string]any) {
	t.Helper()
	meta := domain.ChangeMeta{Actor: "alice", Reason: "seed", Origin: domain.OriginDocument}
	if _, err := store.Create(context.Background(), kind, name, attrs, meta); err != nil {
		t.Fatalf("failed to seed %s %q: %v", kind, name, err)
	}
}

func TestDirectorySyncUpdatesDriftedRecipient(t *testing.T) {
	store := repository.NewMemoryStore()
	audit := repository.NewMemoryAuditSink()
	ctx := context.Background()

	seedEntity(t, store, domain.KindRecipient, "partner-a", map[string]any{"addresses": []string{"10.0.0.1"}})
	seedEntity(t, store, domain.KindRecipient, "partner-b", map[string]any{"addresses": []string{"10.0.0.2"}})

	remote := listRemote{addresses: map[string][]string{
		"partner-a": {"10.0.0.9", "10.0.0.1"},
		"partner-b": {"10.0.0.2"},
	}}

	if err := NewDirectorySyncHandler(store, audit, remote).Run(ctx); err != nil {
		t.Fatalf("directory sync failed: %v", err)
	}

	drifted, err := store.GetCurrent(ctx, domain.KindRecipient, "partner-a")
	if err != nil {
		t.Fatalf("failed to load recipient: %v", err)
	}
	if drifted.Version != 2 {
		t.Errorf("expected drifted recipient on version 2, got %d", drifted.Version)
	}
	if drifted.Origin != domain.OriginSync {
		t.Errorf("expected background-sync origin, got %s", drifted.Origin)
	}
	if got := drifted.StringSliceAttr("addresses"); !reflect.DeepEqual(got, []string{"10.0.0.1", "10.0.0.9"}) {
		t.Errorf("expected refreshed sorted address set, got %v", got)
	}

	clean, err := store.GetCurrent(ctx, domain.KindRecipient, "partner-b")
	if err != nil {
		t.Fatalf("failed to load recipient: %v", err)
	}
	if clean.Version != 1 {
		t.Errorf("expected matching recipient untouched, got version %d", clean.Version)
	}
}

func TestCatalogSyncUpdatesDriftedShare(t *testing.T) {
	store := repository.NewMemoryStore()
	audit := repository.NewMemoryAuditSink()
	ctx := context.Background()

	seedEntity(t, store, domain.KindShare, "share-a", map[string]any{"objects": []string{"orders"}})

	remote := listRemote{objects: map[string][]string{
		"share-a": {"orders", "invoices"},
	}}

	if err := NewCatalogSyncHandler(store, audit, remote).Run(ctx); err != nil {
		t.Fatalf("catalog sync failed: %v", err)
	}

	current, err := store.GetCurrent(ctx, domain.KindShare, "share-a")
	if err != nil {
		t.Fatalf("failed to load share: %v", err)
	}
	if got := current.StringSliceAttr("objects"); !reflect.DeepEqual(got, []string{"invoices", "orders"}) {
		t.Errorf("expected refreshed object set, got %v", got)
	}
}

func TestMetricsSyncRecordsCounts(t *testing.T) {
	store := repository.NewMemoryStore()
	notifications := repository.NewMemoryNotificationSink()
	ctx := context.Background()

	seedEntity(t, store, domain.KindRecipient, "partner-a", nil)
	seedEntity(t, store, domain.KindShare, "share-a", nil)
	seedEntity(t, store, domain.KindShare, "share-b", nil)

	if err := NewMetricsSyncHandler(store, notifications).Run(ctx); err != nil {
		t.Fatalf("metrics sync failed: %v", err)
	}

	if len(notifications.Notifications) != 1 {
		t.Fatalf("expected one metrics notification, got %d", len(notifications.Notifications))
	}
	n := notifications.Notifications[0]
	if n.Severity != domain.SeverityInfo {
		t.Errorf("expected info severity, got %s", n.Severity)
	}
	if !strings.Contains(n.Message, "recipient=1") || !strings.Contains(n.Message, "share=2") {
		t.Errorf("unexpected metrics message %q", n.Message)
	}
}
