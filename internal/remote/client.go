// Package remote defines the boundary to the external sharing system. The
// wire format is the remote system's concern; the engine only depends on the
// Client contract.
package remote

import "context"

// Client is the remote provisioning contract consumed by the orchestrator and
// the reconciliation engine. Create calls return the remote identifier of the
// created resource; attach/detach and schedule calls only report success.
type Client interface {
	CreateRecipient(ctx context.Context, name, kind string, attrs map[string]string) (string, error)
	DeleteRecipient(ctx context.Context, name string) error

	CreateShare(ctx context.Context, name string, attrs map[string]string) (string, error)
	DeleteShare(ctx context.Context, name string) error

	AttachObjects(ctx context.Context, shareName string, objects []string) error
	DetachObjects(ctx context.Context, shareName string, objects []string) error
	AttachRecipients(ctx context.Context, shareName string, recipients []string) error
	DetachRecipients(ctx context.Context, shareName string, recipients []string) error

	CreatePipeline(ctx context.Context, name string, config map[string]string) (string, error)
	DeletePipeline(ctx context.Context, name string) error
	SchedulePipeline(ctx context.Context, pipelineID string, cronOrContinuous string) error

	// ListRecipientAddresses and ListShareObjects feed the background
	// directory and catalog syncs.
	ListRecipientAddresses(ctx context.Context, name string) ([]string, error)
	ListShareObjects(ctx context.Context, name string) ([]string, error)
}
