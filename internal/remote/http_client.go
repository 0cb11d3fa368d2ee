package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rpattn/shareflow/internal/domain"
)

// HTTPClient talks JSON to the remote provisioning endpoint. Timeouts are the
// remote side's concern beyond the plain HTTP client timeout; the engine adds
// no separate layer.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client against the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *HTTPClient) CreateRecipient(ctx context.Context, name, kind string, attrs map[string]string) (string, error) {
	return c.create(ctx, "recipients", map[string]any{"name": name, "kind": kind, "attrs": attrs})
}

func (c *HTTPClient) DeleteRecipient(ctx context.Context, name string) error {
	return c.delete(ctx, "recipients", name)
}

func (c *HTTPClient) CreateShare(ctx context.Context, name string, attrs map[string]string) (string, error) {
	return c.create(ctx, "shares", map[string]any{"name": name, "attrs": attrs})
}

func (c *HTTPClient) DeleteShare(ctx context.Context, name string) error {
	return c.delete(ctx, "shares", name)
}

func (c *HTTPClient) AttachObjects(ctx context.Context, shareName string, objects []string) error {
	return c.post(ctx, fmt.Sprintf("shares/%s/objects/attach", shareName), map[string]any{"objects": objects})
}

func (c *HTTPClient) DetachObjects(ctx context.Context, shareName string, objects []string) error {
	return c.post(ctx, fmt.Sprintf("shares/%s/objects/detach", shareName), map[string]any{"objects": objects})
}

func (c *HTTPClient) AttachRecipients(ctx context.Context, shareName string, recipients []string) error {
	return c.post(ctx, fmt.Sprintf("shares/%s/recipients/attach", shareName), map[string]any{"recipients": recipients})
}

func (c *HTTPClient) DetachRecipients(ctx context.Context, shareName string, recipients []string) error {
	return c.post(ctx, fmt.Sprintf("shares/%s/recipients/detach", shareName), map[string]any{"recipients": recipients})
}

func (c *HTTPClient) CreatePipeline(ctx context.Context, name string, config map[string]string) (string, error) {
	return c.create(ctx, "pipelines", map[string]any{"name": name, "config": config})
}

func (c *HTTPClient) DeletePipeline(ctx context.Context, name string) error {
	return c.delete(ctx, "pipelines", name)
}

func (c *HTTPClient) SchedulePipeline(ctx context.Context, pipelineID string, cronOrContinuous string) error {
	return c.post(ctx, fmt.Sprintf("pipelines/%s/schedule", pipelineID), map[string]any{"schedule": cronOrContinuous})
}

func (c *HTTPClient) ListRecipientAddresses(ctx context.Context, name string) ([]string, error) {
	return c.list(ctx, fmt.Sprintf("recipients/%s/addresses", name), "addresses")
}

func (c *HTTPClient) ListShareObjects(ctx context.Context, name string) ([]string, error) {
	return c.list(ctx, fmt.Sprintf("shares/%s/objects", name), "objects")
}

func (c *HTTPClient) create(ctx context.Context, resource string, body map[string]any) (string, error) {
	var result struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, resource, body, &result); err != nil {
		return "", &domain.RemoteProvisioningError{Op: "create " + resource, Err: err}
	}
	return result.ID, nil
}

func (c *HTTPClient) delete(ctx context.Context, resource, name string) error {
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/%s", resource, name), nil, nil); err != nil {
		return &domain.RemoteProvisioningError{Op: "delete " + resource, Err: err}
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body map[string]any) error {
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return &domain.RemoteProvisioningError{Op: "post " + path, Err: err}
	}
	return nil
}

func (c *HTTPClient) list(ctx context.Context, path, field string) ([]string, error) {
	var result map[string][]string
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, &domain.RemoteProvisioningError{Op: "list " + path, Err: err}
	}
	return result[field], nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body map[string]any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, fmt.Sprintf("%s/%s", c.baseURL, path), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("remote returned %d: %s", resp.StatusCode, string(payload))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
