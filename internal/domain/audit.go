package domain

import "time"

// AuditRecord is one append-only state-transition entry. Old and new values
// are captured on every transition; they are the recovery mechanism when the
// remote system and the store drift apart.
type AuditRecord struct {
	ID         int64          `json:"id"`
	Kind       ResourceKind   `json:"kind"`
	BusinessID string         `json:"business_id"`
	Action     string         `json:"action"`
	OldValues  map[string]any `json:"old_values,omitempty"`
	NewValues  map[string]any `json:"new_values,omitempty"`
	Actor      string         `json:"actor"`
	Origin     Origin         `json:"origin"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NotificationSeverity grades outbound alerts.
type NotificationSeverity string

const (
	SeverityInfo    NotificationSeverity = "INFO"
	SeverityWarning NotificationSeverity = "WARNING"
	SeverityError   NotificationSeverity = "ERROR"
)

// Notification is one outbound alert row.
type Notification struct {
	ID        int64                `json:"id"`
	Severity  NotificationSeverity `json:"severity"`
	Subject   string               `json:"subject"`
	Message   string               `json:"message"`
	CreatedAt time.Time            `json:"created_at"`
}
