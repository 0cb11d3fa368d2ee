package domain

import (
	"time"

	"github.com/google/uuid"
)

// ResourceKind identifies which versioned table a record belongs to.
type ResourceKind string

const (
	KindTenant    ResourceKind = "tenant"
	KindRecipient ResourceKind = "recipient"
	KindShare     ResourceKind = "share"
	KindPipeline  ResourceKind = "pipeline"
	KindWorkOrder ResourceKind = "work_order"
)

// Origin records which subsystem produced a version.
type Origin string

const (
	OriginDocument    Origin = "submitted-document"
	OriginAPI         Origin = "direct-api"
	OriginSync        Origin = "background-sync"
	OriginCompensator Origin = "compensator"
)

// MaxDate is the sentinel end date carried by the current version of every
// entity. The effective_to column is NOT NULL, so open-ended validity is
// expressed as this fixed far-future instant.
var MaxDate = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// EntityVersion is one row of a slowly-changing-dimension (type 2) table.
// BusinessID is stable across versions; SurrogateID is unique per row.
type EntityVersion struct {
	SurrogateID   uuid.UUID      `json:"surrogate_id"`
	BusinessID    string         `json:"business_id"`
	Kind          ResourceKind   `json:"kind"`
	Attributes    map[string]any `json:"attributes"`
	EffectiveFrom time.Time      `json:"effective_from"`
	EffectiveTo   time.Time      `json:"effective_to"`
	IsCurrent     bool           `json:"is_current"`
	IsDeleted     bool           `json:"is_deleted"`
	Version       int64          `json:"version"`
	CreatedBy     string         `json:"created_by"`
	ChangeReason  string         `json:"change_reason"`
	Origin        Origin         `json:"origin"`
}

// ChangeMeta carries the provenance fields every store mutation records.
type ChangeMeta struct {
	Actor  string
	Reason string
	Origin Origin
}

// Covers reports whether the version's validity interval contains ts.
// The interval is half-open: [EffectiveFrom, EffectiveTo).
func (v EntityVersion) Covers(ts time.Time) bool {
	return !ts.Before(v.EffectiveFrom) && ts.Before(v.EffectiveTo)
}

// StringAttr returns a string attribute, or "" when absent or not a string.
func (v EntityVersion) StringAttr(key string) string {
	if s, ok := v.Attributes[key].(string); ok {
		return s
	}
	return ""
}

// StringSliceAttr returns a string-set attribute. JSON round-tripping stores
// slices as []any, so both representations are accepted.
func (v EntityVersion) StringSliceAttr(key string) []string {
	switch raw := v.Attributes[key].(type) {
	case []string:
		out := make([]string, len(raw))
		copy(out, raw)
		return out
	case []any:
		out := make([]string, 0, len(raw))
		for _, item := range raw {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// CloneAttributes returns a shallow copy of the attribute map so callers can
// derive a new version without mutating the loaded one.
func (v EntityVersion) CloneAttributes() map[string]any {
	out := make(map[string]any, len(v.Attributes))
	for k, val := range v.Attributes {
		out[k] = val
	}
	return out
}
