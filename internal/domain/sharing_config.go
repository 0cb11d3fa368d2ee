package domain

import (
	"fmt"
	"strings"
)

// Strategy selects how a submitted config is applied.
type Strategy string

const (
	StrategyCreate    Strategy = "CREATE"
	StrategyReconcile Strategy = "RECONCILE"
)

// ScheduleMode distinguishes cron-driven from continuous pipelines.
type ScheduleMode string

const (
	ScheduleCron       ScheduleMode = "CRON"
	ScheduleContinuous ScheduleMode = "CONTINUOUS"
)

// Schedule is the tagged union for pipeline scheduling. Expr and Timezone are
// only meaningful when Mode is CRON.
type Schedule struct {
	Mode     ScheduleMode `json:"mode"`
	Expr     string       `json:"expr,omitempty"`
	Timezone string       `json:"timezone,omitempty"`
}

func (s Schedule) Validate() error {
	switch s.Mode {
	case ScheduleCron:
		if strings.TrimSpace(s.Expr) == "" {
			return &ValidationError{Msg: "cron schedule requires an expression"}
		}
	case ScheduleContinuous:
		if s.Expr != "" {
			return &ValidationError{Msg: "continuous schedule must not carry a cron expression"}
		}
	default:
		return &ValidationError{Msg: fmt.Sprintf("unknown schedule mode %q", s.Mode)}
	}
	return nil
}

// RecipientSpec describes one external recipient. Addresses is the declarative
// desired set; AddressesToAdd/Remove are the explicit delta form. When both
// are present the declarative set wins.
type RecipientSpec struct {
	Name              string            `json:"name"`
	Kind              string            `json:"kind"`
	Addresses         []string          `json:"addresses,omitempty"`
	AddressesToAdd    []string          `json:"addresses_to_add,omitempty"`
	AddressesToRemove []string          `json:"addresses_to_remove,omitempty"`
	Properties        map[string]string `json:"properties,omitempty"`
}

// PipelineSpec describes one data pipeline nested under a share.
type PipelineSpec struct {
	Name     string   `json:"name"`
	Source   string   `json:"source"`
	Target   string   `json:"target"`
	Schedule Schedule `json:"schedule"`
}

// ShareSpec describes one share: attached objects, attached recipients, and
// its pipelines. Objects/Recipients are declarative; the *ToAdd/*ToRemove
// lists are the explicit delta form.
type ShareSpec struct {
	Name               string         `json:"name"`
	Objects            []string       `json:"objects,omitempty"`
	ObjectsToAdd       []string       `json:"objects_to_add,omitempty"`
	ObjectsToRemove    []string       `json:"objects_to_remove,omitempty"`
	Recipients         []string       `json:"recipients,omitempty"`
	RecipientsToAdd    []string       `json:"recipients_to_add,omitempty"`
	RecipientsToRemove []string       `json:"recipients_to_remove,omitempty"`
	Pipelines          []PipelineSpec `json:"pipelines,omitempty"`
}

// SharingConfig is the normalized configuration object produced at the parse
// boundary. Anything that fails Validate never reaches the orchestrator.
type SharingConfig struct {
	Strategy     Strategy        `json:"strategy"`
	Requester    string          `json:"requester"`
	BusinessLine string          `json:"business_line"`
	Recipients   []RecipientSpec `json:"recipients,omitempty"`
	Shares       []ShareSpec     `json:"shares,omitempty"`
}

// Validate checks the closed shape of the config before execution.
func (c SharingConfig) Validate() error {
	switch c.Strategy {
	case StrategyCreate, StrategyReconcile:
	default:
		return &ValidationError{Msg: fmt.Sprintf("unknown strategy %q", c.Strategy)}
	}
	if strings.TrimSpace(c.Requester) == "" {
		return &ValidationError{Msg: "requester is required"}
	}
	if len(c.Recipients) == 0 && len(c.Shares) == 0 {
		return &ValidationError{Msg: "config names no recipients and no shares"}
	}

	seenRecipients := map[string]bool{}
	for _, r := range c.Recipients {
		if strings.TrimSpace(r.Name) == "" {
			return &ValidationError{Msg: "recipient name is required"}
		}
		if seenRecipients[r.Name] {
			return &ValidationError{Msg: fmt.Sprintf("recipient %q listed twice", r.Name)}
		}
		seenRecipients[r.Name] = true
	}

	seenShares := map[string]bool{}
	for _, s := range c.Shares {
		if strings.TrimSpace(s.Name) == "" {
			return &ValidationError{Msg: "share name is required"}
		}
		if seenShares[s.Name] {
			return &ValidationError{Msg: fmt.Sprintf("share %q listed twice", s.Name)}
		}
		seenShares[s.Name] = true

		if c.Strategy == StrategyCreate {
			for _, name := range s.Recipients {
				if !seenRecipients[name] {
					return &ValidationError{Msg: fmt.Sprintf("share %q references unknown recipient %q", s.Name, name)}
				}
			}
		}

		seenPipelines := map[string]bool{}
		for _, p := range s.Pipelines {
			if strings.TrimSpace(p.Name) == "" {
				return &ValidationError{Msg: fmt.Sprintf("pipeline under share %q has no name", s.Name)}
			}
			if seenPipelines[p.Name] {
				return &ValidationError{Msg: fmt.Sprintf("pipeline %q listed twice under share %q", p.Name, s.Name)}
			}
			seenPipelines[p.Name] = true
			if err := p.Schedule.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}
