package models

import (
	"time"

	"github.com/google/uuid"
)

// DecisionEvent is the audit trail record emitted for rejected and degraded
// decisions. It is serialized as-is onto the audit topic.
type DecisionEvent struct {
	EventID    uuid.UUID         `json:"event_id"`
	Timestamp  time.Time         `json:"timestamp"`
	RuleID     string            `json:"rule_id,omitempty"`
	Strategy   string            `json:"strategy,omitempty"`
	Key        string            `json:"key,omitempty"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
	Allowed    bool              `json:"allowed"`
	Degraded   bool              `json:"degraded"`
	StatusCode int               `json:"status_code,omitempty"`
	TraceID    string            `json:"trace_id,omitempty"`
}

// NewDecisionEvent builds an audit event from a finished decision.
func NewDecisionEvent(d *Decision, key string, dims map[string]string) DecisionEvent {
	return DecisionEvent{
		EventID:    uuid.New(),
		Timestamp:  time.Now().UTC(),
		RuleID:     d.RuleID,
		Strategy:   d.Strategy,
		Key:        key,
		Dimensions: dims,
		Allowed:    d.Allowed,
		Degraded:   d.Degraded,
		StatusCode: d.StatusCode,
	}
}
