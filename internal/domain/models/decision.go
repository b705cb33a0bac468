package models

import (
	"net/http"
	"time"
)

// Decision is the immutable result of one admission check. When the check was
// aggregated across several rules it carries the tightest rule's accounting.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool `json:"allowed"`

	// RuleID names the rule that produced this decision. Empty when no rule
	// applied to the request.
	RuleID string `json:"rule_id,omitempty"`

	// Strategy names the admission algorithm that produced this decision.
	Strategy string `json:"strategy,omitempty"`

	// Limit is the configured ceiling of the deciding rule.
	Limit int64 `json:"limit"`

	// Remaining is the number of requests still admissible, never negative.
	Remaining int64 `json:"remaining"`

	// RequestCount is the counted usage the algorithm attributed to the key.
	RequestCount int64 `json:"request_count"`

	// ResetAt is when capacity becomes available again; never before the check.
	ResetAt time.Time `json:"reset_at"`

	// StatusCode is the HTTP-equivalent status. Only meaningful when rejected
	// or degraded.
	StatusCode int `json:"status_code,omitempty"`

	// Message is a short human-readable explanation for rejections.
	Message string `json:"message,omitempty"`

	// Degraded marks decisions produced under the store fallback policy.
	Degraded bool `json:"degraded,omitempty"`

	// Cached marks decisions served from the approximate deny cache rather
	// than a store round trip.
	Cached bool `json:"cached,omitempty"`
}

// RetryAfter returns the time to wait before retrying, zero for admitted requests.
func (d *Decision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed || d.ResetAt.Before(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

// UnlimitedDecision is the unconditional allow returned for requests that match
// no rule.
func UnlimitedDecision(now time.Time) *Decision {
	return &Decision{
		Allowed:   true,
		Remaining: 0,
		ResetAt:   now,
	}
}

// RejectedDecision builds a rejection with the default HTTP-equivalent status.
func RejectedDecision(ruleID, strategy string, limit, remaining, count int64, resetAt time.Time) *Decision {
	return &Decision{
		Allowed:      false,
		RuleID:       ruleID,
		Strategy:     strategy,
		Limit:        limit,
		Remaining:    remaining,
		RequestCount: count,
		ResetAt:      resetAt,
		StatusCode:   http.StatusTooManyRequests,
		Message:      "rate limit exceeded",
	}
}
