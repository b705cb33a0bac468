// Package models contains the domain model of the rate-limiting decision engine.
package models

import (
	"time"

	"github.com/turtacn/limitgate/pkg/constants"
	"github.com/turtacn/limitgate/pkg/errors"
)

// LimitParams holds the immutable admission parameters of a single rule.
type LimitParams struct {
	// Rate is the sustained refill rate in requests per second (token bucket).
	Rate float64 `json:"rate" mapstructure:"rate"`

	// Capacity is the burst ceiling (token bucket) or the per-window ceiling
	// (fixed and sliding window).
	Capacity int64 `json:"capacity" mapstructure:"capacity"`

	// WindowSize is the window length for the windowed algorithms. Ignored by
	// the token bucket.
	WindowSize time.Duration `json:"window_size" mapstructure:"window_size"`

	// Algorithm selects the admission strategy.
	Algorithm constants.AlgorithmType `json:"algorithm" mapstructure:"algorithm"`
}

// Validate rejects malformed parameters at rule-load time. Invalid parameters
// are never defaulted silently.
func (p LimitParams) Validate(ruleID string) error {
	if !p.Algorithm.IsValid() {
		return errors.ErrConfiguration(ruleID, "unknown algorithm "+string(p.Algorithm))
	}
	if p.Capacity <= 0 {
		return errors.ErrConfiguration(ruleID, "capacity must be positive")
	}
	switch p.Algorithm {
	case constants.AlgorithmTokenBucket:
		if p.Rate <= 0 {
			return errors.ErrConfiguration(ruleID, "rate must be positive for token_bucket")
		}
	case constants.AlgorithmFixedWindow, constants.AlgorithmSlidingWindow:
		if p.WindowSize <= 0 {
			return errors.ErrConfiguration(ruleID, "window_size must be positive for windowed algorithms")
		}
	}
	return nil
}

// LimitRule binds limit parameters to the request dimensions they are scoped by.
// Rules are evaluated in registry order; the first rejection wins.
type LimitRule struct {
	// ID uniquely identifies the rule and is part of every derived counter key.
	ID string `json:"id" mapstructure:"id"`

	// Dimensions lists the request dimensions the rule is keyed by. A rule
	// whose dimensions are not all present in a request is inapplicable to it.
	// An empty list scopes the rule globally.
	Dimensions []string `json:"dimensions" mapstructure:"dimensions"`

	// Params are the admission parameters.
	Params LimitParams `json:"params" mapstructure:"params"`

	// Priority orders rules within a registry; lower values are evaluated first.
	Priority int `json:"priority" mapstructure:"priority"`
}

// Validate checks the rule for structural problems.
func (r LimitRule) Validate() error {
	if r.ID == "" {
		return errors.ErrConfiguration("", "rule id must not be empty")
	}
	for _, d := range r.Dimensions {
		if d == "" {
			return errors.ErrConfiguration(r.ID, "dimension names must not be empty")
		}
	}
	return r.Params.Validate(r.ID)
}
