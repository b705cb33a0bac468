// Package registry provides the rule registries: a fixed in-memory set, a
// hot-reloading rule file, and a periodically refreshed database source. All
// registries expose immutable snapshots; in-flight checks never observe a
// partially applied update.
package registry

import (
	"sort"

	"github.com/turtacn/limitgate/internal/domain/models"
	"github.com/turtacn/limitgate/internal/domain/service"
)

var _ service.RuleRegistry = (*StaticRegistry)(nil)

// StaticRegistry serves a fixed rule set loaded once at startup.
type StaticRegistry struct {
	rules []models.LimitRule
}

// NewStaticRegistry validates and orders the given rules. A single invalid
// rule fails the whole load so misconfiguration is caught at startup, not at
// request time.
func NewStaticRegistry(rules []models.LimitRule) (*StaticRegistry, error) {
	ordered, err := prepareRules(rules)
	if err != nil {
		return nil, err
	}
	return &StaticRegistry{rules: ordered}, nil
}

// ActiveRules returns the rule snapshot. Callers must not mutate it.
func (r *StaticRegistry) ActiveRules() []models.LimitRule {
	return r.rules
}

// prepareRules validates every rule and returns a sorted copy: ascending
// priority, ties broken by ID for a deterministic evaluation order.
func prepareRules(rules []models.LimitRule) ([]models.LimitRule, error) {
	ordered := make([]models.LimitRule, len(rules))
	copy(ordered, rules)

	for i := range ordered {
		if err := ordered[i].Validate(); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})
	return ordered, nil
}
