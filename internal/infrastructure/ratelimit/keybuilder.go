// Package ratelimit implements the admission strategies and key derivation of
// the decision engine. All per-key state lives in the shared counter store;
// nothing in this package caches counters as a source of truth.
package ratelimit

import (
	"sort"
	"strings"

	"github.com/turtacn/limitgate/internal/domain/models"
	"github.com/turtacn/limitgate/pkg/errors"
)

// keySeparator joins key segments. Unit separator keeps dimension values from
// colliding with the segment layout.
const keySeparator = '\x1f'

// KeyBuilder derives deterministic counter keys from a rule and the request's
// dimension values. Identical dimension sets produce the identical key
// regardless of map iteration order: dimension names are sorted before
// encoding.
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder creates a key builder. The prefix namespaces every derived key
// in the shared store.
func NewKeyBuilder(prefix string) *KeyBuilder {
	return &KeyBuilder{prefix: prefix}
}

// Build derives the counter key for rule from the request's dimension values.
// A rule dimension absent from the request makes the rule inapplicable and is
// reported as a key construction error; it is never substituted with a
// placeholder.
func (kb *KeyBuilder) Build(rule models.LimitRule, dimensions map[string]string) (string, error) {
	names := make([]string, len(rule.Dimensions))
	copy(names, rule.Dimensions)
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(kb.prefix)
	b.WriteByte(keySeparator)
	b.WriteString(rule.ID)

	for i, name := range names {
		if i > 0 && names[i-1] == name {
			continue // duplicate dimension in rule definition
		}
		value, ok := dimensions[name]
		if !ok || value == "" {
			return "", errors.ErrKeyConstruction(rule.ID, name)
		}
		b.WriteByte(keySeparator)
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(value)
	}

	return b.String(), nil
}
