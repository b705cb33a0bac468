// Package repository defines the persistence ports of the domain layer.
package repository

import (
	"context"

	"github.com/turtacn/limitgate/internal/domain/models"
)

// RuleRepository loads limit rules from a relational source. Implementations
// return rules without ordering guarantees; the registry sorts them.
type RuleRepository interface {
	// ListActive returns every enabled rule.
	ListActive(ctx context.Context) ([]models.LimitRule, error)

	// Save creates or updates a rule by ID.
	Save(ctx context.Context, rule models.LimitRule) error

	// Delete removes a rule by ID.
	Delete(ctx context.Context, id string) error
}
