package registry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/turtacn/limitgate/internal/domain/models"
	"github.com/turtacn/limitgate/internal/domain/repository"
	"github.com/turtacn/limitgate/internal/domain/service"
	"github.com/turtacn/limitgate/pkg/constants"
	"github.com/turtacn/limitgate/pkg/logger"
)

var _ service.RuleRegistry = (*DBRegistry)(nil)

// DBRegistry serves rules from a relational repository, refreshed on a fixed
// interval. Like the file registry it keeps the last good snapshot when a
// refresh fails, so a database outage degrades rule freshness, not admission.
type DBRegistry struct {
	repo     repository.RuleRepository
	interval time.Duration
	logger   logger.Logger
	snapshot atomic.Value // []models.LimitRule
}

// NewDBRegistry performs the initial load and starts the refresh loop. The
// initial load must succeed.
func NewDBRegistry(ctx context.Context, repo repository.RuleRepository, interval time.Duration, log logger.Logger) (*DBRegistry, error) {
	if interval <= 0 {
		interval = constants.DefaultRuleRefreshInterval
	}
	r := &DBRegistry{
		repo:     repo,
		interval: interval,
		logger:   log.WithComponent("db_registry"),
	}

	rules, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	r.snapshot.Store(rules)

	go r.refresh(ctx)
	return r, nil
}

// ActiveRules returns the current immutable snapshot.
func (r *DBRegistry) ActiveRules() []models.LimitRule {
	return r.snapshot.Load().([]models.LimitRule)
}

func (r *DBRegistry) load(ctx context.Context) ([]models.LimitRule, error) {
	rules, err := r.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return prepareRules(rules)
}

func (r *DBRegistry) refresh(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rules, err := r.load(ctx)
			if err != nil {
				r.logger.Error(ctx, "rule refresh failed, keeping previous rules", err)
				continue
			}
			r.snapshot.Store(rules)
			r.logger.Debug(ctx, "rules refreshed", logger.Int("rules", len(rules)))
		}
	}
}
