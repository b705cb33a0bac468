// Package service contains the application layer: the dispatcher that turns a
// request's dimension values into one definitive admission decision.
package service

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/limitgate/internal/domain/models"
	"github.com/turtacn/limitgate/internal/domain/service"
	"github.com/turtacn/limitgate/internal/infrastructure/cache"
	"github.com/turtacn/limitgate/internal/infrastructure/monitoring"
	"github.com/turtacn/limitgate/internal/infrastructure/ratelimit"
	"github.com/turtacn/limitgate/pkg/constants"
	"github.com/turtacn/limitgate/pkg/errors"
	"github.com/turtacn/limitgate/pkg/logger"
)

var _ service.DecisionEngine = (*Dispatcher)(nil)

// Dispatcher evaluates the active rules against a request's dimension values
// and aggregates the per-rule results into one final decision.
//
// Evaluation follows registry order with short-circuit rejection: the first
// rule that rejects decides the request and later rules are not consulted, so
// their counters see no traffic from it. When every applicable rule admits,
// the final decision carries the tightest accounting across them. A request no
// rule applies to is admitted unconditionally.
//
// Store failures never leave a request undecided: the configured fallback
// policy resolves them into a degraded allow or a degraded reject.
type Dispatcher struct {
	registry   service.RuleRegistry
	strategies map[constants.AlgorithmType]service.Strategy
	keys       *ratelimit.KeyBuilder
	fallback   constants.FallbackPolicy
	denyCache  *cache.DenyCache
	metrics    *monitoring.Metrics
	audit      service.AuditPublisher
	logger     logger.Logger
	clock      func() time.Time
}

// NewDispatcher wires the decision engine. denyCache, metrics, and audit are
// optional; nil disables the corresponding concern.
func NewDispatcher(
	registry service.RuleRegistry,
	strategies map[constants.AlgorithmType]service.Strategy,
	keys *ratelimit.KeyBuilder,
	fallback constants.FallbackPolicy,
	log logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		registry:   registry,
		strategies: strategies,
		keys:       keys,
		fallback:   fallback,
		logger:     log.WithComponent("dispatcher"),
		clock:      time.Now,
	}
}

// WithDenyCache enables the local deny cache.
func (d *Dispatcher) WithDenyCache(c *cache.DenyCache) *Dispatcher {
	d.denyCache = c
	return d
}

// WithMetrics enables Prometheus instrumentation.
func (d *Dispatcher) WithMetrics(m *monitoring.Metrics) *Dispatcher {
	d.metrics = m
	return d
}

// WithAudit enables the decision event stream.
func (d *Dispatcher) WithAudit(a service.AuditPublisher) *Dispatcher {
	d.audit = a
	return d
}

// Check decides one request. It always returns a decision.
func (d *Dispatcher) Check(ctx context.Context, dimensions map[string]string) *models.Decision {
	start := d.clock()
	rules := d.registry.ActiveRules()
	if d.metrics != nil {
		d.metrics.ActiveRules.Set(float64(len(rules)))
	}

	var (
		tightest    *models.Decision
		tightestKey string
		applied     int
	)

	for _, rule := range rules {
		key, err := d.keys.Build(rule, dimensions)
		if err != nil {
			// The rule's dimensions are not all present: inapplicable to this
			// request, never a request failure.
			d.logger.Debug(ctx, "rule inapplicable", logger.String("rule_id", rule.ID), logger.Error(err))
			continue
		}
		applied++

		if d.denyCache != nil {
			if cached, ok := d.denyCache.Get(key); ok {
				cached.RuleID = rule.ID
				if d.metrics != nil {
					d.metrics.DenyCacheHits.Inc()
				}
				return d.finish(ctx, start, cached, key, dimensions)
			}
		}

		strategy, ok := d.strategies[rule.Params.Algorithm]
		if !ok {
			// Rule validation keeps unknown algorithms out of the registry;
			// reaching this is a wiring bug, decided by the fallback policy.
			err := errors.ErrConfiguration(rule.ID, "no strategy registered for algorithm "+string(rule.Params.Algorithm))
			d.logger.Error(ctx, "missing strategy", err, logger.String("rule_id", rule.ID))
			return d.finish(ctx, start, d.degraded(ctx, rule, err), key, dimensions)
		}

		decision, err := strategy.Allow(ctx, key, rule.Params)
		if err != nil {
			return d.finish(ctx, start, d.degraded(ctx, rule, err), key, dimensions)
		}
		decision.RuleID = rule.ID

		if !decision.Allowed {
			if d.denyCache != nil {
				d.denyCache.Put(key, *decision)
			}
			return d.finish(ctx, start, decision, key, dimensions)
		}

		if tighter(decision, tightest) {
			tightest = decision
			tightestKey = key
		}
	}

	if applied == 0 {
		return d.finish(ctx, start, models.UnlimitedDecision(d.clock()), "", dimensions)
	}
	return d.finish(ctx, start, tightest, tightestKey, dimensions)
}

// degraded resolves a store or wiring failure into a decision per the
// configured fallback policy.
func (d *Dispatcher) degraded(ctx context.Context, rule models.LimitRule, cause error) *models.Decision {
	d.logger.Warn(ctx, "resolving decision via fallback policy",
		logger.String("rule_id", rule.ID),
		logger.String("policy", string(d.fallback)),
		logger.Error(cause),
	)
	if d.metrics != nil {
		d.metrics.RecordDegraded(string(d.fallback))
	}

	now := d.clock()
	if d.fallback == constants.FallbackFailClosed {
		return &models.Decision{
			Allowed:    false,
			RuleID:     rule.ID,
			Limit:      rule.Params.Capacity,
			ResetAt:    now,
			StatusCode: http.StatusServiceUnavailable,
			Message:    "rate limiter unavailable",
			Degraded:   true,
		}
	}
	return &models.Decision{
		Allowed:  true,
		RuleID:   rule.ID,
		Limit:    rule.Params.Capacity,
		ResetAt:  now,
		Degraded: true,
	}
}

// finish instruments and audits the final decision.
func (d *Dispatcher) finish(ctx context.Context, start time.Time, decision *models.Decision, key string, dims map[string]string) *models.Decision {
	if d.metrics != nil {
		result := "allowed"
		if !decision.Allowed {
			result = "rejected"
		}
		d.metrics.RecordDecision(labelOrNone(decision.RuleID), labelOrNone(decision.Strategy), result, d.clock().Sub(start))
	}

	if d.audit != nil && (!decision.Allowed || decision.Degraded) {
		event := models.NewDecisionEvent(decision, key, dims)
		if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
			event.TraceID = span.SpanContext().TraceID().String()
		}
		if err := d.audit.Publish(ctx, event); err != nil {
			d.logger.Warn(ctx, "decision event not published", logger.Error(err))
		}
	}

	return decision
}

// tighter reports whether a is the more constraining of two allowed decisions:
// fewer remaining requests, ties broken by the later reset.
func tighter(a, b *models.Decision) bool {
	if b == nil {
		return true
	}
	if a.Remaining != b.Remaining {
		return a.Remaining < b.Remaining
	}
	return a.ResetAt.After(b.ResetAt)
}

func labelOrNone(v string) string {
	if v == "" {
		return "none"
	}
	return v
}
