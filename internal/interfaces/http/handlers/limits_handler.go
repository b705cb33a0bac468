package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/limitgate/internal/domain/models"
	"github.com/turtacn/limitgate/internal/domain/service"
	"github.com/turtacn/limitgate/internal/infrastructure/cache"
	"github.com/turtacn/limitgate/internal/infrastructure/ratelimit"
	"github.com/turtacn/limitgate/pkg/constants"
	"github.com/turtacn/limitgate/pkg/errors"
	"github.com/turtacn/limitgate/pkg/logger"
)

// LimitsHandler serves the decision API and rule administration. The check
// endpoint is what a gateway calls when enforcement runs out-of-process
// instead of through the in-process middleware.
type LimitsHandler struct {
	engine     service.DecisionEngine
	registry   service.RuleRegistry
	strategies map[constants.AlgorithmType]service.Strategy
	keys       *ratelimit.KeyBuilder
	denyCache  *cache.DenyCache
	log        logger.Logger
}

// NewLimitsHandler creates the handler. denyCache may be nil.
func NewLimitsHandler(
	engine service.DecisionEngine,
	registry service.RuleRegistry,
	strategies map[constants.AlgorithmType]service.Strategy,
	keys *ratelimit.KeyBuilder,
	denyCache *cache.DenyCache,
	log logger.Logger,
) *LimitsHandler {
	return &LimitsHandler{
		engine:     engine,
		registry:   registry,
		strategies: strategies,
		keys:       keys,
		denyCache:  denyCache,
		log:        log.WithComponent("limits_handler"),
	}
}

// CheckRequest is the body of the decision endpoint.
type CheckRequest struct {
	Dimensions map[string]string `json:"dimensions" binding:"required"`
}

// Check decides one request on behalf of a remote caller. The decision itself
// is always 200; the admission verdict lives in the body so callers can apply
// their own enforcement.
func (h *LimitsHandler) Check(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(
			errors.ErrServerError("request body must carry a dimensions object"),
		))
		return
	}

	decision := h.engine.Check(c.Request.Context(), req.Dimensions)
	c.JSON(http.StatusOK, decision)
}

// ListRules returns the active rule snapshot in evaluation order.
func (h *LimitsHandler) ListRules(c *gin.Context) {
	rules := h.registry.ActiveRules()
	c.JSON(http.StatusOK, gin.H{
		"rules": rules,
		"count": len(rules),
	})
}

// ResetRequest identifies one counter to reset: a rule plus the dimension
// values that key it.
type ResetRequest struct {
	RuleID     string            `json:"rule_id" binding:"required"`
	Dimensions map[string]string `json:"dimensions"`
}

// ResetCounter administratively clears a counter, e.g. to lift a limit after
// an incident. The deny cache entry is dropped alongside so the reset takes
// effect immediately.
func (h *LimitsHandler) ResetCounter(c *gin.Context) {
	var req ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(
			errors.ErrServerError("request body must carry rule_id"),
		))
		return
	}

	rule, ok := h.findRule(req.RuleID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":             "not_found",
			"error_description": "no active rule with that id",
		})
		return
	}

	key, err := h.keys.Build(rule, req.Dimensions)
	if err != nil {
		le, _ := errors.AsLimitError(err)
		c.JSON(le.HTTPStatus(), errors.ToErrorResponse(le))
		return
	}

	strategy, ok := h.strategies[rule.Params.Algorithm]
	if !ok {
		c.JSON(http.StatusInternalServerError, errors.ToErrorResponse(
			errors.ErrServerError("no strategy registered for rule algorithm"),
		))
		return
	}

	// The strategy owns the counter key layout, so it performs the delete.
	if err := strategy.Reset(c.Request.Context(), key, rule.Params); err != nil {
		h.log.Error(c.Request.Context(), "counter reset failed", err, logger.String("rule_id", req.RuleID))
		c.JSON(http.StatusServiceUnavailable, errors.ToErrorResponse(
			errors.ErrStoreUnavailable(err.Error()),
		))
		return
	}
	if h.denyCache != nil {
		h.denyCache.Invalidate(key)
	}

	h.log.Info(c.Request.Context(), "counter reset", logger.String("rule_id", req.RuleID))
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

func (h *LimitsHandler) findRule(id string) (models.LimitRule, bool) {
	for _, rule := range h.registry.ActiveRules() {
		if rule.ID == id {
			return rule, true
		}
	}
	return models.LimitRule{}, false
}
