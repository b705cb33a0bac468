// Package middleware contains the Gin middleware chain of the LimitGate HTTP
// surface: admission enforcement, observability, and request identity.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/limitgate/internal/domain/models"
	"github.com/turtacn/limitgate/internal/domain/service"
	"github.com/turtacn/limitgate/pkg/constants"
)

// RateLimit enforces the decision engine on every request it wraps. Rejected
// requests are answered in place; admitted ones continue down the chain with
// the standard X-RateLimit headers attached.
//
// Dimension extraction is deliberately header-driven: the gateway in front
// authenticates the caller and forwards subject and tenant identity. A missing
// header simply leaves that dimension unset, making subject- or tenant-scoped
// rules inapplicable to the request.
func RateLimit(engine service.DecisionEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := engine.Check(c.Request.Context(), ExtractDimensions(c))
		SetRateLimitHeaders(c, decision)

		if !decision.Allowed {
			status := decision.StatusCode
			if status == 0 {
				status = http.StatusTooManyRequests
			}
			if retryAfter := decision.RetryAfter(time.Now()); retryAfter > 0 {
				c.Header(constants.HeaderRetryAfter, strconv.FormatInt(int64(retryAfter.Seconds())+1, 10))
			}
			c.AbortWithStatusJSON(status, gin.H{
				"error":             rejectionCode(status),
				"error_description": decision.Message,
			})
			return
		}

		c.Next()
	}
}

// ExtractDimensions derives the request's dimension values for rule matching.
func ExtractDimensions(c *gin.Context) map[string]string {
	dimensions := map[string]string{
		constants.DimensionClientIP: c.ClientIP(),
		constants.DimensionMethod:   c.Request.Method,
		constants.DimensionPath:     c.Request.URL.Path,
	}
	if path := c.FullPath(); path != "" {
		dimensions[constants.DimensionPath] = path
	}
	if subject := c.GetHeader(constants.HeaderSubjectID); subject != "" {
		dimensions[constants.DimensionSubject] = subject
	}
	if tenant := c.GetHeader(constants.HeaderTenantID); tenant != "" {
		dimensions[constants.DimensionTenant] = tenant
	}
	return dimensions
}

// SetRateLimitHeaders attaches the accounting headers. Requests no rule
// applied to get none: there is no limit to report.
func SetRateLimitHeaders(c *gin.Context, decision *models.Decision) {
	if decision.RuleID == "" && decision.Strategy == "" {
		return
	}
	c.Header(constants.HeaderRateLimitLimit, strconv.FormatInt(decision.Limit, 10))
	c.Header(constants.HeaderRateLimitRemaining, strconv.FormatInt(decision.Remaining, 10))
	c.Header(constants.HeaderRateLimitReset, strconv.FormatInt(decision.ResetAt.Unix(), 10))
	c.Header(constants.HeaderRateLimitUsed, strconv.FormatInt(decision.RequestCount, 10))
	if decision.Degraded {
		c.Header(constants.HeaderRateLimitDegraded, "true")
	}
}

func rejectionCode(status int) string {
	if status == http.StatusServiceUnavailable {
		return string(constants.ErrCodeStoreUnavailable)
	}
	return string(constants.ErrCodeRateLimitExceeded)
}
