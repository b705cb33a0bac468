// Package constants defines system-wide constants for the LimitGate decision engine.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ================================================================================
// Algorithm Constants
// ================================================================================

// AlgorithmType identifies a rate-limiting admission algorithm.
type AlgorithmType string

const (
	// AlgorithmTokenBucket is a capacity-bounded reservoir refilled continuously at a fixed rate
	AlgorithmTokenBucket AlgorithmType = "token_bucket"

	// AlgorithmSlidingWindow estimates the trailing-interval count from two adjacent fixed buckets
	AlgorithmSlidingWindow AlgorithmType = "sliding_window"

	// AlgorithmFixedWindow counts requests within non-overlapping, clock-aligned intervals
	AlgorithmFixedWindow AlgorithmType = "fixed_window"
)

// IsValid reports whether the algorithm tag names a known strategy.
func (a AlgorithmType) IsValid() bool {
	switch a {
	case AlgorithmTokenBucket, AlgorithmSlidingWindow, AlgorithmFixedWindow:
		return true
	}
	return false
}

// ================================================================================
// Fallback Policy Constants
// ================================================================================

// FallbackPolicy selects the degradation behavior when the shared counter store
// is slow or unreachable.
type FallbackPolicy string

const (
	// FallbackFailOpen admits the request and marks the decision as degraded
	FallbackFailOpen FallbackPolicy = "fail_open"

	// FallbackFailClosed rejects the request with a distinguishable status
	FallbackFailClosed FallbackPolicy = "fail_closed"
)

// IsValid reports whether the policy is a known fallback policy.
func (p FallbackPolicy) IsValid() bool {
	return p == FallbackFailOpen || p == FallbackFailClosed
}

// ================================================================================
// Request Dimension Constants
// ================================================================================

// Dimension names supplied by the ingress layer. Rules reference these names;
// a rule whose dimensions are not all present in a request is inapplicable.
const (
	DimensionClientIP = "client_ip"
	DimensionSubject  = "subject"
	DimensionTenant   = "tenant"
	DimensionPath     = "path"
	DimensionMethod   = "method"
)

// ================================================================================
// HTTP Header Constants
// ================================================================================

const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRateLimitUsed      = "X-RateLimit-Used"
	HeaderRateLimitDegraded  = "X-RateLimit-Degraded"
	HeaderRetryAfter         = "Retry-After"
	HeaderRequestID          = "X-Request-ID"
	HeaderSubjectID          = "X-Subject-ID"
	HeaderTenantID           = "X-Tenant-ID"
)

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey is the type used for request-scoped context values.
type ContextKey string

const (
	// ContextKeyRequestID carries the per-request identifier
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyTenantID carries the tenant identifier when known
	ContextKeyTenantID ContextKey = "tenant_id"

	// ContextKeySubjectID carries the authenticated subject identifier when known
	ContextKeySubjectID ContextKey = "subject_id"
)

// ================================================================================
// Error Codes
// ================================================================================

// ErrorCode classifies engine errors.
type ErrorCode string

const (
	// ErrCodeConfiguration indicates malformed limit parameters, rejected at rule-load time
	ErrCodeConfiguration ErrorCode = "configuration_error"

	// ErrCodeStoreUnavailable indicates a store timeout or unreachable store
	ErrCodeStoreUnavailable ErrorCode = "store_unavailable"

	// ErrCodeKeyConstruction indicates a rule dimension missing from the request
	ErrCodeKeyConstruction ErrorCode = "key_construction_error"

	// ErrCodeAlgorithmInternal indicates corrupted counter state read from the store
	ErrCodeAlgorithmInternal ErrorCode = "algorithm_internal_error"

	// ErrCodeRateLimitExceeded indicates a rejected admission decision
	ErrCodeRateLimitExceeded ErrorCode = "rate_limit_exceeded"

	// ErrCodeServerError indicates an unexpected internal condition
	ErrCodeServerError ErrorCode = "server_error"
)

// ================================================================================
// Store and Engine Defaults
// ================================================================================

const (
	// DefaultKeyPrefix namespaces all counter keys in the shared store
	DefaultKeyPrefix = "limitgate"

	// DefaultStoreTimeout bounds a single store round trip
	DefaultStoreTimeout = 200 * time.Millisecond

	// DefaultCASMaxRetries bounds compare-and-swap retries under contention
	DefaultCASMaxRetries = 4

	// DefaultRuleRefreshInterval is the poll interval for database-backed registries
	DefaultRuleRefreshInterval = 30 * time.Second

	// DefaultDenyCacheTTL is the lifetime of approximate cached denials
	DefaultDenyCacheTTL = 250 * time.Millisecond

	// CounterTTLSlack is added on top of the window/refill horizon so counter
	// state outlives bounded clock skew between replicas before expiring
	CounterTTLSlack = time.Minute
)

// ================================================================================
// Log Level Constants
// ================================================================================

// LogLevel represents the logging severity level.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelFatal
)
