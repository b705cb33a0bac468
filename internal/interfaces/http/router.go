// Package http assembles the Gin HTTP surface of the LimitGate server.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/limitgate/internal/config"
	"github.com/turtacn/limitgate/internal/domain/service"
	"github.com/turtacn/limitgate/internal/interfaces/http/handlers"
	"github.com/turtacn/limitgate/internal/interfaces/http/middleware"
	"github.com/turtacn/limitgate/pkg/constants"
	"github.com/turtacn/limitgate/pkg/logger"
)

// Router owns the HTTP server lifecycle and route table.
type Router struct {
	engine        *gin.Engine
	cfg           *config.Config
	logger        logger.Logger
	healthHandler *handlers.HealthHandler
	limitsHandler *handlers.LimitsHandler
	decision      service.DecisionEngine
	tracer        trace.Tracer
	server        *http.Server
}

// NewRouter creates the router. Routes are registered on Start.
func NewRouter(
	cfg *config.Config,
	log logger.Logger,
	healthHandler *handlers.HealthHandler,
	limitsHandler *handlers.LimitsHandler,
	decision service.DecisionEngine,
	tracer trace.Tracer,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	return &Router{
		engine:        gin.New(),
		cfg:           cfg,
		logger:        log.WithComponent("http_router"),
		healthHandler: healthHandler,
		limitsHandler: limitsHandler,
		decision:      decision,
		tracer:        tracer,
	}
}

// SetupRoutes registers middleware and routes.
func (r *Router) SetupRoutes() {
	requestsTotal := promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "limitgate_http_requests_total",
			Help: "HTTP requests by method, route, and status.",
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "limitgate_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	r.engine.Use(gin.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Observability(r.tracer, requestsTotal, requestDuration))

	r.engine.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", constants.HeaderRequestID, constants.HeaderSubjectID, constants.HeaderTenantID},
		ExposeHeaders: []string{
			constants.HeaderRequestID,
			constants.HeaderRateLimitLimit,
			constants.HeaderRateLimitRemaining,
			constants.HeaderRateLimitReset,
		},
		MaxAge: 12 * time.Hour,
	}))

	r.engine.GET("/health", r.healthHandler.HealthCheck)
	r.engine.GET("/ready", r.healthHandler.ReadinessCheck)
	r.engine.GET("/live", r.healthHandler.LivenessCheck)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if r.cfg.Server.EnablePprof {
		pprof.Register(r.engine)
	}

	// The admin API protects itself with the same engine it exposes.
	v1 := r.engine.Group("/api/v1")
	v1.Use(middleware.RateLimit(r.decision))
	{
		v1.POST("/check", r.limitsHandler.Check)
		v1.GET("/rules", r.limitsHandler.ListRules)
		v1.POST("/counters/reset", r.limitsHandler.ResetCounter)
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":             "not_found",
			"error_description": "the requested resource was not found",
		})
	})
}

// Start runs the HTTP server until ctx is canceled or the listener fails.
func (r *Router) Start(ctx context.Context) error {
	r.SetupRoutes()

	addr := fmt.Sprintf("%s:%d", r.cfg.Server.Host, r.cfg.Server.Port)
	r.server = &http.Server{
		Addr:           addr,
		Handler:        r.engine,
		ReadTimeout:    r.cfg.Server.ReadTimeout,
		WriteTimeout:   r.cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	r.logger.Info(ctx, "starting http server", logger.String("addr", addr))
	if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (r *Router) Stop(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	r.logger.Info(ctx, "stopping http server")
	return r.server.Shutdown(ctx)
}

// Engine exposes the underlying engine for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
