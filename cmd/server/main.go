// LimitGate server: the distributed rate-limiting decision engine for the API
// gateway edge. It assembles the counter store, the rule registry, the
// dispatcher, and the HTTP and gRPC enforcement surfaces.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	appservice "github.com/turtacn/limitgate/internal/application/service"
	"github.com/turtacn/limitgate/internal/config"
	domainservice "github.com/turtacn/limitgate/internal/domain/service"
	"github.com/turtacn/limitgate/internal/infrastructure/audit"
	"github.com/turtacn/limitgate/internal/infrastructure/cache"
	"github.com/turtacn/limitgate/internal/infrastructure/monitoring"
	"github.com/turtacn/limitgate/internal/infrastructure/persistence/postgres"
	"github.com/turtacn/limitgate/internal/infrastructure/persistence/redis"
	"github.com/turtacn/limitgate/internal/infrastructure/ratelimit"
	"github.com/turtacn/limitgate/internal/infrastructure/registry"
	"github.com/turtacn/limitgate/internal/infrastructure/store"
	grpciface "github.com/turtacn/limitgate/internal/interfaces/grpc"
	httpiface "github.com/turtacn/limitgate/internal/interfaces/http"
	"github.com/turtacn/limitgate/internal/interfaces/http/handlers"
	"github.com/turtacn/limitgate/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLogger, err := monitoring.NewZapLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	logger.SetGlobalLogger(appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracing, err := monitoring.NewTracingManager(cfg.Tracing, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "failed to initialize tracing", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.Shutdown(shutdownCtx)
	}()

	redisConn := redis.NewConnection(cfg.Redis, appLogger)
	if err := redisConn.Connect(ctx); err != nil {
		appLogger.Fatal(ctx, "failed to connect to redis", err)
	}
	defer redisConn.Close()

	metrics := monitoring.NewMetrics()
	counterStore := store.NewRedisCounterStore(redisConn.Client(), cfg.RateLimit.StoreTimeout, appLogger).
		WithObserver(metrics)

	ruleRegistry, err := buildRegistry(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "failed to build rule registry", err)
	}

	keys := ratelimit.NewKeyBuilder(cfg.RateLimit.KeyPrefix)
	strategies := ratelimit.NewStrategyTable(counterStore, appLogger)

	dispatcher := appservice.NewDispatcher(ruleRegistry, strategies, keys, cfg.RateLimit.FallbackPolicy, appLogger).
		WithMetrics(metrics)

	var denyCache *cache.DenyCache
	if cfg.RateLimit.DenyCache.Enabled {
		denyCache = cache.NewDenyCache(cfg.RateLimit.DenyCache.TTL)
		dispatcher.WithDenyCache(denyCache)
	}

	if cfg.Audit.Enabled {
		publisher := audit.NewKafkaPublisher(cfg.Audit, appLogger)
		defer publisher.Close()
		dispatcher.WithAudit(publisher)
	}

	healthHandler := handlers.NewHealthHandler(counterStore, appLogger)
	limitsHandler := handlers.NewLimitsHandler(dispatcher, ruleRegistry, strategies, keys, denyCache, appLogger)
	router := httpiface.NewRouter(cfg, appLogger, healthHandler, limitsHandler, dispatcher, tracing.Tracer())

	grpcServer := grpc.NewServer(
		grpciface.NewInterceptorChain(appLogger, dispatcher).ChainUnaryInterceptors(),
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return router.Start(groupCtx)
	})

	group.Go(func() error {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		appLogger.Info(groupCtx, "starting grpc server", logger.Int("port", cfg.Server.GRPCPort))
		return grpcServer.Serve(lis)
	})

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = router.Stop(shutdownCtx)
		grpcServer.GracefulStop()
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		appLogger.Fatal(context.Background(), "server exited with error", err)
	}
	appLogger.Info(context.Background(), "server stopped")
}

// buildRegistry selects the configured rule source.
func buildRegistry(ctx context.Context, cfg *config.Config, log logger.Logger) (domainservice.RuleRegistry, error) {
	switch cfg.RateLimit.RuleSource {
	case config.RuleSourceStatic:
		return registry.NewStaticRegistry(cfg.RateLimit.Rules)

	case config.RuleSourceFile:
		return registry.NewFileRegistry(ctx, cfg.RateLimit.RulesFile, log)

	case config.RuleSourceDB:
		db, err := postgres.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		repo, err := postgres.NewRuleRepository(db, log)
		if err != nil {
			return nil, err
		}
		return registry.NewDBRegistry(ctx, repo, cfg.RateLimit.RefreshInterval, log)

	default:
		return nil, fmt.Errorf("unknown rule source %q", cfg.RateLimit.RuleSource)
	}
}
