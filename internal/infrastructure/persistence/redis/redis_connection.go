// Package redis manages the Redis client lifecycle for the shared counter
// store. Standalone, cluster, and sentinel deployments are supported behind
// the same UniversalClient surface.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/limitgate/internal/config"
	"github.com/turtacn/limitgate/pkg/logger"
)

// ConnectionMode defines the Redis deployment mode.
type ConnectionMode string

const (
	ModeStandalone ConnectionMode = "standalone"
	ModeCluster    ConnectionMode = "cluster"
	ModeSentinel   ConnectionMode = "sentinel"
)

// Connection manages the Redis client lifecycle.
type Connection struct {
	cfg    config.RedisConfig
	client redis.UniversalClient
	logger logger.Logger
}

// NewConnection creates a connection manager from the server configuration.
func NewConnection(cfg config.RedisConfig, log logger.Logger) *Connection {
	return &Connection{
		cfg:    cfg,
		logger: log.WithComponent("redis_connection"),
	}
}

// Connect establishes the client for the configured mode and verifies
// connectivity with a ping.
func (c *Connection) Connect(ctx context.Context) error {
	var client redis.UniversalClient
	var err error

	switch ConnectionMode(c.cfg.Mode) {
	case ModeStandalone, "":
		client, err = c.connectStandalone()
	case ModeCluster:
		client, err = c.connectCluster()
	case ModeSentinel:
		client, err = c.connectSentinel()
	default:
		return fmt.Errorf("unsupported redis mode: %s", c.cfg.Mode)
	}
	if err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	c.client = client
	c.logger.Info(ctx, "redis connection established",
		logger.String("mode", c.cfg.Mode),
		logger.Int("pool_size", c.cfg.PoolSize),
	)
	return nil
}

func (c *Connection) connectStandalone() (redis.UniversalClient, error) {
	opts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port),
		Password: c.cfg.Password,
		DB:       c.cfg.DB,

		PoolSize:     c.cfg.PoolSize,
		MinIdleConns: c.cfg.MinIdleConns,

		DialTimeout:  c.cfg.DialTimeout,
		ReadTimeout:  c.cfg.ReadTimeout,
		WriteTimeout: c.cfg.WriteTimeout,
	}
	if c.cfg.EnableTLS {
		opts.TLSConfig = c.tlsConfig()
	}
	return redis.NewClient(opts), nil
}

func (c *Connection) connectCluster() (redis.UniversalClient, error) {
	if len(c.cfg.ClusterAddrs) == 0 {
		return nil, fmt.Errorf("cluster addresses not configured")
	}
	opts := &redis.ClusterOptions{
		Addrs:    c.cfg.ClusterAddrs,
		Password: c.cfg.Password,

		PoolSize:     c.cfg.PoolSize,
		MinIdleConns: c.cfg.MinIdleConns,

		DialTimeout:  c.cfg.DialTimeout,
		ReadTimeout:  c.cfg.ReadTimeout,
		WriteTimeout: c.cfg.WriteTimeout,
	}
	if c.cfg.EnableTLS {
		opts.TLSConfig = c.tlsConfig()
	}
	return redis.NewClusterClient(opts), nil
}

func (c *Connection) connectSentinel() (redis.UniversalClient, error) {
	if len(c.cfg.SentinelAddrs) == 0 {
		return nil, fmt.Errorf("sentinel addresses not configured")
	}
	if c.cfg.SentinelMaster == "" {
		return nil, fmt.Errorf("sentinel master name not configured")
	}
	opts := &redis.FailoverOptions{
		MasterName:    c.cfg.SentinelMaster,
		SentinelAddrs: c.cfg.SentinelAddrs,
		Password:      c.cfg.Password,
		DB:            c.cfg.DB,

		PoolSize:     c.cfg.PoolSize,
		MinIdleConns: c.cfg.MinIdleConns,

		DialTimeout:  c.cfg.DialTimeout,
		ReadTimeout:  c.cfg.ReadTimeout,
		WriteTimeout: c.cfg.WriteTimeout,
	}
	if c.cfg.EnableTLS {
		opts.TLSConfig = c.tlsConfig()
	}
	return redis.NewFailoverClient(opts), nil
}

func (c *Connection) tlsConfig() *tls.Config {
	return &tls.Config{InsecureSkipVerify: c.cfg.TLSSkipVerify}
}

// Client returns the connected client, or nil before Connect succeeds.
func (c *Connection) Client() redis.UniversalClient {
	return c.client
}

// Ping checks server connectivity.
func (c *Connection) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("redis connection not initialized")
	}
	return c.client.Ping(ctx).Err()
}

// Close releases the client and its pool.
func (c *Connection) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}
