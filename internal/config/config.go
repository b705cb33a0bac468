// Package config defines the configuration surface of the LimitGate server and
// the viper-based loader that populates it from file and environment.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/limitgate/internal/domain/models"
	"github.com/turtacn/limitgate/pkg/constants"
)

// Config holds the full server configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	GRPCPort     int           `mapstructure:"grpc_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	EnablePprof  bool          `mapstructure:"enable_pprof"`
}

type RedisConfig struct {
	Mode           string        `mapstructure:"mode"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	ClusterAddrs   []string      `mapstructure:"cluster_addrs"`
	SentinelAddrs  []string      `mapstructure:"sentinel_addrs"`
	SentinelMaster string        `mapstructure:"sentinel_master"`
	PoolSize       int           `mapstructure:"pool_size"`
	MinIdleConns   int           `mapstructure:"min_idle_conns"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	EnableTLS      bool          `mapstructure:"enable_tls"`
	TLSSkipVerify  bool          `mapstructure:"tls_skip_verify"`
}

// DatabaseConfig configures the optional relational rule source.
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxConns        int    `mapstructure:"max_conns"`
	MaxConnLifetime int    `mapstructure:"max_conn_lifetime"` // minutes
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RateLimitConfig configures the decision engine itself.
type RateLimitConfig struct {
	// KeyPrefix namespaces every counter key in the shared store.
	KeyPrefix string `mapstructure:"key_prefix"`

	// StoreTimeout bounds each counter store round trip.
	StoreTimeout time.Duration `mapstructure:"store_timeout"`

	// FallbackPolicy decides requests when the store is unreachable.
	FallbackPolicy constants.FallbackPolicy `mapstructure:"fallback_policy"`

	// RuleSource selects where active rules come from: static, file, or db.
	RuleSource string `mapstructure:"rule_source"`

	// Rules is the inline rule set used by the static source.
	Rules []models.LimitRule `mapstructure:"rules"`

	// RulesFile is the YAML rule file watched by the file source.
	RulesFile string `mapstructure:"rules_file"`

	// RefreshInterval is the polling period of the db source.
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`

	DenyCache DenyCacheConfig `mapstructure:"deny_cache"`
}

// DenyCacheConfig configures the short-lived local cache of rejections. The
// cache only ever serves denials; admissions always reach the shared store.
type DenyCacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// AuditConfig configures the Kafka decision event stream.
type AuditConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
}

const (
	RuleSourceStatic = "static"
	RuleSourceFile   = "file"
	RuleSourceDB     = "db"
)

// Validate checks the configuration for values the server cannot start with.
// Rule validation happens per-rule so one bad rule names itself in the error.
func (c *Config) Validate() error {
	if !c.RateLimit.FallbackPolicy.IsValid() {
		return fmt.Errorf("invalid fallback policy %q", c.RateLimit.FallbackPolicy)
	}

	switch c.RateLimit.RuleSource {
	case RuleSourceStatic:
		for i := range c.RateLimit.Rules {
			if err := c.RateLimit.Rules[i].Validate(); err != nil {
				return err
			}
		}
	case RuleSourceFile:
		if c.RateLimit.RulesFile == "" {
			return fmt.Errorf("rule source %q requires rate_limit.rules_file", RuleSourceFile)
		}
	case RuleSourceDB:
		if c.Database.Host == "" {
			return fmt.Errorf("rule source %q requires database configuration", RuleSourceDB)
		}
	default:
		return fmt.Errorf("unknown rule source %q", c.RateLimit.RuleSource)
	}

	return nil
}
