package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/turtacn/limitgate/pkg/constants"
	"github.com/turtacn/limitgate/pkg/errors"
)

// LoadConfig loads the configuration from file and environment variables.
// Environment variables use the LIMITGATE_ prefix with underscores for nesting
// (LIMITGATE_REDIS_HOST overrides redis.host).
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/limitgate/")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.ErrConfiguration("", "failed to read config file").WithCause(err)
		}
	}

	v.SetEnvPrefix("LIMITGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.ErrConfiguration("", "failed to unmarshal config").WithCause(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)

	v.SetDefault("redis.mode", "standalone")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("rate_limit.key_prefix", constants.DefaultKeyPrefix)
	v.SetDefault("rate_limit.store_timeout", constants.DefaultStoreTimeout)
	v.SetDefault("rate_limit.fallback_policy", string(constants.FallbackFailOpen))
	v.SetDefault("rate_limit.rule_source", RuleSourceStatic)
	v.SetDefault("rate_limit.refresh_interval", constants.DefaultRuleRefreshInterval)
	v.SetDefault("rate_limit.deny_cache.enabled", false)
	v.SetDefault("rate_limit.deny_cache.ttl", constants.DefaultDenyCacheTTL)

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.topic", "limitgate.decisions")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "limitgate")
}
