package config

import (
	"fmt"
	"time"

	"github.com/turtacn/pushgate/pkg/errors"
)

// Config holds the application's configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	APNs        APNsConfig        `mapstructure:"apns"`
	Key         KeyConfig         `mapstructure:"key"`
	Registry    RegistryConfig    `mapstructure:"registry"`
	Dispatch    DispatchConfig    `mapstructure:"dispatch"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Log         LogConfig         `mapstructure:"log"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	ReadTimeout    int      `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout   int      `mapstructure:"write_timeout"` // in seconds
	AuthUser       string   `mapstructure:"auth_user"`
	AuthPass       string   `mapstructure:"auth_pass"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	Debug          bool     `mapstructure:"debug"`
}

// Address returns the listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// APNsConfig carries the identifiers that go into the bearer credential and
// the request headers.
type APNsConfig struct {
	TeamID   string `mapstructure:"team_id"`   // credential issuer
	KeyID    string `mapstructure:"key_id"`    // credential kid
	BundleID string `mapstructure:"bundle_id"` // apns-topic

	CredentialValidity time.Duration `mapstructure:"credential_validity"`
	PollRounds         int           `mapstructure:"poll_rounds"`
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	DialTimeout        time.Duration `mapstructure:"dial_timeout"`

	// CABundle is an optional PEM file of trusted roots; the system pool is
	// used when empty.
	CABundle string `mapstructure:"ca_bundle"`
}

// KeyConfig selects where the P-256 signing key is read from.
type KeyConfig struct {
	Source string      `mapstructure:"source"` // "file" or "vault"
	Path   string      `mapstructure:"path"`
	Watch  bool        `mapstructure:"watch"`
	Vault  VaultConfig `mapstructure:"vault"`
}

type VaultConfig struct {
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	MountPath  string `mapstructure:"mount_path"`
	SecretPath string `mapstructure:"secret_path"`
	Field      string `mapstructure:"field"`
}

// RegistryConfig selects the token registry backend.
type RegistryConfig struct {
	Backend string `mapstructure:"backend"` // bbolt, redis, sqlite, postgres, memory
	Path    string `mapstructure:"path"`    // bbolt file or sqlite file
	DSN     string `mapstructure:"dsn"`     // postgres
	Locked  bool   `mapstructure:"locked"`  // serialize multi-step operations

	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type DispatchConfig struct {
	TaskBudget        int64 `mapstructure:"task_budget"`
	BroadcastWeight   int64 `mapstructure:"broadcast_weight"`
	PruneUnregistered bool  `mapstructure:"prune_unregistered"`
}

type RateLimitConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	RequestsPerS float64 `mapstructure:"requests_per_second"`
	BurstSize    int     `mapstructure:"burst_size"`
}

// IdempotencyConfig controls duplicate suppression of dispatch requests
// carrying an Idempotency-Key header.
type IdempotencyConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// Validate checks for essential configuration values.
func (c *Config) Validate() error {
	missing := func(name string) error {
		return errors.ErrInvalidArgument.WithMessage("missing config value: "+name).WithMetadata("parameter", name)
	}

	if c.APNs.TeamID == "" {
		return missing("apns.team_id")
	}
	if c.APNs.KeyID == "" {
		return missing("apns.key_id")
	}
	if c.APNs.BundleID == "" {
		return missing("apns.bundle_id")
	}

	switch c.Key.Source {
	case "file":
		if c.Key.Path == "" {
			return missing("key.path")
		}
	case "vault":
		if c.Key.Vault.Address == "" {
			return missing("key.vault.address")
		}
		if c.Key.Vault.SecretPath == "" {
			return missing("key.vault.secret_path")
		}
	default:
		return errors.ErrInvalidArgument.WithMessage("unsupported key source: " + c.Key.Source)
	}

	switch c.Registry.Backend {
	case "bbolt", "sqlite":
		if c.Registry.Path == "" {
			return missing("registry.path")
		}
	case "postgres":
		if c.Registry.DSN == "" {
			return missing("registry.dsn")
		}
	case "redis":
		if c.Registry.Redis.Address == "" {
			return missing("registry.redis.address")
		}
	case "memory":
	default:
		return errors.ErrInvalidArgument.WithMessage("unsupported registry backend: " + c.Registry.Backend)
	}

	if c.Dispatch.BroadcastWeight > c.Dispatch.TaskBudget {
		return errors.ErrInvalidArgument.WithMessage("dispatch.broadcast_weight exceeds dispatch.task_budget")
	}
	if c.APNs.PollRounds <= 0 {
		return errors.ErrInvalidArgument.WithMessage("apns.poll_rounds must be positive")
	}

	return nil
}
