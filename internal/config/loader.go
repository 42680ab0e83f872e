package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/turtacn/pushgate/pkg/constants"
	"github.com/turtacn/pushgate/pkg/errors"
)

// LoadConfig loads the configuration from file and environment variables.
// An empty path searches /etc/pushgate/ and the working directory for config.yaml.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/pushgate/")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(errors.ErrInvalidArgument, err, "failed to read config")
		}
	}

	// Load from environment variables
	v.SetEnvPrefix("PUSHGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidArgument, err, "failed to unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Keys without a meaningful default still need registering so that
	// AutomaticEnv can override them during Unmarshal.
	v.SetDefault("apns.team_id", "")
	v.SetDefault("apns.key_id", "")
	v.SetDefault("apns.bundle_id", "")
	v.SetDefault("apns.ca_bundle", "")
	v.SetDefault("server.auth_user", "")
	v.SetDefault("server.auth_pass", "")
	v.SetDefault("key.vault.address", "")
	v.SetDefault("key.vault.token", "")
	v.SetDefault("key.vault.secret_path", "")

	v.SetDefault("apns.credential_validity", constants.CredentialValidity)
	v.SetDefault("apns.poll_rounds", constants.PollMaxRounds)
	v.SetDefault("apns.poll_interval", constants.PollInterval)
	v.SetDefault("apns.dial_timeout", constants.DialTimeout)

	v.SetDefault("key.source", "file")
	v.SetDefault("key.path", "./certs/apns_auth_key.p8")
	v.SetDefault("key.vault.mount_path", "secret")
	v.SetDefault("key.vault.field", "private_key")

	v.SetDefault("registry.backend", "bbolt")
	v.SetDefault("registry.path", "./pushgate.db")
	v.SetDefault("registry.redis.key_prefix", "pushgate")

	v.SetDefault("dispatch.task_budget", constants.DefaultTaskBudget)
	v.SetDefault("dispatch.broadcast_weight", constants.DefaultBroadcastWeight)

	v.SetDefault("rate_limit.requests_per_second", 5.0)
	v.SetDefault("rate_limit.burst_size", 10)

	v.SetDefault("idempotency.enabled", true)
	v.SetDefault("idempotency.ttl", 10*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.service_name", constants.ServiceName)
	v.SetDefault("tracing.sampling_rate", 1.0)
}
