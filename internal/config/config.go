// Package config loads runtime settings from environment variables and
// an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level application configuration.
type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string `mapstructure:"listen_addr"`

	// DataDir holds the replica database.
	DataDir string `mapstructure:"data_dir"`

	// PublicURL, when set, overrides tunnel resolution with a fixed
	// externally reachable base URL.
	PublicURL string `mapstructure:"public_url"`

	// TunnelAgentURL is the local ngrok agent API.
	TunnelAgentURL string `mapstructure:"tunnel_agent_url"`

	// NATSURL enables the JetStream event mirror when non-empty.
	NATSURL string `mapstructure:"nats_url"`

	// SubscriptionTTLHours is the requested change-subscription
	// lifetime.
	SubscriptionTTLHours int `mapstructure:"subscription_ttl_hours"`

	// RateLimitPerMinute and RateLimitBurst bound pull requests per
	// client.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute"`
	RateLimitBurst     int `mapstructure:"rate_limit_burst"`
}

// Load reads configuration with MAILMIRROR_-prefixed environment
// variables taking precedence over mailmirror.yaml in the working
// directory. A missing config file is fine; defaults cover everything.
func Load() (Config, error) {
	v := viper.New()
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("data_dir", "data")
	v.SetDefault("public_url", "")
	v.SetDefault("tunnel_agent_url", "http://127.0.0.1:4040")
	v.SetDefault("nats_url", "")
	v.SetDefault("subscription_ttl_hours", 48)
	v.SetDefault("rate_limit_per_minute", 60)
	v.SetDefault("rate_limit_burst", 10)

	v.SetEnvPrefix("MAILMIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("mailmirror")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
