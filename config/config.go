package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"creditpool/native/lendingpool"
)

// Config captures the runtime configuration for creditpoold.
type Config struct {
	Listen      string `toml:"Listen"`
	Env         string `toml:"Env"`
	StoragePath string `toml:"StoragePath"`

	Auth      AuthConfig      `toml:"auth"`
	RateLimit RateLimitConfig `toml:"ratelimit"`

	Pool     lendingpool.RiskParams    `toml:"pool"`
	Interest lendingpool.InterestModel `toml:"interest"`
}

// AuthConfig describes the bearer-token gate in front of the HTTP API.
type AuthConfig struct {
	Enabled    bool   `toml:"Enabled"`
	HMACSecret string `toml:"HMACSecret"`
	Issuer     string `toml:"Issuer"`
	Audience   string `toml:"Audience"`
}

// RateLimitConfig throttles per-client request rates.
type RateLimitConfig struct {
	Enabled           bool    `toml:"Enabled"`
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Listen:      "0.0.0.0:8645",
		Env:         "dev",
		StoragePath: "creditpool.db",
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 600,
			Burst:             30,
		},
		Pool:     lendingpool.DefaultRiskParams(),
		Interest: *lendingpool.DefaultInterestModel(),
	}
}

// Load reads a TOML configuration file, layering it over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate ensures the configuration is internally consistent.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Listen) == "" {
		return fmt.Errorf("config: listen address required")
	}
	if c.Auth.Enabled && strings.TrimSpace(c.Auth.HMACSecret) == "" {
		return fmt.Errorf("config: auth enabled without an HMAC secret")
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("config: rate limit requires a positive requests-per-minute")
	}
	if err := c.Pool.Validate(); err != nil {
		return err
	}
	if err := c.Interest.Validate(); err != nil {
		return err
	}
	return nil
}

// Sanitized returns a copy with secrets masked for logging.
func (c Config) Sanitized() Config {
	clone := c
	clone.Auth.HMACSecret = maskSecret(clone.Auth.HMACSecret)
	return clone
}

func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****"
	}
	return value[:2] + strings.Repeat("*", len(value)-4) + value[len(value)-2:]
}
