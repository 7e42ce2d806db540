// Package config provides runtime configuration for OpenFleet.
// It uses Viper to load settings from files and environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for OpenFleet.
type Config struct {
	// ── Server ───────────────────────────────────────────────────────────────
	ListenHost string `mapstructure:"listen_host"`
	ListenPort int    `mapstructure:"listen_port"`
	DBDriver   string `mapstructure:"db_driver"` // "sqlite" only for now
	DBPath     string `mapstructure:"db_path"`

	// ── Security ─────────────────────────────────────────────────────────────
	// JWTSecret: HS256 signing key for panel session tokens.
	// Change this in production — default is a random-looking placeholder.
	JWTSecret    string `mapstructure:"jwt_secret"`
	TokenTTL     int    `mapstructure:"token_ttl_hours"`
	BcryptCost   int    `mapstructure:"bcrypt_cost"`
	OpenRegister bool   `mapstructure:"open_registration"` // allow self sign-up as USER

	// ── Fleet polling ────────────────────────────────────────────────────────
	// AgentPort is the port each VPS agent listens on.
	AgentPort int `mapstructure:"agent_port"`
	// Probe timeouts differ by kind: speed tests transfer real data and
	// legitimately take far longer than a health read.
	HealthTimeout    int `mapstructure:"health_timeout_seconds"`
	SpeedTestTimeout int `mapstructure:"speedtest_timeout_seconds"`
	// FleetWorkers bounds concurrent outbound probes during a fleet run.
	// 1 processes servers strictly one at a time.
	FleetWorkers int `mapstructure:"fleet_workers"`
	// CheckSchedule is an optional cron expression for unattended fleet
	// health runs ("" disables the scheduler).
	CheckSchedule string `mapstructure:"check_schedule"`

	// ── Reachability ─────────────────────────────────────────────────────────
	PingCount   int `mapstructure:"ping_count"`
	PingTimeout int `mapstructure:"ping_timeout_seconds"`

	// ── Logging ──────────────────────────────────────────────────────────────
	LogLevel  string `mapstructure:"log_level"`  // debug, info, warn, error
	LogFormat string `mapstructure:"log_format"` // json, console

	// ── Agent simulator (dev tooling) ────────────────────────────────────────
	SimListenHost string  `mapstructure:"sim_listen_host"`
	SimDegradedAt float64 `mapstructure:"sim_degraded_at"` // score below this reports "degraded"
}

// HealthProbeTimeout returns the health probe timeout as a Duration.
func (c *Config) HealthProbeTimeout() time.Duration {
	return time.Duration(c.HealthTimeout) * time.Second
}

// SpeedTestProbeTimeout returns the speed-test probe timeout as a Duration.
func (c *Config) SpeedTestProbeTimeout() time.Duration {
	return time.Duration(c.SpeedTestTimeout) * time.Second
}

// Load reads config from file (./config.yaml or ~/.openfleet/config.yaml)
// and falls back to smart defaults. Environment variables with prefix
// FLEET_ override file values.
func Load() (*Config, error) {
	v := viper.New()

	// --- Smart Defaults ---
	v.SetDefault("listen_host", "0.0.0.0")
	v.SetDefault("listen_port", 8700)
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_path", "openfleet.db")

	// Security defaults — MUST be overridden in production via config.yaml or env vars.
	v.SetDefault("jwt_secret", "Fd7#pQ2!xW9@kL4^mZ8&vB1*nC6$rT3y")
	v.SetDefault("token_ttl_hours", 24)
	v.SetDefault("bcrypt_cost", 12)
	v.SetDefault("open_registration", true)

	v.SetDefault("agent_port", 5001)
	v.SetDefault("health_timeout_seconds", 15)
	v.SetDefault("speedtest_timeout_seconds", 150)
	v.SetDefault("fleet_workers", 4)
	v.SetDefault("check_schedule", "")

	v.SetDefault("ping_count", 3)
	v.SetDefault("ping_timeout_seconds", 5)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	v.SetDefault("sim_listen_host", "0.0.0.0")
	v.SetDefault("sim_degraded_at", 40.0)

	// --- Config file ---
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.openfleet")
	if err := v.ReadInConfig(); err != nil {
		// config file is optional; ignore "not found" errors
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// --- Environment Variables ---
	v.SetEnvPrefix("FLEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}
