// Copyright 2025 Certen Protocol
//
// Package config loads ledgercore's runtime configuration from
// environment variables via the Load/Validate pair. A YAML node config
// file can supply the same fields for operators who prefer a checked-in
// file over an environment; LoadFile values are applied as overrides on
// top of the environment defaults, not a replacement for them.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a ledgercore node.
type Config struct {
	// Identity
	ChainID     string `yaml:"chain_id"`
	NetworkName string `yaml:"network_name"`

	// Server
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	HealthAddr  string `yaml:"health_addr"`

	// Storage
	DataDir          string   `yaml:"data_dir"`
	SubstorePrefixes []string `yaml:"substores"` // prefixed substores beyond "main", e.g. "ibc", "dex", "staking"

	// Epoch / staking parameters
	EpochDuration     int64  `yaml:"epoch_duration"` // blocks per epoch
	UnbondingEpochs   int64  `yaml:"unbonding_epochs"`
	MinValidatorStake uint64 `yaml:"min_validator_stake"`
	ActiveSetSize     int    `yaml:"active_set_size"`
	BaseRewardRateBps int64  `yaml:"base_reward_rate_bps"` // per-epoch reward rate, applied unchanged at each epoch boundary

	// DEX parameters
	DexMaxHops             int `yaml:"dex_max_hops"`
	DexCircuitBreakerFills int `yaml:"dex_circuit_breaker_fills"` // max fills per route_and_fill call

	// FROST custody parameters
	FrostCeremonyTimeout time.Duration `yaml:"frost_ceremony_timeout"`
	FrostThreshold       int           `yaml:"frost_threshold"`
	FrostParticipants    int           `yaml:"frost_participants"`

	// Audit mirror (optional, non-authoritative)
	AuditDatabaseURL string `yaml:"audit_database_url"`
	AuditEnabled     bool   `yaml:"audit_enabled"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// Load reads configuration from environment variables, applying the same
// defaults a devnet node would start with.
func Load() (*Config, error) {
	cfg := &Config{
		ChainID:     getEnv("LEDGER_CHAIN_ID", "ledgercore-devnet"),
		NetworkName: getEnv("LEDGER_NETWORK_NAME", "devnet"),

		ListenAddr:  getEnv("LEDGER_LISTEN_ADDR", "0.0.0.0:26658"),
		MetricsAddr: getEnv("LEDGER_METRICS_ADDR", "0.0.0.0:9090"),
		HealthAddr:  getEnv("LEDGER_HEALTH_ADDR", "0.0.0.0:8081"),

		DataDir:          getEnv("LEDGER_DATA_DIR", "./data"),
		SubstorePrefixes: parseList(getEnv("LEDGER_SUBSTORES", "ibc,dex,staking,shielded_pool,sct,custody")),

		EpochDuration:     getEnvInt64("LEDGER_EPOCH_DURATION", 719),
		UnbondingEpochs:   getEnvInt64("LEDGER_UNBONDING_EPOCHS", 2),
		MinValidatorStake: uint64(getEnvInt64("LEDGER_MIN_VALIDATOR_STAKE", 1_000_000)),
		ActiveSetSize:     getEnvInt("LEDGER_ACTIVE_SET_SIZE", 100),
		BaseRewardRateBps: getEnvInt64("LEDGER_BASE_REWARD_RATE_BPS", 300),

		DexMaxHops:             getEnvInt("LEDGER_DEX_MAX_HOPS", 4),
		DexCircuitBreakerFills: getEnvInt("LEDGER_DEX_CIRCUIT_BREAKER_FILLS", 100),

		FrostCeremonyTimeout: getEnvDuration("LEDGER_FROST_TIMEOUT", 30*time.Second),
		FrostThreshold:       getEnvInt("LEDGER_FROST_THRESHOLD", 2),
		FrostParticipants:    getEnvInt("LEDGER_FROST_PARTICIPANTS", 3),

		AuditDatabaseURL: getEnv("LEDGER_AUDIT_DATABASE_URL", ""),
		AuditEnabled:     getEnvBool("LEDGER_AUDIT_ENABLED", false),

		LogLevel: getEnv("LEDGER_LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// LoadFile reads a YAML node config file and overlays any fields it sets
// onto cfg. A field is considered set only when the YAML document
// supplies a non-zero value for it, so a partial file (e.g. just
// chain_id and substores) leaves the rest of cfg's environment-derived
// defaults untouched.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if overlay.ChainID != "" {
		cfg.ChainID = overlay.ChainID
	}
	if overlay.NetworkName != "" {
		cfg.NetworkName = overlay.NetworkName
	}
	if overlay.ListenAddr != "" {
		cfg.ListenAddr = overlay.ListenAddr
	}
	if overlay.MetricsAddr != "" {
		cfg.MetricsAddr = overlay.MetricsAddr
	}
	if overlay.HealthAddr != "" {
		cfg.HealthAddr = overlay.HealthAddr
	}
	if overlay.DataDir != "" {
		cfg.DataDir = overlay.DataDir
	}
	if len(overlay.SubstorePrefixes) > 0 {
		cfg.SubstorePrefixes = overlay.SubstorePrefixes
	}
	if overlay.EpochDuration != 0 {
		cfg.EpochDuration = overlay.EpochDuration
	}
	if overlay.UnbondingEpochs != 0 {
		cfg.UnbondingEpochs = overlay.UnbondingEpochs
	}
	if overlay.MinValidatorStake != 0 {
		cfg.MinValidatorStake = overlay.MinValidatorStake
	}
	if overlay.ActiveSetSize != 0 {
		cfg.ActiveSetSize = overlay.ActiveSetSize
	}
	if overlay.BaseRewardRateBps != 0 {
		cfg.BaseRewardRateBps = overlay.BaseRewardRateBps
	}
	if overlay.DexMaxHops != 0 {
		cfg.DexMaxHops = overlay.DexMaxHops
	}
	if overlay.DexCircuitBreakerFills != 0 {
		cfg.DexCircuitBreakerFills = overlay.DexCircuitBreakerFills
	}
	if overlay.FrostCeremonyTimeout != 0 {
		cfg.FrostCeremonyTimeout = overlay.FrostCeremonyTimeout
	}
	if overlay.FrostThreshold != 0 {
		cfg.FrostThreshold = overlay.FrostThreshold
	}
	if overlay.FrostParticipants != 0 {
		cfg.FrostParticipants = overlay.FrostParticipants
	}
	if overlay.AuditDatabaseURL != "" {
		cfg.AuditDatabaseURL = overlay.AuditDatabaseURL
	}
	if overlay.AuditEnabled {
		cfg.AuditEnabled = overlay.AuditEnabled
	}
	if overlay.LogLevel != "" {
		cfg.LogLevel = overlay.LogLevel
	}

	return nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	var errs []string

	if c.ChainID == "" {
		errs = append(errs, "LEDGER_CHAIN_ID is required")
	}
	if c.EpochDuration <= 0 {
		errs = append(errs, "LEDGER_EPOCH_DURATION must be positive")
	}
	if c.UnbondingEpochs < 0 {
		errs = append(errs, "LEDGER_UNBONDING_EPOCHS must not be negative")
	}
	if c.FrostThreshold <= 0 || c.FrostThreshold > c.FrostParticipants {
		errs = append(errs, "LEDGER_FROST_THRESHOLD must be in (0, LEDGER_FROST_PARTICIPANTS]")
	}
	if c.DexMaxHops <= 0 {
		errs = append(errs, "LEDGER_DEX_MAX_HOPS must be positive")
	}
	if c.AuditEnabled && c.AuditDatabaseURL == "" {
		errs = append(errs, "LEDGER_AUDIT_DATABASE_URL is required when LEDGER_AUDIT_ENABLED is true")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func parseList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
