// config/config.go
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// RatingConfig holds the simple strategy's rules for one rating.
type RatingConfig struct {
	TargetShare   float64 `yaml:"target_share"`    // Desired share of the portfolio, 0..1
	MinTermMonths int     `yaml:"min_term_months"` // 0 means no lower bound
	MaxTermMonths int     `yaml:"max_term_months"` // 0 means no upper bound
	MaxLoanShare  float64 `yaml:"max_loan_share"`  // Max share of the loan's total amount we take, 0..1
	MinInvestment float64 `yaml:"min_investment"`
	MaxInvestment float64 `yaml:"max_investment"`
}

// SimpleStrategyConfig holds configuration for the rating-based strategy.
// Ratings not listed fall back to Default.
type SimpleStrategyConfig struct {
	Default RatingConfig            `yaml:"default"`
	Ratings map[string]RatingConfig `yaml:"ratings"`
}

// ForRating returns the rules for the rating tag.
func (s *SimpleStrategyConfig) ForRating(rating string) RatingConfig {
	if rc, ok := s.Ratings[strings.ToUpper(rating)]; ok {
		return rc
	}
	return s.Default
}

// LogConfig holds the configuration for logging.
type LogConfig struct {
	LogLevel   string `yaml:"log_level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// NormalConfig holds all general, non-strategy-specific configuration.
type NormalConfig struct {
	CycleIntervalSeconds     int     `yaml:"cycle_interval_seconds"`
	HTTPTimeoutSeconds       int     `yaml:"http_timeout_seconds"`
	LookupTimeoutSeconds     int     `yaml:"lookup_timeout_seconds"`
	ReconcileTimeoutSeconds  int     `yaml:"reconcile_timeout_seconds"`
	RequestsPerSecond        float64 `yaml:"requests_per_second"`
	HeartbeatIntervalMinutes int     `yaml:"heartbeat_interval_minutes"`
	LogDirectory             string  `yaml:"log_directory"`
	StateDirectory           string  `yaml:"state_directory"`
	MetricsAddr              string  `yaml:"metrics_addr"`
}

// InvestingConfig tunes the investment engine.
type InvestingConfig struct {
	BlockedAmountsPageSize int    `yaml:"blocked_amounts_page_size"`
	ReconcileWorkers       int    `yaml:"reconcile_workers"`
	SkipExistingLoans      bool   `yaml:"skip_existing_loans"`
	ReportStatuses         string `yaml:"report_statuses"` // e.g. "[ACTIVE, SIGNED]"; empty disables the startup report
}

// StateConfig selects where the investment ledger is persisted.
type StateConfig struct {
	Backend   string `yaml:"backend"` // "file" or "redis"
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
	RedisKey  string `yaml:"redis_key"`
}

// VersionConfig controls the startup update check.
type VersionConfig struct {
	Check     bool   `yaml:"check"`
	LatestURL string `yaml:"latest_url"`
}

// StrategyConfig is a generic container for a single strategy's configuration.
type StrategyConfig struct {
	Name    string      `yaml:"name"`
	Enabled bool        `yaml:"enabled"`
	Config  interface{} `yaml:"config"`
}

// Config is the top-level configuration structure.
type Config struct {
	UseSimulation bool                  `yaml:"use_simulation"`
	DryRun        bool                  `yaml:"dry_run"`
	Normal        *NormalConfig         `yaml:"normal_config"`
	Investing     *InvestingConfig      `yaml:"investing"`
	State         *StateConfig          `yaml:"state"`
	Version       *VersionConfig        `yaml:"version"`
	Logs          *LogConfig            `yaml:"logs"`
	Simple        *SimpleStrategyConfig `yaml:"-"`
}

// NewConfig creates a Config with the safe, non-strategy defaults filled in.
// Strategy rules have no defaults and must come from config.yaml.
func NewConfig() *Config {
	return &Config{
		Normal: &NormalConfig{
			CycleIntervalSeconds:     60,
			HTTPTimeoutSeconds:       30,
			LookupTimeoutSeconds:     10,
			ReconcileTimeoutSeconds:  120,
			RequestsPerSecond:        2,
			HeartbeatIntervalMinutes: 30,
			LogDirectory:             "logs",
			StateDirectory:           "state",
		},
		Investing: &InvestingConfig{
			BlockedAmountsPageSize: 100,
			ReconcileWorkers:       4,
		},
		State:   &StateConfig{Backend: "file", RedisKey: "auto_zonky:ledger"},
		Version: &VersionConfig{},
		Logs:    &LogConfig{LogLevel: "info", MaxSizeMB: 10, MaxBackups: 5, MaxAgeDays: 30},
	}
}

// LoadConfig loads configuration from a given path, applies defaults, and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("Error: Config file not found at %s. Program cannot run without a config file", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig builds a validated Config from YAML bytes.
func ParseConfig(data []byte) (*Config, error) {
	cfg := NewConfig()

	var rawCfg struct {
		UseSimulation bool             `yaml:"use_simulation"`
		DryRun        bool             `yaml:"dry_run"`
		Normal        *NormalConfig    `yaml:"normal_config"`
		Investing     *InvestingConfig `yaml:"investing"`
		State         *StateConfig     `yaml:"state"`
		Version       *VersionConfig   `yaml:"version"`
		Logs          *LogConfig       `yaml:"logs"`
		Strategies    []StrategyConfig `yaml:"strategies"`
	}
	// Pre-populate nested blocks so fields missing from YAML keep their defaults.
	rawCfg.Normal = cfg.Normal
	rawCfg.Investing = cfg.Investing
	rawCfg.State = cfg.State
	rawCfg.Version = cfg.Version
	rawCfg.Logs = cfg.Logs

	if err := yaml.Unmarshal(data, &rawCfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	cfg.UseSimulation = rawCfg.UseSimulation
	cfg.DryRun = rawCfg.DryRun
	if rawCfg.Normal != nil {
		cfg.Normal = rawCfg.Normal
	}
	if rawCfg.Investing != nil {
		cfg.Investing = rawCfg.Investing
	}
	if rawCfg.State != nil {
		cfg.State = rawCfg.State
	}
	if rawCfg.Version != nil {
		cfg.Version = rawCfg.Version
	}
	if rawCfg.Logs != nil {
		cfg.Logs = rawCfg.Logs
	}

	// Unmarshal specific strategy configs based on their 'name'
	for _, s := range rawCfg.Strategies {
		if !s.Enabled {
			continue
		}

		configBytes, err := yaml.Marshal(s.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to re-marshal strategy config '%s': %w", s.Name, err)
		}

		switch s.Name {
		case "simple":
			simple := &SimpleStrategyConfig{}
			if err := yaml.Unmarshal(configBytes, simple); err != nil {
				return nil, fmt.Errorf("failed to unmarshal simple strategy config: %w", err)
			}
			cfg.Simple = simple
		default:
			return nil, fmt.Errorf("unknown strategy '%s'", s.Name)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the logical consistency and completeness of the entire configuration.
func (c *Config) Validate() error {
	if c.Normal == nil {
		return fmt.Errorf("Critical config missing: 'normal_config' configuration block must be provided")
	}
	if c.Normal.CycleIntervalSeconds <= 0 {
		return fmt.Errorf("Config error: 'normal_config.cycle_interval_seconds' must be positive")
	}
	if c.Normal.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("Config error: 'normal_config.http_timeout_seconds' must be positive")
	}
	if c.Normal.LookupTimeoutSeconds <= 0 {
		return fmt.Errorf("Config error: 'normal_config.lookup_timeout_seconds' must be positive")
	}
	if c.Normal.ReconcileTimeoutSeconds <= 0 {
		return fmt.Errorf("Config error: 'normal_config.reconcile_timeout_seconds' must be positive")
	}
	if c.Normal.RequestsPerSecond < 0 {
		return fmt.Errorf("Config error: 'normal_config.requests_per_second' cannot be negative")
	}
	if c.Normal.HeartbeatIntervalMinutes <= 0 {
		return fmt.Errorf("Config error: 'normal_config.heartbeat_interval_minutes' must be positive")
	}
	if c.Normal.LogDirectory == "" {
		return fmt.Errorf("Critical config missing: 'normal_config.log_directory' must be specified (e.g., 'logs')")
	}
	if c.Normal.StateDirectory == "" {
		return fmt.Errorf("Critical config missing: 'normal_config.state_directory' must be specified (e.g., 'state')")
	}

	if c.Investing == nil {
		return fmt.Errorf("Critical config missing: 'investing' configuration block must be provided")
	}
	if c.Investing.BlockedAmountsPageSize <= 0 {
		return fmt.Errorf("Config error: 'investing.blocked_amounts_page_size' must be positive")
	}
	if c.Investing.ReconcileWorkers <= 0 {
		return fmt.Errorf("Config error: 'investing.reconcile_workers' must be positive")
	}

	if c.State == nil {
		return fmt.Errorf("Critical config missing: 'state' configuration block must be provided")
	}
	switch c.State.Backend {
	case "file":
	case "redis":
		if c.State.RedisAddr == "" {
			return fmt.Errorf("Config error: 'state.redis_addr' is required when state.backend is 'redis'")
		}
		if c.State.RedisKey == "" {
			return fmt.Errorf("Config error: 'state.redis_key' is required when state.backend is 'redis'")
		}
	default:
		return fmt.Errorf("Config error: 'state.backend' must be 'file' or 'redis', got '%s'", c.State.Backend)
	}

	if c.Version != nil && c.Version.Check && c.Version.LatestURL == "" {
		return fmt.Errorf("Config error: 'version.latest_url' is required when version.check is enabled")
	}

	if c.Logs == nil {
		return fmt.Errorf("Critical config missing: 'logs' configuration block must be provided")
	}
	if c.Logs.LogLevel == "" {
		return fmt.Errorf("Critical config missing: 'logs.log_level' must be specified (e.g., 'info', 'debug', 'warn', 'error')")
	}
	if c.Logs.MaxSizeMB <= 0 || c.Logs.MaxBackups <= 0 || c.Logs.MaxAgeDays <= 0 {
		return fmt.Errorf("Config error: 'logs.max_size_mb', 'logs.max_backups' and 'logs.max_age_days' must be positive")
	}

	if c.Simple == nil {
		return fmt.Errorf("Critical config missing: an enabled 'simple' entry under 'strategies' must be provided")
	}
	if err := validateRating("default", c.Simple.Default); err != nil {
		return err
	}
	var totalShare float64
	for rating, rc := range c.Simple.Ratings {
		if err := validateRating(rating, rc); err != nil {
			return err
		}
		totalShare += rc.TargetShare
	}
	if totalShare > 1.0+1e-9 {
		return fmt.Errorf("Config error: strategy: target_share total across ratings (%.2f) cannot exceed 1.0", totalShare)
	}

	return nil
}

func validateRating(name string, rc RatingConfig) error {
	if rc.TargetShare < 0 || rc.TargetShare > 1 {
		return fmt.Errorf("Config error: strategy rating %s: target_share must be within 0..1", name)
	}
	if rc.MaxLoanShare < 0 || rc.MaxLoanShare > 1 {
		return fmt.Errorf("Config error: strategy rating %s: max_loan_share must be within 0..1", name)
	}
	if rc.MinTermMonths < 0 || rc.MaxTermMonths < 0 {
		return fmt.Errorf("Config error: strategy rating %s: term bounds cannot be negative", name)
	}
	if rc.MaxTermMonths > 0 && rc.MinTermMonths > rc.MaxTermMonths {
		return fmt.Errorf("Config error: strategy rating %s: min_term_months (%d) exceeds max_term_months (%d)", name, rc.MinTermMonths, rc.MaxTermMonths)
	}
	if rc.MinInvestment < 0 || rc.MaxInvestment < 0 {
		return fmt.Errorf("Config error: strategy rating %s: investment bounds cannot be negative", name)
	}
	if rc.MaxInvestment > 0 && rc.MinInvestment > rc.MaxInvestment {
		return fmt.Errorf("Config error: strategy rating %s: min_investment exceeds max_investment", name)
	}
	return nil
}

// EnvConfig holds secrets read from the environment.
type EnvConfig struct {
	AccessToken   string
	BaseURL       string
	RedisPassword string
}

// DefaultBaseURL is used when ZONKY_BASE_URL is unset.
const DefaultBaseURL = "https://api.zonky.cz"

// LoadEnvConfig reads secrets from the environment.
func LoadEnvConfig() *EnvConfig {
	baseURL := os.Getenv("ZONKY_BASE_URL")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &EnvConfig{
		AccessToken:   os.Getenv("ZONKY_ACCESS_TOKEN"),
		BaseURL:       baseURL,
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
	}
}
