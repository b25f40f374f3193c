package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Listing ListingConfig `yaml:"listing"`
	Console ConsoleConfig `yaml:"console"`
	Token   TokenConfig   `yaml:"token"`
	Batch   BatchConfig   `yaml:"batch"`
	WAF     WAFConfig     `yaml:"waf"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Output  OutputConfig  `yaml:"output"`
}

// ListingConfig configures the remote cookie listing service
type ListingConfig struct {
	URL     string `yaml:"url"`
	Domain  string `yaml:"domain"`
	PerPage int    `yaml:"per_page"`
}

// ConsoleConfig configures the target token console
type ConsoleConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"` // seconds
	Proxy   string `yaml:"proxy"`
}

// TokenConfig holds the token creation defaults sent with every create call
type TokenConfig struct {
	RemainQuota        int64  `yaml:"remain_quota" json:"remain_quota"`
	ExpiredTime        int64  `yaml:"expired_time" json:"expired_time"` // -1 = never
	UnlimitedQuota     bool   `yaml:"unlimited_quota" json:"unlimited_quota"`
	ModelLimitsEnabled bool   `yaml:"model_limits_enabled" json:"model_limits_enabled"`
	ModelLimits        string `yaml:"model_limits" json:"model_limits"`
	AllowIPs           string `yaml:"allow_ips" json:"allow_ips"`
	Group              string `yaml:"group" json:"group"`
}

// BatchConfig holds run-wide batch defaults, overridable per account record
type BatchConfig struct {
	Prefix       string  `yaml:"prefix"`
	Count        int     `yaml:"count"`
	DelaySeconds float64 `yaml:"delay_seconds"`
}

// WAFConfig configures barrier cookie acquisition
type WAFConfig struct {
	Skip          bool   `yaml:"skip"`
	TargetURL     string `yaml:"target_url"`
	SettleSeconds int    `yaml:"settle_seconds"`
	Headless      bool   `yaml:"headless"`
}

// LedgerConfig configures the local run ledger
type LedgerConfig struct {
	DBPath string `yaml:"db_path"`
}

// OutputConfig configures result artifacts
type OutputConfig struct {
	JSONPath string `yaml:"json_path"`
	KeysPath string `yaml:"keys_path"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Listing: ListingConfig{
			URL:     "https://cookie.ronghuaxueleng.top/api/cookies",
			Domain:  "anyrouter.top",
			PerPage: 200,
		},
		Console: ConsoleConfig{
			BaseURL: "https://anyrouter.top",
			Timeout: 30,
		},
		Token: TokenConfig{
			RemainQuota:    500000,
			ExpiredTime:    -1,
			UnlimitedQuota: true,
		},
		Batch: BatchConfig{
			Prefix:       "token",
			Count:        1,
			DelaySeconds: 0.5,
		},
		WAF: WAFConfig{
			TargetURL:     "https://anyrouter.top/login",
			SettleSeconds: 3,
		},
		Ledger: LedgerConfig{
			DBPath: "./data/tokenctl.db",
		},
		Output: OutputConfig{
			JSONPath: "created_tokens.json",
			KeysPath: "created_tokens.txt",
		},
	}
}

// Load loads configuration from file, falling back to defaults when the
// file does not exist
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves configuration to file
func Save(path string, c *Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ValidateTokenJSON checks that raw would parse as a token override.
// Commands call it before any account or browser work so a malformed value
// aborts the run first.
func ValidateTokenJSON(raw string) error {
	return DefaultConfig().ApplyTokenJSON(raw)
}

// ApplyTokenJSON merges a JSON override object onto the token defaults.
// Field names follow the create request body (remain_quota, expired_time,
// unlimited_quota, model_limits_enabled, model_limits, allow_ips, group).
func (c *Config) ApplyTokenJSON(raw string) error {
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &c.Token); err != nil {
		return fmt.Errorf("parse token config override: %w", err)
	}
	return nil
}
