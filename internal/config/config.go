package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration parameters
type Config struct {
	RootURL            string   `json:"-" yaml:"-"` // set from --crawl
	MaxDepth           int      `json:"max_depth" yaml:"max_depth"`
	MaxPages           int      `json:"max_pages" yaml:"max_pages"`
	RequestTimeoutMs   int      `json:"request_timeout_ms" yaml:"request_timeout_ms"`
	RequestDelayMs     int      `json:"request_delay_ms" yaml:"request_delay_ms"`
	RetryAttempts      int      `json:"retry_attempts" yaml:"retry_attempts"`
	RetryDelayMs       int      `json:"retry_delay_ms" yaml:"retry_delay_ms"`
	MaxBodyBytes       int      `json:"max_body_bytes" yaml:"max_body_bytes"`
	UserAgent          string   `json:"user_agent" yaml:"user_agent"`
	IncludeSubdomains  bool     `json:"include_subdomains" yaml:"include_subdomains"`
	MaxSubdomains      int      `json:"max_subdomains" yaml:"max_subdomains"`
	ExcludePatterns    []string `json:"exclude_patterns" yaml:"exclude_patterns"`
	IsolatedSections   []string `json:"isolated_sections" yaml:"isolated_sections"`
	StopOnFirstFinding bool     `json:"stop_on_first_finding" yaml:"stop_on_first_finding"`
	DBPath             string   `json:"db_path" yaml:"db_path"`
	ExcelPath          string   `json:"excel_path" yaml:"excel_path"`
	MapPath            string   `json:"map_path" yaml:"map_path"`
	CSVPath            string   `json:"csv_path" yaml:"csv_path"`
	MetricsPath        string   `json:"metrics_path" yaml:"metrics_path"`
	LogLevel           string   `json:"log_level" yaml:"log_level"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig reads and validates configuration from a JSON or YAML file.
// An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	// Apply defaults for missing values
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for unspecified fields
func applyDefaults(cfg *Config) {
	if cfg.RequestTimeoutMs == 0 {
		cfg.RequestTimeoutMs = 5000
	}
	if cfg.RetryDelayMs == 0 {
		cfg.RetryDelayMs = 1000
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 10 * 1024 * 1024
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "site-weaver/1.0 (+https://github.com/alvmarrod/site-weaver)"
	}
	if cfg.MaxSubdomains == 0 {
		cfg.MaxSubdomains = 3
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "sitemap.db"
	}
	if cfg.ExcelPath == "" {
		cfg.ExcelPath = "sitemap.xlsx"
	}
	if cfg.MapPath == "" {
		cfg.MapPath = "sitemap.md"
	}
	if cfg.CSVPath == "" {
		cfg.CSVPath = "broken_links.csv"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "metrics.json"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// Validate checks that values are sensible
func (cfg *Config) Validate() error {
	if cfg.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be >= 0")
	}
	if cfg.MaxPages < 0 {
		return fmt.Errorf("max_pages must be >= 0")
	}
	if cfg.RequestTimeoutMs < 100 {
		return fmt.Errorf("request_timeout_ms must be >= 100")
	}
	if cfg.RequestDelayMs < 0 {
		return fmt.Errorf("request_delay_ms must be >= 0")
	}
	if cfg.RetryAttempts < 0 || cfg.RetryAttempts > 10 {
		return fmt.Errorf("retry_attempts must be between 0 and 10")
	}
	if cfg.RetryDelayMs < 0 {
		return fmt.Errorf("retry_delay_ms must be >= 0")
	}
	if cfg.MaxBodyBytes < 1 {
		return fmt.Errorf("max_body_bytes must be >= 1")
	}
	if cfg.MaxSubdomains < 1 {
		return fmt.Errorf("max_subdomains must be >= 1")
	}
	for _, pattern := range cfg.ExcludePatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("exclude pattern %q: %w", pattern, err)
		}
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// RequestTimeout returns the per-request timeout
func (cfg *Config) RequestTimeout() time.Duration {
	return time.Duration(cfg.RequestTimeoutMs) * time.Millisecond
}

// RequestDelay returns the minimum spacing between requests
func (cfg *Config) RequestDelay() time.Duration {
	return time.Duration(cfg.RequestDelayMs) * time.Millisecond
}

// RetryDelay returns the pause between retries of one URL
func (cfg *Config) RetryDelay() time.Duration {
	return time.Duration(cfg.RetryDelayMs) * time.Millisecond
}
