package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	envutil "github.com/projectdiscovery/utils/env"
	"gopkg.in/yaml.v3"
)

const (
	ViewList  = "list"
	ViewCount = "count"
)

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

type WebUIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type DatabaseConfig struct {
	Driver     string `yaml:"driver"` // bbolt|postgres
	DSN        string `yaml:"dsn"`
	Migrations string `yaml:"migrations"`
}

// ScanConfig holds everything that used to be hardcoded per scanner variant.
type ScanConfig struct {
	Ports       []int  `yaml:"ports"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
	Budget      int    `yaml:"budget"`
	Threshold   int    `yaml:"threshold"`
	MinPerBlock int    `yaml:"min_per_block"`
	OfflineView string `yaml:"offline_view"` // list|count
}

type ProvidersConfig struct {
	ListURL         string `yaml:"list_url"`
	RangeURL        string `yaml:"range_url"` // printf pattern, %s is the provider id
	MergedURL       string `yaml:"merged_url"`
	RefreshMinutes  int    `yaml:"refresh_minutes"`
	RequestTimeoutS int    `yaml:"request_timeout_seconds"`
	CacheSize       int    `yaml:"cache_size"`
}

type OptimizerConfig struct {
	Enabled          bool  `yaml:"enabled"`
	MaxProviders     int   `yaml:"max_providers"`
	CIDRsPerProvider int   `yaml:"cidrs_per_provider"`
	IPsPerCIDR       int   `yaml:"ips_per_cidr"`
	Keep             int   `yaml:"keep"`
	Ports            []int `yaml:"ports"`
}

type AggregateConfig struct {
	CheckTimeoutS int `yaml:"check_timeout_seconds"`
	MaxBodyBytes  int `yaml:"max_body_bytes"`
}

type Config struct {
	DBPath    string          `yaml:"db_path"`
	Database  DatabaseConfig  `yaml:"database"`
	Scan      ScanConfig      `yaml:"scan"`
	Providers ProvidersConfig `yaml:"providers"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Aggregate AggregateConfig `yaml:"aggregate"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	WebUI     WebUIConfig     `yaml:"webui"`
	ScanName  string          `yaml:"scan_name"`
}

// LoadConfig reads path, applies defaults and environment overrides.
// A missing file is not an error: the defaults are returned.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyEnv() {
	c.WebUI.Listen = envutil.GetEnvOrDefault("RANGEPROBE_LISTEN", c.WebUI.Listen)
	c.Database.DSN = envutil.GetEnvOrDefault("DATABASE_DSN", c.Database.DSN)
	c.Telegram.BotToken = envutil.GetEnvOrDefault("TELEGRAM_BOT_TOKEN", c.Telegram.BotToken)
	c.Telegram.ChatID = envutil.GetEnvOrDefault("TELEGRAM_CHAT_ID", c.Telegram.ChatID)
	if v := envutil.GetEnvOrDefault("RANGEPROBE_TIMEOUT_MS", ""); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Scan.TimeoutMs = ms
		}
	}
}

func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		c.DBPath = "data/rangeprobe.db"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "bbolt"
	}
	if c.Database.Migrations == "" {
		c.Database.Migrations = "./migrations"
	}

	if len(c.Scan.Ports) == 0 {
		c.Scan.Ports = []int{80, 443, 22, 445}
	}
	if c.Scan.TimeoutMs <= 0 {
		c.Scan.TimeoutMs = 1500
	}
	if c.Scan.BatchSize <= 0 {
		c.Scan.BatchSize = 50
	}
	if c.Scan.Concurrency <= 0 {
		c.Scan.Concurrency = c.Scan.BatchSize
	}
	if c.Scan.Budget <= 0 {
		c.Scan.Budget = 50000
	}
	if c.Scan.Threshold <= 0 {
		c.Scan.Threshold = 50000
	}
	if c.Scan.MinPerBlock <= 0 {
		c.Scan.MinPerBlock = 10
	}
	if c.Scan.OfflineView != ViewList && c.Scan.OfflineView != ViewCount {
		c.Scan.OfflineView = ViewList
	}

	if c.Providers.ListURL == "" {
		c.Providers.ListURL = "https://api.github.com/repos/disposable/cloud-ip-ranges/contents/txt"
	}
	if c.Providers.RangeURL == "" {
		c.Providers.RangeURL = "https://raw.githubusercontent.com/disposable/cloud-ip-ranges/master/txt/%s.txt"
	}
	if c.Providers.MergedURL == "" {
		c.Providers.MergedURL = "https://raw.githubusercontent.com/disposable/cloud-ip-ranges/master/cloud-ip-ranges.txt"
	}
	if c.Providers.RefreshMinutes <= 0 {
		c.Providers.RefreshMinutes = 30
	}
	if c.Providers.RequestTimeoutS <= 0 {
		c.Providers.RequestTimeoutS = 15
	}
	if c.Providers.CacheSize <= 0 {
		c.Providers.CacheSize = 256
	}

	if c.Optimizer.MaxProviders <= 0 {
		c.Optimizer.MaxProviders = 10
	}
	if c.Optimizer.CIDRsPerProvider <= 0 {
		c.Optimizer.CIDRsPerProvider = 5
	}
	if c.Optimizer.IPsPerCIDR <= 0 {
		c.Optimizer.IPsPerCIDR = 2
	}
	if c.Optimizer.Keep <= 0 {
		c.Optimizer.Keep = 20
	}
	if len(c.Optimizer.Ports) == 0 {
		c.Optimizer.Ports = c.Scan.Ports
	}

	if c.Aggregate.CheckTimeoutS <= 0 {
		c.Aggregate.CheckTimeoutS = 5
	}
	if c.Aggregate.MaxBodyBytes <= 0 {
		c.Aggregate.MaxBodyBytes = 10 << 20
	}

	if c.ScanName == "" {
		c.ScanName = "rangeprobe"
	}
	if c.WebUI.Listen == "" {
		c.WebUI.Listen = "127.0.0.1:3000"
	}
}

func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Scan.TimeoutMs) * time.Millisecond
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Providers.RefreshMinutes) * time.Minute
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Providers.RequestTimeoutS) * time.Second
}

func (c *Config) CheckTimeout() time.Duration {
	return time.Duration(c.Aggregate.CheckTimeoutS) * time.Second
}
