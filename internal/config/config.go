package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"TdxBridge/internal/model"
)

const (
	DefaultFinanceBaseURL = "http://down.tdx.com.cn:8001/tdxfin/"
	DefaultDailyCron      = "0 0 18 * * *"
	DefaultPort           = 8010
)

// Config holds all application configuration.
type Config struct {
	DataDir string `yaml:"data_dir"`
	Server  struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`
	Provider struct {
		FinanceBaseURL string        `yaml:"finance_base_url"`
		Timeout        time.Duration `yaml:"timeout"`
		RateLimit      float64       `yaml:"rate_limit"` // downloads per second, 0 = unlimited
		Retries        int           `yaml:"retries"`
		BarCacheTTL    time.Duration `yaml:"bar_cache_ttl"`
		BarCacheSize   int           `yaml:"bar_cache_size"` // max cached series
	} `yaml:"provider"`
	Schedule struct {
		DailyCron  string `yaml:"daily_cron"`
		Timezone   string `yaml:"timezone"`
		RunOnStart bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Series struct {
		DefaultAdjust string `yaml:"default_adjust"`
		DefaultWindow int    `yaml:"default_window"`
	} `yaml:"series"`
	Financial struct {
		MaxRows int `yaml:"max_rows"`
	} `yaml:"financial"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides
// and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("KITETDX_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("KITETDX_API_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("KITETDX_API_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("KITETDX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("CRON_DAILY"); v != "" {
		c.Schedule.DailyCron = v
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RUN_ON_START: %w", err)
		}
		c.Schedule.RunOnStart = on
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Provider.FinanceBaseURL == "" {
		c.Provider.FinanceBaseURL = DefaultFinanceBaseURL
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = 60 * time.Second
	}
	if c.Provider.Retries == 0 {
		c.Provider.Retries = 3
	}
	if c.Provider.BarCacheTTL == 0 {
		c.Provider.BarCacheTTL = 12 * time.Hour
	}
	if c.Provider.BarCacheSize == 0 {
		c.Provider.BarCacheSize = 256
	}
	if c.Schedule.DailyCron == "" {
		c.Schedule.DailyCron = DefaultDailyCron
	}
	if c.Series.DefaultAdjust == "" {
		c.Series.DefaultAdjust = "qfq"
	}
	if c.Series.DefaultWindow == 0 {
		c.Series.DefaultWindow = 100
	}
	if c.Financial.MaxRows == 0 {
		c.Financial.MaxRows = 1000
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = filepath.Join(c.DataDir, "tdxbridge.db")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// Validate checks that all fields hold usable values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if !strings.HasPrefix(c.Provider.FinanceBaseURL, "http://") && !strings.HasPrefix(c.Provider.FinanceBaseURL, "https://") {
		return fmt.Errorf("provider.finance_base_url must be an http(s) URL")
	}
	if c.Provider.RateLimit < 0 {
		return fmt.Errorf("provider.rate_limit must not be negative")
	}
	if c.Provider.Retries < 0 {
		return fmt.Errorf("provider.retries must not be negative")
	}
	if c.Provider.BarCacheSize < 0 {
		return fmt.Errorf("provider.bar_cache_size must not be negative")
	}
	if _, err := model.ParseAdjust(c.Series.DefaultAdjust, model.AdjustForward); err != nil {
		return fmt.Errorf("series.default_adjust: %w", err)
	}
	if c.Series.DefaultWindow < 0 {
		return fmt.Errorf("series.default_window must not be negative")
	}
	if c.Financial.MaxRows <= 0 {
		return fmt.Errorf("financial.max_rows must be positive")
	}
	if c.Schedule.Timezone != "" {
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return fmt.Errorf("schedule.timezone: %w", err)
		}
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}

// FinancialDir is the cache directory holding report archives.
func (c *Config) FinancialDir() string {
	return filepath.Join(c.DataDir, "T0002", "hq_cache")
}

// Addr is the listen address of the gateway.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Location resolves the scheduling timezone, falling back to local time.
func (c *Config) Location() *time.Location {
	if c.Schedule.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// TelegramEnabled reports whether chat notifications are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}
