package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/danhigham/telequeue/internal/domain"
)

const envPrefix = "TELEQUEUE"

type Config struct {
	API         APIConfig        `yaml:"api"`
	Queue       QueueConfig      `yaml:"queue"`
	Breaker     BreakerConfig    `yaml:"breaker"`
	Telegram    domain.APIConfig `yaml:"telegram"`
	StatePath   string           `yaml:"state_path"`
	MetricsAddr string           `yaml:"metrics_addr"`
	LogLevel    string           `yaml:"log_level"`
}

type APIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	PageSize       int           `yaml:"page_size"`
	// RateLimit caps outgoing requests per second; 0 disables throttling.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

type QueueConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// BreakerConfig tunes the circuit breaker in front of the backend.
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "http://localhost:8080",
			RequestTimeout: 15 * time.Second,
			PageSize:       100,
			RateLimit:      10,
			RateBurst:      5,
		},
		Queue: QueueConfig{
			PollInterval: 15 * time.Second,
		},
		Breaker: BreakerConfig{
			MaxFailures: 5,
			OpenTimeout: 10 * time.Second,
		},
		LogLevel: "info",
	}
}

func Dir() string {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		cfgDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(cfgDir, "telequeue")
}

// Load reads the config file at path on top of the defaults and applies
// TELEQUEUE_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if cfg.StatePath == "" {
		cfg.StatePath = filepath.Join(Dir(), "state.db")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if s := v.GetString("api.base_url"); s != "" {
		cfg.API.BaseURL = s
	}
	if s := v.GetString("log_level"); s != "" {
		cfg.LogLevel = s
	}
	if s := v.GetString("metrics_addr"); s != "" {
		cfg.MetricsAddr = s
	}
	if s := v.GetString("state_path"); s != "" {
		cfg.StatePath = s
	}
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api.base_url %q: must be an http(s) URL", c.API.BaseURL)
	}
	if c.API.RequestTimeout <= 0 {
		return fmt.Errorf("invalid api.request_timeout %s: must be positive", c.API.RequestTimeout)
	}
	if c.API.PageSize <= 0 {
		return fmt.Errorf("invalid api.page_size %d: must be positive", c.API.PageSize)
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("invalid api.rate_limit %v: must not be negative", c.API.RateLimit)
	}
	if c.Queue.PollInterval <= 0 {
		return fmt.Errorf("invalid queue.poll_interval %s: must be positive", c.Queue.PollInterval)
	}
	if c.Breaker.OpenTimeout <= 0 {
		return fmt.Errorf("invalid breaker.open_timeout %s: must be positive", c.Breaker.OpenTimeout)
	}
	return nil
}
