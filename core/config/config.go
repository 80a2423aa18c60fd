package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token string `yaml:"token" envconfig:"BOT_TOKEN"`
	// AdminID receives operator notifications and may run admin-only commands.
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// MetricsConfig controls the Prometheus exposition endpoint. Empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
	Path   string `yaml:"path"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
	// UpdateContact identifies shared contacts for rate limit exclusions.
	UpdateContact = "contact"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update kinds that bypass limiting:
// "callback", "message" and "contact".
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Decode fills dst from the YAML file at path and then applies environment overrides.
// It is shared with application configs that embed Config.
func Decode(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", dst); err != nil {
		return fmt.Errorf("failed to process env: %w", err)
	}
	return nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	switch rm {
	case "", "polling":
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	allowed := map[string]struct{}{
		UpdateCallback: {},
		UpdateMessage:  {},
		UpdateContact:  {},
	}
	kept := cfg.RateLimit.ExcludeUpdates[:0]
	for _, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, contact", v)
		}
		kept = append(kept, key)
	}
	cfg.RateLimit.ExcludeUpdates = kept

	if cfg.Metrics.Listen != "" && strings.TrimSpace(cfg.Metrics.Path) == "" {
		cfg.Metrics.Path = "/metrics"
	}
	return nil
}
