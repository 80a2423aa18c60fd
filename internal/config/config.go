// Package config loads the bot configuration: the core settings plus sign-up
// content, the submission sink and the optional database.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	coreconfig "github.com/m3rciful/consultbot/core/config"
	coredatabase "github.com/m3rciful/consultbot/core/database"
	"github.com/m3rciful/consultbot/internal/sink"
)

// EnvFileVar names the variable that overrides the .env location.
const EnvFileVar = "ENV_FILE"

// SignupConfig holds the conversation's media.
type SignupConfig struct {
	StickerGreeting string `yaml:"sticker_greeting" envconfig:"STICKER_FILE_ID2"`
	StickerThanks   string `yaml:"sticker_thanks" envconfig:"STICKER_FILE_ID1"`
	// WelcomePhoto is a URL, a local path or a Telegram file id.
	WelcomePhoto string `yaml:"welcome_photo" envconfig:"WELCOME_PHOTO"`
}

// Config is the application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Signup   SignupConfig        `yaml:"signup"`
	Sink     sink.Config         `yaml:"sink"`
	Database coredatabase.Config `yaml:"database"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// DatabaseConfig returns the database settings, or nil when the sink does not use Postgres.
func (c *Config) DatabaseConfig() *coredatabase.Config {
	if !c.Sink.NeedsDatabase() {
		return nil
	}
	return &c.Database
}

// Load reads .env (when present), the YAML file at path and the environment.
func Load(path string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := applyLegacyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}

	cfg.Sink.Normalize()
	if err := cfg.Sink.Validate(); err != nil {
		return nil, err
	}
	if db := cfg.DatabaseConfig(); db != nil {
		if err := db.Validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// loadEnvFile populates the environment without overriding variables already set.
func loadEnvFile() error {
	path := os.Getenv(EnvFileVar)
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// applyLegacyEnv accepts API_TOKEN and ADMIN_ID from older deployments.
func applyLegacyEnv(cfg *Config) error {
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		cfg.Telegram.Token = os.Getenv("API_TOKEN")
	}
	if cfg.Telegram.AdminID == 0 {
		if v := strings.TrimSpace(os.Getenv("ADMIN_ID")); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid ADMIN_ID %q: %w", v, err)
			}
			cfg.Telegram.AdminID = id
		}
	}
	return nil
}
