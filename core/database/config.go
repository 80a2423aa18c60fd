package database

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Config holds Postgres connection settings.
type Config struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	// MigrationsDir is resolved against the working directory when relative.
	MigrationsDir string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// withDefaults fills the optional fields.
func (c Config) withDefaults() Config {
	if c.Port == "" {
		c.Port = "5432"
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = 4
	}
	if c.MigrationsDir == "" {
		c.MigrationsDir = "migrations"
	}
	return c
}

// Validate reports missing mandatory settings.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Host) == "" {
		missing = append(missing, "host")
	}
	if strings.TrimSpace(c.User) == "" {
		missing = append(missing, "user")
	}
	if strings.TrimSpace(c.Name) == "" {
		missing = append(missing, "name")
	}
	if len(missing) > 0 {
		return fmt.Errorf("database: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// DSN returns the lib/pq keyword/value connection string.
func (c Config) DSN() string {
	c = c.withDefaults()
	return fmt.Sprintf("user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		quoteDSN(c.User), quoteDSN(c.Password), c.Host, c.Port, quoteDSN(c.Name), c.SSLMode)
}

// URL returns the postgres:// form used by golang-migrate.
func (c Config) URL() string {
	c = c.withDefaults()
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

func quoteDSN(v string) string {
	if v == "" {
		return "''"
	}
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}
