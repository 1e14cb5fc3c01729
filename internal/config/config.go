// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Mode selects how users are identified and what they may change.
type Mode string

const (
	// ModeSingle serves one implicit user without login.
	ModeSingle Mode = "single"
	// ModeMulti requires login and allows edits.
	ModeMulti Mode = "multi"
	// ModeReadOnly requires login and hides every mutation.
	ModeReadOnly Mode = "readonly"
)

// Config holds server settings.
type Config struct {
	Port   int    `env:"PORT" envDefault:"8080"`
	DBPath string `env:"DB_PATH" envDefault:"expenses.db"`
	Mode   Mode   `env:"APP_MODE" envDefault:"multi"`

	// SingleUser is the ledger owner in single mode.
	SingleUser string `env:"SINGLE_USER" envDefault:"local"`

	// Bootstrap account created when no users exist.
	AdminUser     string `env:"ADMIN_USER"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	SecureCookie    bool          `env:"SECURE_COOKIE" envDefault:"false"`
	SessionDuration time.Duration `env:"SESSION_DURATION" envDefault:"720h"`
	CacheTTL        time.Duration `env:"CACHE_TTL" envDefault:"30s"`
	CurrencySymbol  string        `env:"CURRENCY_SYMBOL" envDefault:"₹"`

	LoginMaxAttempts int           `env:"LOGIN_MAX_ATTEMPTS" envDefault:"10"`
	LoginWindow      time.Duration `env:"LOGIN_WINDOW" envDefault:"1m"`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text"`

	StaticDir string `env:"STATIC_DIR"`
}

// Load reads a .env file when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv parses the process environment without consulting .env.
func FromEnv() (*Config, error) {
	return Parse(env.ToMap(os.Environ()))
}

// Parse builds a validated Config from the given variables.
func Parse(environ map[string]string) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Environment: environ})
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Mode = Mode(strings.ToLower(string(cfg.Mode)))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Mode {
	case ModeSingle, ModeMulti, ModeReadOnly:
	default:
		errs = append(errs, fmt.Errorf("invalid APP_MODE %q: must be one of single, multi, readonly", c.Mode))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid PORT %d: must be between 1 and 65535", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("DB_PATH cannot be empty"))
	}
	if c.Mode == ModeSingle && strings.TrimSpace(c.SingleUser) == "" {
		errs = append(errs, errors.New("SINGLE_USER cannot be empty in single mode"))
	}
	if (c.AdminUser == "") != (c.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_USER and ADMIN_PASSWORD must be set together"))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("invalid CACHE_TTL %s: must be positive", c.CacheTTL))
	}
	if c.SessionDuration <= 0 {
		errs = append(errs, fmt.Errorf("invalid SESSION_DURATION %s: must be positive", c.SessionDuration))
	}
	if c.LoginMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("invalid LOGIN_MAX_ATTEMPTS %d: must be at least 1", c.LoginMaxAttempts))
	}
	if c.LoginWindow <= 0 {
		errs = append(errs, fmt.Errorf("invalid LOGIN_WINDOW %s: must be positive", c.LoginWindow))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid LOG_FORMAT %q: must be text or json", c.LogFormat))
	}

	return errors.Join(errs...)
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// ReadOnly reports whether mutations are disabled.
func (c *Config) ReadOnly() bool {
	return c.Mode == ModeReadOnly
}

// NewLogger builds the process logger for the configured level and format.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	var h slog.Handler
	if c.LogFormat == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}
