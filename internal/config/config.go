// Package config loads server settings from the environment, an optional
// .env file and command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/abrezinsky/slotboard/internal/auth"
	"github.com/abrezinsky/slotboard/internal/schedule"
)

// Defaults
const (
	DefaultPort        = 8081
	DefaultDatabaseURL = "slotboard.db"
	DefaultLogLevel    = "info"
	DefaultTimezone    = "Local"
	DefaultRateLimit   = 60
	DefaultCORSOrigins = "*"
)

// ErrMissingSecret is returned when no JWT secret is configured outside dev mode.
var ErrMissingSecret = errors.New("JWT_SECRET is required (use -dev to generate one)")

// Config holds the server settings
type Config struct {
	Port        int
	DatabaseURL string
	LogLevel    string
	AdminEmails string
	JWTSecret   string
	Timezone    string
	Location    *time.Location
	CutoffHour  int
	SportsFile  string
	RedisURL    string
	CORSOrigins []string
	RateLimit   int
	BaseURL     string

	Dev         bool
	NoKeyboard  bool
	ShowVersion bool

	// GeneratedSecret is set when the secret was generated for a dev run.
	GeneratedSecret bool
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// Env returns a lookup over the process environment backed by the given
// dotenv files (".env" when none are named). Variables already set in the
// environment win over file values and missing files are skipped.
func Env(files ...string) LookupFunc {
	if len(files) == 0 {
		files = []string{".env"}
	}
	fromFiles := map[string]string{}
	for _, file := range files {
		values, err := godotenv.Read(file)
		if err != nil {
			continue
		}
		for k, v := range values {
			if _, seen := fromFiles[k]; !seen {
				fromFiles[k] = v
			}
		}
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fromFiles[key]
		return v, ok
	}
}

// Load builds the configuration from lookupEnv and args (without the program
// name). Flags override environment values.
func Load(args []string, lookupEnv LookupFunc) (*Config, error) {
	if lookupEnv == nil {
		lookupEnv = Env()
	}
	env := func(key, fallback string) string {
		if v, ok := lookupEnv(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return fallback
	}

	cfg := &Config{
		DatabaseURL: env("DATABASE_URL", DefaultDatabaseURL),
		LogLevel:    env("LOG_LEVEL", DefaultLogLevel),
		AdminEmails: env("ADMIN_EMAILS", ""),
		JWTSecret:   env("JWT_SECRET", ""),
		Timezone:    env("TIMEZONE", DefaultTimezone),
		SportsFile:  env("SPORTS_FILE", ""),
		RedisURL:    env("REDIS_URL", ""),
		BaseURL:     env("BASE_URL", ""),
	}

	var err error
	if cfg.Port, err = envInt(env, "PORT", DefaultPort); err != nil {
		return nil, err
	}
	if cfg.CutoffHour, err = envInt(env, "CUTOFF_HOUR", schedule.DefaultCutoffHour); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = envInt(env, "RATE_LIMIT", DefaultRateLimit); err != nil {
		return nil, err
	}
	origins := env("CORS_ORIGINS", DefaultCORSOrigins)

	fs := flag.NewFlagSet("slotboard", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.DatabaseURL, "db", cfg.DatabaseURL, "SQLite path or postgres:// URL")
	fs.StringVar(&cfg.LogLevel, "loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.Timezone, "tz", cfg.Timezone, "Timezone for cutoffs and backup ids")
	fs.StringVar(&cfg.SportsFile, "sports", cfg.SportsFile, "JSON sport catalog")
	fs.BoolVar(&cfg.Dev, "dev", false, "Development mode, generates a JWT secret when unset")
	fs.BoolVar(&cfg.NoKeyboard, "nokeyboard", false, "Disable keyboard shortcuts")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if cfg.ShowVersion {
		return cfg, nil
	}

	cfg.CORSOrigins = splitList(origins)
	return cfg, cfg.finish()
}

func (c *Config) finish() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.CutoffHour < 0 || c.CutoffHour > 23 {
		return fmt.Errorf("CUTOFF_HOUR %d out of range 0-23", c.CutoffHour)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("RATE_LIMIT must not be negative")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	c.Location = loc

	if c.JWTSecret == "" {
		if !c.Dev {
			return ErrMissingSecret
		}
		c.JWTSecret = auth.GenerateSecret()
		c.GeneratedSecret = true
	}
	return nil
}

func envInt(env func(string, string) string, key string, fallback int) (int, error) {
	raw := env(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, raw)
	}
	return n, nil
}

func splitList(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
