// Package config reads process configuration from the environment, after merging a .env
// file if one is present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/tycoon/internal/cache"
	"github.com/jason-s-yu/tycoon/internal/database"
	"github.com/jason-s-yu/tycoon/internal/historian"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port           string
	Production     bool
	LogLevel       logrus.Level
	AllowedOrigins []string

	Database database.Options

	// RedisAddr empty disables action publishing.
	RedisAddr string
	RedisDB   int
	Historian historian.Config

	BoardFile string
	// TokenExpire zero means tokens never expire.
	TokenExpire time.Duration

	AgentDecisionsPerSec float64
	// AgentCompletionURL empty keeps agents on the heuristic policy.
	AgentCompletionURL string
	InactivityTimeout  time.Duration
}

// Lookup reads one variable; ok is false when it is unset.
type Lookup func(key string) (value string, ok bool)

// Load merges the given .env files (default ".env"; missing files are ignored) into the
// environment and reads the configuration from it.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup.
func FromEnv(lookup Lookup) (Config, error) {
	env := envReader{lookup: lookup}
	c := Config{
		Port:       env.str("PORT", "8080"),
		Production: env.str("TYCOON_ENV", "development") == "production",
		Database: database.Options{
			Dialect:     database.Dialect(strings.ToLower(env.str("DB_DIALECT", string(database.DialectSQLite)))),
			SQLitePath:  env.str("DB_SQLITE_PATH", "tmp/tycoon.sqlite"),
			PostgresURL: postgresURL(env),
		},
		RedisAddr: "localhost:6379",
		RedisDB:   env.int("REDIS_DB", 0),
		Historian: historian.Config{
			Queue:      env.str("HISTORIAN_QUEUE_NAME", cache.DefaultQueueName),
			BatchSize:  env.int("HISTORIAN_BATCH_SIZE", 20),
			FlushDelay: time.Duration(env.int("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
		},
		BoardFile:            env.str("BOARD_FILE", ""),
		AgentDecisionsPerSec: 2,
		AgentCompletionURL:   env.str("AGENT_COMPLETION_URL", ""),
		InactivityTimeout:    time.Duration(env.int("GAME_INACTIVITY_TIMEOUT_SEC", 600)) * time.Second,
	}
	if v, ok := lookup("REDIS_ADDR"); ok {
		c.RedisAddr = strings.TrimSpace(v)
	}
	if v := env.str("ALLOWED_ORIGINS", ""); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}

	var err error
	if c.LogLevel, err = logrus.ParseLevel(env.str("LOG_LEVEL", "info")); err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.TokenExpire, err = parseTokenExpire(env.str("TOKEN_EXPIRE_TIME", "")); err != nil {
		return Config{}, err
	}
	if v := env.str("AGENT_DECISIONS_PER_SEC", ""); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil || rate <= 0 {
			return Config{}, fmt.Errorf("AGENT_DECISIONS_PER_SEC must be a positive number, got %q", v)
		}
		c.AgentDecisionsPerSec = rate
	}
	return c, nil
}

// parseTokenExpire accepts a Go duration, or "never", "0" or empty for no expiry.
func parseTokenExpire(v string) (time.Duration, error) {
	if v == "never" || v == "0" || v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

// postgresURL prefers DATABASE_URL and otherwise assembles one from the POSTGRES_* settings.
func postgresURL(env envReader) string {
	if u := env.str("DATABASE_URL", ""); u != "" {
		return u
	}
	host := env.str("PG_HOST", "")
	if host == "" {
		return ""
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		env.str("POSTGRES_USER", ""),
		env.str("POSTGRES_PASSWORD", ""),
		host,
		env.str("PG_PORT", "5432"),
		env.str("PG_DATABASE", "tycoon"),
	)
}

type envReader struct {
	lookup Lookup
}

// str returns the variable's value, or def when unset or empty.
func (e envReader) str(key, def string) string {
	if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

// int parses the variable as an integer, or returns def.
func (e envReader) int(key string, def int) int {
	v, err := strconv.Atoi(e.str(key, ""))
	if err != nil {
		return def
	}
	return v
}
