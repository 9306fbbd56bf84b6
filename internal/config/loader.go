package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the qdue service.
type Config struct {
	HTTPPort      int
	SQLiteDSN     string
	AdminEmail    string
	AdminPassword string
	SessionTTL    time.Duration
	CacheSize     int
	CacheTTL      time.Duration
	SchemeAnchor  time.Time
	RangeWorkers  int
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to sensible defaults; required values are
// validated and reported together so an operator fixes the environment in
// one pass.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:     8080,
		SQLiteDSN:    "file:qdue.db?_foreign_keys=on",
		SessionTTL:   24 * time.Hour,
		CacheSize:    4096,
		CacheTTL:     time.Hour,
		RangeWorkers: 8,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("QDUE_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "QDUE_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("QDUE_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	// The admin pair bootstraps the first account on an empty database.
	// Either both values are present or neither is.
	cfg.AdminEmail = strings.ToLower(strings.TrimSpace(os.Getenv("QDUE_ADMIN_EMAIL")))
	cfg.AdminPassword = os.Getenv("QDUE_ADMIN_PASSWORD")
	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		if cfg.AdminEmail == "" {
			missing = append(missing, "QDUE_ADMIN_EMAIL")
		} else {
			missing = append(missing, "QDUE_ADMIN_PASSWORD")
		}
	}

	if ttlValue := strings.TrimSpace(os.Getenv("QDUE_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "QDUE_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if sizeValue := strings.TrimSpace(os.Getenv("QDUE_CACHE_SIZE")); sizeValue != "" {
		size, err := strconv.Atoi(sizeValue)
		if err != nil || size <= 0 {
			invalid = append(invalid, "QDUE_CACHE_SIZE")
		} else {
			cfg.CacheSize = size
		}
	}

	if ttlValue := strings.TrimSpace(os.Getenv("QDUE_CACHE_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "QDUE_CACHE_TTL")
		} else {
			cfg.CacheTTL = ttl
		}
	}

	if anchorValue := strings.TrimSpace(os.Getenv("QDUE_SCHEME_ANCHOR")); anchorValue != "" {
		anchor, err := time.ParseInLocation("2006-01-02", anchorValue, time.UTC)
		if err != nil {
			invalid = append(invalid, "QDUE_SCHEME_ANCHOR")
		} else {
			cfg.SchemeAnchor = anchor
		}
	}

	if workersValue := strings.TrimSpace(os.Getenv("QDUE_RANGE_WORKERS")); workersValue != "" {
		workers, err := strconv.Atoi(workersValue)
		if err != nil || workers <= 0 {
			invalid = append(invalid, "QDUE_RANGE_WORKERS")
		} else {
			cfg.RangeWorkers = workers
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables carry invalid values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
