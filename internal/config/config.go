// Package config parses command-line flags and environment variables into
// the configuration the server needs to start: listen port, static-asset
// settings, and the handler-level collaborator credentials named in spec
// section 6 (GITHUB_USERNAME, MYSQL_*).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ServingMode selects how the file cache serves static assets.
type ServingMode int

const (
	ModeFilesystem ServingMode = iota
	ModeMemory
	ModeHybrid
)

func (m ServingMode) String() string {
	switch m {
	case ModeFilesystem:
		return "filesystem"
	case ModeMemory:
		return "memory"
	case ModeHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

func parseServingMode(s string) (ServingMode, error) {
	switch s {
	case "filesystem":
		return ModeFilesystem, nil
	case "memory":
		return ModeMemory, nil
	case "hybrid":
		return ModeHybrid, nil
	default:
		return 0, ValidationError{Field: "file-server-mode", Message: fmt.Sprintf("unknown mode %q", s)}
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Config holds all configuration needed to start the server.
type Config struct {
	LogLevel zerolog.Level
	Port     int
	Debug    bool

	AssetDir     string
	SnapshotPath string
	URLPrefix    string
	ServingMode  ServingMode
	AutoReload   bool
	MaxFileSize  int64

	SessionTTL   time.Duration
	PendingSweep time.Duration

	GitHubUsername string

	MySQLHost     string
	MySQLUser     string
	MySQLPassword string
	MySQLDatabase string
	MySQLPort     int
}

func envStringOrDefault(name, d string) string {
	if v, exists := os.LookupEnv(name); exists && v != "" {
		return v
	}

	return d
}

func envDurationOrDefault(name string, d time.Duration) (time.Duration, error) {
	raw := envStringOrDefault(name, d.String())

	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, ValidationError{
			Field:   name,
			Message: fmt.Sprintf("could not parse %q as duration: %v", raw, err),
		}
	}

	return v, nil
}

func envBoolOrDefault(name string, d bool) (bool, error) {
	raw := envStringOrDefault(name, strconv.FormatBool(d))

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, ValidationError{
			Field:   name,
			Message: fmt.Sprintf("could not parse %q as bool: %v", raw, err),
		}
	}

	return v, nil
}

func envIntOrDefault(name string, d int) (int, error) {
	raw := envStringOrDefault(name, strconv.Itoa(d))

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, ValidationError{
			Field:   name,
			Message: fmt.Sprintf("could not parse %q as int: %v", raw, err),
		}
	}

	return v, nil
}

func envInt64OrDefault(name string, d int64) (int64, error) {
	raw := envStringOrDefault(name, strconv.FormatInt(d, 10))

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ValidationError{
			Field:   name,
			Message: fmt.Sprintf("could not parse %q as int64: %v", raw, err),
		}
	}

	return v, nil
}

func envLogLevelOrDefault(name string, d zerolog.Level) (string, error) {
	raw := envStringOrDefault(name, d.String())

	if _, err := zerolog.ParseLevel(raw); err != nil {
		return "", ValidationError{
			Field:   name,
			Message: fmt.Sprintf("could not parse %q as log level: %v", raw, err),
		}
	}

	return raw, nil
}

// Parse builds a Config from flags, falling back to environment variables
// and .env/.env.local files, in that priority order (flags win).
func Parse(args []string) (*Config, error) {
	if err := godotenv.Load(".env.local", ".env"); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	logLevelStr, err := envLogLevelOrDefault("LOG_LEVEL", zerolog.InfoLevel)
	if err != nil {
		return nil, err
	}

	debug, err := envBoolOrDefault("DEBUG", false)
	if err != nil {
		return nil, err
	}

	autoReload, err := envBoolOrDefault("FILE_SERVER_AUTO_RELOAD", false)
	if err != nil {
		return nil, err
	}

	maxFileSize, err := envInt64OrDefault("FILE_SERVER_MAX_FILE_SIZE", 10*1024*1024)
	if err != nil {
		return nil, err
	}

	sessionTTL, err := envDurationOrDefault("SESSION_TTL", 30*time.Minute)
	if err != nil {
		return nil, err
	}

	pendingSweep, err := envDurationOrDefault("PENDING_SWEEP_INTERVAL", 100*time.Millisecond)
	if err != nil {
		return nil, err
	}

	mysqlPort, err := envIntOrDefault("MYSQL_PORT", 3306)
	if err != nil {
		return nil, err
	}

	fs := newFlagSet(args,
		logLevelStr,
		debug,
		envStringOrDefault("ASSET_DIR", "public"),
		envStringOrDefault("FILE_SERVER_SNAPSHOT", "public.snapshot"),
		envStringOrDefault("FILE_SERVER_URL_PREFIX", "/assets"),
		envStringOrDefault("FILE_SERVER_MODE", "hybrid"),
		autoReload,
		maxFileSize,
		sessionTTL,
		pendingSweep,
		envStringOrDefault("GITHUB_USERNAME", ""),
		envStringOrDefault("MYSQL_HOST", ""),
		envStringOrDefault("MYSQL_USER", ""),
		envStringOrDefault("MYSQL_PASSWORD", ""),
		envStringOrDefault("MYSQL_DATABASE", ""),
		mysqlPort,
	)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return fs.toConfig()
}
