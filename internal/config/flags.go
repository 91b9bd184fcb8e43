package config

import (
	"flag"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// flagSet wraps flag.FlagSet so Parse can build it from env-derived
// defaults and then validate+convert the parsed strings into a Config.
type flagSet struct {
	fs *flag.FlagSet

	port             *int
	logLevel         *string
	debug            *bool
	assetDir         *string
	snapshotPath     *string
	urlPrefix        *string
	servingMode      *string
	autoReload       *bool
	maxFileSize      *int64
	sessionTTL       *time.Duration
	pendingSweep     *time.Duration
	githubUsername   *string
	mysqlHost        *string
	mysqlUser        *string
	mysqlPassword    *string
	mysqlDatabase    *string
	mysqlPort        *int
}

// newFlagSet declares every flag with the given env-derived default. Flags
// take priority over the environment; the environment takes priority over
// the .env file; the file takes priority over the hardcoded default.
func newFlagSet(
	args []string,
	logLevel string,
	debug bool,
	assetDir, snapshotPath, urlPrefix, servingMode string,
	autoReload bool,
	maxFileSize int64,
	sessionTTL, pendingSweep time.Duration,
	githubUsername string,
	mysqlHost, mysqlUser, mysqlPassword, mysqlDatabase string,
	mysqlPort int,
) *flagSet {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	s := &flagSet{fs: fs}
	s.port = fs.Int("port", 8080, "TCP port to listen on.")
	s.logLevel = fs.String("log-level", logLevel,
		"Log level. Valid values are: trace, debug, info, warn, error, fatal, panic.")
	s.debug = fs.Bool("debug", debug, "Enable debug instrumentation (speed-sample ring).")
	s.assetDir = fs.String("asset-dir", assetDir, "Root directory of static assets.")
	s.snapshotPath = fs.String("file-server-snapshot", snapshotPath, "Path to the file-cache binary snapshot.")
	s.urlPrefix = fs.String("file-server-url-prefix", urlPrefix, "URL prefix under which static assets are served.")
	s.servingMode = fs.String("file-server-mode", servingMode, "File serving mode: filesystem, memory, or hybrid.")
	s.autoReload = fs.Bool("file-server-auto-reload", autoReload, "Reload cache entries when the on-disk file changes.")
	s.maxFileSize = fs.Int64("file-server-max-file-size", maxFileSize, "Maximum cacheable file size in bytes.")
	s.sessionTTL = fs.Duration("session-ttl", sessionTTL, "Session time-to-live.")
	s.pendingSweep = fs.Duration("pending-sweep-interval", pendingSweep, "Pending-response sweep interval. Parsed into Config.PendingSweep only; the reactor sweeps at its fixed 100ms WatchdogInterval.")
	s.githubUsername = fs.String("github-username", githubUsername, "GitHub username used by the fetch sample handler.")
	s.mysqlHost = fs.String("mysql-host", mysqlHost, "MariaDB/MySQL host used by the datahub sample handler.")
	s.mysqlUser = fs.String("mysql-user", mysqlUser, "MariaDB/MySQL user.")
	s.mysqlPassword = fs.String("mysql-password", mysqlPassword, "MariaDB/MySQL password.")
	s.mysqlDatabase = fs.String("mysql-database", mysqlDatabase, "MariaDB/MySQL database name.")
	s.mysqlPort = fs.Int("mysql-port", mysqlPort, "MariaDB/MySQL port.")

	return s
}

// Parse parses args, accepting a bare positional port ("server 9090") ahead
// of flag-style arguments, so a bare "server <port>" invocation still works.
func (s *flagSet) Parse(args []string) error {
	filtered := make([]string, 0, len(args))

	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			filtered = append(filtered, args[i:]...)

			break
		}

		if p, err := strconv.Atoi(a); err == nil {
			*s.port = p

			continue
		}

		filtered = append(filtered, a)
	}

	return s.fs.Parse(filtered)
}

func (s *flagSet) toConfig() (*Config, error) {
	logLevel, err := zerolog.ParseLevel(*s.logLevel)
	if err != nil {
		return nil, ValidationError{Field: "log-level", Message: err.Error()}
	}

	mode, err := parseServingMode(*s.servingMode)
	if err != nil {
		return nil, err
	}

	return &Config{
		LogLevel:       logLevel,
		Port:           *s.port,
		Debug:          *s.debug,
		AssetDir:       *s.assetDir,
		SnapshotPath:   *s.snapshotPath,
		URLPrefix:      *s.urlPrefix,
		ServingMode:    mode,
		AutoReload:     *s.autoReload,
		MaxFileSize:    *s.maxFileSize,
		SessionTTL:     *s.sessionTTL,
		PendingSweep:   *s.pendingSweep,
		GitHubUsername: *s.githubUsername,
		MySQLHost:      *s.mysqlHost,
		MySQLUser:      *s.mysqlUser,
		MySQLPassword:  *s.mysqlPassword,
		MySQLDatabase:  *s.mysqlDatabase,
		MySQLPort:      *s.mysqlPort,
	}, nil
}
