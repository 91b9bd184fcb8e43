// Command server is the framework's minimal CLI entry point: parse
// configuration, wire the collaborators (route table, file cache, session
// store, async HTTP/DB clients), register the sample handlers, and run the
// reactor until SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/netresearch/cweb-go/internal/asyncdb"
	"github.com/netresearch/cweb-go/internal/asynchttp"
	"github.com/netresearch/cweb-go/internal/config"
	"github.com/netresearch/cweb-go/internal/filecache"
	"github.com/netresearch/cweb-go/internal/handlers"
	"github.com/netresearch/cweb-go/internal/pipeline"
	"github.com/netresearch/cweb-go/internal/reactor"
	"github.com/netresearch/cweb-go/internal/router"
	"github.com/netresearch/cweb-go/internal/server"
	"github.com/netresearch/cweb-go/internal/session"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("could not parse configuration")
	}

	log.Logger = log.Logger.Level(cfg.LogLevel)

	os.Exit(run(cfg))
}

// run builds the server context and blocks until the reactor stops,
// returning the process exit code. File-cache initialization and listener
// bind failures return 1 rather than panicking; configuration errors are
// handled in main (log.Fatal) before run is called.
func run(cfg *config.Config) int {
	log.Info().Int("port", cfg.Port).Msg("cweb-go starting...")

	files, err := filecache.New(filecache.Config{
		RootDir:      cfg.AssetDir,
		SnapshotPath: cfg.SnapshotPath,
		URLPrefix:    cfg.URLPrefix,
		Mode:         servingMode(cfg.ServingMode),
		AutoReload:   cfg.AutoReload,
		MaxFileSize:  cfg.MaxFileSize,
	})
	if err != nil {
		log.Error().Err(err).Msg("could not initialize file cache")

		return 1
	}

	routes := router.NewTable()
	sessions := session.New(cfg.SessionTTL)

	httpClient := asynchttp.New(asynchttp.DefaultConfig())
	defer httpClient.Close()

	var dbClient *asyncdb.Client
	if cfg.MySQLHost != "" {
		dbClient, err = asyncdb.New(asyncdb.DefaultConfig(mysqlDSN(cfg)))
		if err != nil {
			log.Warn().Err(err).Msg("could not initialize database client, datahub runs without its database query")
		} else {
			defer dbClient.Close()
		}
	}

	// ctx is captured by the reactor's event handlers below before it is
	// assigned. The reactor accepts no connections and fires no ticks until
	// r.Run() is called, and ctx is assigned before that, so every handler
	// sees its final value. The reactor is built first because the context
	// references it.
	var ctx *server.Context

	pending := pipeline.NewPending()

	r, err := reactor.New(listenAddr(cfg.Port), reactor.Handlers{
		OnData: func(c *reactor.Conn, data []byte) {
			pipeline.Handle(ctx, pending, c, data)
		},
		OnConnError: func(c *reactor.Conn, _ error) {
			pending.CancelConn(c.ID)
			c.Close()
		},
		OnTick: func() {
			pending.Sweep(ctx)
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("could not bind listener")

		return 1
	}

	ctx = server.New(routes, files, sessions, httpClient, dbClient, r, cfg.Debug)

	handlers.Register(ctx, handlers.Config{GitHubUsername: cfg.GitHubUsername})

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-sigCtx.Done()
		log.Info().Msg("shutting down...")
		r.Shutdown()
	}()

	log.Info().Str("addr", r.Addr().String()).Msg("listening")
	r.Run()

	return 0
}

func servingMode(m config.ServingMode) filecache.Mode {
	switch m {
	case config.ModeMemory:
		return filecache.Memory
	case config.ModeHybrid:
		return filecache.Hybrid
	default:
		return filecache.Filesystem
	}
}

func listenAddr(port int) string {
	return ":" + strconv.Itoa(port)
}

func mysqlDSN(cfg *config.Config) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", cfg.MySQLUser, cfg.MySQLPassword, cfg.MySQLHost, cfg.MySQLPort, cfg.MySQLDatabase)
}
