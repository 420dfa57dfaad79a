package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ekisa-team/polyglot/internal/app"
	"github.com/ekisa-team/polyglot/internal/config"
	"github.com/ekisa-team/polyglot/internal/env"
	"github.com/ekisa-team/polyglot/internal/logger"
	grpcserver "github.com/ekisa-team/polyglot/internal/server/grpc"
	httpserver "github.com/ekisa-team/polyglot/internal/server/http"
	"github.com/ekisa-team/polyglot/internal/xfs"
)

const version = "1.0.0"

type options struct {
	httpPort   int
	grpcPort   int
	configPath string
	schemaPath string
	// set holds the flags given on the command line.
	set map[string]bool
}

func main() {
	var (
		flagHTTPPort   = flag.Int("http-port", config.DefaultHTTPPort(), "HTTP port to listen on")
		flagGRPCPort   = flag.Int("grpc-port", config.DefaultGRPCPort(), "GRPC port to listen on")
		flagConfigPath = flag.String("config", config.DefaultConfigFile(), "Path to config file")
		flagSchemaPath = flag.String("schema", "", "Path to schema file (empty uses the embedded schema)")
		flagLogFile    = flag.String("log-file", "logs/polyglot.log", "Path to the rotated log file")
	)
	flag.Parse()

	opts := options{
		httpPort:   *flagHTTPPort,
		grpcPort:   *flagGRPCPort,
		configPath: xfs.ExpandTilde(*flagConfigPath),
		schemaPath: *flagSchemaPath,
		set:        map[string]bool{},
	}
	flag.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	environment := env.FromEnv()

	slog.SetDefault(
		logger.New(environment,
			logger.WithLogToFile(true),
			logger.WithLogFile(*flagLogFile),
		),
	)

	if err := run(opts); err != nil {
		slog.Error("Polyglot stopped", "error", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reloads := make(chan *config.Config, 1)

	var cfg *config.Config
	if xfs.Exists(opts.configPath) {
		watcher, err := config.NewWatcher(opts.configPath, opts.schemaPath, func(cfg *config.Config, err error) {
			if err != nil {
				slog.Error("Failed to reload config", "error", err)
				return
			}
			// Keep only the newest pending config.
			select {
			case <-reloads:
			default:
			}
			reloads <- cfg
		})
		if err != nil {
			return err
		}
		defer watcher.Close()

		cfg = watcher.Snapshot()
		slog.Info("Config loaded successfully", "config", opts.configPath, "schema", opts.schemaPath)
	} else {
		cfg = config.Default()
		config.ApplyEnv(cfg)
		slog.Warn("Config file not found, using built-in defaults", "config", opts.configPath)
	}

	httpPort, grpcPort := cfg.Server.HTTPPort, cfg.Server.GRPCPort
	if opts.set["http-port"] {
		httpPort = opts.httpPort
	}
	if opts.set["grpc-port"] {
		grpcPort = opts.grpcPort
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	httpSrv := httpserver.New(httpserver.Config{
		Port:    httpPort,
		Version: version,
		Services: httpserver.Services{
			Chat:   a.Chat,
			Models: a.Models,
			Speech: a.Speech,
		},
		Metrics: a.Metrics().Handler(),
	})
	grpcSrv := grpcserver.New(grpcserver.Config{
		Port:   grpcPort,
		Source: a.Orchestrator,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpSrv.Run(gctx) })
	g.Go(func() error { return grpcSrv.Run(gctx) })
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case next := <-reloads:
				if err := a.Reload(gctx, next); err != nil {
					slog.Error("Failed to apply config", "error", err)
					continue
				}
				grpcSrv.Update()
			}
		}
	})

	return g.Wait()
}
