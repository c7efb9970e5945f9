package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"git.home.luguber.info/inful/updraft/internal/blob"
	"git.home.luguber.info/inful/updraft/internal/config"
	"git.home.luguber.info/inful/updraft/internal/coordinator"
	"git.home.luguber.info/inful/updraft/internal/events"
	"git.home.luguber.info/inful/updraft/internal/executor"
	derrors "git.home.luguber.info/inful/updraft/internal/foundation/errors"
	"git.home.luguber.info/inful/updraft/internal/metrics"
	"git.home.luguber.info/inful/updraft/internal/retention"
	"git.home.luguber.info/inful/updraft/internal/server/httpserver"
	"git.home.luguber.info/inful/updraft/internal/store"
	"git.home.luguber.info/inful/updraft/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"updraft.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Serve struct {
		Watch bool `short:"w" help:"Watch the config file and hot-reload the log level"`
	} `cmd:"" help:"Start the update server"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Version struct{} `cmd:"" help:"Print version information"`
}

func main() {
	ctx := kong.Parse(&CLI)

	errAdapter := derrors.NewCLIErrorAdapter(CLI.Verbose, nil)

	switch ctx.Command() {
	case "serve":
		if err := runServe(CLI.Config, CLI.Serve.Watch, CLI.Verbose); err != nil {
			slog.Error("Serve failed", "error", errAdapter.FormatError(err))
			os.Exit(errAdapter.ExitCodeFor(err))
		}
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", "error", errAdapter.FormatError(err))
			os.Exit(errAdapter.ExitCodeFor(err))
		}
		slog.Info("Configuration file created", "path", CLI.Config)
	case "version":
		fmt.Printf("updraft %s (built %s, commit %s)\n", version.Version, version.BuildTime, version.GitCommit)
	}
}

func runServe(configPath string, watch, verbose bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Logging.Level = string(config.LogLevelDebug)
	}
	levelVar := config.SetupLogging(cfg.Logging)

	slog.Info("Starting updraft server",
		"version", version.Version,
		"config", configPath)

	st, err := store.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer st.Close()

	blobs, err := blob.NewFSStore(cfg.Storage.BlobPath)
	if err != nil {
		return fmt.Errorf("failed to open blob store: %w", err)
	}

	exec, err := buildExecutor(cfg)
	if err != nil {
		return err
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Events.NATSURL != "" {
		natsPub, perr := events.NewNATSPublisher(cfg.Events.NATSURL)
		if perr != nil {
			return fmt.Errorf("failed to connect to NATS: %w", perr)
		}
		defer natsPub.Close()
		publisher = natsPub
	}

	recorder := metrics.NewPrometheusRecorder(nil)

	coord := coordinator.New(st, blobs, exec, publisher, recorder, coordinator.Options{
		PublicBaseURL: cfg.Server.PublicURL,
		BuildTimeout:  time.Duration(cfg.Build.TimeoutMinutes) * time.Minute,
	})
	defer coord.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Builds left in flight by a previous process get their timeout timers
	// re-armed before any new requests are accepted.
	if err := coord.RecoverInFlight(ctx); err != nil {
		return err
	}

	srv := httpserver.New(cfg, coord, blobs, recorder,
		promhttp.HandlerFor(recorder.Registry(), promhttp.HandlerOpts{}))
	if err := srv.Start(ctx); err != nil {
		return err
	}

	if cfg.Retention.Enabled {
		sweeper, serr := retention.New(st, blobs,
			time.Duration(cfg.Retention.MaxAgeDays)*24*time.Hour,
			time.Duration(cfg.Retention.IntervalHours)*time.Hour)
		if serr != nil {
			return serr
		}
		if serr := sweeper.Start(ctx); serr != nil {
			return serr
		}
		defer func() {
			if serr := sweeper.Stop(); serr != nil {
				slog.Warn("Failed to stop retention sweeper", "error", serr)
			}
		}()
	}

	if watch {
		watcher, werr := config.NewWatcher(configPath, cfg, levelVar)
		if werr != nil {
			return werr
		}
		if werr := watcher.Start(ctx); werr != nil {
			return werr
		}
		defer func() {
			if werr := watcher.Stop(); werr != nil {
				slog.Warn("Failed to stop config watcher", "error", werr)
			}
		}()
	}

	<-ctx.Done()
	slog.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func buildExecutor(cfg *config.Config) (executor.Executor, error) {
	switch cfg.Executor.Type {
	case "http":
		return executor.NewHTTPExecutor(cfg.Executor.Endpoint), nil
	case "script":
		return executor.NewScriptExecutor(cfg.Executor.Command, cfg.Executor.Args...), nil
	default:
		return nil, fmt.Errorf("unknown executor type: %s", cfg.Executor.Type)
	}
}
