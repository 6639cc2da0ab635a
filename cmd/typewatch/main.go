package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"typewatch/internal/core/config"
	"typewatch/internal/shared/observability"
)

var (
	configPath = flag.String("config", "./typewatch.toml", "Path to config file")
	watch      = flag.Bool("watch", false, "Keep running and re-check on file changes")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("typewatch v%s\n", VERSION)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg = config.Default()
		} else {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}

	if flag.NArg() > 0 {
		cfg.WatchPaths = flag.Args()
	}

	ctx := context.Background()

	if endpoint := cfg.Observability.OTLPEndpoint; endpoint != "" {
		shutdown, err := observability.InitTracer(ctx, endpoint)
		if err != nil {
			slog.Error("failed to init tracing", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				slog.Warn("trace shutdown failed", "error", err)
			}
		}()
	}

	app, err := NewApp(cfg)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	hadErrors, err := app.RunOnce(ctx)
	if err != nil {
		slog.Error("analysis failed", "error", err)
		os.Exit(2)
	}

	if *watch {
		if err := app.Watch(ctx); err != nil {
			slog.Error("watch failed", "error", err)
			os.Exit(2)
		}
		select {}
	}

	if hadErrors {
		os.Exit(1)
	}
}
