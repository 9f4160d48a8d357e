package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/nickdnj/VistterStudio-sub000/internal/app"
	"github.com/nickdnj/VistterStudio-sub000/internal/config"
)

var (
	// version is set at build time.
	version = "0.0.0-dev"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args); err != nil && !errors.Is(err, context.Canceled) {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:    "vistterstudio",
		Usage:   "broadcast engine: renders a clip timeline and streams it live",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runEngine(ctx, cmd.Bool("debug"))
		},
	}

	return cmd.Run(ctx, args)
}

func runEngine(ctx context.Context, debug bool) error {
	configService, err := config.NewDefaultService()
	if err != nil {
		return fmt.Errorf("create config service: %w", err)
	}

	cfg, err := configService.ReadOrCreateConfig()
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	logger, closeLogger, err := buildLogger(cfg, debug)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer closeLogger()

	logger.Info("Starting engine", "version", version, "config_path", configService.Path())

	engine := app.New(ctx, app.Params{
		Config: cfg,
		Logger: logger,
	})

	return engine.Run(ctx)
}

func buildLogger(cfg config.Config, debug bool) (*slog.Logger, func(), error) {
	var w io.Writer = os.Stderr
	closeLogger := func() {}

	if cfg.LogFile.Enabled {
		f, err := os.OpenFile(cfg.LogFile.Path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeLogger = func() { _ = f.Close() }
	}

	var opts slog.HandlerOptions
	if debug {
		opts.Level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(w, &opts)), closeLogger, nil
}
