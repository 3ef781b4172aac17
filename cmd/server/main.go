package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/redstonecraft/redstone/internal/config"
	"github.com/redstonecraft/redstone/internal/scheduler"
	"github.com/redstonecraft/redstone/internal/server"
)

const ConfigPath = "config/server.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, os.Args[1:]); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfgPath := ConfigPath
	if p := os.Getenv("REDSTONE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Flags override the config file.
	fs := flag.NewFlagSet("redstone", flag.ExitOnError)
	fs.StringVar(&cfg.BindAddress, "address", cfg.BindAddress, "address to bind to")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "port to listen on")
	fs.IntVar(&cfg.Backlog, "backlog", cfg.Backlog, "maximum concurrent connections")
	fs.StringVar(&cfg.Name, "name", cfg.Name, "server name shown to clients")
	fs.StringVar(&cfg.MOTD, "motd", cfg.MOTD, "message of the day")
	fs.StringVar(&cfg.Software, "software", cfg.Software, "software name sent to the listing endpoint")
	fs.BoolVar(&cfg.Public, "public", cfg.Public, "advertise on the public server list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	slog.Info("redstone server starting",
		"bind", cfg.BindAddress,
		"port", cfg.Port,
		"name", cfg.Name,
		"log_level", cfg.LogLevel)

	sched := scheduler.New()
	srv, err := server.NewServer(cfg, sched)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	if err := srv.Setup(); err != nil {
		return fmt.Errorf("setting up server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting task scheduler")
		if err := sched.Run(gctx); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("starting classic server", "port", cfg.Port)
		if err := srv.Run(gctx); err != nil {
			return fmt.Errorf("classic server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// parseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
