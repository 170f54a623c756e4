package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/orchestra-mcp/relay/config"
	"github.com/orchestra-mcp/relay/providers"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
)

const shutdownTimeout = 15 * time.Second

type flags struct {
	ConfigPath string
	LogLevel   string
	LogFile    string
	Addr       string
	Store      string
	Scope      string
	Acks       bool
}

func main() {
	if err := setupLogger("info", ""); err != nil {
		panic(err)
	}
	// A missing .env file is fine.
	_ = godotenv.Load()

	f := &flags{}
	app := newCommand(f, func(ctx context.Context, cfg *config.RelayConfig) error {
		if err := setupLogger(cfg.LogLevel, f.LogFile); err != nil {
			return err
		}
		return run(ctx, cfg)
	})

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Error().Err(err).Msg("relay exited")
		os.Exit(1)
	}
}

// newCommand builds the root command. action receives the loaded, overridden
// and validated configuration.
func newCommand(f *flags, action func(context.Context, *config.RelayConfig) error) *cli.Command {
	return &cli.Command{
		Name:    "relay",
		Usage:   "Real-time chat relay over WebSocket",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to YAML config file",
				Sources:     cli.EnvVars("RELAY_CONFIG"),
				Value:       "relay.yaml",
				Destination: &f.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Sources:     cli.EnvVars("RELAY_LOG_LEVEL"),
				Destination: &f.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (optional)",
				Sources:     cli.EnvVars("RELAY_LOG_FILE"),
				Destination: &f.LogFile,
			},
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Destination: &f.Addr,
			},
			&cli.StringFlag{
				Name:        "store",
				Usage:       "message store driver (memory, sqlite, redis)",
				Destination: &f.Store,
			},
			&cli.StringFlag{
				Name:        "scope",
				Usage:       "fan-out scope (global, channel)",
				Destination: &f.Scope,
			},
			&cli.BoolFlag{
				Name:        "acks",
				Usage:       "send ack and error frames to senders",
				Destination: &f.Acks,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(c, f)
			if err != nil {
				return err
			}
			return action(ctx, cfg)
		},
	}
}

func loadConfig(c *cli.Command, f *flags) (*config.RelayConfig, error) {
	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if c.IsSet("addr") {
		cfg.Addr = f.Addr
	}
	if c.IsSet("store") {
		cfg.Store.Driver = f.Store
	}
	if c.IsSet("scope") {
		cfg.Scope = f.Scope
	}
	if c.IsSet("acks") {
		cfg.Acks = f.Acks
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.RelayConfig) error {
	relay := providers.NewRelayProvider(cfg, log.Logger)
	if err := relay.Activate(ctx); err != nil {
		return fmt.Errorf("activate relay: %w", err)
	}

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"relay": func(ctx context.Context) error {
				log.Info().Msg("graceful shutdown initiated")
				return relay.Stop(ctx)
			},
		},
	)

	serveErr := make(chan error, 1)
	go func() { serveErr <- relay.ListenAndServe() }()

	select {
	case code := <-wait:
		return exitCode(code)
	case err := <-serveErr:
		if err == nil {
			// Serve returns nil once a shutdown has started.
			return exitCode(<-wait)
		}
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(fmt.Errorf("serve: %w", err), relay.Stop(stopCtx))
	}
}

func exitCode(code int) error {
	if code != 0 {
		return fmt.Errorf("shutdown finished with exit code %d", code)
	}
	log.Info().Msg("relay stopped")
	return nil
}

func setupLogger(level string, logFile string) error {
	parsedLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %w", err)
	}

	var output io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		output = io.MultiWriter(zerolog.ConsoleWriter{Out: os.Stderr}, file)
	}

	log.Logger = log.Output(output).Level(parsedLevel)
	return nil
}
