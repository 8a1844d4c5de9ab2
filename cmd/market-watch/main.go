package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rxtech-lab/market-watch/internal/config"
	"github.com/rxtech-lab/market-watch/internal/logger"
	"github.com/rxtech-lab/market-watch/internal/session"
	"github.com/rxtech-lab/market-watch/internal/types"
	"github.com/rxtech-lab/market-watch/internal/version"
)

// watchAction loads configuration, assembles the session, and runs it until
// the process is signalled.
func watchAction(ctx context.Context, cmd *cli.Command) error {
	// Missing .env is fine; the token may come from the real environment.
	_ = godotenv.Load(cmd.String("env-file"))

	log, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if config.Token() == "" {
		log.Warn("no bearer token in environment, stream will stay disconnected",
			zap.String("env_var", config.TokenEnvVar))
	}

	sess := session.New(session.Options{
		BaseURL:          cfg.BaseURL,
		Token:            config.Token,
		Timeframe:        types.Timeframe(cfg.Timeframe),
		SeedWatchlist:    cfg.Watchlist,
		ReconnectBase:    cfg.Stream.ReconnectBase,
		ReconnectMax:     cfg.Stream.ReconnectMax,
		DegradedAfter:    cfg.Stream.DegradedAfter,
		SnapshotInterval: cfg.Poll.SnapshotInterval,
		BarsInterval:     cfg.Poll.BarsInterval,
	}, log)

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sess.Start(runCtx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	log.Info("market watch running",
		zap.String("base_url", cfg.BaseURL),
		zap.Strings("watchlist", sess.Watchlist()),
		zap.String("timeframe", string(sess.Timeframe())),
	)

	<-runCtx.Done()

	log.Info("shutting down")
	sess.Close()

	return nil
}

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	if path := cmd.String("config"); path != "" {
		return config.Load(path)
	}

	cfg := config.Default()
	cfg.BaseURL = cmd.String("base-url")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func main() {
	cmd := &cli.Command{
		Name:    "market-watch",
		Usage:   "Stream and reconcile real-time market data for a watchlist",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
			},
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "Backend origin, e.g. https://terminal.example.com (ignored when --config is set)",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a dotenv file with " + config.TokenEnvVar,
				Value: ".env",
			},
		},
		Action: watchAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
