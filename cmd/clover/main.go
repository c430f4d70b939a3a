package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/app"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "clover",
		Short:         "Custom fields and qualification rules for CRM records",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before the environment")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP api",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), envFile, func(ctx context.Context, a *app.App) error {
					if err := a.Start(ctx, true); err != nil {
						return err
					}
					return a.Serve(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "worker",
			Short: "Re-evaluate qualification when custom values change",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), envFile, func(ctx context.Context, a *app.App) error {
					if err := a.Start(ctx, true); err != nil {
						return err
					}
					return a.RunWorker(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), envFile, func(ctx context.Context, a *app.App) error {
					return a.Migrate(ctx)
				})
			},
		},
	)

	return root
}

// run loads configuration, builds the app and stops it after fn returns or the
// process receives SIGINT or SIGTERM.
func run(parent context.Context, envFile string, fn func(ctx context.Context, a *app.App) error) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	logger, sync, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer sync()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg, logger, version)
	runErr := fn(ctx, a)
	if runErr != nil {
		logger.WithError(runErr).Error("clover stopped with an error")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.Stop(stopCtx); err != nil {
		logger.WithError(err).Warn("failed to stop dependencies cleanly")
	}
	return runErr
}

func newLogger(cfg *config.Config) (ectologger.Logger, func(), error) {
	zapConfig := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapConfig = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	zapLogger, err := zapConfig.Build(zap.Fields(zap.String("app", cfg.AppName), zap.String("version", version)))
	if err != nil {
		return nil, nil, err
	}

	return zapadapter.NewZapEctoLogger(zapLogger, nil), func() { _ = zapLogger.Sync() }, nil
}
