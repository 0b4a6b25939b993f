package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/amaumene/storarr/internal/config"
	"github.com/amaumene/storarr/internal/scheduler"
	"github.com/amaumene/storarr/internal/tracing"
	"github.com/amaumene/storarr/internal/utils"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "storarr",
		Short:         "Moves media between streamed placeholders and local files",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the background loops",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "scan",
			Short: "Reconcile the library once and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runOnce(cmd.Context(), scheduler.TaskLibraryScan)
			},
		},
		&cobra.Command{
			Use:   "sweep",
			Short: "Run one transition sweep and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runOnce(cmd.Context(), scheduler.TaskTransitionSweep)
			},
		},
	)
	return root
}

// bootstrap loads configuration and sets up logging and tracing
func bootstrap() (*config.Config, zerolog.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := utils.NewLogger(cfg.LogLevel, cfg.LogPretty)
	logger.Info().Str("config_dir", filepath.Dir(cfg.DatabaseFile)).Msg("Configuration loaded")

	stopTracing := func() {}
	if cfg.TracingEnabled {
		shutdown := tracing.Setup(logger)
		stopTracing = func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn().Err(err).Msg("Failed to stop tracing")
			}
		}
		logger.Info().Msg("Tracing enabled")
	}
	return cfg, logger, stopTracing, nil
}

func serve(ctx context.Context) error {
	// 1. Load configuration, logger and tracing
	cfg, logger, stopTracing, err := bootstrap()
	if err != nil {
		return err
	}
	defer stopTracing()
	logger.Info().Msg("Starting Storarr")

	// 2. Wire database, services, controllers and handlers
	app, cleanup, err := initializeApp(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()
	logger.Info().Msg("Components initialized")

	// 3. Start the background loops
	if err := app.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer app.Scheduler.Stop()

	// 4. Start the HTTP server
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- app.Server.Start(ctx)
	}()

	// 5. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info().Msg("Storarr is running")

	select {
	case err := <-serverErrChan:
		return err
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	// Event streams only end when the hub closes
	app.Hub.Close()
	cancel()
	if err := <-serverErrChan; err != nil {
		logger.Error().Err(err).Msg("Error during server shutdown")
	}

	logger.Info().Msg("Storarr stopped")
	return nil
}

// runOnce executes a single task through the gate and exits
func runOnce(ctx context.Context, task string) error {
	cfg, logger, stopTracing, err := bootstrap()
	if err != nil {
		return err
	}
	defer stopTracing()

	app, cleanup, err := initializeApp(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Scheduler.RunNow(ctx, task); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn().Str("task", task).Msg("Interrupted")
			return nil
		}
		return fmt.Errorf("%s failed: %w", task, err)
	}
	logger.Info().Str("task", task).Msg("Done")
	return nil
}
