package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"podscribe/internal/config"
	"podscribe/internal/ledger"
	"podscribe/internal/logging"
	"podscribe/internal/tempfiles"
	"podscribe/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the background processing loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			// One loop per data directory. A second instance would race the
			// ledger's guarded writes and double-process episodes.
			lock := flock.New(lockPath(cfg))
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire run lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another podscribe run holds %s", lock.Path())
			}
			defer func() { _ = lock.Unlock() }()

			logger, err := buildLogger(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := ledger.Open(cfg)
			if err != nil {
				logger.Error("open ledger", logging.Error(err))
				return err
			}
			defer store.Close()

			// Audio files of episodes stranded in flight by a previous crash
			// stay protected from the sweeper until their records resolve.
			active := tempfiles.NewActiveSet()
			if paths, err := store.ActiveAudioPaths(cmd.Context()); err == nil {
				for _, path := range paths {
					active.Register(path)
				}
			} else {
				logger.Warn("list in-flight audio paths", logging.Error(err))
			}

			pipe := buildPipeline(cfg, store, active, logger)
			janitor := tempfiles.NewJanitor(cfg.Paths.TempDir, active, logger)
			manager := workflow.NewManager(cfg, store, pipe, janitor, logger)

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := manager.Start(signalCtx); err != nil {
				return err
			}
			logger.Info("podscribe loop started",
				logging.String("database", cfg.DatabasePath()),
				logging.Int("poll_interval_seconds", cfg.Workflow.PollInterval),
			)

			<-signalCtx.Done()
			logger.Info("podscribe loop shutting down")
			manager.Stop()
			return nil
		},
	}
}

func lockPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, "podscribe.lock")
}
