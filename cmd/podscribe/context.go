package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"podscribe/internal/config"
	"podscribe/internal/download"
	"podscribe/internal/ledger"
	"podscribe/internal/logging"
	"podscribe/internal/notes"
	"podscribe/internal/notifications"
	"podscribe/internal/pipeline"
	"podscribe/internal/summary"
	"podscribe/internal/tempfiles"
	"podscribe/internal/transcribe"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withStore opens the ledger for the duration of one command.
func (c *commandContext) withStore(fn func(cfg *config.Config, store *ledger.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := ledger.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

// buildPipeline assembles the full processing chain the way both the one-shot
// process command and the background loop use it.
func buildPipeline(cfg *config.Config, store *ledger.Store, active *tempfiles.ActiveSet, logger *slog.Logger) *pipeline.Pipeline {
	downloader := download.New(cfg, active, logger)
	engine := transcribe.NewEngine(transcribe.BackendsFromConfig(cfg), cfg.Transcription.TransientRetries, logger)

	var summarizer pipeline.Summarizer
	if cfg.Summary.Enabled {
		summarizer = summary.NewClient(cfg.Summary)
	}

	return pipeline.New(
		cfg,
		store,
		downloader,
		engine,
		summarizer,
		notes.NewRenderer(cfg.Paths.NotesDir),
		notifications.NewService(cfg),
		active,
		logger,
	)
}

func buildLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.NewFromConfig(cfg)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
