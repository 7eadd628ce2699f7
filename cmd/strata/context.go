package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"strata/internal/api"
	"strata/internal/config"
	"strata/internal/consistency"
	"strata/internal/logging"
	"strata/internal/migration"
	"strata/internal/notifications"
	"strata/internal/placement"
	"strata/internal/predictor"
	"strata/internal/store"
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

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
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

// withService opens the store, assembles the service layer, and runs fn.
// The orchestrator is never started here: migrations submitted by the CLI
// wait in the queue until a daemon drains them.
func (c *commandContext) withService(cmd *cobra.Command, fn func(*api.Service) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	logger := logging.NewNop()
	engine := placement.NewEngine(st, cfg, logger)
	pred := predictor.New(st, cfg, logger)
	verifier := consistency.NewVerifier(st, cfg, logger)
	notifier := notifications.NewService(cfg)
	orch := migration.NewOrchestrator(st, cfg, verifier, notifier, nil, logger)
	svc := api.NewService(st, cfg, engine, pred, orch, notifier, logger)
	return fn(svc)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
