package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"strata/internal/api"
	"strata/internal/config"
	"strata/internal/consistency"
	"strata/internal/daemon"
	"strata/internal/logging"
	"strata/internal/migration"
	"strata/internal/notifications"
	"strata/internal/placement"
	"strata/internal/predictor"
	"strata/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	st, err := store.Open(ctx, cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return
	}

	engine := placement.NewEngine(st, cfg, logger)
	pred := predictor.New(st, cfg, logger)
	verifier := consistency.NewVerifier(st, cfg, logger)
	notifier := notifications.NewService(cfg)
	orchestrator := migration.NewOrchestrator(st, cfg, verifier, notifier, nil, logger)
	service := api.NewService(st, cfg, engine, pred, orchestrator, notifier, logger)

	d, err := daemon.New(cfg, st, service, orchestrator, notifier, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		_ = st.Close()
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("stratad shutting down")
}
