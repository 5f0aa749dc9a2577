package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"fuelcell/config"
	"fuelcell/db"
	fhttp "fuelcell/http"
	"fuelcell/logging"
	"fuelcell/ml"
	"fuelcell/monitoring"
	"fuelcell/report"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// 1. Load config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		configPath = ""
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	// 2. Load model artifacts
	artifacts, err := ml.LoadArtifacts(cfg.Models.Paths)
	if err != nil {
		logger.Error("failed to load model artifacts", zap.Error(err))
		return err
	}
	logger.Info("model artifacts loaded",
		zap.String("version", artifacts.Version),
		zap.Int("load_trees", artifacts.LoadModel.NumTrees()),
		zap.Int("target_trees", artifacts.TargetModel.NumTrees()))

	registry := ml.NewRegistry(artifacts)
	base := ml.NewPredictor(registry, logger)
	var predictor ml.Service = base
	if cfg.Models.CacheSize > 0 {
		predictor, err = ml.NewCachedPredictor(base, cfg.Models.CacheSize)
		if err != nil {
			return err
		}
	}

	// 3. Initialize prediction history
	var history fhttp.HistoryStore
	if cfg.Database.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return fmt.Errorf("create database dir: %w", err)
		}
		store, err := db.InitDB(cfg.Database.Path)
		if err != nil {
			logger.Error("failed to initialize database", zap.Error(err))
			return err
		}
		defer store.Close()
		history = store
		logger.Info("database initialized", zap.String("path", cfg.Database.Path))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Live prediction feed, metrics and artifact hot reload
	hub := monitoring.NewWebSocketHub(logger)
	go hub.Start()
	defer hub.Stop()

	metrics := monitoring.NewMetrics()
	metrics.SetArtifacts(artifacts)
	metrics.WatchHub(hub)

	if cfg.Models.Watch {
		watcher := ml.NewWatcher(cfg.Models.Paths, registry, logger)
		watcher.OnReload(func(a *ml.Artifacts) {
			metrics.ObserveReload(a)
			if err := hub.PublishReload(a); err != nil {
				logger.Warn("publish reload failed", zap.Error(err))
			}
		})
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Error("artifact watcher stopped", zap.Error(err))
			}
		}()
	}

	// 5. Start HTTP server
	formatter, err := report.NewFormatter(cfg.Report.Locale)
	if err != nil {
		return err
	}
	handlers, err := fhttp.NewHandlers(fhttp.Options{
		Predictor: predictor,
		Registry:  registry,
		Formatter: formatter,
		Stack:     cfg.Stack,
		Chart:     report.ChartOptions{AssetsHost: cfg.Report.EchartsAssetsHost},
		History:   history,
		Feed:      hub,
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	server := fhttp.NewServer(fhttp.ServerConfig{
		Port:           cfg.HTTP.Port,
		Timeout:        cfg.HTTP.Timeout,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		AssetsHost:     cfg.Report.EchartsAssetsHost,
	}, handlers, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 6. Handle graceful shutdown
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", zap.Error(err))
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	if err := server.Stop(); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
	logger.Info("exiting")
	return nil
}
