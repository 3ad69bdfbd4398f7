package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/congo-pay/payments_engine/internal/config"
	"github.com/congo-pay/payments_engine/internal/engine"
	"github.com/congo-pay/payments_engine/internal/events"
	"github.com/congo-pay/payments_engine/internal/export"
	"github.com/congo-pay/payments_engine/internal/infra"
	"github.com/congo-pay/payments_engine/internal/logging"
	"github.com/congo-pay/payments_engine/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()

	res, err := infra.Open(ctx, cfg)
	if err != nil {
		logger.Error("connect dependencies", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Warn("close dependencies", "error", err)
		}
	}()

	publisher := events.Multi{events.NewLoggerPublisher(logger)}
	if res.Kafka != nil {
		publisher = append(publisher, events.NewKafkaPublisher(res.Kafka))
	}
	eng := engine.New(engine.WithLogger(logger), engine.WithPublisher(publisher))

	srv, err := server.New(cfg, eng, res.DB, res.Cache, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	// No request is in flight any more, so the snapshot is final.
	accounts := eng.Accounts()
	if sinks := export.Sinks(res.DB, res.Cache, cfg.SnapshotTTL); len(sinks) > 0 {
		runID := export.NewRunID()
		if err := export.ExportAll(shutdownCtx, sinks, runID, accounts); err != nil {
			logger.Error("export snapshot", "run_id", runID, "error", err)
		} else {
			logger.Info("snapshot exported", "run_id", runID, "accounts", len(accounts))
		}
	}

	logger.Info("server exited cleanly", "stats", eng.Stats())
}
