// Command payments applies a CSV file of transactions and prints the final
// account balances to stdout.
//
//	payments [-format csv|json|table] [-shards n] transactions.csv > accounts.csv
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/congo-pay/payments_engine/internal/account"
	"github.com/congo-pay/payments_engine/internal/config"
	"github.com/congo-pay/payments_engine/internal/engine"
	"github.com/congo-pay/payments_engine/internal/events"
	"github.com/congo-pay/payments_engine/internal/export"
	"github.com/congo-pay/payments_engine/internal/infra"
	"github.com/congo-pay/payments_engine/internal/logging"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return exitError
	}

	fs := flag.NewFlagSet("payments", flag.ContinueOnError)
	fs.SetOutput(stderr)
	formatFlag := fs.String("format", cfg.OutputFormat, "output format: csv, json or table")
	shards := fs.Int("shards", cfg.Shards, "number of engine shards; clients are split across them")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: payments [flags] <transactions.csv>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}
	format, err := export.ParseFormat(*formatFlag)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	if *shards < 1 {
		fmt.Fprintln(stderr, "shards must be at least 1")
		return exitUsage
	}

	logger := logging.NewWithWriter(cfg.LogLevel, stderr)

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		logger.Error("open input", "path", fs.Arg(0), "error", err)
		return exitError
	}
	defer f.Close()

	res, err := infra.Open(ctx, cfg)
	if err != nil {
		logger.Error("connect dependencies", "error", err)
		return exitError
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
	opts := []engine.Option{engine.WithLogger(logger), engine.WithPublisher(publisher)}

	accounts, summary, err := process(ctx, bufio.NewReader(f), *shards, cfg.ShardQueueSize, logger, opts)
	if err != nil {
		logger.Error("process transactions", "path", fs.Arg(0), "error", err)
		return exitError
	}
	logger.Info("transactions processed",
		slog.Int("applied", summary.Applied),
		slog.Int("ignored", summary.Ignored),
		slog.Int("rejected", summary.Rejected),
		slog.Int("accounts", len(accounts)),
	)

	if err := export.Write(stdout, format, accounts); err != nil {
		logger.Error("write report", "error", err)
		return exitError
	}

	if sinks := export.Sinks(res.DB, res.Cache, cfg.SnapshotTTL); len(sinks) > 0 {
		runID := export.NewRunID()
		if err := export.ExportAll(ctx, sinks, runID, accounts); err != nil {
			logger.Error("export snapshot", "run_id", runID, "error", err)
			return exitError
		}
		logger.Info("snapshot exported", "run_id", runID, "sinks", len(sinks))
	}
	return exitOK
}

// process streams r through a single engine, or through a sharded one when
// shards > 1, and returns the final snapshot once every record is applied.
func process(ctx context.Context, r io.Reader, shards, queueSize int, logger *slog.Logger, opts []engine.Option) ([]account.Account, engine.Summary, error) {
	if shards == 1 {
		eng := engine.New(opts...)
		rejected, err := engine.Stream(ctx, r, eng, logger)
		if err != nil {
			return nil, engine.Summary{}, err
		}
		return eng.Accounts(), eng.Stats().Add(rejected), nil
	}

	sh := engine.NewSharded(ctx, shards, queueSize, opts...)
	rejected, err := engine.Stream(ctx, r, sh, logger)
	if closeErr := sh.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, engine.Summary{}, err
	}
	return sh.Accounts(), sh.Stats().Add(rejected), nil
}
