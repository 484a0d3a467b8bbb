// Command backtester is the core's CLI entrypoint: it selects a strategy
// index, loads one CSV input file per instrument, and runs a backtest
// through the same fx-wired services a long-running deployment would use
// (coordinator, admin HTTP surface, optional run ledger). The CLI itself
// is deliberately thin — it owns flag parsing and instrument registration,
// nothing else — per spec.md §6's split between the core and its external
// collaborators.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sabinquant/hftbt/internal/adminapi"
	"github.com/sabinquant/hftbt/internal/app"
	"github.com/sabinquant/hftbt/internal/book"
	"github.com/sabinquant/hftbt/internal/config"
	"github.com/sabinquant/hftbt/internal/coordinator"
	"github.com/sabinquant/hftbt/internal/ingest"
)

// instrumentFiles collects repeated -instrument=SYMBOL:/path/to/file.csv
// flags into a SYMBOL -> path map.
type instrumentFiles map[string]string

func (f instrumentFiles) String() string {
	parts := make([]string, 0, len(f))
	for k, v := range f {
		parts = append(parts, k+":"+v)
	}
	return strings.Join(parts, ",")
}

func (f instrumentFiles) Set(value string) error {
	symbol, path, ok := strings.Cut(value, ":")
	if !ok || symbol == "" || path == "" {
		return fmt.Errorf("expected SYMBOL:PATH, got %q", value)
	}
	f[symbol] = path
	return nil
}

func main() {
	os.Exit(run())
}

// run holds every early-return path so deferred cleanup (fx shutdown, the
// ledger connection) always executes before the process exits — os.Exit
// called directly from main would skip every defer above it.
func run() int {
	var (
		configPath    string
		strategyIndex int
	)
	files := make(instrumentFiles)

	flag.StringVar(&configPath, "config", "", "path to a YAML config file (defaults to internal/config.DefaultConfig)")
	flag.IntVar(&strategyIndex, "strategy", 0, "strategy registry index to run (0=imbalance mean-reversion, 1=OLS linear model)")
	flag.Var(files, "instrument", "SYMBOL:PATH pair, repeatable, one CSV input file per instrument")
	flag.Parse()

	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "backtester: at least one -instrument=SYMBOL:PATH is required")
		return 1
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backtester: %v\n", err)
		return 1
	}

	var c *coordinator.Coordinator
	var logger *zap.Logger
	var admin *adminapi.Server

	fxApp := fx.New(
		fx.Supply(cfg),
		app.Module,
		fx.Populate(&c, &logger, &admin),
	)

	startCtx, startCancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = fxApp.Start(startCtx)
	startCancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "backtester: start services: %v\n", err)
		return 1
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		_ = fxApp.Stop(stopCtx)
	}()

	if led, err := app.OpenLedger(cfg, logger, c); err != nil {
		logger.Warn("run ledger disabled: connect failed", zap.Error(err))
	} else if led != nil {
		defer led.Close()
	}
	if tail := admin.Tail(); tail != nil {
		c.SetTail(tail)
	}

	for symbol, path := range files {
		if err := registerInstrument(c, cfg, symbol, path); err != nil {
			fmt.Fprintf(os.Stderr, "backtester: %s: %v\n", symbol, err)
			return 1
		}
	}

	reports, err := c.Start(strategyIndex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backtester: %v\n", err)
		return 1
	}

	exitCode := 0
	for _, r := range reports {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "backtester: %s: %v\n", r.Instrument, r.Err)
			exitCode = 1
			continue
		}
		fmt.Printf("%s: processed=%d dropped=%d position=%d pnl=%.2f file_dropped=%d db_dropped=%d\n",
			r.Instrument, r.Stats.Processed, r.Stats.Dropped, r.Stats.FinalPosition, r.Stats.FinalPnL,
			r.FileLogDropped, r.DBLogDropped)
	}
	return exitCode
}

func registerInstrument(c *coordinator.Coordinator, cfg *config.Config, symbol, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	messages, err := ingest.ParseCSV(f)
	if err != nil {
		return fmt.Errorf("parse input file: %w", err)
	}
	if len(messages) == 0 {
		return fmt.Errorf("input file %s contains no messages", path)
	}

	logPath := path + ".telemetry.csv.gz"
	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("create telemetry log: %w", err)
	}

	c.Register(&coordinator.InstrumentConfig{
		Instrument: symbol,
		Messages:   messages,
		StartTime:  time.Unix(0, int64(messages[0].TimestampNS)),
		EndTime:    time.Unix(0, int64(messages[len(messages)-1].TimestampNS)),
		Book:       book.NewOrderbookWithConfig(cfg.Replay),
		FileLog:    logFile,
	})
	return nil
}
