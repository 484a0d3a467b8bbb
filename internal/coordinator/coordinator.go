// Package coordinator runs one backtest per instrument concurrently, each
// on its own worker with its own book, strategy, replay driver and
// telemetry sink. Workers share only the DB connection pool and the
// event publisher; everything else — including the SPSC telemetry
// rings, which have exactly one producer each — is instrument-local.
package coordinator

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/panjf2000/ants/v2"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/sabinquant/hftbt/internal/apperrors"
	"github.com/sabinquant/hftbt/internal/book"
	"github.com/sabinquant/hftbt/internal/config"
	"github.com/sabinquant/hftbt/internal/dbclient"
	"github.com/sabinquant/hftbt/internal/ledger"
	"github.com/sabinquant/hftbt/internal/metrics"
	"github.com/sabinquant/hftbt/internal/replay"
	"github.com/sabinquant/hftbt/internal/strategy"
	"github.com/sabinquant/hftbt/internal/telemetry"
)

// dbMeasurement is the line-protocol measurement name every instrument's
// DB consumer writes under (§6, Output 2).
const dbMeasurement = "backtest"

// InstrumentConfig pairs an instrument's replay inputs with the book and
// driver it will run against. Workers do not share book state: each entry
// owns its own *book.Orderbook and, once Start runs it, its own
// telemetry sink.
type InstrumentConfig struct {
	Instrument    string
	Messages      []book.Message
	TrainMessages []book.Message
	StartTime     time.Time
	EndTime       time.Time
	Book          *book.Orderbook
	// FileLog receives the gzip-compressed CSV telemetry stream (§6,
	// Output 1). A nil FileLog discards the file output but the DB
	// consumer still runs.
	FileLog io.Writer
	Driver  *replay.Driver
}

// Coordinator maintains a map from instrument to InstrumentConfig and runs
// one worker per instrument on a bounded goroutine pool.
type Coordinator struct {
	logger      *zap.Logger
	registry    *strategy.Registry
	engineVer   *semver.Version
	events      *EventPublisher
	pool        *dbclient.Pool
	metrics     *metrics.Registry
	ledger      *ledger.Ledger
	tail        telemetry.LinePublisher
	telemetry   config.TelemetryConfig
	maxWorkers  int
	mu          sync.Mutex
	instruments map[string]*InstrumentConfig
	running     atomic.Bool
}

// New builds a Coordinator. engineVersion gates which registry entries may
// be constructed (internal/strategy/registry.go's MinEngineVersion check).
// pool may be nil, in which case every instrument's DB consumer drops
// every record (Acquire on a nil pool is never attempted). reg may be nil,
// in which case no metric is published (used by unit tests that don't
// want to register collectors against a shared default registry). led may
// be nil, in which case no run record is persisted (the default: the
// ledger is opt-in per internal/config.LedgerConfig.Enabled). telemetryCfg
// sizes every instrument's telemetry sink and file consumer; the zero
// value falls back to their package defaults.
func New(logger *zap.Logger, registry *strategy.Registry, engineVersion *semver.Version, events *EventPublisher, pool *dbclient.Pool, reg *metrics.Registry, led *ledger.Ledger, telemetryCfg config.TelemetryConfig, maxWorkers int) *Coordinator {
	return &Coordinator{
		logger:      logger,
		registry:    registry,
		engineVer:   engineVersion,
		events:      events,
		pool:        pool,
		metrics:     reg,
		ledger:      led,
		telemetry:   telemetryCfg,
		maxWorkers:  maxWorkers,
		instruments: make(map[string]*InstrumentConfig),
	}
}

// SetLedger attaches a run ledger after construction, for callers (like
// cmd/backtester) that open the ledger's optional Postgres connection
// only after confirming config.LedgerConfig.Enabled.
func (c *Coordinator) SetLedger(led *ledger.Ledger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ledger = led
}

// SetTail attaches a live-tail publisher (the admin server's websocket
// hub) after construction, since it only exists when
// config.AdminConfig.EnableWSTail is set.
func (c *Coordinator) SetTail(tail telemetry.LinePublisher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tail = tail
}

// Register adds an instrument's replay inputs to the coordinator. Must be
// called before Start.
func (c *Coordinator) Register(cfg *InstrumentConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instruments[cfg.Instrument] = cfg
}

// RunReport summarizes one instrument's completed run.
type RunReport struct {
	Instrument      string
	Stats           replay.RunStats
	WallNanos       int64
	FileLogDequeued uint64
	FileLogDropped  uint64
	DBLogDequeued   uint64
	DBLogDropped    uint64
	OrderPoolPeak   int
	LimitPoolPeak   int
	Err             error
}

// Start spawns one worker per registered instrument via a bounded ants pool,
// each running create_strategy -> set_trading_times -> (fit if required) ->
// start_backtest, and blocks until every worker has finished or Stop was
// called. It never reuses workers' book state across instruments.
func (c *Coordinator) Start(strategyIndex int) ([]RunReport, error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("coordinator already running")
	}
	defer c.running.Store(false)

	c.mu.Lock()
	instruments := make([]*InstrumentConfig, 0, len(c.instruments))
	for _, cfg := range c.instruments {
		instruments = append(instruments, cfg)
	}
	c.mu.Unlock()

	runID := ksuid.New()
	c.events.Publish(Event{Kind: EventStarted, RunID: runID.String(), StrategyIndex: strategyIndex})

	size := c.maxWorkers
	if size <= 0 || size > len(instruments) {
		size = len(instruments)
	}
	if size <= 0 {
		size = 1
	}

	workerPool, err := ants.NewPool(size)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer workerPool.Release()

	reports := make([]RunReport, len(instruments))
	var wg sync.WaitGroup

	for i, cfg := range instruments {
		i, cfg := i, cfg
		wg.Add(1)
		submitErr := workerPool.Submit(func() {
			defer wg.Done()
			reports[i] = c.runInstrument(runID.String(), strategyIndex, cfg)
		})
		if submitErr != nil {
			wg.Done()
			reports[i] = RunReport{Instrument: cfg.Instrument, Err: apperrors.Wrap(submitErr, apperrors.ErrInternal, "submit worker")}
		}
	}

	wg.Wait()
	c.events.Publish(Event{Kind: EventStopped, RunID: runID.String(), StrategyIndex: strategyIndex})
	return reports, nil
}

// runInstrument owns this instrument's telemetry sink end to end: it
// builds the sink, launches its two consumers, runs the replay driver,
// then stops the sink and waits for both consumers to drain before
// reporting the at-most-once accounting §8 requires (enqueued =
// dequeued + dropped).
func (c *Coordinator) runInstrument(runID string, strategyIndex int, cfg *InstrumentConfig) (report RunReport) {
	defer func() {
		if r := recover(); r != nil {
			err := apperrors.Newf(apperrors.ErrWorkerPanic, "worker panicked running %s", cfg.Instrument).
				WithDetail("panic", fmt.Sprint(r))
			c.logger.Error("worker panicked",
				zap.String("instrument", cfg.Instrument),
				zap.Any("panic", r))
			c.events.Publish(Event{Kind: EventPanicked, RunID: runID, StrategyIndex: strategyIndex, Instrument: cfg.Instrument})
			report = RunReport{Instrument: cfg.Instrument, Err: err}
		}
	}()

	sink := c.newSink()

	strat, err := c.registry.Build(strategyIndex, cfg.Instrument, sink, c.engineVer)
	if err != nil {
		return RunReport{Instrument: cfg.Instrument, Err: fmt.Errorf("create_strategy: %w", err)}
	}

	fileLog := cfg.FileLog
	if fileLog == nil {
		fileLog = io.Discard
	}
	fileConsumer := c.newFileConsumer(fileLog, sink)
	c.mu.Lock()
	tail := c.tail
	c.mu.Unlock()
	if tail != nil {
		fileConsumer.SetTail(tail)
	}
	dbConsumer := telemetry.NewDBConsumer(dbMeasurement, cfg.Instrument, c.pool, c.logger)

	var consumerWG sync.WaitGroup
	consumerWG.Add(2)
	go func() {
		defer consumerWG.Done()
		if err := fileConsumer.Run(sink); err != nil {
			c.logger.Warn("file telemetry consumer exited with error",
				zap.String("instrument", cfg.Instrument), zap.Error(err))
		}
	}()
	go func() {
		defer consumerWG.Done()
		dbConsumer.Run(context.Background(), sink)
	}()

	cfg.Driver = &replay.Driver{
		Instrument: cfg.Instrument,
		Book:       cfg.Book,
		Strategy:   strat,
		Logger:     c.logger,
	}

	if strat.RequiresFitting() {
		strat.FitModel(cfg.Book, cfg.TrainMessages)
	}

	c.logger.Info("starting backtest",
		zap.String("instrument", cfg.Instrument),
		zap.Int("strategy_index", strategyIndex),
		zap.Time("start_time", cfg.StartTime),
		zap.Time("end_time", cfg.EndTime))

	runStart := time.Now()
	stats := cfg.Driver.Run(cfg.Messages)
	wallNanos := time.Since(runStart).Nanoseconds()

	sink.Stop()
	consumerWG.Wait()

	report = RunReport{
		Instrument:      cfg.Instrument,
		Stats:           stats,
		WallNanos:       wallNanos,
		FileLogDequeued: fileConsumer.Dequeued(),
		FileLogDropped:  sink.FileDropped(),
		DBLogDequeued:   dbConsumer.Dequeued(),
		DBLogDropped:    sink.DBDropped() + dbConsumer.Dropped(),
		OrderPoolPeak:   cfg.Book.OrderPoolHighWater(),
		LimitPoolPeak:   cfg.Book.LimitPoolHighWater(),
	}
	c.reportMetrics(cfg.Instrument, report)
	c.logDrops(cfg.Instrument, report)
	c.recordRun(runID, strategyIndex, strat, cfg.Instrument, report)
	return report
}

// newSink builds an instrument's telemetry sink, sized from
// internal/config.TelemetryConfig.RingCapacity when one was supplied to
// New, falling back to telemetry's own default otherwise.
func (c *Coordinator) newSink() *telemetry.Sink {
	if c.telemetry.RingCapacity <= 0 {
		return telemetry.NewSink()
	}
	return telemetry.NewSinkWithCapacity(c.telemetry.RingCapacity)
}

// newFileConsumer builds an instrument's file consumer, sized from
// internal/config.TelemetryConfig.FileBufferSize when one was supplied to
// New, falling back to telemetry's own default otherwise.
func (c *Coordinator) newFileConsumer(w io.Writer, sink *telemetry.Sink) *telemetry.FileConsumer {
	if c.telemetry.FileBufferSize <= 0 {
		return telemetry.NewFileConsumer(w, sink, c.logger)
	}
	return telemetry.NewFileConsumerWithBufferSize(w, sink, c.logger, c.telemetry.FileBufferSize)
}

// recordRun writes one completed run to the ledger when one is attached.
// A write failure is logged and otherwise swallowed: the ledger is a
// reproducibility record, not something a run should fail over.
func (c *Coordinator) recordRun(runID string, strategyIndex int, strat strategy.Strategy, instrument string, report RunReport) {
	if c.ledger == nil {
		return
	}
	rec := ledger.RunRecord{
		RunID:         runID,
		Instrument:    instrument,
		StrategyIndex: strategyIndex,
		StrategyName:  fmt.Sprintf("%T", strat),
		MessagesIn:    report.Stats.Processed + report.Stats.Dropped,
		Dropped:       report.Stats.Dropped,
		WallNanos:     report.WallNanos,
		FinalPosition: report.Stats.FinalPosition,
		FinalPnL:      report.Stats.FinalPnL,
		FileDropped:   report.FileLogDropped,
		DBDropped:     report.DBLogDropped,
	}
	if err := c.ledger.Record(rec); err != nil {
		c.logger.Warn("run ledger write failed", zap.String("instrument", instrument), zap.Error(err))
	}
}

// reportMetrics publishes one worker's completed-run counters. A nil
// registry (unit tests, or a process that never constructed one) is a
// silent no-op rather than a guard at every call site.
func (c *Coordinator) reportMetrics(instrument string, report RunReport) {
	if c.metrics == nil {
		return
	}
	c.metrics.QueueDropped.WithLabelValues(instrument, "file").Add(float64(report.FileLogDropped))
	c.metrics.QueueDropped.WithLabelValues(instrument, "db").Add(float64(report.DBLogDropped))
	c.metrics.PoolHighWaterMark.WithLabelValues(instrument, "order").Set(float64(report.OrderPoolPeak))
	c.metrics.PoolHighWaterMark.WithLabelValues(instrument, "limit").Set(float64(report.LimitPoolPeak))
	c.metrics.MessagesProcessed.WithLabelValues(instrument).Add(float64(report.Stats.Processed))

	if c.pool == nil {
		return
	}
	for id, state := range c.pool.Snapshot() {
		c.metrics.ConnectionState.WithLabelValues(id).Set(metrics.ConnectionStateValue(int(state)))
	}
}

// logDrops surfaces §7's queue-full policy (drop the record, increment a
// counter, continue) as a warning log per instrument rather than per
// dropped record, since the ring already absorbs the drop silently on
// the hot path.
func (c *Coordinator) logDrops(instrument string, report RunReport) {
	if report.FileLogDropped > 0 {
		c.logger.Warn("file telemetry queue dropped records",
			zap.Error(apperrors.Newf(apperrors.ErrQueueFull, "file queue full for %s", instrument).
				WithDetail("dropped", report.FileLogDropped)))
	}
	if report.DBLogDropped > 0 {
		c.logger.Warn("db telemetry queue dropped records",
			zap.Error(apperrors.Newf(apperrors.ErrQueueFull, "db queue full for %s", instrument).
				WithDetail("dropped", report.DBLogDropped)))
	}
}

// Stop cooperatively stops every registered instrument's driver, then
// waits until a Start in progress has seen all of its workers exit. It
// returns at once when no Start is running.
func (c *Coordinator) Stop() {
	c.logger.Info("cooperative shutdown requested",
		zap.Error(apperrors.New(apperrors.ErrShutdown, "coordinator stop requested")))
	c.mu.Lock()
	for _, cfg := range c.instruments {
		if cfg.Driver != nil {
			cfg.Driver.Stop()
		}
	}
	c.mu.Unlock()
	for c.running.Load() {
		time.Sleep(time.Millisecond)
	}
}
