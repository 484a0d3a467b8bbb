// Package ledger persists one row per completed backtest run: instrument,
// strategy, message counts, wall time, final PnL and drop counts. It is a
// reproducibility record, not book state, and is written once at the end
// of a run — it has no bearing on replay determinism.
package ledger

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// RunRecord is one completed backtest run.
type RunRecord struct {
	gorm.Model
	RunID         string `gorm:"index"`
	Instrument    string `gorm:"index"`
	StrategyIndex int
	StrategyName  string
	MessagesIn    int
	Dropped       int
	WallNanos     int64
	FinalPosition int32
	FinalPnL      float64
	FileDropped   uint64
	DBDropped     uint64
}

// Config holds the Postgres DSN and pool sizing for the ledger. Mirrors
// the shape of a plain connection-config struct with a DSN() accessor,
// except the DSN is handed to the ledger pre-built from internal/config.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns conservative pool sizing for a single-process
// backtester writing one row per run; it never needs a large pool.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	}
}

// Ledger wraps a *gorm.DB scoped to the run_records table.
type Ledger struct {
	db *gorm.DB
}

// Open connects to Postgres and migrates the run_records table. A zap
// logger backs gorm's own query logging at Warn-and-above, matching the
// rest of the module's logging discipline.
func Open(cfg Config, zapLogger *zap.Logger) (*Ledger, error) {
	gormLogger := logger.New(
		&zapGormWriter{logger: zapLogger},
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.AutoMigrate(&RunRecord{}); err != nil {
		return nil, err
	}

	return &Ledger{db: db}, nil
}

// Record writes one completed run. Called once per instrument at the
// coordinator's runInstrument exit, after ClosePositions/Reset.
func (l *Ledger) Record(rec RunRecord) error {
	return l.db.Create(&rec).Error
}

// Close releases the underlying connection pool.
func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type zapGormWriter struct {
	logger *zap.Logger
}

func (w *zapGormWriter) Printf(format string, args ...any) {
	w.logger.Sugar().Warnf(format, args...)
}
