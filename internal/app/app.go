// Package app wires the backtester's long-lived services together with
// go.uber.org/fx: the coordinator, the shared connection pool, the
// metrics registry and the admin HTTP surface are constructed once, via
// dependency injection, instead of through mutable package globals (the
// Design Notes' "explicit dependency injected into each worker at
// construction, with a once-init cell hidden behind a factory").
package app

import (
	"context"

	"github.com/Masterminds/semver/v3"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sabinquant/hftbt/internal/adminapi"
	"github.com/sabinquant/hftbt/internal/config"
	"github.com/sabinquant/hftbt/internal/coordinator"
	"github.com/sabinquant/hftbt/internal/dbclient"
	"github.com/sabinquant/hftbt/internal/ledger"
	"github.com/sabinquant/hftbt/internal/metrics"
	"github.com/sabinquant/hftbt/internal/strategy"
)

// EngineVersion gates which strategy registry entries may run; bumped
// when a strategy's MinEngineVersion constraint needs to change meaning.
var EngineVersion = semver.MustParse("0.1.0")

// Module provides every long-lived service the backtester process needs,
// for composition into an *fx.App by cmd/backtester.
var Module = fx.Options(
	fx.Provide(
		NewLogger,
		NewPrometheusRegistry,
		NewMetricsRegistry,
		NewStrategyRegistry,
		NewEventPublisher,
		NewConnectionPool,
		NewCoordinator,
		NewStatusStore,
		NewAdminServer,
	),
	fx.Invoke(registerAdminServerLifecycle, registerConnectionPoolLifecycle),
)

// NewLogger builds the process logger: production JSON under normal
// operation, a human-readable development encoder when Debug is set.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// NewPrometheusRegistry isolates this process's metrics from the global
// default registry so multiple backtester instances in one test binary
// don't collide on collector names.
func NewPrometheusRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func NewMetricsRegistry(reg *prometheus.Registry) *metrics.Registry {
	return metrics.NewRegistry(reg)
}

func NewStrategyRegistry() *strategy.Registry {
	return strategy.NewRegistry()
}

// NewEventPublisher connects to the configured NATS URL, falling back to
// a no-op publisher (never blocking the coordinator) when the connection
// cannot be established at startup.
func NewEventPublisher(cfg *config.Config, logger *zap.Logger) *coordinator.EventPublisher {
	if cfg.Coordinator.NATSURL == "" {
		return coordinator.NewNoopEventPublisher(logger)
	}
	pub, err := coordinator.NewEventPublisher(cfg.Coordinator.NATSURL, cfg.Coordinator.EventsSubject, logger)
	if err != nil {
		logger.Warn("coordinator event publisher disabled: connect failed", zap.Error(err))
		return coordinator.NewNoopEventPublisher(logger)
	}
	return pub
}

func NewConnectionPool(cfg *config.Config, logger *zap.Logger) *dbclient.Pool {
	return dbclient.NewPool(cfg.DBClient.Address, cfg.DBClient.PoolSize, cfg.DBClient.ConnectTimeout, cfg.DBClient.SendTimeout, logger)
}

func NewCoordinator(logger *zap.Logger, registry *strategy.Registry, events *coordinator.EventPublisher, pool *dbclient.Pool, reg *metrics.Registry, cfg *config.Config) *coordinator.Coordinator {
	return coordinator.New(logger, registry, EngineVersion, events, pool, reg, nil, cfg.Telemetry, cfg.Coordinator.MaxWorkers)
}

func NewStatusStore() *adminapi.StatusStore {
	return adminapi.NewStatusStore()
}

func NewAdminServer(cfg *config.Config, status *adminapi.StatusStore, logger *zap.Logger) *adminapi.Server {
	return adminapi.New(adminapi.Config{
		ListenAddr:   cfg.Admin.ListenAddr,
		CORSOrigins:  cfg.Admin.CORSOrigins,
		EnableWSTail: cfg.Admin.EnableWSTail,
	}, status, logger)
}

// OpenLedger opens the run ledger's Postgres connection and attaches it
// to c, when cfg.Ledger.Enabled is set. Called explicitly after the fx
// graph is built (not via fx.Invoke) so a disabled ledger never pays for
// a dial attempt at process startup.
func OpenLedger(cfg *config.Config, logger *zap.Logger, c *coordinator.Coordinator) (*ledger.Ledger, error) {
	if !cfg.Ledger.Enabled {
		return nil, nil
	}
	ledgerCfg := ledger.DefaultConfig()
	ledgerCfg.DSN = cfg.Ledger.DSN
	led, err := ledger.Open(ledgerCfg, logger)
	if err != nil {
		return nil, err
	}
	c.SetLedger(led)
	return led, nil
}

func registerAdminServerLifecycle(lc fx.Lifecycle, server *adminapi.Server, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := server.Start(); err != nil {
					logger.Error("admin server exited with error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}

func registerConnectionPoolLifecycle(lc fx.Lifecycle, pool *dbclient.Pool) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Shutdown()
			return nil
		},
	})
}
