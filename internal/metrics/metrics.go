// Package metrics registers the backtester's Prometheus collectors. The
// coordinator updates the per-instrument queue-drop counters, pool
// high-water marks, connection state gauges and processed-message
// counters; ReplayThroughput and ConnectionDegraded are registered but
// nothing in this module updates them.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the collectors a single backtester process exposes.
// One Registry is constructed per process and injected everywhere a
// component needs to report a measurement; nothing here is a package
// global.
type Registry struct {
	QueueDropped       *prometheus.CounterVec
	PoolHighWaterMark  *prometheus.GaugeVec
	ConnectionState    *prometheus.GaugeVec
	MessagesProcessed  *prometheus.CounterVec
	ReplayThroughput   *prometheus.GaugeVec
	ConnectionDegraded prometheus.Counter
}

// NewRegistry constructs and registers every collector against reg. Pass
// prometheus.NewRegistry() for an isolated registry (tests, multiple
// processes in one binary) or prometheus.DefaultRegisterer to expose via
// promhttp.Handler().
func NewRegistry(reg prometheus.Registerer) *Registry {
	m := &Registry{
		QueueDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hftbt_telemetry_queue_dropped_total",
			Help: "Telemetry records dropped: refused by a full ring, or (db consumer) discarded before a successful send.",
		}, []string{"instrument", "consumer"}),
		PoolHighWaterMark: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hftbt_pool_high_water_mark",
			Help: "Peak live-acquire count for an object pool.",
		}, []string{"instrument", "pool"}),
		ConnectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hftbt_dbclient_connection_state",
			Help: "Current state of a pooled DB connection (0=disconnected,1=connecting,2=active,3=degraded,4=closed).",
		}, []string{"connection_id"}),
		MessagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hftbt_replay_messages_processed_total",
			Help: "Messages successfully applied to the book by the replay driver.",
		}, []string{"instrument"}),
		ReplayThroughput: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hftbt_replay_messages_per_second",
			Help: "Most recent ingest-benchmark throughput measurement.",
		}, []string{"instrument"}),
		ConnectionDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hftbt_dbclient_degraded_total",
			Help: "Count of connections transitioning to the Degraded state.",
		}),
	}

	reg.MustRegister(
		m.QueueDropped,
		m.PoolHighWaterMark,
		m.ConnectionState,
		m.MessagesProcessed,
		m.ReplayThroughput,
		m.ConnectionDegraded,
	)
	return m
}

// ConnectionStateValue maps a dbclient.ConnectionState-shaped int to the
// gauge value documented on ConnectionState's Help string, kept here
// instead of in dbclient to avoid a metrics import in the hot-path package.
func ConnectionStateValue(state int) float64 {
	return float64(state)
}
