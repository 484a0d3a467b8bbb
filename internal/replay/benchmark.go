// RunIngestBenchmark mirrors the original src/benchmark/main.cpp harness:
// identical to the replay driver but with no strategy attached, so it
// isolates pure book-engine ingest cost from strategy dispatch cost.
package replay

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/sabinquant/hftbt/internal/book"
)

// BenchmarkResult reports pure ingest throughput and per-message
// processing latency, with no strategy dispatch attached.
type BenchmarkResult struct {
	MessagesProcessed int
	MessagesDropped   int
	ElapsedNanos      int64
	P50Nanos          float64
	P99Nanos          float64
}

// MessagesPerSecond is zero when ElapsedNanos is zero (no samples).
func (r BenchmarkResult) MessagesPerSecond() float64 {
	if r.ElapsedNanos == 0 {
		return 0
	}
	return float64(r.MessagesProcessed) / (float64(r.ElapsedNanos) / 1e9)
}

// RunIngestBenchmark feeds messages into ob with no strategy attached,
// timing each call to ProcessMessage individually to report p50/p99
// per-message latency alongside aggregate throughput.
func RunIngestBenchmark(ob *book.Orderbook, messages []book.Message) BenchmarkResult {
	var result BenchmarkResult
	latencies := make([]float64, 0, len(messages))

	start := time.Now()
	for _, msg := range messages {
		msgStart := time.Now()
		err := ob.ProcessMessage(msg)
		latencies = append(latencies, float64(time.Since(msgStart).Nanoseconds()))

		if err != nil {
			result.MessagesDropped++
			continue
		}
		result.MessagesProcessed++
	}
	result.ElapsedNanos = time.Since(start).Nanoseconds()

	if len(latencies) > 0 {
		sort.Float64s(latencies)
		result.P50Nanos = stat.Quantile(0.50, stat.Empirical, latencies, nil)
		result.P99Nanos = stat.Quantile(0.99, stat.Empirical, latencies, nil)
	}

	return result
}
