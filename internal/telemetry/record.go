// Package telemetry carries strategy log records off the replay hot path
// through bounded SPSC rings into a file consumer and a database
// consumer, each formatting the record independently.
package telemetry

// Record is one strategy log line: the inputs to both output formats
// (§6 of the wire contract this module serves).
type Record struct {
	Instrument  string
	TimestampNS uint64
	Bid         int32
	Ask         int32
	Position    int32
	TradeCount  int32
	PnL         float64
}
