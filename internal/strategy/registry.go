package strategy

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/sabinquant/hftbt/internal/telemetry"
)

// minSupportedVersion gates which build of the backtester a strategy
// variant may run under; new strategies can declare a floor higher than
// this without touching the registry itself.
var minSupportedVersion = semver.MustParse("0.1.0")

// Factory builds a strategy instance for one instrument, given its own
// telemetry sink.
type Factory func(instrument string, sink *telemetry.Sink) Strategy

type registryEntry struct {
	factory    Factory
	minVersion *semver.Version
}

// Registry maps a strategy index (the CLI's selector) to a constructor,
// mirroring the coordinator's create_strategy(strategy_index) dispatch.
type Registry struct {
	entries map[int]registryEntry
}

func NewRegistry() *Registry {
	r := &Registry{entries: make(map[int]registryEntry)}
	r.Register(0, minSupportedVersion, func(instrument string, sink *telemetry.Sink) Strategy {
		return NewImbalanceStrategy(instrument, sink, voiDepth)
	})
	r.Register(1, minSupportedVersion, func(instrument string, sink *telemetry.Sink) Strategy {
		return NewLinearModelStrategy(instrument, sink)
	})
	return r
}

func (r *Registry) Register(index int, minVersion *semver.Version, factory Factory) {
	r.entries[index] = registryEntry{factory: factory, minVersion: minVersion}
}

// Build constructs the strategy at index for instrument, checking that
// runningVersion satisfies the strategy's declared floor.
func (r *Registry) Build(index int, instrument string, sink *telemetry.Sink, runningVersion *semver.Version) (Strategy, error) {
	entry, ok := r.entries[index]
	if !ok {
		return nil, fmt.Errorf("strategy: no strategy registered at index %d", index)
	}
	if runningVersion.LessThan(entry.minVersion) {
		return nil, fmt.Errorf("strategy: index %d requires version >= %s, running %s",
			index, entry.minVersion, runningVersion)
	}
	return entry.factory(instrument, sink), nil
}
