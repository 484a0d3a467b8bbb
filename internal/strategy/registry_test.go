package strategy

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabinquant/hftbt/internal/telemetry"
)

func TestRegistryBuildsKnownStrategies(t *testing.T) {
	r := NewRegistry()
	sink := telemetry.NewSink()
	v := semver.MustParse("0.1.0")

	s, err := r.Build(0, "TEST", sink, v)
	require.NoError(t, err)
	assert.Equal(t, "imbalance_strat", s.Name())

	s, err = r.Build(1, "TEST", sink, v)
	require.NoError(t, err)
	assert.Equal(t, "linear_model_strat", s.Name())
}

func TestRegistryUnknownIndexErrors(t *testing.T) {
	r := NewRegistry()
	sink := telemetry.NewSink()
	_, err := r.Build(99, "TEST", sink, semver.MustParse("0.1.0"))
	assert.Error(t, err)
}

func TestRegistryVersionFloorEnforced(t *testing.T) {
	r := NewRegistry()
	sink := telemetry.NewSink()
	r.Register(2, semver.MustParse("9.0.0"), func(instrument string, sink *telemetry.Sink) Strategy {
		return NewImbalanceStrategy(instrument, sink, 5)
	})
	_, err := r.Build(2, "TEST", sink, semver.MustParse("0.1.0"))
	assert.Error(t, err)
}
