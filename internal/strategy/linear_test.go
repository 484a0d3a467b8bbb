package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabinquant/hftbt/internal/book"
	"github.com/sabinquant/hftbt/internal/telemetry"
)

func syntheticTrainingMessages(n int) []book.Message {
	msgs := make([]book.Message, 0, n*2)
	price := int32(1000)
	var id uint64
	for i := 0; i < n; i++ {
		id++
		msgs = append(msgs, book.Message{Action: book.Add, Side: book.Bid, Price: price, Size: 10, OrderID: id, TimestampNS: uint64(i)})
		id++
		msgs = append(msgs, book.Message{Action: book.Add, Side: book.Ask, Price: price + 10, Size: 10, OrderID: id, TimestampNS: uint64(i)})
		if i%2 == 0 {
			price++
		}
	}
	return msgs
}

func TestLinearModelStrategyFitModelProducesWeightsAndResetsBook(t *testing.T) {
	s := NewLinearModelStrategy("TEST", telemetry.NewSink())
	ob := book.NewOrderbook()

	s.FitModel(ob, syntheticTrainingMessages(60))

	assert.True(t, s.fitted)
	assert.Len(t, s.weights, numFeatures)
	assert.Equal(t, 0, ob.Count(), "FitModel must leave the book reset for live replay")
}

func TestLinearModelStrategyRequiresFitting(t *testing.T) {
	s := NewLinearModelStrategy("TEST", telemetry.NewSink())
	assert.True(t, s.RequiresFitting())
}

func TestLinearModelStrategyPredictZeroBeforeFit(t *testing.T) {
	s := NewLinearModelStrategy("TEST", telemetry.NewSink())
	assert.Equal(t, 0.0, s.predict(1, 1, 1))
}

func TestLinearModelStrategyOnBookUpdateDoesNotPanicUnfitted(t *testing.T) {
	s := NewLinearModelStrategy("TEST", telemetry.NewSink())
	ob := book.NewOrderbook()
	require.NoError(t, ob.ProcessMessage(book.Message{Action: book.Add, Side: book.Bid, Price: 1000, Size: 5, OrderID: 1}))
	require.NoError(t, ob.ProcessMessage(book.Message{Action: book.Add, Side: book.Ask, Price: 1010, Size: 5, OrderID: 2}))

	s.OnBookUpdate(ob)
	assert.Equal(t, int32(0), s.Position())
}
