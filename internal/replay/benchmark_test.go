package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sabinquant/hftbt/internal/book"
)

func TestRunIngestBenchmarkCountsProcessedAndDropped(t *testing.T) {
	ob := book.NewOrderbook()
	msgs := []book.Message{
		{Action: book.Add, Side: book.Bid, Price: 100, Size: 5, OrderID: 1},
		{Action: book.Cancel, OrderID: 999},
	}
	result := RunIngestBenchmark(ob, msgs)

	assert.Equal(t, 1, result.MessagesProcessed)
	assert.Equal(t, 1, result.MessagesDropped)
	assert.GreaterOrEqual(t, result.ElapsedNanos, int64(0))
}

func TestBenchmarkResultMessagesPerSecondZeroWhenNoElapsed(t *testing.T) {
	r := BenchmarkResult{}
	assert.Equal(t, 0.0, r.MessagesPerSecond())
}
