package dbclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeLineFormat(t *testing.T) {
	line := EncodeLine("backtest", "AAPL", 100, 101, 1, 2, 3.5, 1700000000000000000)
	assert.Equal(t, "backtest,instrument=AAPL bid=100,ask=101,position=1,trade_count=2,pnl=3.500000 1700000000000000000\n", string(line))
}
