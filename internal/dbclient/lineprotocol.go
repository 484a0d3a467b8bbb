package dbclient

import "fmt"

// EncodeLine renders one telemetry record as a line-protocol line:
// measurement,instrument=<id> bid=<i>,ask=<i>,position=<i>,trade_count=<i>,pnl=<f> <ts_ns>\n
func EncodeLine(measurement, instrument string, bid, ask, position, tradeCount int32, pnl float64, timestampNS uint64) []byte {
	return []byte(fmt.Sprintf(
		"%s,instrument=%s bid=%d,ask=%d,position=%d,trade_count=%d,pnl=%f %d\n",
		measurement, instrument, bid, ask, position, tradeCount, pnl, timestampNS,
	))
}
