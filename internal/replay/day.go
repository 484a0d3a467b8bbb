package replay

import (
	"time"

	"github.com/sabinquant/hftbt/internal/book"
)

// TradingDay is one day's message vector plus its trading-session bounds,
// the unit the multi-day driver iterates over.
type TradingDay struct {
	Messages  []book.Message
	Date      time.Time
	StartTime time.Time
	EndTime   time.Time
}

// StatePreserver is implemented by strategies that want their
// position/PnL state carried across day boundaries instead of zeroed by
// the per-run Reset each Driver.Run call performs. Strategies that don't
// implement it default to resetting between days.
type StatePreserver interface {
	PreservesStateAcrossDays() bool
}

// MultiDayDriver replays a queue of TradingDays against one Driver,
// resetting the book between days and resetting the strategy too unless
// it opts into cross-day state via StatePreserver.
type MultiDayDriver struct {
	driver *Driver
	days   []TradingDay
}

func NewMultiDayDriver(driver *Driver, days []TradingDay) *MultiDayDriver {
	return &MultiDayDriver{driver: driver, days: days}
}

func (m *MultiDayDriver) Run() []RunStats {
	preserves := false
	if p, ok := m.driver.Strategy.(StatePreserver); ok {
		preserves = p.PreservesStateAcrossDays()
	}

	results := make([]RunStats, 0, len(m.days))
	for _, day := range m.days {
		stats := m.driver.runDay(day.Messages, !preserves)
		results = append(results, stats)

		if m.driver.stop.Load() {
			break
		}
	}
	return results
}
