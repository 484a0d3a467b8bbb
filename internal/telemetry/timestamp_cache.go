package telemetry

import (
	"fmt"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// TimestampFormatter renders a nanosecond timestamp as
// "YYYY-MM-DD HH:MM:SS.mmm", caching the per-second prefix so a burst of
// records inside the same wall-clock second pays for time.Format once.
type TimestampFormatter struct {
	cache *gocache.Cache
}

func NewTimestampFormatter() *TimestampFormatter {
	return &TimestampFormatter{
		cache: gocache.New(2*time.Second, 10*time.Second),
	}
}

func (f *TimestampFormatter) Format(timestampNS uint64) string {
	second := timestampNS / uint64(time.Second)
	millis := (timestampNS % uint64(time.Second)) / uint64(time.Millisecond)

	key := strconv.FormatUint(second, 10)
	var prefix string
	if cached, ok := f.cache.Get(key); ok {
		prefix = cached.(string)
	} else {
		prefix = time.Unix(int64(second), 0).UTC().Format("2006-01-02 15:04:05")
		f.cache.SetDefault(key, prefix)
	}
	return fmt.Sprintf("%s.%03d", prefix, millis)
}
