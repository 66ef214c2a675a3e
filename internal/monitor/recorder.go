package monitor

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/opsarch/admin-core/pkg/cache"
)

const metricTTL = 7 * 24 * time.Hour

// Recorder keeps per-day operation counters in Redis. Counting is best
// effort: a cache outage must never fail the operation being counted.
type Recorder struct {
	cache  *cache.Client
	logger *zap.SugaredLogger
}

func NewRecorder(c *cache.Client, logger *zap.SugaredLogger) *Recorder {
	return &Recorder{cache: c, logger: logger}
}

// Incr bumps today's counter for name. Keys expire after a week so stale
// days clean themselves up.
func (r *Recorder) Incr(ctx context.Context, name string) {
	key := cache.PrefixMetrics + ":" + name + ":" + time.Now().Format("2006-01-02")
	if _, err := r.cache.Incr(ctx, key, metricTTL); err != nil && !errors.Is(err, cache.ErrUnavailable) {
		r.logger.Debugw("metric increment failed", "metric", name, "err", err)
	}
}

// Counters returns the last n days of a named counter, newest first.
func (r *Recorder) Counters(ctx context.Context, name string, days int) (map[string]int64, error) {
	out := make(map[string]int64, days)
	for i := 0; i < days; i++ {
		day := time.Now().AddDate(0, 0, -i).Format("2006-01-02")
		v, err := r.cache.Get(ctx, cache.PrefixMetrics+":"+name+":"+day)
		if err != nil {
			if errors.Is(err, cache.ErrMiss) {
				out[day] = 0
				continue
			}
			return nil, err
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[day] = n
	}
	return out, nil
}
