package itg

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var expiredQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "itg_query_expired_count",
	Help: "itg queries expired without last page",
}, []string{"kind"})

func init() {
	prometheus.MustRegister(expiredQueries)
}

const minQueryWatchInterval = time.Millisecond

// QueryWatcher expire queries which did not get their last page in time
type QueryWatcher struct {
	api      *TradeApi
	timeout  time.Duration
	onExpire func(requestID string, kind QueryKind)
	stop     chan struct{}
	stopOnce sync.Once
}

// NewQueryWatcher scan outstanding queries every timeout/2 but not more often than
// once per millisecond, onExpire may be nil
func NewQueryWatcher(api *TradeApi, timeout time.Duration, onExpire func(requestID string, kind QueryKind)) *QueryWatcher {
	interval := timeout / 2
	if interval < minQueryWatchInterval {
		interval = minQueryWatchInterval
	}
	watcher := &QueryWatcher{
		api:      api,
		timeout:  timeout,
		onExpire: onExpire,
		stop:     make(chan struct{}),
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				watcher.release(now)
			case <-watcher.stop:
				return
			}
		}
	}()
	return watcher
}

func (w *QueryWatcher) release(now time.Time) int {
	expired := w.api.expireOlderThan(now, w.timeout)
	for _, call := range expired {
		expiredQueries.WithLabelValues(call.kind.String()).Inc()
		w.api.logger.Warn("itg-api: query expired", zap.String("requestId", call.id),
			zap.String("kind", call.kind.String()), zap.Int("pages", call.pages))
		if w.onExpire != nil {
			w.onExpire(call.id, call.kind)
		}
	}
	return len(expired)
}

func (w *QueryWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
}
