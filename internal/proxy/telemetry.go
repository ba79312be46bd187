package proxy

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var (
	relayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvshows_media_requests_total",
		Help: "Media relay requests, labeled by the transport that served them.",
	}, []string{"transport"})
	relayBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvshows_media_bytes_total",
		Help: "Bytes read from upstream media servers.",
	})
	relayErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvshows_media_errors_total",
		Help: "Media relay requests that failed on both transports.",
	})
)

// Telemetry aggregates relayed byte counts across all in-flight streams and
// logs the aggregate throughput at a fixed interval.
type Telemetry struct {
	logger   *logrus.Logger
	interval time.Duration
	count    int64
}

func NewTelemetry(interval time.Duration, logger *logrus.Logger) *Telemetry {
	return &Telemetry{logger: logger, interval: interval}
}

// Add records n relayed bytes.
func (t *Telemetry) Add(n int) {
	atomic.AddInt64(&t.count, int64(n))
	relayBytes.Add(float64(n))
}

// Run logs the aggregate relay rate every interval until ctx is done.
// Intervals with no traffic are not logged.
func (t *Telemetry) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count := atomic.SwapInt64(&t.count, 0)
			if count == 0 {
				continue
			}
			t.logger.WithField("rate", bytesPerSecond(count, t.interval)).
				Info("Streaming throughput")
		}
	}
}

func bytesPerSecond(count int64, elapsed time.Duration) string {
	const (
		kb = 1024.
		mb = kb * kb
	)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}
	bps := float64(count) / elapsed.Seconds()
	switch {
	case bps >= mb:
		return fmt.Sprintf("%.2f MB/s", bps/mb)
	case bps >= kb:
		return fmt.Sprintf("%.2f KB/s", bps/kb)
	default:
		return fmt.Sprintf("%.2f B/s", bps)
	}
}
