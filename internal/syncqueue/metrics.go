package syncqueue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	items      *prometheus.CounterVec
	depth      prometheus.Gauge
	remoteCall *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &metrics{
		items: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledgersync_sync_items_total",
			Help: "Queue items handled by the sync processor, by result.",
		}, []string{"result"}),
		depth: f.NewGauge(prometheus.GaugeOpts{
			Name: "ledgersync_sync_queue_depth",
			Help: "Queue items left after the last drain.",
		}),
		remoteCall: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledgersync_sync_remote_call_duration_seconds",
			Help:    "Latency of remote calls made while draining the queue.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"action", "status"}),
	}
}
