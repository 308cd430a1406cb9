package output

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	endpointsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chorus_output_endpoints",
			Help: "Number of real endpoints linked into output routers",
		},
	)

	drainGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chorus_output_drain_active",
			Help: "Number of output routers currently feeding the drain endpoint",
		},
	)

	attachTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chorus_output_attach_total",
			Help: "Total number of endpoints attached",
		},
	)

	detachTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chorus_output_detach_total",
			Help: "Total number of endpoints detached",
		},
	)

	droppedBuffersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorus_output_dropped_buffers_total",
			Help: "Total number of buffers discarded by endpoint queues",
		},
		[]string{"reason"},
	)

	pushedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chorus_output_pushed_bytes_total",
			Help: "Total number of bytes pushed into output routers",
		},
	)
)
