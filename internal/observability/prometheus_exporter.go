package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/nupi-ai/chorus/internal/eventbus"
)

var (
	publishDesc = prometheus.NewDesc(
		"chorus_eventbus_publish_total",
		"Total number of events published on the bus.",
		nil, nil,
	)
	droppedDesc = prometheus.NewDesc(
		"chorus_eventbus_dropped_total",
		"Total number of events dropped by the bus.",
		nil, nil,
	)
	subscribersDesc = prometheus.NewDesc(
		"chorus_eventbus_subscribers",
		"Current number of bus subscriptions.",
		nil, nil,
	)
)

// busCollector exports the bus-wide counters.
type busCollector struct {
	bus *eventbus.Bus
}

func (c busCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- publishDesc
	ch <- droppedDesc
	ch <- subscribersDesc
}

func (c busCollector) Collect(ch chan<- prometheus.Metric) {
	m := c.bus.Metrics()
	ch <- prometheus.MustNewConstMetric(publishDesc, prometheus.CounterValue, float64(m.PublishTotal))
	ch <- prometheus.MustNewConstMetric(droppedDesc, prometheus.CounterValue, float64(m.DroppedTotal))
	ch <- prometheus.MustNewConstMetric(subscribersDesc, prometheus.GaugeValue, float64(m.Subscribers))
}

// PrometheusExporter gathers the bus collectors together with everything
// registered on the default registerer, such as the output router metrics.
type PrometheusExporter struct {
	registry *prometheus.Registry
	gatherer prometheus.Gatherer
}

// NewPrometheusExporter constructs an exporter backed by the provided bus and event counter.
func NewPrometheusExporter(bus *eventbus.Bus, counter *EventCounter) *PrometheusExporter {
	reg := prometheus.NewRegistry()
	if bus != nil {
		reg.MustRegister(busCollector{bus: bus})
	}
	if counter != nil {
		reg.MustRegister(counter)
	}
	return &PrometheusExporter{
		registry: reg,
		gatherer: prometheus.Gatherers{reg, prometheus.DefaultGatherer},
	}
}

// WithProcessMetrics adds build info collected from the running binary.
func (e *PrometheusExporter) WithProcessMetrics() {
	e.registry.MustRegister(collectors.NewBuildInfoCollector())
}

// Gatherer returns the combined gatherer served by Handler.
func (e *PrometheusExporter) Gatherer() prometheus.Gatherer { return e.gatherer }

// Handler serves the metrics in the Prometheus exposition format.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.gatherer, promhttp.HandlerOpts{})
}

// MetricsServer serves /metrics for the daemon's ServiceHost.
type MetricsServer struct {
	addr     string
	exporter *PrometheusExporter
	logger   zerolog.Logger

	srv      *http.Server
	listener net.Listener
	errCh    chan error
}

// NewMetricsServer binds nothing until Start.
func NewMetricsServer(addr string, exporter *PrometheusExporter, logger zerolog.Logger) *MetricsServer {
	return &MetricsServer{addr: addr, exporter: exporter, logger: logger, errCh: make(chan error, 1)}
}

// Start listens on the configured address and serves in the background.
func (s *MetricsServer) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.exporter.Handler())
	s.listener = ln
	s.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("metrics server stopped")
			s.errCh <- err
		}
	}()
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("metrics server listening")
	return nil
}

// Addr returns the bound address, useful when listening on port 0.
func (s *MetricsServer) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Errors reports a serve failure after Start succeeded.
func (s *MetricsServer) Errors() <-chan error { return s.errCh }

// Shutdown stops accepting scrapes and waits for in-flight ones.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
