package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "marketsim"

// Metrics is the instrument set of one run. Each run owns its registry so
// parallel sweeps do not collide. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	eventsDispatched prometheus.Counter
	eventsSkipped    prometheus.Counter
	agentFaults      prometheus.Counter
	simTime          prometheus.Gauge
	queueDepth       prometheus.Gauge

	orders     *prometheus.CounterVec
	executions *prometheus.CounterVec
	volume     *prometheus.CounterVec
	feeRevenue *prometheus.GaugeVec
}

// New builds and registers the run instruments. Labels are attached to every
// series as constant labels (for example scenario and seed).
func New(labels map[string]string) *Metrics {
	reg := prometheus.NewRegistry()
	opts := func(subsystem, name, help string) prometheus.Opts {
		return prometheus.Opts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: prometheus.Labels(labels),
		}
	}

	m := &Metrics{
		Registry:         reg,
		eventsDispatched: prometheus.NewCounter(prometheus.CounterOpts(opts("kernel", "events_dispatched_total", "Events delivered to agents"))),
		eventsSkipped:    prometheus.NewCounter(prometheus.CounterOpts(opts("kernel", "events_skipped_total", "Events dropped because the target agent is inert"))),
		agentFaults:      prometheus.NewCounter(prometheus.CounterOpts(opts("kernel", "agent_faults_total", "Agent callbacks that failed"))),
		simTime:          prometheus.NewGauge(prometheus.GaugeOpts(opts("kernel", "sim_time_nanoseconds", "Current simulated time"))),
		queueDepth:       prometheus.NewGauge(prometheus.GaugeOpts(opts("kernel", "queue_depth", "Pending events"))),
		orders:           prometheus.NewCounterVec(prometheus.CounterOpts(opts("exchange", "orders_total", "Order requests by outcome")), []string{"venue", "outcome"}),
		executions:       prometheus.NewCounterVec(prometheus.CounterOpts(opts("exchange", "executions_total", "Fills")), []string{"venue", "symbol"}),
		volume:           prometheus.NewCounterVec(prometheus.CounterOpts(opts("exchange", "executed_quantity_total", "Filled quantity")), []string{"venue", "symbol"}),
		feeRevenue:       prometheus.NewGaugeVec(prometheus.GaugeOpts(opts("exchange", "fee_revenue_ticks", "Net fees collected")), []string{"venue"}),
	}
	reg.MustRegister(
		m.eventsDispatched, m.eventsSkipped, m.agentFaults, m.simTime, m.queueDepth,
		m.orders, m.executions, m.volume, m.feeRevenue,
		collectors.NewGoCollector(),
	)
	return m
}

// EventDispatched records a delivery and the clock and queue state after it.
func (m *Metrics) EventDispatched(simTime int64, pending int) {
	if m == nil {
		return
	}
	m.eventsDispatched.Inc()
	m.simTime.Set(float64(simTime))
	m.queueDepth.Set(float64(pending))
}

func (m *Metrics) EventSkipped() {
	if m == nil {
		return
	}
	m.eventsSkipped.Inc()
}

func (m *Metrics) AgentFault() {
	if m == nil {
		return
	}
	m.agentFaults.Inc()
}

// Order counts an order request outcome at a venue.
func (m *Metrics) Order(venue, outcome string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(venue, outcome).Inc()
}

// Execution counts a fill.
func (m *Metrics) Execution(venue, symbol string, quantity uint64) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(venue, symbol).Inc()
	m.volume.WithLabelValues(venue, symbol).Add(float64(quantity))
}

// FeeRevenue sets a venue's running fee revenue.
func (m *Metrics) FeeRevenue(venue string, ticks int64) {
	if m == nil {
		return
	}
	m.feeRevenue.WithLabelValues(venue).Set(float64(ticks))
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, m *Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	select {
	case err := <-errc:
		return errors.Wrap(err, "metrics server")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
