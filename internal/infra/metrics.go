package infra

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds pipeline counters updated with atomics from every task.
// It implements prometheus.Collector so the same values back /metrics.
type Metrics struct {
	// Counters
	framesReceived  atomic.Uint64
	messagesRouted  atomic.Uint64
	parseFailures   atomic.Uint64
	ticksStored     atomic.Uint64
	balancePolls    atomic.Uint64
	balanceFailures atomic.Uint64
	signalsEmitted  atomic.Uint64
	cyclesSkipped   atomic.Uint64
	reconnects      atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordFrame records one inbound stream frame.
func (m *Metrics) RecordFrame() {
	m.framesReceived.Add(1)
}

// RecordRouted records one routed message with its processing latency.
func (m *Metrics) RecordRouted(latencyNs int64) {
	m.messagesRouted.Add(1)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordParseFailure records a dropped message.
func (m *Metrics) RecordParseFailure() {
	m.parseFailures.Add(1)
}

// RecordTickStored records a tick appended to a buffer.
func (m *Metrics) RecordTickStored() {
	m.ticksStored.Add(1)
}

// RecordBalancePoll records a balance cycle and whether it failed.
func (m *Metrics) RecordBalancePoll(failed bool) {
	m.balancePolls.Add(1)
	if failed {
		m.balanceFailures.Add(1)
	}
}

// RecordSignal records an emitted divergence signal.
func (m *Metrics) RecordSignal() {
	m.signalsEmitted.Add(1)
}

// RecordSkippedCycle records an evaluator cycle skipped for missing data.
func (m *Metrics) RecordSkippedCycle() {
	m.cyclesSkipped.Add(1)
}

// RecordReconnect records a stream reconnect attempt.
func (m *Metrics) RecordReconnect() {
	m.reconnects.Add(1)
}

// IncrementConnections increments active connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	FramesReceived    uint64
	MessagesRouted    uint64
	ParseFailures     uint64
	TicksStored       uint64
	BalancePolls      uint64
	BalanceFailures   uint64
	SignalsEmitted    uint64
	CyclesSkipped     uint64
	Reconnects        uint64
	AvgLatencyNs      int64
	ActiveConnections int32
	Timestamp         time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		FramesReceived:    m.framesReceived.Load(),
		MessagesRouted:    m.messagesRouted.Load(),
		ParseFailures:     m.parseFailures.Load(),
		TicksStored:       m.ticksStored.Load(),
		BalancePolls:      m.balancePolls.Load(),
		BalanceFailures:   m.balanceFailures.Load(),
		SignalsEmitted:    m.signalsEmitted.Load(),
		CyclesSkipped:     m.cyclesSkipped.Load(),
		Reconnects:        m.reconnects.Load(),
		AvgLatencyNs:      avgLatency,
		ActiveConnections: m.activeConnections.Load(),
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.framesReceived.Store(0)
	m.messagesRouted.Store(0)
	m.parseFailures.Store(0)
	m.ticksStored.Store(0)
	m.balancePolls.Store(0)
	m.balanceFailures.Store(0)
	m.signalsEmitted.Store(0)
	m.cyclesSkipped.Store(0)
	m.reconnects.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeConnections.Store(0)
}

var (
	descFrames      = prometheus.NewDesc("arb_frames_received_total", "Stream frames received from venues.", nil, nil)
	descRouted      = prometheus.NewDesc("arb_messages_routed_total", "Messages consumed by the router.", nil, nil)
	descParseFail   = prometheus.NewDesc("arb_parse_failures_total", "Messages dropped because they did not parse.", nil, nil)
	descTicks       = prometheus.NewDesc("arb_ticks_stored_total", "Ticks appended to venue buffers.", nil, nil)
	descPolls       = prometheus.NewDesc("arb_balance_polls_total", "Balance poll cycles.", nil, nil)
	descPollFail    = prometheus.NewDesc("arb_balance_failures_total", "Balance poll cycles aborted.", nil, nil)
	descSignals     = prometheus.NewDesc("arb_signals_total", "Divergence signals emitted.", nil, nil)
	descSkipped     = prometheus.NewDesc("arb_cycles_skipped_total", "Evaluator cycles skipped for missing data.", nil, nil)
	descReconnects  = prometheus.NewDesc("arb_reconnects_total", "Stream reconnect attempts.", nil, nil)
	descLatency     = prometheus.NewDesc("arb_route_latency_avg_seconds", "Average router processing latency.", nil, nil)
	descConnections = prometheus.NewDesc("arb_active_connections", "Open stream connections.", nil, nil)
)

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		descFrames, descRouted, descParseFail, descTicks, descPolls, descPollFail,
		descSignals, descSkipped, descReconnects, descLatency, descConnections,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	s := m.Snapshot()
	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	counter(descFrames, s.FramesReceived)
	counter(descRouted, s.MessagesRouted)
	counter(descParseFail, s.ParseFailures)
	counter(descTicks, s.TicksStored)
	counter(descPolls, s.BalancePolls)
	counter(descPollFail, s.BalanceFailures)
	counter(descSignals, s.SignalsEmitted)
	counter(descSkipped, s.CyclesSkipped)
	counter(descReconnects, s.Reconnects)
	ch <- prometheus.MustNewConstMetric(descLatency, prometheus.GaugeValue, time.Duration(s.AvgLatencyNs).Seconds())
	ch <- prometheus.MustNewConstMetric(descConnections, prometheus.GaugeValue, float64(s.ActiveConnections))
}

// NewRegistry returns a registry exposing m plus the Go runtime collectors.
func NewRegistry(m *Metrics) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(m, collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// ServeMetrics serves /metrics on addr until ctx is done.
func ServeMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Metrics server started", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
