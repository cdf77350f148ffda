package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus instruments for the relay. A nil *Metrics is
// valid and drops every observation, so callers never guard.
type Metrics struct {
	cycles           prometheus.Counter
	cycleFailures    prometheus.Counter
	scanErrors       prometheus.Counter
	eventsScanned    prometheus.Counter
	relaysDelivered  prometheus.Counter
	relaysDuplicate  prometheus.Counter
	relaysFailed     prometheus.Counter
	lastScannedBlock prometheus.Gauge
}

var (
	once    sync.Once
	metrics *Metrics
)

// Init initializes and registers global metrics (idempotent).
func Init() *Metrics {
	once.Do(func() {
		metrics = &Metrics{
			cycles: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "bridge_relay_cycles_total",
				Help: "Total number of scan cycles started",
			}),
			cycleFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "bridge_relay_cycle_failures_total",
				Help: "Total number of cycles that ended in recovery",
			}),
			scanErrors: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "bridge_relay_scan_errors_total",
				Help: "Total number of transient scan failures",
			}),
			eventsScanned: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "bridge_relay_events_scanned_total",
				Help: "Total number of bridge events decoded from scanned windows",
			}),
			relaysDelivered: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "bridge_relay_deliveries_total",
				Help: "Total number of events relayed successfully",
			}),
			relaysDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "bridge_relay_duplicates_total",
				Help: "Total number of events skipped as already relayed",
			}),
			relaysFailed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "bridge_relay_failures_total",
				Help: "Total number of delivery attempts that exhausted retries",
			}),
			lastScannedBlock: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "bridge_relay_last_scanned_block",
				Help: "Highest block committed as fully scanned",
			}),
		}
		prometheus.MustRegister(
			metrics.cycles,
			metrics.cycleFailures,
			metrics.scanErrors,
			metrics.eventsScanned,
			metrics.relaysDelivered,
			metrics.relaysDuplicate,
			metrics.relaysFailed,
			metrics.lastScannedBlock,
		)
	})
	return metrics
}

// Cycles increments the cycle counter.
func (m *Metrics) Cycles() {
	if m != nil {
		m.cycles.Inc()
	}
}

// CycleFailures increments the recovered-cycle counter.
func (m *Metrics) CycleFailures() {
	if m != nil {
		m.cycleFailures.Inc()
	}
}

// ScanErrors increments the transient scan failure counter.
func (m *Metrics) ScanErrors() {
	if m != nil {
		m.scanErrors.Inc()
	}
}

// EventsScanned adds the window's decoded event count.
func (m *Metrics) EventsScanned(n int) {
	if m != nil {
		m.eventsScanned.Add(float64(n))
	}
}

// RelaysDelivered increments the successful delivery counter.
func (m *Metrics) RelaysDelivered() {
	if m != nil {
		m.relaysDelivered.Inc()
	}
}

// RelaysDuplicate increments the skipped-duplicate counter.
func (m *Metrics) RelaysDuplicate() {
	if m != nil {
		m.relaysDuplicate.Inc()
	}
}

// RelaysFailed increments the failed delivery counter.
func (m *Metrics) RelaysFailed() {
	if m != nil {
		m.relaysFailed.Inc()
	}
}

// SetLastScannedBlock records the committed cursor position.
func (m *Metrics) SetLastScannedBlock(height uint64) {
	if m != nil {
		m.lastScannedBlock.Set(float64(height))
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
