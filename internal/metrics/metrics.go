// Package metrics defines the Prometheus instrumentation for a single
// gomy connection pool. Every gomy.DataSource owns a private
// *prometheus.Registry, so nothing here is ever registered globally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds every Prometheus metric a Pool reports.
type Collector struct {
	Registry *prometheus.Registry

	connectionsActive  prometheus.Gauge
	connectionsIdle    prometheus.Gauge
	connectionsTotal   prometheus.Gauge
	connectionsWaiting prometheus.Gauge

	acquireDuration    prometheus.Histogram
	poolExhausted      prometheus.Counter
	validationFailed   prometheus.Counter
	leaksDetected      prometheus.Counter
	connectionsCreated prometheus.Counter
	connectionsClosed  prometheus.Counter

	circuitBreakerState prometheus.Gauge
	sizerResizes        *prometheus.CounterVec
}

// New creates and registers every metric against a fresh, private
// registry. Each DataSource calls this once for its own Pool.
func New() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		Registry: reg,
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gomy_pool_connections_active",
			Help: "Connections currently checked out (InUse).",
		}),
		connectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gomy_pool_connections_idle",
			Help: "Connections sitting in the idle set.",
		}),
		connectionsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gomy_pool_connections_total",
			Help: "Live connections tracked by the pool, in any state.",
		}),
		connectionsWaiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gomy_pool_connections_waiting",
			Help: "Goroutines currently blocked in Acquire.",
		}),
		acquireDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gomy_pool_acquire_duration_seconds",
			Help:    "Time spent inside Acquire, including any wait-queue delay.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),
		poolExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gomy_pool_exhausted_total",
			Help: "Times Acquire had to enqueue a waiter because the pool was at max.",
		}),
		validationFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gomy_pool_validation_failed_total",
			Help: "Connections removed for failing their keep-alive/housekeeper validation probe.",
		}),
		leaksDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gomy_pool_leaks_detected_total",
			Help: "Acquisitions whose leakDetectionThreshold timer fired before release.",
		}),
		connectionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gomy_pool_connections_created_total",
			Help: "Physical connections dialed and authenticated.",
		}),
		connectionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gomy_pool_connections_closed_total",
			Help: "Physical connections closed, for any reason.",
		}),
		circuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gomy_pool_circuit_breaker_state",
			Help: "Creation circuit breaker state: 0=closed, 1=open, 2=half_open.",
		}),
		sizerResizes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gomy_pool_adaptive_resizes_total",
			Help: "Adaptive sizer decisions, partitioned by direction.",
		}, []string{"direction"}),
	}

	reg.MustRegister(
		c.connectionsActive,
		c.connectionsIdle,
		c.connectionsTotal,
		c.connectionsWaiting,
		c.acquireDuration,
		c.poolExhausted,
		c.validationFailed,
		c.leaksDetected,
		c.connectionsCreated,
		c.connectionsClosed,
		c.circuitBreakerState,
		c.sizerResizes,
	)

	return c
}

// SetPoolGauges updates the four live-state gauges in one call, since
// they are always read together from under the pool mutex.
func (c *Collector) SetPoolGauges(active, idle, total, waiting int) {
	c.connectionsActive.Set(float64(active))
	c.connectionsIdle.Set(float64(idle))
	c.connectionsTotal.Set(float64(total))
	c.connectionsWaiting.Set(float64(waiting))
}

// AcquireDuration observes how long one Acquire call took.
func (c *Collector) AcquireDuration(d time.Duration) {
	c.acquireDuration.Observe(d.Seconds())
}

// PoolExhausted increments the exhaustion counter.
func (c *Collector) PoolExhausted() { c.poolExhausted.Inc() }

// ValidationFailed increments the validation-failure counter.
func (c *Collector) ValidationFailed() { c.validationFailed.Inc() }

// LeakDetected increments the leak counter.
func (c *Collector) LeakDetected() { c.leaksDetected.Inc() }

// ConnectionCreated increments the connections-created counter.
func (c *Collector) ConnectionCreated() { c.connectionsCreated.Inc() }

// ConnectionClosed increments the connections-closed counter.
func (c *Collector) ConnectionClosed() { c.connectionsClosed.Inc() }

// SetCircuitBreakerState reports the breaker's current state as a gauge.
func (c *Collector) SetCircuitBreakerState(state int) {
	c.circuitBreakerState.Set(float64(state))
}

// ResizeDecided records an adaptive sizer grow or shrink decision.
func (c *Collector) ResizeDecided(grow bool) {
	direction := "shrink"
	if grow {
		direction = "grow"
	}
	c.sizerResizes.WithLabelValues(direction).Inc()
}
