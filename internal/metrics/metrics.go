// Package metrics exports world tick metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stockyard.ai/internal/sim/world"
)

const (
	namespace = "stockyard"
	subsystem = "economy"
)

// Collector implements world.MetricsSink. Gauges mirror the latest tick;
// counters accumulate assignments across ticks.
type Collector struct {
	registry *prometheus.Registry

	tick        prometheus.Gauge
	stepSeconds prometheus.Histogram
	workers     *prometheus.GaugeVec
	entities    *prometheus.GaugeVec
	queued      *prometheus.GaugeVec
	assignments *prometheus.CounterVec
	stored      *prometheus.GaugeVec
	reserved    *prometheus.GaugeVec
	capacity    *prometheus.GaugeVec
	rejected    prometheus.Counter

	// Last RejectedTotal seen; the world reports a running total.
	rejectedSeen uint64
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		tick: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tick",
			Help:      "Current simulation tick",
		}),
		stepSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "step_duration_seconds",
			Help:      "Time spent in one simulation step",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		workers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "workers",
			Help:      "Registered workers by activity",
		}, []string{"activity"}),
		entities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "entities",
			Help:      "Registered work-bearing entities by type",
		}, []string{"type"}),
		queued: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queued_tasks",
			Help:      "Pending task requests by kind",
		}, []string{"kind"}),
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "assignments_total",
			Help:      "Task assignments by kind",
		}, []string{"kind"}),
		stored: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ledger_stored",
			Help:      "Stored amount by team and resource",
		}, []string{"team", "resource"}),
		reserved: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ledger_reserved",
			Help:      "Reserved amount by team and resource",
		}, []string{"team", "resource"}),
		capacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ledger_capacity",
			Help:      "Storage capacity by team and resource",
		}, []string{"team", "resource"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rejected_assignments_total",
			Help:      "Assignments a worker refused",
		}),
	}
	c.registry.MustRegister(
		c.tick,
		c.stepSeconds,
		c.workers,
		c.entities,
		c.queued,
		c.assignments,
		c.stored,
		c.reserved,
		c.capacity,
		c.rejected,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveTick is called from the world loop after every step.
func (c *Collector) ObserveTick(m world.WorldMetrics) {
	c.tick.Set(float64(m.Tick))
	c.stepSeconds.Observe(m.StepMS / 1000)

	c.workers.WithLabelValues("active").Set(float64(m.ActiveWorkers))
	c.workers.WithLabelValues("idle").Set(float64(m.Workers - m.ActiveWorkers))

	c.entities.WithLabelValues("node").Set(float64(m.Nodes))
	c.entities.WithLabelValues("site").Set(float64(m.Sites))
	c.entities.WithLabelValues("building").Set(float64(m.Buildings))

	for k, n := range m.Queued {
		c.queued.WithLabelValues(string(k)).Set(float64(n))
	}
	for k, n := range m.Assignments {
		c.assignments.WithLabelValues(string(k)).Add(float64(n))
	}
	if m.RejectedTotal > c.rejectedSeen {
		c.rejected.Add(float64(m.RejectedTotal - c.rejectedSeen))
		c.rejectedSeen = m.RejectedTotal
	}

	for _, tl := range m.Ledger {
		team := strconv.Itoa(int(tl.Team))
		for _, e := range tl.Entries {
			res := string(e.Resource)
			c.stored.WithLabelValues(team, res).Set(float64(e.Stored))
			c.reserved.WithLabelValues(team, res).Set(float64(e.Reserved))
			c.capacity.WithLabelValues(team, res).Set(float64(e.Capacity))
		}
	}
}
