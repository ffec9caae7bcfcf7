package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes counters/histograms for the scheduling engine.
type Metrics struct {
	bookingsTotal      *prometheus.CounterVec
	cancellationsTotal *prometheus.CounterVec
	searchesTotal      *prometheus.CounterVec
	optimizerRuns      *prometheus.CounterVec
	optimizerDuration  prometheus.Histogram
	optimizerCost      prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "ledger",
			Name:      "bookings_total",
			Help:      "Total bookings created, split by whether warnings were attached",
		}, []string{"warned"}),
		cancellationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "ledger",
			Name:      "cancellations_total",
			Help:      "Total cancellation attempts by outcome",
		}, []string{"result"}),
		searchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "finder",
			Name:      "searches_total",
			Help:      "Total single patient slot searches by outcome",
		}, []string{"result"}),
		optimizerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduling",
			Subsystem: "optimizer",
			Name:      "runs_total",
			Help:      "Total batch optimizations by status",
		}, []string{"status"}),
		optimizerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scheduling",
			Subsystem: "optimizer",
			Name:      "duration_seconds",
			Help:      "Wall time of batch optimizations",
			Buckets:   prometheus.DefBuckets,
		}),
		optimizerCost: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scheduling",
			Subsystem: "optimizer",
			Name:      "best_cost",
			Help:      "Cost of the winning assignment",
			Buckets:   []float64{-100, 0, 100, 500, 1000, 5000, 10000},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.bookingsTotal,
		m.cancellationsTotal,
		m.searchesTotal,
		m.optimizerRuns,
		m.optimizerDuration,
		m.optimizerCost,
	)
	return m
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func (m *Metrics) ObserveBooking(warned bool) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(boolLabel(warned)).Inc()
}

func (m *Metrics) ObserveCancellation(cancelled bool) {
	if m == nil {
		return
	}
	result := "not_found"
	if cancelled {
		result = "cancelled"
	}
	m.cancellationsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSearch(found bool) {
	if m == nil {
		return
	}
	result := "not_found"
	if found {
		result = "found"
	}
	m.searchesTotal.WithLabelValues(result).Inc()
}

// ObserveOptimizer records a run. status is one of optimized, cached or rejected.
func (m *Metrics) ObserveOptimizer(status string, seconds, cost float64) {
	if m == nil {
		return
	}
	m.optimizerRuns.WithLabelValues(status).Inc()
	if status == "optimized" {
		m.optimizerDuration.Observe(seconds)
		m.optimizerCost.Observe(cost)
	}
}
