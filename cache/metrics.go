package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects per-table cache counters. A nil *Metrics records nothing.
type Metrics struct {
	Hits        *prometheus.CounterVec
	Misses      *prometheus.CounterVec
	Flushes     *prometheus.CounterVec
	WriteErrors *prometheus.CounterVec
	Pending     *prometheus.GaugeVec
}

func NewMetrics(namespace string) *Metrics {
	labels := []string{"table"}
	return &Metrics{
		Hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "hits_total",
			Help: "number of selects answered by the cache",
		}, labels),
		Misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "misses_total",
			Help: "number of selects that fell through to the store",
		}, labels),
		Flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "flushes_total",
			Help: "number of statements sent to the store while committing",
		}, labels),
		WriteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "write_errors_total",
			Help: "number of flushed rows rejected by the store",
		}, labels),
		Pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "cache", Name: "pending_rows",
			Help: "number of uncommitted rows in the active transaction",
		}, labels),
	}
}

// Register registers all collectors with r.
func (m *Metrics) Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Hits, m.Misses, m.Flushes, m.WriteErrors, m.Pending} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) hit(table string) {
	if m != nil {
		m.Hits.WithLabelValues(table).Inc()
	}
}

func (m *Metrics) miss(table string) {
	if m != nil {
		m.Misses.WithLabelValues(table).Inc()
	}
}

func (m *Metrics) flushed(table string) {
	if m != nil {
		m.Flushes.WithLabelValues(table).Inc()
	}
}

func (m *Metrics) writeFailed(table string) {
	if m != nil {
		m.WriteErrors.WithLabelValues(table).Inc()
	}
}

func (m *Metrics) pending(table string, n int) {
	if m != nil {
		m.Pending.WithLabelValues(table).Set(float64(n))
	}
}
