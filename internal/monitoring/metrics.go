package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	IngestsTotal        *prometheus.CounterVec
	EntriesSkippedTotal prometheus.Counter
	RowsPersistedTotal  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		IngestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_runs_total",
			Help: "The total number of capture ingestion runs",
		}, []string{"outcome"}), // 'committed', 'format_error', 'persistence_error'
		EntriesSkippedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ingest_entries_skipped_total",
			Help: "The total number of capture entries dropped for bad bodies",
		}),
		RowsPersistedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_rows_persisted_total",
			Help: "The total number of rows written by committed ingests",
		}, []string{"table"}), // 'categories', 'products', 'mappings'
	}
}

func (m *Metrics) IncIngestsTotal(outcome string) {
	m.IngestsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddEntriesSkipped(n int) {
	m.EntriesSkippedTotal.Add(float64(n))
}

func (m *Metrics) AddRowsPersisted(table string, n int) {
	m.RowsPersistedTotal.WithLabelValues(table).Add(float64(n))
}
