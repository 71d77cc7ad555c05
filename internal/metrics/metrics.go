// Package metrics holds the Prometheus collectors for the journal and the
// journaling store. All methods are safe on a nil *Metrics, which records
// nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "jdbm"

// Metrics holds all collectors.
type Metrics struct {
	JournalAppends      *prometheus.CounterVec
	JournalAppendErrors prometheus.Counter
	JournalBytes        prometheus.Counter
	JournalClears       prometheus.Counter
	JournalTornTails    prometheus.Counter

	ReplayedRecords *prometheus.CounterVec
	Restores        prometheus.Counter
	BackendErrors   *prometheus.CounterVec
	Keys            prometheus.Gauge
}

// New creates the collectors and registers them on reg.
// Panics if reg already holds collectors with the same names.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		JournalAppends: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "appends_total",
			Help:      "Records durably appended to the journal, by operation.",
		}, []string{"op"}),
		JournalAppendErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "append_errors_total",
			Help:      "Appends that failed and aborted their mutation.",
		}),
		JournalBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "written_bytes_total",
			Help:      "Bytes written to the journal file, framing included.",
		}),
		JournalClears: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "clears_total",
			Help:      "Journal truncations to empty.",
		}),
		JournalTornTails: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "torn_tails_total",
			Help:      "Incomplete trailing records discarded when opening the journal.",
		}),
		ReplayedRecords: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "replayed_records_total",
			Help:      "Journal records applied to the backend during restore, by operation.",
		}, []string{"op"}),
		Restores: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "restores_total",
			Help:      "Completed restores from the journal.",
		}),
		BackendErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "backend_errors_total",
			Help:      "Backend failures surfaced to callers, by operation.",
		}, []string{"op"}),
		Keys: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "keys",
			Help:      "Keys present in the backend after the last mutation.",
		}),
	}
}

func (m *Metrics) ObserveAppend(op string, bytes int) {
	if m == nil {
		return
	}
	m.JournalAppends.WithLabelValues(op).Inc()
	m.JournalBytes.Add(float64(bytes))
}

func (m *Metrics) ObserveAppendError() {
	if m == nil {
		return
	}
	m.JournalAppendErrors.Inc()
}

func (m *Metrics) ObserveClear() {
	if m == nil {
		return
	}
	m.JournalClears.Inc()
}

func (m *Metrics) ObserveTornTail() {
	if m == nil {
		return
	}
	m.JournalTornTails.Inc()
}

func (m *Metrics) ObserveReplay(op string) {
	if m == nil {
		return
	}
	m.ReplayedRecords.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveRestore() {
	if m == nil {
		return
	}
	m.Restores.Inc()
}

func (m *Metrics) ObserveBackendError(op string) {
	if m == nil {
		return
	}
	m.BackendErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) SetKeys(n int) {
	if m == nil {
		return
	}
	m.Keys.Set(float64(n))
}
