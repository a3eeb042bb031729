// Package observability implements the engine's Observer port on top of
// Prometheus. Metrics are registered on a caller-supplied registry so
// tests can use an isolated one.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"braindump/domain/events"
)

// Metrics counts engine activity: domain events by type, snapshot
// lifecycle, background write failures and position flushes
type Metrics struct {
	eventsTotal          *prometheus.CounterVec
	snapshotsSaved       prometheus.Counter
	snapshotsRejected    *prometheus.CounterVec
	historyLength        prometheus.Gauge
	historyCursor        prometheus.Gauge
	persistenceFailures  *prometheus.CounterVec
	enrichmentFailures   prometheus.Counter
	positionsFlushed     prometheus.Counter
	positionFlushBatches prometheus.Counter
}

func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "braindump_domain_events_total",
			Help: "Domain events published by the graph engine, by event type.",
		}, []string{"event_type"}),
		snapshotsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "braindump_history_snapshots_saved_total",
			Help: "History snapshots accepted into the undo stack.",
		}),
		snapshotsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "braindump_history_snapshots_rejected_total",
			Help: "Snapshots discarded by integrity validation, by reason.",
		}, []string{"reason"}),
		historyLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "braindump_history_length",
			Help: "Current number of snapshots in the undo stack.",
		}),
		historyCursor: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "braindump_history_cursor",
			Help: "Current position in the undo stack.",
		}),
		persistenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "braindump_persistence_failures_total",
			Help: "Background persistence writes that failed, by operation.",
		}, []string{"operation"}),
		enrichmentFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "braindump_enrichment_failures_total",
			Help: "Enrichment attempts that failed.",
		}),
		positionsFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "braindump_positions_flushed_total",
			Help: "Node position patches written by the debouncer.",
		}),
		positionFlushBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "braindump_position_flush_batches_total",
			Help: "Debouncer flush passes executed.",
		}),
	}

	registry.MustRegister(
		m.eventsTotal,
		m.snapshotsSaved,
		m.snapshotsRejected,
		m.historyLength,
		m.historyCursor,
		m.persistenceFailures,
		m.enrichmentFailures,
		m.positionsFlushed,
		m.positionFlushBatches,
	)
	return m
}

func (m *Metrics) OnEvent(event events.DomainEvent) {
	m.eventsTotal.WithLabelValues(event.GetEventType()).Inc()
}

func (m *Metrics) OnSnapshotSaved(historyLen, cursor int) {
	m.snapshotsSaved.Inc()
	m.historyLength.Set(float64(historyLen))
	m.historyCursor.Set(float64(cursor))
}

func (m *Metrics) OnSnapshotRejected(reason string) {
	m.snapshotsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) OnPersistenceFailure(operation string, err error) {
	m.persistenceFailures.WithLabelValues(operation).Inc()
}

func (m *Metrics) OnEnrichmentFailure(err error) {
	m.enrichmentFailures.Inc()
}

func (m *Metrics) OnPositionFlush(count int) {
	m.positionFlushBatches.Inc()
	m.positionsFlushed.Add(float64(count))
}
