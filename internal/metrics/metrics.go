// Package metrics exposes Prometheus collectors for cache and snapshot
// activity. Recording is optional: every Record* helper is a no-op until
// Init has been called, so library users who do not scrape metrics pay
// nothing for them.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type cacheMetrics struct {
	registry *prometheus.Registry

	// Cache traffic
	hitsTotal      prometheus.Counter
	missesTotal    *prometheus.CounterVec
	setsTotal      prometheus.Counter
	deletesTotal   prometheus.Counter
	evictionsTotal prometheus.Counter

	// Snapshot persistence
	snapshotSavesTotal     *prometheus.CounterVec
	snapshotEntriesTotal   *prometheus.CounterVec
	snapshotLastSaveUnix   prometheus.Gauge
	snapshotEntriesWritten prometheus.Gauge
}

var promMetrics *cacheMetrics

// Init initializes the Prometheus metrics subsystem under the given
// namespace. Calling it more than once replaces the collectors.
func Init(namespace string) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &cacheMetrics{
		registry: registry,

		hitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hits_total",
				Help:      "Total cache reads that returned a live entry",
			},
		),

		missesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "misses_total",
				Help:      "Total cache reads that returned no entry",
			},
			[]string{"reason"},
		),

		setsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sets_total",
				Help:      "Total entries stored or replaced",
			},
		),

		deletesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deletes_total",
				Help:      "Total entries removed by delete or clear operations",
			},
		),

		evictionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lazy_evictions_total",
				Help:      "Total expired entries removed when observed by a read",
			},
		),

		snapshotSavesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_saves_total",
				Help:      "Total snapshot save attempts",
			},
			[]string{"status"},
		),

		snapshotEntriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_restore_entries_total",
				Help:      "Entries seen during restore, by outcome",
			},
			[]string{"outcome"},
		),

		snapshotLastSaveUnix: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "snapshot_last_save_timestamp_seconds",
				Help:      "Unix time of the last successful snapshot save",
			},
		),

		snapshotEntriesWritten: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "snapshot_entries_written",
				Help:      "Entry count of the last successful snapshot save",
			},
		),
	}

	registry.MustRegister(
		m.hitsTotal,
		m.missesTotal,
		m.setsTotal,
		m.deletesTotal,
		m.evictionsTotal,
		m.snapshotSavesTotal,
		m.snapshotEntriesTotal,
		m.snapshotLastSaveUnix,
		m.snapshotEntriesWritten,
	)

	promMetrics = m
}

// RecordHit records a cache read that found a live entry.
func RecordHit() {
	if promMetrics == nil {
		return
	}
	promMetrics.hitsTotal.Inc()
}

// RecordMiss records a cache read that found nothing.
// reason: "missing", "expired" or "malformed"
func RecordMiss(reason string) {
	if promMetrics == nil {
		return
	}
	promMetrics.missesTotal.WithLabelValues(reason).Inc()
}

// RecordSet records an entry store or replace.
func RecordSet() {
	if promMetrics == nil {
		return
	}
	promMetrics.setsTotal.Inc()
}

// RecordDeletes records n entries removed by delete/clear operations.
func RecordDeletes(n int) {
	if promMetrics == nil || n <= 0 {
		return
	}
	promMetrics.deletesTotal.Add(float64(n))
}

// RecordEvictions records n expired entries removed by a read path.
func RecordEvictions(n int) {
	if promMetrics == nil || n <= 0 {
		return
	}
	promMetrics.evictionsTotal.Add(float64(n))
}

// RecordSnapshotSave records a save attempt and, on success, the save
// time and entry count.
func RecordSnapshotSave(entries int, savedAt time.Time, success bool) {
	if promMetrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	promMetrics.snapshotSavesTotal.WithLabelValues(status).Inc()
	if success {
		promMetrics.snapshotLastSaveUnix.Set(float64(savedAt.Unix()))
		promMetrics.snapshotEntriesWritten.Set(float64(entries))
	}
}

// RecordSnapshotRestore records restore outcomes.
func RecordSnapshotRestore(restored, expired int) {
	if promMetrics == nil {
		return
	}
	promMetrics.snapshotEntriesTotal.WithLabelValues("restored").Add(float64(restored))
	promMetrics.snapshotEntriesTotal.WithLabelValues("expired").Add(float64(expired))
}

// Handler returns an HTTP handler serving the metrics registry, or nil
// if Init has not been called.
func Handler() http.Handler {
	if promMetrics == nil {
		return nil
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}
