package model

// MetricsQuerier provides read-only queries on the windowed counters.
// An unknown interval selector yields an empty result, never an error.
type MetricsQuerier interface {
	Intervals() []IntervalInfo
	ThroughputSeries(interval int) []ThroughputPoint
	SeveritySeries(interval int) []SeverityPoint
	ThroughputRate(interval int) float64
	LiveRate() float64
	ActiveSources() []string
	TopSources(interval int, kind SourceKind, limit int) []DimensionCount
	SeverityTotals(interval int) map[string]int64
	BacklogSummary(opts BacklogOpts) BacklogSummary
	Stats() CollectorStats
}

// EventRecorder accepts ingested events.
type EventRecorder interface {
	RecordEvent(ev Event)
}

// SourceRegistry maintains explicitly registered source keys.
type SourceRegistry interface {
	RegisterSource(name string)
	UnregisterSource(name string)
}

// BacklogWriter replaces consumer lag snapshots.
type BacklogWriter interface {
	// RefreshBacklog replaces every group present in entries.
	RefreshBacklog(entries []BacklogEntry)
	// RefreshGroupBacklog replaces group, clearing it when entries is empty.
	RefreshGroupBacklog(group string, entries []BacklogEntry)
}

// MetricsWriter is the write side used by ingestion callers.
type MetricsWriter interface {
	EventRecorder
	SourceRegistry
	BacklogWriter
}

// MetricsStore is the unified contract for read surfaces (HTTP and socket RPC).
type MetricsStore interface {
	MetricsQuerier
	MetricsWriter
}
