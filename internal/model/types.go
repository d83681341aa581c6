package model

import (
	"strings"
	"time"
)

// SourceKind distinguishes the two counter namespaces.
type SourceKind int

const (
	SourceServiceLog SourceKind = iota
	SourceBusMessage
)

func (k SourceKind) String() string {
	switch k {
	case SourceBusMessage:
		return "topic"
	default:
		return "service"
	}
}

// ParseSourceKind accepts "service"/"topic" (and the long forms). Anything else
// is reported as not ok.
func ParseSourceKind(s string) (SourceKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "service", "service-log", "services", "log":
		return SourceServiceLog, true
	case "topic", "bus-message", "topics", "bus":
		return SourceBusMessage, true
	}
	return SourceServiceLog, false
}

// Severity is an ordered log level.
type Severity int

const (
	SeverityTrace Severity = iota
	SeverityDebug
	SeverityInfo
	SeverityWarn
	SeverityError
	SeverityFatal
)

// Severities lists every level in ascending order.
var Severities = []Severity{
	SeverityTrace, SeverityDebug, SeverityInfo, SeverityWarn, SeverityError, SeverityFatal,
}

var severityNames = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (s Severity) String() string {
	if !s.Valid() {
		return "INFO"
	}
	return severityNames[s]
}

// Valid reports whether s is one of the six known levels.
func (s Severity) Valid() bool {
	return s >= SeverityTrace && s <= SeverityFatal
}

// Event is one ingested occurrence. A zero Timestamp means "now".
type Event struct {
	Timestamp time.Time
	Kind      SourceKind
	Source    string
	Level     Severity
}

// ThroughputPoint is the per-key count snapshot of one closed or live window.
// Timestamp is the window end.
type ThroughputPoint struct {
	Timestamp time.Time        `json:"timestamp"`
	Services  map[string]int64 `json:"services"`
	Topics    map[string]int64 `json:"topics"`
	Total     int64            `json:"total"`
}

// SeverityPoint is the per-level count snapshot of one window.
type SeverityPoint struct {
	Timestamp time.Time        `json:"timestamp"`
	Counts    map[string]int64 `json:"counts"`
	Total     int64            `json:"total"`
}

// DimensionCount represents grouped counts by a single dimension value
// (for example service or topic).
type DimensionCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// IntervalInfo describes one configured interval.
type IntervalInfo struct {
	Selector  int           `json:"selector"`
	Window    time.Duration `json:"window"`
	Retention time.Duration `json:"retention"`
	Capacity  int           `json:"capacity"`
}

// BacklogEntry is the latest known lag of one consumer group partition.
type BacklogEntry struct {
	Group     string `json:"group"`
	Topic     string `json:"topic"`
	Partition int    `json:"partition"`
	Lag       int64  `json:"lag"`
}

// BacklogKey identifies a backlog entry.
type BacklogKey struct {
	Group     string
	Topic     string
	Partition int
}

// Key returns the identity of e.
func (e BacklogEntry) Key() BacklogKey {
	return BacklogKey{Group: e.Group, Topic: e.Topic, Partition: e.Partition}
}

// BacklogSummary groups backlog entries by severity tier. Each tier is ordered
// by lag descending.
type BacklogSummary struct {
	High    []BacklogEntry `json:"high"`
	Medium  []BacklogEntry `json:"medium"`
	Low     []BacklogEntry `json:"low"`
	Total   int64          `json:"total"`
	Entries int            `json:"entries"`
}

// BacklogOpts holds optional filters for BacklogSummary.
type BacklogOpts struct {
	OmitZero bool `json:"omit_zero"`
}

// CollectorStats are lifetime counters of the collector.
type CollectorStats struct {
	EventsRecorded    int64 `json:"events_recorded"`
	ServiceEvents     int64 `json:"service_events"`
	BusEvents         int64 `json:"bus_events"`
	RegisteredSources int   `json:"registered_sources"`
	BacklogEntries    int   `json:"backlog_entries"`
}
