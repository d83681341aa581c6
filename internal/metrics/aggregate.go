package metrics

import "github.com/tinytelemetry/pulse/internal/model"

// Aggregate is a reusable per-window counter set owned by one ring slot.
type Aggregate interface {
	// Reset returns the aggregate to its empty state without releasing storage.
	Reset()
	IsEmpty() bool
}

// counts is a lazily allocated counter map. The map is created on the first
// write and cleared in place afterwards.
type counts[K comparable] struct {
	m     map[K]int64
	total int64
}

func (c *counts[K]) inc(k K) {
	if c.m == nil {
		c.m = make(map[K]int64)
	}
	c.m[k]++
	c.total++
}

func (c *counts[K]) reset() {
	clear(c.m)
	c.total = 0
}

func (c *counts[K]) each(fn func(K, int64)) {
	for k, n := range c.m {
		fn(k, n)
	}
}

// Throughput counts events per source key for one window. Services and topics
// live in separate namespaces.
type Throughput struct {
	services counts[string]
	topics   counts[string]
}

// NewThroughput returns an empty throughput aggregate.
func NewThroughput() *Throughput { return &Throughput{} }

func (t *Throughput) Increment(kind model.SourceKind, key string) {
	if kind == model.SourceBusMessage {
		t.IncrementTopic(key)
		return
	}
	t.IncrementService(key)
}

func (t *Throughput) IncrementService(key string) { t.services.inc(key) }

func (t *Throughput) IncrementTopic(key string) { t.topics.inc(key) }

func (t *Throughput) Reset() {
	t.services.reset()
	t.topics.reset()
}

func (t *Throughput) IsEmpty() bool {
	return t.services.total == 0 && t.topics.total == 0
}

// Total is the sum over both namespaces.
func (t *Throughput) Total() int64 { return t.services.total + t.topics.total }

// Services returns a copy of the service counters.
func (t *Throughput) Services() map[string]int64 { return copyCounts(&t.services) }

// Topics returns a copy of the topic counters.
func (t *Throughput) Topics() map[string]int64 { return copyCounts(&t.topics) }

// Keys calls fn for every key with a non-zero count.
func (t *Throughput) Keys(fn func(kind model.SourceKind, key string, n int64)) {
	t.services.each(func(k string, n int64) { fn(model.SourceServiceLog, k, n) })
	t.topics.each(func(k string, n int64) { fn(model.SourceBusMessage, k, n) })
}

// SeverityCounts counts events per level for one window.
type SeverityCounts struct {
	levels counts[model.Severity]
}

// NewSeverityCounts returns an empty severity aggregate.
func NewSeverityCounts() *SeverityCounts { return &SeverityCounts{} }

func (s *SeverityCounts) Increment(level model.Severity) { s.levels.inc(level) }

func (s *SeverityCounts) Reset() { s.levels.reset() }

func (s *SeverityCounts) IsEmpty() bool { return s.levels.total == 0 }

func (s *SeverityCounts) Total() int64 { return s.levels.total }

// Counts returns a copy keyed by level name.
func (s *SeverityCounts) Counts() map[string]int64 {
	out := make(map[string]int64, len(s.levels.m))
	s.levels.each(func(l model.Severity, n int64) { out[l.String()] = n })
	return out
}

func copyCounts(c *counts[string]) map[string]int64 {
	out := make(map[string]int64, len(c.m))
	c.each(func(k string, n int64) { out[k] = n })
	return out
}
