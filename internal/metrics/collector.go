package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tinytelemetry/pulse/internal/model"
)

// IntervalSpec configures one lookback interval. Selector is the lookback in
// minutes and is how queries address the interval.
type IntervalSpec struct {
	Selector  int
	Window    time.Duration
	Retention time.Duration
}

// DefaultIntervals returns one fine interval and four coarser ones.
func DefaultIntervals() []IntervalSpec {
	return []IntervalSpec{
		{Selector: 1, Window: 2 * time.Second, Retention: time.Minute},
		{Selector: 5, Window: 10 * time.Second, Retention: 5 * time.Minute},
		{Selector: 15, Window: 30 * time.Second, Retention: 15 * time.Minute},
		{Selector: 60, Window: 2 * time.Minute, Retention: time.Hour},
		{Selector: 1440, Window: time.Hour, Retention: 24 * time.Hour},
	}
}

// Config holds collector construction options. Zero values select defaults.
type Config struct {
	Intervals  []IntervalSpec
	LiveWindow time.Duration
	Backlog    BacklogThresholds
	Now        func() time.Time
}

type interval struct {
	selector   int
	throughput *RingBucket[*Throughput]
	severity   *RingBucket[*SeverityCounts]
}

var _ model.MetricsStore = (*Collector)(nil)

// Collector is the multi-interval event store. One instance is built at
// startup and shared by every ingestion and query caller.
type Collector struct {
	g          guard
	now        func() time.Time
	liveWindow int64
	thresholds BacklogThresholds

	intervals []*interval // ascending by selector
	bySel     map[int]*interval
	finest    *interval

	sources map[string]struct{}
	backlog map[model.BacklogKey]model.BacklogEntry

	recorded   int64
	serviceEvs int64
	busEvs     int64
}

// NewCollector validates cfg and allocates every ring up front.
func NewCollector(cfg Config) (*Collector, error) {
	specs := cfg.Intervals
	if len(specs) == 0 {
		specs = DefaultIntervals()
	}
	c := &Collector{
		g:          &mutexGuard{},
		now:        cfg.Now,
		liveWindow: int64(cfg.LiveWindow / time.Second),
		thresholds: cfg.Backlog.withDefaults(),
		bySel:      make(map[int]*interval, len(specs)),
		sources:    make(map[string]struct{}),
		backlog:    make(map[model.BacklogKey]model.BacklogEntry),
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.liveWindow <= 0 {
		c.liveWindow = int64(model.DefaultLiveWindow / time.Second)
	}
	for _, is := range specs {
		if _, dup := c.bySel[is.Selector]; dup {
			return nil, fmt.Errorf("metrics: duplicate interval selector %d", is.Selector)
		}
		spec, err := NewBucketSpec(is.Retention, is.Window)
		if err != nil {
			return nil, fmt.Errorf("metrics: interval %d: %w", is.Selector, err)
		}
		iv := &interval{
			selector:   is.Selector,
			throughput: NewRingBucket(spec, NewThroughput),
			severity:   NewRingBucket(spec, NewSeverityCounts),
		}
		c.intervals = append(c.intervals, iv)
		c.bySel[is.Selector] = iv
		if c.finest == nil || spec.window < c.finest.throughput.spec.window {
			c.finest = iv
		}
	}
	sort.Slice(c.intervals, func(a, b int) bool { return c.intervals[a].selector < c.intervals[b].selector })
	return c, nil
}

func (c *Collector) nowUnix() int64 { return c.now().Unix() }

// RecordEvent counts ev in every interval under one critical section.
func (c *Collector) RecordEvent(ev model.Event) {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = c.now()
	}
	sec := ts.Unix()
	src := strings.TrimSpace(ev.Source)
	if src == "" {
		src = model.UnknownSource
	}
	level := ev.Level
	if !level.Valid() {
		level = model.SeverityInfo
	}

	c.g.Lock()
	defer c.g.Unlock()
	for _, iv := range c.intervals {
		iv.throughput.Update(sec, func(t *Throughput) { t.Increment(ev.Kind, src) })
		iv.severity.Update(sec, func(s *SeverityCounts) { s.Increment(level) })
	}
	c.recorded++
	if ev.Kind == model.SourceBusMessage {
		c.busEvs++
	} else {
		c.serviceEvs++
	}
}

func (c *Collector) RegisterSource(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	c.g.Lock()
	c.sources[name] = struct{}{}
	c.g.Unlock()
}

func (c *Collector) UnregisterSource(name string) {
	c.g.Lock()
	delete(c.sources, strings.TrimSpace(name))
	c.g.Unlock()
}

// Intervals lists the configured intervals ascending by selector.
func (c *Collector) Intervals() []model.IntervalInfo {
	out := make([]model.IntervalInfo, 0, len(c.intervals))
	for _, iv := range c.intervals {
		spec := iv.throughput.Spec()
		out = append(out, model.IntervalInfo{
			Selector:  iv.selector,
			Window:    spec.Window(),
			Retention: spec.Retention(),
			Capacity:  spec.Capacity(),
		})
	}
	return out
}

// ThroughputSeries returns the live windows of an interval. Unknown selectors
// yield nil.
func (c *Collector) ThroughputSeries(selector int) []model.ThroughputPoint {
	iv, ok := c.bySel[selector]
	if !ok {
		return nil
	}
	return withGuard(c.g, func() []model.ThroughputPoint {
		return throughputPoints(iv.throughput.Collect(c.nowUnix()))
	})
}

func (c *Collector) SeveritySeries(selector int) []model.SeverityPoint {
	iv, ok := c.bySel[selector]
	if !ok {
		return nil
	}
	return withGuard(c.g, func() []model.SeverityPoint {
		wins := iv.severity.Collect(c.nowUnix())
		out := make([]model.SeverityPoint, 0, len(wins))
		for _, w := range wins {
			out = append(out, model.SeverityPoint{
				Timestamp: time.Unix(w.End, 0),
				Counts:    w.Agg.Counts(),
				Total:     w.Agg.Total(),
			})
		}
		return out
	})
}

func throughputPoints(wins []Window[*Throughput]) []model.ThroughputPoint {
	out := make([]model.ThroughputPoint, 0, len(wins))
	for _, w := range wins {
		out = append(out, model.ThroughputPoint{
			Timestamp: time.Unix(w.End, 0),
			Services:  w.Agg.Services(),
			Topics:    w.Agg.Topics(),
			Total:     w.Agg.Total(),
		})
	}
	return out
}

// ThroughputRate is events per second across the interval's live series.
func (c *Collector) ThroughputRate(selector int) float64 {
	return Rate(c.ThroughputSeries(selector))
}

// LiveRate is the rate over the trailing live window of the finest interval.
func (c *Collector) LiveRate() float64 {
	if c.finest == nil {
		return 0
	}
	return withGuard(c.g, func() float64 {
		now := c.nowUnix()
		wins := c.finest.throughput.Collect(now)
		cutoff := now - c.liveWindow
		trailing := wins[:0]
		for _, w := range wins {
			if w.End > cutoff {
				trailing = append(trailing, w)
			}
		}
		return Rate(throughputPoints(trailing))
	})
}

// ActiveSources returns registered sources plus every key seen in the most
// recent live window of the finest interval, sorted.
func (c *Collector) ActiveSources() []string {
	return withGuard(c.g, func() []string {
		set := make(map[string]struct{}, len(c.sources))
		for s := range c.sources {
			set[s] = struct{}{}
		}
		if c.finest != nil {
			if w, ok := c.finest.throughput.Latest(c.nowUnix()); ok {
				w.Agg.Keys(func(_ model.SourceKind, key string, _ int64) { set[key] = struct{}{} })
			}
		}
		out := make([]string, 0, len(set))
		for s := range set {
			out = append(out, s)
		}
		sort.Strings(out)
		return out
	})
}

// TopSources sums per-key counts of one namespace across an interval, largest
// first. limit <= 0 returns every key.
func (c *Collector) TopSources(selector int, kind model.SourceKind, limit int) []model.DimensionCount {
	totals := make(map[string]int64)
	for _, p := range c.ThroughputSeries(selector) {
		m := p.Services
		if kind == model.SourceBusMessage {
			m = p.Topics
		}
		for k, n := range m {
			totals[k] += n
		}
	}
	return rankCounts(totals, limit)
}

// SeverityTotals sums per-level counts across an interval.
func (c *Collector) SeverityTotals(selector int) map[string]int64 {
	out := make(map[string]int64)
	for _, p := range c.SeveritySeries(selector) {
		for k, n := range p.Counts {
			out[k] += n
		}
	}
	return out
}

func (c *Collector) Stats() model.CollectorStats {
	return withGuard(c.g, func() model.CollectorStats {
		return model.CollectorStats{
			EventsRecorded:    c.recorded,
			ServiceEvents:     c.serviceEvs,
			BusEvents:         c.busEvs,
			RegisteredSources: len(c.sources),
			BacklogEntries:    len(c.backlog),
		}
	})
}

func rankCounts(totals map[string]int64, limit int) []model.DimensionCount {
	out := make([]model.DimensionCount, 0, len(totals))
	for k, n := range totals {
		out = append(out, model.DimensionCount{Value: k, Count: n})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Count != out[b].Count {
			return out[a].Count > out[b].Count
		}
		return out[a].Value < out[b].Value
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
