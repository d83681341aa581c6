package metrics

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/pulse/internal/model"
)

type fakeClock struct {
	sec atomic.Int64
}

func (c *fakeClock) Now() time.Time { return time.Unix(c.sec.Load(), 0) }
func (c *fakeClock) Set(sec int64) { c.sec.Store(sec) }

func newTestCollector(t *testing.T, clock *fakeClock, intervals ...IntervalSpec) *Collector {
	t.Helper()
	c, err := NewCollector(Config{Intervals: intervals, Now: clock.Now})
	require.NoError(t, err)
	return c
}

func at(sec int64) time.Time { return time.Unix(sec, 0) }

func serviceEvent(sec int64, src string) model.Event {
	return model.Event{Timestamp: at(sec), Kind: model.SourceServiceLog, Source: src, Level: model.SeverityInfo}
}

var fiveSlotInterval = IntervalSpec{Selector: 1, Window: 10 * time.Second, Retention: 50 * time.Second}

func TestCollectorCollectsRetainedWindows(t *testing.T) {
	clock := &fakeClock{}
	c := newTestCollector(t, clock, fiveSlotInterval)

	for _, ts := range []int64{1, 12, 47} {
		c.RecordEvent(serviceEvent(ts, "A"))
	}
	clock.Set(50)

	series := c.ThroughputSeries(1)
	require.Len(t, series, 3)
	for i, end := range []int64{10, 20, 50} {
		require.Equal(t, at(end), series[i].Timestamp)
		require.Equal(t, map[string]int64{"A": 1}, series[i].Services)
		require.Empty(t, series[i].Topics)
		require.Equal(t, int64(1), series[i].Total)
	}
	require.Equal(t, []string{"A"}, c.ActiveSources())
}

func TestCollectorSlotReuseEvictsOldWindow(t *testing.T) {
	clock := &fakeClock{}
	c := newTestCollector(t, clock, fiveSlotInterval)

	c.RecordEvent(serviceEvent(1, "A"))
	c.RecordEvent(serviceEvent(61, "B"))
	clock.Set(70)

	series := c.ThroughputSeries(1)
	require.Len(t, series, 1)
	require.Equal(t, at(70), series[0].Timestamp)
	require.Equal(t, map[string]int64{"B": 1}, series[0].Services)
}

func TestCollectorUnknownIntervalIsEmpty(t *testing.T) {
	clock := &fakeClock{}
	c := newTestCollector(t, clock)
	c.RecordEvent(model.Event{Source: "api"})

	require.Empty(t, c.ThroughputSeries(7))
	require.Empty(t, c.SeveritySeries(7))
	require.Zero(t, c.ThroughputRate(7))
	require.Empty(t, c.TopSources(7, model.SourceServiceLog, 10))
	require.Empty(t, c.SeverityTotals(7))
}

func TestCollectorRecordsIntoEveryInterval(t *testing.T) {
	clock := &fakeClock{}
	clock.Set(1_000_000)
	c := newTestCollector(t, clock)

	c.RecordEvent(model.Event{Kind: model.SourceServiceLog, Source: "api", Level: model.SeverityError})
	c.RecordEvent(model.Event{Kind: model.SourceBusMessage, Source: "orders", Level: model.SeverityInfo})

	for _, info := range c.Intervals() {
		series := c.ThroughputSeries(info.Selector)
		require.Len(t, series, 1, "interval %d", info.Selector)
		require.Equal(t, map[string]int64{"api": 1}, series[0].Services)
		require.Equal(t, map[string]int64{"orders": 1}, series[0].Topics)
		require.Equal(t, map[string]int64{"ERROR": 1, "INFO": 1}, c.SeverityTotals(info.Selector))
	}
}

func TestCollectorDefaultsSourceAndLevel(t *testing.T) {
	clock := &fakeClock{}
	clock.Set(500)
	c := newTestCollector(t, clock, fiveSlotInterval)

	c.RecordEvent(model.Event{Timestamp: at(495), Source: "  ", Level: model.Severity(42)})

	series := c.ThroughputSeries(1)
	require.Len(t, series, 1)
	require.Equal(t, map[string]int64{model.UnknownSource: 1}, series[0].Services)
	require.Equal(t, map[string]int64{"INFO": 1}, c.SeverityTotals(1))
}

func TestCollectorIntervals(t *testing.T) {
	c := newTestCollector(t, &fakeClock{})
	got := c.Intervals()
	require.Len(t, got, 5)

	sels := make([]int, 0, len(got))
	for _, info := range got {
		sels = append(sels, info.Selector)
	}
	require.Equal(t, []int{1, 5, 15, 60, 1440}, sels)
	require.Equal(t, 30, got[0].Capacity)
	require.Equal(t, 24, got[4].Capacity)
}

func TestNewCollectorRejectsBadConfig(t *testing.T) {
	_, err := NewCollector(Config{Intervals: []IntervalSpec{
		{Selector: 1, Window: time.Second, Retention: time.Minute},
		{Selector: 1, Window: 2 * time.Second, Retention: time.Minute},
	}})
	require.ErrorContains(t, err, "duplicate")

	_, err = NewCollector(Config{Intervals: []IntervalSpec{{Selector: 5, Window: 0, Retention: time.Minute}}})
	require.ErrorIs(t, err, ErrInvalidBucketSpec)
}

func TestCollectorRate(t *testing.T) {
	clock := &fakeClock{}
	c := newTestCollector(t, clock, fiveSlotInterval)

	// Two windows ending at 10 and 40 with 6 events total.
	for range 2 {
		c.RecordEvent(serviceEvent(5, "A"))
	}
	for range 4 {
		c.RecordEvent(serviceEvent(35, "A"))
	}
	clock.Set(40)
	require.InDelta(t, 6.0/30.0, c.ThroughputRate(1), 1e-9)

	// A single window divides by one second.
	single := newTestCollector(t, clock, fiveSlotInterval)
	for range 3 {
		single.RecordEvent(serviceEvent(35, "A"))
	}
	require.InDelta(t, 3.0, single.ThroughputRate(1), 1e-9)
}

func TestRate(t *testing.T) {
	require.Zero(t, Rate(nil))
	pts := []model.ThroughputPoint{
		{Timestamp: at(100), Total: 4},
		{Timestamp: at(110), Total: 6},
	}
	require.InDelta(t, 1.0, Rate(pts), 1e-9)
}

func TestCollectorLiveRateUsesTrailingWindow(t *testing.T) {
	clock := &fakeClock{}
	c, err := NewCollector(Config{
		Intervals: []IntervalSpec{
			{Selector: 5, Window: 10 * time.Second, Retention: 5 * time.Minute},
			{Selector: 1, Window: 2 * time.Second, Retention: 5 * time.Minute},
		},
		LiveWindow: 20 * time.Second,
		Now:        clock.Now,
	})
	require.NoError(t, err)

	c.RecordEvent(serviceEvent(100, "old"))
	c.RecordEvent(serviceEvent(190, "new"))
	c.RecordEvent(serviceEvent(198, "new"))
	clock.Set(200)

	// Only windows ending at 192 and 200 are inside the trailing 20s.
	require.InDelta(t, 2.0/8.0, c.LiveRate(), 1e-9)
}

func TestCollectorActiveSources(t *testing.T) {
	clock := &fakeClock{}
	c := newTestCollector(t, clock, fiveSlotInterval)

	c.RegisterSource("registered")
	c.RegisterSource("")
	c.RecordEvent(serviceEvent(5, "stale"))
	c.RecordEvent(model.Event{Timestamp: at(33), Kind: model.SourceBusMessage, Source: "orders"})
	c.RecordEvent(serviceEvent(37, "api"))
	clock.Set(40)

	require.Equal(t, []string{"api", "orders", "registered"}, c.ActiveSources())

	c.UnregisterSource("registered")
	require.Equal(t, []string{"api", "orders"}, c.ActiveSources())

	clock.Set(1000)
	require.Empty(t, c.ActiveSources())
}

func TestCollectorTopSources(t *testing.T) {
	clock := &fakeClock{}
	c := newTestCollector(t, clock, fiveSlotInterval)
	for _, e := range []model.Event{
		serviceEvent(1, "b"), serviceEvent(2, "a"), serviceEvent(15, "a"), serviceEvent(16, "c"),
		{Timestamp: at(17), Kind: model.SourceBusMessage, Source: "orders"},
	} {
		c.RecordEvent(e)
	}
	clock.Set(20)

	require.Equal(t, []model.DimensionCount{{Value: "a", Count: 2}, {Value: "b", Count: 1}},
		c.TopSources(1, model.SourceServiceLog, 2))
	require.Equal(t, []model.DimensionCount{{Value: "orders", Count: 1}},
		c.TopSources(1, model.SourceBusMessage, 0))
}

func TestCollectorSeveritySeries(t *testing.T) {
	clock := &fakeClock{}
	c := newTestCollector(t, clock, fiveSlotInterval)
	c.RecordEvent(model.Event{Timestamp: at(3), Source: "a", Level: model.SeverityWarn})
	c.RecordEvent(model.Event{Timestamp: at(13), Source: "a", Level: model.SeverityFatal})
	c.RecordEvent(model.Event{Timestamp: at(14), Source: "a", Level: model.SeverityFatal})
	clock.Set(20)

	got := c.SeveritySeries(1)
	require.Len(t, got, 2)
	require.Equal(t, at(10), got[0].Timestamp)
	require.Equal(t, map[string]int64{"WARN": 1}, got[0].Counts)
	require.Equal(t, map[string]int64{"FATAL": 2}, got[1].Counts)
	require.Equal(t, int64(2), got[1].Total)
}

func TestCollectorStats(t *testing.T) {
	clock := &fakeClock{}
	c := newTestCollector(t, clock)
	c.RecordEvent(model.Event{Source: "a"})
	c.RecordEvent(model.Event{Source: "t", Kind: model.SourceBusMessage})
	c.RegisterSource("x")
	c.RefreshBacklog([]model.BacklogEntry{{Group: "g", Topic: "t", Lag: 3}})

	require.Equal(t, model.CollectorStats{
		EventsRecorded:    2,
		ServiceEvents:     1,
		BusEvents:         1,
		RegisteredSources: 1,
		BacklogEntries:    1,
	}, c.Stats())
}

func TestCollectorConcurrentRecordAndQuery(t *testing.T) {
	clock := &fakeClock{}
	clock.Set(10_000)
	c := newTestCollector(t, clock)

	const producers, perProducer = 8, 500
	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for range perProducer {
				c.RecordEvent(model.Event{Kind: model.SourceKind(p % 2), Source: "src"})
			}
		}(p)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 200 {
			_ = c.ThroughputSeries(1)
			_ = c.ActiveSources()
			_ = c.LiveRate()
		}
	}()
	wg.Wait()

	var total int64
	for _, p := range c.ThroughputSeries(60) {
		total += p.Total
	}
	require.Equal(t, int64(producers*perProducer), total)
}
