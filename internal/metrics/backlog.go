package metrics

import (
	"sort"

	"github.com/tinytelemetry/pulse/internal/model"
)

const (
	DefaultBacklogHigh   int64 = 10000
	DefaultBacklogMedium int64 = 1000
)

// BacklogThresholds are the inclusive lower bounds of the high and medium
// tiers. Everything below Medium is low.
type BacklogThresholds struct {
	High   int64
	Medium int64
}

func (t BacklogThresholds) withDefaults() BacklogThresholds {
	if t.High <= 0 {
		t.High = DefaultBacklogHigh
	}
	if t.Medium <= 0 || t.Medium > t.High {
		t.Medium = min(DefaultBacklogMedium, t.High)
	}
	return t
}

// RefreshBacklog replaces the lag of every consumer group present in
// entries. Groups absent from entries keep their previous values.
func (c *Collector) RefreshBacklog(entries []model.BacklogEntry) {
	groups := make(map[string]struct{})
	for _, e := range entries {
		groups[e.Group] = struct{}{}
	}
	c.g.Lock()
	defer c.g.Unlock()
	c.replaceBacklog(groups, entries)
}

// RefreshGroupBacklog replaces the whole snapshot of group with entries. An
// empty list clears the group. Entries are re-keyed to group.
func (c *Collector) RefreshGroupBacklog(group string, entries []model.BacklogEntry) {
	scoped := make([]model.BacklogEntry, len(entries))
	for i, e := range entries {
		e.Group = group
		scoped[i] = e
	}
	c.g.Lock()
	defer c.g.Unlock()
	c.replaceBacklog(map[string]struct{}{group: {}}, scoped)
}

// replaceBacklog drops every entry of groups and stores entries. Callers hold
// the guard.
func (c *Collector) replaceBacklog(groups map[string]struct{}, entries []model.BacklogEntry) {
	for k := range c.backlog {
		if _, ok := groups[k.Group]; ok {
			delete(c.backlog, k)
		}
	}
	for _, e := range entries {
		if e.Lag < 0 {
			e.Lag = 0
		}
		c.backlog[e.Key()] = e
	}
}

// BacklogSummary tiers the current lag snapshot.
func (c *Collector) BacklogSummary(opts model.BacklogOpts) model.BacklogSummary {
	entries := withGuard(c.g, func() []model.BacklogEntry {
		out := make([]model.BacklogEntry, 0, len(c.backlog))
		for _, e := range c.backlog {
			if opts.OmitZero && e.Lag == 0 {
				continue
			}
			out = append(out, e)
		}
		return out
	})
	sort.Slice(entries, func(a, b int) bool {
		x, y := entries[a], entries[b]
		if x.Lag != y.Lag {
			return x.Lag > y.Lag
		}
		if x.Group != y.Group {
			return x.Group < y.Group
		}
		if x.Topic != y.Topic {
			return x.Topic < y.Topic
		}
		return x.Partition < y.Partition
	})

	sum := model.BacklogSummary{
		High:    []model.BacklogEntry{},
		Medium:  []model.BacklogEntry{},
		Low:     []model.BacklogEntry{},
		Entries: len(entries),
	}
	for _, e := range entries {
		sum.Total += e.Lag
		switch {
		case e.Lag >= c.thresholds.High:
			sum.High = append(sum.High, e)
		case e.Lag >= c.thresholds.Medium:
			sum.Medium = append(sum.Medium, e)
		default:
			sum.Low = append(sum.Low, e)
		}
	}
	return sum
}
