package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/pulse/internal/model"
)

func TestBacklogSummaryTiers(t *testing.T) {
	c, err := NewCollector(Config{})
	require.NoError(t, err)

	c.RefreshBacklog([]model.BacklogEntry{
		{Group: "g1", Topic: "orders", Partition: 0, Lag: 12000},
		{Group: "g1", Topic: "orders", Partition: 1, Lag: 1000},
		{Group: "g1", Topic: "orders", Partition: 2, Lag: 999},
		{Group: "g1", Topic: "orders", Partition: 3, Lag: 0},
		{Group: "g1", Topic: "orders", Partition: 4, Lag: -5},
		{Group: "g0", Topic: "orders", Partition: 0, Lag: 1000},
	})

	sum := c.BacklogSummary(model.BacklogOpts{})
	require.Equal(t, []model.BacklogEntry{{Group: "g1", Topic: "orders", Partition: 0, Lag: 12000}}, sum.High)
	require.Equal(t, []model.BacklogEntry{
		{Group: "g0", Topic: "orders", Partition: 0, Lag: 1000},
		{Group: "g1", Topic: "orders", Partition: 1, Lag: 1000},
	}, sum.Medium)
	require.Len(t, sum.Low, 3)
	require.Equal(t, int64(999), sum.Low[0].Lag)
	require.Equal(t, int64(0), sum.Low[2].Lag)
	require.Equal(t, 6, sum.Entries)
	require.Equal(t, int64(14999), sum.Total)

	omit := c.BacklogSummary(model.BacklogOpts{OmitZero: true})
	require.Len(t, omit.Low, 1)
	require.Equal(t, 4, omit.Entries)
}

func TestRefreshBacklogReplacesPerGroup(t *testing.T) {
	c, err := NewCollector(Config{Backlog: BacklogThresholds{High: 100, Medium: 10}})
	require.NoError(t, err)

	c.RefreshBacklog([]model.BacklogEntry{
		{Group: "a", Topic: "t", Partition: 0, Lag: 50},
		{Group: "a", Topic: "t", Partition: 1, Lag: 60},
		{Group: "b", Topic: "t", Partition: 0, Lag: 500},
	})
	c.RefreshBacklog([]model.BacklogEntry{
		{Group: "a", Topic: "t", Partition: 1, Lag: 5},
	})

	sum := c.BacklogSummary(model.BacklogOpts{})
	require.Equal(t, []model.BacklogEntry{{Group: "b", Topic: "t", Partition: 0, Lag: 500}}, sum.High)
	require.Empty(t, sum.Medium)
	require.Equal(t, []model.BacklogEntry{{Group: "a", Topic: "t", Partition: 1, Lag: 5}}, sum.Low)
}

func TestBacklogThresholdDefaults(t *testing.T) {
	got := BacklogThresholds{}.withDefaults()
	require.Equal(t, BacklogThresholds{High: DefaultBacklogHigh, Medium: DefaultBacklogMedium}, got)

	got = BacklogThresholds{High: 500, Medium: 800}.withDefaults()
	require.Equal(t, BacklogThresholds{High: 500, Medium: 500}, got)
}

func TestRefreshGroupBacklogEmptyClearsGroup(t *testing.T) {
	c, err := NewCollector(Config{})
	require.NoError(t, err)

	c.RefreshBacklog([]model.BacklogEntry{
		{Group: "a", Topic: "t", Partition: 0, Lag: 50},
		{Group: "b", Topic: "t", Partition: 0, Lag: 5},
	})
	c.RefreshGroupBacklog("a", nil)

	sum := c.BacklogSummary(model.BacklogOpts{})
	require.Equal(t, []model.BacklogEntry{{Group: "b", Topic: "t", Partition: 0, Lag: 5}}, sum.Low)
	require.Equal(t, 1, c.Stats().BacklogEntries)

	c.RefreshGroupBacklog("b", []model.BacklogEntry{{Group: "ignored", Topic: "u", Partition: 2, Lag: 2000}})
	sum = c.BacklogSummary(model.BacklogOpts{})
	require.Equal(t, []model.BacklogEntry{{Group: "b", Topic: "u", Partition: 2, Lag: 2000}}, sum.Medium)
	require.Empty(t, sum.Low)
}
