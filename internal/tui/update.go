package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/pulse/internal/model"
)

// errorDisplayTTL is how long a fetch error stays in the status line.
const errorDisplayTTL = 30 * time.Second

// Update handles messages
func (m *DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case intervalsLoadedMsg:
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.applyIntervals(msg.intervals)
		return m, m.refreshCmd()

	case TickMsg:
		if m.paused {
			return m, m.tickCmd()
		}
		return m, tea.Batch(m.refreshCmd(), m.tickCmd())

	case snapshotLoadedMsg:
		m.tickInFlight = false
		m.setError(msg.err)
		// Drop results for an interval the user already moved away from.
		if msg.interval != m.currentInterval().Selector {
			return m, m.refreshCmd()
		}
		m.data = msg.snapshot
		m.hasData = true
		return m, nil
	}

	return m, nil
}

func (m *DashboardModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.ForceQuit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.PrevInterval):
		if m.intervalIdx > 0 {
			m.intervalIdx--
			return m, m.refreshCmd()
		}

	case key.Matches(msg, m.keys.NextInterval):
		if m.intervalIdx < len(m.intervals)-1 {
			m.intervalIdx++
			return m, m.refreshCmd()
		}

	case key.Matches(msg, m.keys.ToggleChart):
		if m.chartMode == ChartThroughput {
			m.chartMode = ChartSeverity
		} else {
			m.chartMode = ChartThroughput
		}

	case key.Matches(msg, m.keys.OmitZero):
		m.omitZero = !m.omitZero
		return m, m.refreshCmd()

	case key.Matches(msg, m.keys.Pause):
		m.paused = !m.paused

	case key.Matches(msg, m.keys.Refresh):
		return m, tea.Batch(m.fetchIntervalsCmd(), m.refreshCmd())
	}
	return m, nil
}

// applyIntervals installs the server's interval table, keeping the current
// selector when the server still offers it.
func (m *DashboardModel) applyIntervals(intervals []model.IntervalInfo) {
	if len(intervals) == 0 {
		return
	}
	current := m.currentInterval().Selector
	m.intervals = intervals
	m.intervalIdx = 0
	for i, iv := range intervals {
		if iv.Selector == current {
			m.intervalIdx = i
			break
		}
	}
}

// refreshCmd schedules a fetch unless one is already running.
func (m *DashboardModel) refreshCmd() tea.Cmd {
	if m.tickInFlight || m.src == nil {
		return nil
	}
	m.tickInFlight = true
	return m.fetchSnapshotCmd(m.currentInterval().Selector, model.BacklogOpts{OmitZero: m.omitZero})
}

func (m *DashboardModel) fetchIntervalsCmd() tea.Cmd {
	src := m.src
	if src == nil {
		return nil
	}
	return func() tea.Msg {
		intervals, err := src.Intervals()
		return intervalsLoadedMsg{intervals: intervals, err: err}
	}
}

func (m *DashboardModel) fetchSnapshotCmd(interval int, opts model.BacklogOpts) tea.Cmd {
	src := m.src
	return func() tea.Msg {
		snap, err := fetchSnapshot(src, interval, opts)
		return snapshotLoadedMsg{interval: interval, snapshot: snap, err: err}
	}
}

// fetchSnapshot runs every dashboard query against src. Individual failures
// leave their field empty; the first one is returned.
func fetchSnapshot(src DataSource, interval int, opts model.BacklogOpts) (Snapshot, error) {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	var snap Snapshot
	var err error
	snap.Throughput, err = src.ThroughputSeries(interval)
	keep(err)
	snap.Severity, err = src.SeveritySeries(interval)
	keep(err)
	snap.Rate, err = src.ThroughputRate(interval)
	keep(err)
	snap.LiveRate, err = src.LiveRate()
	keep(err)
	snap.ActiveSources, err = src.ActiveSources()
	keep(err)
	snap.TopServices, err = src.TopSources(interval, model.SourceServiceLog, topLimit)
	keep(err)
	snap.TopTopics, err = src.TopSources(interval, model.SourceBusMessage, topLimit)
	keep(err)
	snap.Backlog, err = src.BacklogSummary(opts)
	keep(err)
	snap.Stats, err = src.Stats()
	keep(err)
	snap.FetchedAt = time.Now()
	return snap, firstErr
}
