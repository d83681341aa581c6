package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/pulse/internal/model"
)

// DataSource is the read side the dashboard polls. socketrpc.Client satisfies it.
type DataSource interface {
	Intervals() ([]model.IntervalInfo, error)
	ThroughputSeries(interval int) ([]model.ThroughputPoint, error)
	SeveritySeries(interval int) ([]model.SeverityPoint, error)
	ThroughputRate(interval int) (float64, error)
	LiveRate() (float64, error)
	ActiveSources() ([]string, error)
	TopSources(interval int, kind model.SourceKind, limit int) ([]model.DimensionCount, error)
	BacklogSummary(opts model.BacklogOpts) (model.BacklogSummary, error)
	Stats() (model.CollectorStats, error)
}

// ChartMode selects what the main chart plots.
type ChartMode int

const (
	ChartThroughput ChartMode = iota // services vs topics per window
	ChartSeverity                    // stacked levels per window
)

// topLimit is how many sources each top list shows.
const topLimit = 8

// Snapshot is one poll's worth of dashboard data.
type Snapshot struct {
	Throughput    []model.ThroughputPoint
	Severity      []model.SeverityPoint
	Rate          float64
	LiveRate      float64
	ActiveSources []string
	TopServices   []model.DimensionCount
	TopTopics     []model.DimensionCount
	Backlog       model.BacklogSummary
	Stats         model.CollectorStats
	FetchedAt     time.Time
}

// DashboardModel represents the main TUI model.
type DashboardModel struct {
	src  DataSource
	keys KeyMap
	help help.Model

	width  int
	height int

	intervals   []model.IntervalInfo
	intervalIdx int
	chartMode   ChartMode
	omitZero    bool
	paused      bool

	updateInterval time.Duration
	data           Snapshot
	hasData        bool

	// Async tick guard to avoid overlapping fetches.
	tickInFlight bool

	lastError         string
	lastErrorAt       time.Time
	consecutiveErrors int

	dataSource string // shown in the status bar
}

// TickMsg represents periodic updates.
type TickMsg time.Time

// intervalsLoadedMsg carries the server's interval table.
type intervalsLoadedMsg struct {
	intervals []model.IntervalInfo
	err       error
}

// snapshotLoadedMsg carries the result of one poll.
type snapshotLoadedMsg struct {
	interval int
	snapshot Snapshot
	err      error
}

// NewDashboardModel creates a dashboard polling src every updateInterval,
// starting on the interval whose selector is initialInterval.
func NewDashboardModel(src DataSource, updateInterval time.Duration, initialInterval int, dataSource string) *DashboardModel {
	if updateInterval <= 0 {
		updateInterval = model.DefaultUpdateInterval
	}
	if initialInterval <= 0 {
		initialInterval = model.DefaultInterval
	}
	return &DashboardModel{
		src:            src,
		keys:           DefaultKeyMap(),
		help:           help.New(),
		updateInterval: updateInterval,
		intervals:      []model.IntervalInfo{{Selector: initialInterval}},
		dataSource:     dataSource,
	}
}

// Init requests the interval table and starts the poll loop.
func (m *DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.fetchIntervalsCmd(), m.tickCmd())
}

// currentInterval returns the selector being displayed.
func (m *DashboardModel) currentInterval() model.IntervalInfo {
	if m.intervalIdx < 0 || m.intervalIdx >= len(m.intervals) {
		return model.IntervalInfo{Selector: model.DefaultInterval}
	}
	return m.intervals[m.intervalIdx]
}

func (m *DashboardModel) tickCmd() tea.Cmd {
	return tea.Tick(m.updateInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m *DashboardModel) setError(err error) {
	if err == nil {
		m.consecutiveErrors = 0
		return
	}
	m.consecutiveErrors++
	m.lastError = err.Error()
	m.lastErrorAt = time.Now()
}
