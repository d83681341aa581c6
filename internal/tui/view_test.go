package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/pulse/internal/model"
)

func loadedModel(t *testing.T) *DashboardModel {
	t.Helper()
	src := &fakeSource{intervals: defaultInfos()}
	m := NewDashboardModel(src, time.Second, 1, "Socket")
	runCmd(t, m, m.fetchIntervalsCmd())
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func TestView_TooSmall(t *testing.T) {
	t.Parallel()

	m := NewDashboardModel(nil, time.Second, 1, "Socket")
	if got := m.View(); got != "Initializing dashboard..." {
		t.Errorf("View before size = %q", got)
	}
	m.Update(tea.WindowSizeMsg{Width: 40, Height: 10})
	if got := m.View(); !strings.Contains(got, "Terminal too small") {
		t.Errorf("View on small terminal = %q", got)
	}
}

func TestView_RendersPanels(t *testing.T) {
	t.Parallel()

	view := loadedModel(t).View()
	for _, want := range []string{"Throughput", "Top services", "Top topics", "api", "orders", "Backlog", "billing", "HIGH", "1.5/s"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if h := lipgloss.Height(view); h > 40 {
		t.Errorf("view height = %d, want <= 40", h)
	}
}

func TestView_SeverityMode(t *testing.T) {
	t.Parallel()

	m := loadedModel(t)
	m.Update(keyMsg("tab"))
	view := m.View()
	if !strings.Contains(view, "Severity") || !strings.Contains(view, "ERROR") {
		t.Error("severity chart should show level legend")
	}
}

func TestView_ErrorInStatusLine(t *testing.T) {
	t.Parallel()

	m := loadedModel(t)
	m.Update(snapshotLoadedMsg{interval: 1, err: errFake("socket closed")})
	if !strings.Contains(m.renderStatusLine(), "socket closed") {
		t.Error("status line should show the last fetch error")
	}
}

type errFake string

func (e errFake) Error() string { return string(e) }

func TestThroughputSeries_SplitsKinds(t *testing.T) {
	t.Parallel()

	series := throughputSeries([]model.ThroughputPoint{
		{Services: map[string]int64{"a": 2, "b": 3}, Topics: map[string]int64{"t": 4}},
		{Services: map[string]int64{"a": 1}},
	})
	if len(series) != 2 {
		t.Fatalf("series = %d, want 2", len(series))
	}
	if series[0].values[0] != 5 || series[0].values[1] != 1 {
		t.Errorf("service values = %v, want [5 1]", series[0].values)
	}
	if series[1].values[0] != 4 || series[1].values[1] != 0 {
		t.Errorf("topic values = %v, want [4 0]", series[1].values)
	}
}

func TestSeveritySeries_AllLevels(t *testing.T) {
	t.Parallel()

	series := severitySeries([]model.SeverityPoint{{Counts: map[string]int64{"WARN": 2}}})
	if len(series) != len(model.Severities) {
		t.Fatalf("series = %d, want %d", len(series), len(model.Severities))
	}
	for _, s := range series {
		want := 0.0
		if s.name == "WARN" {
			want = 2
		}
		if s.values[0] != want {
			t.Errorf("%s = %v, want %v", s.name, s.values[0], want)
		}
	}
}

func TestRenderBarChart_Height(t *testing.T) {
	t.Parallel()

	series := []barSeries{{name: "X", color: ColorBlue, values: make([]float64, 200)}}
	series[0].values[199] = 10
	out := renderBarChart(series, 40, 6)
	if h := lipgloss.Height(out); h != 6 {
		t.Errorf("chart height = %d, want 6", h)
	}
}

func TestFormatters(t *testing.T) {
	t.Parallel()

	rates := map[float64]string{0: "0.0/s", 12.34: "12.3/s", 2500: "2.5k/s", 3_200_000: "3.2M/s"}
	for in, want := range rates {
		if got := formatRate(in); got != want {
			t.Errorf("formatRate(%v) = %q, want %q", in, got, want)
		}
	}

	selectors := map[int]string{1: "1m", 15: "15m", 60: "1h", 1440: "1d", 90: "90m"}
	for in, want := range selectors {
		if got := formatSelector(in); got != want {
			t.Errorf("formatSelector(%d) = %q, want %q", in, got, want)
		}
	}

	spans := map[time.Duration]string{10 * time.Second: "10s", 2 * time.Minute: "2m", time.Hour: "1h", 24 * time.Hour: "1d"}
	for in, want := range spans {
		if got := formatSpan(in); got != want {
			t.Errorf("formatSpan(%v) = %q, want %q", in, got, want)
		}
	}

	if got := truncate("abcdef", 4); got != "abc…" {
		t.Errorf("truncate = %q, want abc…", got)
	}
	if got := truncate("ab", 4); got != "ab" {
		t.Errorf("truncate = %q, want ab", got)
	}
}
