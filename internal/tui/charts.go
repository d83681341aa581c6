package tui

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/pulse/internal/model"
)

const (
	legendWidth = 18
	minChartW   = 20
)

// barSeries is one bar per window, each made of named stacked values.
type barSeries struct {
	name   string
	values []float64
	color  lipgloss.Color
}

// throughputSeries splits each window into service and topic totals.
func throughputSeries(points []model.ThroughputPoint) []barSeries {
	services := barSeries{name: "SERVICE", color: ColorBlue, values: make([]float64, len(points))}
	topics := barSeries{name: "TOPIC", color: ColorTeal, values: make([]float64, len(points))}
	for i, p := range points {
		for _, n := range p.Services {
			services.values[i] += float64(n)
		}
		for _, n := range p.Topics {
			topics.values[i] += float64(n)
		}
	}
	return []barSeries{services, topics}
}

// severitySeries splits each window into one series per level.
func severitySeries(points []model.SeverityPoint) []barSeries {
	out := make([]barSeries, 0, len(model.Severities))
	for _, sev := range model.Severities {
		name := sev.String()
		s := barSeries{name: name, color: severityColors[name], values: make([]float64, len(points))}
		for i, p := range points {
			s.values[i] = float64(p.Counts[name])
		}
		out = append(out, s)
	}
	return out
}

// renderBarChart draws the stacked series right-aligned in a chart of the
// given size. Older windows that do not fit are dropped from the left.
func renderBarChart(series []barSeries, width, height int) string {
	if width < minChartW {
		width = minChartW
	}
	bars := 0
	for _, s := range series {
		bars = max(bars, len(s.values))
	}
	maxBars := width / 2
	start := 0
	if bars > maxBars {
		start = bars - maxBars
	}

	bc := barchart.New(width, height,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(1),
		barchart.WithNoAxis(),
	)
	empty := barchart.BarValue{Name: "EMPTY", Value: 0, Style: fill(ColorGray)}
	for i := 0; i < maxBars-(bars-start); i++ {
		bc.Push(barchart.BarData{Values: []barchart.BarValue{empty}})
	}
	for i := start; i < bars; i++ {
		var values []barchart.BarValue
		for _, s := range series {
			if i < len(s.values) && s.values[i] > 0 {
				values = append(values, barchart.BarValue{Name: s.name, Value: s.values[i], Style: fill(s.color)})
			}
		}
		if len(values) == 0 {
			values = []barchart.BarValue{empty}
		}
		bc.Push(barchart.BarData{Values: values})
	}
	bc.Draw()
	return bc.View()
}

// renderLegend lists the latest window's value per series, then the total.
func renderLegend(series []barSeries, height int) []string {
	lines := make([]string, 0, height)
	var total float64
	for _, s := range series {
		var latest float64
		if len(s.values) > 0 {
			latest = s.values[len(s.values)-1]
		}
		total += latest
		label := fmt.Sprintf("%-7s:%8.0f", s.name, latest)
		lines = append(lines, lipgloss.NewStyle().Foreground(s.color).Render(label))
	}
	lines = append(lines, lipgloss.NewStyle().Foreground(ColorWhite).Render(strings.Repeat("─", legendWidth-2)))
	lines = append(lines, lipgloss.NewStyle().Foreground(ColorWhite).Render(fmt.Sprintf("%-7s:%8.0f", "TOTAL", total)))
	for len(lines) < height {
		lines = append(lines, "")
	}
	return lines
}

// renderChartPanel renders the main chart for the current mode inside a section box.
func (m *DashboardModel) renderChartPanel(width, height int) string {
	style := sectionStyle.Width(width).Height(height)

	var series []barSeries
	var title string
	if m.chartMode == ChartSeverity {
		series = severitySeries(m.data.Severity)
		title = "Severity"
	} else {
		series = throughputSeries(m.data.Throughput)
		title = "Throughput"
	}
	iv := m.currentInterval()
	header := fmt.Sprintf("%s · last %s · %s windows", title, formatSpan(iv.Retention), formatSpan(iv.Window))

	chartHeight := max(3, height-2)
	if len(series) == 0 || len(series[0].values) == 0 {
		return style.Render(lipgloss.JoinVertical(lipgloss.Left,
			chartTitleStyle.Render(header),
			helpStyle.Render("No data available")))
	}

	chartWidth := width - legendWidth - 4
	chart := strings.Split(renderBarChart(series, chartWidth, chartHeight), "\n")
	legend := renderLegend(series, chartHeight)

	rows := make([]string, 0, chartHeight)
	for i := 0; i < chartHeight; i++ {
		line := ""
		if i < len(chart) {
			line = chart[i]
		}
		if w := lipgloss.Width(line); w < chartWidth {
			line += strings.Repeat(" ", chartWidth-w)
		}
		leg := ""
		if i < len(legend) {
			leg = legend[i]
		}
		rows = append(rows, line+"  "+leg)
	}

	return style.Render(lipgloss.JoinVertical(lipgloss.Left,
		chartTitleStyle.Render(header),
		strings.Join(rows, "\n")))
}
