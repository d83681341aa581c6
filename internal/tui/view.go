package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/pulse/internal/model"
)

// backlogRows is how many backlog entries the table shows.
const backlogRows = 6

// View renders the dashboard
func (m *DashboardModel) View() string {
	if m.width <= 0 || m.height <= 0 {
		return "Initializing dashboard..."
	}
	if m.height < 20 || m.width < 60 {
		return "Terminal too small. Resize to at least 60x20."
	}

	// Borders add two columns to every section.
	inner := m.width - 2

	header := m.renderHeader()
	status := m.renderStatusLine()

	half := (m.width - 1) / 2
	lists := lipgloss.JoinHorizontal(lipgloss.Top,
		renderTopList("Top services", m.data.TopServices, half-2, topLimit),
		" ",
		renderTopList("Top topics", m.data.TopTopics, m.width-half-3, topLimit),
	)
	backlog := m.renderBacklog(inner)

	used := lipgloss.Height(header) + lipgloss.Height(status) + lipgloss.Height(lists) + lipgloss.Height(backlog)
	chartHeight := max(5, m.height-used-2)
	chart := m.renderChartPanel(inner, chartHeight)

	body := lipgloss.JoinVertical(lipgloss.Left, header, chart, lists, backlog)
	body = lipgloss.NewStyle().MaxHeight(m.height - 1).Render(body)
	return lipgloss.JoinVertical(lipgloss.Left, body, status)
}

// renderPulseBranding renders "Pulse" with a green to teal gradient.
func renderPulseBranding() string {
	colors := []string{"#49E209", "#35DD2F", "#21D955", "#0DD47B", "#00CAC7"}
	var b strings.Builder
	for i, ch := range "Pulse" {
		b.WriteString(lipgloss.NewStyle().
			Background(ColorNavy).
			Foreground(lipgloss.Color(colors[i])).
			Bold(true).
			Render(string(ch)))
	}
	return b.String()
}

func (m *DashboardModel) renderHeader() string {
	iv := m.currentInterval()
	tabs := make([]string, 0, len(m.intervals))
	for i, info := range m.intervals {
		label := fmt.Sprintf(" %s ", formatSelector(info.Selector))
		if i == m.intervalIdx {
			tabs = append(tabs, lipgloss.NewStyle().Background(ColorGreen).Foreground(ColorNavy).Bold(true).Render(label))
		} else {
			tabs = append(tabs, statusStyle.Render(label))
		}
	}
	left := renderPulseBranding() + statusStyle.Render("  ") + strings.Join(tabs, "")
	right := statusStyle.Render(fmt.Sprintf(" live %s · %s avg · %d active ",
		formatRate(m.data.LiveRate), formatRate(m.data.Rate), len(m.data.ActiveSources)))
	if iv.Selector == 0 {
		right = statusStyle.Render(" connecting… ")
	}
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return left + statusStyle.Render(strings.Repeat(" ", gap)) + right
}

// renderTopList renders a ranked source list with proportional bars.
func renderTopList(title string, rows []model.DimensionCount, width, limit int) string {
	style := sectionStyle.Width(width).Height(limit + 1)
	lines := []string{chartTitleStyle.Render(title)}
	if len(rows) == 0 {
		lines = append(lines, helpStyle.Render("No sources yet"))
		return style.Render(strings.Join(lines, "\n"))
	}

	top := rows[0].Count
	nameW := min(24, max(8, width/3))
	barW := max(4, width-nameW-12)
	for i, r := range rows {
		if i >= limit {
			break
		}
		n := 0
		if top > 0 {
			n = int(float64(r.Count) / float64(top) * float64(barW))
		}
		bar := lipgloss.NewStyle().Foreground(ColorBlue).Render(strings.Repeat("▇", max(1, n)))
		lines = append(lines, fmt.Sprintf("%-*s %8d %s", nameW, truncate(r.Value, nameW), r.Count, bar))
	}
	return style.Render(strings.Join(lines, "\n"))
}

// renderBacklog renders consumer lag ordered by tier then lag.
func (m *DashboardModel) renderBacklog(width int) string {
	style := sectionStyle.Width(width).Height(backlogRows + 3)
	b := m.data.Backlog
	title := fmt.Sprintf("Backlog · %d partitions · %d total lag", b.Entries, b.Total)
	if m.omitZero {
		title += " · zero lag hidden"
	}
	lines := []string{chartTitleStyle.Render(title)}

	type row struct {
		tier  string
		entry model.BacklogEntry
	}
	var rows []row
	for _, e := range b.High {
		rows = append(rows, row{"HIGH", e})
	}
	for _, e := range b.Medium {
		rows = append(rows, row{"MEDIUM", e})
	}
	for _, e := range b.Low {
		rows = append(rows, row{"LOW", e})
	}
	if len(rows) == 0 {
		lines = append(lines, helpStyle.Render("No consumer lag reported"))
		return style.Render(strings.Join(lines, "\n"))
	}

	lines = append(lines, lipgloss.NewStyle().Foreground(ColorWhite).Render(
		fmt.Sprintf("%-7s %-20s %-24s %5s %10s", "TIER", "GROUP", "TOPIC", "PART", "LAG")))
	for i, r := range rows {
		if i >= backlogRows {
			lines = append(lines, helpStyle.Render(fmt.Sprintf("… %d more", len(rows)-backlogRows)))
			break
		}
		line := fmt.Sprintf("%-7s %-20s %-24s %5d %10d",
			r.tier, truncate(r.entry.Group, 20), truncate(r.entry.Topic, 24), r.entry.Partition, r.entry.Lag)
		lines = append(lines, lipgloss.NewStyle().Foreground(tierColors[r.tier]).Render(line))
	}
	return style.Render(strings.Join(lines, "\n"))
}

// renderStatusLine renders the status/help line at the bottom of the screen.
func (m *DashboardModel) renderStatusLine() string {
	left := fmt.Sprintf(" %s · %d events", m.dataSource, m.data.Stats.EventsRecorded)
	if m.paused {
		left += " · PAUSED"
	}
	if m.lastError != "" && time.Since(m.lastErrorAt) < errorDisplayTTL {
		msg := m.lastError
		if m.consecutiveErrors > 1 {
			msg = fmt.Sprintf("%s (x%d)", msg, m.consecutiveErrors)
		}
		return errorStyle.Width(m.width).Render(truncate(" error: "+msg, m.width))
	}
	helpView := m.help.ShortHelpView(m.keys.ShortHelp())
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(helpView) - 1
	if gap < 1 {
		return statusStyle.Width(m.width).Render(left)
	}
	return statusStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + helpView)
}

func formatRate(r float64) string {
	switch {
	case r >= 1_000_000:
		return fmt.Sprintf("%.1fM/s", r/1_000_000)
	case r >= 1_000:
		return fmt.Sprintf("%.1fk/s", r/1_000)
	default:
		return fmt.Sprintf("%.1f/s", r)
	}
}

// formatSelector renders an interval selector in minutes as a short label.
func formatSelector(minutes int) string {
	switch {
	case minutes >= 1440 && minutes%1440 == 0:
		return fmt.Sprintf("%dd", minutes/1440)
	case minutes >= 60 && minutes%60 == 0:
		return fmt.Sprintf("%dh", minutes/60)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

func formatSpan(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d%(24*time.Hour) == 0:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return d.String()
	}
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
