package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorNavy  = lipgloss.Color("#1B2A49")
	ColorWhite = lipgloss.Color("#F5F5F5")
	ColorGray  = lipgloss.Color("244")
	ColorBlue  = lipgloss.Color("39")
	ColorGreen = lipgloss.Color("#49E209")
	ColorTeal  = lipgloss.Color("#00CAC7")

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorGray).
			Padding(0, 1)

	chartTitleStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Italic(true)

	statusStyle = lipgloss.NewStyle().
			Background(ColorNavy).
			Foreground(ColorWhite)

	errorStyle = lipgloss.NewStyle().
			Background(ColorNavy).
			Foreground(lipgloss.Color("#FF6666")).
			Bold(true)
)

// severityColors maps level names to the bar and legend color used for them.
var severityColors = map[string]lipgloss.Color{
	"TRACE": lipgloss.Color("240"),
	"DEBUG": lipgloss.Color("244"),
	"INFO":  lipgloss.Color("39"),
	"WARN":  lipgloss.Color("208"),
	"ERROR": lipgloss.Color("196"),
	"FATAL": lipgloss.Color("201"),
}

// tierColors maps backlog tiers to their row color.
var tierColors = map[string]lipgloss.Color{
	"HIGH":   lipgloss.Color("#FF4444"),
	"MEDIUM": lipgloss.Color("#FFAA00"),
	"LOW":    lipgloss.Color("#44FF44"),
}

func fill(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c).Background(c)
}
