package report

import (
	"github.com/charmbracelet/lipgloss"

	"formcoach/internal/analysis"
)

// Colors
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	secondaryColor = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#EF4444") // Red
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	textColor      = lipgloss.Color("#F9FAFB") // Light gray
	freshColor     = lipgloss.Color("#3B82F6") // Blue
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor).
			Background(primaryColor).
			Padding(0, 1).
			MarginBottom(1)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 2)

	cardTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	metricLabelStyle = lipgloss.NewStyle().
				Foreground(mutedColor).
				Width(20)

	metricValueStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(textColor)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(primaryColor)

	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor)
	successStyle = lipgloss.NewStyle().Foreground(secondaryColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
)

// zoneStyle colours a zone from red (overreached) through green to blue (fresh)
func zoneStyle(z analysis.FormZone) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true)
	switch z {
	case analysis.ZoneOverreached:
		return style.Foreground(errorColor)
	case analysis.ZoneFatigued:
		return style.Foreground(warningColor)
	case analysis.ZoneProductiveTraining, analysis.ZoneMaintenance:
		return style.Foreground(secondaryColor)
	case analysis.ZoneOptimalRace:
		return style.Foreground(primaryColor)
	case analysis.ZoneFresh:
		return style.Foreground(freshColor)
	}
	return style.Foreground(mutedColor)
}

// metric renders a label and value on one line
func metric(label, value string) string {
	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		metricLabelStyle.Render(label),
		metricValueStyle.Render(value),
	)
}

func card(title string, lines ...string) string {
	body := append([]string{cardTitleStyle.Render(title)}, lines...)
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, body...))
}

func bullets(style lipgloss.Style, items []string) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = style.Render("• " + item)
	}
	return out
}
