package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/testrun/internal/store"
)

var (
	// Colors meet WCAG AA contrast (4.5:1) on both black and dark surfaces.
	primaryColor = lipgloss.Color("#A78BFA") // Purple
	mutedColor   = lipgloss.Color("#9CA3AF") // Gray
	borderColor  = lipgloss.Color("#6B7280") // Gray
	errorColor   = lipgloss.Color("#F87171") // Red
	warningColor = lipgloss.Color("#F59E0B") // Amber

	statusColors = map[store.Status]lipgloss.Color{
		store.StatusIdle:      "#9CA3AF", // Gray
		store.StatusPreparing: "#60A5FA", // Blue
		store.StatusExecuting: "#60A5FA", // Blue
		store.StatusPolling:   "#10B981", // Green
		store.StatusFinished:  "#A78BFA", // Purple
		store.StatusCancelled: "#FB923C", // Orange
		store.StatusFailed:    "#F87171", // Red
	}

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(borderColor).
			MarginBottom(1)

	labelStyle   = lipgloss.NewStyle().Foreground(mutedColor).Width(10)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor)
	helpKeyStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))
	helpBarStyle = lipgloss.NewStyle().Foreground(mutedColor).MarginTop(1)

	statusBadge = lipgloss.NewStyle().Bold(true).Padding(0, 1)
)

func statusStyle(s store.Status) lipgloss.Style {
	c, ok := statusColors[s]
	if !ok {
		c = mutedColor
	}
	return statusBadge.Foreground(c)
}
