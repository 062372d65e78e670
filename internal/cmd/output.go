package cmd

import "github.com/charmbracelet/lipgloss"

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// statusStyle maps a session or task status to its display style.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case "active", "completed", "complete":
		return successStyle
	case "failed", "cancelled":
		return errorStyle
	case "paused", "in_progress", "working":
		return warnStyle
	default:
		return dimStyle
	}
}
