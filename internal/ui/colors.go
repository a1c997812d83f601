package ui

import "github.com/charmbracelet/lipgloss"

// Color palette using ANSI color codes for terminal compatibility.

// Semantic colors for status indication
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors for content hierarchy
const (
	ColorPrimary   lipgloss.Color = "7" // White/default
	ColorSecondary lipgloss.Color = "4" // Blue
	ColorMuted     lipgloss.Color = "8" // Gray (bright black)
)

// StateColor maps an instance state name to a display color: green
// for running, yellow for the transitional states, gray otherwise.
func StateColor(state string) lipgloss.Color {
	switch state {
	case "running":
		return ColorSuccess
	case "pending", "stopping", "shutting-down":
		return ColorWarning
	case "terminated":
		return ColorError
	default:
		return ColorMuted
	}
}
