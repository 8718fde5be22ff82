package tui

import "github.com/charmbracelet/lipgloss"

const (
	primaryColor   = "#7C3AED"
	secondaryColor = "#10B981"
	warningColor   = "#F59E0B"
	errorColor     = "#EF4444"
	dimColor       = "#6B7280"
)

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(primaryColor)).
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	chordStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true)

	outlineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(secondaryColor))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(dimColor))

	playingStyle = lipgloss.NewStyle().
			Background(lipgloss.Color(secondaryColor)).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(0, 1)

	idleStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(lipgloss.Color("#9CA3AF")).
			Padding(0, 1)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(warningColor))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(errorColor))

	progressFullStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(secondaryColor))

	progressEmptyStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(dimColor))
)
