package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorText     lipgloss.Color = "#cdd6f4"
	colorMuted    lipgloss.Color = "#a6adc8"
	colorBorder   lipgloss.Color = "#585b70"
	colorAccent   lipgloss.Color = "#89b4fa"
	colorSuccess  lipgloss.Color = "#a6e3a1"
	colorError    lipgloss.Color = "#f38ba8"
	colorSurface0 lipgloss.Color = "#313244"
	colorMantle   lipgloss.Color = "#181825"
)

var (
	headerStyle  = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	crumbStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	titleStyle   = lipgloss.NewStyle().Foreground(colorText).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	cursorStyle  = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	groupStyle   = lipgloss.NewStyle().Foreground(colorAccent).Bold(true).MarginTop(1)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)
	focusedPaneStyle = paneStyle.BorderForeground(colorAccent)

	errorBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorError).
			Foreground(colorError).
			Padding(0, 1)

	userStyle      = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)

	keyStyle      = lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Background(colorMantle)
	helpDescStyle = lipgloss.NewStyle().Foreground(colorMuted).Background(colorMantle)
	footerStyle   = lipgloss.NewStyle().Background(colorMantle)
	statusStyle   = lipgloss.NewStyle().Foreground(colorSuccess).Background(colorSurface0)
)
