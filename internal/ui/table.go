package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Palette
var (
	ColorAccent = lipgloss.Color("75")  // steel blue
	ColorPass   = lipgloss.Color("42")  // green
	ColorWarn   = lipgloss.Color("214") // orange
	ColorFail   = lipgloss.Color("203") // red
	ColorMuted  = lipgloss.Color("245") // grey
)

// Table styles
var (
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorAccent).
				Align(lipgloss.Center)

	TableWarningStyle = lipgloss.NewStyle().
				Foreground(ColorWarn)

	TableSuccessStyle = lipgloss.NewStyle().
				Foreground(ColorPass)

	TableErrorStyle = lipgloss.NewStyle().
			Foreground(ColorFail)

	TableHintStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	TableBorderStyle = lipgloss.NewStyle().
				Foreground(ColorMuted)
)

// NewTable creates a table with the default styling.
func NewTable(width int) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(TableBorderStyle).
		Width(width)
}
