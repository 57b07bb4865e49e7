// Package tui provides Bubble Tea views for the desklink CLI.
//
// The TUI is opt-in (--tui) and read-only. Views render the same payloads
// the table and JSON output do.
package tui

import "github.com/charmbracelet/lipgloss"

// Palette. Adaptive colors keep light terminals readable.
var (
	accentColor = lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#22D3EE"}
	okColor     = lipgloss.AdaptiveColor{Light: "#15803D", Dark: "#4ADE80"}
	warnColor   = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	failColor   = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	dimColor    = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	textColor   = lipgloss.AdaptiveColor{Light: "#111827", Dark: "#F9FAFB"}
)

var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor).MarginBottom(1)

	// LabelStyle pads detail labels to one column.
	LabelStyle = lipgloss.NewStyle().Foreground(dimColor).Width(16)
	ValueStyle = lipgloss.NewStyle().Foreground(textColor)

	SuccessStyle = lipgloss.NewStyle().Foreground(okColor)
	WarningStyle = lipgloss.NewStyle().Foreground(warnColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(failColor)

	// CursorStyle marks the selected history row.
	CursorStyle  = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	SectionStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dimColor).
			Padding(0, 1)

	HelpStyle = lipgloss.NewStyle().Foreground(dimColor).MarginTop(1)

	// Stat tiles on the stats views.
	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(accentColor).
			Width(18).
			Align(lipgloss.Center)
	StatLabelStyle = lipgloss.NewStyle().Foreground(dimColor)
	StatValueStyle = lipgloss.NewStyle().Bold(true).Foreground(textColor)
)

// StateStyle colors an update state or run result.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "succeeded", "completed", "ReadyForReset":
		return SuccessStyle
	case "aborted", "UpdateAborted":
		return WarningStyle
	case "failed", "error":
		return ErrorStyle
	default:
		return ValueStyle
	}
}
