package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/desklink/cli/reader"
)

// StatsModel is a Bubble Tea model for stats views.
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case ViewStatsUpdates:
		content = m.renderStatsUpdates()
	case ViewStatsSession:
		content = m.renderStatsSession()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StatsModel) renderStatsUpdates() string {
	data, ok := m.data.(*reader.HistoryStats)
	if !ok {
		return "Invalid data type for " + ViewStatsUpdates
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Update Statistics"))
	b.WriteString("\n\n")

	boxes := []string{
		m.renderStatBox("Total", int64(data.Total), accentColor),
		m.renderStatBox("Succeeded", int64(data.Succeeded), okColor),
		m.renderStatBox("Aborted", int64(data.Aborted), warnColor),
		m.renderStatBox("Failed", int64(data.Failed), failColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))

	if data.LastVersion != "" {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s %s", LabelStyle.Render("Installed:"), ValueStyle.Render(data.LastVersion))
	}
	if data.LastStartedAt != nil {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s %s", LabelStyle.Render("Last Run:"), ValueStyle.Render(data.LastStartedAt.Format(timeLayout)))
	}

	return b.String()
}

func (m StatsModel) renderStatsSession() string {
	data, ok := m.data.(*reader.MetricsSnapshot)
	if !ok {
		return "Invalid data type for " + ViewStatsSession
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Session " + data.SessionID))
	b.WriteString("\n\n")

	rows := []struct {
		title string
		boxes []string
	}{
		{"Frames", []string{
			m.renderStatBox("Received", data.FramesReceived, accentColor),
			m.renderStatBox("Dispatched", data.Dispatched, okColor),
			m.renderStatBox("Blocked", data.Blocked, warnColor),
			m.renderStatBox("Dropped", data.FramesDropped, failColor),
		}},
		{"Queries", []string{
			m.renderStatBox("Submitted", data.QueriesSubmitted, accentColor),
			m.renderStatBox("Completed", data.QueriesCompleted, okColor),
			m.renderStatBox("Rejected", data.QueriesRejected, failColor),
		}},
		{"Updates", []string{
			m.renderStatBox("Started", data.UpdatesStarted, accentColor),
			m.renderStatBox("Succeeded", data.UpdatesSucceeded, okColor),
			m.renderStatBox("Aborted", data.UpdatesAborted, warnColor),
			m.renderStatBox("Failed", data.UpdatesFailed, failColor),
		}},
	}
	for i, row := range rows {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(SectionStyle.Render(row.title))
		b.WriteString("\n")
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, row.boxes...))
	}

	if len(data.DroppedBy) > 0 {
		reasons := make([]string, 0, len(data.DroppedBy))
		for r := range data.DroppedBy {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		b.WriteString("\n")
		for _, r := range reasons {
			b.WriteString(ErrorStyle.Render(fmt.Sprintf("dropped %s: %d", r, data.DroppedBy[r])))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s  %s %s  %s %s",
		LabelStyle.Render("Transport:"), ValueStyle.Render(data.Transport),
		LabelStyle.Render("Settings:"), ValueStyle.Render(data.SettingsStore),
		LabelStyle.Render("Journal:"), ValueStyle.Render(data.JournalBackend))

	return b.String()
}

func (m StatsModel) renderStatBox(label string, value int64, color lipgloss.AdaptiveColor) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(viewType string, data any) error {
	model := NewStatsModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders stats data without full TUI (for fallback).
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
