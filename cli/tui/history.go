package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/desklink/cli/reader"
)

const timeLayout = "2006-01-02 15:04:05"

// HistoryModel lists update runs with a detail pane for the selected run.
type HistoryModel struct {
	viewType string
	entries  []reader.HistoryEntry
	cursor   int
	width    int
	height   int
	quitting bool
}

// NewHistoryModel creates a history model. data must be
// []reader.HistoryEntry.
func NewHistoryModel(viewType string, data any) HistoryModel {
	entries, _ := data.([]reader.HistoryEntry)
	return HistoryModel{viewType: viewType, entries: entries}
}

// Init implements tea.Model.
func (m HistoryModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m HistoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.entries)-1 {
				m.cursor++
			}
		}
	}

	return m, nil
}

// Cursor is the index of the selected run.
func (m HistoryModel) Cursor() int { return m.cursor }

// View implements tea.Model.
func (m HistoryModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Update History"))
	b.WriteString("\n\n")

	if len(m.entries) == 0 {
		b.WriteString(ValueStyle.Render("No update runs recorded"))
	} else {
		b.WriteString(m.renderList())
		b.WriteString("\n")
		b.WriteString(m.renderDetail(m.entries[m.cursor]))
	}

	help := HelpStyle.Render("↑/↓ select • q quit")
	return b.String() + "\n" + help
}

func (m HistoryModel) renderList() string {
	var b strings.Builder
	for i, e := range m.entries {
		marker := "  "
		if i == m.cursor {
			marker = CursorStyle.Render("> ")
		}
		line := fmt.Sprintf("%-19s  %-10s → %-10s  ",
			e.Started.Format(timeLayout), e.FromVersion, e.ToVersion)
		b.WriteString(marker + ValueStyle.Render(line) + StateStyle(e.Result).Render(e.Result) + "\n")
	}
	return b.String()
}

func (m HistoryModel) renderDetail(e reader.HistoryEntry) string {
	rows := [][2]string{
		{"Started", e.Started.Format(timeLayout)},
		{"From", e.FromVersion},
		{"To", e.ToVersion},
		{"Package", e.File},
		{"State", e.State},
	}
	if e.Error != "" {
		rows = append(rows, [2]string{"Error", e.Error})
	}
	if e.Message != "" {
		rows = append(rows, [2]string{"Message", e.Message})
	}

	var b strings.Builder
	for _, row := range rows {
		value := ValueStyle.Render(row[1])
		switch row[0] {
		case "State":
			value = StateStyle(e.State).Render(row[1])
		case "Error":
			value = ErrorStyle.Render(row[1])
			if e.Error == "UpdateAborted" {
				value = WarningStyle.Render(row[1])
			}
		}
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render(row[0]+":"), value)
	}
	return BoxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

type keyMap struct {
	Up   key.Binding
	Down key.Binding
	Quit key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunHistoryTUI runs the history TUI.
func RunHistoryTUI(viewType string, data any) error {
	if _, ok := data.([]reader.HistoryEntry); !ok {
		return fmt.Errorf("invalid data type for %s", viewType)
	}
	p := tea.NewProgram(NewHistoryModel(viewType, data), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderHistoryStatic renders the history view without a program.
func RenderHistoryStatic(data any) string {
	model := NewHistoryModel(ViewHistory, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
