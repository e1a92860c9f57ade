package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Underline(true)
	taglineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#fcd9b8")).Italic(true)
	helperStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	questionStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("147"))
	statusBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1)
	keyStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#ffd166")).Padding(0, 1)
	keyDescStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0def4"))
)

func (m *model) View() string {
	if m.quitting {
		return ""
	}
	return joinNonEmpty([]string{
		m.headerView(),
		m.viewport.View(),
		m.statusLine(),
		m.input.View(),
		m.keyLegendView(),
	})
}

func (m *model) headerView() string {
	return titleStyle.Render("ragtoXiv") + "  " + taglineStyle.Render(heroTagline)
}

func (m *model) statusLine() string {
	settings := fmt.Sprintf("category %s • mode %s • files %d • model %s",
		m.settings.Category, m.settings.Mode, m.settings.MaxFiles, m.settings.Model)
	line := statusBarStyle.Render(settings)
	if m.stage == stageWaiting {
		line += "  " + helperStyle.Render(fmt.Sprintf("%s Thinking…", m.spinner.View()))
	}
	if m.lastError != "" {
		line += "  " + errorStyle.Render(m.lastError)
	}
	return line
}

func (m *model) keyLegendView() string {
	keys := [][2]string{
		{"Enter", "ask"},
		{"PgUp/PgDn", "scroll"},
		{"/help", "commands"},
		{"Ctrl+C", "quit"},
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, keyStyle.Render(k[0])+" "+keyDescStyle.Render(k[1]))
	}
	return strings.Join(parts, "  ")
}
