package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	gloss "github.com/charmbracelet/lipgloss"

	"anime_tracker/tracker"
)

// ---------------- StatsModel ----------------

// StatsModel renders the aggregate counts. It holds no state of its own
// beyond the last snapshot it was handed.
type StatsModel struct {
	stats tracker.Stats
	email string
}

func NewStatsModel() StatsModel {
	return StatsModel{}
}

func (m StatsModel) WithStats(s tracker.Stats) StatsModel {
	m.stats = s
	return m
}

func (m StatsModel) WithEmail(email string) StatsModel {
	m.email = email
	return m
}

func (m StatsModel) Update(msg tea.Msg) (StatsModel, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "s" {
		return m, func() tea.Msg { return signOutMsg{} }
	}
	return m, nil
}

func (m StatsModel) View(width int) string {
	statLine := func(label string, value int, style gloss.Style) string {
		return StatLabelStyle.Render(label+": ") + style.Render(fmt.Sprintf("%d", value))
	}

	rows := []string{
		"",
		statLine("Total Anime", m.stats.Total, StatValueStyle),
		statLine("Watching", m.stats.Watching, WatchingStyle),
		statLine("Completed", m.stats.Completed, CompletedStyle),
		"",
	}
	if m.email != "" {
		rows = append(rows, StatLabelStyle.Render("Signed in as "+m.email))
	}
	rows = append(rows, HelpStyle.Render("s sign out • tab switch view"))

	block := gloss.JoinVertical(gloss.Center, rows...)
	return List.Width(width).Render(block)
}
