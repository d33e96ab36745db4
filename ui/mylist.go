package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	gloss "github.com/charmbracelet/lipgloss"

	"anime_tracker/tracker"
)

// entryItem adapts a saved entry to the list widget.
type entryItem struct {
	tracker.Entry
}

func (i entryItem) Title() string { return i.Entry.Name }
func (i entryItem) Description() string {
	status := i.Entry.Status
	if status != tracker.StatusCompleted {
		status = tracker.StatusWatching
	}
	return fmt.Sprintf("Status: %s • Score: %s", status, i.Entry.ScoreText())
}
func (i entryItem) FilterValue() string { return i.Entry.Name }

type deleteTarget struct {
	id    string
	title string
}

// ---------------- ListModel ----------------

type ListModel struct {
	deps *Deps

	list    list.Model
	loading bool
	notice  string
	isErr   bool
	confirm *deleteTarget

	width  int
	height int
}

func NewListModel(deps *Deps) ListModel {
	return ListModel{
		deps: deps,
		list: newItemList(),
	}
}

func (m ListModel) WithLoading(loading bool) ListModel {
	m.loading = loading
	return m
}

func (m ListModel) WithNotice(text string, isErr bool) ListModel {
	m.notice = text
	m.isErr = isErr
	return m
}

// WithEntries replaces the rendered list with the controller's current
// mirror, keeping the cursor in place. Called after every applied push.
func (m ListModel) WithEntries(entries []tracker.Entry) ListModel {
	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = entryItem{e}
	}
	selected := m.list.Index()
	m.list.SetItems(items)
	if selected >= len(items) {
		selected = len(items) - 1
	}
	if selected >= 0 {
		m.list.Select(selected)
	}
	// a push may remove the entry a pending confirm points at
	if m.confirm != nil && !containsID(entries, m.confirm.id) {
		m.confirm = nil
	}
	return m
}

func containsID(entries []tracker.Entry, id string) bool {
	for _, e := range entries {
		if e.ID() == id {
			return true
		}
	}
	return false
}

func (m ListModel) Update(msg tea.Msg) (ListModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(min(m.width-8, ListMaxWidth), max(m.height-8, 4))
		return m, nil

	case toggleDoneMsg:
		if msg.err != nil {
			// the optimistic value stays; the next push is authoritative
			m.notice = "Failed to update status. Please try again."
			m.isErr = true
		}
		return m, nil

	case deleteDoneMsg:
		if msg.err != nil {
			m.notice = "Failed to remove anime."
			m.isErr = true
		} else {
			m.notice = fmt.Sprintf("%s removed.", msg.title)
			m.isErr = false
		}
		return m, nil

	case tea.KeyMsg:
		if m.confirm != nil {
			switch msg.String() {
			case "y", "Y":
				target := *m.confirm
				m.confirm = nil
				return m, func() tea.Msg { return deleteRequestMsg{id: target.id, title: target.title} }
			case "n", "N", "esc":
				m.confirm = nil
			}
			return m, nil
		}

		switch msg.String() {
		case "enter", " ":
			item, ok := m.list.SelectedItem().(entryItem)
			if !ok {
				return m, nil
			}
			// echo the controller's optimistic flip so the row updates now
			m = m.flipLocal(item.ID())
			id := item.ID()
			return m, func() tea.Msg { return toggleRequestMsg{id: id} }
		case "d", "backspace":
			if item, ok := m.list.SelectedItem().(entryItem); ok {
				m.confirm = &deleteTarget{id: item.ID(), title: item.Entry.Name}
			}
			return m, nil
		}

		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	return m, nil
}

// flipLocal mirrors the optimistic status change in the rendered items. The
// controller flips its mirror on its own; this only updates what is on screen
// before the remote round trip settles.
func (m ListModel) flipLocal(id string) ListModel {
	items := m.list.Items()
	for i, it := range items {
		e, ok := it.(entryItem)
		if !ok || e.ID() != id {
			continue
		}
		e.Entry.Status = toggled(e.Entry.Status)
		m.list.SetItem(i, e)
		break
	}
	m.notice = ""
	return m
}

func toggled(s tracker.Status) tracker.Status {
	if s == tracker.StatusCompleted {
		return tracker.StatusWatching
	}
	return tracker.StatusCompleted
}

func (m ListModel) View() string {
	if m.loading {
		return StatusMutedStyle.Width(m.width).Render("Loading your list...")
	}

	var status string
	switch {
	case m.confirm != nil:
		status = ErrorStyle.Width(m.width).Render(
			fmt.Sprintf("Remove %s from your list? (y/n)", m.confirm.title))
	case m.notice != "" && m.isErr:
		status = ErrorStyle.Width(m.width).Render(m.notice)
	case m.notice != "":
		status = StatusStyle.Width(m.width).Render(m.notice)
	}

	if len(m.list.Items()) == 0 {
		empty := gloss.JoinVertical(gloss.Center,
			StatusStyle.Width(m.width).Render("Your list is empty."),
			StatusMutedStyle.Width(m.width).Render("Go to the Search tab to add anime!"),
		)
		if status != "" {
			return status + "\n" + empty
		}
		return empty
	}

	boxWidth := min(max(m.width-8, 20), ListMaxWidth)
	listBlock := ListStyle.Width(boxWidth + 8).Render(m.list.View())
	body := List.Width(m.width).Render(listBlock)
	help := HelpStyle.Width(m.width).Render("enter toggle status • d remove • tab switch view")

	if status != "" {
		return status + "\n" + body + "\n" + help
	}
	return body + "\n" + help
}
