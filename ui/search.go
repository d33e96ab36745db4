package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	gloss "github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"anime_tracker/catalog"
)

// Keystrokes only fire a catalog query after a quiet window, and only past a
// minimum length; both taken from the original app.
const (
	debounceDelay  = 500 * time.Millisecond
	minQueryLength = 3
)

// searchDebounceMsg is the debounce timer firing. gen identifies the
// keystroke that armed it; a newer keystroke bumps the generation and the
// stale timer is ignored when it lands.
type searchDebounceMsg struct {
	gen   int
	query string
}

// searchResultsMsg carries catalog results (or failure) tagged with the
// generation of the query that produced them.
type searchResultsMsg struct {
	gen   int
	query string
	items []catalog.Anime
	err   error
}

// ---------------- SearchModel ----------------

type SearchModel struct {
	deps *Deps

	input   textinput.Model
	results list.Model

	gen       int
	lastQuery string
	loading   bool
	searching bool
	notice    string
	noticeErr bool

	width  int
	height int
}

func NewSearchModel(deps *Deps) SearchModel {
	input := textinput.New()
	input.Placeholder = "Search for Anime..."
	input.Prompt = "  "
	input.PromptStyle = PromptStyle
	input.TextStyle = PromptTextStyle
	input.Focus()

	return SearchModel{
		deps:    deps,
		input:   input,
		results: newItemList(),
	}
}

// StartTopLoad kicks off the initial top-airing fetch; also used when the
// query is cleared.
func (m SearchModel) StartTopLoad() (SearchModel, tea.Cmd) {
	m.gen++ // supersedes any in-flight query
	m.loading = true
	m.searching = false
	m.notice = ""
	return m, topAiringCmd(m.deps, m.gen)
}

func (m SearchModel) Update(msg tea.Msg) (SearchModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.results.SetSize(min(m.width-8, ListMaxWidth), max(m.height-10, 4))
		return m, nil

	case searchDebounceMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.loading = true
		m.searching = true
		m.notice = ""
		return m, searchCmd(m.deps, msg.gen, msg.query)

	case searchResultsMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.loading = false
		m.searching = false
		if msg.err != nil {
			m.notice = "Failed to fetch anime list."
			m.noticeErr = true
			return m, nil
		}
		items := make([]list.Item, len(msg.items))
		for i, a := range msg.items {
			items[i] = a
		}
		m.results.SetItems(items)
		m.results.Select(0)
		return m, nil

	case addDoneMsg:
		if msg.err != nil {
			m.notice = "Failed to add anime to list."
			m.noticeErr = true
		} else {
			m.notice = fmt.Sprintf("%s added to your list!", msg.title)
			m.noticeErr = false
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.results, cmd = m.results.Update(msg)
			return m, cmd
		case "enter":
			if item, ok := m.results.SelectedItem().(catalog.Anime); ok {
				return m, func() tea.Msg { return addRequestMsg{item: item} }
			}
			return m, nil
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m.afterKeystroke(cmd)
	}

	return m, nil
}

// afterKeystroke re-arms or cancels the debounce based on the new query.
func (m SearchModel) afterKeystroke(cmd tea.Cmd) (SearchModel, tea.Cmd) {
	query := m.input.Value()
	if query == m.lastQuery {
		return m, cmd
	}
	m.lastQuery = query

	switch {
	case len([]rune(query)) >= minQueryLength:
		m.gen++
		m.notice = ""
		return m, tea.Batch(cmd, debounceCmd(m.gen, query))
	case query == "":
		var loadCmd tea.Cmd
		m, loadCmd = m.StartTopLoad()
		return m, tea.Batch(cmd, loadCmd)
	default:
		// too short: cancel whatever was pending, keep current results
		m.gen++
		return m, cmd
	}
}

func (m SearchModel) View() string {
	boxWidth := min(max(m.width-8, 20), ListMaxWidth)
	input := List.Width(m.width).Render(PromptBoxStyle.Width(boxWidth).Render(m.input.View()))

	var status string
	switch {
	case m.loading && m.searching:
		status = StatusStyle.Width(m.width).Render("Searching...")
	case m.loading:
		status = StatusStyle.Width(m.width).Render("Loading Top Anime...")
	case m.notice != "" && m.noticeErr:
		status = ErrorStyle.Width(m.width).Render(m.notice)
	case m.notice != "":
		status = StatusStyle.Width(m.width).Render(m.notice)
	}

	var body string
	switch {
	case m.loading:
		body = ""
	case len(m.results.Items()) == 0 && m.lastQuery != "":
		body = StatusMutedStyle.Width(m.width).Render(fmt.Sprintf("No results found for %q", m.lastQuery))
	default:
		listBlock := ListStyle.Width(boxWidth + 8).Render(m.results.View())
		body = List.Width(m.width).Render(listBlock)
	}

	out := input
	if status != "" {
		out = gloss.JoinVertical(gloss.Left, out, status)
	}
	if body != "" {
		out = gloss.JoinVertical(gloss.Left, out, body)
	}
	return out
}

// ---------------- Commands ----------------

func debounceCmd(gen int, query string) tea.Cmd {
	return tea.Tick(debounceDelay, func(time.Time) tea.Msg {
		return searchDebounceMsg{gen: gen, query: query}
	})
}

func topAiringCmd(deps *Deps, gen int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		items, err := deps.Catalog.TopAiring(ctx)
		if err != nil {
			deps.Log.Error("top airing fetch failed", zap.Error(err))
		}
		return searchResultsMsg{gen: gen, items: items, err: err}
	}
}

func searchCmd(deps *Deps, gen int, query string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		items, err := deps.Catalog.Search(ctx, query)
		if err != nil {
			deps.Log.Error("search failed", zap.String("query", query), zap.Error(err))
		}
		return searchResultsMsg{gen: gen, query: query, items: items, err: err}
	}
}
