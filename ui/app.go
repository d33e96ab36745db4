package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	gloss "github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"go.uber.org/zap"

	"anime_tracker/catalog"
	"anime_tracker/firebase"
	"anime_tracker/tracker"
	"anime_tracker/utils"
)

type AppState int

const (
	StateLogin AppState = iota
	StateTabs
)

type Tab int

const (
	TabSearch Tab = iota
	TabMyList
	TabStats
	tabCount
)

var tabNames = []string{"Search", "My List", "Stats"}

// Deps bundles the external collaborators every view needs. Built once in
// RunApp and threaded down; there is no ambient lookup.
type Deps struct {
	Catalog *catalog.Client
	Auth    *firebase.AuthClient
	Ctrl    *tracker.Controller
	Session *SessionBox
	Log     *zap.Logger
}

// SessionBox owns the process-wide session value: set on login, replaced on
// refresh, cleared on logout. The store reads the current token through it.
type SessionBox struct {
	mu sync.RWMutex
	s  firebase.Session
}

func (b *SessionBox) Set(s firebase.Session) {
	b.mu.Lock()
	b.s = s
	b.mu.Unlock()
}

func (b *SessionBox) Clear() { b.Set(firebase.Session{}) }

func (b *SessionBox) Current() firebase.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.s
}

// Token is the firebase.TokenSource for store calls.
func (b *SessionBox) Token() string { return b.Current().IDToken }

// ---------------- App-level messages ----------------

type errMsg struct{ err error }

// session became known (login, sign-up or restore)
type sessionMsg struct{ session firebase.Session }

// no persisted session could be restored
type noSessionMsg struct{}

type authFailedMsg struct{ err error }

type signOutMsg struct{}

// one push from the store subscription, tagged with its generation
type pushMsg struct {
	gen  int
	snap tracker.Snapshot
}

type subClosedMsg struct{ gen int }

type addRequestMsg struct{ item catalog.Anime }

type addDoneMsg struct {
	title string
	err   error
}

type toggleRequestMsg struct{ id string }

type toggleDoneMsg struct {
	id  string
	err error
}

type deleteRequestMsg struct{ id, title string }

type deleteDoneMsg struct {
	title string
	err   error
}

// ---------------- AppModel ----------------

type AppModel struct {
	deps *Deps

	state     AppState
	activeTab Tab
	booting   bool

	login  LoginModel
	search SearchModel
	mylist ListModel
	stats  StatsModel

	sub    tracker.Subscription
	hasSub bool

	width  int
	height int
}

func NewAppModel(deps *Deps) AppModel {
	return AppModel{
		deps:    deps,
		state:   StateLogin,
		booting: true,
		login:   NewLoginModel(deps),
		search:  NewSearchModel(deps),
		mylist:  NewListModel(deps),
		stats:   NewStatsModel(),
	}
}

func (m AppModel) Init() tea.Cmd {
	return tea.Batch(restoreSessionCmd(m.deps), m.login.Init())
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case sessionMsg:
		return m.handleSession(msg.session)

	case noSessionMsg:
		m.booting = false
		return m, nil

	case signOutMsg:
		return m.handleSignOut()

	case pushMsg:
		return m.handlePush(msg)

	case subClosedMsg:
		if m.hasSub && msg.gen == m.sub.Gen {
			m.hasSub = false
		}
		return m, nil

	case addRequestMsg:
		return m, addCmd(m.deps, msg.item)

	case toggleRequestMsg:
		return m, toggleCmd(m.deps, msg.id)

	case deleteRequestMsg:
		return m, deleteCmd(m.deps, msg.id, msg.title)

	// completion messages go to the model that owns them, not the active tab:
	// the user may have switched tabs while the call was in flight
	case searchDebounceMsg, searchResultsMsg, addDoneMsg:
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd

	case toggleDoneMsg:
		var cmd tea.Cmd
		m.mylist, cmd = m.mylist.Update(msg)
		// the controller's mirror flipped optimistically, with or without the
		// remote update landing; the counts follow it either way
		m.stats = m.stats.WithStats(m.deps.Ctrl.Stats())
		return m, cmd

	case deleteDoneMsg:
		var cmd tea.Cmd
		m.mylist, cmd = m.mylist.Update(msg)
		return m, cmd

	case errMsg:
		m.deps.Log.Error("ui error", zap.Error(msg.err))
		return m, nil
	}

	switch m.state {
	case StateLogin:
		var cmd tea.Cmd
		m.login, cmd = m.login.Update(msg)
		return m, cmd
	case StateTabs:
		return m.handleTabs(msg)
	default:
		return m, nil
	}
}

// handleSession moves the app into the tabs: the session is published for the
// store's token source, persisted, and a list subscription is opened.
func (m AppModel) handleSession(s firebase.Session) (tea.Model, tea.Cmd) {
	m.booting = false
	m.deps.Session.Set(s)
	if err := utils.SaveSession(s); err != nil {
		m.deps.Log.Warn("could not persist session", zap.Error(err))
	}

	m.state = StateTabs
	m.activeTab = TabSearch
	m.stats = m.stats.WithEmail(s.Email)

	var cmds []tea.Cmd
	sub, err := m.deps.Ctrl.Subscribe(s.UserID)
	if err != nil {
		m.mylist = m.mylist.WithNotice("Failed to load your list.", true)
	} else {
		m.sub, m.hasSub = sub, true
		m.mylist = m.mylist.WithLoading(true)
		cmds = append(cmds, waitForPush(sub))
	}

	var loadCmd tea.Cmd
	m.search, loadCmd = m.search.StartTopLoad()
	cmds = append(cmds, loadCmd, m.syncWindowSizeCmd())
	return m, tea.Batch(cmds...)
}

func (m AppModel) handleSignOut() (tea.Model, tea.Cmd) {
	m.deps.Ctrl.SignOut()
	m.deps.Session.Clear()
	if err := utils.ClearSession(); err != nil {
		m.deps.Log.Warn("could not clear persisted session", zap.Error(err))
	}

	m.hasSub = false
	m.state = StateLogin
	m.login = NewLoginModel(m.deps)
	m.search = NewSearchModel(m.deps)
	m.mylist = NewListModel(m.deps)
	m.stats = NewStatsModel()
	return m, tea.Batch(m.login.Init(), m.syncWindowSizeCmd())
}

// handlePush applies one store push. A push from a superseded subscription is
// dropped without touching the mirror and without re-arming the wait.
func (m AppModel) handlePush(msg pushMsg) (tea.Model, tea.Cmd) {
	if !m.hasSub || msg.gen != m.sub.Gen {
		return m, nil
	}

	applied := m.deps.Ctrl.Apply(msg.gen, msg.snap)
	m.mylist = m.mylist.WithLoading(false)
	if msg.snap.Err != nil {
		// surfaced once; no automatic resubscribe
		m.mylist = m.mylist.WithNotice("Failed to load your list.", true)
		return m, nil
	}
	if applied {
		m.mylist = m.mylist.WithEntries(m.deps.Ctrl.Entries())
		m.stats = m.stats.WithStats(m.deps.Ctrl.Stats())
	}
	return m, waitForPush(m.sub)
}

func (m AppModel) handleTabs(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, m.syncWindowSizeCmd()
		case "shift+tab":
			m.activeTab = (m.activeTab + tabCount - 1) % tabCount
			return m, m.syncWindowSizeCmd()
		}
	}

	var cmd tea.Cmd
	switch m.activeTab {
	case TabSearch:
		m.search, cmd = m.search.Update(msg)
	case TabMyList:
		m.mylist, cmd = m.mylist.Update(msg)
	case TabStats:
		m.stats, cmd = m.stats.Update(msg)
	}
	return m, cmd
}

func (m AppModel) View() string {
	if m.booting {
		return gloss.Place(m.width, m.height, gloss.Center, gloss.Center,
			StatusMutedStyle.Render("Checking session..."))
	}

	if m.state == StateLogin {
		return m.login.View(m.width, m.height)
	}

	var renderedTabs []string
	for i, name := range tabNames {
		if Tab(i) == m.activeTab {
			renderedTabs = append(renderedTabs, ActiveTabStyle.Render(name))
		} else {
			renderedTabs = append(renderedTabs, InactiveTabStyle.Render(name))
		}
	}
	tabsRow := TabsRow.Width(m.width).Render(gloss.JoinHorizontal(gloss.Top, renderedTabs...))

	lineWidth := m.width
	if lineWidth > 48 {
		lineWidth = 48
	}
	underlineRow := UnderlineRow.Width(m.width).Render(strings.Repeat("─", max(lineWidth, 0)))

	var body string
	switch m.activeTab {
	case TabSearch:
		body = m.search.View()
	case TabMyList:
		body = m.mylist.View()
	case TabStats:
		body = m.stats.View(m.width)
	}

	return tabsRow + "\n" + underlineRow + "\n" + body
}

func (m AppModel) syncWindowSizeCmd() tea.Cmd {
	return func() tea.Msg {
		return tea.WindowSizeMsg{Width: m.width, Height: m.height}
	}
}

// ---------------- Commands ----------------

const callTimeout = 15 * time.Second

func restoreSessionCmd(deps *Deps) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		s, ok := utils.RestoreSession(ctx, deps.Auth)
		if !ok {
			return noSessionMsg{}
		}
		deps.Log.Info("session restored", zap.String("user", s.UserID))
		return sessionMsg{session: s}
	}
}

// waitForPush blocks on the subscription and feeds the next push back into the
// event loop, where handlePush re-arms it. Closing the stream ends the chain.
func waitForPush(sub tracker.Subscription) tea.Cmd {
	return func() tea.Msg {
		snap, ok := sub.Next()
		if !ok {
			return subClosedMsg{gen: sub.Gen}
		}
		return pushMsg{gen: sub.Gen, snap: snap}
	}
}

func addCmd(deps *Deps, item catalog.Anime) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		err := deps.Ctrl.Add(ctx, item)
		return addDoneMsg{title: item.Name, err: err}
	}
}

func toggleCmd(deps *Deps, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		_, err := deps.Ctrl.Toggle(ctx, id)
		return toggleDoneMsg{id: id, err: err}
	}
}

func deleteCmd(deps *Deps, id, title string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		err := deps.Ctrl.Remove(ctx, id)
		return deleteDoneMsg{title: title, err: err}
	}
}

// ---------------- Shared list delegate ----------------

type animeDelegate struct {
	list.DefaultDelegate
}

func (d *animeDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	var title, desc string
	var descStyle *gloss.Style

	switch v := item.(type) {
	case catalog.Anime:
		title = v.Title()
		desc = v.Description()
	case entryItem:
		title = v.Title()
		desc = v.Description()
		if index != m.Index() {
			s := WatchingStyle
			if v.Entry.Status == tracker.StatusCompleted {
				s = CompletedStyle
			}
			descStyle = &s
		}
	default:
		title = "?"
	}

	desc = runewidth.Truncate(desc, max(m.Width()-10, 0), "…")
	if index == m.Index() {
		title = SelectedTitleStyle.Render(title)
		desc = SelectedDescStyle.Render(desc)
	} else {
		title = NormalTitleStyle.Render(title)
		if descStyle != nil {
			desc = descStyle.PaddingLeft(2).Render(desc)
		} else {
			desc = NormalDescStyle.Render(desc)
		}
	}
	fmt.Fprintf(w, "%s\n%s", title, desc)
}

func (d *animeDelegate) Height() int  { return 2 }
func (d *animeDelegate) Spacing() int { return 1 }
func (d *animeDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd {
	return nil
}

func newItemList() list.Model {
	l := list.New(nil, &animeDelegate{}, 0, 0)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetShowTitle(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	return l
}

// ---------------- Entry point ----------------

func RunApp() {
	cfg := utils.AppConfig
	logger := utils.NewLogger(cfg.Log.File)
	defer logger.Sync()

	if cfg.Firebase.APIKey == "" || cfg.Firebase.DatabaseURL == "" {
		fmt.Printf("Firebase project is not configured.\nSet firebase.api_key and firebase.database_url in %s\n",
			filepath.Join(utils.ConfigDir(), "config.toml"))
		os.Exit(1)
	}

	session := &SessionBox{}
	deps := &Deps{
		Catalog: catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.Limit),
		Auth:    firebase.NewAuthClient(cfg.Firebase.APIKey),
		Session: session,
		Log:     logger,
	}
	store := firebase.NewDatabase(cfg.Firebase.DatabaseURL, session.Token, logger)
	deps.Ctrl = tracker.NewController(store, logger)

	p := tea.NewProgram(NewAppModel(deps), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Println("Error running program:", err)
		os.Exit(1)
	}
}
