package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	gloss "github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"go.uber.org/zap"

	"anime_tracker/firebase"
)

// ---------------- LoginModel ----------------

type LoginModel struct {
	deps *Deps

	email    textinput.Model
	password textinput.Model
	focus    int
	spin     spinner.Model
	busy     bool
	errText  string
}

func NewLoginModel(deps *Deps) LoginModel {
	email := textinput.New()
	email.Placeholder = "Email"
	email.Prompt = ""
	email.TextStyle = PromptTextStyle
	email.Focus()

	password := textinput.New()
	password.Placeholder = "Password"
	password.Prompt = ""
	password.TextStyle = PromptTextStyle
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = PromptStyle

	return LoginModel{
		deps:     deps,
		email:    email,
		password: password,
		spin:     spin,
	}
}

func (m LoginModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m LoginModel) Update(msg tea.Msg) (LoginModel, tea.Cmd) {
	switch msg := msg.(type) {
	case authFailedMsg:
		m.busy = false
		m.errText = msg.err.Error()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}
		switch msg.String() {
		case "tab", "shift+tab", "up", "down":
			m.setFocus(1 - m.focus)
			return m, nil
		case "enter":
			return m.submit(false)
		case "ctrl+s":
			return m.submit(true)
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.email, cmd = m.email.Update(msg)
	cmds = append(cmds, cmd)
	m.password, cmd = m.password.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *LoginModel) setFocus(i int) {
	m.focus = i
	if i == 0 {
		m.email.Focus()
		m.password.Blur()
	} else {
		m.password.Focus()
		m.email.Blur()
	}
}

// submit validates locally before any remote call: both fields must be filled.
func (m LoginModel) submit(signUp bool) (LoginModel, tea.Cmd) {
	email := strings.TrimSpace(m.email.Value())
	password := m.password.Value()
	if email == "" || password == "" {
		m.errText = "Please enter both email and password."
		return m, nil
	}

	m.busy = true
	m.errText = ""
	return m, tea.Batch(m.spin.Tick, authCmd(m.deps, email, password, signUp))
}

func authCmd(deps *Deps, email, password string, signUp bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()

		var (
			s   firebase.Session
			err error
		)
		if signUp {
			s, err = deps.Auth.SignUp(ctx, email, password)
		} else {
			s, err = deps.Auth.SignIn(ctx, email, password)
		}
		if err != nil {
			deps.Log.Warn("auth failed", zap.String("email", email), zap.Bool("signup", signUp), zap.Error(err))
			return authFailedMsg{err: err}
		}
		deps.Log.Info("signed in", zap.String("user", s.UserID))
		return sessionMsg{session: s}
	}
}

func (m LoginModel) View(width, height int) string {
	boxWidth := 40
	if width > 0 && width-8 < boxWidth {
		boxWidth = width - 8
	}

	emailBox := PromptBoxStyle
	passwordBox := PromptBoxStyle
	if m.focus == 0 {
		emailBox = FocusedBoxStyle
	} else {
		passwordBox = FocusedBoxStyle
	}

	rows := []string{
		TitleStyle.Render("Welcome to"),
		AppNameStyle.Render("Anime Tracker"),
		"",
		emailBox.Width(boxWidth).Render(m.email.View()),
		passwordBox.Width(boxWidth).Render(m.password.View()),
	}

	if m.busy {
		rows = append(rows, "", m.spin.View()+" Signing in...")
	} else {
		if m.errText != "" {
			rows = append(rows, "", ErrorStyle.UnsetPadding().Render(wordwrap.String(m.errText, boxWidth)))
		}
		rows = append(rows, "", HelpStyle.Render("enter sign in • ctrl+s create account • ctrl+c quit"))
	}

	form := gloss.JoinVertical(gloss.Center, rows...)
	return gloss.Place(width, height, gloss.Center, gloss.Center, form)
}
