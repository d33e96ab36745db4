package ui

import (
	gloss "github.com/charmbracelet/lipgloss"
)

// The original mobile app's palette: near-black background, magenta accent,
// amber for Watching, green for Completed.
const (
	ColorAccent    = "#e028b1"
	ColorText      = "#ffffff"
	ColorMuted     = "#888888"
	ColorDim       = "#585b70"
	ColorWatching  = "#FFC107"
	ColorCompleted = "#4CAF50"
	ColorDanger    = "#ff4d4d"
)

const (
	TabSpacing    = 4
	TabPaddingTop = 1
	TabPaddingBot = 0
	ListMaxWidth  = 60
)

// Tab styles
var (
	ActiveTabStyle = gloss.NewStyle().
			Foreground(gloss.Color(ColorAccent)).
			Padding(TabPaddingTop, TabSpacing, TabPaddingBot, TabSpacing).
			Align(gloss.Center).
			Bold(true)

	InactiveTabStyle = gloss.NewStyle().
				Foreground(gloss.Color(ColorDim)).
				Padding(TabPaddingTop, TabSpacing, TabPaddingBot, TabSpacing).
				Align(gloss.Center)

	TabsRow = gloss.NewStyle().
		Align(gloss.Center)

	UnderlineRow = gloss.NewStyle().
			Foreground(gloss.Color("#363a4f")).
			Align(gloss.Center)
)

// List container styles
var (
	ListStyle = gloss.NewStyle().
			Align(gloss.Left).
			Padding(1, 4)

	List = gloss.NewStyle().
		Align(gloss.Center)
)

// Listed item styles
var (
	SelectedTitleStyle = gloss.NewStyle().
				Foreground(gloss.Color(ColorAccent)).
				BorderLeft(true).
				BorderStyle(gloss.NormalBorder()).
				BorderForeground(gloss.Color(ColorAccent)).
				PaddingLeft(1).
				Bold(true)

	SelectedDescStyle = gloss.NewStyle().
				Foreground(gloss.Color("#bac2de")).
				BorderLeft(true).
				BorderStyle(gloss.NormalBorder()).
				BorderForeground(gloss.Color(ColorAccent)).
				PaddingLeft(1)

	NormalTitleStyle = gloss.NewStyle().
				Foreground(gloss.Color(ColorMuted)).
				PaddingLeft(2)

	NormalDescStyle = gloss.NewStyle().
			Foreground(gloss.Color(ColorDim)).
			PaddingLeft(2)
)

// Status line styles
var (
	StatusStyle = gloss.NewStyle().
			Foreground(gloss.Color(ColorAccent)).
			PaddingLeft(4).
			PaddingRight(4).
			PaddingTop(1).
			Align(gloss.Center)

	StatusMutedStyle = gloss.NewStyle().
				Foreground(gloss.Color(ColorDim)).
				PaddingLeft(4).
				PaddingTop(1).
				Align(gloss.Center)

	ErrorStyle = gloss.NewStyle().
			Foreground(gloss.Color(ColorDanger)).
			PaddingLeft(4).
			PaddingRight(4).
			PaddingTop(1).
			Align(gloss.Center)

	WatchingStyle  = gloss.NewStyle().Foreground(gloss.Color(ColorWatching))
	CompletedStyle = gloss.NewStyle().Foreground(gloss.Color(ColorCompleted))
)

// Login / input styles
var (
	TitleStyle = gloss.NewStyle().
			Foreground(gloss.Color(ColorText))

	AppNameStyle = gloss.NewStyle().
			Foreground(gloss.Color(ColorAccent)).
			Bold(true)

	PromptStyle = gloss.NewStyle().
			Foreground(gloss.Color(ColorAccent))

	PromptTextStyle = gloss.NewStyle().
			Foreground(gloss.Color(ColorText))

	PromptBoxStyle = gloss.NewStyle().
			Border(gloss.RoundedBorder()).
			BorderForeground(gloss.Color("#333333")).
			Padding(0, 1)

	FocusedBoxStyle = gloss.NewStyle().
			Border(gloss.RoundedBorder()).
			BorderForeground(gloss.Color(ColorAccent)).
			Padding(0, 1)

	HelpStyle = gloss.NewStyle().
			Foreground(gloss.Color(ColorDim)).
			PaddingTop(1).
			Align(gloss.Center)

	StatValueStyle = gloss.NewStyle().
			Foreground(gloss.Color(ColorAccent)).
			Bold(true)

	StatLabelStyle = gloss.NewStyle().
			Foreground(gloss.Color(ColorMuted))
)
