// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the full-screen Bubble Tea chat interface.
package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/Tri-Phung/chatbot-project/internal/coach"
	"github.com/Tri-Phung/chatbot-project/internal/commands"
	"github.com/Tri-Phung/chatbot-project/internal/logging"
	"github.com/Tri-Phung/chatbot-project/internal/session"
	"github.com/Tri-Phung/chatbot-project/internal/ui/render"
)

// =============================================================================
// CHAT STATE
// =============================================================================

// State represents the current state of the chat view.
type State int

const (
	StateReady        State = iota // Ready for input
	StateNotice                    // Blocking notice until a key is pressed
	StateConfirmClear              // Waiting for y/n on clearing the history
	StateProfile                   // Profile overlay
	StateHelp                      // Help overlay
)

// Input limits.
const (
	inputCharLimit = 4000
	inputHeight    = 3
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Options wires the chat model to the rest of the application.
type Options struct {
	Coach    *coach.Coach
	Renderer *render.Renderer

	// Events delivers storage keys rewritten by other processes. Optional.
	Events <-chan string

	// ExportDir receives /export files without an explicit path.
	ExportDir string

	Logger  *zap.Logger
	Context context.Context
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	state State

	coach    *coach.Coach
	store    *session.Store
	renderer *render.Renderer
	logger   *zap.Logger
	ctx      context.Context

	// Dimensions
	width  int
	height int

	// Components
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	keyMap   KeyMap

	// Slash commands
	parser     *commands.Parser
	registry   *commands.Registry
	completer  *commands.Completer
	completion *commands.CompletionState

	// Requests
	cancelMgr *cancelManager
	pending   int
	lastInput string

	// Notices
	notice string
	status string

	// Subscriptions
	changes   chan struct{}
	events    <-chan string
	exportDir string

	quitting bool
}

// New creates the chat model and subscribes it to store changes.
func New(opts Options) Model {
	ta := textarea.New()
	ta.Placeholder = "Nhập tin nhắn hoặc /help..."
	ta.ShowLineNumbers = false
	ta.Prompt = "> "
	ta.CharLimit = inputCharLimit
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Line

	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	rend := opts.Renderer
	if rend == nil {
		rend = render.New(nil, render.Options{})
	}
	sp.Style = rend.Theme().Spinner

	registry := commands.NewRegistry()
	m := Model{
		state:      StateReady,
		coach:      opts.Coach,
		store:      opts.Coach.Store(),
		renderer:   rend,
		logger:     logging.OrNop(opts.Logger).Named("tui"),
		ctx:        ctx,
		viewport:   viewport.New(render.DefaultWidth, 20),
		input:      ta,
		spinner:    sp,
		keyMap:     DefaultKeyMap(),
		parser:     commands.NewParser(registry),
		registry:   registry,
		completer:  commands.NewCompleter(registry),
		completion: commands.NewCompletionState(),
		cancelMgr:  newCancelManager(),
		changes:    make(chan struct{}, 1),
		events:     opts.Events,
		exportDir:  opts.ExportDir,
	}

	changes := m.changes
	m.store.SetOnChange(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	m.updateViewport()
	return m
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts the cursor blink and the store subscriptions.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		waitForSignal(m.changes),
		waitForStorageEvent(m.events),
	)
}

// View renders the model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderChat()
}

// State returns the current view state.
func (m Model) State() State {
	return m.state
}

// Notice returns the blocking notice text, if any.
func (m Model) Notice() string {
	return m.notice
}

// Busy reports whether a coach action is in flight.
func (m Model) Busy() bool {
	return m.pending > 0
}

// updateViewport re-renders the thread and keeps the view pinned to the
// bottom when it was already there.
func (m *Model) updateViewport() {
	atBottom := m.viewport.AtBottom() || m.viewport.TotalLineCount() == 0
	m.viewport.SetContent(m.renderer.Thread(m.store.Messages()))
	if atBottom {
		m.viewport.GotoBottom()
	}
}
