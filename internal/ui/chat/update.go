// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/Tri-Phung/chatbot-project/internal/coach"
	"github.com/Tri-Phung/chatbot-project/internal/commands"
	"github.com/Tri-Phung/chatbot-project/internal/export"
)

// Action names carried by ResultMsg.
const (
	actionChat     = "chat"
	actionImage    = "image"
	actionFinalize = "finalize"
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ResultMsg:
		return m.handleResult(msg)

	case StoreChangedMsg:
		m.updateViewport()
		return m, waitForSignal(m.changes)

	case StorageEventMsg:
		if _, err := m.store.Refresh(); err != nil {
			m.logger.Warn("refresh after storage event failed", zap.String("key", msg.Key), zap.Error(err))
		}
		m.updateViewport()
		return m, waitForStorageEvent(m.events)

	case ExportedMsg:
		if msg.Err != nil {
			m.showNotice("Xuất thất bại: " + msg.Err.Error())
		} else {
			m.status = "Đã xuất: " + msg.Path
		}
		return m, nil

	case spinner.TickMsg:
		if m.pending == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// =============================================================================
// RESIZE
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	// header (1) + input (border + rows) + status (1) + notice/spinner line (1)
	reserved := 1 + (inputHeight + 1) + 1 + 1
	vpHeight := m.height - reserved
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = m.width
	m.viewport.Height = vpHeight
	m.input.SetWidth(m.width)

	m.renderer.SetWidth(m.width - 1)
	m.updateViewport()
	return m, nil
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keyMap.Quit) {
		m.cancelMgr.cancel()
		m.quitting = true
		return m, tea.Quit
	}

	switch m.state {
	case StateNotice:
		// any key dismisses the notice
		m.notice = ""
		m.state = StateReady
		return m, nil

	case StateConfirmClear:
		switch {
		case key.Matches(msg, m.keyMap.Yes):
			m.state = StateReady
			return m.clearHistory()
		case key.Matches(msg, m.keyMap.No):
			m.state = StateReady
			m.status = "Đã hủy xóa lịch sử."
		}
		return m, nil

	case StateProfile, StateHelp:
		if key.Matches(msg, m.keyMap.Cancel) || msg.Type == tea.KeyEnter {
			m.state = StateReady
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keyMap.Cancel):
		if m.completion.Visible {
			m.completion.Clear()
			return m, nil
		}
		if m.cancelMgr.cancel() {
			m.status = "Đã hủy yêu cầu."
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Submit):
		if m.completion.Visible {
			m.input.SetValue(m.completion.Accept())
			m.input.CursorEnd()
			m.completion.Clear()
			return m, nil
		}
		return m.submit()

	case key.Matches(msg, m.keyMap.Complete):
		return m.complete(), nil

	case key.Matches(msg, m.keyMap.Profile):
		m.state = StateProfile
		return m, nil

	case key.Matches(msg, m.keyMap.Help):
		m.state = StateHelp
		return m, nil

	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keyMap.Home):
		m.viewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keyMap.End):
		m.viewport.GotoBottom()
		return m, nil
	}

	m.completion.Clear()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// complete fills the input from slash-command completion, cycling on repeat.
func (m Model) complete() Model {
	if m.completion.Visible {
		m.completion.Next()
		return m
	}
	value := m.input.Value()
	candidates := m.completer.Complete(value)
	switch len(candidates) {
	case 0:
		return m
	case 1:
		m.input.SetValue(commands.Apply(value, candidates[0]))
		m.input.CursorEnd()
	default:
		m.completion.Update(value, candidates)
	}
	return m
}

// =============================================================================
// SUBMIT AND COMMANDS
// =============================================================================

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	m.status = ""

	if !commands.IsCommand(text) {
		return m.dispatch(actionChat, text, func(ctx context.Context) (*coach.Result, error) {
			return m.coach.SendText(ctx, text)
		})
	}

	res := m.parser.Parse(text)
	if res.Error != nil {
		m.showNotice(res.Error.Error())
		return m, nil
	}

	switch res.Command.Name {
	case commands.CmdImage:
		path, note := commands.SplitFirst(res.RawArgs)
		return m.dispatch(actionImage, text, func(ctx context.Context) (*coach.Result, error) {
			return m.coach.SendImage(ctx, path, note)
		})

	case commands.CmdFinalize:
		clarifications := res.RawArgs
		return m.dispatch(actionFinalize, text, func(ctx context.Context) (*coach.Result, error) {
			return m.coach.FinalizeMeal(ctx, clarifications)
		})

	case commands.CmdClear:
		m.input.Reset()
		if m.coach.Busy() {
			m.showNotice(coach.ErrBusy.Error())
			return m, nil
		}
		m.state = StateConfirmClear
		return m, nil

	case commands.CmdProfile:
		m.input.Reset()
		m.state = StateProfile
		return m, nil

	case commands.CmdExport:
		m.input.Reset()
		return m, m.exportCmd(res.Args)

	case commands.CmdHelp:
		m.input.Reset()
		m.state = StateHelp
		return m, nil

	case commands.CmdQuit:
		m.cancelMgr.cancel()
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

// dispatch runs a coach action off the UI goroutine. Only one action is in
// flight at a time; the input is kept while another one is pending.
func (m Model) dispatch(action, input string, run func(ctx context.Context) (*coach.Result, error)) (tea.Model, tea.Cmd) {
	if m.pending > 0 {
		m.showNotice(coach.ErrBusy.Error())
		return m, nil
	}
	ctx := m.cancelMgr.begin(m.ctx)
	m.lastInput = input
	m.input.Reset()
	m.pending++

	cmd := func() tea.Msg {
		res, err := run(ctx)
		return ResultMsg{Action: action, Result: res, Err: err}
	}
	return m, tea.Batch(cmd, m.spinner.Tick)
}

func (m Model) handleResult(msg ResultMsg) (tea.Model, tea.Cmd) {
	if m.pending > 0 {
		m.pending--
	}
	if m.pending == 0 {
		m.cancelMgr.cancel()
	}

	if msg.Err != nil {
		var verr *coach.ValidationError
		if errors.As(msg.Err, &verr) && m.input.Value() == "" {
			m.input.SetValue(m.lastInput)
			m.input.CursorEnd()
		}
		if !errors.As(msg.Err, &verr) && !errors.Is(msg.Err, coach.ErrBusy) {
			m.logger.Error("action failed", zap.String("action", msg.Action), zap.Error(msg.Err))
		}
		m.showNotice(msg.Err.Error())
		return m, nil
	}

	if res := msg.Result; res != nil {
		if res.SaveErr != nil {
			m.status = "Không lưu được lịch sử: " + res.SaveErr.Error()
		} else if len(res.Profile) > 0 {
			fields := make([]string, len(res.Profile))
			for i, c := range res.Profile {
				fields[i] = c.Field.Label()
			}
			m.status = "Đã ghi nhớ: " + strings.Join(fields, ", ")
		}
	}
	m.updateViewport()
	m.viewport.GotoBottom()
	return m, nil
}

func (m Model) clearHistory() (tea.Model, tea.Cmd) {
	cleared, err := m.coach.ClearHistory(func(string) bool { return true })
	switch {
	case err != nil && !cleared:
		m.showNotice(err.Error())
	case err != nil:
		m.status = "Đã xóa, nhưng không lưu được: " + err.Error()
	default:
		m.status = "Đã xóa lịch sử trò chuyện."
	}
	m.updateViewport()
	return m, nil
}

func (m Model) exportCmd(args []string) tea.Cmd {
	format, path := "", ""
	if len(args) > 0 {
		format = args[0]
	}
	if len(args) > 1 {
		path = args[1]
	}
	snap := export.Snapshot{
		Messages:   m.store.Messages(),
		Profile:    m.store.Profile(),
		ExportedAt: time.Now(),
	}
	opts := export.DefaultOptions()
	if m.exportDir != "" {
		opts.OutputDir = m.exportDir
	}
	return func() tea.Msg {
		written, err := export.WriteFormat(snap, format, path, opts)
		if err != nil {
			return ExportedMsg{Err: err}
		}
		return ExportedMsg{Path: written}
	}
}

func (m *Model) showNotice(text string) {
	m.notice = text
	m.state = StateNotice
}
