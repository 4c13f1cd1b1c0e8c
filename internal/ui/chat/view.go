// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Tri-Phung/chatbot-project/internal/coach"
	"github.com/Tri-Phung/chatbot-project/internal/ui/render"
	"github.com/Tri-Phung/chatbot-project/internal/ui/styles"
	"github.com/Tri-Phung/chatbot-project/internal/util"
)

// maxCompletionRows limits the completion list height.
const maxCompletionRows = 6

// =============================================================================
// MAIN RENDER
// =============================================================================

// renderChat renders the complete chat view.
// Layout: header (1) + body (viewport or overlay) + info line (1) + input + status (1)
func (m Model) renderChat() string {
	if m.width == 0 || m.height == 0 {
		return "Đang tải..."
	}

	header := m.renderHeader()
	info := m.renderInfoLine()
	input := m.theme().InputContainer.Width(m.width).Render(m.input.View())
	status := m.renderStatusBar()

	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(info) -
		lipgloss.Height(input) - lipgloss.Height(status)
	if bodyHeight < 1 {
		bodyHeight = 1
	}

	var body string
	switch m.state {
	case StateProfile:
		body = m.renderOverlay(m.renderer.ProfileView(m.store.Profile()), bodyHeight)
	case StateHelp:
		body = m.renderOverlay(m.renderHelp(), bodyHeight)
	default:
		if m.completion.Visible {
			body = m.renderWithCompletions(bodyHeight)
		} else {
			m.viewport.Height = bodyHeight
			body = m.viewport.View()
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, info, input, status)
}

func (m Model) theme() *styles.Theme {
	return m.renderer.Theme()
}

// =============================================================================
// COMPONENTS
// =============================================================================

func (m Model) renderHeader() string {
	t := m.theme()
	title := t.HeaderTitle.Render("PT Coach")
	msgs := fmt.Sprintf("%d tin nhắn", m.store.Len())
	missing := len(m.store.Profile().Missing())
	prof := "hồ sơ đủ"
	if missing > 0 {
		prof = fmt.Sprintf("hồ sơ thiếu %d", missing)
	}
	line := title + "  " + t.ShortcutDesc.Render(msgs+" · "+prof)
	return t.Header.Width(m.width).MaxWidth(m.width).Render(line)
}

// renderInfoLine shows, in priority order, the confirmation prompt, the
// blocking notice, the typing indicator or the last status.
func (m Model) renderInfoLine() string {
	t := m.theme()
	switch {
	case m.state == StateConfirmClear:
		return t.Confirm.Render(coach.ClearPrompt + " (y/n)")
	case m.state == StateNotice:
		return t.Notice.Render(styles.StatusIndicators.Warning+" "+util.OneLine(m.notice)) +
			" " + t.ShortcutDesc.Render("(nhấn phím bất kỳ)")
	case m.pending > 0:
		return m.renderer.Typing(m.spinner.View())
	case m.status != "":
		return t.InfoStyle.Render(util.TruncateWidth(m.status, m.width))
	}
	return ""
}

func (m Model) renderStatusBar() string {
	t := m.theme()
	var parts []string
	for _, b := range m.keyMap.ShortHelp() {
		h := b.Help()
		parts = append(parts, t.ShortcutKey.Render(h.Key)+" "+t.ShortcutDesc.Render(h.Desc))
	}
	return t.StatusBar.Width(m.width).Render(strings.Join(parts, "  "))
}

func (m Model) renderOverlay(content string, height int) string {
	hint := m.theme().ShortcutDesc.Render("Esc để quay lại")
	return lipgloss.NewStyle().Height(height).MaxHeight(height).Render(content + "\n\n" + hint)
}

func (m Model) renderHelp() string {
	t := m.theme()
	var sb strings.Builder
	sb.WriteString(t.HeaderTitle.Render("Lệnh"))
	sb.WriteString("\n")
	for _, cmd := range m.registry.Visible() {
		sb.WriteString("  ")
		sb.WriteString(t.ShortcutKey.Render(util.PadRight(cmd.Usage, 34)))
		sb.WriteString(" ")
		sb.WriteString(t.ShortcutDesc.Render(cmd.Description))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(t.HeaderTitle.Render("Phím tắt"))
	sb.WriteString("\n")
	for _, group := range m.keyMap.FullHelp() {
		for _, b := range group {
			h := b.Help()
			sb.WriteString("  ")
			sb.WriteString(t.ShortcutKey.Render(util.PadRight(h.Key, 12)))
			sb.WriteString(" ")
			sb.WriteString(t.ShortcutDesc.Render(h.Desc))
			sb.WriteString("\n")
		}
	}
	return render.Wrap(strings.TrimRight(sb.String(), "\n"), m.width)
}

// renderWithCompletions shrinks the viewport to make room for the list.
func (m Model) renderWithCompletions(height int) string {
	t := m.theme()
	items := m.completion.Completions
	start := 0
	if m.completion.Selected >= maxCompletionRows {
		start = m.completion.Selected - maxCompletionRows + 1
	}
	end := start + maxCompletionRows
	if end > len(items) {
		end = len(items)
	}

	var rows []string
	for i := start; i < end; i++ {
		c := items[i]
		row := util.PadRight(c.Display, 24) + " " + c.Description
		row = util.TruncateWidth(row, m.width-2)
		if i == m.completion.Selected {
			rows = append(rows, t.ShortcutKey.Render("> "+row))
		} else {
			rows = append(rows, t.ShortcutDesc.Render("  "+row))
		}
	}
	list := strings.Join(rows, "\n")

	vp := m.viewport
	vp.Height = height - lipgloss.Height(list)
	if vp.Height < 1 {
		return list
	}
	return lipgloss.JoinVertical(lipgloss.Left, vp.View(), list)
}
