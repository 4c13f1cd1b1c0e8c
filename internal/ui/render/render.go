// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns the conversation log and profile into terminal text.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"

	"github.com/Tri-Phung/chatbot-project/internal/model"
	"github.com/Tri-Phung/chatbot-project/internal/ui/styles"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultWidth is used when the terminal width is unknown.
	DefaultWidth = 80

	// MinWidth is the narrowest width content is wrapped to.
	MinWidth = 20

	// FollowUpHint is shown under meal analyses that need more detail.
	FollowUpHint = "Cần bổ sung khẩu phần: dùng /finalize <mô tả lượng ăn> để hoàn tất."

	// TypingText is shown while a request is in flight.
	TypingText = "Coach đang trả lời..."

	// bodyIndent matches the left padding of the message body styles.
	bodyIndent = 2
)

// =============================================================================
// RENDERER
// =============================================================================

// Options configures a Renderer.
type Options struct {
	Width          int
	Markdown       bool
	ShowTimestamps bool
}

// Renderer formats messages with a theme. It is not safe for concurrent use.
type Renderer struct {
	theme *styles.Theme
	opts  Options
	md    *glamour.TermRenderer
}

// New creates a Renderer. A nil theme uses the plain notty theme.
func New(theme *styles.Theme, opts Options) *Renderer {
	if theme == nil {
		theme = styles.NewTheme(styles.ModeNoTTY, true)
	}
	r := &Renderer{theme: theme, opts: opts}
	r.SetWidth(opts.Width)
	return r
}

// Theme returns the renderer's theme.
func (r *Renderer) Theme() *styles.Theme {
	return r.theme
}

// Width returns the current wrap width.
func (r *Renderer) Width() int {
	return r.opts.Width
}

// SetWidth changes the wrap width and rebuilds the Markdown renderer.
func (r *Renderer) SetWidth(width int) {
	if width <= 0 {
		width = DefaultWidth
	}
	if width < MinWidth {
		width = MinWidth
	}
	r.opts.Width = width
	r.md = nil
	if !r.opts.Markdown {
		return
	}

	style := r.theme.Mode
	if r.theme.Plain() {
		style = styles.ModeNoTTY
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(r.contentWidth()),
		glamour.WithColorProfile(r.theme.ColorProfile),
	)
	if err == nil {
		r.md = md
	}
}

func (r *Renderer) contentWidth() int {
	w := r.opts.Width - bodyIndent
	if w < MinWidth-bodyIndent {
		w = MinWidth - bodyIndent
	}
	return w
}

// =============================================================================
// MESSAGES
// =============================================================================

// Thread renders msgs in order separated by blank lines.
func (r *Renderer) Thread(msgs []model.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, r.Message(m))
	}
	return strings.Join(parts, "\n\n")
}

// Message renders one message: a header line with the role label and the body.
// Guard replies are boxed with an alert label, errors use the warning style,
// and meal analyses that need a follow-up get a hint line.
func (r *Renderer) Message(m model.Message) string {
	t := r.theme
	var sb strings.Builder
	sb.WriteString(r.header(m))
	sb.WriteString("\n")

	switch {
	case m.IsGuard():
		label := t.GuardLabel.Render(styles.StatusIndicators.Guard)
		body := label + "\n" + Wrap(m.Content, r.contentWidth()-2)
		sb.WriteString(t.GuardBox.Render(body))
	case m.IsError():
		sb.WriteString(t.ErrorBody.Render(Wrap(m.Content, r.contentWidth())))
	case m.Role == model.RoleAssistant:
		sb.WriteString(t.AssistantBody.Render(r.markdown(m.Content)))
	default:
		sb.WriteString(t.UserBody.Render(Wrap(m.Content, r.contentWidth())))
	}

	if m.Meta.NeedsFollowUp() {
		sb.WriteString("\n")
		sb.WriteString(t.FollowUpHint.Render(Wrap(FollowUpHint, r.contentWidth())))
	}
	return sb.String()
}

func (r *Renderer) header(m model.Message) string {
	t := r.theme
	name := m.Role.DisplayName()
	var label string
	if m.Role == model.RoleUser {
		label = t.UserLabel.Render(name)
	} else {
		label = t.AssistantLabel.Render(name)
	}
	if tag := typeTag(m.Meta.Type); tag != "" {
		label += " " + t.Timestamp.Render(tag)
	}
	if r.opts.ShowTimestamps && !m.Timestamp.IsZero() {
		label += " " + t.Timestamp.Render(m.Timestamp.Local().Format("15:04"))
	}
	return label
}

func typeTag(mt model.MessageType) string {
	switch mt {
	case model.TypeImage:
		return "(ảnh)"
	case model.TypeMeal, model.TypeMealFinal:
		return "(dinh dưỡng)"
	case model.TypeFinalize:
		return "(hoàn tất)"
	}
	return ""
}

func (r *Renderer) markdown(content string) string {
	if r.md == nil {
		return Wrap(content, r.contentWidth())
	}
	out, err := r.md.Render(content)
	if err != nil {
		return Wrap(content, r.contentWidth())
	}
	return strings.Trim(out, "\n")
}

// Typing renders the in-flight indicator next to a spinner frame.
func (r *Renderer) Typing(frame string) string {
	return r.theme.Spinner.Render(frame) + " " + r.theme.ThinkingText.Render(TypingText)
}

// =============================================================================
// PROFILE
// =============================================================================

// ProfileView renders every profile field, marking unknown ones and listing
// what the coach still needs to know.
func (r *Renderer) ProfileView(p model.Profile) string {
	t := r.theme
	width := 0
	for _, f := range model.Fields {
		if w := runewidth.StringWidth(f.Label()); w > width {
			width = w
		}
	}

	var sb strings.Builder
	sb.WriteString(t.HeaderTitle.Render("Hồ sơ của bạn"))
	sb.WriteString("\n")
	for _, f := range model.Fields {
		key := t.ProfileKey.Render(runewidth.FillRight(f.Label(), width))
		if v, ok := p.Get(f); ok {
			sb.WriteString(fmt.Sprintf("  %s  %s\n", key, t.ProfileValue.Render(v)))
		} else {
			sb.WriteString(fmt.Sprintf("  %s  %s\n", key, t.ProfileMissing.Render("chưa rõ")))
		}
	}

	missing := p.Missing()
	if len(missing) == 0 {
		sb.WriteString(t.SuccessStyle.Render(styles.StatusIndicators.Success + " Đã đủ thông tin."))
		return sb.String()
	}
	labels := make([]string, len(missing))
	for i, f := range missing {
		labels[i] = f.Label()
	}
	sb.WriteString(t.WarningStyle.Render(styles.StatusIndicators.Info + " Còn thiếu: "))
	sb.WriteString(Wrap(strings.Join(labels, ", "), r.contentWidth()))
	return sb.String()
}

// =============================================================================
// WRAPPING
// =============================================================================

// Wrap word-wraps s to width display cells. Existing newlines are kept and
// words wider than width are broken by runewidth.
func Wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = wrapLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func wrapLine(line string, width int) string {
	if runewidth.StringWidth(line) <= width {
		return line
	}
	var out []string
	cur, curW := "", 0
	for _, word := range strings.Fields(line) {
		ww := runewidth.StringWidth(word)
		if ww > width {
			if cur != "" {
				out = append(out, cur)
				cur, curW = "", 0
			}
			out = append(out, strings.Split(runewidth.Wrap(word, width), "\n")...)
			continue
		}
		switch {
		case cur == "":
			cur, curW = word, ww
		case curW+1+ww <= width:
			cur += " " + word
			curW += 1 + ww
		default:
			out = append(out, cur)
			cur, curW = word, ww
		}
	}
	if cur != "" {
		out = append(out, cur)
	}
	return strings.Join(out, "\n")
}
