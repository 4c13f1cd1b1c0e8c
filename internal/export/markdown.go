// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"

	"github.com/Tri-Phung/chatbot-project/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports the conversation to Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a snapshot to Markdown.
func (e *MarkdownExporter) Export(snap Snapshot) ([]byte, error) {
	var sb strings.Builder

	sb.WriteString("# PT Coach – lịch sử trò chuyện\n\n")
	sb.WriteString(fmt.Sprintf("- **Xuất lúc**: %s\n", formatTimestamp(snap.ExportedAt)))
	sb.WriteString(fmt.Sprintf("- **Số tin nhắn**: %d\n\n", len(snap.Messages)))

	if e.options.IncludeProfile {
		sb.WriteString("## Hồ sơ\n\n")
		sb.WriteString(ProfileTable(snap.Profile))
		sb.WriteString("\n")
	}

	sb.WriteString("## Hội thoại\n\n")
	if len(snap.Messages) == 0 {
		sb.WriteString("_Chưa có tin nhắn._\n")
	}

	for i, msg := range snap.Messages {
		label := e.formatRoleLabel(msg)
		if e.options.IncludeTimestamps && !msg.Timestamp.IsZero() {
			sb.WriteString(fmt.Sprintf("### %s <sub>%s</sub>\n\n", label, formatShortTimestamp(msg.Timestamp)))
		} else {
			sb.WriteString(fmt.Sprintf("### %s\n\n", label))
		}

		content := strings.TrimSpace(msg.Content)
		if msg.IsGuard() || msg.IsError() {
			content = quote(content)
		}
		sb.WriteString(content)
		sb.WriteString("\n\n")

		if msg.Meta.NeedsFollowUp() {
			sb.WriteString("<sub>Cần bổ sung thông tin khẩu phần.</sub>\n\n")
		}

		if i < len(snap.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// formatRoleLabel returns the heading for a message, marking guard and error replies.
func (e *MarkdownExporter) formatRoleLabel(msg model.Message) string {
	label := msg.Role.DisplayName()
	if label == "" {
		label = "?"
	}
	switch {
	case msg.IsGuard():
		label += " [guardrail]"
	case msg.IsError():
		label += " [lỗi]"
	}
	return label
}

// ProfileTable renders the profile as a Markdown table; unknown fields show "—".
func ProfileTable(p model.Profile) string {
	var sb strings.Builder
	sb.WriteString("| Thông tin | Giá trị |\n")
	sb.WriteString("|---|---|\n")
	for _, f := range model.Fields {
		v, ok := p.Get(f)
		if !ok {
			v = "—"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", escapeTableCell(f.Label()), escapeTableCell(v)))
	}
	return sb.String()
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

func quote(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}

func escapeTableCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
