// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the ptcoach terminal UI.
// All colors use Lip Gloss AdaptiveColor for automatic light/dark detection.
package styles

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes accepted by NewTheme; they match the [ui] theme config values.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
	ModeNoTTY = "notty"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	Mode         string
	IsDark       bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER AND STATUS STYLES
	// ==========================================================================

	Header       lipgloss.Style
	HeaderTitle  lipgloss.Style
	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	Timestamp      lipgloss.Style
	UserBody       lipgloss.Style
	AssistantBody  lipgloss.Style
	GuardBox       lipgloss.Style
	GuardLabel     lipgloss.Style
	ErrorBody      lipgloss.Style
	FollowUpHint   lipgloss.Style

	// ==========================================================================
	// INPUT AND NOTICE STYLES
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	Spinner        lipgloss.Style
	ThinkingText   lipgloss.Style
	Notice         lipgloss.Style
	Confirm        lipgloss.Style

	// ==========================================================================
	// PROFILE STYLES
	// ==========================================================================

	ProfileKey     lipgloss.Style
	ProfileValue   lipgloss.Style
	ProfileMissing lipgloss.Style

	// ==========================================================================
	// ACCESSIBILITY: Status styles paired with StatusIndicators
	// ==========================================================================

	SuccessStyle lipgloss.Style
	ErrorStyle   lipgloss.Style
	WarningStyle lipgloss.Style
	InfoStyle    lipgloss.Style
}

// NewTheme creates a theme for mode. noColor forces the plain ASCII profile.
func NewTheme(mode string, noColor bool) *Theme {
	profile := termenv.ColorProfile()
	isDark := true

	switch mode {
	case ModeDark:
	case ModeLight:
		isDark = false
	case ModeNoTTY:
		profile = termenv.Ascii
	default:
		mode = ModeAuto
		isDark = termenv.HasDarkBackground()
	}
	if noColor || termenv.EnvNoColor() {
		profile = termenv.Ascii
	}

	r := lipgloss.NewRenderer(os.Stdout)
	r.SetColorProfile(profile)
	r.SetHasDarkBackground(isDark)

	t := &Theme{
		Mode:         mode,
		IsDark:       isDark,
		ColorProfile: profile,
	}
	t.initStyles(r)
	return t
}

// Plain reports whether the theme renders without color.
func (t *Theme) Plain() bool {
	return t.ColorProfile == termenv.Ascii
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles(r *lipgloss.Renderer) {
	t.Header = r.NewStyle().
		Bold(true).
		Foreground(Emerald).
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = r.NewStyle().
		Bold(true).
		Foreground(Emerald)

	t.StatusBar = r.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.ShortcutKey = r.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ShortcutDesc = r.NewStyle().
		Foreground(TextMuted)

	// Messages
	t.UserLabel = r.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.AssistantLabel = r.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.Timestamp = r.NewStyle().
		Foreground(TextMuted)

	t.UserBody = r.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)

	t.AssistantBody = r.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)

	t.GuardBox = r.NewStyle().
		BorderStyle(lipgloss.ThickBorder()).
		BorderForeground(Rose).
		BorderLeft(true).
		PaddingLeft(1).
		MarginLeft(1)

	t.GuardLabel = r.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.ErrorBody = r.NewStyle().
		Foreground(Amber).
		PaddingLeft(2)

	t.FollowUpHint = r.NewStyle().
		Foreground(Amber).
		Italic(true).
		PaddingLeft(2)

	// Input area
	t.InputContainer = r.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)

	t.InputPrompt = r.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.Spinner = r.NewStyle().
		Foreground(Emerald)

	t.ThinkingText = r.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.Notice = r.NewStyle().
		Foreground(TextInverse).
		Background(Amber).
		Bold(true).
		Padding(0, 1)

	t.Confirm = r.NewStyle().
		Foreground(TextInverse).
		Background(Rose).
		Bold(true).
		Padding(0, 1)

	// Profile
	t.ProfileKey = r.NewStyle().
		Foreground(TextSecondary)

	t.ProfileValue = r.NewStyle().
		Foreground(TextPrimary).
		Bold(true)

	t.ProfileMissing = r.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Status
	t.SuccessStyle = r.NewStyle().Foreground(Emerald).Bold(true)
	t.ErrorStyle = r.NewStyle().Foreground(Rose).Bold(true)
	t.WarningStyle = r.NewStyle().Foreground(Amber).Bold(true)
	t.InfoStyle = r.NewStyle().Foreground(Cyan)
}
