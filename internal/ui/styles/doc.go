// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the ptcoach terminal UI.
//
// Colors are lipgloss.AdaptiveColor values; NewTheme binds them to a
// renderer whose color profile follows the [ui] theme setting and NO_COLOR.
// Every colored status also has an ASCII indicator in StatusIndicators.
//
// # Usage
//
//	theme := styles.NewTheme(cfg.UI.Theme, cfg.UI.NoColor)
//	fmt.Println(theme.ErrorStyle.Render(styles.StatusIndicators.Error + " failed"))
package styles
