// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the full-screen chat and blocks until the user quits or ctx ends.
// Quitting cancels the in-flight request; Run returns once it has recorded
// its outcome, so the caller can close storage safely.
func Run(ctx context.Context, opts Options) error {
	if opts.Coach == nil {
		return errors.New("chat: coach is required")
	}
	opts.Context = ctx
	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	opts.Coach.Wait()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run chat ui: %w", err)
	}
	return nil
}
