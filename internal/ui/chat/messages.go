// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Tri-Phung/chatbot-project/internal/coach"
)

// =============================================================================
// BUBBLE TEA MESSAGES
// =============================================================================

// ResultMsg carries the outcome of a coach action.
type ResultMsg struct {
	Action string
	Result *coach.Result
	Err    error
}

// StoreChangedMsg is sent after the session store changed in this process.
type StoreChangedMsg struct{}

// StorageEventMsg is sent when another process rewrote a storage key.
type StorageEventMsg struct {
	Key string
}

// ExportedMsg reports a finished export.
type ExportedMsg struct {
	Path string
	Err  error
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// waitForSignal blocks until the store signals a change.
func waitForSignal(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return StoreChangedMsg{}
	}
}

// waitForStorageEvent blocks until the watcher reports a key.
func waitForStorageEvent(events <-chan string) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		key, ok := <-events
		if !ok {
			return nil
		}
		return StorageEventMsg{Key: key}
	}
}
