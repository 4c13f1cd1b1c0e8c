// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"

	"go.uber.org/zap"

	"github.com/Tri-Phung/chatbot-project/internal/ui/chat"
)

// HandleTUI starts the full-screen chat. Without a terminal on stdin and
// stdout it falls back to the line-mode chat.
func HandleTUI(ctx context.Context, args Args) error {
	if !IsTTY() || !IsStdoutTTY() {
		return HandleChat(ctx, args)
	}

	app, err := OpenApp(args)
	if err != nil {
		return err
	}
	defer app.Close()

	app.Bootstrap()
	events, err := app.Watch()
	if err != nil {
		app.Logger.Warn("storage watcher unavailable", zap.Error(err))
	}

	return chat.Run(ctx, chat.Options{
		Coach:     app.Coach,
		Renderer:  app.Renderer("", GetTerminalWidth()),
		Events:    events,
		ExportDir: ".",
		Logger:    app.Logger.Named("tui"),
	})
}
