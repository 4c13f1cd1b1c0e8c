// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// data_cmd.go - Commands that read or manage the saved conversation.
//
// Examples:
//   ptcoach profile                       Show what the coach remembers
//   ptcoach profile --json                Same, as JSON
//   ptcoach history --limit 10            Last ten messages
//   ptcoach export --format json --out chat.json
//   ptcoach clear --confirm               Delete the history without asking

package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/Tri-Phung/chatbot-project/internal/export"
	"github.com/Tri-Phung/chatbot-project/internal/model"
)

// withApp opens the App for args, runs fn and closes the App.
func withApp(args Args, fn func(app *App) error) error {
	app, err := OpenApp(args)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

// =============================================================================
// PROFILE
// =============================================================================

// HandleProfile handles the "profile" command.
func HandleProfile(w io.Writer, args Args) error {
	return withApp(args, func(app *App) error { return RunProfile(w, app, args) })
}

// RunProfile prints the remembered profile and the fields still missing.
func RunProfile(w io.Writer, app *App, args Args) error {
	p := app.Store.Profile()
	if args.JSON {
		missing := p.Missing()
		if missing == nil {
			missing = []model.Field{}
		}
		return NewJSONResponse("profile", ProfileData{Profile: p, Missing: missing}).Print(w)
	}
	r := app.Renderer(ThemeMode(app.Config.UI.Theme), GetTerminalWidth())
	_, err := fmt.Fprintln(w, r.ProfileView(p))
	return err
}

// =============================================================================
// HISTORY
// =============================================================================

// HandleHistory handles the "history" command.
func HandleHistory(w io.Writer, args Args) error {
	return withApp(args, func(app *App) error { return RunHistory(w, app, args) })
}

// RunHistory prints the conversation, optionally limited to the last N messages.
func RunHistory(w io.Writer, app *App, args Args) error {
	p := args.Parser()
	limit := 0
	if p.HasFlag("limit") || p.HasFlag("n") {
		n, err := ParseIntWithValidation(p.Flag("limit", "n"), "--limit")
		if err != nil {
			return &UsageError{Message: err.Error(), Example: "ptcoach history --limit 20"}
		}
		limit = n
	}

	all := app.Store.Messages()
	msgs := lastMessages(all, limit)

	if args.JSON {
		return NewJSONResponse("history", HistoryData{Total: len(all), Messages: msgs}).Print(w)
	}
	if len(msgs) == 0 {
		_, err := fmt.Fprintln(w, DimStyle.Render("Chưa có tin nhắn nào."))
		return err
	}
	r := app.Renderer(ThemeMode(app.Config.UI.Theme), GetTerminalWidth())
	_, err := fmt.Fprintln(w, r.Thread(msgs))
	return err
}

// lastMessages returns at most n trailing messages; n <= 0 returns all.
func lastMessages(msgs []model.Message, n int) []model.Message {
	if n <= 0 || n >= len(msgs) {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

// =============================================================================
// EXPORT
// =============================================================================

// HandleExport handles the "export" command.
func HandleExport(w io.Writer, args Args) error {
	return withApp(args, func(app *App) error { return RunExport(w, app, args) })
}

// RunExport writes the conversation to --out, or to a generated file name in
// the working directory.
func RunExport(w io.Writer, app *App, args Args) error {
	p := args.Parser()
	format := p.Flag("format", "f")
	if format == "" {
		format = export.FormatMarkdown
	}
	out := p.Flag("out", "o")

	snap := export.Snapshot{
		Messages:   app.Store.Messages(),
		Profile:    app.Store.Profile(),
		ExportedAt: time.Now(),
	}
	written, err := export.WriteFormat(snap, format, out, export.DefaultOptions())
	if err != nil {
		return NewCommandError("export", "write", err)
	}
	_, err = fmt.Fprintf(w, "%s %s\n", SuccessStyle.Render("Đã xuất"), written)
	return err
}

// =============================================================================
// CLEAR
// =============================================================================

// HandleClear handles the "clear" command.
func HandleClear(w io.Writer, args Args) error {
	return withApp(args, func(app *App) error { return RunClear(w, app, args) })
}

// RunClear deletes the history after confirmation. Without a terminal the
// --confirm flag is required.
func RunClear(w io.Writer, app *App, args Args) error {
	p := args.Parser()
	confirmFlag := p.BoolFlag("confirm", "y")

	var promptErr error
	cleared, err := app.Coach.ClearHistory(func(question string) bool {
		ok, err := RequireConfirmation(w, confirmFlag, question, args.JSON)
		promptErr = err
		return ok
	})
	if promptErr != nil {
		return promptErr
	}
	if err != nil {
		if cleared {
			return NewCommandError("clear", "save", err)
		}
		return err
	}
	if !cleared {
		ShowCancellationMessage(w)
		return nil
	}
	_, err = fmt.Fprintln(w, SuccessStyle.Render("Đã xóa lịch sử trò chuyện."))
	return err
}
