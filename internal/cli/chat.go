// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-mode chat for the ptcoach CLI.
//
// Command: chat
// Short:   Chat with the coach without the full-screen UI
//
// Examples:
//   ptcoach chat                  Start a line-mode chat
//   ptcoach chat --no-color       Plain output, e.g. for screen readers
//
// Interactive Commands (during chat):
//   /image <path> [note]    Analyze a meal photo
//   /finalize <details>     Finish the last meal analysis
//   /clear                  Clear conversation history (asks first)
//   /profile                Show the remembered profile
//   /export [md|json] [path]
//   /help                   Show available commands
//   /quit                   Exit chat
//   Ctrl+C                  Cancel the current request, or exit at the prompt
//   Ctrl+D                  Exit chat

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/peterh/liner"
	"go.uber.org/zap"

	"github.com/Tri-Phung/chatbot-project/internal/coach"
	"github.com/Tri-Phung/chatbot-project/internal/commands"
	"github.com/Tri-Phung/chatbot-project/internal/export"
	"github.com/Tri-Phung/chatbot-project/internal/ui/render"
	"github.com/Tri-Phung/chatbot-project/internal/util"
)

// HistoryFileName holds the chat input history inside the data directory.
const HistoryFileName = "chat_history"

const chatPrompt = "Bạn> "

// =============================================================================
// INPUT
// =============================================================================

// LineReader reads one line of user input. *liner.State implements it.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// ChatCLI wraps liner for line editing and persistent input history.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a liner-backed input with history stored in dataDir.
func NewChatCLI(dataDir string, completer *commands.Completer) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetTabCompletionStyle(liner.TabPrints)
	if completer != nil {
		line.SetCompleter(completer.Lines)
	}

	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(dataDir, HistoryFileName),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads input history from disk.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// Prompt reads one line.
func (c *ChatCLI) Prompt(prompt string) (string, error) {
	return c.line.Prompt(prompt)
}

// AppendHistory records a non-empty line.
func (c *ChatCLI) AppendHistory(item string) {
	if strings.TrimSpace(item) != "" {
		c.line.AppendHistory(item)
	}
}

// SaveHistory writes input history with owner-only permissions.
func (c *ChatCLI) SaveHistory() error {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = c.line.WriteHistory(f)
	return err
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() error {
	err := c.SaveHistory()
	if cerr := c.line.Close(); err == nil {
		err = cerr
	}
	return err
}

// =============================================================================
// CHAT SESSION
// =============================================================================

// ChatSession runs the line-mode conversation against an App.
type ChatSession struct {
	app      *App
	coach    *coach.Coach
	renderer *render.Renderer
	registry *commands.Registry
	parser   *commands.Parser
	input    LineReader
	out      io.Writer

	// ExportDir receives /export files without an explicit path.
	ExportDir string

	// refreshed is set by the storage watcher and reported before the next prompt.
	refreshed atomic.Bool
	// interrupt scopes a request context to Ctrl+C; replaced in tests.
	interrupt func(ctx context.Context) (context.Context, context.CancelFunc)
}

// NewChatSession creates a session reading from input and writing to out.
func NewChatSession(app *App, renderer *render.Renderer, input LineReader, out io.Writer) *ChatSession {
	registry := commands.NewRegistry()
	s := &ChatSession{
		app:       app,
		coach:     app.Coach,
		renderer:  renderer,
		registry:  registry,
		parser:    commands.NewParser(registry),
		input:     input,
		out:       out,
		ExportDir: ".",
		interrupt: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		},
	}
	app.Coach.SetOnBusy(s.typing)
	return s
}

// typing prints the typing line once a request is on its way.
func (s *ChatSession) typing(busy bool) {
	if busy {
		fmt.Fprintln(s.out, DimStyle.Render(render.TypingText))
	}
}

// HandleChat handles the "chat" command.
func HandleChat(ctx context.Context, args Args) error {
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

	registry := commands.NewRegistry()
	input := NewChatCLI(app.DataDir, commands.NewCompleter(registry))
	defer func() {
		if err := input.Close(); err != nil {
			app.Logger.Warn("input history not saved", zap.Error(err))
		}
	}()

	renderer := app.Renderer(ThemeMode(app.Config.UI.Theme), GetTerminalWidth())
	session := NewChatSession(app, renderer, input, os.Stdout)
	if events != nil {
		go session.Follow(events)
	}
	return session.Run(ctx)
}

// Follow refreshes the store for every changed storage key until events closes.
func (s *ChatSession) Follow(events <-chan string) {
	for range events {
		changed, err := s.app.Store.Refresh()
		if err != nil {
			s.app.Logger.Warn("refresh after external change failed", zap.Error(err))
			continue
		}
		if changed {
			s.refreshed.Store(true)
		}
	}
}

// Run prints the conversation so far and reads input until /quit, Ctrl+C at
// the prompt, Ctrl+D or ctx ends.
func (s *ChatSession) Run(ctx context.Context) error {
	s.printWelcome()

	for {
		if ctx.Err() != nil {
			return nil
		}
		if s.refreshed.Swap(false) {
			fmt.Fprintln(s.out, DimStyle.Render("Lịch sử vừa được cập nhật từ phiên khác:"))
			fmt.Fprintln(s.out, s.renderer.Thread(s.app.Store.Messages()))
		}

		input, err := s.input.Prompt(chatPrompt)
		if err != nil {
			// liner.ErrPromptAborted (Ctrl+C) and io.EOF (Ctrl+D) both end the chat
			fmt.Fprintln(s.out)
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		s.input.AppendHistory(input)

		if quit := s.Execute(ctx, input); quit {
			return nil
		}
	}
}

// Execute handles one line of input and reports whether the chat should end.
func (s *ChatSession) Execute(ctx context.Context, input string) bool {
	if !commands.IsCommand(input) {
		s.run(ctx, func(ctx context.Context) (*coach.Result, error) {
			return s.coach.SendText(ctx, input)
		})
		return false
	}

	res := s.parser.Parse(input)
	if res.Error != nil {
		s.notice(res.Error.Error())
		return false
	}

	switch res.Command.Name {
	case commands.CmdImage:
		path, note := commands.SplitFirst(res.RawArgs)
		s.run(ctx, func(ctx context.Context) (*coach.Result, error) {
			return s.coach.SendImage(ctx, path, note)
		})

	case commands.CmdFinalize:
		s.run(ctx, func(ctx context.Context) (*coach.Result, error) {
			return s.coach.FinalizeMeal(ctx, res.RawArgs)
		})

	case commands.CmdClear:
		s.clear()

	case commands.CmdProfile:
		fmt.Fprintln(s.out, s.renderer.ProfileView(s.app.Store.Profile()))

	case commands.CmdExport:
		s.export(res.Args)

	case commands.CmdHelp:
		s.printHelp()

	case commands.CmdQuit:
		return true
	}
	return false
}

// run performs one coach action. Ctrl+C during the request cancels it.
func (s *ChatSession) run(ctx context.Context, action func(ctx context.Context) (*coach.Result, error)) {
	reqCtx, stop := s.interrupt(ctx)
	defer stop()

	res, err := action(reqCtx)
	if err != nil {
		var verr *coach.ValidationError
		if !errors.As(err, &verr) && !errors.Is(err, coach.ErrBusy) {
			s.app.Logger.Error("action failed", zap.Error(err))
		}
		s.notice(err.Error())
		return
	}

	fmt.Fprintln(s.out, s.renderer.Message(res.Reply))
	switch {
	case res.SaveErr != nil:
		fmt.Fprintln(s.out, WarningStyle.Render("Không lưu được lịch sử: "+res.SaveErr.Error()))
	case len(res.Profile) > 0:
		labels := make([]string, len(res.Profile))
		for i, c := range res.Profile {
			labels[i] = c.Field.Label()
		}
		fmt.Fprintln(s.out, DimStyle.Render("Đã ghi nhớ: "+strings.Join(labels, ", ")))
	}
}

func (s *ChatSession) clear() {
	cleared, err := s.coach.ClearHistory(func(question string) bool {
		answer, err := s.input.Prompt(question + " [y/N]: ")
		if err != nil {
			return false
		}
		ok, _ := ParseBoolString(answer)
		return ok
	})
	switch {
	case err != nil && !cleared:
		s.notice(err.Error())
	case err != nil:
		fmt.Fprintln(s.out, WarningStyle.Render("Đã xóa, nhưng không lưu được: "+err.Error()))
	case cleared:
		fmt.Fprintln(s.out, SuccessStyle.Render("Đã xóa lịch sử trò chuyện."))
	default:
		ShowCancellationMessage(s.out)
	}
}

func (s *ChatSession) export(args []string) {
	format, path := "", ""
	if len(args) > 0 {
		format = args[0]
	}
	if len(args) > 1 {
		path = args[1]
	}
	opts := export.DefaultOptions()
	opts.OutputDir = s.ExportDir

	written, err := export.WriteFormat(s.snapshot(), format, path, opts)
	if err != nil {
		s.notice(err.Error())
		return
	}
	fmt.Fprintln(s.out, SuccessStyle.Render("Đã xuất: "+written))
}

func (s *ChatSession) snapshot() export.Snapshot {
	return export.Snapshot{
		Messages:   s.app.Store.Messages(),
		Profile:    s.app.Store.Profile(),
		ExportedAt: time.Now(),
	}
}

func (s *ChatSession) notice(text string) {
	fmt.Fprintln(s.out, WarningStyle.Render("[!] "+text))
}

// =============================================================================
// OUTPUT
// =============================================================================

func (s *ChatSession) printWelcome() {
	fmt.Fprintln(s.out, TitleStyle.Render("ptcoach"))
	fmt.Fprintln(s.out, DimStyle.Render("Gõ /help để xem lệnh, /quit hoặc Ctrl+D để thoát."))
	fmt.Fprintln(s.out)

	msgs := s.app.Store.Messages()
	if len(msgs) > 0 {
		fmt.Fprintln(s.out, s.renderer.Thread(msgs))
		fmt.Fprintln(s.out)
	}
}

func (s *ChatSession) printHelp() {
	fmt.Fprintln(s.out, SectionStyle.Render("Lệnh"))
	for _, cmd := range s.registry.Visible() {
		fmt.Fprintf(s.out, "  %s %s\n", util.PadRight(cmd.Usage, 34), DimStyle.Render(cmd.Description))
	}
}
