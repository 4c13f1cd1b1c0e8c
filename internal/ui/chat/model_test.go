// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Tri-Phung/chatbot-project/internal/api"
	"github.com/Tri-Phung/chatbot-project/internal/coach"
	"github.com/Tri-Phung/chatbot-project/internal/model"
	"github.com/Tri-Phung/chatbot-project/internal/session"
	"github.com/Tri-Phung/chatbot-project/internal/storage"
	"github.com/Tri-Phung/chatbot-project/internal/ui/render"
	"github.com/Tri-Phung/chatbot-project/internal/ui/styles"
)

// =============================================================================
// FIXTURES
// =============================================================================

type stubBackend struct {
	mu    sync.Mutex
	calls int
}

func (s *stubBackend) Chat(ctx context.Context, msgs []model.APIMessage) (*api.ChatReply, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return &api.ChatReply{Reply: "Chào bạn, mục tiêu của bạn là gì?"}, nil
}

func (s *stubBackend) AnalyzeMeal(ctx context.Context, img api.Image, note string) (*api.MealReply, error) {
	return &api.MealReply{Reply: "~500 kcal", NeedsFollowUp: true}, nil
}

func (s *stubBackend) FinalizeMeal(ctx context.Context, clarifications string) (*api.FinalizeReply, error) {
	return &api.FinalizeReply{Reply: "Tổng 620 kcal"}, nil
}

type fixture struct {
	kv      *storage.MemoryKV
	store   *session.Store
	backend *stubBackend
	model   Model
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	kv := storage.NewMemoryKV()
	store := session.NewStore(kv, session.WithLogger(logger))
	store.Load()
	backend := &stubBackend{}

	m := New(Options{
		Coach:     coach.New(store, backend, coach.WithLogger(logger)),
		Renderer:  render.New(styles.NewTheme(styles.ModeNoTTY, true), render.Options{}),
		ExportDir: t.TempDir(),
		Logger:    logger,
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return &fixture{kv: kv, store: store, backend: backend, model: next.(Model)}
}

// send feeds msg to the model and returns the new model and command.
func (f *fixture) send(msg tea.Msg) tea.Cmd {
	next, cmd := f.model.Update(msg)
	f.model = next.(Model)
	return cmd
}

// submit types text and presses enter, then delivers every resulting message.
func (f *fixture) submit(t *testing.T, text string) {
	t.Helper()
	f.model.input.SetValue(text)
	f.drain(f.send(tea.KeyMsg{Type: tea.KeyEnter}))
}

// drain runs cmd and feeds back results, skipping spinner ticks.
func (f *fixture) drain(cmd tea.Cmd) {
	for _, msg := range collect(cmd) {
		switch msg.(type) {
		case ResultMsg, ExportedMsg:
			f.send(msg)
		}
	}
}

func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// =============================================================================
// TESTS
// =============================================================================

func TestSendText(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "mình muốn tăng cơ")

	msgs := f.store.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.False(t, f.model.Busy())
	assert.Empty(t, f.model.input.Value())
	assert.Contains(t, f.model.viewport.View(), "mục tiêu của bạn")
	assert.Contains(t, f.model.status, model.FieldGoal.Label())
}

func TestEmptyMessageShowsNotice(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "   ")

	assert.Equal(t, StateNotice, f.model.State())
	assert.Equal(t, coach.MsgEmptyMessage, f.model.Notice())
	assert.Zero(t, f.store.Len())
	assert.Contains(t, f.model.View(), coach.MsgEmptyMessage)

	f.send(runeKey("x"))
	assert.Equal(t, StateReady, f.model.State())
	assert.NotContains(t, f.model.input.Value(), "x", "dismissing key is not typed")
}

func TestImageValidationKeepsInput(t *testing.T) {
	f := newFixture(t)
	text := "/image " + filepath.Join(t.TempDir(), "missing.jpg")
	f.submit(t, text)

	assert.Equal(t, StateNotice, f.model.State())
	assert.Equal(t, "Không tìm thấy tệp ảnh.", f.model.Notice())
	assert.Equal(t, text, f.model.input.Value())
	assert.Zero(t, f.store.Len())
}

func TestImageAndFinalize(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "meal.png")
	require.NoError(t, os.WriteFile(path, append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...), 0o600))

	f.submit(t, "/image "+path+" cơm gà")
	f.submit(t, "/finalize 200g cơm")

	msgs := f.store.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, model.TypeImage, msgs[0].Meta.Type)
	assert.True(t, msgs[1].Meta.NeedsFollowUp())
	assert.Equal(t, model.TypeFinalize, msgs[2].Meta.Type)
	assert.Equal(t, model.TypeMealFinal, msgs[3].Meta.Type)
}

func TestBusyRejectsSecondAction(t *testing.T) {
	f := newFixture(t)
	f.model.input.SetValue("một")
	first := f.send(tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, f.model.Busy())

	f.model.input.SetValue("hai")
	f.send(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, StateNotice, f.model.State())
	assert.Equal(t, coach.ErrBusy.Error(), f.model.Notice())
	assert.Equal(t, "hai", f.model.input.Value())

	f.send(runeKey("x"))
	f.drain(first)
	assert.False(t, f.model.Busy())
	assert.Equal(t, 1, f.backend.calls)
}

func TestClearConfirmation(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "xin chào")
	require.Equal(t, 2, f.store.Len())

	f.submit(t, "/clear")
	assert.Equal(t, StateConfirmClear, f.model.State())
	assert.Contains(t, f.model.View(), coach.ClearPrompt)
	f.send(runeKey("n"))
	assert.Equal(t, StateReady, f.model.State())
	assert.Equal(t, 2, f.store.Len())

	f.submit(t, "/clear")
	f.send(runeKey("y"))
	assert.Equal(t, StateReady, f.model.State())
	assert.Zero(t, f.store.Len())
}

func TestOverlays(t *testing.T) {
	f := newFixture(t)

	f.submit(t, "/profile")
	assert.Equal(t, StateProfile, f.model.State())
	assert.Contains(t, f.model.View(), "Hồ sơ của bạn")
	f.send(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, StateReady, f.model.State())

	f.submit(t, "/help")
	assert.Equal(t, StateHelp, f.model.State())
	assert.Contains(t, f.model.View(), "/finalize")
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "/dance")
	assert.Equal(t, StateNotice, f.model.State())
	assert.Contains(t, f.model.Notice(), "/dance")
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "xin chào")

	out := filepath.Join(t.TempDir(), "chat.json")
	f.submit(t, "/export json "+out)
	assert.Contains(t, f.model.status, out)
	_, err := os.Stat(out)
	assert.NoError(t, err)

	f.submit(t, "/export pdf")
	assert.Equal(t, StateNotice, f.model.State())
}

func TestTabCompletion(t *testing.T) {
	f := newFixture(t)

	f.model.input.SetValue("/pro")
	f.send(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "/profile", f.model.input.Value())

	f.model.input.SetValue("/export ")
	f.send(tea.KeyMsg{Type: tea.KeyTab})
	require.True(t, f.model.completion.Visible)
	f.send(tea.KeyMsg{Type: tea.KeyTab})
	f.send(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "/export json", f.model.input.Value())
	assert.False(t, f.model.completion.Visible)
}

func TestStorageEventRefreshes(t *testing.T) {
	f := newFixture(t)

	other := session.NewStore(f.kv)
	other.Load()
	_, err := other.AppendMessage(model.RoleUser, "từ cửa sổ khác", model.Meta{})
	require.NoError(t, err)

	f.send(StorageEventMsg{Key: storage.KeyHistory})
	assert.Equal(t, 1, f.store.Len())
	assert.Contains(t, f.model.viewport.View(), "từ cửa sổ khác")
}

func TestQuit(t *testing.T) {
	f := newFixture(t)
	cmd := f.send(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, f.model.View())
}
