// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package coach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Tri-Phung/chatbot-project/internal/api"
	"github.com/Tri-Phung/chatbot-project/internal/model"
	"github.com/Tri-Phung/chatbot-project/internal/session"
	"github.com/Tri-Phung/chatbot-project/internal/storage"
)

// =============================================================================
// FIXTURES
// =============================================================================

type fixture struct {
	coach *Coach
	store *session.Store
	kv    *storage.MemoryKV
}

func newFixture(t *testing.T, h http.HandlerFunc, opts ...Option) *fixture {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	logger := zaptest.NewLogger(t)
	kv := storage.NewMemoryKV()
	store := session.NewStore(kv, session.WithLogger(logger))
	store.Load()

	client := api.NewClient(srv.URL).WithLogger(logger)
	return &fixture{
		coach: New(store, client, append([]Option{WithLogger(logger)}, opts...)...),
		store: store,
		kv:    kv,
	}
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

func writePNG(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meal.png")
	data := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// =============================================================================
// BOOTSTRAP
// =============================================================================

func TestBootstrap_GreetsOnlyEmptyLog(t *testing.T) {
	f := newFixture(t, respond(http.StatusOK, `{}`))

	added, err := f.coach.Bootstrap()
	require.NoError(t, err)
	assert.True(t, added)

	added, err = f.coach.Bootstrap()
	require.NoError(t, err)
	assert.False(t, added)

	msgs := f.store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleAssistant, msgs[0].Role)
	assert.Equal(t, Greeting, msgs[0].Content)
}

// =============================================================================
// SEND TEXT
// =============================================================================

func TestSendText_PayloadIncludesNewTurn(t *testing.T) {
	var payload struct {
		Messages []model.APIMessage `json:"messages"`
	}
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		respond(http.StatusOK, `{"reply":"Tuyệt, bắt đầu với 3 buổi full-body nhé."}`)(w, r)
	})
	_, err := f.coach.Bootstrap()
	require.NoError(t, err)

	res, err := f.coach.SendText(context.Background(), "  mình mới tập, 3 buổi/tuần  ")
	require.NoError(t, err)
	assert.False(t, res.Failed)
	assert.NoError(t, res.SaveErr)

	require.Len(t, payload.Messages, 2)
	assert.Equal(t, model.APIMessage{Role: model.RoleUser, Content: "mình mới tập, 3 buổi/tuần"}, payload.Messages[1])

	msgs := f.store.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, model.TypeChat, msgs[2].Meta.Type)
	assert.Equal(t, res.Reply, msgs[2])

	exp, _ := f.store.Profile().Get(model.FieldExperience)
	assert.Equal(t, "mới tập", exp)
	assert.Len(t, res.Profile, 2)
}

func TestSendText_GuardrailTagged(t *testing.T) {
	f := newFixture(t, respond(http.StatusOK, `{"reply":"Mình không thể tư vấn thuốc.","guardrail_triggered":true}`))

	res, err := f.coach.SendText(context.Background(), "cho mình xin liều steroid")
	require.NoError(t, err)
	assert.True(t, res.Reply.IsGuard())
}

func TestSendText_ServerErrorBecomesOneErrorMessage(t *testing.T) {
	f := newFixture(t, respond(http.StatusInternalServerError, `{"detail":"boom"}`))

	before := f.store.Len()
	res, err := f.coach.SendText(context.Background(), "hello")
	require.NoError(t, err, "request failures are recorded, not returned")
	assert.True(t, res.Failed)

	msgs := f.store.Messages()
	require.Len(t, msgs, before+2)

	var errorMsgs []model.Message
	for _, m := range msgs[before:] {
		if m.Role == model.RoleAssistant {
			errorMsgs = append(errorMsgs, m)
		}
	}
	require.Len(t, errorMsgs, 1)
	assert.Contains(t, errorMsgs[0].Content, "boom")
	assert.Equal(t, model.TypeError, errorMsgs[0].Meta.Type)
	assert.Equal(t, "⚠️ Xin lỗi, có lỗi xảy ra: boom", errorMsgs[0].Content)
}

func TestSendText_FallbackReasons(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{"no detail", respond(http.StatusBadGateway, `<html></html>`), "⚠️ Xin lỗi, có lỗi xảy ra: Máy chủ trả về lỗi."},
		{"missing reply", respond(http.StatusOK, `{}`), "⚠️ Xin lỗi, có lỗi xảy ra: Máy chủ trả về lỗi."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.handler)
			res, err := f.coach.SendText(context.Background(), "hi")
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Reply.Content)
		})
	}
}

func TestSendText_EmptyRejectedWithoutMutation(t *testing.T) {
	called := false
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := f.coach.SendText(context.Background(), "   \n ")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, MsgEmptyMessage, verr.Message)
	assert.ErrorIs(t, err, &ValidationError{})

	assert.Zero(t, f.store.Len())
	assert.False(t, called)
	_, ok, _ := f.kv.Get(storage.KeyHistory)
	assert.False(t, ok, "nothing persisted")
}

func TestSendText_BusyGuard(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var busyEvents []bool
	var mu sync.Mutex

	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		respond(http.StatusOK, `{"reply":"ok"}`)(w, r)
	})
	f.coach.SetOnBusy(func(b bool) {
		mu.Lock()
		busyEvents = append(busyEvents, b)
		mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := f.coach.SendText(context.Background(), "first")
		assert.NoError(t, err)
	}()

	<-entered
	assert.True(t, f.coach.Busy())
	_, err := f.coach.SendText(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)
	_, err = f.coach.ClearHistory(func(string) bool { return true })
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	<-done

	assert.False(t, f.coach.Busy())
	assert.Len(t, f.store.Messages(), 2, "the rejected action recorded nothing")
	mu.Lock()
	assert.Equal(t, []bool{true, false}, busyEvents)
	mu.Unlock()
}

// =============================================================================
// SEND IMAGE
// =============================================================================

func TestSendImage_WithNote(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, api.PathAnalyzeMeal, r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(api.MaxImageBytes))
		assert.Equal(t, "ăn chay, 60kg", r.FormValue("note"))
		respond(http.StatusOK, `{"reply":"Đậu hũ sốt cà ~400 kcal","needs_follow_up":true}`)(w, r)
	})

	res, err := f.coach.SendImage(context.Background(), writePNG(t), " ăn chay, 60kg ")
	require.NoError(t, err)

	assert.Equal(t, "Ảnh bữa ăn + ghi chú: ăn chay, 60kg", res.User.Content)
	assert.Equal(t, model.TypeImage, res.User.Meta.Type)
	assert.Equal(t, model.TypeMeal, res.Reply.Meta.Type)
	assert.True(t, res.Reply.Meta.NeedsFollowUp())

	diet, _ := f.store.Profile().Get(model.FieldDiet)
	assert.Equal(t, "ăn chay", diet)
}

func TestSendImage_WithoutNote(t *testing.T) {
	f := newFixture(t, respond(http.StatusOK, `{"reply":"ok","needs_follow_up":false}`))

	res, err := f.coach.SendImage(context.Background(), writePNG(t), "")
	require.NoError(t, err)
	assert.Equal(t, "Mình vừa gửi ảnh bữa ăn.", res.User.Content)
	require.NotNil(t, res.Reply.Meta.FollowUp)
	assert.False(t, res.Reply.Meta.NeedsFollowUp())
	assert.Empty(t, res.Profile)
}

func TestSendImage_ValidationFailures(t *testing.T) {
	f := newFixture(t, respond(http.StatusOK, `{"reply":"ok"}`))

	_, err := f.coach.SendImage(context.Background(), "", "note")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, MsgNoImage, verr.Message)

	txt := filepath.Join(t.TempDir(), "menu.txt")
	require.NoError(t, os.WriteFile(txt, []byte("phở bò"), 0o600))
	_, err = f.coach.SendImage(context.Background(), txt, "tăng cơ")
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Message, "Định dạng ảnh không được hỗ trợ")

	assert.Zero(t, f.store.Len())
	assert.True(t, f.store.Profile().IsEmpty(), "note is not applied when the photo is rejected")
	assert.False(t, f.coach.Busy())
}

func TestSendImage_ServerError(t *testing.T) {
	f := newFixture(t, respond(http.StatusBadRequest, `{"detail":"Ảnh vượt quá giới hạn 8MB, vui lòng nén hoặc chụp lại."}`))

	res, err := f.coach.SendImage(context.Background(), writePNG(t), "")
	require.NoError(t, err)
	assert.True(t, res.Failed)
	assert.Equal(t, "⚠️ Phân tích ảnh thất bại: Ảnh vượt quá giới hạn 8MB, vui lòng nén hoặc chụp lại.", res.Reply.Content)
	assert.True(t, res.Reply.IsError())
}

// =============================================================================
// FINALIZE
// =============================================================================

func TestFinalizeMeal(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"clarifications":"200g cơm, ít carb"}`, string(body))
		respond(http.StatusOK, `{"reply":"Tổng 520 kcal"}`)(w, r)
	})

	res, err := f.coach.FinalizeMeal(context.Background(), "200g cơm, ít carb")
	require.NoError(t, err)
	assert.Equal(t, "Hoàn tất khẩu phần: 200g cơm, ít carb", res.User.Content)
	assert.Equal(t, model.TypeFinalize, res.User.Meta.Type)
	assert.Equal(t, model.TypeMealFinal, res.Reply.Meta.Type)

	diet, _ := f.store.Profile().Get(model.FieldDiet)
	assert.Equal(t, "ít carb", diet)
}

func TestFinalizeMeal_EmptyAndFailure(t *testing.T) {
	f := newFixture(t, respond(http.StatusServiceUnavailable, `{}`))

	_, err := f.coach.FinalizeMeal(context.Background(), " ")
	assert.ErrorIs(t, err, &ValidationError{})
	assert.Zero(t, f.store.Len())

	res, err := f.coach.FinalizeMeal(context.Background(), "thêm 1 quả trứng")
	require.NoError(t, err)
	assert.Equal(t, "⚠️ Không thể hoàn tất khẩu phần: Không hoàn tất được dinh dưỡng.", res.Reply.Content)
}

// =============================================================================
// CLEAR & REASONS
// =============================================================================

func TestClearHistory(t *testing.T) {
	f := newFixture(t, respond(http.StatusOK, `{"reply":"ok"}`))
	_, err := f.coach.SendText(context.Background(), "tăng cơ")
	require.NoError(t, err)
	profile := f.store.Profile()

	var asked string
	cleared, err := f.coach.ClearHistory(func(p string) bool { asked = p; return false })
	require.NoError(t, err)
	assert.False(t, cleared)
	assert.Equal(t, ClearPrompt, asked)
	assert.Equal(t, 2, f.store.Len())

	cleared, err = f.coach.ClearHistory(func(string) bool { return true })
	require.NoError(t, err)
	assert.True(t, cleared)
	assert.Zero(t, f.store.Len())
	assert.Equal(t, profile, f.store.Profile())

	cleared, err = f.coach.ClearHistory(nil)
	require.NoError(t, err)
	assert.False(t, cleared, "no confirmation means no clear")
}

func TestReason(t *testing.T) {
	assert.Equal(t, "boom", Reason(&api.APIError{Status: 500, Detail: "boom"}, "fallback"))
	assert.Equal(t, "fallback", Reason(&api.APIError{Status: 500}, "fallback"))
	assert.Equal(t, "fallback", Reason(api.ErrMissingReply, "fallback"))
	assert.Equal(t, "dial tcp: refused", Reason(errors.New("dial tcp: refused"), "fallback"))

	canceled := &url.Error{Op: "Post", URL: "http://coach.test/api/chat", Err: context.Canceled}
	assert.Equal(t, MsgCanceled, Reason(fmt.Errorf("request failed: %w", canceled), "fallback"))
	assert.Equal(t, MsgTimeout, Reason(fmt.Errorf("request failed: %w", context.DeadlineExceeded), "fallback"))
}

func TestSendText_CanceledRecordsCancelNotice(t *testing.T) {
	entered := make(chan struct{})
	stop := make(chan struct{})
	var busyEvents []bool
	var mu sync.Mutex

	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		close(entered)
		select {
		case <-r.Context().Done():
		case <-stop:
		}
	})
	f.coach.SetOnBusy(func(b bool) {
		mu.Lock()
		busyEvents = append(busyEvents, b)
		mu.Unlock()
	})
	t.Cleanup(func() { close(stop) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan *Result, 1)
	go func() {
		res, err := f.coach.SendText(ctx, "xin chào")
		assert.NoError(t, err)
		results <- res
	}()

	<-entered
	cancel()
	f.coach.Wait()

	msgs := f.store.Messages()
	require.Len(t, msgs, 2, "the cancel notice is recorded before Wait returns")

	res := <-results
	require.NotNil(t, res)
	assert.True(t, res.Failed)
	assert.True(t, res.Canceled)
	assert.Equal(t, "⚠️ Xin lỗi, có lỗi xảy ra: "+MsgCanceled, res.Reply.Content)
	assert.NotContains(t, res.Reply.Content, "http")
	assert.Equal(t, model.TypeError, res.Reply.Meta.Type)
	assert.Equal(t, res.Reply.Content, msgs[1].Content)
	mu.Lock()
	assert.Equal(t, []bool{true, false}, busyEvents)
	mu.Unlock()
}

func TestOnBusy_NotFiredForRejectedInput(t *testing.T) {
	var events []bool
	f := newFixture(t, respond(http.StatusOK, `{"reply":"ok"}`))
	f.coach.SetOnBusy(func(b bool) { events = append(events, b) })

	_, err := f.coach.SendText(context.Background(), "   ")
	require.Error(t, err)
	_, err = f.coach.SendImage(context.Background(), filepath.Join(t.TempDir(), "missing.png"), "")
	require.Error(t, err)
	_, err = f.coach.FinalizeMeal(context.Background(), "")
	require.Error(t, err)
	assert.Empty(t, events)

	_, err = f.coach.FinalizeMeal(context.Background(), "cơm 200g")
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, events)
}

func TestSendText_TransportErrorUsesErrorText(t *testing.T) {
	kv := storage.NewMemoryKV()
	store := session.NewStore(kv)
	client := api.NewClient("http://127.0.0.1:1")
	c := New(store, client)

	res, err := c.SendText(context.Background(), "hi")
	require.NoError(t, err)
	assert.True(t, res.Failed)
	assert.True(t, strings.HasPrefix(res.Reply.Content, "⚠️ Xin lỗi, có lỗi xảy ra: request failed"))
}
