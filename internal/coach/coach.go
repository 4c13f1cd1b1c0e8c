// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package coach implements the user actions of the PT & nutrition assistant:
// sending text, sending a meal photo, finalizing a meal, and clearing history.
//
// Each action validates input, records the user's turn in the session store,
// calls the coach API, and records the reply. Request failures never escape as
// errors; they become assistant messages tagged "error".
package coach

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Tri-Phung/chatbot-project/internal/api"
	"github.com/Tri-Phung/chatbot-project/internal/logging"
	"github.com/Tri-Phung/chatbot-project/internal/memory"
	"github.com/Tri-Phung/chatbot-project/internal/model"
	"github.com/Tri-Phung/chatbot-project/internal/session"
)

// =============================================================================
// USER-FACING TEXT
// =============================================================================

const (
	// Greeting is appended when a session starts with an empty log.
	Greeting = "Xin chào! Mình là trợ lý PT & dinh dưỡng Lý Đức 2.0. Hãy cho mình biết mục tiêu, kinh nghiệm tập, dụng cụ, lịch tập, khẩu vị và chỉ số cơ thể để mình hỗ trợ chính xác nhé! Mình sẽ giúp bạn đô như Lý Đức nè!"

	// ClearPrompt asks for confirmation before the log is emptied.
	ClearPrompt = "Xóa toàn bộ lịch sử trò chuyện?"

	MsgEmptyMessage       = "Vui lòng nhập tin nhắn."
	MsgNoImage            = "Vui lòng chọn ảnh bữa ăn trước."
	MsgEmptyClarification = "Mô tả thông tin khẩu phần chi tiết trước khi hoàn tất."

	// MsgCanceled and MsgTimeout are the reasons recorded when the user
	// cancels a request or the request times out.
	MsgCanceled = "Đã hủy yêu cầu."
	MsgTimeout  = "Máy chủ không phản hồi kịp, vui lòng thử lại."

	chatFailure      = "⚠️ Xin lỗi, có lỗi xảy ra: %s"
	chatFallback     = "Máy chủ trả về lỗi."
	imageFailure     = "⚠️ Phân tích ảnh thất bại: %s"
	imageFallback    = "Không phân tích được ảnh."
	finalizeFailure  = "⚠️ Không thể hoàn tất khẩu phần: %s"
	finalizeFallback = "Không hoàn tất được dinh dưỡng."

	imageWithNote    = "Ảnh bữa ăn + ghi chú: %s"
	imageWithoutNote = "Mình vừa gửi ảnh bữa ăn."
	finalizePrefix   = "Hoàn tất khẩu phần: %s"
)

// =============================================================================
// ERRORS
// =============================================================================

// ValidationError rejects user input before any state change or network call.
// Front ends show Message as a blocking notice.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is matches any *ValidationError.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// ErrBusy is returned when an action starts while another is waiting on the API.
var ErrBusy = errors.New("đang chờ phản hồi cho yêu cầu trước, vui lòng đợi")

// =============================================================================
// COACH
// =============================================================================

// Backend is the subset of the API client used by the workflows.
type Backend interface {
	Chat(ctx context.Context, messages []model.APIMessage) (*api.ChatReply, error)
	AnalyzeMeal(ctx context.Context, img api.Image, note string) (*api.MealReply, error)
	FinalizeMeal(ctx context.Context, clarifications string) (*api.FinalizeReply, error)
}

// Result describes what one action added to the log.
type Result struct {
	// User is the recorded user turn.
	User model.Message
	// Reply is the assistant reply, or the error notice when Failed is set.
	Reply model.Message
	// Failed reports that the request failed and Reply is an error notice.
	Failed bool
	// Canceled reports that the failure was a cancellation by the caller.
	Canceled bool
	// Profile lists profile fields changed by this action.
	Profile []memory.Change
	// SaveErr is the first persistence failure, if any. The log in memory is
	// still complete.
	SaveErr error
}

func (r *Result) noteSave(err error) {
	if err != nil && r.SaveErr == nil {
		r.SaveErr = err
	}
}

// Coach runs user actions against a session store and the coach API.
// Only one action runs at a time; a concurrent call gets ErrBusy.
type Coach struct {
	store   *session.Store
	backend Backend
	logger  *zap.Logger

	mu     sync.Mutex
	onBusy func(bool)

	busy     atomic.Bool
	inflight sync.WaitGroup
}

// Option configures a Coach.
type Option func(*Coach)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coach) { c.logger = logging.OrNop(l) }
}

// New creates a Coach.
func New(store *session.Store, backend Backend, opts ...Option) *Coach {
	c := &Coach{
		store:   store,
		backend: backend,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the session store the coach writes to.
func (c *Coach) Store() *session.Store {
	return c.store
}

// Busy reports whether an action is waiting on the API.
func (c *Coach) Busy() bool {
	return c.busy.Load()
}

// SetOnBusy registers a hook called with true right before a request is sent
// and false when it returns. Input rejected locally never triggers it.
// Front ends drive their typing indicator from it.
func (c *Coach) SetOnBusy(fn func(bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onBusy = fn
}

// Wait blocks until no action is running. Front ends call it before closing
// storage so a cancelled request still records its notice.
func (c *Coach) Wait() {
	c.inflight.Wait()
}

func (c *Coach) acquire() error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	c.inflight.Add(1)
	return nil
}

func (c *Coach) release() {
	c.busy.Store(false)
	c.inflight.Done()
}

// sending fires the busy hook and returns the call that ends it.
func (c *Coach) sending() func() {
	c.mu.Lock()
	fn := c.onBusy
	c.mu.Unlock()
	if fn == nil {
		return func() {}
	}
	fn(true)
	return func() { fn(false) }
}

// =============================================================================
// ACTIONS
// =============================================================================

// Bootstrap appends the greeting when the log is empty.
// It reports whether the greeting was added.
func (c *Coach) Bootstrap() (bool, error) {
	if c.store.Len() > 0 {
		return false, nil
	}
	_, err := c.store.AppendMessage(model.RoleAssistant, Greeting, model.Meta{})
	return true, err
}

// SendText sends a chat message. The user's turn is appended and persisted
// before the request payload is built, so the payload includes it.
func (c *Coach) SendText(ctx context.Context, text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ValidationError{Message: MsgEmptyMessage}
	}
	if err := c.acquire(); err != nil {
		return nil, err
	}
	defer c.release()

	res := &Result{}
	var err error
	res.User, err = c.store.AppendMessage(model.RoleUser, text, model.Meta{})
	res.noteSave(err)
	res.Profile, err = c.store.UpdateMemoryFromText(text)
	res.noteSave(err)

	done := c.sending()
	reply, reqErr := c.backend.Chat(ctx, c.store.APIMessages())
	done()
	if reqErr != nil {
		c.fail(res, "chat", reqErr, chatFailure, chatFallback)
		return res, nil
	}

	meta := model.WithType(model.TypeChat)
	if reply.GuardrailTriggered {
		meta = model.WithType(model.TypeGuard)
		c.logger.Info("guardrail triggered")
	}
	res.Reply, err = c.store.AppendMessage(model.RoleAssistant, reply.Reply, meta)
	res.noteSave(err)
	return res, nil
}

// SendImage uploads a meal photo with an optional note.
// An unreadable or unsupported photo is rejected before anything is recorded.
func (c *Coach) SendImage(ctx context.Context, path, note string) (*Result, error) {
	path = strings.TrimSpace(path)
	note = strings.TrimSpace(note)
	if path == "" {
		return nil, &ValidationError{Message: MsgNoImage}
	}
	if err := c.acquire(); err != nil {
		return nil, err
	}
	defer c.release()

	img, err := api.LoadImage(path)
	if err != nil {
		var imgErr *api.ImageError
		if errors.As(err, &imgErr) {
			return nil, &ValidationError{Message: imgErr.Reason}
		}
		return nil, fmt.Errorf("load image: %w", err)
	}

	res := &Result{}
	if note != "" {
		res.Profile, err = c.store.UpdateMemoryFromText(note)
		res.noteSave(err)
	}
	content := imageWithoutNote
	if note != "" {
		content = fmt.Sprintf(imageWithNote, note)
	}
	res.User, err = c.store.AppendMessage(model.RoleUser, content, model.WithType(model.TypeImage))
	res.noteSave(err)

	done := c.sending()
	reply, reqErr := c.backend.AnalyzeMeal(ctx, img, note)
	done()
	if reqErr != nil {
		c.fail(res, "analyze-meal", reqErr, imageFailure, imageFallback)
		return res, nil
	}

	followUp := reply.NeedsFollowUp
	res.Reply, err = c.store.AppendMessage(model.RoleAssistant, reply.Reply,
		model.Meta{Type: model.TypeMeal, FollowUp: &followUp})
	res.noteSave(err)
	return res, nil
}

// FinalizeMeal sends clarifications completing the last meal analysis.
func (c *Coach) FinalizeMeal(ctx context.Context, clarifications string) (*Result, error) {
	clarifications = strings.TrimSpace(clarifications)
	if clarifications == "" {
		return nil, &ValidationError{Message: MsgEmptyClarification}
	}
	if err := c.acquire(); err != nil {
		return nil, err
	}
	defer c.release()

	res := &Result{}
	var err error
	res.Profile, err = c.store.UpdateMemoryFromText(clarifications)
	res.noteSave(err)
	res.User, err = c.store.AppendMessage(model.RoleUser,
		fmt.Sprintf(finalizePrefix, clarifications), model.WithType(model.TypeFinalize))
	res.noteSave(err)

	done := c.sending()
	reply, reqErr := c.backend.FinalizeMeal(ctx, clarifications)
	done()
	if reqErr != nil {
		c.fail(res, "meal-finalize", reqErr, finalizeFailure, finalizeFallback)
		return res, nil
	}

	res.Reply, err = c.store.AppendMessage(model.RoleAssistant, reply.Reply, model.WithType(model.TypeMealFinal))
	res.noteSave(err)
	return res, nil
}

// ClearHistory empties the log if confirm approves ClearPrompt.
// It reports whether the log was cleared.
func (c *Coach) ClearHistory(confirm func(prompt string) bool) (bool, error) {
	if c.busy.Load() {
		return false, ErrBusy
	}
	if confirm == nil || !confirm(ClearPrompt) {
		return false, nil
	}
	return true, c.store.Clear()
}

// fail records a request failure as an assistant error notice.
func (c *Coach) fail(res *Result, action string, reqErr error, format, fallback string) {
	reason := Reason(reqErr, fallback)
	res.Failed = true
	res.Canceled = errors.Is(reqErr, context.Canceled)
	if res.Canceled {
		c.logger.Info("request canceled", zap.String("action", action))
	} else {
		c.logger.Warn("request failed", zap.String("action", action), zap.Error(reqErr))
	}

	var err error
	res.Reply, err = c.store.AppendMessage(model.RoleAssistant,
		fmt.Sprintf(format, reason), model.WithType(model.TypeError))
	res.noteSave(err)
}

// Reason picks the text shown to the user for a failed request: the server's
// detail when present, the fallback for other server-side failures, fixed
// text for cancellation and timeouts, and the error text for other transport
// failures.
func Reason(err error, fallback string) string {
	var apiErr *api.APIError
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return MsgCanceled
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return MsgTimeout
	case errors.As(err, &apiErr):
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return fallback
	case errors.Is(err, api.ErrMissingReply):
		return fallback
	default:
		return err.Error()
	}
}
