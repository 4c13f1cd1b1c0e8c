// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the conversation state: the message log and the
// user profile, persisted through a storage.KV.
package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Tri-Phung/chatbot-project/internal/logging"
	"github.com/Tri-Phung/chatbot-project/internal/memory"
	"github.com/Tri-Phung/chatbot-project/internal/model"
	"github.com/Tri-Phung/chatbot-project/internal/storage"
)

// =============================================================================
// LOAD RESULT
// =============================================================================

// LoadStatus describes what Load found for one persisted key.
type LoadStatus int

const (
	// LoadAbsent means the key was not stored; the default was used.
	LoadAbsent LoadStatus = iota
	// LoadOK means the stored value was decoded.
	LoadOK
	// LoadCorrupt means the stored value could not be decoded; the default was used.
	LoadCorrupt
	// LoadUnavailable means the storage read itself failed; the default was used.
	LoadUnavailable
)

// String returns the status name.
func (s LoadStatus) String() string {
	switch s {
	case LoadAbsent:
		return "absent"
	case LoadOK:
		return "ok"
	case LoadCorrupt:
		return "corrupt"
	case LoadUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("LoadStatus(%d)", int(s))
	}
}

// LoadResult reports how each key was restored.
// Load never fails; the result lets callers and tests see which fallback ran.
type LoadResult struct {
	History  LoadStatus
	Profile  LoadStatus
	Messages int
}

// Degraded reports whether any key fell back because of bad data or a read error.
func (r LoadResult) Degraded() bool {
	bad := func(s LoadStatus) bool { return s == LoadCorrupt || s == LoadUnavailable }
	return bad(r.History) || bad(r.Profile)
}

// =============================================================================
// STORE
// =============================================================================

// Store is the single owner of the message log and the profile.
// Every mutation persists the complete state before returning.
// All methods are safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	kv       storage.KV
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
	onChange func()
	memory   *memory.Extractor

	messages []model.Message
	profile  model.Profile

	// Raw values last read or written, used by Refresh to skip own writes.
	lastHistory string
	lastProfile string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) { s.logger = logging.OrNop(l) }
}

// WithClock sets the time source used for message timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator sets the message ID source.
func WithIDGenerator(gen func() string) StoreOption {
	return func(s *Store) { s.newID = gen }
}

// WithOnChange registers a hook invoked after the log changes.
// It runs synchronously on the mutating goroutine, after the store lock is released.
func WithOnChange(fn func()) StoreOption {
	return func(s *Store) { s.onChange = fn }
}

// NewStore creates an empty store over kv. Call Load to restore persisted state.
func NewStore(kv storage.KV, opts ...StoreOption) *Store {
	s := &Store{
		kv:       kv,
		logger:   zap.NewNop(),
		now:      time.Now,
		newID:    uuid.NewString,
		memory:   memory.NewExtractor(nil),
		messages: []model.Message{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetOnChange replaces the change hook. Front ends set it once their view exists.
func (s *Store) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load restores the log and profile from storage.
// A missing or undecodable history yields an empty log; an undecodable profile
// leaves the in-memory profile unchanged. Stored blobs are never rewritten here.
func (s *Store) Load() LoadResult {
	s.mu.Lock()
	res := s.loadLocked()
	s.mu.Unlock()

	s.logger.Info("session loaded",
		zap.Stringer("history", res.History),
		zap.Stringer("profile", res.Profile),
		zap.Int("messages", res.Messages),
	)
	return res
}

func (s *Store) loadLocked() LoadResult {
	var res LoadResult

	raw, ok, err := s.kv.Get(storage.KeyHistory)
	switch {
	case err != nil:
		res.History = LoadUnavailable
		s.messages = []model.Message{}
		s.logger.Warn("history read failed", zap.Error(err))
	case !ok:
		res.History = LoadAbsent
		s.messages = []model.Message{}
	default:
		s.lastHistory = raw
		var msgs []model.Message
		if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
			res.History = LoadCorrupt
			s.messages = []model.Message{}
			s.logger.Warn("history undecodable, starting empty", zap.Error(err), zap.Int("bytes", len(raw)))
		} else {
			res.History = LoadOK
			if msgs == nil {
				msgs = []model.Message{}
			}
			s.messages = msgs
		}
	}

	raw, ok, err = s.kv.Get(storage.KeyProfile)
	switch {
	case err != nil:
		res.Profile = LoadUnavailable
		s.logger.Warn("profile read failed", zap.Error(err))
	case !ok:
		res.Profile = LoadAbsent
	default:
		s.lastProfile = raw
		var p model.Profile
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			res.Profile = LoadCorrupt
			s.logger.Warn("profile undecodable, keeping defaults", zap.Error(err))
		} else {
			res.Profile = LoadOK
			s.profile = p
		}
	}

	res.Messages = len(s.messages)
	return res
}

// Save writes the complete log and profile, replacing prior content.
// On failure the in-memory state stays authoritative and the error is returned.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	history, err := json.Marshal(s.messages)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	profile, err := json.Marshal(s.profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	if err := s.kv.Set(storage.KeyHistory, string(history)); err != nil {
		s.logger.Error("history save failed", zap.Error(err), zap.Int("messages", len(s.messages)))
		return fmt.Errorf("save history: %w", err)
	}
	s.lastHistory = string(history)

	if err := s.kv.Set(storage.KeyProfile, string(profile)); err != nil {
		s.logger.Error("profile save failed", zap.Error(err))
		return fmt.Errorf("save profile: %w", err)
	}
	s.lastProfile = string(profile)
	return nil
}

// Refresh reloads state if storage no longer holds what this store last
// read or wrote, as happens when another process shares the data directory.
// It reports whether anything was reloaded.
func (s *Store) Refresh() (bool, error) {
	s.mu.Lock()
	history, _, err := s.kv.Get(storage.KeyHistory)
	if err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("read history: %w", err)
	}
	profile, _, err := s.kv.Get(storage.KeyProfile)
	if err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("read profile: %w", err)
	}
	if history == s.lastHistory && profile == s.lastProfile {
		s.mu.Unlock()
		return false, nil
	}

	res := s.loadLocked()
	s.lastHistory, s.lastProfile = history, profile
	s.mu.Unlock()

	s.logger.Info("session refreshed from storage",
		zap.Stringer("history", res.History),
		zap.Int("messages", res.Messages),
	)
	s.notify()
	return true, nil
}

// =============================================================================
// MUTATIONS
// =============================================================================

// AppendMessage stamps a new message, appends it to the log, and persists.
// The change hook has run by the time AppendMessage returns, so the view
// reflects the message before the caller performs any network I/O.
// A save error is returned but the message stays in the log.
func (s *Store) AppendMessage(role model.Role, content string, meta model.Meta) (model.Message, error) {
	s.mu.Lock()
	msg := model.Message{
		ID:        s.newID(),
		Role:      role,
		Content:   content,
		Meta:      meta.Clone(),
		Timestamp: s.now().UTC(),
	}
	s.messages = append(s.messages, msg)
	err := s.saveLocked()
	s.mu.Unlock()

	s.logger.Debug("message appended",
		zap.String("role", role.String()),
		zap.String("type", string(meta.Type)),
		zap.Int("chars", len([]rune(content))),
	)
	s.notify()
	msg.Meta = msg.Meta.Clone()
	return msg, err
}

// UpdateMemoryFromText runs the profile extraction rules over text and persists.
// It returns the fields that changed.
func (s *Store) UpdateMemoryFromText(text string) ([]memory.Change, error) {
	s.mu.Lock()
	changes := s.memory.Apply(&s.profile, text)
	err := s.saveLocked()
	s.mu.Unlock()

	for _, c := range changes {
		s.logger.Info("profile updated", zap.String("field", string(c.Field)), zap.String("value", c.Value))
	}
	if len(changes) > 0 {
		s.notify()
	}
	return changes, err
}

// Clear empties the message log and persists. The profile is kept.
// Asking the user for confirmation is the caller's job.
func (s *Store) Clear() error {
	s.mu.Lock()
	n := len(s.messages)
	s.messages = []model.Message{}
	err := s.saveLocked()
	s.mu.Unlock()

	s.logger.Info("history cleared", zap.Int("removed", n))
	s.notify()
	return err
}

func (s *Store) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// =============================================================================
// VIEWS
// =============================================================================

// Messages returns a copy of the log in display order.
func (s *Store) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.messages))
	for i, m := range s.messages {
		m.Meta = m.Meta.Clone()
		out[i] = m
	}
	return out
}

// Len returns the number of messages in the log.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Profile returns a copy of the profile.
func (s *Store) Profile() model.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.Clone()
}

// APIMessages returns the full history as the upstream payload:
// user and assistant turns only, reduced to role and content.
func (s *Store) APIMessages() []model.APIMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.ToAPIMessages(s.messages)
}
