// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Tri-Phung/chatbot-project/internal/model"
	"github.com/Tri-Phung/chatbot-project/internal/storage"
)

// =============================================================================
// HELPERS
// =============================================================================

// flakyKV wraps a KV and fails Set or Get on demand.
type flakyKV struct {
	storage.KV
	failSet atomic.Bool
	failGet atomic.Bool
}

var errDiskFull = errors.New("disk full")

func (f *flakyKV) Set(key, value string) error {
	if f.failSet.Load() {
		return errDiskFull
	}
	return f.KV.Set(key, value)
}

func (f *flakyKV) Get(key string) (string, bool, error) {
	if f.failGet.Load() {
		return "", false, errDiskFull
	}
	return f.KV.Get(key)
}

func fixedClock() func() time.Time {
	t0 := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	var n int64
	return func() time.Time {
		return t0.Add(time.Duration(atomic.AddInt64(&n, 1)) * time.Second)
	}
}

func seqIDs() func() string {
	var n int64
	return func() string { return fmt.Sprintf("msg-%d", atomic.AddInt64(&n, 1)) }
}

func newTestStore(t *testing.T, kv storage.KV, opts ...StoreOption) *Store {
	t.Helper()
	base := []StoreOption{
		WithLogger(zaptest.NewLogger(t)),
		WithClock(fixedClock()),
		WithIDGenerator(seqIDs()),
	}
	return NewStore(kv, append(base, opts...)...)
}

func followUp(b bool) *bool { return &b }

// =============================================================================
// PERSISTENCE
// =============================================================================

func TestStore_AppendRoundTrip(t *testing.T) {
	kv := storage.NewMemoryKV()
	s := newTestStore(t, kv)
	s.Load()

	inputs := []struct {
		role    model.Role
		content string
		meta    model.Meta
	}{
		{model.RoleAssistant, "Xin chào!", model.Meta{}},
		{model.RoleUser, "mình mới tập", model.WithType(model.TypeChat)},
		{model.RoleAssistant, "Không thể hỗ trợ yêu cầu này.", model.WithType(model.TypeGuard)},
		{model.RoleUser, "Ảnh bữa ăn + ghi chú: cơm gà", model.WithType(model.TypeImage)},
		{model.RoleAssistant, "Khoảng 650 kcal", model.Meta{Type: model.TypeMeal, FollowUp: followUp(true)}},
	}
	for i, in := range inputs {
		_, err := s.AppendMessage(in.role, in.content, in.meta)
		require.NoError(t, err)
		assert.Equal(t, i+1, s.Len())
	}

	reloaded := newTestStore(t, kv)
	res := reloaded.Load()
	assert.Equal(t, LoadOK, res.History)
	assert.Equal(t, len(inputs), res.Messages)
	assert.Equal(t, s.Messages(), reloaded.Messages(), "role, content, meta and timestamp survive a reload")
}

func TestStore_AppendMessageStampsAndNotifies(t *testing.T) {
	kv := storage.NewMemoryKV()
	var seen []int
	var s *Store
	s = newTestStore(t, kv, WithOnChange(func() { seen = append(seen, s.Len()) }))

	msg, err := s.AppendMessage(model.RoleUser, "hi", model.WithType(model.TypeChat))
	require.NoError(t, err)

	assert.Equal(t, "msg-1", msg.ID)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 6, 0, time.UTC), msg.Timestamp)
	assert.Equal(t, []int{1}, seen, "hook observes the appended message")

	raw, ok, err := kv.Get(storage.KeyHistory)
	require.NoError(t, err)
	require.True(t, ok, "append persists before returning")
	assert.Contains(t, raw, `"content":"hi"`)
}

func TestStore_SaveFailureKeepsMemoryState(t *testing.T) {
	kv := &flakyKV{KV: storage.NewMemoryKV()}
	notified := 0
	s := newTestStore(t, kv, WithOnChange(func() { notified++ }))

	kv.failSet.Store(true)
	msg, err := s.AppendMessage(model.RoleUser, "hello", model.Meta{})
	require.ErrorIs(t, err, errDiskFull)

	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, 1, s.Len(), "the message stays in the log")
	assert.Equal(t, 1, notified, "the view still updates")

	kv.failSet.Store(false)
	require.NoError(t, s.Save())
	_, ok, _ := kv.Get(storage.KeyHistory)
	assert.True(t, ok)
}

// =============================================================================
// LOAD FALLBACKS
// =============================================================================

func TestStore_LoadEmpty(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryKV())
	res := s.Load()

	assert.Equal(t, LoadAbsent, res.History)
	assert.Equal(t, LoadAbsent, res.Profile)
	assert.False(t, res.Degraded())
	assert.Empty(t, s.Messages())
	assert.True(t, s.Profile().IsEmpty())
}

func TestStore_LoadCorruptHistory(t *testing.T) {
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(storage.KeyHistory, "{not json"))
	require.NoError(t, kv.Set(storage.KeyProfile, `{"goal":"tăng cơ"}`))

	s := newTestStore(t, kv)
	var res LoadResult
	require.NotPanics(t, func() { res = s.Load() })

	assert.Equal(t, LoadCorrupt, res.History)
	assert.Equal(t, LoadOK, res.Profile)
	assert.True(t, res.Degraded())
	assert.Empty(t, s.Messages())
	assert.NotNil(t, s.Messages())

	goal, _ := s.Profile().Get(model.FieldGoal)
	assert.Equal(t, "tăng cơ", goal)

	raw, _, _ := kv.Get(storage.KeyHistory)
	assert.Equal(t, "{not json", raw, "load never rewrites a corrupt blob")
}

func TestStore_LoadToleratesOddTimestamps(t *testing.T) {
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(storage.KeyHistory, `[
		{"id":"a","role":"user","content":"Mình muốn tăng cơ","meta":{},"timestamp":"2024-05-01"},
		{"id":"b","role":"assistant","content":"Ok","meta":{},"timestamp":"không rõ"}
	]`))

	s := newTestStore(t, kv)
	res := s.Load()
	assert.Equal(t, LoadOK, res.History)
	assert.False(t, res.Degraded())

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), msgs[0].Timestamp)
	assert.True(t, msgs[1].Timestamp.IsZero())
	assert.Equal(t, "Ok", msgs[1].Content)
}

func TestStore_LoadCorruptProfileKeepsDefault(t *testing.T) {
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(storage.KeyProfile, `["wrong shape"]`))

	s := newTestStore(t, kv)
	res := s.Load()
	assert.Equal(t, LoadCorrupt, res.Profile)
	assert.True(t, s.Profile().IsEmpty())
}

func TestStore_LoadUnavailable(t *testing.T) {
	kv := &flakyKV{KV: storage.NewMemoryKV()}
	kv.failGet.Store(true)

	res := newTestStore(t, kv).Load()
	assert.Equal(t, LoadUnavailable, res.History)
	assert.Equal(t, LoadUnavailable, res.Profile)
	assert.Equal(t, "unavailable", res.History.String())
}

// =============================================================================
// MEMORY, PAYLOAD, CLEAR
// =============================================================================

func TestStore_UpdateMemoryFromTextPersists(t *testing.T) {
	kv := storage.NewMemoryKV()
	s := newTestStore(t, kv)

	changes, err := s.UpdateMemoryFromText("mình mới tập, 3 buổi/tuần, nặng 70kg, ăn chay")
	require.NoError(t, err)
	assert.Len(t, changes, 4)

	raw, ok, err := kv.Get(storage.KeyProfile)
	require.NoError(t, err)
	require.True(t, ok)

	var stored map[string]*string
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, "70 kg", *stored["body"])
	assert.Nil(t, stored["goal"], "unknown fields persist as null")

	again, err := s.UpdateMemoryFromText("mình mới tập, 3 buổi/tuần, nặng 70kg, ăn chay")
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestStore_APIMessagesFiltersRoles(t *testing.T) {
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(storage.KeyHistory, `[
		{"role":"system","content":"hidden","meta":{},"timestamp":"2025-01-01T00:00:00Z"},
		{"role":"user","content":"a","meta":{"type":"chat"},"timestamp":"2025-01-01T00:00:01Z"},
		{"role":"assistant","content":"b","meta":{"type":"guard"},"timestamp":"2025-01-01T00:00:02Z"}
	]`))
	s := newTestStore(t, kv)
	s.Load()

	assert.Len(t, s.Messages(), 3, "unknown roles stay visible in the log")
	assert.Equal(t, []model.APIMessage{
		{Role: model.RoleUser, Content: "a"},
		{Role: model.RoleAssistant, Content: "b"},
	}, s.APIMessages())

	data, err := json.Marshal(s.APIMessages())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "meta")
	assert.NotContains(t, string(data), "timestamp")
}

func TestStore_ClearKeepsProfile(t *testing.T) {
	kv := storage.NewMemoryKV()
	notified := 0
	s := newTestStore(t, kv, WithOnChange(func() { notified++ }))

	_, err := s.UpdateMemoryFromText("tăng cơ, tập gym, đau lưng")
	require.NoError(t, err)
	_, err = s.AppendMessage(model.RoleUser, "tăng cơ, tập gym, đau lưng", model.WithType(model.TypeChat))
	require.NoError(t, err)
	before := s.Profile()
	notified = 0

	require.NoError(t, s.Clear())

	assert.Empty(t, s.Messages())
	assert.Equal(t, before, s.Profile())
	assert.Equal(t, 1, notified)

	reloaded := newTestStore(t, kv)
	reloaded.Load()
	assert.Empty(t, reloaded.Messages())
	assert.Equal(t, before, reloaded.Profile())
}

func TestStore_ReturnedViewsAreCopies(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryKV())
	_, err := s.AppendMessage(model.RoleUser, "original", model.Meta{})
	require.NoError(t, err)
	_, err = s.UpdateMemoryFromText("ăn chay")
	require.NoError(t, err)

	msgs := s.Messages()
	msgs[0].Content = "mutated"
	p := s.Profile()
	p.Set(model.FieldDiet, "mutated")

	assert.Equal(t, "original", s.Messages()[0].Content)
	diet, _ := s.Profile().Get(model.FieldDiet)
	assert.Equal(t, "ăn chay", diet)
}

func TestStore_FollowUpFlagIsNotShared(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryKV())
	flag := true
	appended, err := s.AppendMessage(model.RoleAssistant, "Bạn ăn bao nhiêu cơm?",
		model.Meta{Type: model.TypeMeal, FollowUp: &flag})
	require.NoError(t, err)

	flag = false
	assert.True(t, s.Messages()[0].Meta.NeedsFollowUp(), "caller's pointer is not kept")

	*appended.Meta.FollowUp = false
	assert.True(t, s.Messages()[0].Meta.NeedsFollowUp(), "returned message is a copy")

	msgs := s.Messages()
	*msgs[0].Meta.FollowUp = false
	assert.True(t, s.Messages()[0].Meta.NeedsFollowUp(), "Messages returns copies")
}

// =============================================================================
// REFRESH
// =============================================================================

func TestStore_RefreshPicksUpExternalWrites(t *testing.T) {
	kv, err := storage.NewFileKV(t.TempDir())
	require.NoError(t, err)

	a := newTestStore(t, kv)
	a.Load()
	_, err = a.AppendMessage(model.RoleUser, "from a", model.Meta{})
	require.NoError(t, err)

	changed, err := a.Refresh()
	require.NoError(t, err)
	assert.False(t, changed, "own writes are not reported")

	b := newTestStore(t, kv)
	b.Load()
	_, err = b.AppendMessage(model.RoleAssistant, "from b", model.Meta{})
	require.NoError(t, err)

	notified := false
	a.SetOnChange(func() { notified = true })
	changed, err = a.Refresh()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, notified)
	assert.Len(t, a.Messages(), 2)
}

func TestStore_RefreshReadError(t *testing.T) {
	kv := &flakyKV{KV: storage.NewMemoryKV()}
	s := newTestStore(t, kv)
	kv.failGet.Store(true)

	_, err := s.Refresh()
	assert.ErrorIs(t, err, errDiskFull)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestStore_ConcurrentAppends(t *testing.T) {
	kv := storage.NewMemoryKV()
	s := NewStore(kv)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.AppendMessage(model.RoleUser, fmt.Sprintf("m%d", i), model.Meta{})
			_, _ = s.UpdateMemoryFromText("giảm mỡ")
			_ = s.APIMessages()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, s.Len())

	reloaded := NewStore(kv)
	reloaded.Load()
	assert.Len(t, reloaded.Messages(), 20, "every append is a complete write of the full log")
}
