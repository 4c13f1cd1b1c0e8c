// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// =============================================================================
// BACKEND CONFORMANCE
// =============================================================================

func backends(t *testing.T) map[string]func() KV {
	return map[string]func() KV{
		BackendFile: func() KV {
			kv, err := NewFileKV(t.TempDir())
			require.NoError(t, err)
			return kv
		},
		BackendSQLite: func() KV {
			kv, err := NewSQLiteKV(SQLitePath(t.TempDir()))
			require.NoError(t, err)
			return kv
		},
		BackendMemory: func() KV {
			return NewMemoryKV()
		},
	}
}

func TestKV_Conformance(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			kv := open()
			defer kv.Close()

			_, ok, err := kv.Get(KeyHistory)
			require.NoError(t, err)
			assert.False(t, ok, "missing key reports ok=false")

			require.NoError(t, kv.Set(KeyHistory, `[{"role":"user"}]`))
			v, ok, err := kv.Get(KeyHistory)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `[{"role":"user"}]`, v)

			require.NoError(t, kv.Set(KeyHistory, `[]`))
			v, _, err = kv.Get(KeyHistory)
			require.NoError(t, err)
			assert.Equal(t, `[]`, v, "set replaces the previous value")

			require.NoError(t, kv.Set(KeyProfile, "Chào bạn"))
			v, _, err = kv.Get(KeyProfile)
			require.NoError(t, err)
			assert.Equal(t, "Chào bạn", v)

			require.NoError(t, kv.Remove(KeyHistory))
			require.NoError(t, kv.Remove(KeyHistory), "removing twice is fine")
			_, ok, err = kv.Get(KeyHistory)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, kv.Close())
			_, _, err = kv.Get(KeyProfile)
			assert.ErrorIs(t, err, ErrClosed)
			assert.ErrorIs(t, kv.Set(KeyProfile, "x"), ErrClosed)
		})
	}
}

func TestKV_RejectsUnsafeKeys(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			kv := open()
			defer kv.Close()

			for _, key := range []string{"", "../escape", "UPPER", "a/b", "space key"} {
				err := kv.Set(key, "x")
				assert.ErrorIs(t, err, ErrInvalidKey, key)
			}
		})
	}
}

func TestStorageError_Is(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), ErrClosed)
	assert.ErrorIs(t, wrapped, ErrClosed)
	assert.NotErrorIs(t, ErrClosed, ErrInvalidKey)
}

// =============================================================================
// BACKEND SPECIFICS
// =============================================================================

func TestFileKV_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	a, err := NewFileKV(dir)
	require.NoError(t, err)
	require.NoError(t, a.Set(KeyProfile, `{"goal":"tăng cơ"}`))
	require.NoError(t, a.Close())

	b, err := NewFileKV(dir)
	require.NoError(t, err)
	v, ok, err := b.Get(KeyProfile)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"goal":"tăng cơ"}`, v)

	_, err = os.Stat(filepath.Join(dir, KeyProfile+".json"))
	assert.NoError(t, err)
}

func TestFileKV_KeyForPath(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)

	key, ok := kv.KeyForPath(kv.Path(KeyHistory))
	assert.True(t, ok)
	assert.Equal(t, KeyHistory, key)

	_, ok = kv.KeyForPath(filepath.Join(kv.Dir(), ".tmp-"+KeyHistory+".json-123"))
	assert.False(t, ok, "temp files are ignored")
	_, ok = kv.KeyForPath(filepath.Join(kv.Dir(), "ptcoach.log"))
	assert.False(t, ok)
	_, ok = kv.KeyForPath(filepath.Join(t.TempDir(), KeyHistory+".json"))
	assert.False(t, ok, "files outside the data dir are ignored")
}

func TestSQLiteKV_PersistsAndTracksUpdate(t *testing.T) {
	path := SQLitePath(t.TempDir())

	a, err := NewSQLiteKV(path)
	require.NoError(t, err)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return fixed }
	require.NoError(t, a.Set(KeyHistory, "[]"))

	ts, err := a.UpdatedAt(KeyHistory)
	require.NoError(t, err)
	assert.True(t, fixed.Equal(ts))
	require.NoError(t, a.Close())

	b, err := NewSQLiteKV(path)
	require.NoError(t, err)
	defer b.Close()
	v, ok, err := b.Get(KeyHistory)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", v)

	ts, err = b.UpdatedAt(KeyProfile)
	require.NoError(t, err)
	assert.True(t, ts.IsZero())
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	kv, err := Open(Options{Backend: "", Dir: dir})
	require.NoError(t, err)
	assert.IsType(t, &FileKV{}, kv)
	kv.Close()

	kv, err = Open(Options{Backend: "SQLITE", Dir: dir, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteKV{}, kv)
	kv.Close()

	kv, err = Open(Options{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryKV{}, kv)

	_, err = Open(Options{Backend: "redis", Dir: dir})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

// =============================================================================
// WATCHER
// =============================================================================

func TestWatcher_ReportsExternalWrites(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir)
	require.NoError(t, err)

	w, err := NewWatcher(kv, 30*time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Close()

	other, err := NewFileKV(dir)
	require.NoError(t, err)
	require.NoError(t, other.Set(KeyHistory, "[]"))
	// Unrelated files produce no events.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	select {
	case key := <-w.Events():
		assert.Equal(t, KeyHistory, key)
	case <-time.After(3 * time.Second):
		t.Fatal("no watcher event")
	}
}

func TestWatcher_CloseIsIdempotent(t *testing.T) {
	kv, err := NewFileKV(t.TempDir())
	require.NoError(t, err)
	w, err := NewWatcher(kv, 0, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())

	require.NoError(t, w.Close())
	_ = w.Close()

	_, open := <-w.Events()
	assert.False(t, open)
}
