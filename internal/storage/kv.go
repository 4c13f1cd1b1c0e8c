// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides durable string key-value persistence for ptcoach.
package storage

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Tri-Phung/chatbot-project/internal/logging"
)

// =============================================================================
// KEYS
// =============================================================================

const (
	// KeyHistory holds the encoded message log.
	KeyHistory = "pt-chat-history"
	// KeyProfile holds the encoded user profile ("memory").
	KeyProfile = "pt-session-memory"
)

// Keys lists every key the application persists.
var Keys = []string{KeyHistory, KeyProfile}

// =============================================================================
// KV INTERFACE
// =============================================================================

// KV is a durable, string-valued key-value store.
// Implementations must be safe for concurrent use.
type KV interface {
	// Get returns the stored value and whether the key exists.
	Get(key string) (value string, ok bool, err error)
	// Set replaces the value stored under key.
	Set(key, value string) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(key string) error
	// Close releases resources. Further calls return ErrClosed.
	Close() error
}

// =============================================================================
// ERRORS
// =============================================================================

// StorageError represents a storage-related error.
// It implements the error interface and can be compared using errors.Is.
type StorageError struct {
	Message string
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return e.Message
}

// Is implements error matching for errors.Is.
func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = &StorageError{Message: "storage closed"}
	// ErrInvalidKey is returned for keys that cannot be stored safely.
	ErrInvalidKey = &StorageError{Message: "invalid storage key"}
	// ErrUnknownBackend is returned by Open for an unrecognized backend name.
	ErrUnknownBackend = &StorageError{Message: "unknown storage backend"}
)

// validateKey rejects keys that are empty or would escape the data directory.
// Keys are restricted to lowercase letters, digits, '-' and '_'.
func validateKey(key string) error {
	if key == "" || len(key) > 128 {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// =============================================================================
// FACTORY
// =============================================================================

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	Dir     string
	Logger  *zap.Logger
}

// Open creates the KV store for the requested backend.
func Open(opts Options) (KV, error) {
	logger := logging.OrNop(opts.Logger)
	backend := strings.ToLower(opts.Backend)
	if backend == "" {
		backend = BackendFile
	}

	logger.Debug("opening storage", zap.String("backend", backend), zap.String("dir", opts.Dir))

	switch backend {
	case BackendFile:
		return NewFileKV(opts.Dir)
	case BackendSQLite:
		return NewSQLiteKV(SQLitePath(opts.Dir))
	case BackendMemory:
		return NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
