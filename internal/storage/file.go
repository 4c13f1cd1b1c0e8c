// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Tri-Phung/chatbot-project/internal/util"
)

// fileExt is appended to a key to form its file name.
const fileExt = ".json"

// FileKV stores each key in its own file under Dir.
// Writes go through util.AtomicWriteFile so a crash never leaves a torn value.
type FileKV struct {
	dir    string
	mu     sync.RWMutex
	closed bool
}

// NewFileKV creates a file-backed store rooted at dir, creating it if needed.
func NewFileKV(dir string) (*FileKV, error) {
	if dir == "" {
		return nil, errors.New("file storage requires a directory")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve data directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &FileKV{dir: abs}, nil
}

// Dir returns the directory the store writes to.
func (s *FileKV) Dir() string {
	return s.dir
}

// Path returns the file that holds key.
func (s *FileKV) Path(key string) string {
	return filepath.Join(s.dir, key+fileExt)
}

// KeyForPath maps a file path back to its key. ok is false for unrelated files.
func (s *FileKV) KeyForPath(path string) (string, bool) {
	if filepath.Dir(path) != s.dir || util.IsTempFile(path) {
		return "", false
	}
	base := filepath.Base(path)
	if !strings.HasSuffix(base, fileExt) {
		return "", false
	}
	key := strings.TrimSuffix(base, fileExt)
	if validateKey(key) != nil {
		return "", false
	}
	return key, true
}

// Get implements KV.
func (s *FileKV) Get(key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}

	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return string(data), true, nil
}

// Set implements KV.
func (s *FileKV) Set(key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if err := util.AtomicWriteFileWithDir(s.Path(key), []byte(value), 0o600, 0o700); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Remove implements KV.
func (s *FileKV) Remove(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if err := os.Remove(s.Path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Close implements KV.
func (s *FileKV) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
