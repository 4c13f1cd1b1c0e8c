// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides durable string key-value persistence for ptcoach.
//
// The application persists exactly two keys, KeyHistory and KeyProfile, each
// holding a JSON document. The store knows nothing about their content.
//
// # Backends
//
//   - FileKV: one file per key under the data directory, written atomically
//   - SQLiteKV: a single kv table in ptcoach.db (WAL mode)
//   - MemoryKV: process-local map for tests and ephemeral runs
//
// # Watching
//
// Watcher observes a FileKV directory with fsnotify and reports keys changed
// by another process so an open session can reload them.
//
// # Usage
//
//	kv, err := storage.Open(storage.Options{Backend: "file", Dir: dataDir})
//	if err != nil {
//	    return err
//	}
//	defer kv.Close()
//	raw, ok, err := kv.Get(storage.KeyHistory)
package storage
