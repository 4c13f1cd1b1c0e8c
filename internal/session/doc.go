// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the conversation state: the message log and the
// user profile, persisted through a storage.KV.
//
// # Key Types
//
//   - Store: single owner of the log and profile; persists after every mutation
//   - LoadResult: per-key outcome of Load (absent, ok, corrupt, unavailable)
//
// # Usage
//
//	store := session.NewStore(kv, session.WithLogger(logger))
//	if res := store.Load(); res.Degraded() {
//	    logger.Warn("started from defaults")
//	}
//	store.AppendMessage(model.RoleUser, "mình mới tập", model.WithType(model.TypeChat))
//	store.UpdateMemoryFromText("mình mới tập")
//	payload := store.APIMessages()
//
// # Persistence
//
// The log is stored under storage.KeyHistory as a JSON array of messages and
// the profile under storage.KeyProfile as a JSON object. Decoding failures are
// never surfaced to the user; Load falls back to defaults and reports it.
package session
