// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the full-screen Bubble Tea chat interface.
//
// The model renders the session store through ui/render and runs coach
// actions as commands so the UI keeps redrawing while a request is in
// flight. Store changes made by the actions arrive as StoreChangedMsg and
// rewrites by other processes as StorageEventMsg (from storage.Watcher).
//
// # Key Types
//
//   - Model: the Bubble Tea model
//   - Options: wiring (coach, renderer, watcher events, export directory)
//   - KeyMap: keyboard bindings
//
// # Usage
//
//	err := chat.Run(ctx, chat.Options{
//	    Coach:    c,
//	    Renderer: render.New(theme, render.Options{Markdown: true}),
//	    Events:   watcher.Events(),
//	})
package chat
