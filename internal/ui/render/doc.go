// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns the conversation log and profile into terminal text.
//
// Both front ends (the Bubble Tea TUI and the line-mode REPL) use the same
// Renderer so guard replies, request failures and meal follow-up hints look
// identical everywhere.
package render
