// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for the ptcoach application.
//
// # Key Functions
//
// String Utilities:
//   - TruncateWidth, PadRight: terminal-cell aware helpers
//   - OneLine: collapse a message into a single preview row
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
//
// # Usage
//
//	display := util.TruncateWidth(longText, 50)
//	err := util.AtomicWriteFile(path, data, 0o600)
package util
