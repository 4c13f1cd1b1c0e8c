// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes the conversation and profile to shareable files.
//
// # Key Types
//
//   - Snapshot: messages and profile at export time
//   - Exporter: format interface (MarkdownExporter, JSONExporter)
//   - Options: output directory and content switches
//
// # Usage
//
//	exp, err := export.ForFormat("md", nil)
//	if err != nil {
//	    return err
//	}
//	path, err := export.ExportToFile(export.Snapshot{
//	    Messages: store.Messages(),
//	    Profile:  store.Profile(),
//	}, exp, "", nil)
package export
