// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types shared by the state store, the
// coach API client and the renderers.
//
// # Key Types
//
//   - Message: Single log entry with role, content, meta tag and timestamp
//   - Meta: Optional tag record (type, followUp)
//   - Profile: Fixed-shape record of inferred user attributes
//   - APIMessage: The {role, content} pair sent upstream
//
// # Usage
//
//	msg := model.Message{Role: model.RoleUser, Content: "Mình muốn tăng cơ"}
//	payload := model.ToAPIMessages([]model.Message{msg})
package model
