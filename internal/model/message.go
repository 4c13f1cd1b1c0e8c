// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsConversational reports whether the role is forwarded to the coach API.
func (r Role) IsConversational() bool {
	return r == RoleUser || r == RoleAssistant
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "Bạn"
	case RoleAssistant:
		return "Coach"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE TAGS
// =============================================================================

// MessageType tags a message with the workflow that produced it.
type MessageType string

const (
	TypeChat      MessageType = "chat"
	TypeGuard     MessageType = "guard"
	TypeImage     MessageType = "image"
	TypeMeal      MessageType = "meal"
	TypeMealFinal MessageType = "meal-final"
	TypeFinalize  MessageType = "finalize"
	TypeError     MessageType = "error"
)

// Meta is the optional tag record attached to a message.
type Meta struct {
	Type     MessageType `json:"type,omitempty"`
	FollowUp *bool       `json:"followUp,omitempty"`
}

// IsZero reports whether no tag is set.
func (m Meta) IsZero() bool {
	return m.Type == "" && m.FollowUp == nil
}

// NeedsFollowUp reports whether the server asked for meal clarifications.
func (m Meta) NeedsFollowUp() bool {
	return m.FollowUp != nil && *m.FollowUp
}

// Clone returns a copy that shares no pointers with m.
func (m Meta) Clone() Meta {
	if m.FollowUp != nil {
		v := *m.FollowUp
		m.FollowUp = &v
	}
	return m
}

// WithType returns a Meta carrying only the given type.
func WithType(t MessageType) Meta {
	return Meta{Type: t}
}

// =============================================================================
// MESSAGE
// =============================================================================

// Message is one entry of the conversation log.
// The log is append-only except for a full clear; slice order is display order.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Meta      Meta      `json:"meta"`
	Timestamp time.Time `json:"timestamp"`
}

// timestampLayouts are tried in order when decoding a stored timestamp.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON decodes a stored message. A timestamp that is not RFC 3339
// is parsed leniently; one that cannot be read at all decodes as the zero
// time instead of failing the whole history.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var raw struct {
		plain
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Message(raw.plain)
	m.Timestamp = parseTimestamp(raw.Timestamp)
	return nil
}

func parseTimestamp(raw json.RawMessage) time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// Epoch milliseconds, as written by browser clients.
		var ms int64
		if err := json.Unmarshal(raw, &ms); err == nil {
			return time.UnixMilli(ms).UTC()
		}
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// IsGuard reports whether the server flagged this reply as a guardrail intervention.
func (m Message) IsGuard() bool {
	return m.Meta.Type == TypeGuard
}

// IsError reports whether the message reports a failed request.
func (m Message) IsError() bool {
	return m.Meta.Type == TypeError
}

// =============================================================================
// API PAYLOAD
// =============================================================================

// APIMessage is the {role, content} pair sent upstream.
type APIMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ToAPIMessages filters msgs to user/assistant turns and strips metadata and timestamps.
// The full history is returned; no context window is applied.
func ToAPIMessages(msgs []Message) []APIMessage {
	out := make([]APIMessage, 0, len(msgs))
	for _, m := range msgs {
		if !m.Role.IsConversational() {
			continue
		}
		out = append(out, APIMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
