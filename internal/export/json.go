// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/Tri-Phung/chatbot-project/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports the complete snapshot as JSON.
// Messages keep the same shape as the persisted history.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

type jsonDocument struct {
	ExportedAt time.Time       `json:"exported_at"`
	Profile    model.Profile   `json:"profile"`
	Messages   []model.Message `json:"messages"`
}

// Export converts a snapshot to indented JSON.
func (e *JSONExporter) Export(snap Snapshot) ([]byte, error) {
	msgs := snap.Messages
	if msgs == nil {
		msgs = []model.Message{}
	}
	return json.MarshalIndent(jsonDocument{
		ExportedAt: snap.ExportedAt.UTC(),
		Profile:    snap.Profile,
		Messages:   msgs,
	}, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
