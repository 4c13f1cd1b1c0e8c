// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes the conversation and profile to shareable files.
package export

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Tri-Phung/chatbot-project/internal/model"
	"github.com/Tri-Phung/chatbot-project/internal/util"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Snapshot is the state being exported.
type Snapshot struct {
	Messages   []model.Message
	Profile    model.Profile
	ExportedAt time.Time
}

// Exporter defines the interface for conversation exporters.
type Exporter interface {
	// Export converts a snapshot to the target format and returns the content.
	Export(snap Snapshot) ([]byte, error)

	// FileExtension returns the appropriate file extension (e.g., ".md").
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// Format names accepted by ForFormat.
const (
	FormatMarkdown = "md"
	FormatJSON     = "json"
)

// ForFormat returns the exporter for a format name ("md", "markdown", "json").
func ForFormat(name string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", FormatMarkdown, "markdown":
		return NewMarkdownExporter(opts), nil
	case FormatJSON:
		return NewJSONExporter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q (use md or json)", name)
	}
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is where generated file names are placed. Default: "."
	OutputDir string

	// IncludeProfile adds the profile table to Markdown exports.
	IncludeProfile bool

	// IncludeTimestamps includes per-message timestamps.
	IncludeTimestamps bool
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeProfile:    true,
		IncludeTimestamps: true,
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ExportToFile writes snap with exporter. When path is empty a name of the form
// ptcoach_20060102_150405<ext> is generated under opts.OutputDir.
// Returns the written path.
func ExportToFile(snap Snapshot, exporter Exporter, path string, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if snap.ExportedAt.IsZero() {
		snap.ExportedAt = time.Now()
	}

	content, err := exporter.Export(snap)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	if path == "" {
		dir := opts.OutputDir
		if dir == "" {
			dir = "."
		}
		path = filepath.Join(dir, fmt.Sprintf("ptcoach_%s%s",
			snap.ExportedAt.Format("20060102_150405"), exporter.FileExtension()))
	}

	if err := util.AtomicWriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// WriteFormat exports snap in the named format (see ForFormat) to path, or to a
// generated name under opts.OutputDir when path is empty.
func WriteFormat(snap Snapshot, format, path string, opts *Options) (string, error) {
	exp, err := ForFormat(format, opts)
	if err != nil {
		return "", err
	}
	return ExportToFile(snap, exp, path, opts)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// formatTimestamp formats a timestamp for display in local time.
func formatTimestamp(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

// formatShortTimestamp formats a timestamp for inline display.
func formatShortTimestamp(t time.Time) string {
	return t.Local().Format("15:04:05")
}
