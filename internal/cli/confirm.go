// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Unified confirmation handling for destructive CLI commands.
//
// Pattern:
//  1. If --confirm is present, proceed without prompting
//  2. If --json mode, require --confirm (no interactive prompts in JSON mode)
//  3. If stdin is not a TTY, require --confirm (can't prompt)
//  4. Otherwise, ask on the terminal

package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Prompt input and TTY detection, replaced in tests.
var (
	confirmInput io.Reader = os.Stdin
	stdinIsTTY             = IsTTY
)

// ErrConfirmationRequired is returned when a prompt is needed but impossible.
var ErrConfirmationRequired = &UsageError{
	Message: "confirmation required but stdin is not a terminal; use --confirm",
}

// RequireConfirmation checks if the user has confirmed a destructive action.
// The question is written to w.
//
// Returns:
//
//	bool  - true if confirmed, false if cancelled
//	error - non-nil if confirmation is required but cannot be asked
func RequireConfirmation(w io.Writer, confirmFlag bool, question string, jsonMode bool) (bool, error) {
	if confirmFlag {
		return true, nil
	}

	if jsonMode {
		return false, &UsageError{Message: "confirmation required: use --confirm in JSON mode"}
	}

	if !stdinIsTTY() {
		return false, ErrConfirmationRequired
	}

	return promptYesNo(w, confirmInput, question)
}

// promptYesNo asks question on w and reads one answer line from r.
// Only y and yes (any case) confirm.
func promptYesNo(w io.Writer, r io.Reader, question string) (bool, error) {
	fmt.Fprintf(w, "%s [y/N]: ", question)

	input, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && input == "" {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}

	response := strings.ToLower(strings.TrimSpace(input))
	return response == "y" || response == "yes", nil
}

// ShowCancellationMessage writes a standard cancellation message.
// Use this after RequireConfirmation returns false.
func ShowCancellationMessage(w io.Writer) {
	fmt.Fprintln(w, DimStyle.Render("Đã hủy."))
}
