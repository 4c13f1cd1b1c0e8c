// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line interface parsing and execution for ptcoach.
//
// # Key Types
//
//   - Command: Enumeration of all available CLI commands
//   - Args: Parsed command-line arguments with global and command-specific flags
//   - App: The wired application (config, logger, storage, session, API client, coach)
//   - ArgParser: Flag and positional parsing shared by every subcommand
//
// # Usage
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdChat:
//	    err = cli.HandleChat(ctx, args)
//	// ... other commands
//	}
//
// # Commands Overview
//
//   - (none): Full-screen chat
//   - chat: Line-mode chat with input history
//   - profile, history, export, clear: Inspect or manage the saved conversation
//   - doctor: Config, storage and API health checks
//   - config: Show, locate or create the config file
//
// profile, history and doctor support --json for scripting.
package cli
