// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash command system shared by the TUI and the REPL.
//
// The package only parses and completes; each front end dispatches on
// Command.Name and calls the coach workflows itself.
//
// # Built-in Commands
//
//   - /image <path> [note]: analyze a meal photo
//   - /finalize <text>: complete the last meal analysis
//   - /clear: clear the conversation (profile is kept)
//   - /profile: show the remembered profile
//   - /export [md|json] [path]: write the conversation to a file
//   - /help, /quit
//
// # Usage
//
//	parser := commands.NewParser(commands.NewRegistry())
//	res := parser.Parse("/image 'bữa trưa.jpg' cơm gà 200g")
//	path, note := commands.SplitFirst(res.RawArgs)
package commands
