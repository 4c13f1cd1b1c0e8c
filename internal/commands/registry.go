// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash command system shared by the TUI and the REPL.
package commands

import "sort"

// Built-in command names.
const (
	CmdImage    = "/image"
	CmdFinalize = "/finalize"
	CmdClear    = "/clear"
	CmdProfile  = "/profile"
	CmdExport   = "/export"
	CmdHelp     = "/help"
	CmdQuit     = "/quit"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Command describes a slash command. Front ends dispatch on Name.
type Command struct {
	// Name is the primary command name (e.g., "/help")
	Name string

	// Aliases are alternative names (e.g., "/h", "/?")
	Aliases []string

	// Description is shown in help and completion
	Description string

	// Usage shows argument syntax (e.g., "/image <path> [note]")
	Usage string

	// Args defines the expected arguments
	Args []ArgDef

	// Hidden commands don't appear in help
	Hidden bool

	order int
}

// ArgDef defines an argument for a command.
type ArgDef struct {
	// Name of the argument
	Name string

	// Type determines completion behavior
	Type ArgType

	// Description explains the argument
	Description string

	// Values for enum types
	Values []string
}

// ArgType indicates what kind of completion to provide.
type ArgType int

const (
	ArgTypeString ArgType = iota // Free-form string
	ArgTypeFile                  // File path
	ArgTypeEnum                  // One of predefined values
)

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
}

// NewRegistry creates a new command registry with all built-in commands.
func NewRegistry() *Registry {
	r := &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
	r.registerBuiltins()
	return r
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd *Command) {
	if cmd.order == 0 {
		cmd.order = len(r.commands) + 1
	}
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd
	}
}

// Get retrieves a command by name or alias.
func (r *Registry) Get(name string) *Command {
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	if cmd, ok := r.aliases[name]; ok {
		return cmd
	}
	return nil
}

// All returns all registered commands in registration order.
func (r *Registry) All() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].order < cmds[j].order })
	return cmds
}

// Visible returns the commands shown in help.
func (r *Registry) Visible() []*Command {
	var out []*Command
	for _, cmd := range r.All() {
		if !cmd.Hidden {
			out = append(out, cmd)
		}
	}
	return out
}

// =============================================================================
// BUILT-IN COMMANDS
// =============================================================================

func (r *Registry) registerBuiltins() {
	r.Register(&Command{
		Name:        CmdImage,
		Aliases:     []string{"/img", "/meal"},
		Description: "Gửi ảnh bữa ăn để phân tích dinh dưỡng",
		Usage:       "/image <đường-dẫn-ảnh> [ghi chú]",
		Args: []ArgDef{
			{Name: "path", Type: ArgTypeFile, Description: "Ảnh JPG, PNG hoặc WebP (tối đa 8MB)"},
			{Name: "note", Type: ArgTypeString, Description: "Ghi chú kèm ảnh"},
		},
	})

	r.Register(&Command{
		Name:        CmdFinalize,
		Aliases:     []string{"/f"},
		Description: "Bổ sung khẩu phần để hoàn tất phân tích bữa ăn",
		Usage:       "/finalize <mô tả khẩu phần>",
		Args: []ArgDef{
			{Name: "clarifications", Type: ArgTypeString, Description: "Khẩu phần chi tiết"},
		},
	})

	r.Register(&Command{
		Name:        CmdClear,
		Description: "Xóa toàn bộ lịch sử trò chuyện (giữ hồ sơ)",
		Usage:       "/clear",
	})

	r.Register(&Command{
		Name:        CmdProfile,
		Aliases:     []string{"/p", "/memory"},
		Description: "Xem hồ sơ mà coach đã ghi nhớ",
		Usage:       "/profile",
	})

	r.Register(&Command{
		Name:        CmdExport,
		Description: "Xuất lịch sử ra tệp Markdown hoặc JSON",
		Usage:       "/export [md|json] [đường-dẫn]",
		Args: []ArgDef{
			{Name: "format", Type: ArgTypeEnum, Values: []string{"md", "json"}, Description: "Định dạng"},
			{Name: "path", Type: ArgTypeFile, Description: "Tệp đích"},
		},
	})

	r.Register(&Command{
		Name:        CmdHelp,
		Aliases:     []string{"/h", "/?"},
		Description: "Hiển thị các lệnh",
		Usage:       "/help",
	})

	r.Register(&Command{
		Name:        CmdQuit,
		Aliases:     []string{"/q", "/exit"},
		Description: "Thoát",
		Usage:       "/quit",
	})
}
