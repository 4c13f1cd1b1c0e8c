// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and top-level handlers for ptcoach.
package cli

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdProfile
	CmdHistory
	CmdExport
	CmdClear
	CmdDoctor
	CmdConfig
	CmdVersion
	CmdHelp
)

// String returns the command name as typed on the command line.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdChat:
		return "chat"
	case CmdProfile:
		return "profile"
	case CmdHistory:
		return "history"
	case CmdExport:
		return "export"
	case CmdClear:
		return "clear"
	case CmdDoctor:
		return "doctor"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return fmt.Sprintf("Command(%d)", int(c))
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath string // --config PATH
	APIBase    string // --api URL
	DataDir    string // --data-dir DIR
	Storage    string // --storage file|sqlite|memory
	NoColor    bool
	Verbose    bool
	JSON       bool // Output in JSON format

	// Unknown is set when the first positional word is not a command.
	Unknown string

	// Raw holds the arguments after the command name, global flags removed.
	Raw []string
}

// Parser returns an ArgParser over the command's own arguments.
func (a Args) Parser() *ArgParser {
	return NewArgParser(a.Raw, "confirm", "y", "json")
}

const usageText = `ptcoach - terminal client for the PT & nutrition coach

Usage:
  ptcoach                      Start the full-screen chat (default)
  ptcoach chat                 Line-mode chat with input history
  ptcoach profile              Show what the coach remembers about you
  ptcoach history [--limit N]  Print the conversation (last N messages)
  ptcoach export [--format md|json] [--out PATH]
                               Write the conversation to a file
  ptcoach clear [--confirm]    Delete the conversation history
  ptcoach doctor               Check config, storage and the coach API
  ptcoach config [show|path|init]
                               Show, locate or create the config file
  ptcoach version              Print version information
  ptcoach help                 Show this help

Global flags:
  --config PATH                Config file (default: ~/.ptcoach/config.toml)
  --api URL                    Coach API base URL (default: http://localhost:8000)
  --data-dir DIR               Where history and profile are stored
  --storage file|sqlite|memory Storage backend
  --no-color                   Disable colors (NO_COLOR is honored too)
  --json                       Machine-readable output (profile, history, doctor, version)
  -v, --verbose                Debug logging

Chat commands:
  /image <path> [note]         Analyze a meal photo
  /finalize <portion details>  Finish the last meal analysis
  /clear                       Delete the conversation history
  /profile                     Show the remembered profile
  /export [md|json] [path]     Export the conversation
  /help                        List commands
  /quit                        Leave

Environment:
  PTCOACH_API_BASE, PTCOACH_DATA_DIR, PTCOACH_STORAGE, PTCOACH_LOG_LEVEL,
  PTCOACH_TIMEOUT, NO_COLOR. A .env file in the working directory is loaded first.
`

// PrintUsage writes the usage text to w.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// PrintVersion writes version information to w.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "ptcoach %s\n", Version)
	fmt.Fprintf(w, "  commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  built:  %s\n", BuildDate)
	fmt.Fprintf(w, "  go:     %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Parse parses os.Args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses argv (without the program name) into a command and its args.
// Global flags may appear anywhere.
func ParseArgs(argv []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	parsedArgs.Raw = remaining[1:]

	switch cmd {
	case "tui":
		return CmdTUI, parsedArgs
	case "chat", "repl":
		return CmdChat, parsedArgs
	case "profile", "memory":
		return CmdProfile, parsedArgs
	case "history", "log":
		return CmdHistory, parsedArgs
	case "export":
		return CmdExport, parsedArgs
	case "clear":
		return CmdClear, parsedArgs
	case "doctor", "diag":
		return CmdDoctor, parsedArgs
	case "config":
		return CmdConfig, parsedArgs
	case "version", "--version":
		return CmdVersion, parsedArgs
	case "help", "-h", "--help":
		return CmdHelp, parsedArgs
	default:
		parsedArgs.Unknown = remaining[0]
		parsedArgs.Raw = remaining[1:]
		return CmdHelp, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsedArgs Args

	valueFlags := map[string]*string{
		"--config":   &parsedArgs.ConfigPath,
		"--api":      &parsedArgs.APIBase,
		"--data-dir": &parsedArgs.DataDir,
		"--storage":  &parsedArgs.Storage,
	}

	i := 0
	for i < len(args) {
		arg := args[i]

		switch arg {
		case "--no-color":
			parsedArgs.NoColor = true
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--json":
			parsedArgs.JSON = true
		default:
			if dst, ok := valueFlags[arg]; ok {
				if i+1 < len(args) {
					i++
					*dst = args[i]
				}
				break
			}
			// --flag=value form
			if name, value, ok := strings.Cut(arg, "="); ok {
				if dst, ok := valueFlags[name]; ok {
					*dst = value
					break
				}
			}
			remaining = append(remaining, arg)
		}
		i++
	}

	return remaining, parsedArgs
}

// HandleVersion handles the "version" command with JSON output support.
func HandleVersion(w io.Writer, args Args) error {
	if args.JSON {
		data := VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}
		return NewJSONResponse("version", data).Print(w)
	}
	PrintVersion(w)
	return nil
}

// HandleHelp handles the "help" command.
// An unknown command prints the usage and fails with a usage error.
func HandleHelp(w io.Writer, args Args) error {
	PrintUsage(w)
	if args.Unknown != "" {
		return &UsageError{Message: fmt.Sprintf("unknown command %q", args.Unknown)}
	}
	return nil
}
