// ptcoach - terminal client for the PT & nutrition coach.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Tri-Phung/chatbot-project/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(run())
}

func run() int {
	cmd, args := cli.Parse()
	if args.NoColor {
		cli.DisableColors()
	}

	// SIGTERM ends the session; SIGINT is handled per request by the front ends.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case cli.CmdTUI:
		err = cli.HandleTUI(ctx, args)
	case cli.CmdChat:
		err = cli.HandleChat(ctx, args)
	case cli.CmdProfile:
		err = cli.HandleProfile(os.Stdout, args)
	case cli.CmdHistory:
		err = cli.HandleHistory(os.Stdout, args)
	case cli.CmdExport:
		err = cli.HandleExport(os.Stdout, args)
	case cli.CmdClear:
		err = cli.HandleClear(os.Stdout, args)
	case cli.CmdDoctor:
		err = cli.HandleDoctor(ctx, os.Stdout, args)
	case cli.CmdConfig:
		err = cli.HandleConfig(os.Stdout, args)
	case cli.CmdVersion:
		err = cli.HandleVersion(os.Stdout, args)
	default:
		err = cli.HandleHelp(os.Stdout, args)
	}

	if err != nil {
		cli.DisplayError(os.Stderr, err, args.JSON)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
