// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Config command implementation for ptcoach.
//
// Command: config [subcommand]
//
// Subcommands:
//   show (default)      Print the effective settings (file + env + flags)
//   get KEY             Print one setting, e.g. api.base_url
//   path                Print the config file location
//   init [--force]      Write a config file with the default settings
//
// Examples:
//   ptcoach config
//   ptcoach config get storage.backend
//   ptcoach --config ./dev.toml config init

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Tri-Phung/chatbot-project/internal/config"
)

// HandleConfig handles the "config" command.
func HandleConfig(w io.Writer, args Args) error {
	p := NewArgParser(args.Raw, "force")

	switch sub := p.Subcommand(); sub {
	case "", "show":
		cfg, err := LoadConfig(args)
		if err != nil {
			return err
		}
		return showConfig(w, cfg, args.JSON)

	case "get":
		key := p.Positional(1)
		if key == "" {
			return &UsageError{Message: "missing key", Example: "ptcoach config get api.base_url"}
		}
		cfg, err := LoadConfig(args)
		if err != nil {
			return err
		}
		v, err := cfg.Get(key)
		if err != nil {
			return &UsageError{Message: err.Error()}
		}
		_, err = fmt.Fprintln(w, v)
		return err

	case "path":
		path, err := configPath(args)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, path)
		return err

	case "init":
		path, err := configPath(args)
		if err != nil {
			return err
		}
		return initConfig(w, path, p.BoolFlag("force"))

	default:
		return &UsageError{
			Message: fmt.Sprintf("unknown config subcommand %q", sub),
			Example: "ptcoach config show|get|path|init",
		}
	}
}

func configPath(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	return config.ConfigPath()
}

func showConfig(w io.Writer, cfg *config.Config, jsonMode bool) error {
	if jsonMode {
		return NewJSONResponse("config", cfg).Print(w)
	}
	fmt.Fprintln(w, TitleStyle.Render("ptcoach config"))
	for _, key := range config.Keys() {
		v, err := cfg.Get(key)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s%v\n", RenderLabel(key, 24), v)
	}
	return nil
}

// initConfig writes the defaults to path. An existing file is kept unless force is set.
func initConfig(w io.Writer, path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return &UsageError{
			Message: fmt.Sprintf("%s already exists", path),
			Example: "ptcoach config init --force",
		}
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat config file: %w", err)
	}

	if err := config.Save(config.Default(), path); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%s %s\n", SuccessStyle.Render("Wrote"), path)
	return err
}
