// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for ptcoach.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - APIConfig: Coach API base URL, timeout and rate limit
//   - StorageConfig: Persistence backend and data directory
//   - ValidationError / ValidateErrors: Field-level validation failures
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Command line flags
//   - Environment variables (PTCOACH_*), including a local .env file
//   - ~/.ptcoach/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	client := api.NewClient(cfg.API.BaseURL, api.WithTimeout(cfg.API.Timeout()))
package config
