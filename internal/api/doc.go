// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the remote coach service.
//
// # Endpoints
//
//   - POST /api/chat: {messages} -> {reply, guardrail_triggered}
//   - POST /api/analyze-meal: multipart image + note -> {reply, needs_follow_up}
//   - POST /api/meal-finalize: {clarifications} -> {reply}
//   - GET /health: {status: "ok"}
//
// # Errors
//
// Non-2xx responses become *APIError carrying the server's "detail" string.
// A 2xx response without "reply" yields ErrMissingReply. Photo validation
// failures from LoadImage are *ImageError. Nothing is retried.
//
// # Usage
//
//	client := api.NewClient(cfg.API.BaseURL).
//	    WithTimeout(cfg.API.Timeout()).
//	    WithRateLimit(cfg.API.RatePerSecond, cfg.API.Burst).
//	    WithLogger(logger)
//	reply, err := client.Chat(ctx, store.APIMessages())
package api
