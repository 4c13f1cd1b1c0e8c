// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// doctor.go - Doctor command implementation for ptcoach.
//
// Command: doctor
// Short:   Run health checks and diagnostics
// Aliases: diag
//
// Examples:
//   ptcoach doctor                Run all health checks
//   ptcoach doctor --json         Health check results in JSON
//
// Health Checks Performed:
//   1. Config Valid     - Config file, environment and flags validate
//   2. Storage Open     - The storage backend opens in the data directory
//   3. Saved Data       - Stored history and profile decode
//   4. Coach API        - GET /health answers on the configured base URL
//
// Exit Codes:
//   0   All checks passed (warnings allowed)
//   1   One or more checks failed

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Tri-Phung/chatbot-project/internal/config"
	"github.com/Tri-Phung/chatbot-project/internal/session"
	"github.com/Tri-Phung/chatbot-project/internal/storage"
)

// healthTimeout bounds the API health check.
const healthTimeout = 5 * time.Second

// =============================================================================
// HEALTH CHECK TYPES
// =============================================================================

// CheckStatus represents the status of a health check.
type CheckStatus int

const (
	// CheckPass indicates the check passed successfully.
	CheckPass CheckStatus = iota
	// CheckWarn indicates the check passed with warnings.
	CheckWarn
	// CheckFail indicates the check failed.
	CheckFail
	// CheckSkip indicates the check could not run because an earlier one failed.
	CheckSkip
)

// String returns the string representation of the check status.
func (s CheckStatus) String() string {
	switch s {
	case CheckPass:
		return "Pass"
	case CheckWarn:
		return "Warn"
	case CheckFail:
		return "Fail"
	case CheckSkip:
		return "Skip"
	default:
		return "Unknown"
	}
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // Suggested fix command or instruction
}

// Render returns a formatted string representation of the health check.
func (c *HealthCheck) Render() string {
	result := fmt.Sprintf("%s %s", RenderStatus(c.Status), ValueStyle.Render(c.Message))
	if c.Status != CheckPass && c.Fix != "" {
		result += "\n    " + DimStyle.Render("-> "+c.Fix)
	}
	return result
}

// =============================================================================
// DOCTOR COMMAND
// =============================================================================

// HandleDoctor handles the "doctor" command.
func HandleDoctor(ctx context.Context, w io.Writer, args Args) error {
	checks := RunChecks(ctx, args)

	var data DoctorData
	for _, check := range checks {
		switch check.Status {
		case CheckPass:
			data.Passed++
		case CheckWarn:
			data.Warned++
		case CheckFail:
			data.Failed++
		}
		data.Checks = append(data.Checks, DoctorCheck{
			Name:    check.Name,
			Status:  strings.ToLower(check.Status.String()),
			Message: check.Message,
			Fix:     check.Fix,
		})
	}

	if args.JSON {
		if err := NewJSONResponse("doctor", data).Print(w); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(w, TitleStyle.Render("ptcoach doctor"))
		fmt.Fprintln(w, RenderSeparator(41))
		for _, check := range checks {
			fmt.Fprintln(w, check.Render())
		}
		fmt.Fprintln(w, SeparatorStyle.Render(strings.Repeat("-", 41)))

		summary := []string{fmt.Sprintf("%d passed", data.Passed)}
		if data.Warned > 0 {
			summary = append(summary, WarningStyle.Render(fmt.Sprintf("%d warning", data.Warned)))
		}
		if data.Failed > 0 {
			summary = append(summary, ErrorStyle.Render(fmt.Sprintf("%d failed", data.Failed)))
		}
		fmt.Fprintln(w, DimStyle.Render(strings.Join(summary, ", ")))
	}

	if data.Failed > 0 {
		return fmt.Errorf("%d health check(s) failed", data.Failed)
	}
	return nil
}

// RunChecks runs every health check in order. Checks that depend on a failed
// earlier check are reported as skipped.
func RunChecks(ctx context.Context, args Args) []*HealthCheck {
	cfg, cfgCheck := checkConfig(args)
	checks := []*HealthCheck{cfgCheck}
	if cfg == nil {
		return append(checks,
			skipped("Storage Open"), skipped("Saved Data"), skipped("Coach API"))
	}

	kv, storageCheck := checkStorage(cfg)
	checks = append(checks, storageCheck)
	if kv != nil {
		checks = append(checks, checkSavedData(kv))
		_ = kv.Close()
	} else {
		checks = append(checks, skipped("Saved Data"))
	}

	return append(checks, checkAPI(ctx, cfg))
}

func skipped(name string) *HealthCheck {
	return &HealthCheck{Name: name, Status: CheckSkip, Message: name + ": skipped"}
}

func checkConfig(args Args) (*config.Config, *HealthCheck) {
	check := &HealthCheck{Name: "Config Valid"}
	cfg, err := LoadConfig(args)
	if err != nil {
		check.Status = CheckFail
		check.Message = "Config invalid: " + err.Error()
		check.Fix = "Edit the file shown by 'ptcoach config path' or run 'ptcoach config init --force'"
		return nil, check
	}
	check.Status = CheckPass
	check.Message = fmt.Sprintf("Config valid (api %s, storage %s)", cfg.API.BaseURL, cfg.Storage.Backend)
	return cfg, check
}

func checkStorage(cfg *config.Config) (storage.KV, *HealthCheck) {
	check := &HealthCheck{Name: "Storage Open"}
	dir, err := cfg.DataDir()
	if err != nil {
		check.Status = CheckFail
		check.Message = "Data directory unknown: " + err.Error()
		check.Fix = "Set --data-dir or PTCOACH_DATA_DIR"
		return nil, check
	}

	kv, err := storage.Open(storage.Options{Backend: cfg.Storage.Backend, Dir: dir})
	if err != nil {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("Cannot open %s storage in %s: %v", cfg.Storage.Backend, dir, err)
		check.Fix = "Check permissions on " + dir
		return nil, check
	}

	check.Status = CheckPass
	check.Message = fmt.Sprintf("Storage %s ready in %s", cfg.Storage.Backend, dir)
	if cfg.Storage.Backend == config.BackendMemory {
		check.Status = CheckWarn
		check.Message = "Storage is in memory; history is lost on exit"
		check.Fix = "Use --storage file or sqlite to keep history"
	}
	if sq, ok := kv.(*storage.SQLiteKV); ok {
		if at, err := sq.UpdatedAt(storage.KeyHistory); err == nil && !at.IsZero() {
			check.Message += ", history saved " + at.Local().Format("2006-01-02 15:04")
		}
	}
	return kv, check
}

func checkSavedData(kv storage.KV) *HealthCheck {
	check := &HealthCheck{Name: "Saved Data"}
	res := session.NewStore(kv).Load()

	check.Message = fmt.Sprintf("History %s (%d messages), profile %s", res.History, res.Messages, res.Profile)
	if res.Degraded() {
		check.Status = CheckWarn
		check.Fix = "Export what you need, then 'ptcoach clear --confirm' to start fresh"
		return check
	}
	check.Status = CheckPass
	return check
}

func checkAPI(ctx context.Context, cfg *config.Config) *HealthCheck {
	check := &HealthCheck{Name: "Coach API"}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	if err := NewClient(cfg, nil).Health(ctx); err != nil {
		check.Status = CheckFail
		check.Message = fmt.Sprintf("Coach API unreachable at %s: %v", cfg.API.BaseURL, err)
		check.Fix = "Start the coach server or set --api / PTCOACH_API_BASE"
		return check
	}
	check.Status = CheckPass
	check.Message = "Coach API healthy at " + cfg.API.BaseURL
	return check
}
