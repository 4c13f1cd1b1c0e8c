// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Wires configuration, logging, storage, the session store, the API
// client and the coach into one App shared by every command.

package cli

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Tri-Phung/chatbot-project/internal/api"
	"github.com/Tri-Phung/chatbot-project/internal/coach"
	"github.com/Tri-Phung/chatbot-project/internal/config"
	"github.com/Tri-Phung/chatbot-project/internal/logging"
	"github.com/Tri-Phung/chatbot-project/internal/session"
	"github.com/Tri-Phung/chatbot-project/internal/storage"
	"github.com/Tri-Phung/chatbot-project/internal/ui/render"
	"github.com/Tri-Phung/chatbot-project/internal/ui/styles"
)

// =============================================================================
// CONFIG RESOLUTION
// =============================================================================

// LoadConfig loads the config file and environment, then applies global flags.
// Flags win over everything else.
func LoadConfig(args Args) (*config.Config, error) {
	cfg, err := config.Load(args.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := ApplyFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyFlags overlays the global flags on cfg and revalidates it.
func ApplyFlags(cfg *config.Config, args Args) error {
	if args.APIBase != "" {
		cfg.API.BaseURL = args.APIBase
	}
	if args.DataDir != "" {
		cfg.Storage.DataDir = args.DataDir
	}
	if args.Storage != "" {
		cfg.Storage.Backend = strings.ToLower(args.Storage)
	}
	if args.NoColor {
		cfg.UI.NoColor = true
	}
	if args.Verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// NewLogger builds the file logger described by cfg.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	file, err := cfg.LogFile()
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{Level: cfg.Log.Level, File: file})
}

// NewClient builds the coach API client described by cfg.
func NewClient(cfg *config.Config, logger *zap.Logger) *api.Client {
	return api.NewClient(cfg.API.BaseURL).
		WithTimeout(cfg.API.Timeout()).
		WithRateLimit(cfg.API.RatePerSecond, cfg.API.Burst).
		WithLogger(logger)
}

// =============================================================================
// APP
// =============================================================================

// App is the wired application shared by the front ends and commands.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	DataDir string

	KV     storage.KV
	Store  *session.Store
	Client *api.Client
	Coach  *coach.Coach

	// Loaded reports how the persisted state was restored.
	Loaded session.LoadResult

	watcher *storage.Watcher
}

// NewApp opens storage, restores the session and builds the coach.
// Persisted data problems never fail NewApp; they are logged and reported in Loaded.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)

	dataDir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}

	kv, err := storage.Open(storage.Options{
		Backend: cfg.Storage.Backend,
		Dir:     dataDir,
		Logger:  logger,
	})
	if err != nil {
		return nil, NewCommandError("storage", "open", err)
	}

	store := session.NewStore(kv, session.WithLogger(logger.Named("session")))
	loaded := store.Load()
	if loaded.Degraded() {
		logger.Warn("persisted state could not be fully restored",
			zap.Stringer("history", loaded.History),
			zap.Stringer("profile", loaded.Profile),
		)
	}

	client := NewClient(cfg, logger.Named("api"))

	return &App{
		Config:  cfg,
		Logger:  logger,
		DataDir: dataDir,
		KV:      kv,
		Store:   store,
		Client:  client,
		Coach:   coach.New(store, client, coach.WithLogger(logger.Named("coach"))),
		Loaded:  loaded,
	}, nil
}

// OpenApp loads the config for args and builds the App.
func OpenApp(args Args) (*App, error) {
	cfg, err := LoadConfig(args)
	if err != nil {
		return nil, err
	}
	if cfg.UI.NoColor {
		DisableColors()
	}
	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	return NewApp(cfg, logger)
}

// Bootstrap greets a user whose log is empty. Only the chat front ends call it.
func (a *App) Bootstrap() {
	if _, err := a.Coach.Bootstrap(); err != nil {
		a.Logger.Warn("greeting not saved", zap.Error(err))
	}
}

// Watch starts the storage watcher and returns its events.
// Only the file backend can be changed by another process; other backends
// return a nil channel.
func (a *App) Watch() (<-chan string, error) {
	fkv, ok := a.KV.(*storage.FileKV)
	if !ok {
		return nil, nil
	}
	w, err := storage.NewWatcher(fkv, storage.DefaultDebounce, a.Logger.Named("watcher"))
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Start(); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("start watcher: %w", err)
	}
	a.watcher = w
	return w.Events(), nil
}

// Renderer builds a thread renderer for width using the configured UI options.
// mode overrides the configured theme when non-empty.
func (a *App) Renderer(mode string, width int) *render.Renderer {
	if mode == "" {
		mode = a.Config.UI.Theme
	}
	if a.Config.UI.WordWrap > 0 && a.Config.UI.WordWrap < width {
		width = a.Config.UI.WordWrap
	}
	theme := styles.NewTheme(mode, a.Config.UI.NoColor)
	return render.New(theme, render.Options{
		Width:          width,
		Markdown:       a.Config.UI.Markdown,
		ShowTimestamps: a.Config.UI.ShowTimestamps,
	})
}

// Close stops the watcher, closes storage and flushes the log.
func (a *App) Close() error {
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	err := a.KV.Close()
	_ = a.Logger.Sync()
	return err
}
