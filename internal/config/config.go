// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for ptcoach.
//
// Configuration sources (in order of precedence):
//   - Command line flags (applied by the cli package)
//   - Environment variables (PTCOACH_*), optionally from a .env file
//   - ~/.ptcoach/config.toml
//   - Built-in defaults
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/Tri-Phung/chatbot-project/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultBaseURL is the local-loopback address the coach API listens on in development.
	DefaultBaseURL = "http://localhost:8000"

	// DirName is the per-user directory holding config, data and logs.
	DirName = ".ptcoach"

	// FileName is the config file name inside DirName.
	FileName = "config.toml"

	// Storage backends.
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete ptcoach configuration.
type Config struct {
	API     APIConfig     `toml:"api" json:"api"`
	Storage StorageConfig `toml:"storage" json:"storage"`
	UI      UIConfig      `toml:"ui" json:"ui"`
	Log     LogConfig     `toml:"log" json:"log"`
}

// APIConfig configures the remote coach API client.
type APIConfig struct {
	// BaseURL is prefixed to every endpoint path (/api/chat, /health, ...).
	BaseURL string `toml:"base_url" json:"base_url" validate:"required,url"`
	// TimeoutSeconds bounds a single request, including image uploads.
	TimeoutSeconds int `toml:"timeout" json:"timeout" validate:"min=1,max=600"`
	// RatePerSecond caps outgoing requests; 0 disables the limiter.
	RatePerSecond float64 `toml:"rate_per_second" json:"rate_per_second" validate:"gte=0"`
	Burst         int     `toml:"burst" json:"burst" validate:"gte=1"`
}

// Timeout returns the request timeout as a duration.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// StorageConfig selects where history and profile are persisted.
type StorageConfig struct {
	Backend string `toml:"backend" json:"backend" validate:"oneof=file sqlite memory"`
	// DataDir defaults to ~/.ptcoach when empty.
	DataDir string `toml:"data_dir" json:"data_dir"`
}

// UIConfig contains rendering preferences.
type UIConfig struct {
	Theme          string `toml:"theme" json:"theme" validate:"oneof=auto dark light notty"`
	Markdown       bool   `toml:"markdown" json:"markdown"`
	WordWrap       int    `toml:"word_wrap" json:"word_wrap" validate:"gte=0,lte=400"`
	ShowTimestamps bool   `toml:"show_timestamps" json:"show_timestamps"`
	NoColor        bool   `toml:"no_color" json:"no_color"`
}

// LogConfig configures the structured log file.
type LogConfig struct {
	// Level is one of debug, info, warn, error, or off.
	Level string `toml:"level" json:"level" validate:"oneof=debug info warn error off"`
	// File defaults to <data_dir>/ptcoach.log when empty.
	File string `toml:"file" json:"file"`
}

// envOverrides lists the environment variables that override file settings.
// Unset variables leave the loaded value untouched.
type envOverrides struct {
	BaseURL  string `env:"PTCOACH_API_BASE"`
	DataDir  string `env:"PTCOACH_DATA_DIR"`
	Storage  string `env:"PTCOACH_STORAGE"`
	LogLevel string `env:"PTCOACH_LOG_LEVEL"`
	Timeout  int    `env:"PTCOACH_TIMEOUT"`
	NoColor  string `env:"NO_COLOR"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a new Config with sensible default values.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        DefaultBaseURL,
			TimeoutSeconds: 60,
			RatePerSecond:  2,
			Burst:          1,
		},
		Storage: StorageConfig{
			Backend: BackendFile,
		},
		UI: UIConfig{
			Theme:          "auto",
			Markdown:       true,
			WordWrap:       80,
			ShowTimestamps: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the ptcoach configuration directory path (~/.ptcoach).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// ConfigPath returns the default config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// DataDir resolves the storage directory, falling back to ConfigDir.
func (c *Config) DataDir() (string, error) {
	if c.Storage.DataDir != "" {
		return expandHome(c.Storage.DataDir)
	}
	return ConfigDir()
}

// LogFile resolves the log file path, falling back to <data dir>/ptcoach.log.
func (c *Config) LogFile() (string, error) {
	if c.Log.File != "" {
		return expandHome(c.Log.File)
	}
	dir, err := c.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "ptcoach.log"), nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads configuration from path (or the default location when path is
// empty), then applies .env and environment overrides and validates the result.
// A missing file is not an error; defaults are used.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat config file: %w", err)
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes the TOML file at path on top of cfg.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return ValidateErrors{{Field: strings.Join(keys, ", "), Message: "unknown config key"}}
	}
	return nil
}

// loadDotEnv populates the process environment from a .env file if one exists.
// Variables already set in the environment win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnvOverrides applies PTCOACH_* environment variables.
func (c *Config) ApplyEnvOverrides() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	if o.BaseURL != "" {
		c.API.BaseURL = o.BaseURL
	}
	if o.DataDir != "" {
		c.Storage.DataDir = o.DataDir
	}
	if o.Storage != "" {
		c.Storage.Backend = strings.ToLower(o.Storage)
	}
	if o.LogLevel != "" {
		c.Log.Level = strings.ToLower(o.LogLevel)
	}
	if o.Timeout > 0 {
		c.API.TimeoutSeconds = o.Timeout
	}
	// https://no-color.org: any non-empty value disables color.
	if o.NoColor != "" {
		c.UI.NoColor = true
	}
	return nil
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes cfg as TOML to path with owner-only permissions.
func Save(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# ptcoach configuration file\n")
	buf.WriteString("# Environment variables PTCOACH_* override these values.\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0o600, 0o700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their TOML key so messages match the config file.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the configuration for invalid values.
// Returns ValidateErrors listing every problem found.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	errs := make(ValidateErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, ValidationError{
			Field:   tomlKey(fe.Namespace()),
			Message: describe(fe),
		})
	}
	return errs
}

// tomlKey strips the root struct name from a validator namespace.
func tomlKey(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return fmt.Sprintf("invalid URL '%v'", fe.Value())
	case "oneof":
		return fmt.Sprintf("invalid value '%v', must be one of: %s", fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min", "gte":
		return fmt.Sprintf("must be at least %s, got %v", fe.Param(), fe.Value())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s, got %v", fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("failed '%s' check", fe.Tag())
	}
}

// =============================================================================
// KEY ACCESS
// =============================================================================

// Get returns the value at a dotted TOML key such as "api.base_url".
func (c *Config) Get(key string) (interface{}, error) {
	parts := strings.Split(key, ".")
	if key == "" {
		return nil, errors.New("empty key")
	}

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTOMLKey(v, part)
		if !ok {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field.Interface(), nil
		}
		if field.Kind() != reflect.Struct {
			return nil, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return nil, fmt.Errorf("invalid key: %s", key)
}

func fieldByTOMLKey(v reflect.Value, key string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name := strings.SplitN(t.Field(i).Tag.Get("toml"), ",", 2)[0]
		if strings.EqualFold(name, key) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// Keys returns every leaf key in file order.
func Keys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := strings.SplitN(f.Tag.Get("toml"), ",", 2)[0]
			if name == "" || name == "-" {
				continue
			}
			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, prefix+name+".")
				continue
			}
			keys = append(keys, prefix+name)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	return keys
}
