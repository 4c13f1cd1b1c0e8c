// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PTCOACH_API_BASE", "PTCOACH_DATA_DIR", "PTCOACH_STORAGE", "PTCOACH_LOG_LEVEL", "PTCOACH_TIMEOUT", "NO_COLOR"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, BackendFile, cfg.Storage.Backend)
	assert.Equal(t, 60*time.Second, cfg.API.Timeout())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[api]
base_url = "http://coach.internal:9000"
timeout = 15

[storage]
backend = "sqlite"
`), 0o600))

	t.Setenv("PTCOACH_STORAGE", "MEMORY")
	t.Setenv("PTCOACH_TIMEOUT", "30")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://coach.internal:9000", cfg.API.BaseURL)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend, "env wins over file")
	assert.Equal(t, 30, cfg.API.TimeoutSeconds)
	assert.True(t, cfg.UI.Markdown, "unset keys keep defaults")
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[api]\nbase_ur = \"x\"\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.base_ur")
}

func TestValidate_ReportsTOMLKeys(t *testing.T) {
	cfg := Default()
	cfg.API.BaseURL = "not a url"
	cfg.Storage.Backend = "redis"
	cfg.API.TimeoutSeconds = 0

	err := cfg.Validate()
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))

	fields := make([]string, 0, len(verrs))
	for _, v := range verrs {
		fields = append(fields, v.Field)
	}
	assert.ElementsMatch(t, []string{"api.base_url", "api.timeout", "storage.backend"}, fields)
	assert.Contains(t, err.Error(), "file, sqlite, memory")
}

func TestApplyEnvOverrides_NoColor(t *testing.T) {
	clearEnv(t)
	t.Setenv("NO_COLOR", "1")
	cfg := Default()
	require.NoError(t, cfg.ApplyEnvOverrides())
	assert.True(t, cfg.UI.NoColor)
}

func TestLoadDotEnv_DoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PTCOACH_API_BASE=http://from-dotenv:1\nPTCOACH_LOG_LEVEL=debug\n"), 0o600))
	t.Setenv("PTCOACH_API_BASE", "http://from-env:2")

	require.NoError(t, loadDotEnv(path))
	t.Cleanup(func() { os.Unsetenv("PTCOACH_LOG_LEVEL") })

	cfg := Default()
	require.NoError(t, cfg.ApplyEnvOverrides())
	assert.Equal(t, "http://from-env:2", cfg.API.BaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadDotEnv_MissingFileIsFine(t *testing.T) {
	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestSave_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.API.BaseURL = "https://coach.example.com"
	cfg.UI.WordWrap = 100

	require.NoError(t, Save(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestDataDirAndLogFile(t *testing.T) {
	cfg := Default()
	cfg.Storage.DataDir = "/var/lib/ptcoach"
	dir, err := cfg.DataDir()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/ptcoach", dir)

	logFile, err := cfg.LogFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/var/lib/ptcoach", "ptcoach.log"), logFile)

	cfg.Storage.DataDir = ""
	dir, err = cfg.DataDir()
	require.NoError(t, err)
	assert.Equal(t, DirName, filepath.Base(dir))
}

func TestGetAndKeys(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("api.base_url")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, v)

	_, err = cfg.Get("api.nope")
	assert.Error(t, err)
	_, err = cfg.Get("api.base_url.more")
	assert.Error(t, err)

	keys := Keys()
	assert.Contains(t, keys, "storage.backend")
	assert.Contains(t, keys, "log.level")
	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}
