package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv 関連する環境変数を空にする
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME",
		"SERVER_PORT", "ENV", "ALLOWED_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"WALL_SCOPE", "WALL_REMOTE_URL", "WALL_LOCAL_DIR", "WALL_ORIGIN",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, "3306", cfg.DBPort)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, DefaultScope, cfg.Scope)
	assert.Equal(t, ".wall", cfg.LocalDir)
	assert.Equal(t, "http://localhost:3000", cfg.Origin)
	assert.Equal(t, 1.0, cfg.RateLimitRPS)
	assert.Equal(t, 5, cfg.RateLimitBurst)
	assert.False(t, cfg.UsesRemote())
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , https://b.example")
	t.Setenv("WALL_SCOPE", "  family-2026 ")
	t.Setenv("WALL_REMOTE_URL", "http://wall.example/")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "not-a-number")

	cfg := Load()

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "family-2026", cfg.Scope)
	assert.Equal(t, "http://wall.example", cfg.RemoteURL)
	assert.Equal(t, "https://a.example", cfg.Origin)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, 5, cfg.RateLimitBurst)
	assert.True(t, cfg.UsesRemote())
}

func TestApplyFile(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	path := filepath.Join(t.TempDir(), "wall.yaml")
	content := "scope: reunion\nremote_url: https://rows.example/\nlocal_dir: \"\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	require.NoError(t, ApplyFile(&cfg, path))

	assert.Equal(t, "reunion", cfg.Scope)
	assert.Equal(t, "https://rows.example", cfg.RemoteURL)
	// 空の値は上書きしない
	assert.Equal(t, ".wall", cfg.LocalDir)
}

func TestApplyFile_Errors(t *testing.T) {
	cfg := Config{}

	err := ApplyFile(&cfg, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scope: [unterminated"), 0o644))
	assert.Error(t, ApplyFile(&cfg, path))
}
