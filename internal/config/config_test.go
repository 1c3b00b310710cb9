package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, "./downloaded_videos", cfg.DownloadDir)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 100, cfg.PageSize)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, DefaultCatalogURL, cfg.CatalogURL)
	assert.Equal(t, 30*time.Second, cfg.CatalogTimeout)
	assert.Zero(t, cfg.FetchTimeout)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("VIDPULL_BATCH_SIZE", "4")
	t.Setenv("DOWNLOAD_DIR", "/tmp/videos")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.BatchSize)
	assert.Equal(t, "/tmp/videos", cfg.DownloadDir)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vidpull.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch_size: 3\npage_size: 50\nfetch_timeout: 5m\n"), 0o644))

	v := New()
	require.NoError(t, ReadFile(v, path))
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.BatchSize)
	assert.Equal(t, 50, cfg.PageSize)
	assert.Equal(t, 5*time.Minute, cfg.FetchTimeout)
}

func TestReadFileMissing(t *testing.T) {
	err := ReadFile(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"zero batch", "batch_size", 0},
		{"page too large", "page_size", 101},
		{"page zero", "page_size", 0},
		{"empty dir", "download_dir", "  "},
		{"bad format", "log_format", "xml"},
		{"negative timeout", "fetch_timeout", -time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Set(tt.key, tt.val)
			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
