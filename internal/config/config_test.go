package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejashwikalptaru/govis/internal/domain"
)

var allKeys = []string{
	"GOVIS_SAMPLE_RATE", "GOVIS_FFT_SIZE", "GOVIS_MONITOR", "GOVIS_PREVIEW_FPS",
	"GOVIS_MIN_WIDTH", "GOVIS_MAX_WIDTH", "GOVIS_LOW_COLOR", "GOVIS_HIGH_COLOR",
	"GOVIS_DUST_COUNT", "GOVIS_EXPORT_FPS", "GOVIS_EXPORT_WIDTH", "GOVIS_EXPORT_HEIGHT",
	"GOVIS_FFMPEG_PATH", "GOVIS_OUTPUT_DIR", "GOVIS_WATCH_DEBOUNCE", "GOVIS_LOG_LEVEL",
	"GOVIS_LOG_FORMAT", "GOVIS_LOG_FILE", "GOVIS_MINIO_ENDPOINT", "GOVIS_MINIO_ACCESS_KEY",
	"GOVIS_MINIO_SECRET_KEY", "GOVIS_MINIO_BUCKET", "GOVIS_MINIO_REGION", "GOVIS_MINIO_USE_SSL",
}

// clearEnv unsets every GOVIS_ key for the duration of the test and runs it
// in an empty directory so no stray .env is picked up. t.Setenv also restores
// anything a loaded .env file sets.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.False(t, cfg.MinioEnabled())
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOVIS_FFT_SIZE", "2048")
	t.Setenv("GOVIS_EXPORT_FPS", "30")
	t.Setenv("GOVIS_MONITOR", "false")
	t.Setenv("GOVIS_WATCH_DEBOUNCE", "0.5")
	t.Setenv("GOVIS_MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("GOVIS_MINIO_USE_SSL", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.FFTSize)
	assert.Equal(t, 30, cfg.ExportFPS)
	assert.False(t, cfg.Monitor)
	assert.Equal(t, 0.5, cfg.WatchDebounce)
	assert.True(t, cfg.MinioEnabled())
	assert.True(t, cfg.MinioUseSSL)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOVIS_SAMPLE_RATE", "fast")
	t.Setenv("GOVIS_MONITOR", "maybe")
	t.Setenv("GOVIS_WATCH_DEBOUNCE", "soon")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 44100, cfg.SampleRate)
	assert.True(t, cfg.Monitor)
	assert.Equal(t, 0.2, cfg.WatchDebounce)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	file := filepath.Join(t.TempDir(), "govis.env")
	require.NoError(t, os.WriteFile(file, []byte("GOVIS_PREVIEW_FPS=30\nGOVIS_OUTPUT_DIR=/tmp/out\n"), 0o600))

	// The environment wins over the file.
	t.Setenv("GOVIS_OUTPUT_DIR", "/srv/videos")

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.PreviewFPS)
	assert.Equal(t, "/srv/videos", cfg.OutputDir)
}

func TestLoadDotEnvInWorkingDirectory(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.WriteFile(".env", []byte("GOVIS_DUST_COUNT=32\n"), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.DustCount)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"default is valid", func(*Config) {}, ""},
		{"fft not power of two", func(c *Config) { c.FFTSize = 100 }, "GOVIS_FFT_SIZE"},
		{"fft too small", func(c *Config) { c.FFTSize = 16 }, "GOVIS_FFT_SIZE"},
		{"export fps too low", func(c *Config) { c.ExportFPS = 12 }, "GOVIS_EXPORT_FPS"},
		{"export fps too high", func(c *Config) { c.ExportFPS = 120 }, "GOVIS_EXPORT_FPS"},
		{"min above max", func(c *Config) { c.MinWidth = 2000 }, "GOVIS_MIN_WIDTH"},
		{"bad colour", func(c *Config) { c.HighColor = "pink" }, "GOVIS_LOW_COLOR"},
		{"negative dust", func(c *Config) { c.DustCount = -1 }, "GOVIS_DUST_COUNT"},
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }, "GOVIS_SAMPLE_RATE"},
		{"negative debounce", func(c *Config) { c.WatchDebounce = -1 }, "GOVIS_WATCH_DEBOUNCE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}
