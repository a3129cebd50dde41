// Package config loads runtime configuration from the environment and an optional .env file.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/tejashwikalptaru/govis/internal/domain"
	"github.com/tejashwikalptaru/govis/internal/visual"
)

// Config holds all runtime configuration, loaded from GOVIS_* environment variables.
type Config struct {
	// Audio
	SampleRate int
	FFTSize    int
	Monitor    bool // play audio through the output device while previewing

	// Scene
	PreviewFPS int
	MinWidth   int
	MaxWidth   int
	LowColor   string
	HighColor  string
	DustCount  int

	// Export
	ExportFPS    int
	ExportWidth  int
	ExportHeight int
	FFmpegPath   string
	OutputDir    string

	// WatchDebounce is the quiet period, in seconds, before a rewritten asset is reloaded.
	WatchDebounce float64

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string

	// MinIO export sink, used when MinioEndpoint is set
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	return Config{
		SampleRate:   44100,
		FFTSize:      128,
		Monitor:      true,
		PreviewFPS:   60,
		MinWidth:     int(visual.DefaultMinWidth),
		MaxWidth:     int(visual.CanonicalWidth),
		LowColor:     "#00cfff",
		HighColor:    "#ff0055",
		DustCount:    160,
		ExportFPS:    60,
		ExportWidth:  1920,
		ExportHeight: 1080,
		FFmpegPath:   "ffmpeg",
		OutputDir:    "exports",
		LogLevel:     "INFO",
		LogFormat:    "text",
		MinioBucket:  "govis-exports",

		WatchDebounce: 0.2,
	}
}

// Load reads envFile (or ./.env when envFile is empty) and then the environment.
// Variables already present in the environment are never overridden by the file.
// A missing ./.env is not an error; a missing explicit file is.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, err
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	d := Default()
	cfg := Config{
		SampleRate: envInt("GOVIS_SAMPLE_RATE", d.SampleRate),
		FFTSize:    envInt("GOVIS_FFT_SIZE", d.FFTSize),
		Monitor:    envBool("GOVIS_MONITOR", d.Monitor),

		PreviewFPS: envInt("GOVIS_PREVIEW_FPS", d.PreviewFPS),
		MinWidth:   envInt("GOVIS_MIN_WIDTH", d.MinWidth),
		MaxWidth:   envInt("GOVIS_MAX_WIDTH", d.MaxWidth),
		LowColor:   envStr("GOVIS_LOW_COLOR", d.LowColor),
		HighColor:  envStr("GOVIS_HIGH_COLOR", d.HighColor),
		DustCount:  envInt("GOVIS_DUST_COUNT", d.DustCount),

		ExportFPS:    envInt("GOVIS_EXPORT_FPS", d.ExportFPS),
		ExportWidth:  envInt("GOVIS_EXPORT_WIDTH", d.ExportWidth),
		ExportHeight: envInt("GOVIS_EXPORT_HEIGHT", d.ExportHeight),
		FFmpegPath:   envStr("GOVIS_FFMPEG_PATH", d.FFmpegPath),
		OutputDir:    envStr("GOVIS_OUTPUT_DIR", d.OutputDir),

		WatchDebounce: envFloat("GOVIS_WATCH_DEBOUNCE", d.WatchDebounce),

		LogLevel:  envStr("GOVIS_LOG_LEVEL", d.LogLevel),
		LogFormat: envStr("GOVIS_LOG_FORMAT", d.LogFormat),
		LogFile:   envStr("GOVIS_LOG_FILE", d.LogFile),

		MinioEndpoint:  envStr("GOVIS_MINIO_ENDPOINT", ""),
		MinioAccessKey: envStr("GOVIS_MINIO_ACCESS_KEY", ""),
		MinioSecretKey: envStr("GOVIS_MINIO_SECRET_KEY", ""),
		MinioBucket:    envStr("GOVIS_MINIO_BUCKET", d.MinioBucket),
		MinioRegion:    envStr("GOVIS_MINIO_REGION", ""),
		MinioUseSSL:    envBool("GOVIS_MINIO_USE_SSL", false),
	}

	return cfg, cfg.Validate()
}

// Validate reports the first invalid field as a *domain.ValidationError.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return domain.NewValidationError("GOVIS_SAMPLE_RATE", c.SampleRate, "must be positive")
	}
	if c.FFTSize < 32 || c.FFTSize > 32768 || c.FFTSize&(c.FFTSize-1) != 0 {
		return domain.NewValidationError("GOVIS_FFT_SIZE", c.FFTSize, "must be a power of two in [32, 32768]")
	}
	if c.PreviewFPS <= 0 {
		return domain.NewValidationError("GOVIS_PREVIEW_FPS", c.PreviewFPS, "must be positive")
	}
	if c.ExportFPS < 24 || c.ExportFPS > 60 {
		return domain.NewValidationError("GOVIS_EXPORT_FPS", c.ExportFPS, "must be between 24 and 60")
	}
	if c.MinWidth <= 0 || c.MinWidth > c.MaxWidth {
		return domain.NewValidationError("GOVIS_MIN_WIDTH", c.MinWidth, "must be positive and not above GOVIS_MAX_WIDTH")
	}
	if c.WatchDebounce < 0 {
		return domain.NewValidationError("GOVIS_WATCH_DEBOUNCE", c.WatchDebounce, "must not be negative")
	}
	if c.DustCount < 0 {
		return domain.NewValidationError("GOVIS_DUST_COUNT", c.DustCount, "must not be negative")
	}
	if _, err := visual.ParsePalette(c.LowColor, c.HighColor); err != nil {
		return domain.NewValidationError("GOVIS_LOW_COLOR", c.LowColor+","+c.HighColor, err.Error())
	}
	return nil
}

// MinioEnabled reports whether exports go to object storage.
func (c Config) MinioEnabled() bool {
	return c.MinioEndpoint != ""
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}
