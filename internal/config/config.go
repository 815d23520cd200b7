package config

import (
	"os"
	"strconv"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Generation backend connection
	BackendURL string
	BackendKey string

	// Server
	Port    int
	DataDir string

	// Audio
	SampleRate int

	// Long-form generation parameters
	SegmentDuration   int     // seconds per segment, max 30
	OverlapDuration   int     // seconds of overlap between segments
	CrossfadeDuration float64 // seconds of crossfade inside the overlap
	SmoothingMs       int     // edge smoothing window in milliseconds

	// Job limits
	MaxQueue   int // queued jobs before submissions are rejected
	MaxSeconds int // longest accepted request
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		BackendURL: envStr("LONGWAVE_BACKEND_URL", "http://musicgen:8000"),
		BackendKey: envStr("LONGWAVE_BACKEND_KEY", ""),

		Port:    envInt("LONGWAVE_PORT", 8080),
		DataDir: envStr("LONGWAVE_DATA_DIR", "/var/lib/longwave"),

		SampleRate: envInt("LONGWAVE_SAMPLE_RATE", 48000),

		SegmentDuration:   envInt("LONGWAVE_SEGMENT_DURATION", 28),
		OverlapDuration:   envInt("LONGWAVE_OVERLAP_DURATION", 4),
		CrossfadeDuration: envFloat("LONGWAVE_CROSSFADE_DURATION", 2.0),
		SmoothingMs:       envInt("LONGWAVE_SMOOTHING_MS", 50),

		MaxQueue:   envInt("LONGWAVE_MAX_QUEUE", 16),
		MaxSeconds: envInt("LONGWAVE_MAX_SECONDS", 600),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
