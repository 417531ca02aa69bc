// Package config provides environment configuration for lumacam commands.
// Command-line flags override these values.
package config

import (
	"os"
	"strconv"
	"time"
)

// Defaults.
const (
	DefaultPort      = "8080"
	DefaultBackend   = "auto"
	DefaultDevice    = "0"
	DefaultLogLevel  = "info"
	DefaultPreset    = "default"
	DefaultAppName   = "lumacam"
	DefaultOutputDir = "./captures"
)

// Port returns LUMACAM_PORT or the default.
func Port() string {
	return String("LUMACAM_PORT", DefaultPort)
}

// OutputDir returns LUMACAM_OUTPUT_DIR, the preferred media directory.
// Empty means the fallback directory is used.
func OutputDir() string {
	return os.Getenv("LUMACAM_OUTPUT_DIR")
}

// Backend returns LUMACAM_BACKEND ("auto", "gocv" or "mock").
func Backend() string {
	return String("LUMACAM_BACKEND", DefaultBackend)
}

// Device returns LUMACAM_DEVICE, the back camera device.
func Device() string {
	return String("LUMACAM_DEVICE", DefaultDevice)
}

// LogLevel returns LUMACAM_LOG_LEVEL or the default.
func LogLevel() string {
	return String("LUMACAM_LOG_LEVEL", DefaultLogLevel)
}

// String returns the env var key, or def if unset or empty.
func String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Int returns the env var key parsed as an int, or def.
func Int(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Bool returns the env var key parsed as a bool, or def.
func Bool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Duration returns the env var key parsed as a duration, or def.
func Duration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
