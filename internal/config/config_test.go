package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	t.Setenv("LUMACAM_PORT", "")
	t.Setenv("LUMACAM_BACKEND", "")
	t.Setenv("LUMACAM_OUTPUT_DIR", "")

	if Port() != DefaultPort {
		t.Errorf("Port() = %s, want %s", Port(), DefaultPort)
	}
	if Backend() != DefaultBackend {
		t.Errorf("Backend() = %s, want %s", Backend(), DefaultBackend)
	}
	if OutputDir() != "" {
		t.Errorf("OutputDir() = %q, want empty", OutputDir())
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LUMACAM_PORT", "9090")
	t.Setenv("LUMACAM_DEVICE", "/dev/video2")
	t.Setenv("LUMACAM_LOG_LEVEL", "debug")

	if Port() != "9090" {
		t.Errorf("Port() = %s", Port())
	}
	if Device() != "/dev/video2" {
		t.Errorf("Device() = %s", Device())
	}
	if LogLevel() != "debug" {
		t.Errorf("LogLevel() = %s", LogLevel())
	}
}

func TestTypedHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "12")
	t.Setenv("TEST_BAD_INT", "twelve")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_DURATION", "250ms")

	if got := Int("TEST_INT", 1); got != 12 {
		t.Errorf("Int = %d, want 12", got)
	}
	if got := Int("TEST_BAD_INT", 7); got != 7 {
		t.Errorf("Int with bad value = %d, want default 7", got)
	}
	if !Bool("TEST_BOOL", false) {
		t.Error("Bool = false, want true")
	}
	if got := Duration("TEST_DURATION", time.Second); got != 250*time.Millisecond {
		t.Errorf("Duration = %v, want 250ms", got)
	}
	if got := Duration("TEST_MISSING", time.Second); got != time.Second {
		t.Errorf("Duration default = %v", got)
	}
}
