package config

import (
	"fmt"
	"os"

	"github.com/teslashibe/go-lumacam/pkg/frameio"
	"gopkg.in/yaml.v3"
)

// File is the optional YAML configuration file. Environment variables
// and flags override it.
type File struct {
	Port        string         `yaml:"port"`
	OutputDir   string         `yaml:"output_dir"`
	IndexPath   string         `yaml:"index_path"`
	LogLevel    string         `yaml:"log_level"`
	LogFormat   string         `yaml:"log_format"`
	Preset      string         `yaml:"preset"`
	DeviceFront string         `yaml:"device_front"`
	Source      frameio.Config `yaml:"source"`
}

// DefaultFile returns the built-in configuration.
func DefaultFile() File {
	return File{
		Port:     DefaultPort,
		LogLevel: DefaultLogLevel,
		Preset:   DefaultPreset,
		Source:   frameio.DefaultConfig(),
	}
}

// LoadFile reads path over DefaultFile. An empty path returns the defaults.
func LoadFile(path string) (File, error) {
	f := DefaultFile()
	if path == "" {
		return f, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := f.Source.Validate(); err != nil {
		return f, fmt.Errorf("config %s: %w", path, err)
	}
	return f, nil
}

// ApplyEnv overlays the LUMACAM_* environment variables onto f.
func (f *File) ApplyEnv() {
	f.Port = String("LUMACAM_PORT", f.Port)
	f.OutputDir = String("LUMACAM_OUTPUT_DIR", f.OutputDir)
	f.LogLevel = String("LUMACAM_LOG_LEVEL", f.LogLevel)
	f.Source.Backend = frameio.Backend(String("LUMACAM_BACKEND", string(f.Source.Backend)))
	f.Source.Device = String("LUMACAM_DEVICE", f.Source.Device)
}
