package camera

// Preset names for common configurations
const (
	PresetDefault = "default"
	PresetLegacy  = "legacy"
	Preset720p    = "720p"
	Preset1080p   = "1080p"
	PresetSelfie  = "selfie"
	PresetNight   = "night"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault: DefaultConfig(),
		PresetLegacy:  LegacyConfig(),
		Preset720p:    HD720Config(),
		Preset1080p:   HD1080Config(),
		PresetSelfie:  SelfieConfig(),
		PresetNight:   NightConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetLegacy,
		Preset720p,
		Preset1080p,
		PresetSelfie,
		PresetNight,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// LegacyConfig returns 320x240 for slow USB cameras.
func LegacyConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 320
	cfg.Height = 240
	cfg.Framerate = 15
	return cfg
}

// HD720Config returns 720p HD configuration.
func HD720Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	return cfg
}

// HD1080Config returns 1080p Full HD configuration.
// Analysis cost scales with pixel count; drop the framerate to keep up.
func HD1080Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1920
	cfg.Height = 1080
	cfg.Framerate = 15
	return cfg
}

// SelfieConfig returns the front camera at 720p.
func SelfieConfig() Config {
	return HD720Config().WithLens(LensFront)
}

// NightConfig returns auto flash with a higher trigger threshold.
func NightConfig() Config {
	cfg := DefaultConfig().WithFlash(FlashAuto)
	cfg.AutoFlashThreshold = 80
	return cfg
}
