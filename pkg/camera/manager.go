package camera

import (
	"fmt"
	"sync"
)

// Manager holds the current camera configuration and handles updates.
type Manager struct {
	config Config
	mu     sync.RWMutex

	// applyMu is held from reading the config through the rebind
	// callback, so updates apply one at a time.
	applyMu sync.Mutex

	// Callback when config changes (rebinds the session)
	OnConfigChange func(cfg Config) error
}

// NewManager creates a new camera manager starting from cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{
		config: cfg,
	}
}

// GetConfig returns a copy of the current camera configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := m.config
	cfg.Devices = cloneDevices(cfg.Devices)
	return cfg
}

// SetConfig validates cfg, stores it and notifies the rebind callback.
// The previous config is restored if the callback fails.
func (m *Manager) SetConfig(cfg Config) error {
	m.applyMu.Lock()
	defer m.applyMu.Unlock()
	return m.apply(cfg)
}

func (m *Manager) apply(cfg Config) error {
	if errors := cfg.Validate(); len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}
	cfg.Devices = cloneDevices(cfg.Devices)

	m.mu.Lock()
	prev := m.config
	m.config = cfg
	callback := m.OnConfigChange
	m.mu.Unlock()

	if callback != nil {
		if err := callback(cfg); err != nil {
			m.mu.Lock()
			m.config = prev
			m.mu.Unlock()
			return fmt.Errorf("failed to apply config: %w", err)
		}
	}

	return nil
}

// ToggleLens switches between the back and front camera.
func (m *Manager) ToggleLens() (Config, error) {
	m.applyMu.Lock()
	defer m.applyMu.Unlock()

	cfg := m.GetConfig().ToggleLens()
	if err := m.apply(cfg); err != nil {
		return m.GetConfig(), err
	}
	return cfg, nil
}

// CycleFlash advances the flash mode off -> on -> auto -> off.
func (m *Manager) CycleFlash() (Config, error) {
	m.applyMu.Lock()
	defer m.applyMu.Unlock()

	cfg := m.GetConfig().NextFlash()
	if err := m.apply(cfg); err != nil {
		return m.GetConfig(), err
	}
	return cfg, nil
}

// Patch is a partial config update. Nil fields are left unchanged.
// A preset, when set, replaces everything but the devices before the
// other fields apply.
type Patch struct {
	Preset             *string    `json:"preset,omitempty"`
	Lens               *Lens      `json:"lens,omitempty"`
	Flash              *FlashMode `json:"flash,omitempty"`
	DeviceBack         *string    `json:"device_back,omitempty"`
	DeviceFront        *string    `json:"device_front,omitempty"`
	Width              *int       `json:"width,omitempty"`
	Height             *int       `json:"height,omitempty"`
	Framerate          *int       `json:"framerate,omitempty"`
	Quality            *int       `json:"quality,omitempty"`
	AutoFlashThreshold *float64   `json:"auto_flash_threshold,omitempty"`
}

// Apply returns cfg with the patch applied. cfg is not modified.
func (p Patch) Apply(cfg Config) (Config, error) {
	devices := cloneDevices(cfg.Devices)
	if p.Preset != nil {
		preset := GetPreset(*p.Preset)
		if preset == nil {
			return cfg, fmt.Errorf("unknown preset: %s", *p.Preset)
		}
		cfg = *preset
	}
	if devices == nil {
		devices = make(map[Lens]string)
	}
	cfg.Devices = devices

	if p.Lens != nil {
		cfg.Lens = *p.Lens
	}
	if p.Flash != nil {
		cfg.Flash = *p.Flash
	}
	if p.DeviceBack != nil {
		cfg.Devices[LensBack] = *p.DeviceBack
	}
	if p.DeviceFront != nil {
		cfg.Devices[LensFront] = *p.DeviceFront
	}
	setInt(&cfg.Width, p.Width)
	setInt(&cfg.Height, p.Height)
	setInt(&cfg.Framerate, p.Framerate)
	setInt(&cfg.Quality, p.Quality)
	if p.AutoFlashThreshold != nil {
		cfg.AutoFlashThreshold = *p.AutoFlashThreshold
	}
	return cfg, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// Update applies p to the current config and rebinds.
func (m *Manager) Update(p Patch) (Config, error) {
	m.applyMu.Lock()
	defer m.applyMu.Unlock()

	cfg, err := p.Apply(m.GetConfig())
	if err != nil {
		return m.GetConfig(), err
	}
	if err := m.apply(cfg); err != nil {
		return m.GetConfig(), err
	}
	return cfg, nil
}
