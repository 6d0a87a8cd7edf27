// Package ui is the ebiten-based host shell: a window, keyboard-to-keypad
// polling, frame pacing, and a debug framebuffer blit, following the shape of
// the teacher's internal/ui (ebitenapp.go/config.go) stripped of the
// DMG/CGB-specific menu system and audio playback, which this core's
// Non-goals (§1: "rendering accuracy"/"audio synthesis" beyond state-change
// events) put out of scope.
package ui

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds the host-shell settings the teacher's internal/ui persists to
// a JSON settings file, trimmed to what this core's Non-goals leave in
// scope: window scale and title.
type Config struct {
	Title string `json:"title"`
	Scale int    `json:"scale"`
}

// Defaults fills in zero-valued fields, mirroring the teacher's Config.Defaults.
func (c *Config) Defaults() {
	if c.Scale <= 0 {
		c.Scale = 3
	}
	if c.Title == "" {
		c.Title = "gbacore"
	}
}

func settingsPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		d := filepath.Join(dir, "gbacore")
		_ = os.MkdirAll(d, 0o755)
		return filepath.Join(d, "settings.json")
	}
	exe, _ := os.Executable()
	return filepath.Join(filepath.Dir(exe), "gbacore_settings.json")
}

// LoadSettings merges a persisted settings file with caller-supplied
// overrides (non-zero fields win), the same override-after-load shape as the
// teacher's loadSettings.
func LoadSettings(override Config) Config {
	var cfg Config
	if b, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(b, &cfg)
	}
	if override.Title != "" {
		cfg.Title = override.Title
	}
	if override.Scale != 0 {
		cfg.Scale = override.Scale
	}
	return cfg
}

// SaveSettings persists cfg to the user's config directory.
func SaveSettings(cfg Config) {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(settingsPath(), b, 0o644)
}
