// Package config handles application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"murmur/hotkey"
)

const (
	appName        = "murmur"
	configFileName = "config.yaml"
)

// Config represents the application configuration.
type Config struct {
	Hotkey  HotkeyConfig  `yaml:"hotkey"`
	Audio   AudioConfig   `yaml:"audio"`
	Whisper WhisperConfig `yaml:"whisper"`
	UI      UIConfig      `yaml:"ui"`
}

// HotkeyConfig holds the push-to-talk key combination.
type HotkeyConfig struct {
	// Toggle is the combination that arms recording while held,
	// e.g. "ctrl+space" or "ctrl+shift+d".
	Toggle string `yaml:"toggle"`
}

// AudioConfig holds microphone capture settings.
type AudioConfig struct {
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
	Device     string `yaml:"device,omitempty"` // substring match, empty = default
}

// WhisperConfig selects the transcription engine.
type WhisperConfig struct {
	Provider  string `yaml:"provider"`   // "local" or "api"
	ModelSize string `yaml:"model_size"` // tiny, base, small, medium, large
	Language  string `yaml:"language"`   // two-letter code or "auto"
	APIKey    string `yaml:"api_key,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	ShowNotifications bool `yaml:"show_notifications"`
	UseClipboard      bool `yaml:"use_clipboard"`
	PreserveClipboard bool `yaml:"preserve_clipboard"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Hotkey: HotkeyConfig{Toggle: hotkey.DefaultSpecString},
		Audio:  AudioConfig{SampleRate: 16000, Channels: 1},
		Whisper: WhisperConfig{
			Provider:  "local",
			ModelSize: "base",
			Language:  "auto",
		},
		UI: UIConfig{
			ShowNotifications: true,
			UseClipboard:      true,
			PreserveClipboard: true,
		},
	}
}

// Load reads the configuration at path, or the default location when
// path is empty. A missing file yields the defaults; an invalid value
// falls back to its default with a warning rather than failing startup.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("config file missing, using defaults", "path", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.sanitize()
	return cfg, nil
}

// Save writes the configuration to path, or the default location when
// path is empty.
func (c *Config) Save(path string) error {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// DefaultPath returns the per-user config file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}

// DataDir returns the per-user directory for the history database and
// log file, creating it if needed.
func DataDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	path := filepath.Join(dir, appName)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return path, nil
}

var validModelSizes = map[string]bool{
	"tiny": true, "base": true, "small": true, "medium": true, "large": true,
}

// sanitize replaces invalid values with their defaults so a bad config
// file degrades instead of breaking startup.
func (c *Config) sanitize() {
	def := Default()

	if _, err := hotkey.ParseSpec(c.Hotkey.Toggle); err != nil {
		slog.Warn("invalid hotkey, using default", "value", c.Hotkey.Toggle, "default", def.Hotkey.Toggle)
		c.Hotkey.Toggle = def.Hotkey.Toggle
	}
	if c.Audio.SampleRate <= 0 {
		slog.Warn("invalid sample rate, using default", "value", c.Audio.SampleRate, "default", def.Audio.SampleRate)
		c.Audio.SampleRate = def.Audio.SampleRate
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		slog.Warn("invalid channel count, using default", "value", c.Audio.Channels, "default", def.Audio.Channels)
		c.Audio.Channels = def.Audio.Channels
	}
	if c.Whisper.Provider != "local" && c.Whisper.Provider != "api" {
		slog.Warn("invalid whisper provider, using default", "value", c.Whisper.Provider, "default", def.Whisper.Provider)
		c.Whisper.Provider = def.Whisper.Provider
	}
	if !validModelSizes[c.Whisper.ModelSize] {
		slog.Warn("invalid model size, using default", "value", c.Whisper.ModelSize, "default", def.Whisper.ModelSize)
		c.Whisper.ModelSize = def.Whisper.ModelSize
	}
	if c.Whisper.Language == "" {
		c.Whisper.Language = def.Whisper.Language
	}
}
