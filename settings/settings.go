// Package settings holds the user's persisted preferences and the
// environment overrides layered on top of them.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"anyvoice/hotkey"
)

var ErrEmptyAPIKey = errors.New("API key must not be empty")

// Languages offered in the language picker. Other ISO 639-1 codes are
// accepted and passed through to the transcription service.
var Languages = []string{"ja", "en", "zh", "ko", "es", "fr", "de"}

var Providers = []string{"openai", "groq"}

type Settings struct {
	APIKey         string        `yaml:"api_key,omitempty"`
	Language       string        `yaml:"language"`
	AlwaysOnTop    bool          `yaml:"always_on_top"`
	Shortcut       string        `yaml:"shortcut"`
	Provider       string        `yaml:"provider"`
	HistoryPath    string        `yaml:"history_path,omitempty"`
	AutoPaste      bool          `yaml:"auto_paste"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	BridgeTimeout  time.Duration `yaml:"bridge_timeout"`
}

func Defaults() Settings {
	return Settings{
		Language:       "ja",
		Shortcut:       hotkey.DefaultShortcut,
		Provider:       "openai",
		RequestTimeout: 60 * time.Second,
		BridgeTimeout:  5 * time.Second,
	}
}

// fillDefaults replaces zero values left by an older or hand-edited file.
func (s *Settings) fillDefaults() {
	d := Defaults()
	if s.Language == "" {
		s.Language = d.Language
	}
	if s.Shortcut == "" {
		s.Shortcut = d.Shortcut
	}
	if s.Provider == "" {
		s.Provider = d.Provider
	}
	if s.RequestTimeout <= 0 {
		s.RequestTimeout = d.RequestTimeout
	}
	if s.BridgeTimeout <= 0 {
		s.BridgeTimeout = d.BridgeTimeout
	}
}

func IsKnownLanguage(lang string) bool {
	return slices.Contains(Languages, lang)
}

// Validate rejects values the application cannot run with. A missing API
// key is not an error here; it is reported when a recording is processed.
func (s Settings) Validate() error {
	if l := len(s.Language); l < 2 || l > 3 {
		return fmt.Errorf("language %q is not an ISO 639-1 code", s.Language)
	}
	if !slices.Contains(Providers, s.Provider) {
		return fmt.Errorf("provider %q is not one of %v", s.Provider, Providers)
	}
	if _, err := hotkey.Parse(s.Shortcut); err != nil {
		return err
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", s.RequestTimeout)
	}
	if s.BridgeTimeout <= 0 {
		return fmt.Errorf("bridge_timeout must be positive, got %s", s.BridgeTimeout)
	}
	return nil
}

// DefaultPath is settings.yaml under the user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "anyvoice", "settings.yaml"), nil
}
