package settings

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type envConfig struct {
	APIKey      string `env:"ANYVOICE_API_KEY"`
	OpenAIKey   string `env:"OPENAI_API_KEY"`
	GroqKey     string `env:"GROQ_API_KEY"`
	Language    string `env:"ANYVOICE_LANGUAGE"`
	Provider    string `env:"ANYVOICE_PROVIDER"`
	Shortcut    string `env:"ANYVOICE_SHORTCUT"`
	HistoryPath string `env:"ANYVOICE_HISTORY_PATH"`
	AlwaysOnTop *bool  `env:"ANYVOICE_ALWAYS_ON_TOP"`
	AutoPaste   *bool  `env:"ANYVOICE_AUTO_PASTE"`
}

// Overrides are values from the environment or command line that win over
// the settings file for this run only. They are never written back.
type Overrides struct {
	APIKey      string
	Language    string
	Provider    string
	Shortcut    string
	HistoryPath string
	AlwaysOnTop *bool
	AutoPaste   *bool

	// provider-specific keys, used when APIKey is empty
	providerKeys map[string]string
}

func LoadEnv() (Overrides, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return Overrides{}, fmt.Errorf("environment variables are invalid: %w", err)
	}
	return Overrides{
		APIKey:      raw.APIKey,
		Language:    raw.Language,
		Provider:    raw.Provider,
		Shortcut:    raw.Shortcut,
		HistoryPath: raw.HistoryPath,
		AlwaysOnTop: raw.AlwaysOnTop,
		AutoPaste:   raw.AutoPaste,
		providerKeys: map[string]string{
			"openai": raw.OpenAIKey,
			"groq":   raw.GroqKey,
		},
	}, nil
}

// Merge returns o with every field set in top replacing the one in o.
func (o Overrides) Merge(top Overrides) Overrides {
	if top.APIKey != "" {
		o.APIKey = top.APIKey
	}
	if top.Language != "" {
		o.Language = top.Language
	}
	if top.Provider != "" {
		o.Provider = top.Provider
	}
	if top.Shortcut != "" {
		o.Shortcut = top.Shortcut
	}
	if top.HistoryPath != "" {
		o.HistoryPath = top.HistoryPath
	}
	if top.AlwaysOnTop != nil {
		o.AlwaysOnTop = top.AlwaysOnTop
	}
	if top.AutoPaste != nil {
		o.AutoPaste = top.AutoPaste
	}
	return o
}

func (o Overrides) apply(s Settings) Settings {
	if o.Language != "" {
		s.Language = o.Language
	}
	if o.Provider != "" {
		s.Provider = o.Provider
	}
	if o.Shortcut != "" {
		s.Shortcut = o.Shortcut
	}
	if o.HistoryPath != "" {
		s.HistoryPath = o.HistoryPath
	}
	if o.AlwaysOnTop != nil {
		s.AlwaysOnTop = *o.AlwaysOnTop
	}
	if o.AutoPaste != nil {
		s.AutoPaste = *o.AutoPaste
	}
	switch {
	case o.APIKey != "":
		s.APIKey = o.APIKey
	case s.APIKey == "" && o.providerKeys[s.Provider] != "":
		s.APIKey = o.providerKeys[s.Provider]
	}
	return s
}
