package settings

import (
	"strings"
	"sync"

	"anyvoice/log"
)

// Manager mirrors the settings file in memory for fast reads. Setters
// write through to the store before the new value becomes visible.
type Manager struct {
	store     Store
	overrides Overrides

	mu   sync.RWMutex
	file Settings
}

func NewManager(store Store, overrides Overrides) (*Manager, error) {
	file, err := store.Load()
	if err != nil {
		return nil, err
	}
	m := &Manager{store: store, overrides: overrides, file: file}
	if err := m.Get().Validate(); err != nil {
		return nil, err
	}
	if lang := m.Language(); !IsKnownLanguage(lang) {
		log.Warnf("language %q is not in the supported list %v", lang, Languages)
	}
	return m, nil
}

// Get returns the effective settings: file values with overrides applied.
func (m *Manager) Get() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overrides.apply(m.file)
}

func (m *Manager) APIKey() string   { return m.Get().APIKey }
func (m *Manager) Language() string { return m.Get().Language }
func (m *Manager) HasAPIKey() bool  { return m.APIKey() != "" }

// Update applies fn to a copy of the file settings, validates and saves
// the result, and only then publishes it.
func (m *Manager) Update(fn func(*Settings)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.file
	fn(&next)
	if err := m.overrides.apply(next).Validate(); err != nil {
		return err
	}
	if err := m.store.Save(next); err != nil {
		return err
	}
	m.file = next
	return nil
}

func (m *Manager) SetAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyAPIKey
	}
	return m.Update(func(s *Settings) { s.APIKey = key })
}

func (m *Manager) SetLanguage(lang string) error {
	return m.Update(func(s *Settings) { s.Language = lang })
}

func (m *Manager) SetAlwaysOnTop(on bool) error {
	return m.Update(func(s *Settings) { s.AlwaysOnTop = on })
}

func (m *Manager) SetShortcut(sc string) error {
	return m.Update(func(s *Settings) { s.Shortcut = sc })
}
