package hotkey

import (
	"fmt"
	"strings"
)

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

type Modifier uint8

const (
	ModCtrl Modifier = 1 << iota
	ModShift
	ModAlt
	ModSuper
)

var modNames = []struct {
	mod  Modifier
	name string
}{
	{ModCtrl, "Ctrl"},
	{ModShift, "Shift"},
	{ModAlt, "Alt"},
	{ModSuper, "Super"},
}

// Shortcut is a modifier set plus one key: "A"-"Z", "0"-"9" or "Space".
type Shortcut struct {
	Mods Modifier
	Key  string
}

const DefaultShortcut = "Ctrl+Shift+S"

func (s Shortcut) String() string {
	var parts []string
	for _, m := range modNames {
		if s.Mods&m.mod != 0 {
			parts = append(parts, m.name)
		}
	}
	return strings.Join(append(parts, s.Key), "+")
}

func (s Shortcut) Has(m Modifier) bool { return s.Mods&m != 0 }

// Parse reads shortcuts such as "Ctrl+Shift+S" or "cmd+option+space".
func Parse(text string) (Shortcut, error) {
	var sc Shortcut
	for _, raw := range strings.Split(text, "+") {
		tok := strings.ToLower(strings.TrimSpace(raw))
		switch tok {
		case "ctrl", "control":
			sc.Mods |= ModCtrl
		case "shift":
			sc.Mods |= ModShift
		case "alt", "option", "opt":
			sc.Mods |= ModAlt
		case "super", "cmd", "command", "win", "meta":
			sc.Mods |= ModSuper
		case "space":
			if sc.Key != "" {
				return Shortcut{}, fmt.Errorf("shortcut %q: more than one key", text)
			}
			sc.Key = "Space"
		default:
			if len(tok) != 1 || !isKeyChar(tok[0]) {
				return Shortcut{}, fmt.Errorf("shortcut %q: unsupported key %q", text, raw)
			}
			if sc.Key != "" {
				return Shortcut{}, fmt.Errorf("shortcut %q: more than one key", text)
			}
			sc.Key = strings.ToUpper(tok)
		}
	}
	if sc.Key == "" {
		return Shortcut{}, fmt.Errorf("shortcut %q: missing key", text)
	}
	if sc.Mods == 0 {
		return Shortcut{}, fmt.Errorf("shortcut %q: needs at least one modifier", text)
	}
	return sc, nil
}

func isKeyChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
