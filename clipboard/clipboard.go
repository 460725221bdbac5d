// Package clipboard writes corrected text to the system clipboard and can
// optionally paste it into the focused application.
package clipboard

import (
	"fmt"

	cb "github.com/atotto/clipboard"

	"anyvoice/log"
)

func Read() (string, error) {
	return cb.ReadAll()
}

func Copy(text string) error {
	return cb.WriteAll(text)
}

// System is the process clipboard. With AutoPaste set it also sends the
// platform paste chord after a successful write.
type System struct {
	AutoPaste bool

	write func(string) error
	paste func() error
}

func New(autoPaste bool) *System {
	return &System{AutoPaste: autoPaste, write: Copy, paste: Paste}
}

// Copy reports only the write result. A failed paste leaves the text on
// the clipboard, so it is logged and not returned.
func (s *System) Copy(text string) error {
	if err := s.write(text); err != nil {
		return fmt.Errorf("clipboard write: %w", err)
	}
	if s.AutoPaste {
		if err := s.paste(); err != nil {
			log.Warnf("auto-paste failed: %v", err)
		}
	}
	return nil
}
