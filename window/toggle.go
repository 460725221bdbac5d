package window

import (
	"context"
	"sync"

	"anyvoice/log"
)

// Toggle is the user-facing switch. It owns the displayed value and puts
// it back when the bridge or the settings store refuses the change.
type Toggle struct {
	svc     *Service
	persist func(bool) error

	mu sync.Mutex
	on bool
}

func NewToggle(svc *Service, initial bool, persist func(bool) error) *Toggle {
	return &Toggle{svc: svc, persist: persist, on: initial}
}

func (t *Toggle) On() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.on
}

func (t *Toggle) Set(ctx context.Context, on bool) error {
	t.mu.Lock()
	prev := t.on
	t.on = on
	t.mu.Unlock()

	err := t.svc.SetAlwaysOnTop(ctx, on)
	if err == nil && t.persist != nil {
		err = t.persist(on)
	}
	if err != nil {
		log.Warnf("always-on-top toggle rolled back to %v: %v", prev, err)
		t.mu.Lock()
		t.on = prev
		t.mu.Unlock()
		return err
	}
	return nil
}

// Flip inverts the switch and returns the value now shown.
func (t *Toggle) Flip(ctx context.Context) (bool, error) {
	err := t.Set(ctx, !t.On())
	return t.On(), err
}
