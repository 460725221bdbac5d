package hotkey

import (
	"sync/atomic"
	"time"
)

type Mode string

const (
	ModePTT    Mode = "ptt"
	ModeToggle Mode = "toggle"
)

// Hybrid gives one shortcut two behaviours: a short tap starts recording
// until the next press, holding records until release.
type Hybrid struct {
	startCh chan struct{}
	stopCh  chan struct{}
	mode    atomic.Value
}

// NewHybrid drives hk in the background. A press held longer than
// longPress is push-to-talk.
func NewHybrid(hk Hotkey, longPress time.Duration) *Hybrid {
	h := &Hybrid{
		startCh: make(chan struct{}, 1),
		stopCh:  make(chan struct{}, 1),
	}
	h.mode.Store(ModeToggle)
	go h.run(hk, longPress)
	return h
}

func (h *Hybrid) Start() <-chan struct{} { return h.startCh }

func (h *Hybrid) Stop() <-chan struct{} { return h.stopCh }

// Mode reports how the current or last recording is being held.
func (h *Hybrid) Mode() Mode { return h.mode.Load().(Mode) }

func (h *Hybrid) IsToggle() bool { return h.Mode() == ModeToggle }

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (h *Hybrid) run(hk Hotkey, longPress time.Duration) {
	for {
		<-hk.Keydown()
		// Start right away; how the press ends decides the mode.
		h.mode.Store(ModeToggle)
		signal(h.startCh)

		timer := time.NewTimer(longPress)
		select {
		case <-timer.C:
			h.mode.Store(ModePTT)
			<-hk.Keyup()
			signal(h.stopCh)
			continue
		case <-hk.Keyup():
			timer.Stop()
		}

		// toggled on; the next full press stops
		<-hk.Keydown()
		<-hk.Keyup()
		signal(h.stopCh)
	}
}
