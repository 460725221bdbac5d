// Package cue plays short tones when a recording starts, finishes or fails.
package cue

import (
	"math"
	"sync"
	"sync/atomic"
)

type Kind int

const (
	Start Kind = iota
	Done
	Fail
)

const sampleRate = 44100

type tone struct {
	freq   float64
	dur    float64 // seconds per beep
	volume float64
	decay  float64
	gap    float64 // when > 0 the beep repeats after this many seconds
}

var tones = map[Kind]tone{
	Start: {freq: 1200, dur: 0.06, volume: 0.5, decay: 60},
	Done:  {freq: 900, dur: 0.08, volume: 0.5, decay: 40},
	Fail:  {freq: 350, dur: 0.08, volume: 0.6, decay: 30, gap: 0.05},
}

var (
	disabled  atomic.Bool
	soundOnce sync.Once
	rendered  map[Kind][]int16
)

// Disable silences every later Play. Test mode and -sounds=false use it.
func Disable() { disabled.Store(true) }

func Enabled() bool { return !disabled.Load() }

// render returns mono 16-bit samples for t.
func render(t tone, rate int) []int16 {
	n := int(float64(rate) * t.dur)
	beep := make([]int16, n)
	for i := range beep {
		x := float64(i) / float64(rate)
		envelope := math.Exp(-x * t.decay)
		beep[i] = int16(math.Sin(2*math.Pi*t.freq*x) * 32767 * t.volume * envelope)
	}
	if t.gap <= 0 {
		return beep
	}
	out := make([]int16, 0, 2*n+int(float64(rate)*t.gap))
	out = append(out, beep...)
	out = append(out, make([]int16, int(float64(rate)*t.gap))...)
	return append(out, beep...)
}

func initSound() {
	rendered = make(map[Kind][]int16, len(tones))
	for k, t := range tones {
		rendered[k] = render(t, sampleRate)
	}
	initPlayer()
}

// Play starts the tone for k and returns without waiting for it.
func Play(k Kind) {
	if disabled.Load() {
		return
	}
	soundOnce.Do(initSound)
	if s := rendered[k]; len(s) > 0 {
		play(s)
	}
}
