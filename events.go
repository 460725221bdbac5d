package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"anyvoice/cue"
	"anyvoice/pipeline"
)

// EventSink abstracts the display layer so both the Bubble Tea TUI
// and the fyne GUI receive the same session events.
type EventSink interface {
	SessionChanged(s pipeline.Session)
	AlwaysOnTop(on bool)
	Notice(text string)
	ModeLine(text string)
	DeviceLine(text string)
}

// multiSink fans events out to every sink.
type multiSink []EventSink

func (m multiSink) SessionChanged(s pipeline.Session) {
	for _, x := range m {
		x.SessionChanged(s)
	}
}

func (m multiSink) AlwaysOnTop(on bool) {
	for _, x := range m {
		x.AlwaysOnTop(on)
	}
}

func (m multiSink) Notice(text string) {
	for _, x := range m {
		x.Notice(text)
	}
}

func (m multiSink) ModeLine(text string) {
	for _, x := range m {
		x.ModeLine(text)
	}
}

func (m multiSink) DeviceLine(text string) {
	for _, x := range m {
		x.DeviceLine(text)
	}
}

// consoleSink prints terminal sessions and notices for headless runs.
type consoleSink struct {
	out io.Writer
}

func (c consoleSink) SessionChanged(s pipeline.Session) {
	switch s.State {
	case pipeline.Recording:
		fmt.Fprintln(c.out, "● recording")
	case pipeline.Completed:
		if s.NoSpeech {
			fmt.Fprintln(c.out, "(no speech detected)")
			return
		}
		fmt.Fprintln(c.out, s.CorrectedText)
	case pipeline.Failed:
		fmt.Fprintln(c.out, "✗ "+pipeline.Message(s.Err))
	}
}

func (c consoleSink) AlwaysOnTop(on bool) {
	fmt.Fprintf(c.out, "always on top: %v\n", on)
}

func (c consoleSink) Notice(text string)     { fmt.Fprintln(c.out, text) }
func (c consoleSink) ModeLine(text string)   { fmt.Fprintln(c.out, text) }
func (c consoleSink) DeviceLine(text string) { fmt.Fprintln(c.out, text) }

// cueSink plays a tone when recording starts and when a session ends.
// A cancelled session is silent.
type cueSink struct {
	play func(cue.Kind)
}

func (c cueSink) SessionChanged(s pipeline.Session) {
	switch s.State {
	case pipeline.Recording:
		c.play(cue.Start)
	case pipeline.Completed:
		c.play(cue.Done)
	case pipeline.Failed:
		if !errors.Is(s.Err, context.Canceled) {
			c.play(cue.Fail)
		}
	}
}

func (cueSink) AlwaysOnTop(bool)  {}
func (cueSink) Notice(string)     {}
func (cueSink) ModeLine(string)   {}
func (cueSink) DeviceLine(string) {}
