package main

import (
	"context"
	"errors"
	"sync"

	"anyvoice/history"
	"anyvoice/hotkey"
	"anyvoice/log"
	"anyvoice/pipeline"
	"anyvoice/window"
)

// app wires user input to the pipeline and the elevation toggle and
// forwards what happens to the display.
type app struct {
	pipe    *pipeline.Pipeline
	win     *window.Service
	toggle  *window.Toggle
	clip    pipeline.Clipboard
	history *history.Store // nil when history is disabled
	sink    EventSink

	inflight sync.WaitGroup
}

// watch forwards every published session snapshot until ctx is done.
func (a *app) watch(ctx context.Context) {
	ch, unsubscribe := a.pipe.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-ch:
			a.sink.SessionChanged(s)
		}
	}
}

func (a *app) report(err error) {
	log.Errorf("%v", err)
	a.sink.Notice(pipeline.Message(err))
}

func (a *app) startRecording(ctx context.Context) {
	if _, err := a.pipe.Start(ctx); err != nil {
		a.report(err)
	}
}

// finishRecording stops capture and runs transcription and correction.
// It blocks until the session is terminal.
func (a *app) finishRecording(ctx context.Context) {
	s, err := a.pipe.Finish(ctx)
	switch {
	case errors.Is(err, pipeline.ErrNoActiveSession):
		return
	case err != nil:
		a.report(err)
		return
	case s.Notice != nil:
		a.sink.Notice(pipeline.Message(s.Notice))
	case s.NoSpeech:
		a.sink.Notice("No speech detected.")
	case s.Copied:
		a.sink.Notice("Copied to clipboard.")
	}
	a.win.BringToFront(ctx)
}

func (a *app) goFinish(ctx context.Context) {
	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		a.finishRecording(ctx)
	}()
}

// toggleRecording starts a session when none is in flight and finishes the
// one being recorded otherwise.
func (a *app) toggleRecording(ctx context.Context) {
	if s, ok := a.pipe.Session(); ok && s.State == pipeline.Recording {
		a.goFinish(ctx)
		return
	}
	a.startRecording(ctx)
}

func (a *app) cancel() {
	err := a.pipe.Cancel()
	if err != nil && !errors.Is(err, pipeline.ErrNoActiveSession) {
		a.report(err)
	}
}

// lastText is the corrected text of the current session, falling back to
// the newest one in history.
func (a *app) lastText(ctx context.Context) string {
	if s, ok := a.pipe.Session(); ok && s.State == pipeline.Completed && s.CorrectedText != "" {
		return s.CorrectedText
	}
	if a.history == nil {
		return ""
	}
	text, err := a.history.LastCorrected(ctx)
	if err != nil {
		log.Warnf("history: %v", err)
	}
	return text
}

func (a *app) copyAgain(ctx context.Context) {
	text := a.lastText(ctx)
	if text == "" {
		a.sink.Notice("Nothing to copy yet.")
		return
	}
	if err := a.clip.Copy(text); err != nil {
		a.report(&pipeline.ClipboardWriteFailed{Err: err})
		return
	}
	a.sink.Notice("Copied again.")
}

func (a *app) toggleOnTop(ctx context.Context) {
	on, err := a.toggle.Flip(ctx)
	if err != nil {
		a.sink.Notice("Could not change always-on-top: " + err.Error())
	}
	a.sink.AlwaysOnTop(on)
}

// applySavedElevation pushes the persisted preference to the window once
// at startup. It does not write settings back.
func (a *app) applySavedElevation(ctx context.Context) {
	on := a.toggle.On()
	if on {
		if err := a.win.SetAlwaysOnTop(ctx, true); err != nil {
			a.sink.Notice("Could not keep the window on top: " + err.Error())
		}
	}
	a.sink.AlwaysOnTop(on)
}

// runHotkey drives the pipeline from the global shortcut until ctx is done.
func (a *app) runHotkey(ctx context.Context, hy *hotkey.Hybrid) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-hy.Start():
			log.Info("hotkey_start")
			a.startRecording(ctx)
		case <-hy.Stop():
			log.Info("hotkey_stop_" + string(hy.Mode()))
			a.goFinish(ctx)
		}
	}
}

// shutdown abandons a session that is still recording, waits for one that
// is already being processed, and removes any leftover artifact.
func (a *app) shutdown() {
	if err := a.pipe.Cancel(); err == nil {
		log.Info("recording cancelled on shutdown")
	}
	a.inflight.Wait()
	a.pipe.Cleanup()
}
