package main

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"anyvoice/audio"
	"anyvoice/clipboard"
	"anyvoice/cue"
	"anyvoice/history"
	"anyvoice/pipeline"
	"anyvoice/recorder"
	"anyvoice/transcriber"
	"anyvoice/window"
)

type recordingSink struct {
	mu       sync.Mutex
	sessions []pipeline.Session
	notices  []string
	onTop    []bool
}

func (r *recordingSink) SessionChanged(s pipeline.Session) {
	r.mu.Lock()
	r.sessions = append(r.sessions, s)
	r.mu.Unlock()
}

func (r *recordingSink) AlwaysOnTop(on bool) {
	r.mu.Lock()
	r.onTop = append(r.onTop, on)
	r.mu.Unlock()
}

func (r *recordingSink) Notice(text string) {
	r.mu.Lock()
	r.notices = append(r.notices, text)
	r.mu.Unlock()
}

func (r *recordingSink) ModeLine(string)   {}
func (r *recordingSink) DeviceLine(string) {}

func (r *recordingSink) lastNotice() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return ""
	}
	return r.notices[len(r.notices)-1]
}

func (r *recordingSink) lastOnTop() (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.onTop) == 0 {
		return false, false
	}
	return r.onTop[len(r.onTop)-1], true
}

type testApp struct {
	*app
	tr      *transcriber.Fake
	clip    *clipboard.Fake
	bridge  *window.FakeBridge
	sink    *recordingSink
	saved   []bool
	persist error
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ta := &testApp{
		tr:     &transcriber.Fake{Text: "hello world", Corrected: "Hello, world."},
		clip:   &clipboard.Fake{},
		bridge: &window.FakeBridge{},
		sink:   &recordingSink{},
	}
	actx := audio.NewFakeContextPCM(make([]byte, audio.SampleRate*2))
	pipe := pipeline.New(recorder.New(actx, nil, t.TempDir()), ta.tr, ta.tr, ta.clip, pipeline.Config{
		Credential: func() string { return "sk-test" },
	})
	win := window.New("windows", ta.bridge)
	toggle := window.NewToggle(win, false, func(on bool) error {
		if ta.persist != nil {
			return ta.persist
		}
		ta.saved = append(ta.saved, on)
		return nil
	})
	ta.app = &app{pipe: pipe, win: win, toggle: toggle, clip: ta.clip, sink: ta.sink}
	return ta
}

func TestToggleRecordingCompletes(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	ta.toggleRecording(ctx)
	if s, ok := ta.pipe.Session(); !ok || s.State != pipeline.Recording {
		t.Fatalf("after first toggle: session = %+v, ok = %v", s, ok)
	}
	ta.toggleRecording(ctx)
	ta.inflight.Wait()

	s, _ := ta.pipe.Session()
	if s.State != pipeline.Completed {
		t.Fatalf("state = %v, want completed (err %v)", s.State, s.Err)
	}
	if got := ta.clip.Last(); got != "Hello, world." {
		t.Errorf("clipboard = %q", got)
	}
	if got := ta.sink.lastNotice(); got != "Copied to clipboard." {
		t.Errorf("notice = %q", got)
	}
	if _, fronts := ta.bridge.Calls(); fronts != 1 {
		t.Errorf("BringToFront calls = %d, want 1", fronts)
	}
}

func TestStartFailureIsReported(t *testing.T) {
	ta := newTestApp(t)
	actx := audio.NewFakeContextPCM(nil)
	actx.CaptureErr = errors.New("no such device")
	ta.pipe = pipeline.New(recorder.New(actx, nil, t.TempDir()), ta.tr, ta.tr, ta.clip, pipeline.Config{})

	ta.toggleRecording(context.Background())

	if _, ok := ta.pipe.Session(); ok {
		t.Error("failed start left a session")
	}
	if got := ta.sink.lastNotice(); got != pipeline.Message(pipeline.ErrDeviceUnavailable) {
		t.Errorf("notice = %q", got)
	}
}

func TestCancelWithoutSessionIsQuiet(t *testing.T) {
	ta := newTestApp(t)
	ta.cancel()
	if got := ta.sink.lastNotice(); got != "" {
		t.Errorf("notice = %q, want none", got)
	}
}

func TestCopyAgain(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	ta.copyAgain(ctx)
	if got := ta.sink.lastNotice(); got != "Nothing to copy yet." {
		t.Errorf("empty notice = %q", got)
	}

	ta.toggleRecording(ctx)
	ta.toggleRecording(ctx)
	ta.inflight.Wait()
	ta.copyAgain(ctx)

	if w := ta.clip.Writes(); len(w) != 2 || w[1] != "Hello, world." {
		t.Errorf("writes = %q", w)
	}
	if got := ta.sink.lastNotice(); got != "Copied again." {
		t.Errorf("notice = %q", got)
	}
}

func TestCopyAgainFromHistory(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()
	store, err := history.Open(ctx, t.TempDir()+"/history.db")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.Add(ctx, history.Entry{ID: "a", State: "completed", CorrectedText: "from last run"}); err != nil {
		t.Fatal(err)
	}
	ta.history = store

	ta.copyAgain(ctx)
	if got := ta.clip.Last(); got != "from last run" {
		t.Errorf("clipboard = %q", got)
	}
}

func TestCopyAgainClipboardFailure(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()
	ta.toggleRecording(ctx)
	ta.toggleRecording(ctx)
	ta.inflight.Wait()

	ta.clip.Err = errors.New("no display")
	ta.copyAgain(ctx)
	want := pipeline.Message(&pipeline.ClipboardWriteFailed{})
	if got := ta.sink.lastNotice(); got != want {
		t.Errorf("notice = %q, want %q", got, want)
	}
}

func TestToggleOnTop(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	ta.toggleOnTop(ctx)
	if on, ok := ta.sink.lastOnTop(); !ok || !on {
		t.Errorf("sink on top = %v, %v", on, ok)
	}
	if !ta.bridge.OnTop() {
		t.Error("bridge not elevated")
	}
	if !slices.Equal(ta.saved, []bool{true}) {
		t.Errorf("saved = %v", ta.saved)
	}
}

func TestToggleOnTopBridgeFailure(t *testing.T) {
	ta := newTestApp(t)
	ta.bridge.Err = &window.NativeBridgeError{Code: window.CodeSetWindowPos, Message: "denied"}

	ta.toggleOnTop(context.Background())

	if on, _ := ta.sink.lastOnTop(); on {
		t.Error("sink shows on top after a failed bridge call")
	}
	if len(ta.saved) != 0 {
		t.Errorf("saved = %v, want nothing", ta.saved)
	}
	if ta.sink.lastNotice() == "" {
		t.Error("no notice for the failure")
	}
}

func TestApplySavedElevationDoesNotPersist(t *testing.T) {
	ta := newTestApp(t)
	ta.toggle = window.NewToggle(ta.win, true, func(bool) error {
		t.Error("persist called at startup")
		return nil
	})

	ta.applySavedElevation(context.Background())

	if !ta.bridge.OnTop() {
		t.Error("saved preference not applied")
	}
	if on, ok := ta.sink.lastOnTop(); !ok || !on {
		t.Errorf("sink on top = %v, %v", on, ok)
	}
}

func TestShutdownCancelsRecording(t *testing.T) {
	ta := newTestApp(t)
	ta.toggleRecording(context.Background())

	ta.shutdown()

	s, _ := ta.pipe.Session()
	if s.State != pipeline.Failed || !errors.Is(s.Err, context.Canceled) {
		t.Errorf("session = %v / %v, want failed / canceled", s.State, s.Err)
	}
	if calls, _ := ta.tr.Calls(); calls != 0 {
		t.Errorf("transcribe calls = %d after cancel", calls)
	}
}

func TestConsoleSink(t *testing.T) {
	tests := []struct {
		name string
		s    pipeline.Session
		want string
	}{
		{"recording", pipeline.Session{State: pipeline.Recording}, "● recording\n"},
		{"transcribing is silent", pipeline.Session{State: pipeline.Transcribing}, ""},
		{"completed", pipeline.Session{State: pipeline.Completed, CorrectedText: "Hello."}, "Hello.\n"},
		{"no speech", pipeline.Session{State: pipeline.Completed, NoSpeech: true}, "(no speech detected)\n"},
		{"failed", pipeline.Session{State: pipeline.Failed, Err: transcriber.ErrMissingCredential},
			"✗ " + pipeline.Message(transcriber.ErrMissingCredential) + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			consoleSink{out: &out}.SessionChanged(tt.s)
			if out.String() != tt.want {
				t.Errorf("got %q, want %q", out.String(), tt.want)
			}
		})
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	multiSink{a, b}.Notice("hi")
	multiSink{a, b}.AlwaysOnTop(true)
	for _, r := range []*recordingSink{a, b} {
		if r.lastNotice() != "hi" {
			t.Errorf("notice = %q", r.lastNotice())
		}
		if on, ok := r.lastOnTop(); !ok || !on {
			t.Error("on top not forwarded")
		}
	}
}

func TestCueSink(t *testing.T) {
	var played []cue.Kind
	sink := cueSink{play: func(k cue.Kind) { played = append(played, k) }}

	sink.SessionChanged(pipeline.Session{State: pipeline.Recording})
	sink.SessionChanged(pipeline.Session{State: pipeline.Transcribing})
	sink.SessionChanged(pipeline.Session{State: pipeline.Completed})
	sink.SessionChanged(pipeline.Session{State: pipeline.Failed, Err: context.Canceled})
	sink.SessionChanged(pipeline.Session{State: pipeline.Failed, Err: pipeline.ErrDeviceUnavailable})

	want := []cue.Kind{cue.Start, cue.Done, cue.Fail}
	if !slices.Equal(played, want) {
		t.Errorf("played = %v, want %v", played, want)
	}
}
