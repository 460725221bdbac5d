package pipeline_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"anyvoice/audio"
	"anyvoice/pipeline"
	"anyvoice/recorder"
	"anyvoice/transcriber"
)

type fakeClipboard struct {
	mu   sync.Mutex
	text string
	err  error
}

func (c *fakeClipboard) Copy(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.text = text
	return nil
}

type harness struct {
	p    *pipeline.Pipeline
	actx *audio.FakeContext
	tr   *transcriber.Fake
	clip *fakeClipboard
	dir  string
	key  string

	mu       sync.Mutex
	finished []pipeline.Session
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		actx: audio.NewFakeContextPCM(make([]byte, audio.SampleRate*2)),
		tr:   &transcriber.Fake{Text: "きょうはいい天気", Corrected: "今日はいい天気です。"},
		clip: &fakeClipboard{},
		dir:  t.TempDir(),
		key:  "sk-test",
	}
	h.p = pipeline.New(
		recorder.New(h.actx, nil, h.dir),
		h.tr, h.tr, h.clip,
		pipeline.Config{
			Language:       func() string { return "ja" },
			Credential:     func() string { return h.key },
			RequestTimeout: time.Second,
			OnFinish: func(s pipeline.Session) {
				h.mu.Lock()
				h.finished = append(h.finished, s)
				h.mu.Unlock()
			},
		},
	)
	return h
}

func (h *harness) artifacts(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(h.dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		t.Fatal(err)
	}
	return len(entries)
}

func (h *harness) record(t *testing.T) {
	t.Helper()
	if _, err := h.p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := h.p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestProcessCompleted(t *testing.T) {
	h := newHarness(t)
	h.record(t)

	s, err := h.p.Process(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.State != pipeline.Completed {
		t.Fatalf("state = %s, want completed", s.State)
	}
	if s.Transcript != "きょうはいい天気" || s.CorrectedText != "今日はいい天気です。" {
		t.Errorf("texts = %q / %q", s.Transcript, s.CorrectedText)
	}
	if !s.Copied || h.clip.text != s.CorrectedText {
		t.Errorf("clipboard = %q, copied = %v", h.clip.text, s.Copied)
	}
	if h.tr.LastLanguage != "ja" || h.tr.LastText != "きょうはいい天気" {
		t.Errorf("collaborators got lang %q text %q", h.tr.LastLanguage, h.tr.LastText)
	}
	if n := h.artifacts(t); n != 0 {
		t.Errorf("%d artifacts left after completion", n)
	}
	if h.p.IsActive() {
		t.Error("IsActive() true after completion")
	}
	if len(h.finished) != 1 || h.finished[0].ID != s.ID {
		t.Errorf("OnFinish calls = %d", len(h.finished))
	}
}

func TestClipboardFailureStillCompletes(t *testing.T) {
	h := newHarness(t)
	h.clip.err = errors.New("no clipboard utility")
	h.record(t)

	s, err := h.p.Process(context.Background())
	if err != nil {
		t.Fatalf("Process returned %v, clipboard failure must not fail the session", err)
	}
	if s.State != pipeline.Completed {
		t.Errorf("state = %s, want completed", s.State)
	}
	var notice *pipeline.ClipboardWriteFailed
	if !errors.As(s.Notice, &notice) {
		t.Errorf("Notice = %v, want ClipboardWriteFailed", s.Notice)
	}
	if s.Copied {
		t.Error("Copied = true")
	}
}

func TestTranscriptionFailureRemovesArtifact(t *testing.T) {
	h := newHarness(t)
	h.tr.Err = &transcriber.ServiceError{Stage: "transcription", Status: 500, Message: "API error: 500"}
	h.record(t)

	if h.artifacts(t) != 1 {
		t.Fatal("expected an artifact after Stop")
	}

	s, err := h.p.Process(context.Background())
	var svcErr *transcriber.ServiceError
	if !errors.As(err, &svcErr) || svcErr.Status != 500 {
		t.Fatalf("err = %v, want ServiceError 500", err)
	}
	if s.State != pipeline.Failed {
		t.Errorf("state = %s, want failed", s.State)
	}
	if s.Transcript != "" || s.CorrectedText != "" {
		t.Errorf("texts set on failure: %q / %q", s.Transcript, s.CorrectedText)
	}
	if n := h.artifacts(t); n != 0 {
		t.Errorf("%d artifacts left after failure", n)
	}
	if _, co := h.tr.Calls(); co != 0 {
		t.Error("correction called after transcription failure")
	}
}

func TestCorrectionFailure(t *testing.T) {
	h := newHarness(t)
	h.tr.CorrectErr = &transcriber.ServiceError{Stage: "correction", Status: 429, Message: "Rate limit reached"}
	h.record(t)

	s, err := h.p.Process(context.Background())
	if err == nil || s.State != pipeline.Failed {
		t.Fatalf("state = %s err = %v, want failed", s.State, err)
	}
	if s.Transcript == "" {
		t.Error("transcript should be kept from the successful stage")
	}
	if h.clip.text != "" {
		t.Error("clipboard written on failure")
	}
	if n := h.artifacts(t); n != 0 {
		t.Errorf("%d artifacts left", n)
	}
}

func TestMissingCredentialFailsBeforeNetwork(t *testing.T) {
	h := newHarness(t)
	h.key = ""
	h.record(t)

	s, err := h.p.Process(context.Background())
	if !errors.Is(err, transcriber.ErrMissingCredential) {
		t.Fatalf("err = %v, want ErrMissingCredential", err)
	}
	if s.State != pipeline.Failed {
		t.Errorf("state = %s, want failed", s.State)
	}
	if tr, co := h.tr.Calls(); tr != 0 || co != 0 {
		t.Errorf("collaborators called %d/%d times", tr, co)
	}
	if n := h.artifacts(t); n != 0 {
		t.Errorf("%d artifacts left", n)
	}
}

func TestNoSpeechSkipsCorrection(t *testing.T) {
	h := newHarness(t)
	h.tr.Text = ""
	h.record(t)

	s, err := h.p.Process(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.State != pipeline.Completed || !s.NoSpeech {
		t.Errorf("state = %s NoSpeech = %v", s.State, s.NoSpeech)
	}
	if _, co := h.tr.Calls(); co != 0 {
		t.Error("correction called with empty transcript")
	}
	if s.Copied {
		t.Error("empty result copied to clipboard")
	}
}

func TestRequestTimeoutIsServiceError(t *testing.T) {
	h := newHarness(t)
	h.tr.Block = make(chan struct{})
	h.p = pipeline.New(recorder.New(h.actx, nil, h.dir), h.tr, h.tr, h.clip, pipeline.Config{
		RequestTimeout: 20 * time.Millisecond,
	})
	h.record(t)

	_, err := h.p.Process(context.Background())
	var svcErr *transcriber.ServiceError
	if !errors.As(err, &svcErr) || svcErr.Status != http.StatusRequestTimeout {
		t.Fatalf("err = %v, want ServiceError 408", err)
	}
	if n := h.artifacts(t); n != 0 {
		t.Errorf("%d artifacts left", n)
	}
}

func TestConcurrentStartSingleFlight(t *testing.T) {
	h := newHarness(t)

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.p.Start(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, pipeline.ErrSessionActive):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d starts succeeded, want exactly 1", ok)
	}
	if h.actx.Open() != 1 {
		t.Errorf("%d devices open, want 1", h.actx.Open())
	}
	h.p.Cancel()
}

func TestStartRejectedUntilTerminal(t *testing.T) {
	h := newHarness(t)
	h.record(t)

	if _, err := h.p.Start(context.Background()); !errors.Is(err, pipeline.ErrSessionActive) {
		t.Fatalf("Start while stopping = %v, want ErrSessionActive", err)
	}
	first, _ := h.p.Session()

	if _, err := h.p.Process(context.Background()); err != nil {
		t.Fatal(err)
	}
	s, err := h.p.Start(context.Background())
	if err != nil {
		t.Fatalf("Start after completion: %v", err)
	}
	if s.ID == first.ID {
		t.Error("new session reused the previous ID")
	}
	h.p.Cancel()
}

func TestStartFailureCreatesNoSession(t *testing.T) {
	h := newHarness(t)
	h.actx.CaptureErr = audio.ErrPermission

	if _, err := h.p.Start(context.Background()); !errors.Is(err, pipeline.ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if h.p.IsActive() {
		t.Error("IsActive() after failed start")
	}
	if _, ok := h.p.Session(); ok {
		t.Error("a session exists after failed start")
	}

	h.actx.CaptureErr = errors.New("no such device")
	if _, err := h.p.Start(context.Background()); !errors.Is(err, pipeline.ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want ErrDeviceUnavailable", err)
	}
}

func TestStopWithoutSession(t *testing.T) {
	h := newHarness(t)
	if _, err := h.p.Stop(context.Background()); !errors.Is(err, pipeline.ErrNoActiveSession) {
		t.Errorf("err = %v, want ErrNoActiveSession", err)
	}
	if _, err := h.p.Process(context.Background()); !errors.Is(err, pipeline.ErrNoActiveSession) {
		t.Errorf("Process err = %v, want ErrNoActiveSession", err)
	}
}

func TestStopTooShortFails(t *testing.T) {
	h := newHarness(t)
	h.p = pipeline.New(recorder.New(audio.NewFakeContextPCM(make([]byte, 10)), nil, h.dir), h.tr, h.tr, h.clip, pipeline.Config{})

	if _, err := h.p.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := h.p.Stop(context.Background()); !errors.Is(err, pipeline.ErrArtifactUnavailable) {
		t.Fatalf("err = %v, want ErrArtifactUnavailable", err)
	}
	s, _ := h.p.Session()
	if s.State != pipeline.Failed {
		t.Errorf("state = %s, want failed", s.State)
	}
}

func TestCleanupIdempotent(t *testing.T) {
	h := newHarness(t)
	h.record(t)

	h.p.Cleanup()
	h.p.Cleanup()

	if n := h.artifacts(t); n != 0 {
		t.Errorf("%d artifacts left", n)
	}
	if h.actx.Open() != 0 {
		t.Error("device still open")
	}
}

func TestCancelWhileRecording(t *testing.T) {
	h := newHarness(t)
	if _, err := h.p.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := h.p.Cancel(); err != nil {
		t.Fatal(err)
	}
	s, _ := h.p.Session()
	if s.State != pipeline.Failed || !errors.Is(s.Err, context.Canceled) {
		t.Errorf("state = %s err = %v", s.State, s.Err)
	}
	if h.actx.Open() != 0 {
		t.Error("device still open after cancel")
	}
	if err := h.p.Cancel(); !errors.Is(err, pipeline.ErrNoActiveSession) {
		t.Errorf("second Cancel = %v", err)
	}
}

func TestCancelAfterStopRemovesArtifact(t *testing.T) {
	h := newHarness(t)
	h.record(t)
	if n := h.artifacts(t); n != 1 {
		t.Fatalf("%d artifacts after Stop, want 1", n)
	}

	if err := h.p.Cancel(); err != nil {
		t.Fatalf("Cancel after Stop = %v", err)
	}
	s, _ := h.p.Session()
	if s.State != pipeline.Failed || !errors.Is(s.Err, context.Canceled) {
		t.Errorf("state = %s err = %v", s.State, s.Err)
	}
	if n := h.artifacts(t); n != 0 {
		t.Errorf("%d artifacts left after cancel", n)
	}
	if _, err := h.p.Process(context.Background()); !errors.Is(err, pipeline.ErrNoActiveSession) {
		t.Errorf("Process after cancel = %v, want ErrNoActiveSession", err)
	}
	if tr, co := h.tr.Calls(); tr != 0 || co != 0 {
		t.Errorf("collaborators called %d/%d times", tr, co)
	}
}

func TestCancelAfterTranscriptionStarted(t *testing.T) {
	h := newHarness(t)
	h.tr.Block = make(chan struct{})
	h.record(t)

	done := make(chan struct{})
	go func() {
		h.p.Process(context.Background())
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for {
		s, _ := h.p.Session()
		if s.State == pipeline.Transcribing || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if err := h.p.Cancel(); !errors.Is(err, pipeline.ErrNotCancellable) {
		t.Errorf("Cancel = %v, want ErrNotCancellable", err)
	}
	close(h.tr.Block)
	<-done

	s, _ := h.p.Session()
	if s.State != pipeline.Completed {
		t.Errorf("state = %s, want completed", s.State)
	}
}

func TestSubscribeSeesForwardStates(t *testing.T) {
	h := newHarness(t)
	ch, unsubscribe := h.p.Subscribe()
	defer unsubscribe()

	h.record(t)
	if _, err := h.p.Process(context.Background()); err != nil {
		t.Fatal(err)
	}

	var states []pipeline.State
	for {
		select {
		case s := <-ch:
			if n := len(states); n == 0 || states[n-1] != s.State {
				states = append(states, s.State)
			}
			if s.State.Terminal() && s.Artifact.Path != "" {
				t.Errorf("terminal snapshot still holds artifact %q", s.Artifact.Path)
			}
			continue
		default:
		}
		break
	}

	want := []pipeline.State{pipeline.Recording, pipeline.Stopping, pipeline.Transcribing, pipeline.Correcting, pipeline.Completed}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states = %v, want %v", states, want)
		}
	}
}

func TestFailedSnapshotHasNoArtifact(t *testing.T) {
	h := newHarness(t)
	h.tr.Err = errors.New("connection reset")
	ch, unsubscribe := h.p.Subscribe()
	defer unsubscribe()

	h.record(t)
	h.p.Process(context.Background())

	for {
		select {
		case s := <-ch:
			if s.State == pipeline.Failed && s.Artifact.Path != "" {
				t.Errorf("failed snapshot still holds artifact %q", s.Artifact.Path)
			}
			continue
		default:
		}
		break
	}
}
