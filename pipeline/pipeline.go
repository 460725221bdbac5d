// Package pipeline owns the single recording session: capture, stop,
// transcription, correction and the clipboard hand-off.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"anyvoice/log"
	"anyvoice/transcriber"

	"github.com/google/uuid"
)

const (
	DefaultRequestTimeout = 60 * time.Second
	DefaultDeviceTimeout  = 5 * time.Second
	DefaultLanguage       = "ja"
)

// Artifact is the persisted audio of one session.
type Artifact struct {
	Path     string
	Duration time.Duration
	Size     int64
}

// Session is a snapshot of one recording session.
type Session struct {
	ID            string
	State         State
	Artifact      Artifact
	Transcript    string
	CorrectedText string
	NoSpeech      bool
	Copied        bool
	Notice        error
	Err           error
	StartedAt     time.Time
	EndedAt       time.Time
}

// Recorder acquires the capture device and persists what it hears.
// Release must be safe to call any number of times.
type Recorder interface {
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context) (Artifact, error)
	Release()
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string) (string, error)
}

type Corrector interface {
	Correct(ctx context.Context, text string) (string, error)
}

type Clipboard interface {
	Copy(text string) error
}

type Config struct {
	// Language and Credential are read at the start of every Process so
	// settings changes apply to the next session.
	Language       func() string
	Credential     func() string
	Provider       string
	RequestTimeout time.Duration
	DeviceTimeout  time.Duration

	// OnFinish runs after a session reaches a terminal state.
	OnFinish func(Session)
}

type Pipeline struct {
	rec  Recorder
	tr   Transcriber
	co   Corrector
	clip Clipboard
	cfg  Config

	mu   sync.Mutex
	cur  *Session
	subs map[chan Session]struct{}
}

func New(rec Recorder, tr Transcriber, co Corrector, clip Clipboard, cfg Config) *Pipeline {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.DeviceTimeout <= 0 {
		cfg.DeviceTimeout = DefaultDeviceTimeout
	}
	if cfg.Language == nil {
		cfg.Language = func() string { return DefaultLanguage }
	}
	return &Pipeline{
		rec:  rec,
		tr:   tr,
		co:   co,
		clip: clip,
		cfg:  cfg,
		subs: make(map[chan Session]struct{}),
	}
}

// IsActive reports whether a session exists in a non-terminal state.
func (p *Pipeline) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur != nil && !p.cur.State.Terminal()
}

// Session returns the current or most recent session.
func (p *Pipeline) Session() (Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur == nil {
		return Session{}, false
	}
	return *p.cur, true
}

// Subscribe delivers a snapshot on every published change. Slow readers
// miss snapshots rather than block the pipeline.
func (p *Pipeline) Subscribe() (<-chan Session, func()) {
	ch := make(chan Session, 16)
	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()
	return ch, func() {
		p.mu.Lock()
		delete(p.subs, ch)
		p.mu.Unlock()
	}
}

// publish must be called with p.mu held.
func (p *Pipeline) publish(s *Session) {
	for ch := range p.subs {
		select {
		case ch <- *s:
		default:
		}
	}
}

// advance must be called with p.mu held.
func (p *Pipeline) advance(s *Session, to State) error {
	from := s.State
	if err := transition(s, to); err != nil {
		return err
	}
	log.SessionState(s.ID, from.String(), to.String())
	return nil
}

// Start opens a new session and begins capturing. A session that is
// still in flight makes it fail with ErrSessionActive.
func (p *Pipeline) Start(ctx context.Context) (Session, error) {
	p.mu.Lock()
	if p.cur != nil && !p.cur.State.Terminal() {
		p.mu.Unlock()
		return Session{}, ErrSessionActive
	}
	prev := p.cur
	s := &Session{ID: uuid.NewString(), State: Idle, StartedAt: time.Now()}
	// Claim the slot before touching the device so a racing Start sees it.
	p.cur = s
	p.mu.Unlock()

	dctx, cancel := context.WithTimeout(ctx, p.cfg.DeviceTimeout)
	err := p.rec.Start(dctx, s.ID)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.rec.Release()
		p.cur = prev
		return Session{}, classifyStartErr(err)
	}
	if err := p.advance(s, Recording); err != nil {
		return Session{}, err
	}
	log.SessionStart(s.ID, p.cfg.Provider, p.cfg.Language())
	p.publish(s)
	return *s, nil
}

func classifyStartErr(err error) error {
	switch {
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrDeviceUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: timed out acquiring device", ErrDeviceUnavailable)
	}
	return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
}

// Stop ends capture and persists the artifact. The session stays in
// Stopping until Process picks it up.
func (p *Pipeline) Stop(ctx context.Context) (Artifact, error) {
	p.mu.Lock()
	s := p.cur
	if s == nil || s.State != Recording {
		p.mu.Unlock()
		return Artifact{}, ErrNoActiveSession
	}
	if err := p.advance(s, Stopping); err != nil {
		p.mu.Unlock()
		return Artifact{}, err
	}
	p.publish(s)
	p.mu.Unlock()

	dctx, cancel := context.WithTimeout(ctx, p.cfg.DeviceTimeout)
	art, err := p.rec.Stop(dctx)
	cancel()

	p.mu.Lock()
	if s.State != Stopping {
		// cancelled while the device was finalizing
		p.rec.Release()
		p.mu.Unlock()
		return Artifact{}, context.Canceled
	}
	if err != nil || art.Path == "" {
		if err == nil {
			err = errors.New("no audio captured")
		}
		if !errors.Is(err, ErrArtifactUnavailable) {
			err = fmt.Errorf("%w: %v", ErrArtifactUnavailable, err)
		}
		snap := p.failLocked(s, err)
		p.mu.Unlock()
		p.finish(snap)
		return Artifact{}, err
	}
	s.Artifact = art
	p.publish(s)
	p.mu.Unlock()
	return art, nil
}

// Cleanup releases the device and deletes the artifact, whatever state the
// session is in. It is safe to call repeatedly.
func (p *Pipeline) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleanupLocked()
}

func (p *Pipeline) cleanupLocked() {
	p.rec.Release()
	if p.cur != nil {
		p.cur.Artifact = Artifact{}
	}
}

// Cancel abandons a session that has not started transcription.
func (p *Pipeline) Cancel() error {
	p.mu.Lock()
	s := p.cur
	if s == nil || s.State.Terminal() {
		p.mu.Unlock()
		return ErrNoActiveSession
	}
	if s.State != Recording && s.State != Stopping {
		p.mu.Unlock()
		return ErrNotCancellable
	}
	snap := p.failLocked(s, context.Canceled)
	p.mu.Unlock()
	p.finish(snap)
	return nil
}

// failLocked runs cleanup and then moves s to Failed, so an observer that
// sees Failed never sees a live artifact.
func (p *Pipeline) failLocked(s *Session, err error) Session {
	p.cleanupLocked()
	if advErr := p.advance(s, Failed); advErr != nil {
		log.Errorf("session %s: %v", s.ID, advErr)
	}
	s.Err = err
	s.EndedAt = time.Now()
	p.publish(s)
	return *s
}

func (p *Pipeline) finish(s Session) {
	log.SessionEnd(s.ID, s.State.String(), s.Err)
	if p.cfg.OnFinish != nil {
		p.cfg.OnFinish(s)
	}
}

// Process runs transcription and correction for a stopped session and
// hands the result to the clipboard. The returned error is the session
// error; a clipboard failure is reported in Session.Notice only.
func (p *Pipeline) Process(ctx context.Context) (Session, error) {
	p.mu.Lock()
	s := p.cur
	if s == nil || s.State != Stopping || s.Artifact.Path == "" {
		p.mu.Unlock()
		return Session{}, ErrNoActiveSession
	}

	cred := ""
	if p.cfg.Credential != nil {
		cred = p.cfg.Credential()
	}
	if p.cfg.Credential != nil && cred == "" {
		snap := p.failLocked(s, transcriber.ErrMissingCredential)
		p.mu.Unlock()
		p.finish(snap)
		return snap, transcriber.ErrMissingCredential
	}

	if err := p.advance(s, Transcribing); err != nil {
		p.mu.Unlock()
		return Session{}, err
	}
	p.publish(s)
	audioPath := s.Artifact.Path
	lang := p.cfg.Language()
	p.mu.Unlock()

	tctx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	transcript, err := p.tr.Transcribe(tctx, audioPath, lang)
	cancel()
	if err != nil {
		return p.fail(s, timeoutAsServiceError(err, "transcription"))
	}

	p.mu.Lock()
	s.Transcript = transcript
	s.NoSpeech = transcript == ""
	if err := p.advance(s, Correcting); err != nil {
		p.mu.Unlock()
		return Session{}, err
	}
	p.publish(s)
	p.mu.Unlock()

	corrected := ""
	if transcript != "" {
		cctx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
		corrected, err = p.co.Correct(cctx, transcript)
		cancel()
		if err != nil {
			return p.fail(s, timeoutAsServiceError(err, "correction"))
		}
	}

	p.mu.Lock()
	s.CorrectedText = corrected
	p.cleanupLocked()
	if err := p.advance(s, Completed); err != nil {
		p.mu.Unlock()
		return Session{}, err
	}
	s.EndedAt = time.Now()
	p.mu.Unlock()

	var notice error
	copied := false
	if corrected != "" && p.clip != nil {
		if err := p.clip.Copy(corrected); err != nil {
			notice = &ClipboardWriteFailed{Err: err}
			log.Warnf("session %s: %v", s.ID, notice)
		} else {
			copied = true
		}
		log.TranscriptionText(corrected)
	}

	p.mu.Lock()
	s.Copied = copied
	s.Notice = notice
	p.publish(s)
	snap := *s
	p.mu.Unlock()

	p.finish(snap)
	return snap, nil
}

func (p *Pipeline) fail(s *Session, err error) (Session, error) {
	p.mu.Lock()
	snap := p.failLocked(s, err)
	p.mu.Unlock()
	p.finish(snap)
	return snap, err
}

// Finish is Stop followed by Process.
func (p *Pipeline) Finish(ctx context.Context) (Session, error) {
	if _, err := p.Stop(ctx); err != nil {
		snap, _ := p.Session()
		return snap, err
	}
	return p.Process(ctx)
}

func timeoutAsServiceError(err error, stage string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &transcriber.ServiceError{
			Stage:   stage,
			Status:  http.StatusRequestTimeout,
			Message: stage + " request timed out",
			Err:     err,
		}
	}
	return err
}
