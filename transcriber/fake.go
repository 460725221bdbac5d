package transcriber

import (
	"context"
	"sync"
)

// Fake answers every call with fixed text and records what it was given.
type Fake struct {
	Text       string
	Corrected  string
	Err        error
	CorrectErr error

	// Block, when set, holds each call until it is closed or ctx ends.
	Block chan struct{}

	mu              sync.Mutex
	TranscribeCalls int
	CorrectCalls    int
	LastLanguage    string
	LastText        string
}

func NewFake(text string, err error) *Fake {
	return &Fake{Text: text, Err: err}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) wait(ctx context.Context) error {
	if f.Block == nil {
		return nil
	}
	select {
	case <-f.Block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Fake) Transcribe(ctx context.Context, _ string, language string) (string, error) {
	f.mu.Lock()
	f.TranscribeCalls++
	f.LastLanguage = language
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return "", err
	}
	if f.Err != nil {
		return "", f.Err
	}
	return f.Text, nil
}

func (f *Fake) Correct(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	f.CorrectCalls++
	f.LastText = text
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return "", err
	}
	if f.CorrectErr != nil {
		return "", f.CorrectErr
	}
	if f.Corrected == "" {
		return text, nil
	}
	return f.Corrected, nil
}

func (f *Fake) Calls() (transcribe, correct int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.TranscribeCalls, f.CorrectCalls
}
