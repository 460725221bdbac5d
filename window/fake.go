package window

import (
	"context"
	"sync"
	"time"
)

// FakeBridge records calls and fails with Err when set.
type FakeBridge struct {
	Err   error
	Delay time.Duration

	mu        sync.Mutex
	calls     int
	fronts    int
	lastOnTop bool
}

func (f *FakeBridge) Name() string { return "fake" }

func (f *FakeBridge) SetAlwaysOnTop(ctx context.Context, enabled bool) error {
	if err := f.sleep(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return f.Err
	}
	f.lastOnTop = enabled
	return nil
}

func (f *FakeBridge) BringToFront(ctx context.Context) error {
	if err := f.sleep(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fronts++
	return f.Err
}

func (f *FakeBridge) sleep(ctx context.Context) error {
	if f.Delay == 0 {
		return nil
	}
	select {
	case <-time.After(f.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *FakeBridge) Calls() (setCalls, frontCalls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.fronts
}

func (f *FakeBridge) OnTop() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastOnTop
}
