// Package window keeps the application window above others on desktop
// platforms that support it.
package window

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"anyvoice/log"
)

const DefaultTimeout = 5 * time.Second

const (
	CodeWindowNotFound = "WINDOW_NOT_FOUND"
	CodeWindowHandle   = "WINDOW_HANDLE_ERROR"
	CodeSetWindowPos   = "SET_WINDOW_POS_FAILED"
	CodeTimeout        = "TIMEOUT"
	CodeException      = "EXCEPTION"
)

// NativeBridgeError is a failure reported by, or while waiting on, a
// platform bridge.
type NativeBridgeError struct {
	Code    string
	Message string
}

func (e *NativeBridgeError) Error() string {
	return fmt.Sprintf("native bridge %s: %s", e.Code, e.Message)
}

// Bridge manipulates the real window. A nil error is the acknowledgement.
type Bridge interface {
	Name() string
	SetAlwaysOnTop(ctx context.Context, enabled bool) error
	BringToFront(ctx context.Context) error
}

// IsCapablePlatform reports whether GOOS-style platform identifiers support
// window elevation.
func IsCapablePlatform(platform string) bool {
	return platform == "windows" || platform == "darwin"
}

type Service struct {
	platform string
	bridge   Bridge
	capable  bool
	timeout  time.Duration

	desired atomic.Bool
	applied atomic.Bool
}

type Option func(*Service)

func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithApplied seeds the acknowledged state, for a window that was already
// elevated before the service was built.
func WithApplied(v bool) Option {
	return func(s *Service) { s.applied.Store(v) }
}

// New resolves platform capability once. bridge may be nil, in which case
// requests are only logged.
func New(platform string, bridge Bridge, opts ...Option) *Service {
	s := &Service{
		platform: platform,
		bridge:   bridge,
		capable:  IsCapablePlatform(platform),
		timeout:  DefaultTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) IsPlatformCapable() bool { return s.capable }

func (s *Service) Platform() string { return s.platform }

// Applied is the last value the bridge acknowledged.
func (s *Service) Applied() bool { return s.applied.Load() }

// Desired is the last value requested through SetAlwaysOnTop.
func (s *Service) Desired() bool { return s.desired.Load() }

func (s *Service) BridgeName() string {
	if s.bridge == nil {
		return "mock"
	}
	return s.bridge.Name()
}

// SetAlwaysOnTop is a no-op on platforms without elevation support. A
// bridge failure leaves Applied unchanged and is returned as a
// *NativeBridgeError; rolling back the caller's toggle is up to the caller.
func (s *Service) SetAlwaysOnTop(ctx context.Context, enabled bool) error {
	if !s.capable {
		log.Infof("always-on-top not supported on %s", s.platform)
		return nil
	}
	s.desired.Store(enabled)
	if s.bridge == nil {
		log.Infof("mock: set always on top %v", enabled)
		return nil
	}

	err := s.call(ctx, func(ctx context.Context) error {
		return s.bridge.SetAlwaysOnTop(ctx, enabled)
	})
	if err != nil {
		log.Warnf("set always on top %v: %v", enabled, err)
		return err
	}
	s.applied.Store(enabled)
	log.Elevation(s.platform, s.bridge.Name(), enabled, enabled)
	return nil
}

// BringToFront is advisory. Failures are logged and dropped.
func (s *Service) BringToFront(ctx context.Context) {
	if !s.capable {
		return
	}
	if s.bridge == nil {
		log.Info("mock: bring window to front")
		return
	}
	if err := s.call(ctx, s.bridge.BringToFront); err != nil {
		log.Warnf("bring to front: %v", err)
	}
}

func (s *Service) call(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- &NativeBridgeError{Code: CodeException, Message: fmt.Sprint(r)}
			}
		}()
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		if err == nil {
			return nil
		}
		var bErr *NativeBridgeError
		if errors.As(err, &bErr) {
			return bErr
		}
		return &NativeBridgeError{Code: CodeException, Message: err.Error()}
	case <-ctx.Done():
		return &NativeBridgeError{Code: CodeTimeout, Message: ctx.Err().Error()}
	}
}
