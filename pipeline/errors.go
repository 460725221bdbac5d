package pipeline

import (
	"context"
	"errors"
	"fmt"

	"anyvoice/transcriber"
)

var (
	ErrPermissionDenied    = errors.New("microphone permission denied")
	ErrDeviceUnavailable   = errors.New("recording device unavailable")
	ErrNoActiveSession     = errors.New("no active recording session")
	ErrArtifactUnavailable = errors.New("recording could not be retrieved")
	ErrSessionActive       = errors.New("a recording session is already in progress")
	ErrNotCancellable      = errors.New("session can no longer be cancelled")
	ErrInvalidTransition   = errors.New("invalid session state transition")
)

// ClipboardWriteFailed is attached to a completed session when the result
// could not be copied. It never fails the session.
type ClipboardWriteFailed struct {
	Err error
}

func (e *ClipboardWriteFailed) Error() string {
	return fmt.Sprintf("clipboard write failed: %v", e.Err)
}

func (e *ClipboardWriteFailed) Unwrap() error { return e.Err }

// Message returns the single line shown to the user for err.
func Message(err error) string {
	var svcErr *transcriber.ServiceError
	var clipErr *ClipboardWriteFailed
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "Microphone access is required to record. Allow it in system settings."
	case errors.Is(err, ErrDeviceUnavailable):
		return "Could not start recording: no usable microphone."
	case errors.Is(err, ErrSessionActive):
		return "A recording is already in progress."
	case errors.Is(err, ErrNoActiveSession):
		return "Nothing is being recorded."
	case errors.Is(err, ErrArtifactUnavailable):
		return "The recording could not be retrieved."
	case errors.Is(err, transcriber.ErrMissingCredential):
		return "API key is not set. Add it in settings first."
	case errors.Is(err, context.Canceled):
		return "Recording cancelled."
	case errors.As(err, &svcErr):
		return svcErr.Message
	case errors.As(err, &clipErr):
		return "Correction done, but copying to the clipboard failed."
	}
	return err.Error()
}
