package pipeline

import "fmt"

// State is the lifecycle position of a recording session. States only
// ever move forward; Completed and Failed are terminal.
type State int

const (
	Idle State = iota
	Recording
	Stopping
	Transcribing
	Correcting
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Stopping:
		return "stopping"
	case Transcribing:
		return "transcribing"
	case Correcting:
		return "correcting"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	switch from {
	case Idle:
		return to == Recording
	case Recording:
		return to == Stopping || to == Failed
	case Stopping:
		return to == Transcribing || to == Failed
	case Transcribing:
		return to == Correcting || to == Failed
	case Correcting:
		return to == Completed || to == Failed
	}
	return false
}

func transition(s *Session, to State) error {
	if !CanTransition(s.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.State, to)
	}
	s.State = to
	return nil
}
