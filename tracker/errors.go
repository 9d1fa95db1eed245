package tracker

import (
	"errors"
	"fmt"

	"github.com/hupe1980/kiln/platform"
)

var (
	// ErrNotInitialized is returned when the tracker is used before Init or after Shutdown.
	ErrNotInitialized = errors.New("tracker: not initialized")
	// ErrAlreadyInitialized is returned by a second Init.
	ErrAlreadyInitialized = errors.New("tracker: already initialized")
	// ErrNotFound is returned for identifiers that are not registered.
	ErrNotFound = errors.New("tracker: resource not tracked")
	// ErrInvalidTransition is returned when a state change is not permitted.
	ErrInvalidTransition = errors.New("tracker: invalid transition")
	// ErrTimeout is returned by WaitFor when the timeout elapses.
	ErrTimeout = errors.New("tracker: wait timed out")
	// ErrInvalidArgument is returned for empty identifiers and nil entries.
	ErrInvalidArgument = errors.New("tracker: invalid argument")
)

// TransitionError describes a rejected state change.
type TransitionError struct {
	ID     string
	From   State
	To     State
	Thread platform.ThreadID
	// Owner is the thread holding loading rights when the rejection was
	// caused by a foreign thread leaving Loading. Zero otherwise.
	Owner platform.ThreadID
}

func (e *TransitionError) Error() string {
	if e.Owner != platform.NoThread {
		return fmt.Sprintf("tracker: %q: thread %d cannot leave %s (owned by thread %d)", e.ID, e.Thread, e.From, e.Owner)
	}
	return fmt.Sprintf("tracker: %q: invalid transition %s -> %s", e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
