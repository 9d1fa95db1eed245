package kiln

import (
	"errors"

	"github.com/hupe1980/kiln/memory"
	"github.com/hupe1980/kiln/tracker"
)

var (
	// ErrNotInitialized is returned when a subsystem fails to initialize.
	ErrNotInitialized = errors.New("kiln: not initialized")

	// ErrClosed is returned by operations on a closed Core.
	ErrClosed = errors.New("kiln: closed")

	// ErrOutOfMemory is returned when an allocation cannot be satisfied.
	ErrOutOfMemory = memory.ErrOutOfMemory

	// ErrInvalidTransition is returned for a state change the state machine
	// does not allow, or one attempted by a thread without loading rights.
	ErrInvalidTransition = tracker.ErrInvalidTransition

	// ErrNotFound is returned for identifiers the tracker does not know.
	ErrNotFound = tracker.ErrNotFound

	// ErrTimeout is returned by a wait that expired.
	ErrTimeout = tracker.ErrTimeout
)
