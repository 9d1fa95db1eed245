// Package tracker tracks the loading state of resources and lets threads
// block until a resource reaches a given state.
//
// Each resource has its own mutex and a broadcast channel that is closed and
// replaced on every state change. Waiters re-check the state after every
// wake-up, so a change to some other state simply sends them back to sleep.
//
// TryAcquireLoading is the only way to hand out loading rights: exactly one
// thread at a time may hold them, and only that thread may move the resource
// out of Loading.
package tracker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hupe1980/kiln/platform"
	"github.com/hupe1980/kiln/registry"
)

// DefaultBucketCount sizes the resource table when Init is called with 0.
const DefaultBucketCount = 1031

// Info is a snapshot of one tracked resource.
type Info struct {
	ID            string
	State         State
	LoadingThread platform.ThreadID
	Changed       time.Time
}

// Stats counts tracked resources per state.
type Stats struct {
	Total     int
	Unloaded  int
	Loading   int
	Loaded    int
	Error     int
	Unloading int
}

type resource struct {
	id string

	mu      sync.Mutex
	state   State
	thread  platform.ThreadID
	changed time.Time
	notify  chan struct{}
	removed bool
}

// broadcastLocked wakes every waiter. Must hold r.mu.
func (r *resource) broadcastLocked() {
	close(r.notify)
	r.notify = make(chan struct{})
}

// Tracker holds the state machines of all registered resources.
type Tracker struct {
	mu          sync.RWMutex
	resources   map[string]*resource
	initialized bool

	clock  platform.Clock
	logger *zap.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the clock used for transition timestamps.
func WithClock(c platform.Clock) Option {
	return func(t *Tracker) {
		if c != nil {
			t.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// New creates an uninitialized tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		clock:  platform.SystemClock{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Init prepares the resource table. bucketCount is a sizing hint; 0 selects
// DefaultBucketCount.
func (t *Tracker) Init(bucketCount int) error {
	if bucketCount < 0 {
		return ErrInvalidArgument
	}
	if bucketCount == 0 {
		bucketCount = DefaultBucketCount
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.initialized {
		return ErrAlreadyInitialized
	}
	t.resources = make(map[string]*resource, bucketCount)
	t.initialized = true
	return nil
}

// Shutdown drops every tracked resource and wakes all waiters, which return
// ErrNotFound.
func (t *Tracker) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized {
		return
	}

	loading := 0
	for _, r := range t.resources {
		r.mu.Lock()
		if r.state == Loading {
			loading++
		}
		r.removed = true
		r.broadcastLocked()
		r.mu.Unlock()
	}
	if loading > 0 {
		t.logger.Warn("tracker shut down with loads in flight", zap.Int("loading", loading))
	}

	t.resources = nil
	t.initialized = false
}

// Register starts tracking e in state Unloaded. Registering an identifier
// twice is a no-op.
func (t *Tracker) Register(e *registry.Entry) error {
	if e == nil {
		return ErrInvalidArgument
	}
	return t.RegisterID(e.ID())
}

// RegisterID is Register keyed by identifier.
func (t *Tracker) RegisterID(id string) error {
	if id == "" {
		return ErrInvalidArgument
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.initialized {
		return ErrNotInitialized
	}
	if _, ok := t.resources[id]; ok {
		return nil
	}
	t.resources[id] = &resource{
		id:      id,
		state:   Unloaded,
		changed: t.clock.Now(),
		notify:  make(chan struct{}),
	}
	return nil
}

// Unregister stops tracking id. Threads waiting on it return ErrNotFound.
func (t *Tracker) Unregister(id string) bool {
	t.mu.Lock()
	r, ok := t.resources[id]
	if ok {
		delete(t.resources, id)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	r.mu.Lock()
	r.removed = true
	r.broadcastLocked()
	r.mu.Unlock()
	return true
}

func (t *Tracker) lookup(id string) *resource {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.resources[id]
}

// Get returns the current state of id.
func (t *Tracker) Get(id string) (State, bool) {
	r := t.lookup(id)
	if r == nil {
		return Unloaded, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, true
}

// Info returns a snapshot of id.
func (t *Tracker) Info(id string) (Info, bool) {
	r := t.lookup(id)
	if r == nil {
		return Info{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return Info{ID: r.id, State: r.state, LoadingThread: r.thread, Changed: r.changed}, true
}

// Set moves id to state on behalf of thread. Leaving Loading is reserved for
// the thread that holds loading rights.
func (t *Tracker) Set(id string, state State, thread platform.ThreadID) error {
	r := t.lookup(id)
	if r == nil {
		return ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.removed {
		return ErrNotFound
	}

	from := r.state
	if !CanTransition(from, state) {
		err := &TransitionError{ID: id, From: from, To: state, Thread: thread}
		t.logRejected(err)
		return err
	}
	if from == Loading && r.thread != thread {
		err := &TransitionError{ID: id, From: from, To: state, Thread: thread, Owner: r.thread}
		t.logRejected(err)
		return err
	}

	r.state = state
	r.changed = t.clock.Now()
	if state == Loading {
		r.thread = thread
	} else {
		r.thread = platform.NoThread
	}
	r.broadcastLocked()
	return nil
}

func (t *Tracker) logRejected(err *TransitionError) {
	t.logger.Debug("state transition rejected",
		zap.String("id", err.ID),
		zap.Stringer("from", err.From),
		zap.Stringer("to", err.To),
		zap.Uint64("thread", err.Thread),
		zap.Uint64("owner", err.Owner),
	)
}

// TryAcquireLoading moves id from Unloaded or Error to Loading and records
// thread as the owner of loading rights. It fails if another thread is
// already loading, the resource is in any other state, or id is unknown.
func (t *Tracker) TryAcquireLoading(id string, thread platform.ThreadID) bool {
	r := t.lookup(id)
	if r == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.removed || (r.state != Unloaded && r.state != Error) {
		return false
	}
	r.state = Loading
	r.thread = thread
	r.changed = t.clock.Now()
	r.broadcastLocked()
	return true
}

// WaitFor blocks until id reaches state. A timeout of 0 waits until ctx is
// done. A timed-out wait never changes the resource.
func (t *Tracker) WaitFor(ctx context.Context, id string, state State, timeout time.Duration) error {
	_, err := t.WaitForAny(ctx, id, timeout, state)
	return err
}

// WaitForAny blocks until id reaches one of states and returns the state it
// observed.
func (t *Tracker) WaitForAny(ctx context.Context, id string, timeout time.Duration, states ...State) (State, error) {
	r := t.lookup(id)
	if r == nil {
		return Unloaded, ErrNotFound
	}
	if len(states) == 0 {
		return Unloaded, ErrInvalidArgument
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		r.mu.Lock()
		if r.removed {
			r.mu.Unlock()
			return Unloaded, ErrNotFound
		}
		current := r.state
		changed := r.notify
		r.mu.Unlock()

		for _, s := range states {
			if current == s {
				return current, nil
			}
		}

		select {
		case <-changed:
		case <-expired:
			return current, ErrTimeout
		case <-ctx.Done():
			return current, ctx.Err()
		}
	}
}

// IsSafeToAccess reports whether id is Loaded.
func (t *Tracker) IsSafeToAccess(id string) bool {
	s, ok := t.Get(id)
	return ok && s == Loaded
}

// Len returns the number of tracked resources.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.resources)
}

// Stats returns per-state counts. The table read lock is held for the whole
// enumeration and each resource is read under its own lock.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var s Stats
	for _, r := range t.resources {
		r.mu.Lock()
		state := r.state
		r.mu.Unlock()

		s.Total++
		switch state {
		case Unloaded:
			s.Unloaded++
		case Loading:
			s.Loading++
		case Loaded:
			s.Loaded++
		case Error:
			s.Error++
		case Unloading:
			s.Unloading++
		}
	}
	return s
}
