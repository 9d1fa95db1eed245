package registry

import "sync/atomic"

// Destructor releases a payload once its last reference is gone.
type Destructor interface {
	Destroy(payload any)
}

// DestructorFunc adapts a function to Destructor.
type DestructorFunc func(payload any)

// Destroy implements Destructor.
func (f DestructorFunc) Destroy(payload any) { f(payload) }

// Entry is a registered resource. The payload must not be touched after the
// caller's final Release.
type Entry struct {
	id      string
	payload any
	size    int
	dtor    Destructor

	refs      atomic.Uint32
	destroyed atomic.Bool

	next   *Entry // bucket chain, guarded by Registry.mu
	record []byte // bookkeeping memory charged to the registry allocator
}

// ID returns the resource identifier.
func (e *Entry) ID() string { return e.id }

// Payload returns the stored payload.
func (e *Entry) Payload() any { return e.payload }

// Size returns the payload size reported at creation.
func (e *Entry) Size() int { return e.size }

// Count returns the current reference count.
func (e *Entry) Count() uint32 { return e.refs.Load() }

// destroy runs the destructor and reports whether this call was the one
// that did.
func (e *Entry) destroy() bool {
	if !e.destroyed.CompareAndSwap(false, true) {
		return false
	}
	if e.dtor != nil {
		e.dtor.Destroy(e.payload)
	}
	e.payload = nil
	return true
}
