package platform

import "sync/atomic"

// ThreadID identifies a logical thread of control. Goroutines have no stable
// identity, so callers allocate one per worker and pass it explicitly.
type ThreadID = uint64

// NoThread is never handed out by ThreadIDs.
const NoThread ThreadID = 0

// ThreadIDs hands out unique, non-zero thread ids.
type ThreadIDs struct {
	next atomic.Uint64
}

// Next returns a fresh id.
func (t *ThreadIDs) Next() ThreadID {
	return t.next.Add(1)
}
