// Package registry implements a reference-counted registry of named
// resources.
//
// Entries live in a fixed array of hash buckets, each a singly linked chain.
// Create is create-or-acquire: a second Create for an existing identifier
// returns the original entry with its count incremented, and the new payload
// is not stored.
//
// # Concurrency
//
// One structural mutex guards the bucket table. Reference counts are atomic:
// Acquire finds and increments under the mutex, while Release decrements
// lock-free as long as the count stays above one. The final decrement is
// taken under the mutex together with unlinking the entry, so Acquire can
// never return an entry whose destructor has run or is about to run.
//
// The destructor is invoked exactly once, after the mutex has been released.
// Destructors may therefore call back into the registry.
package registry
