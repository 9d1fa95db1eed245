package cache

import (
	"github.com/hupe1980/kiln/internal/budget"
	"github.com/hupe1980/kiln/internal/hash"
)

const numShards = 16

// Sharded distributes entries across numShards LRU caches.
type Sharded struct {
	shards [numShards]*LRU
}

// NewSharded creates a sharded cache. The capacity is divided evenly across
// the shards, so a single value may not exceed capacity/numShards.
func NewSharded(capacity int64, b *budget.Budget) *Sharded {
	shardCapacity := max(capacity/numShards, 1)

	s := &Sharded{}
	for i := range numShards {
		s.shards[i] = NewLRU(shardCapacity, b)
	}
	return s
}

func (s *Sharded) shard(key string) *LRU {
	return s.shards[hash.String(key)%numShards]
}

// Get returns the cached bytes for key.
func (s *Sharded) Get(key string) ([]byte, bool) {
	return s.shard(key).Get(key)
}

// Set caches b under key.
func (s *Sharded) Set(key string, b []byte) {
	s.shard(key).Set(key, b)
}

// Delete removes key.
func (s *Sharded) Delete(key string) {
	s.shard(key).Delete(key)
}

// Purge removes every entry.
func (s *Sharded) Purge() {
	for _, sh := range s.shards {
		sh.Purge()
	}
}

// Size returns the cached bytes across all shards.
func (s *Sharded) Size() int64 {
	var total int64
	for _, sh := range s.shards {
		total += sh.Size()
	}
	return total
}

// Len returns the number of entries across all shards.
func (s *Sharded) Len() int {
	var total int
	for _, sh := range s.shards {
		total += sh.Len()
	}
	return total
}

// Stats returns the hit and miss counters across all shards.
func (s *Sharded) Stats() (hits, misses int64) {
	for _, sh := range s.shards {
		h, m := sh.Stats()
		hits += h
		misses += m
	}
	return hits, misses
}
