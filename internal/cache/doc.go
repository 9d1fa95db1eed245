// Package cache provides byte-bounded LRU caches for asset bytes.
//
// LRU is a single-mutex cache. Sharded spreads keys over 16 LRU shards by
// CRC32C of the key to reduce lock contention between loader workers. Both
// can charge their contents to a budget.Budget so cached bytes count against
// a global memory limit; when the budget refuses, the value is not cached.
package cache
