// Package mmap provides memory mappings for the allocator and asset sources.
//
// Two kinds of mapping are supported:
//
//   - MapAnon creates a read-write anonymous mapping outside the Go heap.
//     Linear allocators use it for their fixed backing buffer so that large
//     frame or scratch arenas do not add GC scan pressure.
//   - Open maps a file read-only. The local asset source uses it to read
//     texture and mesh files without an intermediate kernel copy.
//
// # Usage
//
//	m, err := mmap.MapAnon(4 << 20)
//	if err != nil { ... }
//	defer m.Close()
//	buf := m.Bytes()
//
// # Thread Safety
//
// A Mapping is safe for concurrent reads. Close is idempotent, but callers
// must guarantee that no goroutine touches Bytes() after Close returns.
package mmap
