// Package memory implements the engine's categorized allocation layer.
//
// Three allocators share one interface:
//
//   - Dynamic: heap-backed. Every outstanding allocation is recorded in a
//     Table keyed by address so Reallocate and Release can recover the
//     original size and alignment without the caller supplying them.
//   - Linear: a bump allocator over one fixed buffer. Release is a no-op and
//     Reset invalidates every allocation at once. Exhaustion is reported as
//     ErrOutOfMemory, never a fault.
//   - Tracked: wraps another allocator and attributes every allocate, free
//     and reallocate delta to a single Category in the shared stats.
//
// # Subsystem
//
// System is the explicit context object that owns the default allocators and
// the global per-category statistics:
//
//	sys := memory.NewSystem(memory.WithTrackingCapacity(1 << 16))
//	if err := sys.Init(0); err != nil { // 0 => 4 MiB linear buffer
//	    return err
//	}
//	defer sys.Shutdown()
//
//	assets := sys.AllocatorFor(memory.CategoryAssets)
//	buf, err := assets.Allocate(64<<10, 16)
//	...
//	assets.Release(buf)
//
//	snap := sys.Stats()
//	fmt.Println(snap.Category(memory.CategoryAssets).PeakUsage)
//
// # Accounting
//
// Counters are monotonic except CurrentUsage, which is clamped at zero when
// a free reports more bytes than are resident. A Table that reaches its
// capacity stops recording new allocations; those allocations still succeed
// but their frees fall back to the length of the released slice.
//
// # Thread Safety
//
// Dynamic, Tracked, Table and StatsCollector are safe for concurrent use.
// Linear allocations are lock-free; Reset must not race with allocations
// whose results are still in use.
package memory
