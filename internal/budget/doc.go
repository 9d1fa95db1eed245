// Package budget governs shared engine resources: memory, loader worker slots
// and asset IO bandwidth.
//
//	┌──────────────────────────────────────────────────────────┐
//	│                         Budget                           │
//	├──────────────────┬──────────────────┬────────────────────┤
//	│  Memory          │  Workers         │  IO                │
//	│  (fail-fast)     │  (weighted sem)  │  (token bucket)    │
//	├──────────────────┼──────────────────┼────────────────────┤
//	│  Reserve         │  AcquireWorker   │  WaitIO            │
//	│  Return          │  TryAcquire...   │                    │
//	│  InUse           │  ReleaseWorker   │                    │
//	└──────────────────┴──────────────────┴────────────────────┘
//
// Memory reservation never blocks: the dynamic allocator treats a refused
// reservation as an out-of-memory result and returns it to its caller.
// Worker slots and IO tokens block until available or ctx is done.
//
// All methods are safe for concurrent use, and all methods on a nil *Budget
// are no-ops that always grant the request, so callers can make governance
// optional without nil checks.
package budget
