// Package platform holds the host capabilities the core depends on: a clock
// and a source of thread identifiers. Both are injected so tests can run
// against a FakeClock and fixed ids.
package platform
