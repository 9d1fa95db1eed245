// Package conv provides checked integer conversions.
//
// Allocation sizes arrive as int at the API boundary but are stored as
// fixed-width counters in stats and handle tables. These helpers reject
// values that would wrap instead of silently truncating them.
package conv
