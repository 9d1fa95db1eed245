// Package mem provides aligned heap allocation.
//
// The Go allocator only guarantees word alignment. GPU upload buffers and
// SIMD decoders ask for larger power-of-two alignments, which are served by
// over-allocating and slicing from the first aligned byte.
package mem
