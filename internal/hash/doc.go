// Package hash provides the hashing used by the registry and loader.
//
// CRC32-Castagnoli is hardware accelerated on x86 (SSE4.2) and ARM (CRC
// extension). The registry uses it to spread resource identifiers over its
// bucket table; the loader uses it to verify payload checksums.
//
//	bucket := hash.String("tex:rock") % bucketCount
//	sum := hash.CRC32C(payload)
package hash
