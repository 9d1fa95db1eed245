package hash

import (
	"hash"
	"hash/crc32"
	"unsafe"
)

// crc32cTable is computed once at package init.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data.
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// NewCRC32C returns a new streaming CRC32-Castagnoli hash.Hash32.
func NewCRC32C() hash.Hash32 {
	return crc32.New(crc32cTable)
}

// String hashes s without copying it.
func String(s string) uint32 {
	if s == "" {
		return 0
	}
	b := unsafe.Slice(unsafe.StringData(s), len(s)) //nolint:gosec // read-only view
	return crc32.Checksum(b, crc32cTable)
}
