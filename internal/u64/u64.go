// Package u64 holds little helpers for uint64 that don't fit anywhere else.
package u64

import "encoding/binary"

// LeBytes encodes v as 8 little-endian bytes in a newly allocated slice.
func LeBytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}
