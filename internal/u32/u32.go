// Package u32 holds little helpers for uint32 that don't fit anywhere else.
package u32

import "encoding/binary"

// LeBytes encodes v as 4 little-endian bytes in a newly allocated slice.
func LeBytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}
