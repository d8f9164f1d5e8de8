// Package primitives reads fixed-width big-endian fields from byte slices at
// arbitrary offsets. On-disk HFS Plus fields are frequently unaligned once
// packed into nodes or variable-length records, so every value is composed
// from individual bytes; nothing is ever overlaid onto native memory.
package primitives

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-hfsplus/internal/types"
)

// ReadU8 reads one byte at offset.
func ReadU8(data []byte, offset int) (uint8, error) {
	if err := check(data, offset, 1); err != nil {
		return 0, err
	}
	return data[offset], nil
}

// ReadU16 reads a big-endian 16-bit value at offset.
func ReadU16(data []byte, offset int) (uint16, error) {
	if err := check(data, offset, 2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(data[offset : offset+2]), nil
}

// ReadU32 reads a big-endian 32-bit value at offset.
func ReadU32(data []byte, offset int) (uint32, error) {
	if err := check(data, offset, 4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(data[offset : offset+4]), nil
}

// ReadU64 reads a big-endian 64-bit value at offset.
func ReadU64(data []byte, offset int) (uint64, error) {
	if err := check(data, offset, 8); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(data[offset : offset+8]), nil
}

// ReadBytes copies n bytes at offset into a new slice. The copy never aliases
// the source buffer.
func ReadBytes(data []byte, offset, n int) ([]byte, error) {
	if err := check(data, offset, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, data[offset:offset+n])
	return out, nil
}

func check(data []byte, offset, n int) error {
	if offset < 0 || n < 0 || offset+n > len(data) {
		return fmt.Errorf("%w: need %d bytes at offset %d of %d", types.ErrOutOfBounds, n, offset, len(data))
	}
	return nil
}
