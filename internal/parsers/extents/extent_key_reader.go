// Package extents decodes keys and records of the extents overflow file,
// which holds the extents of any fork beyond its eight inline descriptors.
package extents

import (
	"fmt"

	"github.com/deploymenttheory/go-hfsplus/internal/parsers/primitives"
	"github.com/deploymenttheory/go-hfsplus/internal/parsers/volumes"
	"github.com/deploymenttheory/go-hfsplus/internal/types"
)

// DecodeExtentKey decodes the fixed 12-byte extents overflow key: a 16-bit
// key length that must equal 10, the fork type, a pad byte, the owning file
// ID, and the starting logical allocation block of the record's extents.
func DecodeExtentKey(data []byte, offset int) (types.ExtentKey, int, error) {
	var key types.ExtentKey

	keyLength, err := primitives.ReadU16(data, offset)
	if err != nil {
		return key, offset, err
	}
	if keyLength != types.ExtentKeyLength {
		return key, offset, fmt.Errorf("%w: extent key length %d, want %d",
			types.ErrInvalidRecordType, keyLength, types.ExtentKeyLength)
	}
	if offset+2+types.ExtentKeyLength > len(data) {
		return key, offset, fmt.Errorf("%w: extent key needs %d bytes at offset %d of %d",
			types.ErrTruncated, 2+types.ExtentKeyLength, offset, len(data))
	}

	key.ForkType, _ = primitives.ReadU8(data, offset+2)
	if key.ForkType != types.DataForkType && key.ForkType != types.ResourceForkType {
		return key, offset, fmt.Errorf("%w: extent key fork type 0x%02X", types.ErrInvalidRecordType, key.ForkType)
	}

	fileID, _ := primitives.ReadU32(data, offset+4)
	key.FileID = types.CatalogNodeID(fileID)
	key.StartBlock, _ = primitives.ReadU32(data, offset+8)

	return key, offset + 2 + types.ExtentKeyLength, nil
}

// DecodeExtentDataRecord decodes the eight-descriptor extent record that
// follows an extent key in a leaf.
func DecodeExtentDataRecord(data []byte, offset int) (types.ExtentRecord, int, error) {
	rec, next, err := volumes.DecodeExtentRecord(data, offset)
	if err != nil {
		return rec, offset, fmt.Errorf("extents overflow record: %w", err)
	}
	return rec, next, nil
}
