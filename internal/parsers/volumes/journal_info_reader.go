package volumes

import (
	"fmt"

	"github.com/deploymenttheory/go-hfsplus/internal/parsers/primitives"
	"github.com/deploymenttheory/go-hfsplus/internal/types"
)

// DecodeJournalInfoBlock decodes the 180-byte journal info block found at
// allocation block VolumeHeader.JournalInfoBlock on journaled volumes. The
// journal region it points at is located but never interpreted; replay is out
// of scope.
func DecodeJournalInfoBlock(data []byte, offset int) (*types.JournalInfoBlock, int, error) {
	if offset < 0 || offset+types.JournalInfoBlockSize > len(data) {
		return nil, offset, fmt.Errorf("%w: journal info block needs %d bytes at offset %d of %d",
			types.ErrTruncated, types.JournalInfoBlockSize, offset, len(data))
	}

	jib := &types.JournalInfoBlock{}
	pos := offset

	jib.Flags, _ = primitives.ReadU32(data, pos)
	pos += 4

	for i := range jib.DeviceSignature {
		jib.DeviceSignature[i], _ = primitives.ReadU32(data, pos)
		pos += 4
	}

	jib.Offset, _ = primitives.ReadU64(data, pos)
	pos += 8
	jib.Size, _ = primitives.ReadU64(data, pos)
	pos += 8

	// 32 reserved uint32s close out the block.
	pos += 128

	return jib, pos, nil
}
