// Package volumes decodes the volume-level structures of an HFS Plus image:
// the volume header, fork data, extent descriptors, and the journal info
// block. Decoders take a byte slice plus a starting offset and return the
// decoded value together with the offset immediately following the structure,
// so adjacent fields can be decoded sequentially.
package volumes

import (
	"fmt"

	"github.com/deploymenttheory/go-hfsplus/internal/parsers/primitives"
	"github.com/deploymenttheory/go-hfsplus/internal/types"
)

// DecodeExtentDescriptor decodes one 8-byte extent descriptor.
func DecodeExtentDescriptor(data []byte, offset int) (types.ExtentDescriptor, int, error) {
	var ed types.ExtentDescriptor

	if offset < 0 || offset+types.ExtentDescriptorSize > len(data) {
		return ed, offset, fmt.Errorf("%w: extent descriptor needs %d bytes at offset %d of %d",
			types.ErrTruncated, types.ExtentDescriptorSize, offset, len(data))
	}

	start, _ := primitives.ReadU32(data, offset)
	count, _ := primitives.ReadU32(data, offset+4)
	ed.StartBlock = start
	ed.BlockCount = count

	return ed, offset + types.ExtentDescriptorSize, nil
}

// DecodeExtentRecord decodes the eight extent descriptors of an extent record.
func DecodeExtentRecord(data []byte, offset int) (types.ExtentRecord, int, error) {
	var rec types.ExtentRecord

	for i := range rec {
		ed, next, err := DecodeExtentDescriptor(data, offset)
		if err != nil {
			return rec, offset, fmt.Errorf("extent %d: %w", i, err)
		}
		rec[i] = ed
		offset = next
	}

	return rec, offset, nil
}

// DecodeForkData decodes an 80-byte fork data structure.
func DecodeForkData(data []byte, offset int) (types.ForkData, int, error) {
	var fd types.ForkData

	if offset < 0 || offset+types.ForkDataSize > len(data) {
		return fd, offset, fmt.Errorf("%w: fork data needs %d bytes at offset %d of %d",
			types.ErrTruncated, types.ForkDataSize, offset, len(data))
	}

	fd.LogicalSize, _ = primitives.ReadU64(data, offset)
	fd.ClumpSize, _ = primitives.ReadU32(data, offset+8)
	fd.TotalBlocks, _ = primitives.ReadU32(data, offset+12)

	rec, next, err := DecodeExtentRecord(data, offset+16)
	if err != nil {
		return fd, offset, err
	}
	fd.Extents = rec

	return fd, next, nil
}

// DecodeVolumeHeader decodes the 512-byte volume header and validates its
// signature and block size. The caller reads the header bytes from image
// offset types.VolumeHeaderOffset (or from the alternate copy 1024 bytes
// before the end of the volume when the primary is damaged).
func DecodeVolumeHeader(data []byte, offset int) (*types.VolumeHeader, int, error) {
	if offset < 0 || offset+types.VolumeHeaderSize > len(data) {
		return nil, offset, fmt.Errorf("%w: volume header needs %d bytes at offset %d of %d",
			types.ErrTruncated, types.VolumeHeaderSize, offset, len(data))
	}

	vh := &types.VolumeHeader{}
	pos := offset

	vh.Signature, _ = primitives.ReadU16(data, pos)
	if vh.Signature != types.SignatureHFSPlus && vh.Signature != types.SignatureHFSX {
		return nil, offset, fmt.Errorf("invalid volume signature 0x%04X: want 'H+' or 'HX'", vh.Signature)
	}
	pos += 2

	vh.Version, _ = primitives.ReadU16(data, pos)
	pos += 2
	vh.Attributes, _ = primitives.ReadU32(data, pos)
	pos += 4
	vh.LastMountedVersion, _ = primitives.ReadU32(data, pos)
	pos += 4
	vh.JournalInfoBlock, _ = primitives.ReadU32(data, pos)
	pos += 4

	vh.CreateDate, _ = primitives.ReadU32(data, pos)
	pos += 4
	vh.ModifyDate, _ = primitives.ReadU32(data, pos)
	pos += 4
	vh.BackupDate, _ = primitives.ReadU32(data, pos)
	pos += 4
	vh.CheckedDate, _ = primitives.ReadU32(data, pos)
	pos += 4

	vh.FileCount, _ = primitives.ReadU32(data, pos)
	pos += 4
	vh.FolderCount, _ = primitives.ReadU32(data, pos)
	pos += 4

	vh.BlockSize, _ = primitives.ReadU32(data, pos)
	if vh.BlockSize < 512 || vh.BlockSize&(vh.BlockSize-1) != 0 {
		return nil, offset, fmt.Errorf("invalid allocation block size %d: must be a power of two >= 512", vh.BlockSize)
	}
	pos += 4

	vh.TotalBlocks, _ = primitives.ReadU32(data, pos)
	pos += 4
	vh.FreeBlocks, _ = primitives.ReadU32(data, pos)
	pos += 4

	vh.NextAllocation, _ = primitives.ReadU32(data, pos)
	pos += 4
	vh.RsrcClumpSize, _ = primitives.ReadU32(data, pos)
	pos += 4
	vh.DataClumpSize, _ = primitives.ReadU32(data, pos)
	pos += 4

	nextID, _ := primitives.ReadU32(data, pos)
	vh.NextCatalogID = types.CatalogNodeID(nextID)
	pos += 4

	vh.WriteCount, _ = primitives.ReadU32(data, pos)
	pos += 4
	vh.EncodingsBitmap, _ = primitives.ReadU64(data, pos)
	pos += 8

	for i := range vh.FinderInfo {
		vh.FinderInfo[i], _ = primitives.ReadU32(data, pos)
		pos += 4
	}

	forks := []*types.ForkData{
		&vh.AllocationFile,
		&vh.ExtentsFile,
		&vh.CatalogFile,
		&vh.AttributesFile,
		&vh.StartupFile,
	}
	for _, fork := range forks {
		fd, next, err := DecodeForkData(data, pos)
		if err != nil {
			return nil, offset, err
		}
		*fork = fd
		pos = next
	}

	if err := validateForkSizes(vh); err != nil {
		return nil, offset, err
	}

	return vh, pos, nil
}

// validateForkSizes checks that no special-file fork claims more blocks than
// the volume holds.
func validateForkSizes(vh *types.VolumeHeader) error {
	forks := map[string]*types.ForkData{
		"allocation": &vh.AllocationFile,
		"extents":    &vh.ExtentsFile,
		"catalog":    &vh.CatalogFile,
		"attributes": &vh.AttributesFile,
		"startup":    &vh.StartupFile,
	}
	for name, fork := range forks {
		if fork.TotalBlocks > vh.TotalBlocks {
			return fmt.Errorf("%s file claims %d blocks but volume has only %d",
				name, fork.TotalBlocks, vh.TotalBlocks)
		}
	}
	return nil
}
