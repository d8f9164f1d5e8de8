package catalog

import (
	"fmt"

	"github.com/deploymenttheory/go-hfsplus/internal/parsers/primitives"
	"github.com/deploymenttheory/go-hfsplus/internal/parsers/volumes"
	"github.com/deploymenttheory/go-hfsplus/internal/types"
)

// DecodeBSDInfo decodes the 16-byte permissions structure. The final on-disk
// field is a union; its meaning is fixed here, at decode time, from the file
// mode and Finder info so callers never touch it untyped.
func DecodeBSDInfo(data []byte, offset int, finderInfo []byte) (types.BSDInfo, int, error) {
	var info types.BSDInfo

	if offset < 0 || offset+types.BSDInfoSize > len(data) {
		return info, offset, fmt.Errorf("%w: BSD info needs %d bytes at offset %d of %d",
			types.ErrTruncated, types.BSDInfoSize, offset, len(data))
	}

	info.OwnerID, _ = primitives.ReadU32(data, offset)
	info.GroupID, _ = primitives.ReadU32(data, offset+4)
	info.AdminFlags, _ = primitives.ReadU8(data, offset+8)
	info.OwnerFlags, _ = primitives.ReadU8(data, offset+9)
	info.FileMode, _ = primitives.ReadU16(data, offset+10)

	special, _ := primitives.ReadU32(data, offset+12)
	info.Special = interpretSpecial(info.FileMode, special, finderInfo)

	return info, offset + types.BSDInfoSize, nil
}

// interpretSpecial tags the union field. Block and character devices carry a
// device ID; files stamped with the 'hlnk' Finder type are hard links
// pointing at an indirect node; indirect nodes themselves carry their link
// count.
func interpretSpecial(fileMode uint16, value uint32, finderInfo []byte) types.SpecialInfo {
	switch fileMode & types.ModeTypeMask {
	case types.ModeBlockDev, types.ModeCharDev:
		return types.SpecialInfo{Kind: types.SpecialRawDevice, Value: value}
	}
	if len(finderInfo) >= 4 && string(finderInfo[0:4]) == "hlnk" {
		return types.SpecialInfo{Kind: types.SpecialINodeNum, Value: value}
	}
	if value != 0 {
		return types.SpecialInfo{Kind: types.SpecialLinkCount, Value: value}
	}
	return types.SpecialInfo{Kind: types.SpecialUnused}
}

// RecordType reads the 16-bit discriminant that starts every catalog record.
func RecordType(data []byte, offset int) (int16, error) {
	v, err := primitives.ReadU16(data, offset)
	if err != nil {
		return 0, err
	}
	return int16(v), nil
}

// DecodeCatalogRecord decodes whichever of the four record variants starts at
// offset, returning it behind the CatalogRecord interface.
func DecodeCatalogRecord(data []byte, offset int) (types.CatalogRecord, int, error) {
	recordType, err := RecordType(data, offset)
	if err != nil {
		return nil, offset, err
	}

	switch recordType {
	case types.FolderRecordType:
		return decodeFolderRecord(data, offset)
	case types.FileRecordType:
		return decodeFileRecord(data, offset)
	case types.FolderThreadRecordType, types.FileThreadRecordType:
		return decodeThreadRecord(data, offset, recordType)
	default:
		return nil, offset, fmt.Errorf("%w: catalog record discriminant 0x%04X at offset %d",
			types.ErrInvalidRecordType, uint16(recordType), offset)
	}
}

func decodeFolderRecord(data []byte, offset int) (*types.CatalogFolder, int, error) {
	if offset+types.FolderRecordSize > len(data) {
		return nil, offset, fmt.Errorf("%w: folder record needs %d bytes at offset %d of %d",
			types.ErrTruncated, types.FolderRecordSize, offset, len(data))
	}

	f := &types.CatalogFolder{}
	pos := offset + 2 // past the discriminant

	f.Flags, _ = primitives.ReadU16(data, pos)
	pos += 2
	f.Valence, _ = primitives.ReadU32(data, pos)
	pos += 4

	folderID, _ := primitives.ReadU32(data, pos)
	f.FolderID = types.CatalogNodeID(folderID)
	pos += 4

	pos = decodeDates(data, pos, &f.CreateDate, &f.ContentModDate, &f.AttributeModDate, &f.AccessDate, &f.BackupDate)

	userInfo, _ := primitives.ReadBytes(data, pos+types.BSDInfoSize, 16)
	perms, permsEnd, err := DecodeBSDInfo(data, pos, userInfo)
	if err != nil {
		return nil, offset, err
	}
	f.Permissions = perms
	pos = permsEnd

	copy(f.UserInfo[:], data[pos:pos+16])
	pos += 16
	copy(f.FinderInfo[:], data[pos:pos+16])
	pos += 16

	f.TextEncoding, _ = primitives.ReadU32(data, pos)
	pos += 4
	pos += 4 // reserved

	return f, pos, nil
}

func decodeFileRecord(data []byte, offset int) (*types.CatalogFile, int, error) {
	if offset+types.FileRecordSize > len(data) {
		return nil, offset, fmt.Errorf("%w: file record needs %d bytes at offset %d of %d",
			types.ErrTruncated, types.FileRecordSize, offset, len(data))
	}

	f := &types.CatalogFile{}
	pos := offset + 2

	f.Flags, _ = primitives.ReadU16(data, pos)
	pos += 2
	pos += 4 // reserved1

	fileID, _ := primitives.ReadU32(data, pos)
	f.FileID = types.CatalogNodeID(fileID)
	pos += 4

	pos = decodeDates(data, pos, &f.CreateDate, &f.ContentModDate, &f.AttributeModDate, &f.AccessDate, &f.BackupDate)

	userInfo, _ := primitives.ReadBytes(data, pos+types.BSDInfoSize, 16)
	perms, permsEnd, err := DecodeBSDInfo(data, pos, userInfo)
	if err != nil {
		return nil, offset, err
	}
	f.Permissions = perms
	pos = permsEnd

	copy(f.UserInfo[:], data[pos:pos+16])
	pos += 16
	copy(f.FinderInfo[:], data[pos:pos+16])
	pos += 16

	f.TextEncoding, _ = primitives.ReadU32(data, pos)
	pos += 4
	pos += 4 // reserved2

	dataFork, next, err := volumes.DecodeForkData(data, pos)
	if err != nil {
		return nil, offset, fmt.Errorf("data fork: %w", err)
	}
	f.DataFork = dataFork
	pos = next

	rsrcFork, next, err := volumes.DecodeForkData(data, pos)
	if err != nil {
		return nil, offset, fmt.Errorf("resource fork: %w", err)
	}
	f.ResourceFork = rsrcFork
	pos = next

	return f, pos, nil
}

func decodeThreadRecord(data []byte, offset int, recordType int16) (*types.CatalogThread, int, error) {
	// recordType(2) + reserved(2) + parentID(4) + name length field(2)
	if offset+10 > len(data) {
		return nil, offset, fmt.Errorf("%w: thread record needs at least 10 bytes at offset %d of %d",
			types.ErrTruncated, offset, len(data))
	}

	t := &types.CatalogThread{RecordType: recordType}
	pos := offset + 2
	pos += 2 // reserved

	parentID, _ := primitives.ReadU32(data, pos)
	t.ParentID = types.CatalogNodeID(parentID)
	pos += 4

	name, next, err := DecodeNodeName(data, pos)
	if err != nil {
		return nil, offset, err
	}
	t.Name = name

	return t, next, nil
}

func decodeDates(data []byte, pos int, dates ...*uint32) int {
	for _, d := range dates {
		*d, _ = primitives.ReadU32(data, pos)
		pos += 4
	}
	return pos
}
