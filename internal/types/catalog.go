package types

import "time"

// Catalog file structures. Reference: TN1150 > Catalog File.

// CatalogNodeID identifies a file or folder on the volume.
type CatalogNodeID uint32

// Well-known catalog node IDs. Reference: TN1150 > Catalog File.
const (
	RootParentID           CatalogNodeID = 1
	RootFolderID           CatalogNodeID = 2
	ExtentsFileID          CatalogNodeID = 3
	CatalogFileID          CatalogNodeID = 4
	BadBlockFileID         CatalogNodeID = 5
	AllocationFileID       CatalogNodeID = 6
	StartupFileID          CatalogNodeID = 7
	AttributesFileID       CatalogNodeID = 8
	RepairCatalogFileID    CatalogNodeID = 14
	BogusExtentFileID      CatalogNodeID = 15
	FirstUserCatalogNodeID CatalogNodeID = 16
)

// Catalog record type discriminants, stored as the first 16 bits of every
// catalog leaf record.
const (
	FolderRecordType       int16 = 0x0001
	FileRecordType         int16 = 0x0002
	FolderThreadRecordType int16 = 0x0003
	FileThreadRecordType   int16 = 0x0004
)

// Catalog key length limits, excluding the 16-bit length field itself.
const (
	CatalogKeyMinimumLength = 6
	CatalogKeyMaximumLength = 516

	// NameMaxChars is the maximum length of a catalog node name in UTF-16
	// code units.
	NameMaxChars = 255
)

// Fixed catalog record sizes.
const (
	BSDInfoSize      = 16
	FolderRecordSize = 88
	FileRecordSize   = 88 + 2*ForkDataSize
)

// hfsEpochDelta is the offset in seconds between the HFS epoch
// (1904-01-01 00:00:00 GMT) and the Unix epoch.
const hfsEpochDelta = 2082844800

// HFSTime converts an on-disk HFS date to a time.Time. A zero date, meaning
// "never", maps to the zero time.
func HFSTime(d uint32) time.Time {
	if d == 0 {
		return time.Time{}
	}
	return time.Unix(int64(d)-hfsEpochDelta, 0).UTC()
}

// File mode bits for BSDInfo.FileMode, matching the POSIX layout.
const (
	ModeSUID   uint16 = 0o004000
	ModeSGID   uint16 = 0o002000
	ModeSticky uint16 = 0o001000

	ModeTypeMask  uint16 = 0o170000
	ModeFIFO      uint16 = 0o010000
	ModeCharDev   uint16 = 0o020000
	ModeDirectory uint16 = 0o040000
	ModeBlockDev  uint16 = 0o060000
	ModeRegular   uint16 = 0o100000
	ModeSymlink   uint16 = 0o120000
	ModeSocket    uint16 = 0o140000
	ModeWhiteout  uint16 = 0o160000
)

// BSDInfo.AdminFlags bits.
const (
	AdminFlagArchived   uint8 = 1
	AdminFlagImmutable  uint8 = 2
	AdminFlagAppendOnly uint8 = 4
)

// BSDInfo.OwnerFlags bits.
const (
	OwnerFlagNoDump     uint8 = 1
	OwnerFlagImmutable  uint8 = 2
	OwnerFlagAppendOnly uint8 = 4
	OwnerFlagOpaque     uint8 = 8
)

// SpecialKind says how the overloaded last field of BSDInfo is to be read.
// TN1150 defines the field as a union; the kind is derived from the file mode
// and flags at decode time so the value is never accessed untyped.
type SpecialKind uint8

const (
	// SpecialUnused: the field carries no meaning for this object.
	SpecialUnused SpecialKind = iota

	// SpecialRawDevice: the object is a block or character device and the
	// value is its device ID.
	SpecialRawDevice

	// SpecialLinkCount: the object is a hard-link indirect node and the
	// value is its link count.
	SpecialLinkCount

	// SpecialINodeNum: the object is a hard link and the value is the ID of
	// its indirect node.
	SpecialINodeNum
)

// SpecialInfo is the decoded form of the BSDInfo union field.
type SpecialInfo struct {
	Kind  SpecialKind
	Value uint32
}

// BSDInfo holds ownership, permissions and mode for a file or folder.
// Reference: TN1150 > HFS Plus Permissions.
type BSDInfo struct {
	OwnerID    uint32
	GroupID    uint32
	AdminFlags uint8
	OwnerFlags uint8
	FileMode   uint16
	Special    SpecialInfo
}

// CatalogKey addresses one record in the catalog: the parent folder's ID plus
// the object's name. Thread records use an empty name.
type CatalogKey struct {
	ParentID CatalogNodeID

	// Name is the node name decoded from its on-disk UTF-16 form. HFS Plus
	// stores names fully decomposed in canonical order.
	Name string
}

// CatalogFolder is a folder record from a catalog leaf.
type CatalogFolder struct {
	Flags    uint16
	Valence  uint32
	FolderID CatalogNodeID

	CreateDate       uint32
	ContentModDate   uint32
	AttributeModDate uint32
	AccessDate       uint32
	BackupDate       uint32

	Permissions BSDInfo

	// UserInfo and FinderInfo are kept as opaque Finder bookkeeping.
	UserInfo   [16]byte
	FinderInfo [16]byte

	TextEncoding uint32
}

// CatalogFile is a file record from a catalog leaf.
type CatalogFile struct {
	Flags  uint16
	FileID CatalogNodeID

	CreateDate       uint32
	ContentModDate   uint32
	AttributeModDate uint32
	AccessDate       uint32
	BackupDate       uint32

	Permissions BSDInfo

	UserInfo   [16]byte
	FinderInfo [16]byte

	TextEncoding uint32

	DataFork     ForkData
	ResourceFork ForkData
}

// CatalogFile.Flags bits.
const (
	FileLockedMask   uint16 = 0x0001
	ThreadExistsMask uint16 = 0x0002
)

// CatalogThread is a folder-thread or file-thread record, mapping an object's
// own ID back to its parent and name for reverse path lookup.
type CatalogThread struct {
	// RecordType distinguishes folder threads from file threads.
	RecordType int16

	ParentID CatalogNodeID
	Name     string
}

// CatalogRecord is implemented by the four catalog leaf record variants.
type CatalogRecord interface {
	// CatalogRecordType returns the on-disk record type discriminant.
	CatalogRecordType() int16
}

func (*CatalogFolder) CatalogRecordType() int16 { return FolderRecordType }
func (*CatalogFile) CatalogRecordType() int16   { return FileRecordType }
func (t *CatalogThread) CatalogRecordType() int16 { return t.RecordType }

// EntryKind classifies a catalog entry for callers that do not care about the
// raw record variant.
type EntryKind uint8

const (
	KindFolder EntryKind = iota
	KindFile
)

func (k EntryKind) String() string {
	if k == KindFolder {
		return "folder"
	}
	return "file"
}

// CatalogEntry is the uniform view of a catalog object assembled from its
// leaf record: enough to list directories, resolve paths, and open forks
// without switching on the underlying variant.
type CatalogEntry struct {
	ID       CatalogNodeID
	ParentID CatalogNodeID
	Name     string
	Kind     EntryKind

	CreateDate     uint32
	ContentModDate uint32

	Permissions BSDInfo

	// FileSize and the forks are meaningful only when Kind is KindFile.
	FileSize     uint64
	DataFork     ForkData
	ResourceFork ForkData
}
