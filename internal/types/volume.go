package types

// Volume-level structures defined in Apple Technote TN1150.
// All multi-byte fields are stored big-endian on disk.

// Volume header signatures. Reference: TN1150 > Volume Header.
const (
	// SignatureHFSPlus is 'H+', identifying an HFS Plus volume.
	SignatureHFSPlus uint16 = 0x482B

	// SignatureHFSX is 'HX', identifying a case-sensitive HFSX volume.
	SignatureHFSX uint16 = 0x4858
)

// Volume format versions.
const (
	VersionHFSPlus uint16 = 4
	VersionHFSX    uint16 = 5
)

// On-disk sizes and locations.
const (
	// VolumeHeaderOffset is the fixed byte offset of the volume header from
	// the start of the volume. The first 1024 bytes are reserved.
	VolumeHeaderOffset = 1024

	// VolumeHeaderSize is the fixed on-disk size of the volume header.
	VolumeHeaderSize = 512

	// ExtentDescriptorSize is the on-disk size of one extent descriptor.
	ExtentDescriptorSize = 8

	// ExtentsPerRecord is the number of inline extent descriptors in a fork
	// or an extents overflow record.
	ExtentsPerRecord = 8

	// ForkDataSize is the on-disk size of a fork data structure.
	ForkDataSize = 16 + ExtentsPerRecord*ExtentDescriptorSize

	// JournalInfoBlockSize is the on-disk size of the journal info block.
	JournalInfoBlockSize = 180
)

// Volume attribute bits. Reference: TN1150 > Volume Header.
// Unknown bits must be zero.
const (
	// VolumeHardwareLockBit: volume is write-protected by a hardware setting.
	VolumeHardwareLockBit = 7

	// VolumeUnmountedBit: volume was flushed cleanly during unmount.
	VolumeUnmountedBit = 8

	// VolumeSparedBlocksBit: bad blocks are recorded in the extents overflow file.
	VolumeSparedBlocksBit = 9

	// VolumeNoCacheRequiredBit: volume should not be cached in memory.
	VolumeNoCacheRequiredBit = 10

	// BootVolumeInconsistentBit: set to zero while mounted read-write.
	BootVolumeInconsistentBit = 11

	// CatalogNodeIDsReusedBit: NextCatalogID has overflowed and IDs are reused.
	CatalogNodeIDsReusedBit = 12

	// VolumeJournaledBit: volume has a journal.
	VolumeJournaledBit = 13

	// VolumeSoftwareLockBit: volume is write-protected by a software setting.
	VolumeSoftwareLockBit = 15
)

// Finder info slots in the volume header that carry the 64-bit volume
// identifier used to derive the volume UUID.
const (
	FinderInfoVolumeIDHigh = 6
	FinderInfoVolumeIDLow  = 7
)

// ExtentDescriptor identifies the start and length in allocation blocks of one
// contiguous extent. A zero-filled descriptor marks an unused slot.
// Reference: TN1150 > Fork Data Structure.
type ExtentDescriptor struct {
	StartBlock uint32
	BlockCount uint32
}

// IsEmpty reports whether the descriptor is the unused-slot sentinel.
func (e ExtentDescriptor) IsEmpty() bool {
	return e.StartBlock == 0 && e.BlockCount == 0
}

// ExtentRecord holds the eight extent descriptors stored inline in a fork or
// in one extents overflow record.
type ExtentRecord [ExtentsPerRecord]ExtentDescriptor

// ForkData describes the size and initial extents of a file fork.
// Reference: TN1150 > Fork Data Structure.
type ForkData struct {
	// LogicalSize is the fork's size in bytes.
	LogicalSize uint64

	// ClumpSize is the per-fork clump size, or for catalog records the total
	// blocks read if the file is a hot file.
	ClumpSize uint32

	// TotalBlocks is the total number of allocation blocks used by all
	// extents of this fork, including any in the extents overflow file.
	TotalBlocks uint32

	// Extents holds the first eight extent descriptors. Any further extents
	// live in the extents overflow file.
	Extents ExtentRecord
}

// VolumeHeader is the 512-byte structure stored 1024 bytes from the start of
// the volume, with an alternate copy 1024 bytes from the end.
// Reference: TN1150 > Volume Header.
type VolumeHeader struct {
	// Signature is 'H+' for HFS Plus or 'HX' for HFSX.
	Signature uint16

	// Version is 4 for HFS Plus, 5 for HFSX.
	Version uint16

	// Attributes holds the volume attribute bits.
	Attributes uint32

	// LastMountedVersion identifies the implementation that last mounted the
	// volume ('10.0' for Mac OS X, 'HFSJ' for a journaled mount).
	LastMountedVersion uint32

	// JournalInfoBlock is the allocation block containing the journal info
	// block, or zero on unjournaled volumes.
	JournalInfoBlock uint32

	// CreateDate is stored in local time, unlike every other date on the volume.
	CreateDate uint32
	ModifyDate uint32
	BackupDate uint32
	CheckedDate uint32

	FileCount   uint32
	FolderCount uint32

	// BlockSize is the allocation block size in bytes. Must be a power of
	// two, 512 or larger.
	BlockSize   uint32
	TotalBlocks uint32
	FreeBlocks  uint32

	// NextAllocation is a hint for where to start searching for free blocks.
	NextAllocation uint32
	RsrcClumpSize  uint32
	DataClumpSize  uint32

	// NextCatalogID is the next unused catalog node ID.
	NextCatalogID CatalogNodeID

	WriteCount      uint32
	EncodingsBitmap uint64

	// FinderInfo carries boot and Finder bookkeeping; slots 6 and 7 hold the
	// 64-bit volume identifier.
	FinderInfo [8]uint32

	AllocationFile ForkData
	ExtentsFile    ForkData
	CatalogFile    ForkData
	AttributesFile ForkData
	StartupFile    ForkData
}

// IsHFSX reports whether the header carries the case-sensitive HFSX signature.
func (vh *VolumeHeader) IsHFSX() bool {
	return vh.Signature == SignatureHFSX
}

// HasAttribute reports whether the given volume attribute bit is set.
func (vh *VolumeHeader) HasAttribute(bit uint) bool {
	return vh.Attributes&(1<<bit) != 0
}

// IsJournaled reports whether the volume has a journal.
func (vh *VolumeHeader) IsJournaled() bool {
	return vh.HasAttribute(VolumeJournaledBit)
}

// WasUnmountedCleanly reports whether the volume was flushed at last unmount.
func (vh *VolumeHeader) WasUnmountedCleanly() bool {
	return vh.HasAttribute(VolumeUnmountedBit)
}

// VolumeID returns the 64-bit volume identifier from Finder info slots 6-7.
func (vh *VolumeHeader) VolumeID() uint64 {
	return uint64(vh.FinderInfo[FinderInfoVolumeIDHigh])<<32 |
		uint64(vh.FinderInfo[FinderInfoVolumeIDLow])
}

// JournalInfoBlock locates the volume's journal. The journal itself is not
// interpreted here; replay is a consumer concern.
// Reference: TN1150 > Journal.
type JournalInfoBlock struct {
	// Flags: see the JournalInFS, JournalOnOtherDevice and
	// JournalNeedsInit bits.
	Flags uint32

	// DeviceSignature identifies the device holding the journal when it is
	// not on this volume.
	DeviceSignature [8]uint32

	// Offset is the journal's byte offset from the start of its device.
	Offset uint64

	// Size is the journal's length in bytes.
	Size uint64
}

// Journal info block flag bits.
const (
	JournalInFS          = 1 << 0
	JournalOnOtherDevice = 1 << 1
	JournalNeedsInit     = 1 << 2
)

// InFS reports whether the journal is stored on the volume itself.
func (j *JournalInfoBlock) InFS() bool {
	return j.Flags&JournalInFS != 0
}
