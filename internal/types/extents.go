package types

// Extents overflow file structures. Reference: TN1150 > Extents Overflow File.

// Fork types used in extents overflow keys.
const (
	DataForkType     uint8 = 0x00
	ResourceForkType uint8 = 0xFF
)

// ExtentKeyLength is the fixed key length of an extents overflow key,
// excluding the 16-bit length field itself.
const ExtentKeyLength = 10

// ExtentKey addresses one extents overflow record: the extents of the given
// fork of the given file, starting at the given logical allocation block.
type ExtentKey struct {
	ForkType   uint8
	FileID     CatalogNodeID
	StartBlock uint32
}

// Compare orders extent keys by fileID, then fork type, then start block,
// matching the on-disk sort order of the extents overflow tree.
func (k ExtentKey) Compare(other ExtentKey) int {
	switch {
	case k.FileID != other.FileID:
		if k.FileID < other.FileID {
			return -1
		}
		return 1
	case k.ForkType != other.ForkType:
		if k.ForkType < other.ForkType {
			return -1
		}
		return 1
	case k.StartBlock != other.StartBlock:
		if k.StartBlock < other.StartBlock {
			return -1
		}
		return 1
	}
	return 0
}
