package types

// B-tree structures shared by the catalog, extents overflow, and attributes
// files. Reference: TN1150 > B-Trees.

// Node kinds stored in BTNodeDescriptor.Kind.
const (
	BTLeafNode   int8 = -1
	BTIndexNode  int8 = 0
	BTHeaderNode int8 = 1
	BTMapNode    int8 = 2
)

// On-disk sizes.
const (
	// BTNodeDescriptorSize is the fixed size of the descriptor at the start
	// of every node.
	BTNodeDescriptorSize = 14

	// BTHeaderRecSize is the fixed size of the header record in node 0.
	BTHeaderRecSize = 106

	// BTUserDataRecSize is the reserved user-data record following the
	// header record in node 0.
	BTUserDataRecSize = 128

	// BTOffsetEntrySize is the size of one record-offset table entry.
	BTOffsetEntrySize = 2
)

// B-tree types stored in BTHeaderRec.BTreeType.
const (
	BTreeTypeControlFile  uint8 = 0
	BTreeTypeUserFile     uint8 = 128
	BTreeTypeReservedFile uint8 = 255
)

// Key comparison types stored in BTHeaderRec.KeyCompareType. HFSX catalogs
// may use binary comparison; everything else case-folds.
const (
	KeyCompareCaseFolding uint8 = 0xCF
	KeyCompareBinary      uint8 = 0xBC
)

// Header record attribute masks.
const (
	BTBadCloseMask          uint32 = 0x00000001
	BTBigKeysMask           uint32 = 0x00000002
	BTVariableIndexKeysMask uint32 = 0x00000004
)

// Minimum node sizes required by TN1150 for the catalog and attributes trees.
const (
	CatalogMinNodeSize    = 4096
	AttributesMinNodeSize = 4096
)

// BTNodeDescriptor is the 14-byte structure at the start of every B-tree node.
// Reference: TN1150 > B-Trees > Node Structure.
type BTNodeDescriptor struct {
	// FLink is the node index of the next node of this kind, or zero.
	FLink uint32

	// BLink is the node index of the previous node of this kind, or zero.
	BLink uint32

	// Kind is one of BTLeafNode, BTIndexNode, BTHeaderNode, BTMapNode.
	Kind int8

	// Height is zero for the header node, one for leaves, increasing toward
	// the root.
	Height uint8

	// NumRecords is the number of records in this node.
	NumRecords uint16

	Reserved uint16
}

// BTHeaderRec is the first record of a B-tree's header node.
// Reference: TN1150 > B-Trees > Header Record.
type BTHeaderRec struct {
	// TreeDepth is the current depth, equal to the root node's height.
	TreeDepth uint16

	// RootNode is the node index of the root, or zero for an empty tree.
	RootNode uint32

	// LeafRecords is the total number of records in all leaf nodes.
	LeafRecords uint32

	FirstLeafNode uint32
	LastLeafNode  uint32

	// NodeSize is the size in bytes of every node in this tree, a power of
	// two from 512 through 32768.
	NodeSize uint16

	// MaxKeyLength is the maximum key length in this tree, excluding the
	// length field itself.
	MaxKeyLength uint16

	// TotalNodes is the count of all nodes, free or used.
	TotalNodes uint32
	FreeNodes  uint32

	Reserved1 uint16

	// ClumpSize is ignored in favor of the fork's own clump size.
	ClumpSize uint32

	BTreeType      uint8
	KeyCompareType uint8

	// Attributes: see the BT*Mask values.
	Attributes uint32
}

// BTreeNode is one decoded fixed-size node: its descriptor, the record-offset
// table read from the end of the node, and the raw bytes of each record. The
// record slices are owned copies; they do not alias the source buffer.
type BTreeNode struct {
	// Index is the node's position within the tree file.
	Index uint32

	Descriptor BTNodeDescriptor

	// Offsets holds NumRecords+1 byte offsets in logical (front-to-back)
	// order; the final entry marks the start of free space.
	Offsets []uint16

	// Records holds the bytes of each record, Records[i] spanning
	// [Offsets[i], Offsets[i+1]) within the node.
	Records [][]byte
}

// IsLeaf reports whether this node holds leaf records.
func (n *BTreeNode) IsLeaf() bool { return n.Descriptor.Kind == BTLeafNode }

// IsIndex reports whether this node holds index (pointer) records.
func (n *BTreeNode) IsIndex() bool { return n.Descriptor.Kind == BTIndexNode }

// IsMap reports whether this node continues the tree's allocation map.
func (n *BTreeNode) IsMap() bool { return n.Descriptor.Kind == BTMapNode }
