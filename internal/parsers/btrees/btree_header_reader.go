package btrees

import (
	"fmt"

	"github.com/deploymenttheory/go-hfsplus/internal/parsers/primitives"
	"github.com/deploymenttheory/go-hfsplus/internal/types"
)

// DecodeHeaderRecord decodes the 106-byte header record that is the first
// record of node 0. The trailing 64 reserved bytes are skipped but counted in
// the returned offset.
func DecodeHeaderRecord(data []byte, offset int) (*types.BTHeaderRec, int, error) {
	if offset < 0 || offset+types.BTHeaderRecSize > len(data) {
		return nil, offset, fmt.Errorf("%w: header record needs %d bytes at offset %d of %d",
			types.ErrTruncated, types.BTHeaderRecSize, offset, len(data))
	}

	hr := &types.BTHeaderRec{}
	pos := offset

	hr.TreeDepth, _ = primitives.ReadU16(data, pos)
	pos += 2
	hr.RootNode, _ = primitives.ReadU32(data, pos)
	pos += 4
	hr.LeafRecords, _ = primitives.ReadU32(data, pos)
	pos += 4
	hr.FirstLeafNode, _ = primitives.ReadU32(data, pos)
	pos += 4
	hr.LastLeafNode, _ = primitives.ReadU32(data, pos)
	pos += 4

	hr.NodeSize, _ = primitives.ReadU16(data, pos)
	if hr.NodeSize < 512 || hr.NodeSize&(hr.NodeSize-1) != 0 {
		return nil, offset, fmt.Errorf("%w: node size %d is not a power of two in [512, 32768]",
			types.ErrCorruptNode, hr.NodeSize)
	}
	pos += 2

	hr.MaxKeyLength, _ = primitives.ReadU16(data, pos)
	pos += 2
	hr.TotalNodes, _ = primitives.ReadU32(data, pos)
	pos += 4
	hr.FreeNodes, _ = primitives.ReadU32(data, pos)
	pos += 4
	hr.Reserved1, _ = primitives.ReadU16(data, pos)
	pos += 2

	// clumpSize is misaligned on disk; explicit byte composition makes that
	// a non-issue.
	hr.ClumpSize, _ = primitives.ReadU32(data, pos)
	pos += 4

	hr.BTreeType, _ = primitives.ReadU8(data, pos)
	pos++
	hr.KeyCompareType, _ = primitives.ReadU8(data, pos)
	pos++
	hr.Attributes, _ = primitives.ReadU32(data, pos)
	pos += 4

	// 16 reserved uint32s close out the record.
	pos += 64

	if hr.FreeNodes > hr.TotalNodes {
		return nil, offset, fmt.Errorf("%w: free node count %d exceeds total %d",
			types.ErrCorruptNode, hr.FreeNodes, hr.TotalNodes)
	}

	return hr, pos, nil
}

// ParseHeaderNode interprets node 0 of a tree: the node descriptor, the
// header record, and the allocation bitmap from the map record. The 128-byte
// user data record between them is reserved and ignored.
func ParseHeaderNode(data []byte) (*types.BTreeNode, *types.BTHeaderRec, []byte, error) {
	node, err := ParseNode(data, 0)
	if err != nil {
		return nil, nil, nil, err
	}
	if node.Descriptor.Kind != types.BTHeaderNode {
		return nil, nil, nil, fmt.Errorf("%w: node 0 kind is %d, want header node",
			types.ErrCorruptNode, node.Descriptor.Kind)
	}
	if len(node.Records) != 3 {
		return nil, nil, nil, fmt.Errorf("%w: header node has %d records, want 3",
			types.ErrCorruptNode, len(node.Records))
	}

	hr, _, err := DecodeHeaderRecord(node.Records[0], 0)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("header node: %w", err)
	}
	if int(hr.NodeSize) != len(data) {
		return nil, nil, nil, fmt.Errorf("%w: header record declares node size %d but node 0 occupies %d bytes",
			types.ErrCorruptNode, hr.NodeSize, len(data))
	}

	bitmap := node.Records[2]

	return node, hr, bitmap, nil
}
