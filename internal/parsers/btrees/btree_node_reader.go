// Package btrees decodes HFS Plus B-tree nodes: the 14-byte node descriptor,
// the header record of node 0, and the record-offset table that grows
// backward from the end of every node. The same layout serves the catalog,
// extents overflow, and attributes trees; only the record contents differ.
package btrees

import (
	"fmt"

	"github.com/deploymenttheory/go-hfsplus/internal/parsers/primitives"
	"github.com/deploymenttheory/go-hfsplus/internal/types"
)

// DecodeNodeDescriptor decodes the 14-byte descriptor at the start of a node.
func DecodeNodeDescriptor(data []byte, offset int) (types.BTNodeDescriptor, int, error) {
	var nd types.BTNodeDescriptor

	if offset < 0 || offset+types.BTNodeDescriptorSize > len(data) {
		return nd, offset, fmt.Errorf("%w: node descriptor needs %d bytes at offset %d of %d",
			types.ErrTruncated, types.BTNodeDescriptorSize, offset, len(data))
	}

	nd.FLink, _ = primitives.ReadU32(data, offset)
	nd.BLink, _ = primitives.ReadU32(data, offset+4)

	kind, _ := primitives.ReadU8(data, offset+8)
	nd.Kind = int8(kind)
	if nd.Kind < types.BTLeafNode || nd.Kind > types.BTMapNode {
		return nd, offset, fmt.Errorf("%w: unknown node kind %d", types.ErrCorruptNode, nd.Kind)
	}

	nd.Height, _ = primitives.ReadU8(data, offset+9)
	nd.NumRecords, _ = primitives.ReadU16(data, offset+10)
	nd.Reserved, _ = primitives.ReadU16(data, offset+12)

	return nd, offset + types.BTNodeDescriptorSize, nil
}

// ParseNode decodes one complete node from exactly nodeSize bytes. The record
// offset table is read backward from the end of the node: NumRecords+1
// 16-bit offsets, the last marking the free-space boundary. Record i spans
// [offsets[i], offsets[i+1]). All record bytes are owned copies.
//
// Corrupt volumes are the expected input, so every on-disk count and offset
// is validated before use: the record count must fit the offset table, and
// offsets must ascend strictly within the node.
func ParseNode(data []byte, nodeIndex uint32) (*types.BTreeNode, error) {
	nodeSize := len(data)

	nd, _, err := DecodeNodeDescriptor(data, 0)
	if err != nil {
		return nil, fmt.Errorf("node %d: %w", nodeIndex, err)
	}

	numOffsets := int(nd.NumRecords) + 1
	tableSize := numOffsets * types.BTOffsetEntrySize
	if tableSize > nodeSize-types.BTNodeDescriptorSize {
		return nil, fmt.Errorf("%w: node %d claims %d records but only %d bytes remain for the offset table",
			types.ErrCorruptNode, nodeIndex, nd.NumRecords, nodeSize-types.BTNodeDescriptorSize)
	}

	offsets := make([]uint16, numOffsets)
	for i := 0; i < numOffsets; i++ {
		// offsets[0] sits in the last two bytes of the node.
		off, err := primitives.ReadU16(data, nodeSize-(i+1)*types.BTOffsetEntrySize)
		if err != nil {
			return nil, fmt.Errorf("node %d offset table: %w", nodeIndex, err)
		}
		offsets[i] = off
	}

	if int(offsets[0]) != types.BTNodeDescriptorSize {
		return nil, fmt.Errorf("%w: node %d first record starts at %d, want %d",
			types.ErrCorruptNode, nodeIndex, offsets[0], types.BTNodeDescriptorSize)
	}
	freeSpaceLimit := nodeSize - tableSize
	for i, off := range offsets {
		if i > 0 && off <= offsets[i-1] {
			return nil, fmt.Errorf("%w: node %d record offsets not strictly ascending: offsets[%d]=%d after %d",
				types.ErrCorruptNode, nodeIndex, i, off, offsets[i-1])
		}
		if int(off) > freeSpaceLimit {
			return nil, fmt.Errorf("%w: node %d offsets[%d]=%d overlaps the offset table (limit %d)",
				types.ErrCorruptNode, nodeIndex, i, off, freeSpaceLimit)
		}
	}

	records := make([][]byte, nd.NumRecords)
	for i := range records {
		rec, err := primitives.ReadBytes(data, int(offsets[i]), int(offsets[i+1])-int(offsets[i]))
		if err != nil {
			return nil, fmt.Errorf("node %d record %d: %w", nodeIndex, i, err)
		}
		records[i] = rec
	}

	return &types.BTreeNode{
		Index:      nodeIndex,
		Descriptor: nd,
		Offsets:    offsets,
		Records:    records,
	}, nil
}
