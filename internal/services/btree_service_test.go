package services

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-hfsplus/internal/interfaces"
	"github.com/deploymenttheory/go-hfsplus/internal/parsers/extents"
	"github.com/deploymenttheory/go-hfsplus/internal/types"
)

// treeFork wraps raw tree file bytes in a ForkReader so the tree can be
// mounted without a surrounding volume.
func treeFork(t *testing.T, tree []byte) *ForkReader {
	t.Helper()

	blocks := (len(tree) + tBlockSize - 1) / tBlockSize
	img := make([]byte, blocks*tBlockSize)
	copy(img, tree)

	fork := types.ForkData{
		LogicalSize: uint64(len(img)),
		TotalBlocks: uint32(blocks),
		Extents:     types.ExtentRecord{{StartBlock: 0, BlockCount: uint32(blocks)}},
	}
	fr, err := NewForkReader(bytes.NewReader(img), tBlockSize, types.CatalogFileID, types.DataForkType, fork, nil)
	require.NoError(t, err)
	return fr
}

// testTree builds a two-level tree keyed by extent keys with the given file
// IDs split across two sibling leaves.
func testTree() []byte {
	leafRec := func(fileID types.CatalogNodeID) []byte {
		return leafRecord(
			encodeExtentKey(types.DataForkType, fileID, 0),
			encodeExtentRecordBody(types.ExtentDescriptor{StartBlock: uint32(fileID) * 10, BlockCount: 1}),
		)
	}

	leaf1 := buildTreeNode(tBlockSize,
		types.BTNodeDescriptor{FLink: 2, Kind: types.BTLeafNode, Height: 1},
		leafRec(10), leafRec(20))
	leaf2 := buildTreeNode(tBlockSize,
		types.BTNodeDescriptor{BLink: 1, Kind: types.BTLeafNode, Height: 1},
		leafRec(30), leafRec(40))
	index := buildTreeNode(tBlockSize,
		types.BTNodeDescriptor{Kind: types.BTIndexNode, Height: 2},
		indexRecord(encodeExtentKey(types.DataForkType, 10, 0), 1),
		indexRecord(encodeExtentKey(types.DataForkType, 30, 0), 2))
	header := buildHeaderNode(types.BTHeaderRec{
		TreeDepth:      2,
		RootNode:       3,
		LeafRecords:    4,
		FirstLeafNode:  1,
		LastLeafNode:   2,
		NodeSize:       tBlockSize,
		MaxKeyLength:   types.ExtentKeyLength,
		TotalNodes:     4,
		KeyCompareType: types.KeyCompareBinary,
	})

	var tree []byte
	for _, node := range [][]byte{header, leaf1, leaf2, index} {
		tree = append(tree, node...)
	}
	return tree
}

func extentSearch(fileID types.CatalogNodeID) interfaces.KeyCompare {
	search := types.ExtentKey{ForkType: types.DataForkType, FileID: fileID}
	return func(record []byte) (int, error) {
		key, _, err := extents.DecodeExtentKey(record, 0)
		if err != nil {
			return 0, err
		}
		return key.Compare(search), nil
	}
}

func TestBTreeServiceBootstrap(t *testing.T) {
	bt, err := NewBTreeService(treeFork(t, testTree()), 16, nil)
	require.NoError(t, err)

	hdr := bt.Header()
	assert.Equal(t, uint16(2), hdr.TreeDepth)
	assert.Equal(t, uint32(3), hdr.RootNode)
	assert.Equal(t, uint16(tBlockSize), hdr.NodeSize)
	assert.Equal(t, uint32(4), hdr.LeafRecords)

	allocated, err := bt.NodeAllocated(0)
	require.NoError(t, err)
	assert.True(t, allocated)
}

func TestBTreeServiceBootstrapRejectsNonHeaderNode(t *testing.T) {
	// A tree file starting with a leaf node instead of the header node.
	leaf := buildTreeNode(tBlockSize, types.BTNodeDescriptor{Kind: types.BTLeafNode, Height: 1})
	_, err := NewBTreeService(treeFork(t, leaf), 0, nil)
	assert.ErrorIs(t, err, types.ErrCorruptNode)
}

func TestBTreeServiceNode(t *testing.T) {
	bt, err := NewBTreeService(treeFork(t, testTree()), 16, nil)
	require.NoError(t, err)

	node, err := bt.Node(1)
	require.NoError(t, err)
	assert.True(t, node.IsLeaf())
	assert.Len(t, node.Records, 2)

	// Second fetch is served from the cache.
	again, err := bt.Node(1)
	require.NoError(t, err)
	assert.Same(t, node, again)

	_, err = bt.Node(99)
	assert.ErrorIs(t, err, types.ErrOutOfBounds)
}

func TestBTreeServiceLookupExact(t *testing.T) {
	bt, err := NewBTreeService(treeFork(t, testTree()), 0, nil)
	require.NoError(t, err)

	for _, fileID := range []types.CatalogNodeID{10, 20, 30, 40} {
		record, err := bt.LookupExact(extentSearch(fileID))
		require.NoError(t, err, "fileID %d", fileID)

		key, next, err := extents.DecodeExtentKey(record, 0)
		require.NoError(t, err)
		assert.Equal(t, fileID, key.FileID)

		rec, _, err := extents.DecodeExtentDataRecord(record, next)
		require.NoError(t, err)
		assert.Equal(t, uint32(fileID)*10, rec[0].StartBlock)
	}

	// Misses on either side of and between existing keys.
	for _, fileID := range []types.CatalogNodeID{5, 25, 50} {
		_, err := bt.LookupExact(extentSearch(fileID))
		assert.ErrorIs(t, err, types.ErrNotFound, "fileID %d", fileID)
	}

	// Lookups are idempotent.
	first, err := bt.LookupExact(extentSearch(20))
	require.NoError(t, err)
	second, err := bt.LookupExact(extentSearch(20))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBTreeServiceScanRange(t *testing.T) {
	bt, err := NewBTreeService(treeFork(t, testTree()), 0, nil)
	require.NoError(t, err)

	collect := func(from types.CatalogNodeID) []types.CatalogNodeID {
		var seen []types.CatalogNodeID
		err := bt.ScanRange(extentSearch(from), func(record []byte) (bool, error) {
			key, _, err := extents.DecodeExtentKey(record, 0)
			if err != nil {
				return false, err
			}
			seen = append(seen, key.FileID)
			return true, nil
		})
		require.NoError(t, err)
		return seen
	}

	// The scan starts mid-tree and crosses the sibling link.
	assert.Equal(t, []types.CatalogNodeID{20, 30, 40}, collect(20))
	// A scan from before the first key sees everything.
	assert.Equal(t, []types.CatalogNodeID{10, 20, 30, 40}, collect(1))
	// A scan from beyond the last key sees nothing.
	assert.Empty(t, collect(90))
}

func TestBTreeServiceWalkLeaves(t *testing.T) {
	bt, err := NewBTreeService(treeFork(t, testTree()), 0, nil)
	require.NoError(t, err)

	var seen []types.CatalogNodeID
	err = bt.WalkLeaves(func(record []byte) (bool, error) {
		key, _, err := extents.DecodeExtentKey(record, 0)
		if err != nil {
			return false, err
		}
		seen = append(seen, key.FileID)
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []types.CatalogNodeID{10, 20, 30, 40}, seen)
}

func TestBTreeServiceSiblingCycle(t *testing.T) {
	// A single leaf whose forward link points back at itself.
	leaf := buildTreeNode(tBlockSize,
		types.BTNodeDescriptor{FLink: 1, Kind: types.BTLeafNode, Height: 1},
		leafRecord(encodeExtentKey(types.DataForkType, 10, 0), encodeExtentRecordBody()))
	header := buildHeaderNode(types.BTHeaderRec{
		TreeDepth:      1,
		RootNode:       1,
		LeafRecords:    1,
		FirstLeafNode:  1,
		LastLeafNode:   1,
		NodeSize:       tBlockSize,
		TotalNodes:     2,
		KeyCompareType: types.KeyCompareBinary,
	})
	bt, err := NewBTreeService(treeFork(t, append(header, leaf...)), 0, nil)
	require.NoError(t, err)

	err = bt.WalkLeaves(func([]byte) (bool, error) { return true, nil })
	assert.ErrorIs(t, err, types.ErrCycleDetected)

	err = bt.ScanRange(extentSearch(5), func([]byte) (bool, error) { return true, nil })
	assert.ErrorIs(t, err, types.ErrCycleDetected)

	// A search key beyond the last record makes the descent follow the
	// same self-link.
	_, err = bt.LookupExact(extentSearch(99))
	assert.ErrorIs(t, err, types.ErrCycleDetected)
}

func TestBTreeServiceDescentCycle(t *testing.T) {
	// An index root whose child pointer loops back to the root itself.
	index := buildTreeNode(tBlockSize,
		types.BTNodeDescriptor{Kind: types.BTIndexNode, Height: 2},
		indexRecord(encodeExtentKey(types.DataForkType, 10, 0), 1))
	header := buildHeaderNode(types.BTHeaderRec{
		TreeDepth:      2,
		RootNode:       1,
		LeafRecords:    0,
		NodeSize:       tBlockSize,
		TotalNodes:     2,
		KeyCompareType: types.KeyCompareBinary,
	})
	bt, err := NewBTreeService(treeFork(t, append(header, index...)), 0, nil)
	require.NoError(t, err)

	_, err = bt.LookupExact(extentSearch(10))
	assert.ErrorIs(t, err, types.ErrCycleDetected)
}

func TestBTreeServiceEmptyIndexNode(t *testing.T) {
	// An index root that declares zero records. The node itself parses,
	// so the descent has to reject it rather than dereference a record.
	index := buildTreeNode(tBlockSize,
		types.BTNodeDescriptor{Kind: types.BTIndexNode, Height: 2})
	header := buildHeaderNode(types.BTHeaderRec{
		TreeDepth:      2,
		RootNode:       1,
		NodeSize:       tBlockSize,
		TotalNodes:     2,
		KeyCompareType: types.KeyCompareBinary,
	})
	bt, err := NewBTreeService(treeFork(t, append(header, index...)), 0, nil)
	require.NoError(t, err)

	_, err = bt.LookupExact(extentSearch(10))
	assert.ErrorIs(t, err, types.ErrCorruptNode)

	err = bt.ScanRange(extentSearch(10), func([]byte) (bool, error) { return true, nil })
	assert.ErrorIs(t, err, types.ErrCorruptNode)
}

func TestBTreeServiceNodeAllocatedMapChain(t *testing.T) {
	// The header node's map record covers 256 bytes of a 512-byte node,
	// so nodes 2048 and up live in a chained map node. Its 64-byte record
	// marks only node 2048 in use and the chain ends there.
	mapRecord := make([]byte, 64)
	mapRecord[0] = 0x80
	mapNode := buildTreeNode(tBlockSize,
		types.BTNodeDescriptor{Kind: types.BTMapNode},
		mapRecord)
	header := buildHeaderNode(types.BTHeaderRec{
		NodeSize:   tBlockSize,
		TotalNodes: 2600,
	})
	binary.BigEndian.PutUint32(header, 1) // forward link to the map node

	bt, err := NewBTreeService(treeFork(t, append(header, mapNode...)), 0, nil)
	require.NoError(t, err)

	allocated, err := bt.NodeAllocated(2047)
	require.NoError(t, err)
	assert.True(t, allocated)

	allocated, err = bt.NodeAllocated(2048)
	require.NoError(t, err)
	assert.True(t, allocated)

	allocated, err = bt.NodeAllocated(2049)
	require.NoError(t, err)
	assert.False(t, allocated)

	// Past the chained record but still inside the tree.
	_, err = bt.NodeAllocated(2560)
	assert.ErrorIs(t, err, types.ErrOutOfBounds)

	// Past the tree itself.
	_, err = bt.NodeAllocated(2600)
	assert.ErrorIs(t, err, types.ErrOutOfBounds)
}

func TestBTreeServiceEmptyTree(t *testing.T) {
	header := buildHeaderNode(types.BTHeaderRec{
		NodeSize:   tBlockSize,
		TotalNodes: 1,
	})
	bt, err := NewBTreeService(treeFork(t, header), 0, nil)
	require.NoError(t, err)

	_, err = bt.LookupExact(extentSearch(10))
	assert.ErrorIs(t, err, types.ErrNotFound)

	require.NoError(t, bt.WalkLeaves(func([]byte) (bool, error) { return true, nil }))
}
