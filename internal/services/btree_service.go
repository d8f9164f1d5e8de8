package services

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-tinylfu"
	"go.uber.org/zap"

	"github.com/deploymenttheory/go-hfsplus/internal/interfaces"
	"github.com/deploymenttheory/go-hfsplus/internal/parsers/btrees"
	"github.com/deploymenttheory/go-hfsplus/internal/types"
)

// BTreeService navigates one HFS Plus B-tree file. The tree is bootstrapped
// from its header node, which pins the node size for the rest of the file,
// and nodes are addressed at nodeIndex * nodeSize within the tree's fork.
// Traversals carry a visited set so that corrupted sibling or child links
// fail with types.ErrCycleDetected instead of looping.
type BTreeService struct {
	fork   *ForkReader
	header types.BTHeaderRec
	bitmap []byte
	logger *zap.Logger

	// mapChain is the header node's forward link: the first map node when
	// the allocation map outgrows the header node's map record.
	mapChain uint32

	mu    sync.Mutex
	cache *tinylfu.T[uint32, *types.BTreeNode]
}

// NewBTreeService reads the header node of the tree held in fork and
// prepares node access. cacheSize is the number of parsed nodes to keep
// resident; zero disables caching.
func NewBTreeService(fork *ForkReader, cacheSize int, logger *zap.Logger) (*BTreeService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// The node size is not known until the header record is decoded, but
	// the descriptor and header record always fit in the first 120 bytes.
	prefix, err := fork.ReadRange(0, types.BTNodeDescriptorSize+types.BTHeaderRecSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read B-tree header prefix: %w", err)
	}
	desc, _, err := btrees.DecodeNodeDescriptor(prefix, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to decode header node descriptor: %w", err)
	}
	if desc.Kind != types.BTHeaderNode {
		return nil, fmt.Errorf("%w: node 0 has kind %d, expected header node", types.ErrCorruptNode, desc.Kind)
	}
	hr, _, err := btrees.DecodeHeaderRecord(prefix, types.BTNodeDescriptorSize)
	if err != nil {
		return nil, fmt.Errorf("failed to decode B-tree header record: %w", err)
	}

	nodeData, err := fork.ReadRange(0, int(hr.NodeSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read header node of %d bytes: %w", hr.NodeSize, err)
	}
	hnode, hdr, bitmap, err := btrees.ParseHeaderNode(nodeData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse header node: %w", err)
	}

	bt := &BTreeService{
		fork:     fork,
		header:   *hdr,
		bitmap:   bitmap,
		mapChain: hnode.Descriptor.FLink,
		logger:   logger,
	}
	if cacheSize > 0 {
		bt.cache = tinylfu.New[uint32, *types.BTreeNode](cacheSize, cacheSize*10, nodeCacheHasher)
	}

	logger.Debug("opened B-tree",
		zap.Uint16("node_size", hdr.NodeSize),
		zap.Uint32("root", hdr.RootNode),
		zap.Uint32("leaf_records", hdr.LeafRecords),
		zap.Uint16("depth", hdr.TreeDepth))
	return bt, nil
}

func nodeCacheHasher(index uint32) uint64 {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], index)
	return xxhash.Sum64(b[:])
}

// Header returns a copy of the tree's header record.
func (bt *BTreeService) Header() types.BTHeaderRec {
	return bt.header
}

// NodeAllocated reports whether the tree's map marks node index as in use.
// The map starts in the header node's map record and, when the tree has more
// nodes than that record covers, continues in map nodes chained from the
// header node's forward link.
func (bt *BTreeService) NodeAllocated(index uint32) (bool, error) {
	if index >= bt.header.TotalNodes {
		return false, fmt.Errorf("%w: node %d beyond tree of %d nodes", types.ErrOutOfBounds, index, bt.header.TotalNodes)
	}

	bit := byte(0x80 >> (index % 8))
	byteIdx := int(index / 8)
	if byteIdx < len(bt.bitmap) {
		return bt.bitmap[byteIdx]&bit != 0, nil
	}

	offset := byteIdx - len(bt.bitmap)
	visited := map[uint32]bool{0: true}
	next := bt.mapChain
	for next != 0 {
		if visited[next] {
			return false, fmt.Errorf("%w: map node %d already visited", types.ErrCycleDetected, next)
		}
		visited[next] = true

		node, err := bt.Node(next)
		if err != nil {
			return false, err
		}
		if !node.IsMap() || len(node.Records) == 0 {
			return false, fmt.Errorf("%w: node %d in the map chain has kind %d",
				types.ErrCorruptNode, next, node.Descriptor.Kind)
		}
		record := node.Records[0]
		if offset < len(record) {
			return record[offset]&bit != 0, nil
		}
		offset -= len(record)
		next = node.Descriptor.FLink
	}
	return false, fmt.Errorf("%w: node %d beyond the allocation map", types.ErrOutOfBounds, index)
}

// Node fetches and parses node index, consulting the cache first.
func (bt *BTreeService) Node(index uint32) (*types.BTreeNode, error) {
	if index >= bt.header.TotalNodes {
		return nil, fmt.Errorf("%w: node %d beyond tree of %d nodes", types.ErrOutOfBounds, index, bt.header.TotalNodes)
	}

	if bt.cache != nil {
		bt.mu.Lock()
		node, ok := bt.cache.Get(index)
		bt.mu.Unlock()
		if ok {
			return node, nil
		}
	}

	data, err := bt.fork.ReadRange(int64(index)*int64(bt.header.NodeSize), int(bt.header.NodeSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read node %d: %w", index, err)
	}
	node, err := btrees.ParseNode(data, index)
	if err != nil {
		return nil, err
	}

	if bt.cache != nil {
		bt.mu.Lock()
		bt.cache.Add(index, node)
		bt.mu.Unlock()
	}
	return node, nil
}

// LookupExact descends from the root to the leaf record whose key matches
// cmp exactly and returns the raw record bytes. types.ErrNotFound reports a
// clean miss.
func (bt *BTreeService) LookupExact(cmp interfaces.KeyCompare) ([]byte, error) {
	leaf, idx, err := bt.descend(cmp)
	if err != nil {
		return nil, err
	}
	order, err := cmp(leaf.Records[idx])
	if err != nil {
		return nil, err
	}
	if order != 0 {
		return nil, fmt.Errorf("%w: no record with matching key", types.ErrNotFound)
	}
	return leaf.Records[idx], nil
}

// ScanRange walks leaf records in key order starting at the first record
// whose key is not below cmp's search key. visit receives raw record bytes
// and returns false to stop the scan. The walk follows forward sibling
// links across leaves.
func (bt *BTreeService) ScanRange(cmp interfaces.KeyCompare, visit func(record []byte) (bool, error)) error {
	leaf, idx, err := bt.descend(cmp)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}

	visited := map[uint32]bool{}
	for {
		if visited[leaf.Index] {
			return fmt.Errorf("%w: leaf %d already visited during scan", types.ErrCycleDetected, leaf.Index)
		}
		visited[leaf.Index] = true

		for ; idx < len(leaf.Records); idx++ {
			order, err := cmp(leaf.Records[idx])
			if err != nil {
				return err
			}
			if order < 0 {
				// Still before the start of the range.
				continue
			}
			keep, err := visit(leaf.Records[idx])
			if err != nil {
				return err
			}
			if !keep {
				return nil
			}
		}

		if leaf.Descriptor.FLink == 0 {
			return nil
		}
		leaf, err = bt.Node(leaf.Descriptor.FLink)
		if err != nil {
			return err
		}
		if !leaf.IsLeaf() {
			return fmt.Errorf("%w: node %d linked as leaf sibling has kind %d",
				types.ErrCorruptNode, leaf.Index, leaf.Descriptor.Kind)
		}
		idx = 0
	}
}

// WalkLeaves visits every leaf record in key order, starting at the tree's
// first leaf and following sibling links.
func (bt *BTreeService) WalkLeaves(visit func(record []byte) (bool, error)) error {
	if bt.header.FirstLeafNode == 0 {
		return nil
	}

	visited := map[uint32]bool{}
	index := bt.header.FirstLeafNode
	for index != 0 {
		if visited[index] {
			return fmt.Errorf("%w: leaf %d already visited during walk", types.ErrCycleDetected, index)
		}
		visited[index] = true

		leaf, err := bt.Node(index)
		if err != nil {
			return err
		}
		if !leaf.IsLeaf() {
			return fmt.Errorf("%w: node %d on the leaf chain has kind %d",
				types.ErrCorruptNode, index, leaf.Descriptor.Kind)
		}
		for _, record := range leaf.Records {
			keep, err := visit(record)
			if err != nil {
				return err
			}
			if !keep {
				return nil
			}
		}
		index = leaf.Descriptor.FLink
	}
	return nil
}

// descend walks index nodes from the root down to the leaf where cmp's
// search key would live, returning the leaf and the position of the first
// record whose key is not below the search key. In index nodes the child
// pointer is the big-endian node number immediately after the record's key,
// which occupies a two-byte length plus the key bytes padded to an even
// boundary.
func (bt *BTreeService) descend(cmp interfaces.KeyCompare) (*types.BTreeNode, int, error) {
	if bt.header.RootNode == 0 {
		return nil, 0, fmt.Errorf("%w: tree is empty", types.ErrNotFound)
	}

	visited := map[uint32]bool{}
	index := bt.header.RootNode
	for {
		if visited[index] {
			return nil, 0, fmt.Errorf("%w: node %d already visited during descent", types.ErrCycleDetected, index)
		}
		visited[index] = true

		node, err := bt.Node(index)
		if err != nil {
			return nil, 0, err
		}

		switch {
		case node.IsLeaf():
			for i, record := range node.Records {
				order, err := cmp(record)
				if err != nil {
					return nil, 0, err
				}
				if order >= 0 {
					return node, i, nil
				}
			}
			// Every key in the leaf sorts below the search key. The
			// range may continue in the right sibling; report the
			// position one past the end so ScanRange moves on, but an
			// exact lookup treats it as a miss.
			if next := node.Descriptor.FLink; next != 0 {
				if visited[next] {
					return nil, 0, fmt.Errorf("%w: leaf %d links back to node %d", types.ErrCycleDetected, index, next)
				}
				visited[next] = true
				sibling, err := bt.Node(next)
				if err != nil {
					return nil, 0, err
				}
				if len(sibling.Records) > 0 && sibling.IsLeaf() {
					return sibling, 0, nil
				}
			}
			return nil, 0, fmt.Errorf("%w: key beyond last leaf record", types.ErrNotFound)

		case node.IsIndex():
			if len(node.Records) == 0 {
				return nil, 0, fmt.Errorf("%w: index node %d has no records", types.ErrCorruptNode, index)
			}
			// Pick the last record whose key is at or below the search
			// key; its child subtree covers the key.
			child := -1
			for i, record := range node.Records {
				order, err := cmp(record)
				if err != nil {
					return nil, 0, err
				}
				if order > 0 {
					break
				}
				child = i
			}
			if child == -1 {
				// The search key sorts before every key in the tree.
				// Descend the leftmost child so range scans can start
				// at the first record.
				child = 0
			}
			next, err := indexChildPointer(node.Records[child])
			if err != nil {
				return nil, 0, fmt.Errorf("node %d record %d: %w", index, child, err)
			}
			index = next

		default:
			return nil, 0, fmt.Errorf("%w: node %d has kind %d inside the tree",
				types.ErrCorruptNode, index, node.Descriptor.Kind)
		}
	}
}

// indexChildPointer extracts the child node number from an index record.
func indexChildPointer(record []byte) (uint32, error) {
	if len(record) < 2 {
		return 0, fmt.Errorf("%w: index record of %d bytes", types.ErrCorruptNode, len(record))
	}
	keyLength := int(binary.BigEndian.Uint16(record))
	end := 2 + keyLength
	if keyLength%2 != 0 {
		end++ // keys are padded to a two-byte boundary
	}
	if end+4 > len(record) {
		return 0, fmt.Errorf("%w: index record of %d bytes cannot hold a child pointer after a %d byte key",
			types.ErrCorruptNode, len(record), keyLength)
	}
	return binary.BigEndian.Uint32(record[end:]), nil
}

// IsNotFound reports whether err represents a clean lookup miss.
func IsNotFound(err error) bool {
	return errors.Is(err, types.ErrNotFound)
}
