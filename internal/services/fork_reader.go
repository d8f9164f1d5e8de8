package services

import (
	"errors"
	"fmt"
	"sort"

	"github.com/deploymenttheory/go-hfsplus/internal/interfaces"
	"github.com/deploymenttheory/go-hfsplus/internal/types"
)

// ForkReader presents one fork of a file as a contiguous logical byte
// stream, hiding the mapping from logical positions through allocation
// blocks to physical image offsets. All eight inline extents are consumed
// first; when they do not cover the fork, additional extent records are
// pulled from the overflow provider until the map is complete.
type ForkReader struct {
	source      interfaces.ByteSource
	blockSize   uint32
	logicalSize uint64
	extents     []types.ExtentDescriptor
	// starts[i] is the fork-relative allocation block at which extents[i]
	// begins; starts has one extra trailing entry holding the total block
	// count, so extent lookup is a plain binary search.
	starts []uint64
}

// NewForkReader builds the complete extent map for a fork. fileID and
// forkType identify the fork in the extents overflow tree; overflow may be
// nil for forks that must be fully described inline, in which case a fork
// whose inline extents fall short fails with types.ErrIncompleteExtentMap.
func NewForkReader(source interfaces.ByteSource, blockSize uint32, fileID types.CatalogNodeID, forkType uint8, fork types.ForkData, overflow interfaces.OverflowExtentProvider) (*ForkReader, error) {
	if blockSize == 0 {
		return nil, fmt.Errorf("fork reader for file %d: allocation block size is zero", fileID)
	}

	needed := (fork.LogicalSize + uint64(blockSize) - 1) / uint64(blockSize)

	fr := &ForkReader{
		source:      source,
		blockSize:   blockSize,
		logicalSize: fork.LogicalSize,
	}

	mapped := fr.appendExtents(fork.Extents)
	for mapped < needed {
		if overflow == nil {
			return nil, fmt.Errorf("%w: file %d fork 0x%02x maps %d of %d blocks and no overflow tree is available",
				types.ErrIncompleteExtentMap, fileID, forkType, mapped, needed)
		}
		record, err := overflow.OverflowExtents(fileID, forkType, uint32(mapped))
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return nil, fmt.Errorf("%w: file %d fork 0x%02x maps %d of %d blocks and the overflow tree has no record at block %d",
					types.ErrIncompleteExtentMap, fileID, forkType, mapped, needed, mapped)
			}
			return nil, fmt.Errorf("failed to fetch overflow extents for file %d at block %d: %w", fileID, mapped, err)
		}
		added := fr.appendExtents(record)
		if added == mapped {
			// An overflow record that contributes nothing would loop forever.
			return nil, fmt.Errorf("%w: file %d fork 0x%02x overflow record at block %d is empty",
				types.ErrIncompleteExtentMap, fileID, forkType, mapped)
		}
		mapped = added
	}

	fr.starts = append(fr.starts, mapped)
	return fr, nil
}

// appendExtents adds the non-empty descriptors of record to the map and
// returns the total block count mapped so far. An empty descriptor
// terminates the record; descriptors after it are padding.
func (fr *ForkReader) appendExtents(record types.ExtentRecord) uint64 {
	var total uint64
	if n := len(fr.starts); n > 0 {
		total = fr.starts[n-1] + uint64(fr.extents[n-1].BlockCount)
	}
	for _, ext := range record {
		if ext.IsEmpty() {
			break
		}
		fr.extents = append(fr.extents, ext)
		fr.starts = append(fr.starts, total)
		total += uint64(ext.BlockCount)
	}
	return total
}

// Size returns the logical length of the fork in bytes.
func (fr *ForkReader) Size() int64 {
	return int64(fr.logicalSize)
}

// BlockCount returns the number of allocation blocks the extent map covers.
func (fr *ForkReader) BlockCount() uint64 {
	return fr.starts[len(fr.starts)-1]
}

// ReadAt implements io.ReaderAt over the logical byte stream. A read that
// starts inside the fork but extends past its logical size returns the
// available prefix together with an error wrapping types.ErrShortRead.
// A read starting at or past the logical size reads nothing.
func (fr *ForkReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: negative fork offset %d", types.ErrOutOfBounds, off)
	}
	if uint64(off) >= fr.logicalSize {
		return 0, fmt.Errorf("%w: read at %d in fork of %d bytes", types.ErrShortRead, off, fr.logicalSize)
	}

	want := len(p)
	short := false
	if uint64(off)+uint64(want) > fr.logicalSize {
		want = int(fr.logicalSize - uint64(off))
		short = true
	}

	n := 0
	for n < want {
		pos := uint64(off) + uint64(n)
		block := pos / uint64(fr.blockSize)
		intra := pos % uint64(fr.blockSize)

		// First extent whose start block is beyond pos, minus one.
		i := sort.Search(len(fr.extents), func(i int) bool {
			return fr.starts[i] > block
		}) - 1
		if i < 0 {
			return n, fmt.Errorf("%w: no extent covers fork block %d", types.ErrIncompleteExtentMap, block)
		}
		ext := fr.extents[i]

		physical := int64(ext.StartBlock)*int64(fr.blockSize) +
			int64(block-fr.starts[i])*int64(fr.blockSize) + int64(intra)
		remainInExtent := uint64(ext.BlockCount)*uint64(fr.blockSize) -
			(block-fr.starts[i])*uint64(fr.blockSize) - intra

		chunk := uint64(want - n)
		if chunk > remainInExtent {
			chunk = remainInExtent
		}

		read, err := fr.source.ReadAt(p[n:n+int(chunk)], physical)
		n += read
		if err != nil {
			return n, fmt.Errorf("failed to read fork extent %d at image offset %d: %w", i, physical, err)
		}
	}

	if short {
		return n, fmt.Errorf("%w: read of %d bytes at %d truncated to %d by fork size %d",
			types.ErrShortRead, len(p), off, n, fr.logicalSize)
	}
	return n, nil
}

// ReadRange reads length bytes starting at off, allocating the result.
func (fr *ForkReader) ReadRange(off int64, length int) ([]byte, error) {
	buf := make([]byte, length)
	if _, err := fr.ReadAt(buf, off); err != nil {
		return nil, err
	}
	return buf, nil
}
