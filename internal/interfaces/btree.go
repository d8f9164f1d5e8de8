package interfaces

import "github.com/deploymenttheory/go-hfsplus/internal/types"

// KeyCompare orders the key at the start of a raw B-tree record against a
// search key held by the closure. It returns a negative value when the
// record key sorts before the search key, zero when they match, and a
// positive value when the record key sorts after it. Decoding errors
// surface so that a malformed key aborts the traversal instead of being
// silently skipped.
type KeyCompare func(record []byte) (int, error)

// OverflowExtentProvider supplies extent records beyond the eight inline
// descriptors of a fork. startBlock is the fork-relative allocation block
// at which the inline map ran out. Implementations return
// types.ErrNotFound when no overflow record exists for that position.
type OverflowExtentProvider interface {
	OverflowExtents(fileID types.CatalogNodeID, forkType uint8, startBlock uint32) (types.ExtentRecord, error)
}
