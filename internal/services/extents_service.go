package services

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/deploymenttheory/go-hfsplus/internal/interfaces"
	"github.com/deploymenttheory/go-hfsplus/internal/parsers/extents"
	"github.com/deploymenttheory/go-hfsplus/internal/types"
)

// ExtentsOverflowService answers overflow extent queries from the extents
// overflow B-tree. The extents file itself must be fully described by the
// eight inline descriptors in the volume header, so its fork reader is
// built without an overflow provider and the recursion grounds out.
type ExtentsOverflowService struct {
	tree   *BTreeService
	logger *zap.Logger
}

// NewExtentsOverflowService opens the extents overflow tree from the fork
// recorded in the volume header.
func NewExtentsOverflowService(source interfaces.ByteSource, vh *types.VolumeHeader, cacheSize int, logger *zap.Logger) (*ExtentsOverflowService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fork, err := NewForkReader(source, vh.BlockSize, types.ExtentsFileID, types.DataForkType, vh.ExtentsFile, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to map the extents overflow file: %w", err)
	}
	tree, err := NewBTreeService(fork, cacheSize, logger.Named("extents"))
	if err != nil {
		return nil, fmt.Errorf("failed to open the extents overflow tree: %w", err)
	}
	return &ExtentsOverflowService{tree: tree, logger: logger}, nil
}

// Tree exposes the underlying B-tree, mainly for header inspection.
func (s *ExtentsOverflowService) Tree() *BTreeService {
	return s.tree
}

// OverflowExtents returns the extent record keyed by exactly
// (fileID, forkType, startBlock). Records are keyed by the fork-relative
// block at which they begin, so a caller extending an inline map queries
// with the number of blocks mapped so far.
func (s *ExtentsOverflowService) OverflowExtents(fileID types.CatalogNodeID, forkType uint8, startBlock uint32) (types.ExtentRecord, error) {
	search := types.ExtentKey{
		ForkType:   forkType,
		FileID:     fileID,
		StartBlock: startBlock,
	}

	record, err := s.tree.LookupExact(func(record []byte) (int, error) {
		key, _, err := extents.DecodeExtentKey(record, 0)
		if err != nil {
			return 0, err
		}
		return key.Compare(search), nil
	})
	if err != nil {
		return types.ExtentRecord{}, err
	}

	// The record body follows the 12 byte key.
	rec, _, err := extents.DecodeExtentDataRecord(record, 2+types.ExtentKeyLength)
	if err != nil {
		return types.ExtentRecord{}, fmt.Errorf("failed to decode overflow extents for file %d: %w", fileID, err)
	}
	return rec, nil
}
