package services

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/deploymenttheory/go-hfsplus/internal/disk"
	"github.com/deploymenttheory/go-hfsplus/internal/interfaces"
	"github.com/deploymenttheory/go-hfsplus/internal/parsers/volumes"
	"github.com/deploymenttheory/go-hfsplus/internal/types"
)

// VolumeService ties the volume header, the extents overflow tree and the
// catalog tree together into one read-only view of an HFS Plus volume.
type VolumeService struct {
	source  interfaces.ByteSource
	closer  io.Closer
	header  *types.VolumeHeader
	extents *ExtentsOverflowService
	catalog *CatalogService
	config  *disk.ImageConfig
	logger  *zap.Logger
}

// OpenVolume opens a disk image by path and mounts the volume found in it.
func OpenVolume(path string, config *disk.ImageConfig, logger *zap.Logger) (*VolumeService, error) {
	if config == nil {
		loaded, err := disk.LoadImageConfig()
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	device, err := disk.OpenImage(path, config)
	if err != nil {
		return nil, err
	}

	vs, err := NewVolumeService(device, config, logger)
	if err != nil {
		device.Close()
		return nil, err
	}
	vs.closer = device
	return vs, nil
}

// NewVolumeService mounts the volume presented by source. The primary
// volume header at byte 1024 is authoritative; if it is unreadable the
// alternate copy 1024 bytes before the end of the volume is tried.
func NewVolumeService(source interfaces.ByteSource, config *disk.ImageConfig, logger *zap.Logger) (*VolumeService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config == nil {
		config = &disk.ImageConfig{NodeCacheSize: 256}
	}

	header, err := readVolumeHeader(source, types.VolumeHeaderOffset)
	if err != nil {
		alternate := source.Size() - types.VolumeHeaderOffset
		if alternate <= 0 {
			return nil, err
		}
		logger.Warn("primary volume header unreadable, trying the alternate copy", zap.Error(err))
		altHeader, altErr := readVolumeHeader(source, alternate)
		if altErr != nil {
			return nil, fmt.Errorf("primary volume header: %w (alternate also failed: %v)", err, altErr)
		}
		header = altHeader
	}

	extents, err := NewExtentsOverflowService(source, header, config.NodeCacheSize, logger)
	if err != nil {
		return nil, err
	}
	catalog, err := NewCatalogService(source, header, extents, config.NodeCacheSize, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("mounted volume",
		zap.Bool("hfsx", header.IsHFSX()),
		zap.Bool("journaled", header.IsJournaled()),
		zap.Uint32("block_size", header.BlockSize),
		zap.Uint32("file_count", header.FileCount),
		zap.Uint32("folder_count", header.FolderCount))

	return &VolumeService{
		source:  source,
		header:  header,
		extents: extents,
		catalog: catalog,
		config:  config,
		logger:  logger,
	}, nil
}

func readVolumeHeader(source interfaces.ByteSource, offset int64) (*types.VolumeHeader, error) {
	buf := make([]byte, types.VolumeHeaderSize)
	if _, err := source.ReadAt(buf, offset); err != nil {
		return nil, fmt.Errorf("failed to read volume header at %d: %w", offset, err)
	}
	header, _, err := volumes.DecodeVolumeHeader(buf, 0)
	if err != nil {
		return nil, err
	}
	return header, nil
}

// Close releases the underlying image, if this service opened it.
func (vs *VolumeService) Close() error {
	if vs.closer != nil {
		return vs.closer.Close()
	}
	return nil
}

// Header returns the decoded volume header.
func (vs *VolumeService) Header() *types.VolumeHeader {
	return vs.header
}

// Catalog returns the catalog service.
func (vs *VolumeService) Catalog() *CatalogService {
	return vs.catalog
}

// Extents returns the extents overflow service.
func (vs *VolumeService) Extents() *ExtentsOverflowService {
	return vs.extents
}

// UUID returns the volume identifier kept in the last eight bytes of the
// finder info area, rendered as a UUID-style string. The identifier is an
// opaque 64-bit value, so only the low half of the UUID is populated.
func (vs *VolumeService) UUID() uuid.UUID {
	var id uuid.UUID
	raw := vs.header.VolumeID()
	for i := 0; i < 8; i++ {
		id[8+i] = byte(raw >> (56 - 8*i))
	}
	return id
}

// JournalInfo reads and decodes the journal info block, when the volume is
// journaled. Volumes without a journal return types.ErrNotFound.
func (vs *VolumeService) JournalInfo() (*types.JournalInfoBlock, error) {
	if !vs.header.IsJournaled() || vs.header.JournalInfoBlock == 0 {
		return nil, fmt.Errorf("%w: volume carries no journal", types.ErrNotFound)
	}

	offset := int64(vs.header.JournalInfoBlock) * int64(vs.header.BlockSize)
	buf := make([]byte, types.JournalInfoBlockSize)
	if _, err := vs.source.ReadAt(buf, offset); err != nil {
		return nil, fmt.Errorf("failed to read journal info block %d: %w", vs.header.JournalInfoBlock, err)
	}
	jib, _, err := volumes.DecodeJournalInfoBlock(buf, 0)
	if err != nil {
		return nil, err
	}
	return jib, nil
}

// BlockAllocated reports whether the allocation file marks the given
// allocation block as in use.
func (vs *VolumeService) BlockAllocated(block uint32) (bool, error) {
	if block >= vs.header.TotalBlocks {
		return false, fmt.Errorf("%w: block %d beyond volume of %d blocks", types.ErrOutOfBounds, block, vs.header.TotalBlocks)
	}

	fork, err := NewForkReader(vs.source, vs.header.BlockSize, types.AllocationFileID, types.DataForkType, vs.header.AllocationFile, vs.extents)
	if err != nil {
		return false, fmt.Errorf("failed to map the allocation file: %w", err)
	}

	buf, err := fork.ReadRange(int64(block/8), 1)
	if err != nil {
		return false, err
	}
	return buf[0]&(0x80>>(block%8)) != 0, nil
}

// FileReader opens a fork of a catalog file as a logical byte stream.
func (vs *VolumeService) FileReader(entry types.CatalogEntry, forkType uint8) (*ForkReader, error) {
	if entry.Kind != types.KindFile {
		return nil, fmt.Errorf("%w: %q is a folder, not a file", types.ErrInvalidRecordType, entry.Name)
	}
	fork := entry.DataFork
	if forkType == types.ResourceForkType {
		fork = entry.ResourceFork
	}
	return NewForkReader(vs.source, vs.header.BlockSize, entry.ID, forkType, fork, vs.extents)
}

// ExtractResult reports what Extract wrote.
type ExtractResult struct {
	Bytes  int64
	Digest uint64 // XXH64 of the extracted content
	Took   time.Duration
}

// Extract copies the data fork of a catalog file to w and returns the byte
// count and content digest.
func (vs *VolumeService) Extract(entry types.CatalogEntry, w io.Writer) (*ExtractResult, error) {
	start := time.Now()

	fork, err := vs.FileReader(entry, types.DataForkType)
	if err != nil {
		return nil, err
	}

	digest := xxhash.New()
	out := io.MultiWriter(w, digest)

	var written int64
	buf := make([]byte, 1024*1024)
	for written < fork.Size() {
		chunk := int64(len(buf))
		if remaining := fork.Size() - written; remaining < chunk {
			chunk = remaining
		}
		n, err := fork.ReadAt(buf[:chunk], written)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return nil, fmt.Errorf("failed to write extracted data: %w", werr)
			}
			written += int64(n)
		}
		if err != nil {
			return nil, err
		}
	}

	return &ExtractResult{
		Bytes:  written,
		Digest: digest.Sum64(),
		Took:   time.Since(start),
	}, nil
}

// Discover walks the catalog and returns the paths of all entries whose
// absolute path matches the doublestar pattern. Skip patterns from the
// image configuration are applied first.
func (vs *VolumeService) Discover(pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid glob pattern %q", pattern)
	}

	var matches []string
	err := vs.catalog.WalkEntries(func(entry types.CatalogEntry) (bool, error) {
		path, err := vs.catalog.PathFor(entry.ID)
		if err != nil {
			// Orphaned entries without a thread record are skipped.
			if errors.Is(err, types.ErrNotFound) {
				return true, nil
			}
			return false, err
		}
		if vs.skipped(path) {
			return true, nil
		}
		ok, err := doublestar.Match(pattern, path[1:])
		if err != nil {
			return false, err
		}
		if ok {
			matches = append(matches, path)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// skipped applies the configured skip patterns to a volume-absolute path.
func (vs *VolumeService) skipped(path string) bool {
	for _, pattern := range vs.config.SkipPatterns {
		if ok, err := doublestar.Match(pattern, path[1:]); err == nil && ok {
			return true
		}
	}
	return false
}
