package services

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/deploymenttheory/go-hfsplus/internal/interfaces"
	"github.com/deploymenttheory/go-hfsplus/internal/parsers/catalog"
	"github.com/deploymenttheory/go-hfsplus/internal/types"
)

// CatalogService resolves names, folder listings and paths against the
// catalog B-tree. Name comparison honours the tree's key compare type:
// case-insensitive folding on standard HFS Plus, binary comparison on
// case-sensitive HFSX volumes.
type CatalogService struct {
	tree          *BTreeService
	caseSensitive bool
	logger        *zap.Logger
}

// NewCatalogService opens the catalog tree from the fork recorded in the
// volume header. overflow supplies extents when the catalog file itself
// spills past its inline descriptors.
func NewCatalogService(source interfaces.ByteSource, vh *types.VolumeHeader, overflow interfaces.OverflowExtentProvider, cacheSize int, logger *zap.Logger) (*CatalogService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fork, err := NewForkReader(source, vh.BlockSize, types.CatalogFileID, types.DataForkType, vh.CatalogFile, overflow)
	if err != nil {
		return nil, fmt.Errorf("failed to map the catalog file: %w", err)
	}
	tree, err := NewBTreeService(fork, cacheSize, logger.Named("catalog"))
	if err != nil {
		return nil, fmt.Errorf("failed to open the catalog tree: %w", err)
	}

	cs := &CatalogService{
		tree:          tree,
		caseSensitive: tree.Header().KeyCompareType == types.KeyCompareBinary,
		logger:        logger,
	}
	return cs, nil
}

// Tree exposes the underlying B-tree, mainly for header inspection.
func (s *CatalogService) Tree() *BTreeService {
	return s.tree
}

// CaseSensitive reports whether the catalog compares names byte for byte.
func (s *CatalogService) CaseSensitive() bool {
	return s.caseSensitive
}

// keyCompare builds a KeyCompare closure ordering catalog records against
// the search key. Names arrive in whatever form the caller typed, so they
// are decomposed the way the catalog stores them before comparing.
func (s *CatalogService) keyCompare(parentID types.CatalogNodeID, name string) interfaces.KeyCompare {
	search := types.CatalogKey{ParentID: parentID, Name: catalog.NormalizeName(name)}
	return func(record []byte) (int, error) {
		key, _, err := catalog.DecodeCatalogKey(record, 0)
		if err != nil {
			return 0, err
		}
		return catalog.CompareCatalogKeys(key, search, s.caseSensitive), nil
	}
}

// decodeRecord splits a raw leaf record into its key and body.
func decodeRecord(record []byte) (types.CatalogKey, types.CatalogRecord, error) {
	key, next, err := catalog.DecodeCatalogKey(record, 0)
	if err != nil {
		return types.CatalogKey{}, nil, err
	}
	body, _, err := catalog.DecodeCatalogRecord(record, next)
	if err != nil {
		return types.CatalogKey{}, nil, err
	}
	return key, body, nil
}

// LookupEntry finds the file or folder called name inside parentID.
func (s *CatalogService) LookupEntry(parentID types.CatalogNodeID, name string) (types.CatalogEntry, error) {
	record, err := s.tree.LookupExact(s.keyCompare(parentID, name))
	if err != nil {
		return types.CatalogEntry{}, err
	}
	key, body, err := decodeRecord(record)
	if err != nil {
		return types.CatalogEntry{}, err
	}
	return catalog.MakeEntry(key, body)
}

// ThreadFor returns the thread record of the file or folder with the given
// ID. Thread records are keyed by (ID, empty name) and point back at the
// object's parent and name.
func (s *CatalogService) ThreadFor(id types.CatalogNodeID) (*types.CatalogThread, error) {
	record, err := s.tree.LookupExact(s.keyCompare(id, ""))
	if err != nil {
		return nil, err
	}
	_, body, err := decodeRecord(record)
	if err != nil {
		return nil, err
	}
	thread, ok := body.(*types.CatalogThread)
	if !ok {
		return nil, fmt.Errorf("%w: record keyed (%d, \"\") is type %d, expected a thread",
			types.ErrInvalidRecordType, id, body.CatalogRecordType())
	}
	return thread, nil
}

// EntryByID resolves an ID to its catalog entry by following the object's
// thread record back to its parent and name.
func (s *CatalogService) EntryByID(id types.CatalogNodeID) (types.CatalogEntry, error) {
	thread, err := s.ThreadFor(id)
	if err != nil {
		return types.CatalogEntry{}, err
	}
	return s.LookupEntry(thread.ParentID, thread.Name)
}

// Children lists the immediate contents of a folder in catalog key order.
// Thread records are filtered out of the listing.
func (s *CatalogService) Children(folderID types.CatalogNodeID) ([]types.CatalogEntry, error) {
	var entries []types.CatalogEntry

	// Keys for a folder's contents are contiguous: they all carry the
	// folder's ID as parent, starting right after the folder's own thread
	// record at (folderID, "").
	err := s.tree.ScanRange(s.keyCompare(folderID, ""), func(record []byte) (bool, error) {
		key, body, err := decodeRecord(record)
		if err != nil {
			return false, err
		}
		if key.ParentID != folderID {
			return false, nil
		}
		if _, ok := body.(*types.CatalogThread); ok {
			return true, nil
		}
		entry, err := catalog.MakeEntry(key, body)
		if err != nil {
			return false, err
		}
		entries = append(entries, entry)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// PathFor reconstructs the absolute path of an object by walking thread
// records up to the root folder. Components are joined with "/" and the
// volume root is "/".
func (s *CatalogService) PathFor(id types.CatalogNodeID) (string, error) {
	if id == types.RootFolderID {
		return "/", nil
	}

	var components []string
	visited := map[types.CatalogNodeID]bool{}
	for id != types.RootFolderID {
		if visited[id] {
			return "", fmt.Errorf("%w: catalog ID %d repeats on its own ancestor chain", types.ErrCycleDetected, id)
		}
		visited[id] = true

		thread, err := s.ThreadFor(id)
		if err != nil {
			return "", fmt.Errorf("failed to resolve ancestor %d: %w", id, err)
		}
		components = append(components, thread.Name)
		id = thread.ParentID
		if id == types.RootParentID {
			break
		}
	}

	// Components were collected leaf first.
	for i, j := 0, len(components)-1; i < j; i, j = i+1, j-1 {
		components[i], components[j] = components[j], components[i]
	}
	return "/" + strings.Join(components, "/"), nil
}

// EntryForPath walks an absolute slash-separated path from the root folder.
func (s *CatalogService) EntryForPath(path string) (types.CatalogEntry, error) {
	parent := types.RootFolderID
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return s.EntryByID(types.RootFolderID)
	}

	components := strings.Split(trimmed, "/")
	var entry types.CatalogEntry
	for i, component := range components {
		var err error
		entry, err = s.LookupEntry(parent, component)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return types.CatalogEntry{}, fmt.Errorf("%w: %q", types.ErrNotFound, "/"+strings.Join(components[:i+1], "/"))
			}
			return types.CatalogEntry{}, err
		}
		if i < len(components)-1 {
			if entry.Kind != types.KindFolder {
				return types.CatalogEntry{}, fmt.Errorf("%w: %q is not a folder", types.ErrNotFound, component)
			}
			parent = entry.ID
		}
	}
	return entry, nil
}

// WalkEntries visits every file and folder entry in the catalog in key
// order. Thread records are skipped. visit returns false to stop early.
func (s *CatalogService) WalkEntries(visit func(entry types.CatalogEntry) (bool, error)) error {
	return s.tree.WalkLeaves(func(record []byte) (bool, error) {
		key, body, err := decodeRecord(record)
		if err != nil {
			return false, err
		}
		if _, ok := body.(*types.CatalogThread); ok {
			return true, nil
		}
		entry, err := catalog.MakeEntry(key, body)
		if err != nil {
			return false, err
		}
		return visit(entry)
	})
}
