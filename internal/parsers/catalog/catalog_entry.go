package catalog

import (
	"fmt"

	"github.com/deploymenttheory/go-hfsplus/internal/types"
)

// MakeEntry assembles the uniform CatalogEntry view from a leaf record and
// the key it was found under. Thread records carry no object metadata of
// their own and cannot be turned into entries.
func MakeEntry(key types.CatalogKey, record types.CatalogRecord) (types.CatalogEntry, error) {
	switch r := record.(type) {
	case *types.CatalogFolder:
		return types.CatalogEntry{
			ID:             r.FolderID,
			ParentID:       key.ParentID,
			Name:           key.Name,
			Kind:           types.KindFolder,
			CreateDate:     r.CreateDate,
			ContentModDate: r.ContentModDate,
			Permissions:    r.Permissions,
		}, nil
	case *types.CatalogFile:
		return types.CatalogEntry{
			ID:             r.FileID,
			ParentID:       key.ParentID,
			Name:           key.Name,
			Kind:           types.KindFile,
			CreateDate:     r.CreateDate,
			ContentModDate: r.ContentModDate,
			Permissions:    r.Permissions,
			FileSize:       r.DataFork.LogicalSize,
			DataFork:       r.DataFork,
			ResourceFork:   r.ResourceFork,
		}, nil
	default:
		return types.CatalogEntry{}, fmt.Errorf("%w: record type 0x%04X has no entry view",
			types.ErrInvalidRecordType, uint16(record.CatalogRecordType()))
	}
}
