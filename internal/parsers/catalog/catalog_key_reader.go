// Package catalog decodes the keys and leaf records of the catalog file: the
// four record variants (folder, file, folder thread, file thread), BSD
// permission info, and the UTF-16 node names carried in keys and threads. It
// also assembles the uniform CatalogEntry view consumed by directory listing
// and path resolution.
package catalog

import (
	"fmt"

	"github.com/deploymenttheory/go-hfsplus/internal/parsers/primitives"
	"github.com/deploymenttheory/go-hfsplus/internal/types"
)

// DecodeCatalogKey decodes a catalog key: a 16-bit key length (excluding the
// length field itself), the parent folder ID, and the node name. The returned
// offset accounts for the whole key, so the record that follows it can be
// decoded sequentially.
func DecodeCatalogKey(data []byte, offset int) (types.CatalogKey, int, error) {
	var key types.CatalogKey

	keyLength, err := primitives.ReadU16(data, offset)
	if err != nil {
		return key, offset, err
	}
	if keyLength < types.CatalogKeyMinimumLength || keyLength > types.CatalogKeyMaximumLength {
		return key, offset, fmt.Errorf("%w: catalog key length %d outside [%d, %d]",
			types.ErrInvalidRecordType, keyLength, types.CatalogKeyMinimumLength, types.CatalogKeyMaximumLength)
	}
	if offset+2+int(keyLength) > len(data) {
		return key, offset, fmt.Errorf("%w: catalog key of %d bytes at offset %d exceeds %d available",
			types.ErrTruncated, keyLength, offset, len(data))
	}

	parentID, err := primitives.ReadU32(data, offset+2)
	if err != nil {
		return key, offset, err
	}
	key.ParentID = types.CatalogNodeID(parentID)

	name, namesEnd, err := DecodeNodeName(data, offset+6)
	if err != nil {
		return key, offset, err
	}
	key.Name = name

	// The name must account for the entire declared key length.
	if namesEnd != offset+2+int(keyLength) {
		return key, offset, fmt.Errorf("%w: catalog key declares %d bytes but its name ends at %d",
			types.ErrTruncated, keyLength, namesEnd-offset-2)
	}

	return key, namesEnd, nil
}

// CompareCatalogKeys orders catalog keys by parent ID, then by name under the
// tree's comparison rule. This is the comparator the catalog tree's index
// descent and leaf scans use.
func CompareCatalogKeys(a, b types.CatalogKey, caseSensitive bool) int {
	switch {
	case a.ParentID < b.ParentID:
		return -1
	case a.ParentID > b.ParentID:
		return 1
	}
	return CompareNames(a.Name, b.Name, caseSensitive)
}
