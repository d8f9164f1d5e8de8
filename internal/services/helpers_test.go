package services

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/deploymenttheory/go-hfsplus/internal/types"
)

// Encoders assembling on-disk structures for the synthetic test volume.
// All fields are big-endian per the on-disk format.

func encodeNodeName(name string) []byte {
	units := utf16.Encode([]rune(name))
	buf := make([]byte, 2+2*len(units))
	binary.BigEndian.PutUint16(buf, uint16(len(units)))
	for i, u := range units {
		binary.BigEndian.PutUint16(buf[2+2*i:], u)
	}
	return buf
}

func encodeCatalogKey(parentID types.CatalogNodeID, name string) []byte {
	encodedName := encodeNodeName(name)
	buf := make([]byte, 0, 6+len(encodedName))
	buf = binary.BigEndian.AppendUint16(buf, uint16(4+len(encodedName)))
	buf = binary.BigEndian.AppendUint32(buf, uint32(parentID))
	return append(buf, encodedName...)
}

func encodeExtentKey(forkType uint8, fileID types.CatalogNodeID, startBlock uint32) []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint16(buf, types.ExtentKeyLength)
	buf[2] = forkType
	binary.BigEndian.PutUint32(buf[4:], uint32(fileID))
	binary.BigEndian.PutUint32(buf[8:], startBlock)
	return buf
}

func encodeForkData(logicalSize uint64, totalBlocks uint32, extents ...types.ExtentDescriptor) []byte {
	buf := make([]byte, types.ForkDataSize)
	binary.BigEndian.PutUint64(buf, logicalSize)
	binary.BigEndian.PutUint32(buf[8:], 0) // clump size
	binary.BigEndian.PutUint32(buf[12:], totalBlocks)
	for i, ext := range extents {
		binary.BigEndian.PutUint32(buf[16+8*i:], ext.StartBlock)
		binary.BigEndian.PutUint32(buf[20+8*i:], ext.BlockCount)
	}
	return buf
}

func encodeFolderRecord(folderID types.CatalogNodeID, valence uint32) []byte {
	buf := make([]byte, types.FolderRecordSize)
	binary.BigEndian.PutUint16(buf, uint16(types.FolderRecordType))
	binary.BigEndian.PutUint32(buf[4:], valence)
	binary.BigEndian.PutUint32(buf[8:], uint32(folderID))
	binary.BigEndian.PutUint16(buf[42:], types.ModeDirectory|0o755) // file mode
	return buf
}

func encodeFileRecord(fileID types.CatalogNodeID, dataFork, resourceFork []byte) []byte {
	buf := make([]byte, 88)
	binary.BigEndian.PutUint16(buf, uint16(types.FileRecordType))
	binary.BigEndian.PutUint32(buf[8:], uint32(fileID))
	binary.BigEndian.PutUint16(buf[42:], types.ModeRegular|0o644)
	if resourceFork == nil {
		resourceFork = encodeForkData(0, 0)
	}
	buf = append(buf, dataFork...)
	return append(buf, resourceFork...)
}

func encodeThreadRecord(recordType int16, parentID types.CatalogNodeID, name string) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint16(buf, uint16(recordType))
	binary.BigEndian.PutUint32(buf[4:], uint32(parentID))
	return append(buf, encodeNodeName(name)...)
}

// buildTreeNode lays out a leaf, index or map node: descriptor, records
// packed from offset 14, and the offset table growing backward from the
// node end.
func buildTreeNode(nodeSize int, desc types.BTNodeDescriptor, records ...[]byte) []byte {
	buf := make([]byte, nodeSize)
	binary.BigEndian.PutUint32(buf, desc.FLink)
	binary.BigEndian.PutUint32(buf[4:], desc.BLink)
	buf[8] = byte(desc.Kind)
	buf[9] = desc.Height
	binary.BigEndian.PutUint16(buf[10:], uint16(len(records)))

	pos := types.BTNodeDescriptorSize
	for i, record := range records {
		binary.BigEndian.PutUint16(buf[nodeSize-2*(i+1):], uint16(pos))
		copy(buf[pos:], record)
		pos += len(record)
	}
	binary.BigEndian.PutUint16(buf[nodeSize-2*(len(records)+1):], uint16(pos))
	return buf
}

// indexRecord is a key plus a big-endian child node number, padded the way
// index nodes pad odd-length keys.
func indexRecord(key []byte, child uint32) []byte {
	record := append([]byte{}, key...)
	if len(record)%2 != 0 {
		record = append(record, 0)
	}
	return binary.BigEndian.AppendUint32(record, child)
}

func encodeHeaderRecord(hr types.BTHeaderRec) []byte {
	buf := make([]byte, types.BTHeaderRecSize)
	binary.BigEndian.PutUint16(buf, hr.TreeDepth)
	binary.BigEndian.PutUint32(buf[2:], hr.RootNode)
	binary.BigEndian.PutUint32(buf[6:], hr.LeafRecords)
	binary.BigEndian.PutUint32(buf[10:], hr.FirstLeafNode)
	binary.BigEndian.PutUint32(buf[14:], hr.LastLeafNode)
	binary.BigEndian.PutUint16(buf[18:], hr.NodeSize)
	binary.BigEndian.PutUint16(buf[20:], hr.MaxKeyLength)
	binary.BigEndian.PutUint32(buf[22:], hr.TotalNodes)
	binary.BigEndian.PutUint32(buf[26:], hr.FreeNodes)
	binary.BigEndian.PutUint32(buf[32:], hr.ClumpSize)
	buf[36] = hr.BTreeType
	buf[37] = hr.KeyCompareType
	binary.BigEndian.PutUint32(buf[38:], hr.Attributes)
	return buf
}

// buildHeaderNode assembles node 0: descriptor, header record, user data
// record, map record, and the four-entry offset table.
func buildHeaderNode(hr types.BTHeaderRec) []byte {
	nodeSize := int(hr.NodeSize)
	buf := make([]byte, nodeSize)
	buf[8] = byte(types.BTHeaderNode)
	binary.BigEndian.PutUint16(buf[10:], 3)

	copy(buf[types.BTNodeDescriptorSize:], encodeHeaderRecord(hr))

	mapStart := types.BTNodeDescriptorSize + types.BTHeaderRecSize + types.BTUserDataRecSize
	mapEnd := nodeSize - 4*types.BTOffsetEntrySize
	// Mark every node in use; tests that care about the map override it.
	for i := 0; i < int(hr.TotalNodes+7)/8 && mapStart+i < mapEnd; i++ {
		buf[mapStart+i] = 0xFF
	}

	binary.BigEndian.PutUint16(buf[nodeSize-2:], uint16(types.BTNodeDescriptorSize))
	binary.BigEndian.PutUint16(buf[nodeSize-4:], uint16(types.BTNodeDescriptorSize+types.BTHeaderRecSize))
	binary.BigEndian.PutUint16(buf[nodeSize-6:], uint16(mapStart))
	binary.BigEndian.PutUint16(buf[nodeSize-8:], uint16(mapEnd))
	return buf
}

// leafRecord glues a key and a record body together.
func leafRecord(key, body []byte) []byte {
	return append(append([]byte{}, key...), body...)
}

func encodeExtentRecordBody(exts ...types.ExtentDescriptor) []byte {
	buf := make([]byte, 8*types.ExtentsPerRecord)
	for i, ext := range exts {
		binary.BigEndian.PutUint32(buf[8*i:], ext.StartBlock)
		binary.BigEndian.PutUint32(buf[8*i+4:], ext.BlockCount)
	}
	return buf
}

// Layout of the synthetic test volume. 64 allocation blocks of 512 bytes,
// a three-level catalog tree of 1024-byte nodes, and one file fragmented
// enough to need the extents overflow tree:
//
//	/                   folder, ID 2
//	/Documents          folder, ID 16
//	/Documents/notes.txt  file, ID 18
//	/README.txt           file, ID 17
//	/frag.bin             file, ID 19, one inline extent plus overflow
const (
	tBlockSize   = 512
	tTotalBlocks = 64

	tDocumentsID types.CatalogNodeID = 16
	tReadmeID    types.CatalogNodeID = 17
	tNotesID     types.CatalogNodeID = 18
	tFragID      types.CatalogNodeID = 19

	tCatalogStart      = 10 // 7 nodes of 1024 bytes, blocks 10..23
	tExtentsStart      = 30 // 2 nodes of 512 bytes, blocks 30..31
	tAllocStart        = 33
	tReadmeStart       = 40
	tNotesStart        = 41
	tFragInlineStart   = 42
	tFragOverflowStart = 44
	tJournalInfoStart  = 50

	tVolumeName = "TestVol"
)

var (
	tReadmeContent = []byte("hello from the volume\n")
	tNotesContent  = []byte("meeting notes\n")
)

func tFragContent() []byte {
	content := make([]byte, 3*tBlockSize)
	for i := range content {
		content[i] = byte(i % 251)
	}
	return content
}

func buildCatalogTree() []byte {
	keyRoot := encodeCatalogKey(types.RootFolderID, "")
	keyDocs := encodeCatalogKey(types.RootFolderID, "Documents")
	keyFrag := encodeCatalogKey(types.RootFolderID, "frag.bin")
	keyReadme := encodeCatalogKey(types.RootFolderID, "README.txt")
	keyDocsThread := encodeCatalogKey(tDocumentsID, "")
	keyNotes := encodeCatalogKey(tDocumentsID, "notes.txt")
	keyReadmeThread := encodeCatalogKey(tReadmeID, "")
	keyNotesThread := encodeCatalogKey(tNotesID, "")
	keyFragThread := encodeCatalogKey(tFragID, "")

	leaf1 := buildTreeNode(1024,
		types.BTNodeDescriptor{FLink: 2, Kind: types.BTLeafNode, Height: 1},
		leafRecord(keyRoot, encodeThreadRecord(types.FolderThreadRecordType, types.RootParentID, tVolumeName)),
		leafRecord(keyDocs, encodeFolderRecord(tDocumentsID, 1)),
		leafRecord(keyFrag, encodeFileRecord(tFragID,
			encodeForkData(uint64(3*tBlockSize), 1, types.ExtentDescriptor{StartBlock: tFragInlineStart, BlockCount: 1}), nil)),
		leafRecord(keyReadme, encodeFileRecord(tReadmeID,
			encodeForkData(uint64(len(tReadmeContent)), 1, types.ExtentDescriptor{StartBlock: tReadmeStart, BlockCount: 1}), nil)),
	)
	leaf2 := buildTreeNode(1024,
		types.BTNodeDescriptor{FLink: 3, BLink: 1, Kind: types.BTLeafNode, Height: 1},
		leafRecord(keyDocsThread, encodeThreadRecord(types.FolderThreadRecordType, types.RootFolderID, "Documents")),
		leafRecord(keyNotes, encodeFileRecord(tNotesID,
			encodeForkData(uint64(len(tNotesContent)), 1, types.ExtentDescriptor{StartBlock: tNotesStart, BlockCount: 1}), nil)),
	)
	leaf3 := buildTreeNode(1024,
		types.BTNodeDescriptor{BLink: 2, Kind: types.BTLeafNode, Height: 1},
		leafRecord(keyReadmeThread, encodeThreadRecord(types.FileThreadRecordType, types.RootFolderID, "README.txt")),
		leafRecord(keyNotesThread, encodeThreadRecord(types.FileThreadRecordType, tDocumentsID, "notes.txt")),
		leafRecord(keyFragThread, encodeThreadRecord(types.FileThreadRecordType, types.RootFolderID, "frag.bin")),
	)
	index1 := buildTreeNode(1024,
		types.BTNodeDescriptor{FLink: 5, Kind: types.BTIndexNode, Height: 2},
		indexRecord(keyRoot, 1),
		indexRecord(keyDocsThread, 2),
	)
	index2 := buildTreeNode(1024,
		types.BTNodeDescriptor{BLink: 4, Kind: types.BTIndexNode, Height: 2},
		indexRecord(keyReadmeThread, 3),
	)
	root := buildTreeNode(1024,
		types.BTNodeDescriptor{Kind: types.BTIndexNode, Height: 3},
		indexRecord(keyRoot, 4),
		indexRecord(keyReadmeThread, 5),
	)

	header := buildHeaderNode(types.BTHeaderRec{
		TreeDepth:      3,
		RootNode:       6,
		LeafRecords:    9,
		FirstLeafNode:  1,
		LastLeafNode:   3,
		NodeSize:       1024,
		MaxKeyLength:   types.CatalogKeyMaximumLength,
		TotalNodes:     7,
		KeyCompareType: types.KeyCompareCaseFolding,
	})

	var tree []byte
	for _, node := range [][]byte{header, leaf1, leaf2, leaf3, index1, index2, root} {
		tree = append(tree, node...)
	}
	return tree
}

func buildExtentsTree() []byte {
	leaf := buildTreeNode(tBlockSize,
		types.BTNodeDescriptor{Kind: types.BTLeafNode, Height: 1},
		leafRecord(
			encodeExtentKey(types.DataForkType, tFragID, 1),
			encodeExtentRecordBody(types.ExtentDescriptor{StartBlock: tFragOverflowStart, BlockCount: 2}),
		),
	)
	header := buildHeaderNode(types.BTHeaderRec{
		TreeDepth:      1,
		RootNode:       1,
		LeafRecords:    1,
		FirstLeafNode:  1,
		LastLeafNode:   1,
		NodeSize:       tBlockSize,
		MaxKeyLength:   types.ExtentKeyLength,
		TotalNodes:     2,
		KeyCompareType: types.KeyCompareBinary,
	})
	return append(header, leaf...)
}

func encodeTestVolumeHeader() []byte {
	buf := make([]byte, types.VolumeHeaderSize)
	binary.BigEndian.PutUint16(buf[0:], types.SignatureHFSPlus)
	binary.BigEndian.PutUint16(buf[2:], types.VersionHFSPlus)
	binary.BigEndian.PutUint32(buf[4:], 1<<types.VolumeUnmountedBit|1<<types.VolumeJournaledBit)
	binary.BigEndian.PutUint32(buf[8:], 0x10302e31) // last mounted version '10.1'
	binary.BigEndian.PutUint32(buf[12:], tJournalInfoStart)
	binary.BigEndian.PutUint32(buf[32:], 3)  // file count
	binary.BigEndian.PutUint32(buf[36:], 1)  // folder count
	binary.BigEndian.PutUint32(buf[40:], tBlockSize)
	binary.BigEndian.PutUint32(buf[44:], tTotalBlocks)
	binary.BigEndian.PutUint32(buf[48:], 8) // free blocks
	binary.BigEndian.PutUint32(buf[64:], uint32(tFragID)+1) // next catalog ID

	// Volume identifier in the last two finder info slots.
	binary.BigEndian.PutUint32(buf[80+4*types.FinderInfoVolumeIDHigh:], 0xDEADBEEF)
	binary.BigEndian.PutUint32(buf[80+4*types.FinderInfoVolumeIDLow:], 0xCAFEBABE)

	copy(buf[112:], encodeForkData(tBlockSize, 1, types.ExtentDescriptor{StartBlock: tAllocStart, BlockCount: 1}))
	copy(buf[192:], encodeForkData(2*tBlockSize, 2, types.ExtentDescriptor{StartBlock: tExtentsStart, BlockCount: 2}))
	copy(buf[272:], encodeForkData(7*1024, 14, types.ExtentDescriptor{StartBlock: tCatalogStart, BlockCount: 14}))
	return buf
}

// buildTestImage assembles the full synthetic volume image.
func buildTestImage() []byte {
	img := make([]byte, tTotalBlocks*tBlockSize)

	vh := encodeTestVolumeHeader()
	copy(img[types.VolumeHeaderOffset:], vh)
	copy(img[len(img)-types.VolumeHeaderOffset:], vh) // alternate copy

	copy(img[tCatalogStart*tBlockSize:], buildCatalogTree())
	copy(img[tExtentsStart*tBlockSize:], buildExtentsTree())

	// Allocation bitmap: everything below the free tail is in use.
	alloc := img[tAllocStart*tBlockSize:]
	for i := 0; i < int(tTotalBlocks-8)/8; i++ {
		alloc[i] = 0xFF
	}

	copy(img[tReadmeStart*tBlockSize:], tReadmeContent)
	copy(img[tNotesStart*tBlockSize:], tNotesContent)

	frag := tFragContent()
	copy(img[tFragInlineStart*tBlockSize:], frag[:tBlockSize])
	copy(img[tFragOverflowStart*tBlockSize:], frag[tBlockSize:])

	// Journal info block: journal lives in the file system right after it.
	jib := img[tJournalInfoStart*tBlockSize:]
	binary.BigEndian.PutUint32(jib[0:], types.JournalInFS)
	binary.BigEndian.PutUint64(jib[36:], (tJournalInfoStart+1)*tBlockSize)
	binary.BigEndian.PutUint64(jib[44:], 8*tBlockSize)

	return img
}
