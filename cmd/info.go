package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-hfsplus/internal/types"
)

var infoCmd = &cobra.Command{
	Use:   "info [image-path]",
	Short: "Show volume header details",
	Long: `Show the decoded volume header of an HFS Plus disk image.

Examples:
  # Summarize a raw image
  go-hfsplus info backup.img`,

	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runInfo(args[0]); err != nil {
			cobra.CheckErr(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(imagePath string) error {
	volume, logger, err := openVolume(imagePath)
	if err != nil {
		return err
	}
	defer volume.Close()
	defer logger.Sync()

	header := volume.Header()

	variant := "HFS Plus"
	if header.IsHFSX() {
		variant = "HFSX"
	}
	fmt.Printf("Volume:          %s (version %d)\n", variant, header.Version)
	fmt.Printf("UUID:            %s\n", volume.UUID())
	fmt.Printf("Block size:      %d bytes\n", header.BlockSize)
	fmt.Printf("Total blocks:    %d (%d free)\n", header.TotalBlocks, header.FreeBlocks)
	fmt.Printf("Files:           %d\n", header.FileCount)
	fmt.Printf("Folders:         %d\n", header.FolderCount)
	fmt.Printf("Next catalog ID: %d\n", header.NextCatalogID)
	fmt.Printf("Created:         %s\n", types.HFSTime(header.CreateDate))
	fmt.Printf("Modified:        %s\n", types.HFSTime(header.ModifyDate))
	fmt.Printf("Journaled:       %t\n", header.IsJournaled())
	fmt.Printf("Clean unmount:   %t\n", header.WasUnmountedCleanly())

	catalogHeader := volume.Catalog().Tree().Header()
	fmt.Printf("Catalog tree:    depth %d, %d leaf records, node size %d\n",
		catalogHeader.TreeDepth, catalogHeader.LeafRecords, catalogHeader.NodeSize)
	extentsHeader := volume.Extents().Tree().Header()
	fmt.Printf("Extents tree:    depth %d, %d leaf records, node size %d\n",
		extentsHeader.TreeDepth, extentsHeader.LeafRecords, extentsHeader.NodeSize)

	return nil
}
