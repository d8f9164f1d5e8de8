package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-hfsplus/internal/services"
	"github.com/deploymenttheory/go-hfsplus/internal/types"
)

var (
	// Path options (list-specific)
	listPath      string
	listRecursive bool
)

var listCmd = &cobra.Command{
	Use:   "list [image-path]",
	Short: "List the contents of a folder",
	Long: `List files and folders on an HFS Plus volume.

Examples:
  # List the volume root
  go-hfsplus list backup.img

  # List a specific folder
  go-hfsplus list backup.img --path /Users/alice

  # Recurse into subfolders
  go-hfsplus list backup.img --path /Users --recursive`,

	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runList(args[0]); err != nil {
			cobra.CheckErr(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listPath, "path", "p", "/", "path to list")
	listCmd.Flags().BoolVarP(&listRecursive, "recursive", "r", false, "recursive listing")
}

func runList(imagePath string) error {
	volume, logger, err := openVolume(imagePath)
	if err != nil {
		return err
	}
	defer volume.Close()
	defer logger.Sync()

	entry, err := volume.Catalog().EntryForPath(listPath)
	if err != nil {
		return err
	}
	if entry.Kind != types.KindFolder {
		printEntry(entry, listPath)
		return nil
	}

	return listFolder(volume, entry.ID, listPath)
}

func listFolder(volume *services.VolumeService, folderID types.CatalogNodeID, prefix string) error {
	entries, err := volume.Catalog().Children(folderID)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		path := prefix + "/" + entry.Name
		if prefix == "/" {
			path = "/" + entry.Name
		}
		printEntry(entry, path)
		if listRecursive && entry.Kind == types.KindFolder {
			if err := listFolder(volume, entry.ID, path); err != nil {
				return err
			}
		}
	}
	return nil
}

func printEntry(entry types.CatalogEntry, path string) {
	if entry.Kind == types.KindFolder {
		fmt.Printf("%-6s %10s  %s  %s\n", entry.Kind, "-", types.HFSTime(entry.ContentModDate).Format("2006-01-02 15:04"), path)
		return
	}
	fmt.Printf("%-6s %10d  %s  %s\n", entry.Kind, entry.FileSize, types.HFSTime(entry.ContentModDate).Format("2006-01-02 15:04"), path)
}
