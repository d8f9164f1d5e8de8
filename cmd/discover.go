package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var discoverPattern string

var discoverCmd = &cobra.Command{
	Use:   "discover [image-path]",
	Short: "Find files by glob pattern",
	Long: `Search the catalog for paths matching a glob pattern. Patterns use
doublestar syntax: * matches within a path component, ** crosses
component boundaries.

Examples:
  # All PDFs anywhere on the volume
  go-hfsplus discover backup.img --pattern "**/*.pdf"

  # Direct children of a folder
  go-hfsplus discover backup.img --pattern "Users/alice/*"`,

	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runDiscover(args[0]); err != nil {
			cobra.CheckErr(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().StringVarP(&discoverPattern, "pattern", "n", "**", "glob pattern to match against volume paths")
}

func runDiscover(imagePath string) error {
	volume, logger, err := openVolume(imagePath)
	if err != nil {
		return err
	}
	defer volume.Close()
	defer logger.Sync()

	matches, err := volume.Discover(discoverPattern)
	if err != nil {
		return err
	}
	for _, path := range matches {
		fmt.Println(path)
	}
	fmt.Printf("%d match(es)\n", len(matches))
	return nil
}
