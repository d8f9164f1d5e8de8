package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-hfsplus/internal/types"
)

var journalCmd = &cobra.Command{
	Use:   "journal [image-path]",
	Short: "Show journal location and state",
	Long: `Decode the journal info block of a journaled HFS Plus volume.

Examples:
  go-hfsplus journal backup.img`,

	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runJournal(args[0]); err != nil {
			cobra.CheckErr(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(journalCmd)
}

func runJournal(imagePath string) error {
	volume, logger, err := openVolume(imagePath)
	if err != nil {
		return err
	}
	defer volume.Close()
	defer logger.Sync()

	jib, err := volume.JournalInfo()
	if err != nil {
		return err
	}

	location := "on another device"
	if jib.InFS() {
		location = "in the file system"
	}
	fmt.Printf("Journal:     %s\n", location)
	fmt.Printf("Offset:      %d bytes\n", jib.Offset)
	fmt.Printf("Size:        %d bytes\n", jib.Size)
	fmt.Printf("Needs init:  %t\n", jib.Flags&types.JournalNeedsInit != 0)
	return nil
}
