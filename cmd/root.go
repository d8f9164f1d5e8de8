package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/deploymenttheory/go-hfsplus/internal/disk"
	"github.com/deploymenttheory/go-hfsplus/internal/services"
)

var (
	// Global output flags only
	verbose bool
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "go-hfsplus",
	Short: "Cross-platform HFS Plus volume explorer and extractor",
	Long: `go-hfsplus is a cross-platform, read-only command-line tool for exploring
and extracting HFS Plus (Mac OS Extended) volumes.

Works directly with raw disk images without mounting or relying on macOS.
Ideal for data recovery, forensic analysis, and backup verification.

Commands:
  info        Show volume header details
  list        List the contents of a folder
  extract     Extract files or folders
  discover    Find files by glob pattern
  journal     Show journal location and state`,
	Version: "0.1.0-dev",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output except errors")
}

// newLogger builds the zap logger honouring the global output flags.
func newLogger() (*zap.Logger, error) {
	if quiet {
		return zap.NewNop(), nil
	}
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// openVolume loads the image configuration and mounts the volume at path.
func openVolume(path string) (*services.VolumeService, *zap.Logger, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, nil, err
	}

	config, err := disk.LoadImageConfig()
	if err != nil {
		return nil, nil, err
	}

	volume, err := services.OpenVolume(path, config, logger)
	if err != nil {
		return nil, nil, err
	}
	return volume, logger, nil
}
