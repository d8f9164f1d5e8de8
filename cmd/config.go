package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-hfsplus/internal/disk"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective image configuration",
	Long: `Show the configuration go-hfsplus resolves from hfsplus-config.yaml,
HFSPLUS_* environment variables, and built-in defaults.`,

	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runConfig(); err != nil {
			cobra.CheckErr(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig() error {
	config, err := disk.LoadImageConfig()
	if err != nil {
		return err
	}

	fmt.Printf("auto_detect_volume: %t\n", config.AutoDetectVolume)
	fmt.Printf("default_offset:     %d\n", config.DefaultOffset)
	fmt.Printf("node_cache_size:    %d\n", config.NodeCacheSize)
	fmt.Printf("skip_patterns:      %s\n", strings.Join(config.SkipPatterns, ", "))
	fmt.Printf("test_data_path:     %s\n", config.TestDataPath)
	return nil
}
