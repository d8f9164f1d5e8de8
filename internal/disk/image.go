package disk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/deploymenttheory/go-hfsplus/internal/types"
)

// GPT layout constants used when probing partitioned images.
const (
	gptHeaderOffset     = 512  // primary GPT header lives in LBA 1
	gptEntriesStartByte = 1024 // partition entries start at LBA 2
	gptEntrySize        = 128
	gptMaxEntries       = 128
	gptSignature        = "EFI PART"
)

// hfsPlusGPTPartitionUUID is the GPT partition type for HFS Plus volumes
// (48465300-0000-11AA-AA11-00306543ECAC), serialized in GPT mixed-endian
// byte order.
var hfsPlusGPTPartitionUUID = []byte{
	0x00, 0x53, 0x46, 0x48, 0x00, 0x00, 0xAA, 0x11,
	0xAA, 0x11, 0x00, 0x30, 0x65, 0x43, 0xEC, 0xAC,
}

// ImageDevice provides access to an HFS Plus volume within a raw disk image.
// The volume may start at byte 0 of the image or inside a GPT partition.
type ImageDevice struct {
	file   *os.File
	size   int64
	offset int64 // byte offset of the volume within the image
	stats  *ImageStatistics
}

// ImageStatistics tracks image access counters.
type ImageStatistics struct {
	offsetDetectionTime time.Duration
	offsetMethod        string
	readsIssued         int64
	bytesRead           int64
	mu                  sync.RWMutex
}

// ImageConfig holds configuration for image handling.
type ImageConfig struct {
	AutoDetectVolume bool     `mapstructure:"auto_detect_volume"`
	DefaultOffset    int64    `mapstructure:"default_offset"`
	NodeCacheSize    int      `mapstructure:"node_cache_size"`
	SkipPatterns     []string `mapstructure:"skip_patterns"`
	TestDataPath     string   `mapstructure:"test_data_path"`
}

// LoadImageConfig loads image configuration using Viper.
func LoadImageConfig() (*ImageConfig, error) {
	viper.SetConfigName("hfsplus-config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("../..") // For tests running from subdirectories
	viper.AddConfigPath("$HOME/.hfsplus")
	viper.AddConfigPath("/etc/hfsplus")

	// Set defaults
	viper.SetDefault("auto_detect_volume", true)
	viper.SetDefault("default_offset", 0)
	viper.SetDefault("node_cache_size", 256)
	viper.SetDefault("skip_patterns", []string{".fseventsd/**", ".Trashes/**"})
	viper.SetDefault("test_data_path", "./tests")

	// Allow environment variables
	viper.SetEnvPrefix("HFSPLUS")
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	var config ImageConfig
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// OpenImage opens a disk image and locates the HFS Plus volume within it.
func OpenImage(path string, config *ImageConfig) (*ImageDevice, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat image file: %w", err)
	}

	device := &ImageDevice{
		file: file,
		size: stat.Size(),
		stats: &ImageStatistics{
			offsetMethod: "unknown",
		},
	}

	if config.AutoDetectVolume {
		startTime := time.Now()
		offset, method, err := device.detectVolumeOffset()
		device.stats.offsetDetectionTime = time.Since(startTime)
		if err != nil {
			device.offset = config.DefaultOffset
			device.stats.offsetMethod = "fallback"
		} else {
			device.offset = offset
			device.stats.offsetMethod = method
		}
	} else {
		device.offset = config.DefaultOffset
		device.stats.offsetMethod = "configured"
	}

	return device, nil
}

// detectVolumeOffset locates the HFS Plus volume inside the image. It first
// probes for a volume header signature at byte 0 (unpartitioned image), then
// walks the GPT partition table looking for an HFS Plus partition entry.
func (d *ImageDevice) detectVolumeOffset() (int64, string, error) {
	ok, err := d.probeSignature(0)
	if err == nil && ok {
		return 0, "signature", nil
	}

	offset, err := d.parseGPTPartitionTable()
	if err != nil {
		return 0, "", err
	}

	ok, err = d.probeSignature(offset)
	if err != nil {
		return 0, "", err
	}
	if !ok {
		return 0, "", fmt.Errorf("GPT partition at offset %d does not carry an HFS Plus volume header", offset)
	}
	return offset, "gpt", nil
}

// probeSignature checks for an 'H+' or 'HX' volume header signature at
// base+1024 within the image.
func (d *ImageDevice) probeSignature(base int64) (bool, error) {
	buf := make([]byte, 2)
	n, err := d.file.ReadAt(buf, base+types.VolumeHeaderOffset)
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to probe volume header: %w", err)
	}
	if n < 2 {
		return false, nil
	}
	sig := binary.BigEndian.Uint16(buf)
	return sig == types.SignatureHFSPlus || sig == types.SignatureHFSX, nil
}

// parseGPTPartitionTable scans the GPT entry array for an HFS Plus
// partition and returns its byte offset.
func (d *ImageDevice) parseGPTPartitionTable() (int64, error) {
	buf := make([]byte, gptEntriesStartByte+gptMaxEntries*gptEntrySize)
	n, err := d.file.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("failed to read GPT: %w", err)
	}
	if n < gptHeaderOffset+8 {
		return 0, fmt.Errorf("image too small for a GPT header")
	}

	if string(buf[gptHeaderOffset:gptHeaderOffset+8]) != gptSignature {
		return 0, fmt.Errorf("no GPT signature found")
	}

	for entryIdx := 0; entryIdx < gptMaxEntries; entryIdx++ {
		entryOffset := gptEntriesStartByte + entryIdx*gptEntrySize
		if entryOffset+gptEntrySize > n {
			break
		}

		entry := buf[entryOffset : entryOffset+gptEntrySize]
		if !bytes.Equal(entry[0:16], hfsPlusGPTPartitionUUID) {
			continue
		}

		// Bytes 32-39 hold the start LBA, little-endian.
		startLBA := binary.LittleEndian.Uint64(entry[32:40])
		return int64(startLBA) * 512, nil
	}

	return 0, fmt.Errorf("no HFS Plus partition found in GPT table")
}

// ReadAt implements io.ReaderAt over the HFS Plus volume within the image.
func (d *ImageDevice) ReadAt(p []byte, off int64) (n int, err error) {
	if off < 0 || off > d.Size() {
		return 0, fmt.Errorf("%w: read at %d beyond volume of %d bytes", types.ErrOutOfBounds, off, d.Size())
	}

	n, err = d.file.ReadAt(p, d.offset+off)
	if n > 0 {
		d.stats.mu.Lock()
		d.stats.readsIssued++
		d.stats.bytesRead += int64(n)
		d.stats.mu.Unlock()
	}
	return n, err
}

// Size returns the size of the volume region in bytes.
func (d *ImageDevice) Size() int64 {
	return d.size - d.offset
}

// Close closes the underlying image file.
func (d *ImageDevice) Close() error {
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}

// VolumeOffset returns the detected byte offset of the volume and how it
// was determined.
func (d *ImageDevice) VolumeOffset() (int64, string, time.Duration) {
	d.stats.mu.RLock()
	defer d.stats.mu.RUnlock()
	return d.offset, d.stats.offsetMethod, d.stats.offsetDetectionTime
}

// Stats returns the reads issued and bytes read so far.
func (d *ImageDevice) Stats() (readsIssued, bytesRead int64) {
	d.stats.mu.RLock()
	defer d.stats.mu.RUnlock()
	return d.stats.readsIssued, d.stats.bytesRead
}
