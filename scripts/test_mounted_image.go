package main

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/deploymenttheory/go-hfsplus/internal/disk"
	"github.com/deploymenttheory/go-hfsplus/internal/services"
	"github.com/deploymenttheory/go-hfsplus/internal/types"
)

// Cross-checks this module's decoding of an HFS Plus disk image against the
// macOS mounted view of the same image. Requires hdiutil, so macOS only.
//
// Usage: go run scripts/test_mounted_image.go <image.dmg>

// MountedImage holds information about a mounted image
type MountedImage struct {
	ImagePath    string
	DevicePath   string
	VolumePath   string
	needsUnmount bool
}

// mountImage mounts the image read-only and returns device information
func mountImage(imagePath string) (*MountedImage, error) {
	fmt.Printf("=== Mounting image ===\n")
	fmt.Printf("Image: %s\n", imagePath)

	cmd := exec.Command("hdiutil", "attach", imagePath, "-readonly", "-nobrowse")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("failed to mount image: %w\nOutput: %s", err, string(output))
	}

	// Output format: /dev/diskN       GUID_partition_scheme
	//                /dev/diskNs1     Apple_HFS        /Volumes/VolumeName
	var devicePath, volumePath string
	hfsPartitionRegex := regexp.MustCompile(`^(/dev/disk\d+(?:s\d+)?)\s+Apple_HFSX?`)
	volumeRegex := regexp.MustCompile(`^(/dev/disk\d+(?:s\d+)?).*?(/Volumes/.+?)$`)

	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if matches := hfsPartitionRegex.FindStringSubmatch(line); len(matches) > 1 {
			devicePath = matches[1]
		}
		if matches := volumeRegex.FindStringSubmatch(line); len(matches) > 2 {
			volumePath = matches[2]
		}
	}

	if devicePath == "" {
		return nil, fmt.Errorf("could not find HFS partition device in hdiutil output:\n%s", string(output))
	}

	fmt.Printf("Device: %s\n", devicePath)
	if volumePath != "" {
		fmt.Printf("Volume: %s\n", volumePath)
	}

	return &MountedImage{
		ImagePath:    imagePath,
		DevicePath:   devicePath,
		VolumePath:   volumePath,
		needsUnmount: true,
	}, nil
}

// unmount detaches the image
func (mi *MountedImage) unmount() error {
	if !mi.needsUnmount {
		return nil
	}

	fmt.Printf("\n=== Unmounting image ===\n")

	diskRegex := regexp.MustCompile(`/dev/(disk\d+)`)
	matches := diskRegex.FindStringSubmatch(mi.DevicePath)
	if len(matches) < 2 {
		return fmt.Errorf("could not extract disk number from device path: %s", mi.DevicePath)
	}

	cmd := exec.Command("hdiutil", "detach", "/dev/"+matches[1])
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to unmount image: %w\nOutput: %s", err, string(output))
	}

	mi.needsUnmount = false
	return nil
}

// compareAgainstMount walks the catalog with this module and checks each
// file's size against the mounted copy.
func compareAgainstMount(mi *MountedImage) error {
	fmt.Printf("\n=== Comparing catalog against mounted volume ===\n")

	config, err := disk.LoadImageConfig()
	if err != nil {
		return err
	}
	volume, err := services.OpenVolume(mi.ImagePath, config, nil)
	if err != nil {
		return err
	}
	defer volume.Close()

	header := volume.Header()
	fmt.Printf("Decoded header: blockSize=%d totalBlocks=%d files=%d folders=%d\n",
		header.BlockSize, header.TotalBlocks, header.FileCount, header.FolderCount)

	var checked, mismatched int
	err = volume.Catalog().WalkEntries(func(entry types.CatalogEntry) (bool, error) {
		if entry.Kind != types.KindFile {
			return true, nil
		}
		path, err := volume.Catalog().PathFor(entry.ID)
		if err != nil {
			return false, err
		}

		if mi.VolumePath != "" {
			info, statErr := os.Stat(mi.VolumePath + path)
			if statErr == nil && uint64(info.Size()) != entry.FileSize {
				fmt.Printf("  MISMATCH %s: catalog says %d bytes, mount says %d\n",
					path, entry.FileSize, info.Size())
				mismatched++
			}
		}
		checked++
		return true, nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("Checked %d files, %d size mismatches\n", checked, mismatched)
	if mismatched > 0 {
		return fmt.Errorf("%d file(s) disagree with the mounted volume", mismatched)
	}
	return nil
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <image.dmg>\n", os.Args[0])
		os.Exit(1)
	}

	mi, err := mountImage(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer mi.unmount()

	if err := compareAgainstMount(mi); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n✓ Catalog agrees with the mounted volume\n")
}
