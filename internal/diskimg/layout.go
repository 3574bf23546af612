// Package diskimg assembles a bootable GPT disk image: a FAT32 EFI system
// partition followed by a RedoxFS root partition, built with the standard
// external partitioning and filesystem tools.
package diskimg

import (
	"fmt"
)

const (
	mib        = int64(1) << 20
	sectorSize = int64(512)

	// Partitions start on 1 MiB boundaries. The first MiB holds the
	// protective MBR and the GPT header; the last MiB is reserved for the
	// backup GPT.
	alignBytes = 1 * mib
)

// minRootSizeMB is the smallest root partition worth formatting.
const minRootSizeMB = 16

// Layout fixes where everything lands on the disk, derived from the two
// configured sizes.
type Layout struct {
	DiskSizeMB int
	ESPSizeMB  int
}

// Validate re-checks the size invariants right before any tool runs, even
// though configuration validation already enforced them.
func (l Layout) Validate() error {
	if l.ESPSizeMB <= 0 {
		return fmt.Errorf("ESP size must be positive, got %d MiB", l.ESPSizeMB)
	}
	if l.DiskSizeMB <= l.ESPSizeMB {
		return fmt.Errorf("disk size (%d MiB) must exceed ESP size (%d MiB)", l.DiskSizeMB, l.ESPSizeMB)
	}
	if root := l.DiskSizeMB - l.ESPSizeMB; root < minRootSizeMB {
		return fmt.Errorf("root partition would be %d MiB, need at least %d MiB", root, minRootSizeMB)
	}
	return nil
}

func (l Layout) DiskSizeBytes() int64 {
	return int64(l.DiskSizeMB) * mib
}

// ESPOffsetBytes is where the ESP partition starts.
func (l Layout) ESPOffsetBytes() int64 {
	return alignBytes
}

func (l Layout) ESPSizeBytes() int64 {
	return int64(l.ESPSizeMB) * mib
}

// RootOffsetBytes is where the RedoxFS partition starts, immediately after
// the ESP on the next alignment boundary.
func (l Layout) RootOffsetBytes() int64 {
	return l.ESPOffsetBytes() + l.ESPSizeBytes()
}

// RootSizeBytes leaves the final MiB of the disk for the backup GPT.
func (l Layout) RootSizeBytes() int64 {
	return l.DiskSizeBytes() - l.RootOffsetBytes() - alignBytes
}

// SgdiskArgs builds the single sgdisk invocation that writes the whole
// partition table: clear, then both partitions with type codes and names.
func (l Layout) SgdiskArgs(image string) []string {
	espStart := l.ESPOffsetBytes() / sectorSize
	espEnd := (l.RootOffsetBytes() / sectorSize) - 1
	rootStart := l.RootOffsetBytes() / sectorSize

	return []string{
		"--clear",
		fmt.Sprintf("--new=1:%d:%d", espStart, espEnd),
		"--typecode=1:ef00",
		"--change-name=1:ESP",
		// End sector 0 means "largest available", which runs to the
		// backup GPT reservation.
		fmt.Sprintf("--new=2:%d:0", rootStart),
		"--typecode=2:8300",
		"--change-name=2:RedoxFS",
		image,
	}
}
