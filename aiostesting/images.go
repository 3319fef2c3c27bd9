// Package aiostesting provides small helpers for constructing in-memory
// filesystem images in tests, without going through a real file on disk.
//
// Grounded on dargueta-disko's testing package (LoadDiskImage), trimmed down
// to the one thing the filesystem core's own tests need: a fresh RAM-backed
// device of a given geometry.
package aiostesting

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/b3p3k0/AIOS/blockdev"
	"github.com/b3p3k0/AIOS/blockfs"
	"github.com/b3p3k0/AIOS/disks"
)

// NewRAMImage allocates a zeroed RAM-backed device of the given geometry.
func NewRAMImage(blockSize, blockCount uint32) *blockdev.RAMDevice {
	return blockdev.NewRAMDevice(blockSize, blockCount)
}

// FormattedImage allocates a RAM-backed device using the named preset
// geometry and formats it, failing the test immediately on any error.
func FormattedImage(t *testing.T, slug string) (*blockfs.Filesystem, blockdev.Device) {
	t.Helper()
	geometry, err := disks.Get(slug)
	require.NoError(t, err)

	dev := blockdev.NewRAMDevice(geometry.BlockSize, geometry.TotalBlocks)
	fs, err := blockfs.Format(dev, geometry.InodeCount)
	require.NoError(t, err)
	return fs, dev
}
