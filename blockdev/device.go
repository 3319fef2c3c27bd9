// Package blockdev abstracts a disk as a fixed array of equal-size blocks,
// with two concrete backends: an in-memory RAM disk and a file-backed disk
// image. A third backend, VirtioDevice, speaks the legacy virtio-blk PCI
// transport over a pluggable PCIBus so the same filesystem code runs
// bare-metal against a paravirtualized controller.
package blockdev

import "github.com/b3p3k0/AIOS/aioserrors"

// Device is a disk exposed as a fixed number of equal-size blocks.
//
// ReadBlock and WriteBlock always transfer exactly BlockSize() bytes; short
// reads/writes against the backing storage are retried internally until the
// full block has been transferred. A block index at or beyond BlockCount()
// fails without touching the backend.
type Device interface {
	BlockSize() uint32
	BlockCount() uint32
	ReadBlock(index uint32, buf []byte) error
	WriteBlock(index uint32, buf []byte) error
}

// CheckBounds verifies that index and the length of buf are valid for a
// device with the given geometry. It's shared by every backend so the
// out-of-range behavior in spec §4.A ("failure without I/O") is implemented
// once instead of duplicated per backend.
func CheckBounds(index uint32, buf []byte, blockSize, blockCount uint32) error {
	if index >= blockCount {
		return aioserrors.ErrInvalidArgument.WithMessage(
			"block index out of range",
		)
	}
	if uint32(len(buf)) != blockSize {
		return aioserrors.ErrInvalidArgument.WithMessage(
			"buffer size does not match block size",
		)
	}
	return nil
}
