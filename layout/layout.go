// Package layout computes the on-disk region boundaries of an AIOS
// filesystem image from its three degrees of freedom: total block count,
// inode count, and block size. Every other structure -- the bitmaps, the
// inode table, the data region -- is placed deterministically from these
// three numbers, so a given (totalBlocks, inodeCount, blockSize) triple
// always produces the same image geometry.
//
// Grounded on original_source/kernel/fs/fs.c's layout_compute.
package layout

import "github.com/b3p3k0/AIOS/aioserrors"

// Magic identifies a valid AIOS filesystem image (the ASCII bytes "AIOS" read
// as a big-endian uint32; encoded little-endian on disk they appear as "SOIA").
const Magic = 0x41494F53

// DefaultBlockSize is the block size used when a caller doesn't pick one.
const DefaultBlockSize = 4096

// DirectBlocks is the number of direct block pointers carried in every
// inode; the format has no indirect blocks.
const DirectBlocks = 8

// MaxNameLength is the size in bytes of a directory entry's name field,
// including room for the NUL terminator; the longest accepted name is
// MaxNameLength-1 bytes.
const MaxNameLength = 32

// MaxPathLength bounds the total length of a path string plus terminator.
const MaxPathLength = 512

// InodeRecordSize is the on-disk size in bytes of one inode record (see
// inode.go for the field layout).
const InodeRecordSize = 40

// DirentRecordSize is the on-disk size in bytes of one directory entry
// record (see dirent.go for the field layout).
const DirentRecordSize = 37

// InodeType identifies what an inode record represents.
type InodeType uint8

const (
	InodeFree InodeType = 0
	InodeFile InodeType = 1
	InodeDir  InodeType = 2
)

// RootInode is the fixed inode number of the filesystem root directory.
const RootInode = 1

// Superblock is the first block of every AIOS image. Its field order and
// widths mirror struct fs_superblock exactly so the on-disk bytes match a
// C reader byte for byte once little-endian encoded.
type Superblock struct {
	Magic              uint32
	BlockSize          uint32
	TotalBlocks        uint32
	InodeCount         uint32
	InodeBitmapStart   uint32
	InodeBitmapBlocks  uint32
	DataBitmapStart    uint32
	DataBitmapBlocks   uint32
	InodeTableStart    uint32
	InodeTableBlocks   uint32
	DataRegionStart    uint32
	DataRegionBlocks   uint32
	RootInode          uint32
}

// SuperblockSize is the encoded size in bytes of a Superblock (13 uint32
// fields).
const SuperblockSize = 13 * 4

func divCeil(numerator, denominator uint32) uint32 {
	if denominator == 0 {
		return 0
	}
	return (numerator + denominator - 1) / denominator
}

// Compute derives a complete Superblock from the image's three degrees of
// freedom. It fails with aioserrors.ErrInvalidArgument if the resulting data
// region would be empty or negative -- i.e. if the bitmaps and inode table
// alone would consume the entire image.
func Compute(totalBlocks, inodeCount, blockSize uint32) (Superblock, error) {
	if blockSize == 0 {
		return Superblock{}, aioserrors.ErrInvalidArgument.WithMessage("block size must be nonzero")
	}
	if inodeCount == 0 {
		return Superblock{}, aioserrors.ErrInvalidArgument.WithMessage("inode count must be nonzero")
	}
	if totalBlocks == 0 {
		return Superblock{}, aioserrors.ErrInvalidArgument.WithMessage("total block count must be nonzero")
	}

	sb := Superblock{
		Magic:       Magic,
		BlockSize:   blockSize,
		TotalBlocks: totalBlocks,
		InodeCount:  inodeCount,
		RootInode:   RootInode,
	}

	bitsPerBlock := blockSize * 8

	sb.InodeBitmapStart = 1
	sb.InodeBitmapBlocks = divCeil(inodeCount, bitsPerBlock)
	if sb.InodeBitmapBlocks == 0 {
		sb.InodeBitmapBlocks = 1
	}

	sb.InodeTableStart = sb.InodeBitmapStart + sb.InodeBitmapBlocks
	inodeBytes := inodeCount * InodeRecordSize
	sb.InodeTableBlocks = divCeil(inodeBytes, blockSize)

	sb.DataBitmapStart = sb.InodeTableStart + sb.InodeTableBlocks
	sb.DataBitmapBlocks = divCeil(totalBlocks, bitsPerBlock)
	if sb.DataBitmapBlocks == 0 {
		sb.DataBitmapBlocks = 1
	}

	sb.DataRegionStart = sb.DataBitmapStart + sb.DataBitmapBlocks
	if sb.DataRegionStart >= totalBlocks {
		return Superblock{}, aioserrors.ErrInvalidArgument.WithMessage(
			"image is too small to hold its own metadata",
		)
	}
	sb.DataRegionBlocks = totalBlocks - sb.DataRegionStart

	return sb, nil
}
