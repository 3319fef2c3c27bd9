// Package blockfs implements the persistent block-oriented filesystem core:
// formatting a device, mounting an existing image, and the lookup/make_dir/
// create_file/write_file/read_file/list_dir/delete operations built on top
// of the superblock, bitmap, inode, and directory layers.
//
// Grounded on original_source/kernel/fs/fs.c, restructured the way
// dargueta-disko's file_systems/unixv1 package structures a from-scratch
// filesystem driver: one package per format, a mount-owning struct, and
// free functions on that struct instead of a global table of function
// pointers.
package blockfs

import (
	"github.com/hashicorp/go-multierror"

	"github.com/b3p3k0/AIOS/aioserrors"
	"github.com/b3p3k0/AIOS/bitmap"
	"github.com/b3p3k0/AIOS/blockdev"
	"github.com/b3p3k0/AIOS/layout"
)

// Filesystem is a mounted AIOS image: the block device it owns, its
// superblock, and its two in-memory bitmap mirrors. A Filesystem is not
// safe for concurrent use -- the spec assumes a single-threaded mount, the
// same way the kernel and hosted tool each drive one fs_t from one thread.
type Filesystem struct {
	dev          blockdev.Device
	sb           layout.Superblock
	inodeBitmap  *bitmap.Allocator
	dataBitmap   *bitmap.Allocator
}

// RootInode returns the fixed inode number of the filesystem root.
func (fs *Filesystem) RootInode() uint32 { return fs.sb.RootInode }

// Superblock returns a copy of the mounted filesystem's superblock.
func (fs *Filesystem) Superblock() layout.Superblock { return fs.sb }

// Format lays out a brand-new filesystem on dev: computes the geometry,
// zeroes every block of the device, builds both bitmaps with only the root
// inode pre-reserved (metadata blocks lie outside the data bitmap's index
// space), allocates the root's data block, writes its "." and ".."
// entries, and persists everything including the superblock.
//
// Grounded on original_source/kernel/fs/fs.c's fs_format_ram.
func Format(dev blockdev.Device, inodeCount uint32) (*Filesystem, error) {
	sb, err := layout.Compute(dev.BlockCount(), inodeCount, dev.BlockSize())
	if err != nil {
		return nil, err
	}

	fs := &Filesystem{
		dev:         dev,
		sb:          sb,
		inodeBitmap: bitmap.New(sb.InodeCount),
		dataBitmap:  bitmap.New(sb.DataRegionBlocks),
	}

	zero := make([]byte, sb.BlockSize)
	for b := uint32(0); b < sb.TotalBlocks; b++ {
		if err := dev.WriteBlock(b, zero); err != nil {
			return nil, err
		}
	}

	fs.inodeBitmap.Set(sb.RootInode)

	if err := fs.flushBitmaps(); err != nil {
		return nil, err
	}
	if err := fs.writeSuperblock(); err != nil {
		return nil, err
	}

	root := Inode{Type: layout.InodeDir}
	rootBlock, err := fs.allocDataBlock()
	if err != nil {
		return nil, err
	}
	root.Direct[0] = rootBlock

	dirBuf := make([]byte, sb.BlockSize)
	copy(dirBuf[0:layout.DirentRecordSize], encodeDirent(Dirent{Inode: sb.RootInode, Type: layout.InodeDir, Name: "."}))
	copy(dirBuf[layout.DirentRecordSize:2*layout.DirentRecordSize], encodeDirent(Dirent{Inode: sb.RootInode, Type: layout.InodeDir, Name: ".."}))
	root.Size = 2 * layout.DirentRecordSize

	if err := dev.WriteBlock(rootBlock, dirBuf); err != nil {
		return nil, err
	}
	if err := fs.writeInode(sb.RootInode, root); err != nil {
		return nil, err
	}

	return fs, nil
}

// Mount opens an existing AIOS image on dev: reads and validates the
// superblock, then loads both bitmap mirrors into memory.
//
// Grounded on original_source/kernel/fs/fs.c's fs_mount_ram/read_superblock/
// load_bitmap.
func Mount(dev blockdev.Device) (*Filesystem, error) {
	buf := make([]byte, dev.BlockSize())
	if err := dev.ReadBlock(0, buf); err != nil {
		return nil, err
	}
	sb, err := layout.DecodeSuperblock(buf, dev.BlockSize())
	if err != nil {
		return nil, err
	}
	if sb.TotalBlocks != dev.BlockCount() {
		return nil, aioserrors.ErrInvalidImage.WithMessage("superblock block count does not match device")
	}

	inodeBitmap, err := bitmap.LoadFromDevice(dev, sb.InodeBitmapStart, sb.InodeBitmapBlocks, sb.InodeCount)
	if err != nil {
		return nil, err
	}
	dataBitmap, err := bitmap.LoadFromDevice(dev, sb.DataBitmapStart, sb.DataBitmapBlocks, sb.DataRegionBlocks)
	if err != nil {
		return nil, err
	}

	return &Filesystem{dev: dev, sb: sb, inodeBitmap: inodeBitmap, dataBitmap: dataBitmap}, nil
}

// Unmount flushes both bitmaps back to disk. Both flushes are attempted even
// if one fails, so a transient failure on one region doesn't silently skip
// persisting the other; their errors are combined.
func (fs *Filesystem) Unmount() error {
	var result *multierror.Error
	if err := fs.inodeBitmap.Flush(fs.dev, fs.sb.InodeBitmapStart, fs.sb.InodeBitmapBlocks); err != nil {
		result = multierror.Append(result, err)
	}
	if err := fs.dataBitmap.Flush(fs.dev, fs.sb.DataBitmapStart, fs.sb.DataBitmapBlocks); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (fs *Filesystem) flushBitmaps() error {
	if err := fs.inodeBitmap.Flush(fs.dev, fs.sb.InodeBitmapStart, fs.sb.InodeBitmapBlocks); err != nil {
		return err
	}
	return fs.dataBitmap.Flush(fs.dev, fs.sb.DataBitmapStart, fs.sb.DataBitmapBlocks)
}

func (fs *Filesystem) writeSuperblock() error {
	buf := make([]byte, fs.sb.BlockSize)
	copy(buf, fs.sb.Encode())
	return fs.dev.WriteBlock(0, buf)
}

// allocInode reserves the lowest free inode number above the root and
// flushes the inode bitmap.
//
// Grounded on original_source/kernel/fs/fs.c's alloc_inode.
func (fs *Filesystem) allocInode() (uint32, error) {
	ino, err := fs.inodeBitmap.AllocFirstFit(1)
	if err != nil {
		return 0, aioserrors.ErrNoSpace
	}
	if err := fs.inodeBitmap.Flush(fs.dev, fs.sb.InodeBitmapStart, fs.sb.InodeBitmapBlocks); err != nil {
		return 0, err
	}
	return ino, nil
}

// allocDataBlock reserves the lowest free data block and flushes the data
// bitmap, returning the block's absolute block number.
//
// Grounded on original_source/kernel/fs/fs.c's alloc_data_block.
func (fs *Filesystem) allocDataBlock() (uint32, error) {
	idx, err := fs.dataBitmap.AllocFirstFit(0)
	if err != nil {
		return 0, aioserrors.ErrNoSpace
	}
	if err := fs.dataBitmap.Flush(fs.dev, fs.sb.DataBitmapStart, fs.sb.DataBitmapBlocks); err != nil {
		return 0, err
	}
	return fs.sb.DataRegionStart + idx, nil
}

func (fs *Filesystem) freeInode(ino uint32) error {
	fs.inodeBitmap.Clear(ino)
	return fs.inodeBitmap.Flush(fs.dev, fs.sb.InodeBitmapStart, fs.sb.InodeBitmapBlocks)
}

func (fs *Filesystem) freeDataBlock(absBlock uint32) error {
	if absBlock < fs.sb.DataRegionStart || absBlock >= fs.sb.TotalBlocks {
		return aioserrors.ErrInvalidArgument.WithMessage("block number outside data region")
	}
	fs.dataBitmap.Clear(absBlock - fs.sb.DataRegionStart)
	return fs.dataBitmap.Flush(fs.dev, fs.sb.DataBitmapStart, fs.sb.DataBitmapBlocks)
}
