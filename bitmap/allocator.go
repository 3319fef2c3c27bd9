// Package bitmap manages the inode and data-block free-space bitmaps that
// sit in fixed regions of an AIOS image, allocating first-fit and flushing
// back to a blockdev.Device.
//
// Grounded on original_source/kernel/fs/fs.c's bitmap_set/bitmap_test/
// bitmap_clear/sync_bitmap/load_bitmap, implemented here over
// github.com/boljen/go-bitmap instead of hand-rolled bit twiddling.
package bitmap

import (
	gobitmap "github.com/boljen/go-bitmap"

	"github.com/b3p3k0/AIOS/aioserrors"
	"github.com/b3p3k0/AIOS/blockdev"
)

// Allocator is an in-memory mirror of one on-disk bitmap region (either the
// inode bitmap or the data bitmap). Bit 0 corresponds to the first item the
// bitmap tracks; callers translate between bit index and inode/block number.
type Allocator struct {
	bits  gobitmap.Bitmap
	count uint32
}

// New creates an Allocator tracking count items, all initially free.
func New(count uint32) *Allocator {
	return &Allocator{
		bits:  gobitmap.New(int(count)),
		count: count,
	}
}

// Load builds an Allocator from blockCount*blockSize-byte region of bitmap
// storage already read off disk.
func Load(raw []byte, count uint32) *Allocator {
	a := New(count)
	copy(a.bits, raw)
	return a
}

// Bytes returns the raw bitmap storage, sized to whatever go-bitmap allocated
// for count bits, ready to be padded and written to the bitmap's disk blocks.
func (a *Allocator) Bytes() []byte {
	return a.bits
}

// Test reports whether bit i is set (item i is in use).
func (a *Allocator) Test(i uint32) bool {
	return a.bits.Get(int(i))
}

// Set marks item i as in use.
func (a *Allocator) Set(i uint32) {
	a.bits.Set(int(i), true)
}

// Clear marks item i as free.
func (a *Allocator) Clear(i uint32) {
	a.bits.Set(int(i), false)
}

// AllocFirstFit finds the lowest-numbered free item at or above start,
// marks it in use, and returns its index. It fails with aioserrors.ErrNoSpace
// if every item from start through count-1 is in use.
//
// Grounded on original_source/kernel/fs/fs.c's alloc_from_bitmap.
func (a *Allocator) AllocFirstFit(start uint32) (uint32, error) {
	for i := start; i < a.count; i++ {
		if !a.bits.Get(int(i)) {
			a.bits.Set(int(i), true)
			return i, nil
		}
	}
	return 0, aioserrors.ErrNoSpace
}

// Flush writes the bitmap's backing bytes to the blockCount consecutive
// blocks of dev starting at startBlock, zero-padding the final block.
func (a *Allocator) Flush(dev blockdev.Device, startBlock, blockCount uint32) error {
	blockSize := dev.BlockSize()
	raw := a.bits
	for b := uint32(0); b < blockCount; b++ {
		buf := make([]byte, blockSize)
		lo := int(b) * int(blockSize)
		hi := lo + int(blockSize)
		if lo < len(raw) {
			end := hi
			if end > len(raw) {
				end = len(raw)
			}
			copy(buf, raw[lo:end])
		}
		if err := dev.WriteBlock(startBlock+b, buf); err != nil {
			return err
		}
	}
	return nil
}

// LoadFromDevice reads blockCount consecutive blocks of dev starting at
// startBlock and builds an Allocator tracking count items out of them.
func LoadFromDevice(dev blockdev.Device, startBlock, blockCount, count uint32) (*Allocator, error) {
	blockSize := dev.BlockSize()
	raw := make([]byte, 0, int(blockCount)*int(blockSize))
	for b := uint32(0); b < blockCount; b++ {
		buf := make([]byte, blockSize)
		if err := dev.ReadBlock(startBlock+b, buf); err != nil {
			return nil, err
		}
		raw = append(raw, buf...)
	}
	return Load(raw, count), nil
}
