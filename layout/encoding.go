package layout

import (
	"encoding/binary"

	"github.com/b3p3k0/AIOS/aioserrors"
)

// Encode serializes a Superblock into a little-endian SuperblockSize-byte
// buffer suitable as the first bytes of block 0.
func (sb Superblock) Encode() []byte {
	buf := make([]byte, SuperblockSize)
	fields := []uint32{
		sb.Magic, sb.BlockSize, sb.TotalBlocks, sb.InodeCount,
		sb.InodeBitmapStart, sb.InodeBitmapBlocks,
		sb.DataBitmapStart, sb.DataBitmapBlocks,
		sb.InodeTableStart, sb.InodeTableBlocks,
		sb.DataRegionStart, sb.DataRegionBlocks,
		sb.RootInode,
	}
	for i, v := range fields {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], v)
	}
	return buf
}

// DecodeSuperblock parses a Superblock out of a buffer at least
// SuperblockSize bytes long, validates its magic number, and (when
// expectedBlockSize is nonzero) checks its block size against
// expectedBlockSize.
func DecodeSuperblock(buf []byte, expectedBlockSize uint32) (Superblock, error) {
	if len(buf) < SuperblockSize {
		return Superblock{}, aioserrors.ErrInvalidImage.WithMessage("superblock buffer too short")
	}
	read := func(i int) uint32 { return binary.LittleEndian.Uint32(buf[i*4 : i*4+4]) }

	sb := Superblock{
		Magic:             read(0),
		BlockSize:         read(1),
		TotalBlocks:       read(2),
		InodeCount:        read(3),
		InodeBitmapStart:  read(4),
		InodeBitmapBlocks: read(5),
		DataBitmapStart:   read(6),
		DataBitmapBlocks:  read(7),
		InodeTableStart:   read(8),
		InodeTableBlocks:  read(9),
		DataRegionStart:   read(10),
		DataRegionBlocks:  read(11),
		RootInode:         read(12),
	}

	if sb.Magic != Magic {
		return Superblock{}, aioserrors.ErrInvalidImage.WithMessage("bad superblock magic")
	}
	if expectedBlockSize != 0 && sb.BlockSize != expectedBlockSize {
		return Superblock{}, aioserrors.ErrInvalidImage.WithMessage("superblock block size does not match device")
	}
	return sb, nil
}
