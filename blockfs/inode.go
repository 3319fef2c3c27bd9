package blockfs

import (
	"encoding/binary"

	"github.com/b3p3k0/AIOS/aioserrors"
	"github.com/b3p3k0/AIOS/layout"
)

// Inode is the in-memory form of a 40-byte on-disk inode record: a type tag,
// a byte size (file bytes, or directory entry bytes), and up to
// layout.DirectBlocks absolute data block numbers. There are no indirect
// blocks.
type Inode struct {
	Type   layout.InodeType
	Size   uint32
	Direct [layout.DirectBlocks]uint32
}

// encodeInode serializes an Inode to its fixed 40-byte on-disk form: type(1)
// + reserved(3) + size(4) + direct[8](32).
func encodeInode(in Inode) []byte {
	buf := make([]byte, layout.InodeRecordSize)
	buf[0] = byte(in.Type)
	binary.LittleEndian.PutUint32(buf[4:8], in.Size)
	for i, blk := range in.Direct {
		off := 8 + i*4
		binary.LittleEndian.PutUint32(buf[off:off+4], blk)
	}
	return buf
}

// decodeInode parses a 40-byte on-disk inode record.
func decodeInode(buf []byte) (Inode, error) {
	if len(buf) < layout.InodeRecordSize {
		return Inode{}, aioserrors.ErrInvalidImage.WithMessage("inode record buffer too short")
	}
	in := Inode{
		Type: layout.InodeType(buf[0]),
		Size: binary.LittleEndian.Uint32(buf[4:8]),
	}
	for i := range in.Direct {
		off := 8 + i*4
		in.Direct[i] = binary.LittleEndian.Uint32(buf[off : off+4])
	}
	return in, nil
}

// readInode loads inode number ino out of the inode table.
//
// Grounded on original_source/kernel/fs/fs.c's read_inode. Unlike the
// original, which lets a record's tail silently read past its source block
// whenever BlockSize isn't a multiple of InodeRecordSize, this always spans
// into the following inode table block rather than slicing past a buffer.
func (fs *Filesystem) readInode(ino uint32) (Inode, error) {
	if ino == 0 || ino >= fs.sb.InodeCount {
		return Inode{}, aioserrors.ErrNotFound.WithMessage("inode id out of range")
	}
	blockSize := fs.sb.BlockSize
	byteOffset := ino * layout.InodeRecordSize
	blk := fs.sb.InodeTableStart + byteOffset/blockSize
	within := byteOffset % blockSize

	rec, err := fs.readSpan(blk, within, layout.InodeRecordSize)
	if err != nil {
		return Inode{}, err
	}
	return decodeInode(rec)
}

// writeInode persists an inode record via read-modify-write of the block(s)
// that hold it.
//
// Grounded on original_source/kernel/fs/fs.c's write_inode; see readInode for
// why this spans blocks instead of assuming one record fits in one block.
func (fs *Filesystem) writeInode(ino uint32, in Inode) error {
	if ino == 0 || ino >= fs.sb.InodeCount {
		return aioserrors.ErrNotFound.WithMessage("inode id out of range")
	}
	blockSize := fs.sb.BlockSize
	byteOffset := ino * layout.InodeRecordSize
	blk := fs.sb.InodeTableStart + byteOffset/blockSize
	within := byteOffset % blockSize

	return fs.writeSpan(blk, within, encodeInode(in))
}

// readSpan reads length bytes starting at byte offset within of block blk,
// reading a second, consecutive block too if the span does not fit in the
// first one.
func (fs *Filesystem) readSpan(blk, within, length uint32) ([]byte, error) {
	blockSize := fs.sb.BlockSize
	first := make([]byte, blockSize)
	if err := fs.dev.ReadBlock(blk, first); err != nil {
		return nil, err
	}
	firstLen := blockSize - within
	if firstLen >= length {
		return append([]byte(nil), first[within:within+length]...), nil
	}

	out := make([]byte, length)
	copy(out, first[within:])
	second := make([]byte, blockSize)
	if err := fs.dev.ReadBlock(blk+1, second); err != nil {
		return nil, err
	}
	copy(out[firstLen:], second[:length-firstLen])
	return out, nil
}

// writeSpan is the write-side counterpart of readSpan: a read-modify-write
// of one block, or two consecutive blocks if data straddles the boundary.
func (fs *Filesystem) writeSpan(blk, within uint32, data []byte) error {
	blockSize := fs.sb.BlockSize
	first := make([]byte, blockSize)
	if err := fs.dev.ReadBlock(blk, first); err != nil {
		return err
	}
	firstLen := blockSize - within
	length := uint32(len(data))
	if firstLen >= length {
		copy(first[within:within+length], data)
		return fs.dev.WriteBlock(blk, first)
	}

	copy(first[within:], data[:firstLen])
	if err := fs.dev.WriteBlock(blk, first); err != nil {
		return err
	}
	second := make([]byte, blockSize)
	if err := fs.dev.ReadBlock(blk+1, second); err != nil {
		return err
	}
	copy(second[:length-firstLen], data[firstLen:])
	return fs.dev.WriteBlock(blk+1, second)
}
