package blockfs

import "github.com/b3p3k0/AIOS/aioserrors"

// writeAt performs a read-modify-write of every block covered by
// [offset, offset+len), allocating and zeroing new direct blocks as needed,
// and grows size to at least offset+len. The inode is not persisted here;
// the caller writes it back once the operation that invoked writeAt
// succeeds as a whole.
//
// Grounded on original_source/kernel/fs/fs.c's fs_write_file.
func (fs *Filesystem) writeAt(in *Inode, offset uint32, data []byte) error {
	blockSize := fs.sb.BlockSize
	maxBytes := uint32(len(in.Direct)) * blockSize
	if uint64(offset)+uint64(len(data)) > uint64(maxBytes) {
		return aioserrors.ErrNoSpace.WithMessage("write exceeds maximum file size")
	}

	remaining := len(data)
	written := 0
	pos := offset

	for remaining > 0 {
		blockIdx := pos / blockSize
		within := pos % blockSize

		if in.Direct[blockIdx] == 0 {
			blk, err := fs.allocDataBlock()
			if err != nil {
				return err
			}
			in.Direct[blockIdx] = blk
			zero := make([]byte, blockSize)
			if err := fs.dev.WriteBlock(blk, zero); err != nil {
				return err
			}
		}

		buf := make([]byte, blockSize)
		if err := fs.dev.ReadBlock(in.Direct[blockIdx], buf); err != nil {
			return err
		}

		chunk := blockSize - within
		if uint32(remaining) < chunk {
			chunk = uint32(remaining)
		}
		copy(buf[within:within+chunk], data[written:written+int(chunk)])

		if err := fs.dev.WriteBlock(in.Direct[blockIdx], buf); err != nil {
			return err
		}

		remaining -= int(chunk)
		written += int(chunk)
		pos += chunk
	}

	if newSize := offset + uint32(len(data)); newSize > in.Size {
		in.Size = newSize
	}
	return nil
}

// readAt copies up to len(out) bytes starting at offset into out, clamped to
// the inode's current size, and returns the number of bytes actually copied.
// Reading at or beyond size returns zero bytes without error.
//
// Grounded on original_source/kernel/fs/fs.c's fs_read_file.
func (fs *Filesystem) readAt(in Inode, offset uint32, out []byte) (int, error) {
	if offset >= in.Size {
		return 0, nil
	}
	blockSize := fs.sb.BlockSize

	remaining := len(out)
	if uint64(offset)+uint64(remaining) > uint64(in.Size) {
		remaining = int(in.Size - offset)
	}

	read := 0
	pos := offset
	for remaining > 0 {
		blockIdx := pos / blockSize
		within := pos % blockSize
		if blockIdx >= uint32(len(in.Direct)) || in.Direct[blockIdx] == 0 {
			break
		}

		buf := make([]byte, blockSize)
		if err := fs.dev.ReadBlock(in.Direct[blockIdx], buf); err != nil {
			return read, err
		}

		chunk := blockSize - within
		if uint32(remaining) < chunk {
			chunk = uint32(remaining)
		}
		copy(out[read:read+int(chunk)], buf[within:within+chunk])

		remaining -= int(chunk)
		read += int(chunk)
		pos += chunk
	}

	return read, nil
}
