package blockdev

import (
	"io"
	"os"

	"github.com/b3p3k0/AIOS/aioserrors"
)

// FileDevice serves blocks through positional I/O against a host file. It
// backs the hosted tool.
//
// Grounded on fs_shell/blockdev.c's bd_create/bd_open/full_pread/full_pwrite:
// short positional reads and writes are retried until the full block has
// been transferred, and EOF mid-block is a failure rather than a short read.
type FileDevice struct {
	file       *os.File
	blockSize  uint32
	blockCount uint32
}

// CreateFile creates (truncating if necessary) a disk image of exactly
// bs*nblocks bytes and opens it for reading and writing.
func CreateFile(path string, bs, nblocks uint32) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, aioserrors.ErrIoFailure.WrapError(err)
	}
	size := int64(bs) * int64(nblocks)
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, aioserrors.ErrIoFailure.WrapError(err)
	}
	return &FileDevice{file: f, blockSize: bs, blockCount: nblocks}, nil
}

// OpenFile opens an existing disk image for reading and writing. The block
// count is inferred from the file's size, which must be an exact multiple of
// bs.
func OpenFile(path string, bs uint32) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, aioserrors.ErrIoFailure.WrapError(err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, aioserrors.ErrIoFailure.WrapError(err)
	}
	if bs == 0 || stat.Size()%int64(bs) != 0 {
		f.Close()
		return nil, aioserrors.ErrInvalidImage.WithMessage(
			"image size is not a multiple of the block size",
		)
	}
	return &FileDevice{
		file:       f,
		blockSize:  bs,
		blockCount: uint32(stat.Size() / int64(bs)),
	}, nil
}

func (d *FileDevice) Close() error {
	return d.file.Close()
}

func (d *FileDevice) BlockSize() uint32  { return d.blockSize }
func (d *FileDevice) BlockCount() uint32 { return d.blockCount }

func (d *FileDevice) ReadBlock(index uint32, buf []byte) error {
	if err := CheckBounds(index, buf, d.blockSize, d.blockCount); err != nil {
		return err
	}
	offset := int64(index) * int64(d.blockSize)
	if err := fullPositionalIO(offset, buf, d.file.ReadAt); err != nil {
		return aioserrors.ErrIoFailure.WrapError(err)
	}
	return nil
}

func (d *FileDevice) WriteBlock(index uint32, buf []byte) error {
	if err := CheckBounds(index, buf, d.blockSize, d.blockCount); err != nil {
		return err
	}
	offset := int64(index) * int64(d.blockSize)
	if err := fullPositionalIO(offset, buf, func(p []byte, off int64) (int, error) {
		return d.file.WriteAt(p, off)
	}); err != nil {
		return aioserrors.ErrIoFailure.WrapError(err)
	}
	return nil
}

// fullPositionalIO repeats a positional read or write until buf has been
// completely transferred, failing on EOF mid-transfer rather than returning
// a short count.
func fullPositionalIO(offset int64, buf []byte, op func([]byte, int64) (int, error)) error {
	done := 0
	for done < len(buf) {
		n, err := op(buf[done:], offset+int64(done))
		if n > 0 {
			done += n
		}
		if err != nil {
			if err == io.EOF && done == len(buf) {
				break
			}
			return err
		}
	}
	return nil
}
