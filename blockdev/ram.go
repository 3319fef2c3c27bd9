package blockdev

import (
	"io"

	"github.com/b3p3k0/AIOS/aioserrors"
	"github.com/xaionaro-go/bytesextra"
)

// RAMDevice serves blocks out of a contiguous in-memory byte buffer. It
// backs the bare-metal RAM disk and is also the fixture used by the
// filesystem's own tests.
type RAMDevice struct {
	stream     io.ReadWriteSeeker
	blockSize  uint32
	blockCount uint32
}

// NewRAMDevice allocates a zeroed buffer of blockCount*blockSize bytes and
// wraps it as a Device.
func NewRAMDevice(blockSize, blockCount uint32) *RAMDevice {
	buf := make([]byte, int(blockSize)*int(blockCount))
	return WrapRAMBuffer(buf, blockSize)
}

// WrapRAMBuffer adapts an existing byte slice as a RAMDevice. len(buf) must
// be an exact multiple of blockSize.
func WrapRAMBuffer(buf []byte, blockSize uint32) *RAMDevice {
	blockCount := uint32(len(buf)) / blockSize
	return &RAMDevice{
		stream:     bytesextra.NewReadWriteSeeker(buf),
		blockSize:  blockSize,
		blockCount: blockCount,
	}
}

func (d *RAMDevice) BlockSize() uint32  { return d.blockSize }
func (d *RAMDevice) BlockCount() uint32 { return d.blockCount }

func (d *RAMDevice) ReadBlock(index uint32, buf []byte) error {
	if err := CheckBounds(index, buf, d.blockSize, d.blockCount); err != nil {
		return err
	}
	if _, err := d.stream.Seek(int64(index)*int64(d.blockSize), io.SeekStart); err != nil {
		return aioserrors.ErrIoFailure.WrapError(err)
	}
	if _, err := io.ReadFull(d.stream, buf); err != nil {
		return aioserrors.ErrIoFailure.WrapError(err)
	}
	return nil
}

func (d *RAMDevice) WriteBlock(index uint32, buf []byte) error {
	if err := CheckBounds(index, buf, d.blockSize, d.blockCount); err != nil {
		return err
	}
	if _, err := d.stream.Seek(int64(index)*int64(d.blockSize), io.SeekStart); err != nil {
		return aioserrors.ErrIoFailure.WrapError(err)
	}
	if _, err := d.stream.Write(buf); err != nil {
		return aioserrors.ErrIoFailure.WrapError(err)
	}
	return nil
}
