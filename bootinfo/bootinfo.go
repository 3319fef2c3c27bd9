// Package bootinfo decodes the fixed hand-off record the boot loader leaves
// for the kernel: load addresses, firmware-provided memory and framebuffer
// descriptors, the boot block device's geometry, and (when present) an
// embedded filesystem image's location. The kernel only ever reads this
// record -- nothing in the filesystem core writes one.
//
// Grounded on original_source/include/aios/bootinfo.h, with the accel-mode
// tag narrowed to 4 bytes and an optional embedded FS image location added
// per this project's own handoff contract.
package bootinfo

import (
	"encoding/binary"

	"github.com/b3p3k0/AIOS/aioserrors"
)

// Magic is "AIOSBOOT" packed into a little-endian uint64.
const Magic = 0x544F4F42534F4941

// Version is the only boot-info record version this package understands.
const Version = 1

// Framebuffer describes the firmware-provided linear framebuffer, if any.
type Framebuffer struct {
	Base              uint64
	Width             uint32
	Height            uint32
	PixelsPerScanline uint32
	BitsPerPixel      uint32
}

// MemoryMap describes the firmware memory map buffer handed to the kernel.
type MemoryMap struct {
	Buffer            uint64
	Size              uint64
	DescriptorSize    uint64
	DescriptorVersion uint32
}

// MemorySummary is a coarse usable-memory summary computed by the loader.
type MemorySummary struct {
	TotalUsableBytes   uint64
	LargestUsableBase  uint64
	LargestUsableSize  uint64
}

// BlockDevice describes the device the loader booted from.
type BlockDevice struct {
	TotalBytes uint64
	BlockSize  uint32
	Removable  bool
	Label      string // up to 16 bytes, NUL-trimmed
}

// Info is the fully decoded boot-info record.
type Info struct {
	Version      uint64
	KernelBase   uint64
	KernelSize   uint64
	EntryPoint   uint64
	RSDPAddress  uint64
	AccelMode    string // up to 4 bytes, NUL-trimmed, e.g. "KVM" or "TCG"
	Framebuffer  Framebuffer
	MemoryMap    MemoryMap
	Memory       MemorySummary
	BootDevice   BlockDevice
	FSImageBase  uint64
	FSImageSize  uint64 // zero means no embedded image
}

// RecordSize is the on-disk size in bytes of the encoded record, matching
// the natural alignment a C compiler would apply to the equivalent struct on
// a 64-bit target.
const RecordSize = 8 + // magic
	8 + // version
	8 + 8 + 8 + // kernel_base, kernel_size, entry_point
	8 + // rsdp_address
	4 + 4 + // accel_mode + padding
	24 + // framebuffer
	32 + // memory_map (with trailing padding)
	24 + // memory_summary
	32 + // boot_device (with internal padding)
	8 + 8 + // fs image base/size
	4 + 4 // checksum + trailing padding

func trimNulString(b []byte) string {
	n := len(b)
	for i, c := range b {
		if c == 0 {
			n = i
			break
		}
	}
	return string(b[:n])
}

// Decode parses and validates a boot-info record out of buf, checking the
// magic and the 32-bit XOR checksum computed over the record with the
// checksum field zeroed.
func Decode(buf []byte) (Info, error) {
	if len(buf) < RecordSize {
		return Info{}, aioserrors.ErrInvalidImage.WithMessage("boot-info record too short")
	}

	if err := verifyChecksum(buf); err != nil {
		return Info{}, err
	}

	le := binary.LittleEndian
	magic := le.Uint64(buf[0:8])
	if magic != Magic {
		return Info{}, aioserrors.ErrInvalidImage.WithMessage("bad boot-info magic")
	}

	info := Info{
		Version:     le.Uint64(buf[8:16]),
		KernelBase:  le.Uint64(buf[16:24]),
		KernelSize:  le.Uint64(buf[24:32]),
		EntryPoint:  le.Uint64(buf[32:40]),
		RSDPAddress: le.Uint64(buf[40:48]),
		AccelMode:   trimNulString(buf[48:52]),
	}

	fb := buf[56:80]
	info.Framebuffer = Framebuffer{
		Base:              le.Uint64(fb[0:8]),
		Width:             le.Uint32(fb[8:12]),
		Height:            le.Uint32(fb[12:16]),
		PixelsPerScanline: le.Uint32(fb[16:20]),
		BitsPerPixel:      le.Uint32(fb[20:24]),
	}

	mm := buf[80:112]
	info.MemoryMap = MemoryMap{
		Buffer:            le.Uint64(mm[0:8]),
		Size:              le.Uint64(mm[8:16]),
		DescriptorSize:    le.Uint64(mm[16:24]),
		DescriptorVersion: le.Uint32(mm[24:28]),
	}

	ms := buf[112:136]
	info.Memory = MemorySummary{
		TotalUsableBytes:  le.Uint64(ms[0:8]),
		LargestUsableBase: le.Uint64(ms[8:16]),
		LargestUsableSize: le.Uint64(ms[16:24]),
	}

	bd := buf[136:168]
	info.BootDevice = BlockDevice{
		TotalBytes: le.Uint64(bd[0:8]),
		BlockSize:  le.Uint32(bd[8:12]),
		Removable:  bd[12] != 0,
		Label:      trimNulString(bd[16:32]),
	}

	info.FSImageBase = le.Uint64(buf[168:176])
	info.FSImageSize = le.Uint64(buf[176:184])

	if info.Version != Version {
		return Info{}, aioserrors.ErrInvalidImage.WithMessage("unsupported boot-info version")
	}

	return info, nil
}

func verifyChecksum(buf []byte) error {
	stored := binary.LittleEndian.Uint32(buf[184:188])

	var checksum uint32
	for i := 0; i+4 <= RecordSize; i += 4 {
		if i == 184 {
			continue // checksum field itself reads as zero
		}
		checksum ^= binary.LittleEndian.Uint32(buf[i : i+4])
	}

	if checksum != stored {
		return aioserrors.ErrInvalidImage.WithMessage("boot-info checksum mismatch")
	}
	return nil
}
