package blockdev

import "encoding/binary"

// Arena is a PhysMem backed by a single growable byte slice, standing in for
// physical RAM in tests. Addresses are byte offsets into the slice.
type Arena struct {
	buf []byte
}

// NewArena allocates an Arena whose first size bytes are reserved.
// AllocAligned places every allocation after them, growing the slice as
// needed, so with a nonzero size no allocation starts at address 0.
func NewArena(size uint32) *Arena {
	return &Arena{buf: make([]byte, size)}
}

func (a *Arena) AllocAligned(size, alignment uint32) uint64 {
	offset := uint64(len(a.buf))
	if alignment > 1 {
		rem := offset % uint64(alignment)
		if rem != 0 {
			pad := uint64(alignment) - rem
			a.buf = append(a.buf, make([]byte, pad)...)
			offset += pad
		}
	}
	a.buf = append(a.buf, make([]byte, size)...)
	return offset
}

func (a *Arena) Read(addr uint64, buf []byte) error {
	copy(buf, a.buf[addr:addr+uint64(len(buf))])
	return nil
}

func (a *Arena) Write(addr uint64, buf []byte) error {
	copy(a.buf[addr:addr+uint64(len(buf))], buf)
	return nil
}

// FakePCIBus emulates one virtio-blk PCI function plus its register window,
// enough to drive VirtioDevice through discovery, status negotiation, queue
// setup, and request submission without real hardware.
//
// The fake shares an Arena with the VirtioDevice under test so that
// descriptor, avail-ring, and data addresses it reads back out of the queue
// resolve to the same backing storage the driver wrote them into.
type FakePCIBus struct {
	Mem *Arena

	// Backing store for the emulated disk, Capacity/512 sectors.
	Disk []byte

	busNum, device, function uint8
	iobase                   uint16

	configSpace [64]byte
	status      uint8
	queueSize   uint16
	queueAddr   uint32

	configAddrLatch uint32
	injected        bool // not read or set by any FakePCIBus method
}

// NewFakePCIBus creates a fake virtio-blk function of the given disk capacity
// (in bytes, must be a multiple of 512) at the given synthetic bus address,
// with its I/O register window based at iobase.
func NewFakePCIBus(mem *Arena, capacityBytes uint64, busNum, device, function uint8, iobase uint16, queueSize uint16) *FakePCIBus {
	f := &FakePCIBus{
		Mem:       mem,
		Disk:      make([]byte, capacityBytes),
		busNum:    busNum,
		device:    device,
		function:  function,
		iobase:    iobase,
		queueSize: queueSize,
	}
	binary.LittleEndian.PutUint16(f.configSpace[0:2], virtioVendorID)
	binary.LittleEndian.PutUint16(f.configSpace[2:4], virtioDeviceID)
	binary.LittleEndian.PutUint32(f.configSpace[0x10:0x14], uint32(iobase)|0x1) // BAR0, I/O space bit set
	return f
}

func (f *FakePCIBus) matches(bus, device, function uint8) bool {
	return bus == f.busNum && device == f.device && function == f.function
}

func (f *FakePCIBus) Out32(port uint16, value uint32) {
	switch port {
	case pciConfigAddress:
		f.configAddrLatch = value
	case pciConfigData:
		bus := uint8((f.configAddrLatch >> 16) & 0xFF)
		device := uint8((f.configAddrLatch >> 11) & 0x1F)
		function := uint8((f.configAddrLatch >> 8) & 0x7)
		offset := uint8(f.configAddrLatch & 0xFC)
		if f.matches(bus, device, function) && int(offset)+4 <= len(f.configSpace) {
			copy(f.configSpace[offset:offset+4], littleEndian32(value))
		}
	default:
		f.ioWrite32(port, value)
	}
}

func (f *FakePCIBus) In32(port uint16) uint32 {
	switch port {
	case pciConfigAddress:
		return f.configAddrLatch
	case pciConfigData:
		bus := uint8((f.configAddrLatch >> 16) & 0xFF)
		device := uint8((f.configAddrLatch >> 11) & 0x1F)
		function := uint8((f.configAddrLatch >> 8) & 0x7)
		offset := uint8(f.configAddrLatch & 0xFC)
		if f.matches(bus, device, function) && int(offset)+4 <= len(f.configSpace) {
			return binary.LittleEndian.Uint32(f.configSpace[offset : offset+4])
		}
		return 0xFFFFFFFF
	default:
		return f.ioRead32(port)
	}
}

func (f *FakePCIBus) Out16(port uint16, value uint16) { f.ioWrite16(port, value) }
func (f *FakePCIBus) In16(port uint16) uint16          { return f.ioRead16(port) }
func (f *FakePCIBus) Out8(port uint16, value uint8)   { f.ioWrite8(port, value) }
func (f *FakePCIBus) In8(port uint16) uint8            { return f.ioRead8(port) }

func (f *FakePCIBus) ioWrite8(port uint16, value uint8) {
	offset := port - f.iobase
	switch offset {
	case regDeviceStatus:
		f.status = value
	}
}

func (f *FakePCIBus) ioRead8(port uint16) uint8 {
	offset := port - f.iobase
	switch offset {
	case regDeviceStatus:
		return f.status
	case regISRStatus:
		return 0
	}
	return 0
}

func (f *FakePCIBus) ioWrite16(port uint16, value uint16) {
	offset := port - f.iobase
	switch offset {
	case regQueueSelect:
		// single queue 0, nothing to select
	case regQueueNotify:
		f.processQueue()
	}
}

func (f *FakePCIBus) ioRead16(port uint16) uint16 {
	offset := port - f.iobase
	switch offset {
	case regQueueSize:
		return f.queueSize
	}
	return 0
}

func (f *FakePCIBus) ioWrite32(port uint16, value uint32) {
	offset := port - f.iobase
	switch offset {
	case regQueueAddress:
		f.queueAddr = value
	}
}

func (f *FakePCIBus) ioRead32(port uint16) uint32 {
	offset := port - f.iobase
	switch offset {
	case regDeviceConfig:
		return uint32(len(f.Disk) / virtioSectorSize)
	case regDeviceConfig + 4:
		return 0
	}
	return 0
}

// processQueue emulates the device side of one submitted request: it reads
// the descriptor chain the driver wrote into the shared arena, performs the
// read or write against Disk, writes the status byte, and advances the used
// ring -- mirroring what a real virtio-blk controller's firmware would do in
// response to a queue-notify kick.
func (f *FakePCIBus) processQueue() {
	descBase := uint64(f.queueAddr) << 12
	availBase := descBase + uint64(f.queueSize)*virtqDescSize
	usedBase := (availBase + virtqAvailBase + uint64(f.queueSize)*2 + 3) &^ 3

	var idxBuf [2]byte
	f.Mem.Read(availBase+2, idxBuf[:])
	availIdx := binary.LittleEndian.Uint16(idxBuf[:])
	if availIdx == 0 {
		return
	}
	ring := (availIdx - 1) % f.queueSize

	var headBuf [2]byte
	f.Mem.Read(availBase+virtqAvailBase+uint64(ring)*2, headBuf[:])
	head := binary.LittleEndian.Uint16(headBuf[:])

	hdrDesc := f.readDesc(descBase, head)
	dataDesc := f.readDesc(descBase, hdrDesc.next)
	statusDesc := f.readDesc(descBase, dataDesc.next)

	var hdr [16]byte
	f.Mem.Read(hdrDesc.addr, hdr[:])
	reqType := binary.LittleEndian.Uint32(hdr[0:4])
	sector := binary.LittleEndian.Uint64(hdr[8:16])
	byteOffset := sector * virtioSectorSize

	status := byte(0)
	if byteOffset+uint64(dataDesc.len) > uint64(len(f.Disk)) {
		status = 1
	} else if reqType == virtioBlkTypeOut {
		buf := make([]byte, dataDesc.len)
		f.Mem.Read(dataDesc.addr, buf)
		copy(f.Disk[byteOffset:], buf)
	} else {
		f.Mem.Write(dataDesc.addr, f.Disk[byteOffset:byteOffset+uint64(dataDesc.len)])
	}
	f.Mem.Write(statusDesc.addr, []byte{status})

	var usedIdxBuf [2]byte
	f.Mem.Read(usedBase+2, usedIdxBuf[:])
	usedIdx := binary.LittleEndian.Uint16(usedIdxBuf[:])

	elemOffset := usedBase + virtqUsedBase + uint64(usedIdx%f.queueSize)*virtqUsedElem
	var elem [virtqUsedElem]byte
	binary.LittleEndian.PutUint32(elem[0:4], uint32(head))
	binary.LittleEndian.PutUint32(elem[4:8], dataDesc.len)
	f.Mem.Write(elemOffset, elem[:])

	binary.LittleEndian.PutUint16(usedIdxBuf[:], usedIdx+1)
	f.Mem.Write(usedBase+2, usedIdxBuf[:])
}

type fakeDesc struct {
	addr  uint64
	len   uint32
	flags uint16
	next  uint16
}

func (f *FakePCIBus) readDesc(descBase uint64, slot uint16) fakeDesc {
	var raw [virtqDescSize]byte
	f.Mem.Read(descBase+uint64(slot)*virtqDescSize, raw[:])
	return fakeDesc{
		addr:  binary.LittleEndian.Uint64(raw[0:8]),
		len:   binary.LittleEndian.Uint32(raw[8:12]),
		flags: binary.LittleEndian.Uint16(raw[12:14]),
		next:  binary.LittleEndian.Uint16(raw[14:16]),
	}
}

func littleEndian32(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}
