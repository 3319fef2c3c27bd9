package blockdev

import (
	"encoding/binary"

	"github.com/b3p3k0/AIOS/aioserrors"
)

// Sector size and protocol constants from the legacy virtio-blk spec, as
// consumed by original_source/kernel/virtio_blk.c.
const (
	virtioSectorSize = 512

	virtioVendorID = 0x1AF4
	virtioDeviceID = 0x1001

	virtioBlkTypeIn  = 0
	virtioBlkTypeOut = 1

	virtioStatusAcknowledge = 0x01
	virtioStatusDriver      = 0x02
	virtioStatusDriverOK    = 0x04
	virtioStatusFeaturesOK  = 0x08

	regDeviceFeatures = 0x00
	regQueueAddress   = 0x08
	regQueueSize      = 0x0C
	regQueueSelect    = 0x0E
	regQueueNotify    = 0x10
	regDeviceStatus   = 0x12
	regISRStatus      = 0x13
	regDeviceConfig   = 0x20

	descFlagNext  = 1
	descFlagWrite = 2

	// DefaultSpinLimit bounds how many times ReadBlock/WriteBlock poll the
	// used ring before giving up, per spec §4.D.
	DefaultSpinLimit = 1 << 24

	virtqDescSize  = 16 // addr(8) + len(4) + flags(2) + next(2)
	virtqAvailBase = 4  // flags(2) + idx(2), ring follows
	virtqUsedBase  = 4  // flags(2) + idx(2), ring follows
	virtqUsedElem  = 8  // id(4) + len(4)
)

// PhysMem models the physical memory a bare-metal driver hands descriptor and
// buffer addresses into. Production code backs it with real physical RAM;
// FakePCIBus's companion arena backs it in tests. Addresses are opaque
// integers the driver never dereferences directly -- only PhysMem does.
//
// Grounded on original_source/kernel/mem.h's bump allocator
// (kalloc/kalloc_aligned): AllocAligned never frees and hands back
// monotonically increasing addresses.
type PhysMem interface {
	AllocAligned(size, alignment uint32) uint64
	Read(addr uint64, buf []byte) error
	Write(addr uint64, buf []byte) error
}

// VirtioDevice drives a legacy virtio-blk controller discovered on a PCIBus,
// presenting it as a Device. One request (header, data, status) is submitted
// and polled to completion per ReadBlock/WriteBlock call; there is no command
// queuing.
type VirtioDevice struct {
	bus  PCIBus
	mem  PhysMem
	pciBusNum, pciDevice, pciFunction uint8

	iobase   uint16
	queueSize uint16

	descAddr  uint64
	availAddr uint64
	usedAddr  uint64
	usedIdx   uint16

	reqAddr     uint64
	statusAddr  uint64
	dataScratch uint64

	capacitySectors  uint64
	sectorsPerBlock  uint32
	blockSize        uint32

	// SpinLimit bounds the ReadBlock/WriteBlock poll loop. Zero means
	// DefaultSpinLimit.
	SpinLimit uint32
}

// OpenVirtio scans every device/function on PCI buses 0-31 for a virtio-blk
// controller,
// negotiates it into the driver-ok state, sets up its virtqueue in mem, and
// returns a Device reading/writing blockSize-byte blocks. blockSize must be a
// multiple of the 512-byte virtio sector size.
//
// Grounded on original_source/kernel/virtio_blk.c's virtio_blk_init.
func OpenVirtio(bus PCIBus, mem PhysMem, blockSize uint32) (*VirtioDevice, error) {
	if blockSize == 0 || blockSize%virtioSectorSize != 0 {
		return nil, aioserrors.ErrInvalidArgument.WithMessage(
			"virtio block size must be a multiple of 512",
		)
	}

	d := &VirtioDevice{bus: bus, mem: mem, blockSize: blockSize, sectorsPerBlock: blockSize / virtioSectorSize}

	if !d.findDevice() {
		return nil, aioserrors.ErrIoFailure.WithMessage("no virtio-blk device found on PCI bus")
	}

	bar0 := pciReadConfig32(bus, d.pciBusNum, d.pciDevice, d.pciFunction, 0x10)
	d.iobase = uint16(bar0 &^ 0x3)

	command := pciReadConfig16(bus, d.pciBusNum, d.pciDevice, d.pciFunction, 0x04)
	command |= (1 << 0) | (1 << 2) // I/O space + bus master
	pciWriteConfig16(bus, d.pciBusNum, d.pciDevice, d.pciFunction, 0x04, command)

	d.writeStatus(0)
	d.writeStatus(virtioStatusAcknowledge)
	d.writeStatus(virtioStatusAcknowledge | virtioStatusDriver)
	d.writeStatus(d.readStatus() | virtioStatusFeaturesOK)
	if d.readStatus()&virtioStatusFeaturesOK == 0 {
		return nil, aioserrors.ErrIoFailure.WithMessage("virtio-blk did not accept FEATURES_OK")
	}

	if err := d.setupQueue(); err != nil {
		return nil, err
	}

	d.reqAddr = mem.AllocAligned(16, 1)
	d.statusAddr = mem.AllocAligned(1, 1)

	d.capacitySectors = d.readCapacity()
	d.writeStatus(d.readStatus() | virtioStatusDriverOK)

	return d, nil
}

func (d *VirtioDevice) findDevice() bool {
	for bus := 0; bus < 32; bus++ {
		for dev := 0; dev < 32; dev++ {
			for fn := 0; fn < 8; fn++ {
				vendor := pciReadConfig16(d.bus, uint8(bus), uint8(dev), uint8(fn), 0x00)
				if vendor == 0xFFFF {
					continue
				}
				deviceID := pciReadConfig16(d.bus, uint8(bus), uint8(dev), uint8(fn), 0x02)
				if vendor == virtioVendorID && deviceID == virtioDeviceID {
					d.pciBusNum, d.pciDevice, d.pciFunction = uint8(bus), uint8(dev), uint8(fn)
					return true
				}
			}
		}
	}
	return false
}

func (d *VirtioDevice) writeStatus(status uint8) { d.bus.Out8(d.iobase+regDeviceStatus, status) }
func (d *VirtioDevice) readStatus() uint8        { return d.bus.In8(d.iobase + regDeviceStatus) }

func (d *VirtioDevice) readCapacity() uint64 {
	low := d.bus.In32(d.iobase + regDeviceConfig)
	high := d.bus.In32(d.iobase + regDeviceConfig + 4)
	return uint64(high)<<32 | uint64(low)
}

func (d *VirtioDevice) setupQueue() error {
	d.bus.Out16(d.iobase+regQueueSelect, 0)
	qsz := d.bus.In16(d.iobase + regQueueSize)
	if qsz == 0 {
		return aioserrors.ErrIoFailure.WithMessage("virtio-blk reported empty queue")
	}
	d.queueSize = qsz

	descBytes := uint32(qsz) * virtqDescSize
	availBytes := uint32(virtqAvailBase) + uint32(qsz)*2
	usedBytes := uint32(virtqUsedBase) + uint32(qsz)*virtqUsedElem

	base := d.mem.AllocAligned(descBytes+availBytes+usedBytes+8, 0x1000)
	d.descAddr = base
	d.availAddr = base + uint64(descBytes)
	d.usedAddr = (d.availAddr + uint64(availBytes) + 3) &^ 3
	d.usedIdx = 0

	d.bus.Out32(d.iobase+regQueueAddress, uint32(d.descAddr>>12))
	return nil
}

func (d *VirtioDevice) BlockSize() uint32  { return d.blockSize }
func (d *VirtioDevice) BlockCount() uint32 { return uint32(d.capacitySectors / uint64(d.sectorsPerBlock)) }

func (d *VirtioDevice) ReadBlock(index uint32, buf []byte) error {
	return d.transfer(index, buf, virtioBlkTypeIn)
}

func (d *VirtioDevice) WriteBlock(index uint32, buf []byte) error {
	return d.transfer(index, buf, virtioBlkTypeOut)
}

// transfer submits one three-descriptor request chain (header, data, status)
// and polls the used ring to completion.
//
// Grounded on original_source/kernel/virtio_blk.c's virtio_blk_submit.
func (d *VirtioDevice) transfer(index uint32, buf []byte, reqType uint32) error {
	if err := CheckBounds(index, buf, d.blockSize, d.BlockCount()); err != nil {
		return err
	}
	lba := uint64(index) * uint64(d.sectorsPerBlock)

	var req [16]byte
	binary.LittleEndian.PutUint32(req[0:4], reqType)
	binary.LittleEndian.PutUint32(req[4:8], 0)
	binary.LittleEndian.PutUint64(req[8:16], lba)
	if err := d.mem.Write(d.reqAddr, req[:]); err != nil {
		return aioserrors.ErrIoFailure.WrapError(err)
	}

	if reqType == virtioBlkTypeOut {
		if err := d.mem.Write(d.dataAddr(), buf); err != nil {
			return aioserrors.ErrIoFailure.WrapError(err)
		}
	}

	d.mem.Write(d.statusAddr, []byte{0xFF})

	availIdx, err := d.readAvailIdx()
	if err != nil {
		return err
	}
	ring := availIdx % d.queueSize

	d.writeDesc(0, d.reqAddr, 16, descFlagNext, 1)
	dataFlags := uint16(descFlagNext)
	if reqType == virtioBlkTypeIn {
		dataFlags |= descFlagWrite
	}
	d.writeDesc(1, d.dataAddr(), uint32(len(buf)), dataFlags, 2)
	d.writeDesc(2, d.statusAddr, 1, descFlagWrite, 0)

	if err := d.setAvailRing(ring, 0); err != nil {
		return err
	}
	if err := d.incrementAvailIdx(); err != nil {
		return err
	}
	d.bus.Out16(d.iobase+regQueueNotify, 0)

	spinLimit := d.SpinLimit
	if spinLimit == 0 {
		spinLimit = DefaultSpinLimit
	}
	var spins uint32
	for {
		usedIdx, err := d.readUsedIdx()
		if err != nil {
			return err
		}
		if usedIdx != d.usedIdx {
			d.usedIdx = usedIdx
			break
		}
		isr := d.bus.In8(d.iobase + regISRStatus)
		if isr&0x1 != 0 {
			continue
		}
		spins++
		if spins >= spinLimit {
			return aioserrors.ErrIoFailure.WithMessage("virtio-blk request timed out")
		}
	}

	if reqType == virtioBlkTypeIn {
		if err := d.mem.Read(d.dataAddr(), buf); err != nil {
			return aioserrors.ErrIoFailure.WrapError(err)
		}
	}

	var status [1]byte
	if err := d.mem.Read(d.statusAddr, status[:]); err != nil {
		return aioserrors.ErrIoFailure.WrapError(err)
	}
	if status[0] != 0 {
		return aioserrors.ErrIoFailure.WithMessage("virtio-blk returned a non-zero status")
	}
	return nil
}

// dataAddr returns the scratch buffer the data descriptor points at, a
// separate blockSize-byte allocation made from mem the first time transfer
// needs it.
func (d *VirtioDevice) dataAddr() uint64 {
	if d.dataScratch == 0 {
		d.dataScratch = d.mem.AllocAligned(d.blockSize, 1)
	}
	return d.dataScratch
}

func (d *VirtioDevice) writeDesc(slot uint16, addr uint64, length uint32, flags, next uint16) {
	var raw [virtqDescSize]byte
	binary.LittleEndian.PutUint64(raw[0:8], addr)
	binary.LittleEndian.PutUint32(raw[8:12], length)
	binary.LittleEndian.PutUint16(raw[12:14], flags)
	binary.LittleEndian.PutUint16(raw[14:16], next)
	d.mem.Write(d.descAddr+uint64(slot)*virtqDescSize, raw[:])
}

func (d *VirtioDevice) readAvailIdx() (uint16, error) {
	var raw [2]byte
	if err := d.mem.Read(d.availAddr+2, raw[:]); err != nil {
		return 0, aioserrors.ErrIoFailure.WrapError(err)
	}
	return binary.LittleEndian.Uint16(raw[:]), nil
}

func (d *VirtioDevice) incrementAvailIdx() error {
	idx, err := d.readAvailIdx()
	if err != nil {
		return err
	}
	var raw [2]byte
	binary.LittleEndian.PutUint16(raw[:], idx+1)
	if err := d.mem.Write(d.availAddr+2, raw[:]); err != nil {
		return aioserrors.ErrIoFailure.WrapError(err)
	}
	return nil
}

func (d *VirtioDevice) setAvailRing(slot uint16, descHead uint16) error {
	var raw [2]byte
	binary.LittleEndian.PutUint16(raw[:], descHead)
	offset := d.availAddr + virtqAvailBase + uint64(slot)*2
	if err := d.mem.Write(offset, raw[:]); err != nil {
		return aioserrors.ErrIoFailure.WrapError(err)
	}
	return nil
}

func (d *VirtioDevice) readUsedIdx() (uint16, error) {
	var raw [2]byte
	if err := d.mem.Read(d.usedAddr+2, raw[:]); err != nil {
		return 0, aioserrors.ErrIoFailure.WrapError(err)
	}
	return binary.LittleEndian.Uint16(raw[:]), nil
}
