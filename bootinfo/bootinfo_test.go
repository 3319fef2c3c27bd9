package bootinfo

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildValidRecord(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, RecordSize)
	le := binary.LittleEndian

	le.PutUint64(buf[0:8], Magic)
	le.PutUint64(buf[8:16], Version)
	le.PutUint64(buf[16:24], 0x100000)
	le.PutUint64(buf[24:32], 0x200000)
	le.PutUint64(buf[32:40], 0x100000)
	le.PutUint64(buf[40:48], 0xE0000)
	copy(buf[48:52], "KVM")

	le.PutUint64(buf[56:64], 0xC0000000)
	le.PutUint32(buf[64:68], 1920)
	le.PutUint32(buf[68:72], 1080)
	le.PutUint32(buf[72:76], 1920)
	le.PutUint32(buf[76:80], 32)

	le.PutUint64(buf[80:88], 0x90000)
	le.PutUint64(buf[88:96], 4096)
	le.PutUint64(buf[96:104], 48)
	le.PutUint32(buf[104:108], 1)

	le.PutUint64(buf[112:120], 128*1024*1024)
	le.PutUint64(buf[120:128], 0x100000)
	le.PutUint64(buf[128:136], 64*1024*1024)

	le.PutUint64(buf[136:144], 16*1024*1024)
	le.PutUint32(buf[144:148], 512)
	buf[148] = 0
	copy(buf[152:168], "disk0")

	le.PutUint64(buf[168:176], 0x400000)
	le.PutUint64(buf[176:184], 4*1024*1024)

	var checksum uint32
	for i := 0; i+4 <= RecordSize; i += 4 {
		if i == 184 {
			continue
		}
		checksum ^= le.Uint32(buf[i : i+4])
	}
	le.PutUint32(buf[184:188], checksum)

	return buf
}

func TestDecodeValidRecord(t *testing.T) {
	buf := buildValidRecord(t)
	info, err := Decode(buf)
	require.NoError(t, err)

	assert.Equal(t, "KVM", info.AccelMode)
	assert.Equal(t, uint32(1920), info.Framebuffer.Width)
	assert.Equal(t, "disk0", info.BootDevice.Label)
	assert.Equal(t, uint64(0x400000), info.FSImageBase)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	buf := buildValidRecord(t)
	buf[0] ^= 0xFF
	_, err := Decode(buf)
	require.Error(t, err)
}

func TestDecodeRejectsBadChecksum(t *testing.T) {
	buf := buildValidRecord(t)
	buf[20] ^= 0xFF
	_, err := Decode(buf)
	require.Error(t, err)
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	_, err := Decode(make([]byte, RecordSize-1))
	require.Error(t, err)
}
