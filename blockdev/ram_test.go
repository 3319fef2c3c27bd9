package blockdev

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRAMDeviceReadWriteRoundTrip(t *testing.T) {
	dev := NewRAMDevice(4096, 16)
	assert.Equal(t, uint32(4096), dev.BlockSize())
	assert.Equal(t, uint32(16), dev.BlockCount())

	want := make([]byte, 4096)
	for i := range want {
		want[i] = byte(i)
	}
	require.NoError(t, dev.WriteBlock(3, want))

	got := make([]byte, 4096)
	require.NoError(t, dev.ReadBlock(3, got))
	assert.Equal(t, want, got)

	other := make([]byte, 4096)
	require.NoError(t, dev.ReadBlock(0, other))
	assert.NotEqual(t, want, other)
}

func TestRAMDeviceOutOfRangeBlock(t *testing.T) {
	dev := NewRAMDevice(512, 4)
	buf := make([]byte, 512)
	err := dev.ReadBlock(4, buf)
	require.Error(t, err)

	err = dev.WriteBlock(100, buf)
	require.Error(t, err)
}

func TestRAMDeviceWrongBufferSize(t *testing.T) {
	dev := NewRAMDevice(512, 4)
	err := dev.ReadBlock(0, make([]byte, 511))
	require.Error(t, err)
}

func TestWrapRAMBuffer(t *testing.T) {
	buf := make([]byte, 2048)
	dev := WrapRAMBuffer(buf, 512)
	assert.Equal(t, uint32(4), dev.BlockCount())
}
