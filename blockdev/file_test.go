package blockdev

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDeviceCreateWriteReopenReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.bin")

	dev, err := CreateFile(path, 512, 8)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), dev.BlockCount())

	payload := make([]byte, 512)
	for i := range payload {
		payload[i] = 0xAB
	}
	require.NoError(t, dev.WriteBlock(5, payload))
	require.NoError(t, dev.Close())

	reopened, err := OpenFile(path, 512)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, uint32(8), reopened.BlockCount())

	got := make([]byte, 512)
	require.NoError(t, reopened.ReadBlock(5, got))
	assert.Equal(t, payload, got)
}

func TestOpenFileRejectsMisalignedSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.bin")
	dev, err := CreateFile(path, 512, 3)
	require.NoError(t, err)
	require.NoError(t, dev.Close())

	_, err = OpenFile(path, 513)
	require.Error(t, err)
}

func TestFileDeviceOutOfRangeBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.bin")
	dev, err := CreateFile(path, 512, 2)
	require.NoError(t, err)
	defer dev.Close()

	err = dev.ReadBlock(2, make([]byte, 512))
	require.Error(t, err)
}
