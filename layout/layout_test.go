package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDefaultGeometry(t *testing.T) {
	sb, err := Compute(1024, 256, 4096)
	require.NoError(t, err)

	assert.Equal(t, uint32(Magic), sb.Magic)
	assert.Equal(t, uint32(1), sb.InodeBitmapStart)
	assert.Equal(t, uint32(1), sb.InodeBitmapBlocks) // 256 bits fits in one 4096-byte block
	assert.Equal(t, uint32(2), sb.InodeTableStart)
	assert.Equal(t, uint32(3), sb.InodeTableBlocks) // 256*40 = 10240 bytes -> ceil(10240/4096) = 3
	assert.Equal(t, uint32(5), sb.DataBitmapStart)
	assert.Equal(t, uint32(1), sb.DataBitmapBlocks) // 1024 bits fits in one block
	assert.Equal(t, uint32(6), sb.DataRegionStart)
	assert.Equal(t, uint32(1018), sb.DataRegionBlocks)
	assert.Equal(t, uint32(RootInode), sb.RootInode)
}

func TestComputeRejectsImageTooSmallForMetadata(t *testing.T) {
	_, err := Compute(4, 256, 4096)
	require.Error(t, err)
}

func TestComputeRejectsZeroInputs(t *testing.T) {
	_, err := Compute(0, 1, 4096)
	require.Error(t, err)

	_, err = Compute(100, 0, 4096)
	require.Error(t, err)

	_, err = Compute(100, 1, 0)
	require.Error(t, err)
}

func TestComputeIsDeterministic(t *testing.T) {
	a, err := Compute(2048, 512, 1024)
	require.NoError(t, err)
	b, err := Compute(2048, 512, 1024)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSuperblockEncodeDecodeRoundTrip(t *testing.T) {
	sb, err := Compute(1024, 256, 4096)
	require.NoError(t, err)

	buf := sb.Encode()
	assert.Len(t, buf, SuperblockSize)

	decoded, err := DecodeSuperblock(buf, 4096)
	require.NoError(t, err)
	assert.Equal(t, sb, decoded)
}

func TestDecodeSuperblockRejectsBadMagic(t *testing.T) {
	buf := make([]byte, SuperblockSize)
	_, err := DecodeSuperblock(buf, 4096)
	require.Error(t, err)
}

func TestDecodeSuperblockRejectsMismatchedBlockSize(t *testing.T) {
	sb, err := Compute(1024, 256, 4096)
	require.NoError(t, err)
	buf := sb.Encode()

	_, err = DecodeSuperblock(buf, 512)
	require.Error(t, err)
}
