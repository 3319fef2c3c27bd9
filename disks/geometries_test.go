package disks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetKnownPreset(t *testing.T) {
	g, err := Get("default")
	require.NoError(t, err)
	assert.Equal(t, uint32(1024), g.TotalBlocks)
	assert.Equal(t, uint32(4096), g.BlockSize)
	assert.Equal(t, uint32(256), g.InodeCount)
}

func TestGetUnknownPresetFails(t *testing.T) {
	_, err := Get("does-not-exist")
	require.Error(t, err)
}

func TestTotalSizeBytes(t *testing.T) {
	g, err := Get("tiny")
	require.NoError(t, err)
	assert.Equal(t, int64(64*512), g.TotalSizeBytes())
}

func TestSlugsIncludesDefault(t *testing.T) {
	assert.Contains(t, Slugs(), "default")
}
