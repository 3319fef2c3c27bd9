package bitmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b3p3k0/AIOS/blockdev"
)

func TestAllocFirstFitSkipsUsedBits(t *testing.T) {
	a := New(8)
	a.Set(0)
	a.Set(1)

	idx, err := a.AllocFirstFit(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), idx)
	assert.True(t, a.Test(2))
}

func TestAllocFirstFitExhausted(t *testing.T) {
	a := New(2)
	_, err := a.AllocFirstFit(0)
	require.NoError(t, err)
	_, err = a.AllocFirstFit(0)
	require.NoError(t, err)

	_, err = a.AllocFirstFit(0)
	require.Error(t, err)
}

func TestClearFreesABit(t *testing.T) {
	a := New(4)
	a.Set(1)
	require.True(t, a.Test(1))
	a.Clear(1)
	assert.False(t, a.Test(1))
}

func TestFlushAndLoadFromDeviceRoundTrip(t *testing.T) {
	dev := blockdev.NewRAMDevice(512, 4)

	a := New(100)
	a.Set(0)
	a.Set(42)
	a.Set(99)

	require.NoError(t, a.Flush(dev, 1, 1))

	loaded, err := LoadFromDevice(dev, 1, 1, 100)
	require.NoError(t, err)

	assert.True(t, loaded.Test(0))
	assert.True(t, loaded.Test(42))
	assert.True(t, loaded.Test(99))
	assert.False(t, loaded.Test(50))
}
