package blockfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b3p3k0/AIOS/blockdev"
	"github.com/b3p3k0/AIOS/layout"
)

func newTestFS(t *testing.T, totalBlocks, inodeCount uint32) (*Filesystem, blockdev.Device) {
	t.Helper()
	dev := blockdev.NewRAMDevice(4096, totalBlocks)
	fs, err := Format(dev, inodeCount)
	require.NoError(t, err)
	return fs, dev
}

func names(entries []Dirent) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestFormatThenListRootHasOnlyDotEntries(t *testing.T) {
	fs, _ := newTestFS(t, 1024, 256)
	entries, err := fs.ListDir(fs.RootInode(), "/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{".", ".."}, names(entries))
}

func TestMakeDirNestedThenList(t *testing.T) {
	fs, _ := newTestFS(t, 1024, 256)
	require.NoError(t, fs.MakeDir(fs.RootInode(), "/alpha"))
	require.NoError(t, fs.MakeDir(fs.RootInode(), "/alpha/beta"))

	entries, err := fs.ListDir(fs.RootInode(), "/alpha")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{".", "..", "beta"}, names(entries))
}

func TestCreateWriteReadRoundTrip(t *testing.T) {
	fs, _ := newTestFS(t, 1024, 256)
	require.NoError(t, fs.CreateFile(fs.RootInode(), "/hello.txt"))
	require.NoError(t, fs.WriteFile(fs.RootInode(), "/hello.txt", []byte("hi\n"), 0))

	buf := make([]byte, 3)
	n, err := fs.ReadFile(fs.RootInode(), "/hello.txt", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "hi\n", string(buf))
}

func TestWriteAtSecondBlockAllocatesSecondDirect(t *testing.T) {
	fs, _ := newTestFS(t, 1024, 256)
	require.NoError(t, fs.CreateFile(fs.RootInode(), "/a"))

	filler := make([]byte, 4096)
	for i := range filler {
		filler[i] = 0xAA
	}
	require.NoError(t, fs.WriteFile(fs.RootInode(), "/a", filler, 0))
	require.NoError(t, fs.WriteFile(fs.RootInode(), "/a", []byte("Z"), 4096))

	buf := make([]byte, 1)
	n, err := fs.ReadFile(fs.RootInode(), "/a", buf, 4096)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "Z", string(buf))

	inode, _, err := fs.Lookup(fs.RootInode(), "/a")
	require.NoError(t, err)
	nonZero := 0
	for _, blk := range inode.Direct {
		if blk != 0 {
			nonZero++
		}
	}
	assert.Equal(t, 2, nonZero)
}

func TestWriteAtExactDirectBoundarySucceedsOneByteBeyondFails(t *testing.T) {
	fs, _ := newTestFS(t, 2048, 256)
	require.NoError(t, fs.CreateFile(fs.RootInode(), "/big"))

	maxBytes := uint32(layout.DirectBlocks) * fs.Superblock().BlockSize
	atBoundary := make([]byte, 1)
	require.NoError(t, fs.WriteFile(fs.RootInode(), "/big", atBoundary, maxBytes-1))

	oneByteBeyond := make([]byte, 1)
	err := fs.WriteFile(fs.RootInode(), "/big", oneByteBeyond, maxBytes)
	require.Error(t, err)
}

func TestZeroByteWriteSucceeds(t *testing.T) {
	fs, _ := newTestFS(t, 1024, 256)
	require.NoError(t, fs.CreateFile(fs.RootInode(), "/empty"))
	require.NoError(t, fs.WriteFile(fs.RootInode(), "/empty", nil, 0))

	inode, _, err := fs.Lookup(fs.RootInode(), "/empty")
	require.NoError(t, err)
	assert.Equal(t, uint32(0), inode.Size)
}

func TestReadBeyondEOFReturnsZero(t *testing.T) {
	fs, _ := newTestFS(t, 1024, 256)
	require.NoError(t, fs.CreateFile(fs.RootInode(), "/f"))
	require.NoError(t, fs.WriteFile(fs.RootInode(), "/f", []byte("abc"), 0))

	buf := make([]byte, 10)
	n, err := fs.ReadFile(fs.RootInode(), "/f", buf, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDirectoryFillsExactlyThenOneMoreFails(t *testing.T) {
	fs, _ := newTestFS(t, 1024, 256)
	require.NoError(t, fs.MakeDir(fs.RootInode(), "/d"))

	capacity := int(fs.dirCapacity()) - 2 // "." and ".." already occupy two slots
	for i := 0; i < capacity; i++ {
		require.NoError(t, fs.CreateFile(fs.RootInode(), "/d/f"+itoa(i)))
	}

	err := fs.CreateFile(fs.RootInode(), "/d/overflow")
	require.Error(t, err)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := []byte{}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}

func TestConsecutiveSlashesNormalized(t *testing.T) {
	fs, _ := newTestFS(t, 1024, 256)
	require.NoError(t, fs.MakeDir(fs.RootInode(), "/alpha"))

	_, _, err := fs.Lookup(fs.RootInode(), "//alpha///")
	require.NoError(t, err)
}

func TestDotDotAtRootResolvesToRoot(t *testing.T) {
	fs, _ := newTestFS(t, 1024, 256)
	_, ino, err := fs.Lookup(fs.RootInode(), "/..")
	require.NoError(t, err)
	assert.Equal(t, fs.RootInode(), ino)
}

func TestDotDotFromSubdirectoryGoesToParent(t *testing.T) {
	fs, _ := newTestFS(t, 1024, 256)
	require.NoError(t, fs.MakeDir(fs.RootInode(), "/alpha"))
	require.NoError(t, fs.MakeDir(fs.RootInode(), "/alpha/beta"))

	_, ino, err := fs.Lookup(fs.RootInode(), "/alpha/beta/..")
	require.NoError(t, err)

	_, alphaIno, err := fs.Lookup(fs.RootInode(), "/alpha")
	require.NoError(t, err)
	assert.Equal(t, alphaIno, ino)
}

func TestMakeDirThenDeleteThenRecreateReusesInode(t *testing.T) {
	fs, _ := newTestFS(t, 1024, 256)
	require.NoError(t, fs.MakeDir(fs.RootInode(), "/x"))
	_, firstIno, err := fs.Lookup(fs.RootInode(), "/x")
	require.NoError(t, err)
	require.NoError(t, fs.Delete(fs.RootInode(), "/x"))
	require.NoError(t, fs.MakeDir(fs.RootInode(), "/x"))

	_, secondIno, err := fs.Lookup(fs.RootInode(), "/x")
	require.NoError(t, err)
	assert.Equal(t, firstIno, secondIno)
}

func TestDeleteNonEmptyDirectoryFailsThenSucceedsAfterEmptying(t *testing.T) {
	fs, _ := newTestFS(t, 1024, 256)
	require.NoError(t, fs.MakeDir(fs.RootInode(), "/x"))
	require.NoError(t, fs.CreateFile(fs.RootInode(), "/x/f"))

	err := fs.Delete(fs.RootInode(), "/x")
	require.Error(t, err)

	require.NoError(t, fs.Delete(fs.RootInode(), "/x/f"))
	require.NoError(t, fs.Delete(fs.RootInode(), "/x"))
}

func TestDeleteRootFails(t *testing.T) {
	fs, _ := newTestFS(t, 1024, 256)
	err := fs.Delete(fs.RootInode(), "/")
	require.Error(t, err)
}

func TestDuplicateCreateFails(t *testing.T) {
	fs, _ := newTestFS(t, 1024, 256)
	require.NoError(t, fs.CreateFile(fs.RootInode(), "/dup"))
	err := fs.CreateFile(fs.RootInode(), "/dup")
	require.Error(t, err)
}

func TestCreateInNonDirectoryParentFails(t *testing.T) {
	fs, _ := newTestFS(t, 1024, 256)
	require.NoError(t, fs.CreateFile(fs.RootInode(), "/notadir"))
	err := fs.CreateFile(fs.RootInode(), "/notadir/child")
	require.Error(t, err)
}

func TestUnmountMountRoundTripPreservesContent(t *testing.T) {
	dev := blockdev.NewRAMDevice(4096, 1024)
	fs, err := Format(dev, 256)
	require.NoError(t, err)
	require.NoError(t, fs.MakeDir(fs.RootInode(), "/alpha"))
	require.NoError(t, fs.CreateFile(fs.RootInode(), "/alpha/f"))
	require.NoError(t, fs.WriteFile(fs.RootInode(), "/alpha/f", []byte("persisted"), 0))
	require.NoError(t, fs.Unmount())

	remounted, err := Mount(dev)
	require.NoError(t, err)

	buf := make([]byte, len("persisted"))
	n, err := remounted.ReadFile(remounted.RootInode(), "/alpha/f", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(buf[:n]))

	entries, err := remounted.ListDir(remounted.RootInode(), "/alpha")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{".", "..", "f"}, names(entries))
}

func TestFormatIsDeterministic(t *testing.T) {
	devA := blockdev.NewRAMDevice(4096, 1024)
	fsA, err := Format(devA, 256)
	require.NoError(t, err)

	devB := blockdev.NewRAMDevice(4096, 1024)
	fsB, err := Format(devB, 256)
	require.NoError(t, err)

	assert.Equal(t, fsA.Superblock(), fsB.Superblock())
}
