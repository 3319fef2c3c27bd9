package blockfs

import (
	"strings"

	"github.com/b3p3k0/AIOS/aioserrors"
	"github.com/b3p3k0/AIOS/layout"
	"github.com/b3p3k0/AIOS/pathutil"
)

// validateLeafName rejects names that encodeDirent cannot round-trip: empty,
// NAME_MAX bytes or longer (no room for the codec's implicit NUL terminator),
// or containing an embedded NUL.
func validateLeafName(name string) error {
	if name == "" || len(name) > layout.MaxNameLength-1 {
		return aioserrors.ErrInvalidArgument.WithMessage("invalid directory entry name")
	}
	if strings.IndexByte(name, 0) >= 0 {
		return aioserrors.ErrInvalidArgument.WithMessage("name contains a NUL byte")
	}
	return nil
}

// Lookup resolves path starting from cwd (an inode id) and returns the
// target inode and its id.
func (fs *Filesystem) Lookup(cwd uint32, path string) (Inode, uint32, error) {
	return fs.resolve(cwd, path)
}

// resolveParentAndLeaf resolves path's parent directory and validates it is
// in fact a directory, returning the parent inode, its id, and the leaf
// component name to create or remove.
func (fs *Filesystem) resolveParentAndLeaf(cwd uint32, path string) (Inode, uint32, string, error) {
	parentPath, leaf := pathutil.SplitParentLeaf(path)
	parent, parentIno, err := fs.resolve(cwd, parentPath)
	if err != nil {
		return Inode{}, 0, "", err
	}
	if parent.Type != layout.InodeDir {
		return Inode{}, 0, "", aioserrors.ErrNotADirectory
	}
	return parent, parentIno, leaf, nil
}

// MakeDir creates a new, empty directory at path. The parent must already
// exist and be a directory; the leaf name must not already exist in it.
//
// Grounded on original_source/kernel/fs/fs.c's fs_make_dir.
func (fs *Filesystem) MakeDir(cwd uint32, path string) error {
	parent, parentIno, leaf, err := fs.resolveParentAndLeaf(cwd, path)
	if err != nil {
		return err
	}
	if err := validateLeafName(leaf); err != nil {
		return err
	}
	if _, _, err := fs.findEntry(parent, leaf); err == nil {
		return aioserrors.ErrAlreadyExists
	}

	newIno, err := fs.allocInode()
	if err != nil {
		return err
	}
	dirBlock, err := fs.allocDataBlock()
	if err != nil {
		return err
	}

	dir := Inode{Type: layout.InodeDir, Size: 2 * layout.DirentRecordSize}
	dir.Direct[0] = dirBlock

	buf := make([]byte, fs.sb.BlockSize)
	copy(buf[0:layout.DirentRecordSize], encodeDirent(Dirent{Inode: newIno, Type: layout.InodeDir, Name: "."}))
	copy(buf[layout.DirentRecordSize:2*layout.DirentRecordSize], encodeDirent(Dirent{Inode: parentIno, Type: layout.InodeDir, Name: ".."}))

	if err := fs.dev.WriteBlock(dirBlock, buf); err != nil {
		return err
	}
	if err := fs.writeInode(newIno, dir); err != nil {
		return err
	}

	return fs.addEntry(parentIno, &parent, leaf, newIno, layout.InodeDir)
}

// CreateFile creates a new, empty (zero-size, no blocks allocated) file at
// path. Same parent/leaf rules as MakeDir.
//
// Grounded on original_source/kernel/fs/fs.c's fs_create_file.
func (fs *Filesystem) CreateFile(cwd uint32, path string) error {
	parent, parentIno, leaf, err := fs.resolveParentAndLeaf(cwd, path)
	if err != nil {
		return err
	}
	if err := validateLeafName(leaf); err != nil {
		return err
	}
	if _, _, err := fs.findEntry(parent, leaf); err == nil {
		return aioserrors.ErrAlreadyExists
	}

	newIno, err := fs.allocInode()
	if err != nil {
		return err
	}
	file := Inode{Type: layout.InodeFile}
	if err := fs.writeInode(newIno, file); err != nil {
		return err
	}

	return fs.addEntry(parentIno, &parent, leaf, newIno, layout.InodeFile)
}

// WriteFile writes data into the file at path starting at offset, growing
// it and allocating blocks as needed, then persists the updated inode.
//
// Grounded on original_source/kernel/fs/fs.c's fs_write_file.
func (fs *Filesystem) WriteFile(cwd uint32, path string, data []byte, offset uint32) error {
	file, ino, err := fs.resolve(cwd, path)
	if err != nil {
		return err
	}
	if file.Type != layout.InodeFile {
		return aioserrors.ErrNotAFile
	}
	if err := fs.writeAt(&file, offset, data); err != nil {
		return err
	}
	return fs.writeInode(ino, file)
}

// ReadFile reads up to len(out) bytes from the file at path starting at
// offset into out, returning the number of bytes actually copied.
//
// Grounded on original_source/kernel/fs/fs.c's fs_read_file.
func (fs *Filesystem) ReadFile(cwd uint32, path string, out []byte, offset uint32) (int, error) {
	file, _, err := fs.resolve(cwd, path)
	if err != nil {
		return 0, err
	}
	if file.Type != layout.InodeFile {
		return 0, aioserrors.ErrNotAFile
	}
	return fs.readAt(file, offset, out)
}

// ListDir returns every non-tombstone entry of the directory at path, in
// storage order (including "." and "..").
//
// Grounded on original_source/kernel/fs/fs.c's fs_list_dir.
func (fs *Filesystem) ListDir(cwd uint32, path string) ([]Dirent, error) {
	dir, _, err := fs.resolve(cwd, path)
	if err != nil {
		return nil, err
	}
	if dir.Type != layout.InodeDir {
		return nil, aioserrors.ErrNotADirectory
	}
	return fs.listEntries(dir)
}

// Delete removes the file or empty directory at path: it must not be root,
// and if it is a directory it must contain only "." and "..". All of its
// data blocks are freed, its inode is freed, and its slot in the parent
// directory is cleared.
//
// Grounded on original_source/kernel/fs/fs.c's fs_delete.
func (fs *Filesystem) Delete(cwd uint32, path string) error {
	parent, parentIno, leaf, err := fs.resolveParentAndLeaf(cwd, path)
	if err != nil {
		return err
	}
	target, _, err := fs.findEntry(parent, leaf)
	if err != nil {
		return err
	}
	if target.Inode == fs.sb.RootInode {
		return aioserrors.ErrInvalidArgument.WithMessage("cannot delete the root directory")
	}

	targetInode, err := fs.readInode(target.Inode)
	if err != nil {
		return err
	}

	if targetInode.Type == layout.InodeDir {
		empty, err := fs.isEmpty(targetInode)
		if err != nil {
			return err
		}
		if !empty {
			return aioserrors.ErrDirectoryNotEmpty
		}
	}

	for _, blk := range targetInode.Direct {
		if blk != 0 {
			if err := fs.freeDataBlock(blk); err != nil {
				return err
			}
		}
	}

	if err := fs.freeInode(target.Inode); err != nil {
		return err
	}
	return fs.removeEntry(parentIno, &parent, target.Inode)
}
