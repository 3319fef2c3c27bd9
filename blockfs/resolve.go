package blockfs

import (
	"github.com/b3p3k0/AIOS/aioserrors"
	"github.com/b3p3k0/AIOS/layout"
	"github.com/b3p3k0/AIOS/pathutil"
)

// resolve walks path component by component starting from the root (if path
// is absolute) or startIno (otherwise), returning the final inode and its
// id. "." is a no-op; ".." is looked up as an ordinary directory entry, so
// it relies on every directory carrying a correct ".." entry -- including
// the root, whose ".." points at itself.
//
// Grounded on original_source/kernel/fs/fs.c's resolve_path, with the
// hardcoded ".." no-op replaced by a real dirent lookup per the corrected
// semantics this filesystem exposes.
func (fs *Filesystem) resolve(startIno uint32, path string) (Inode, uint32, error) {
	curIno := startIno
	if pathutil.IsAbsolute(path) {
		curIno = fs.sb.RootInode
	}
	cur, err := fs.readInode(curIno)
	if err != nil {
		return Inode{}, 0, err
	}

	components, err := pathutil.Split(path)
	if err != nil {
		return Inode{}, 0, err
	}

	for _, comp := range components {
		if comp == "." {
			continue
		}
		if cur.Type != layout.InodeDir {
			return Inode{}, 0, aioserrors.ErrNotADirectory
		}
		ent, _, err := fs.findEntry(cur, comp)
		if err != nil {
			return Inode{}, 0, err
		}
		curIno = ent.Inode
		cur, err = fs.readInode(curIno)
		if err != nil {
			return Inode{}, 0, err
		}
	}

	return cur, curIno, nil
}
