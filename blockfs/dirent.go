package blockfs

import (
	"bytes"
	"encoding/binary"

	"github.com/b3p3k0/AIOS/aioserrors"
	"github.com/b3p3k0/AIOS/layout"
)

// Dirent is the in-memory form of a 37-byte directory entry: the child
// inode number (0 marks an unused/tombstone slot), its type, and its name.
type Dirent struct {
	Inode uint32
	Type  layout.InodeType
	Name  string
}

// encodeDirent serializes a Dirent to its fixed 37-byte on-disk form:
// inode(4) + type(1) + name[32].
func encodeDirent(d Dirent) []byte {
	buf := make([]byte, layout.DirentRecordSize)
	binary.LittleEndian.PutUint32(buf[0:4], d.Inode)
	buf[4] = byte(d.Type)
	copy(buf[5:5+layout.MaxNameLength], d.Name)
	return buf
}

func decodeDirent(buf []byte) Dirent {
	nameBytes := buf[5 : 5+layout.MaxNameLength]
	nul := bytes.IndexByte(nameBytes, 0)
	name := string(nameBytes)
	if nul >= 0 {
		name = string(nameBytes[:nul])
	}
	return Dirent{
		Inode: binary.LittleEndian.Uint32(buf[0:4]),
		Type:  layout.InodeType(buf[4]),
		Name:  name,
	}
}

// dirCapacity returns the number of directory entry slots that fit in one
// block.
func (fs *Filesystem) dirCapacity() uint32 {
	return fs.sb.BlockSize / layout.DirentRecordSize
}

// loadDirBlock reads the single data block backing a directory's entries.
//
// Grounded on original_source/kernel/fs/fs.c's dir_load: directory contents
// live entirely in direct[0].
func (fs *Filesystem) loadDirBlock(dir Inode) ([]byte, error) {
	if dir.Direct[0] == 0 {
		return nil, aioserrors.ErrInvalidImage.WithMessage("directory has no data block")
	}
	buf := make([]byte, fs.sb.BlockSize)
	if err := fs.dev.ReadBlock(dir.Direct[0], buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (fs *Filesystem) saveDirBlock(dir Inode, buf []byte) error {
	if dir.Direct[0] == 0 {
		return aioserrors.ErrInvalidImage.WithMessage("directory has no data block")
	}
	return fs.dev.WriteBlock(dir.Direct[0], buf)
}

// findEntry scans dir's entries for name, returning the matching Dirent and
// its slot index.
//
// Grounded on original_source/kernel/fs/fs.c's dir_find_entry.
func (fs *Filesystem) findEntry(dir Inode, name string) (Dirent, uint32, error) {
	buf, err := fs.loadDirBlock(dir)
	if err != nil {
		return Dirent{}, 0, err
	}
	count := dir.Size / layout.DirentRecordSize
	for i := uint32(0); i < count; i++ {
		rec := buf[i*layout.DirentRecordSize : (i+1)*layout.DirentRecordSize]
		ent := decodeDirent(rec)
		if ent.Inode != 0 && ent.Name == name {
			return ent, i, nil
		}
	}
	return Dirent{}, 0, aioserrors.ErrNotFound
}

// addEntry appends a (name, ino, type) entry to dir, reusing the first
// tombstone slot if one exists, and persists both the directory's data
// block and its own inode record.
//
// Grounded on original_source/kernel/fs/fs.c's dir_add_entry.
func (fs *Filesystem) addEntry(dirIno uint32, dir *Inode, name string, ino uint32, entType layout.InodeType) error {
	buf, err := fs.loadDirBlock(*dir)
	if err != nil {
		return err
	}
	maxEntries := fs.dirCapacity()
	count := dir.Size / layout.DirentRecordSize

	target := maxEntries
	for i := uint32(0); i < count; i++ {
		rec := buf[i*layout.DirentRecordSize : (i+1)*layout.DirentRecordSize]
		if binary.LittleEndian.Uint32(rec[0:4]) == 0 {
			target = i
			break
		}
	}
	if target == maxEntries {
		if count >= maxEntries {
			return aioserrors.ErrNoSpace.WithMessage("directory is full")
		}
		target = count
	}

	rec := encodeDirent(Dirent{Inode: ino, Type: entType, Name: name})
	copy(buf[target*layout.DirentRecordSize:(target+1)*layout.DirentRecordSize], rec)
	if target == count {
		dir.Size += layout.DirentRecordSize
	}

	if err := fs.saveDirBlock(*dir, buf); err != nil {
		return err
	}
	return fs.writeInode(dirIno, *dir)
}

// removeEntry zeroes the slot belonging to childIno without shrinking the
// directory's size, matching the original's non-compacting delete.
func (fs *Filesystem) removeEntry(dirIno uint32, dir *Inode, childIno uint32) error {
	buf, err := fs.loadDirBlock(*dir)
	if err != nil {
		return err
	}
	count := dir.Size / layout.DirentRecordSize
	for i := uint32(0); i < count; i++ {
		rec := buf[i*layout.DirentRecordSize : (i+1)*layout.DirentRecordSize]
		if binary.LittleEndian.Uint32(rec[0:4]) == childIno {
			for j := range rec {
				rec[j] = 0
			}
			break
		}
	}
	if err := fs.saveDirBlock(*dir, buf); err != nil {
		return err
	}
	return fs.writeInode(dirIno, *dir)
}

// listEntries returns every non-tombstone entry in dir, in storage order.
func (fs *Filesystem) listEntries(dir Inode) ([]Dirent, error) {
	buf, err := fs.loadDirBlock(dir)
	if err != nil {
		return nil, err
	}
	count := dir.Size / layout.DirentRecordSize
	entries := make([]Dirent, 0, count)
	for i := uint32(0); i < count; i++ {
		rec := buf[i*layout.DirentRecordSize : (i+1)*layout.DirentRecordSize]
		ent := decodeDirent(rec)
		if ent.Inode != 0 {
			entries = append(entries, ent)
		}
	}
	return entries, nil
}

// isEmpty reports whether dir contains only "." and ".." entries.
func (fs *Filesystem) isEmpty(dir Inode) (bool, error) {
	entries, err := fs.listEntries(dir)
	if err != nil {
		return false, err
	}
	for _, ent := range entries {
		if ent.Name != "." && ent.Name != ".." {
			return false, nil
		}
	}
	return true, nil
}
