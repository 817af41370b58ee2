// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dbfs

import (
	"syscall"

	"github.com/jacobsa/fuse/fuseops"

	"github.com/pjh/dbfs/internal/direntry"
	"github.com/pjh/dbfs/internal/ferrors"
	"github.com/pjh/dbfs/internal/inode"
	"github.com/pjh/dbfs/internal/store"
	"github.com/pjh/dbfs/internal/symlink"
)

// symlinkTargetMax bounds a symlink target's length; the FileSystem config
// has no dedicated field for it, so this mirrors the traditional PATH_MAX
// rather than FilenameMax.
const symlinkTargetMax = 4096

// bumpParentForNewChildDir increments parent's nlink to account for the new
// child directory's ".." entry (spec invariant P3).
func bumpParentForNewChildDir(txn *store.Txn, parent uint64) error {
	p, err := inode.Read(txn, parent)
	if err != nil {
		return err
	}
	p.Nlink++
	return inode.Write(txn, p)
}

// MkDir implements spec §4.8's mkdir state machine: inode.allocate, fill
// mode/nlink, inode.write, dir.new, dir.append, then bump the parent's
// nlink for the new ".." entry.
func (fs *fileSystem) MkDir(op *fuseops.MkDirOp) error {
	txn, err := fs.env.Begin(true)
	if err != nil {
		return errno(err)
	}
	committed := false
	defer func() {
		if !committed {
			txn.Abort()
		}
	}()

	ts := now()
	child, err := fs.alloc.Allocate(txn, ts)
	if err != nil {
		return errno(err)
	}
	child.Mode = syscall.S_IFDIR | uint32(op.Mode.Perm())
	child.Nlink = 2
	child.Uid = fs.cfg.Uid
	child.Gid = fs.cfg.Gid

	if err := inode.Write(txn, child); err != nil {
		return errno(err)
	}
	if err := direntry.New(txn, child.Ino, uint64(op.Parent)); err != nil {
		return errno(err)
	}
	if err := direntry.Append(txn, uint64(op.Parent), child.Ino, op.Name, fs.cfg.FilenameMax); err != nil {
		return errno(err)
	}
	if err := bumpParentForNewChildDir(txn, uint64(op.Parent)); err != nil {
		return errno(err)
	}

	if err := txn.Commit(); err != nil {
		return errno(err)
	}
	committed = true

	op.Entry.Child = fuseops.InodeID(child.Ino)
	op.Entry.Attributes = toAttributes(child)
	return nil
}

// CreateFile implements spec §4.8's mknod state machine for the common case
// of the kernel creating-and-opening a regular file in one step.
func (fs *fileSystem) CreateFile(op *fuseops.CreateFileOp) error {
	txn, err := fs.env.Begin(true)
	if err != nil {
		return errno(err)
	}
	committed := false
	defer func() {
		if !committed {
			txn.Abort()
		}
	}()

	ts := now()
	child, err := fs.alloc.Allocate(txn, ts)
	if err != nil {
		return errno(err)
	}
	child.Mode = syscall.S_IFREG | uint32(op.Mode.Perm())
	child.Nlink = 1
	child.Uid = fs.cfg.Uid
	child.Gid = fs.cfg.Gid

	if err := inode.Write(txn, child); err != nil {
		return errno(err)
	}
	if err := direntry.Append(txn, uint64(op.Parent), child.Ino, op.Name, fs.cfg.FilenameMax); err != nil {
		return errno(err)
	}
	if err := txn.Commit(); err != nil {
		return errno(err)
	}
	committed = true

	op.Entry.Child = fuseops.InodeID(child.Ino)
	op.Entry.Attributes = toAttributes(child)
	op.Handle = fs.allocHandle()
	fs.mu.Lock()
	fs.fileHandles[op.Handle] = struct{}{}
	fs.mu.Unlock()
	return nil
}

// MkNode implements mknod(2) for devices, FIFOs, sockets, and regular files
// created without an accompanying open.
func (fs *fileSystem) MkNode(op *fuseops.MkNodeOp) error {
	txn, err := fs.env.Begin(true)
	if err != nil {
		return errno(err)
	}
	committed := false
	defer func() {
		if !committed {
			txn.Abort()
		}
	}()

	ts := now()
	child, err := fs.alloc.Allocate(txn, ts)
	if err != nil {
		return errno(err)
	}
	child.Mode = fileModeToRaw(op.Mode)
	child.Nlink = 1
	child.Uid = fs.cfg.Uid
	child.Gid = fs.cfg.Gid
	child.Rdev = uint64(op.Rdev)

	if err := inode.Write(txn, child); err != nil {
		return errno(err)
	}
	if err := direntry.Append(txn, uint64(op.Parent), child.Ino, op.Name, fs.cfg.FilenameMax); err != nil {
		return errno(err)
	}
	if err := txn.Commit(); err != nil {
		return errno(err)
	}
	committed = true

	op.Entry.Child = fuseops.InodeID(child.Ino)
	op.Entry.Attributes = toAttributes(child)
	return nil
}

// CreateSymlink implements spec §4.8's symlink state machine: allocate, fill
// mode/nlink, inode.write, dir.append, symlink.write.
func (fs *fileSystem) CreateSymlink(op *fuseops.CreateSymlinkOp) error {
	txn, err := fs.env.Begin(true)
	if err != nil {
		return errno(err)
	}
	committed := false
	defer func() {
		if !committed {
			txn.Abort()
		}
	}()

	ts := now()
	child, err := fs.alloc.Allocate(txn, ts)
	if err != nil {
		return errno(err)
	}
	child.Mode = syscall.S_IFLNK | 0777
	child.Nlink = 1
	child.Uid = fs.cfg.Uid
	child.Gid = fs.cfg.Gid
	child.Size = uint64(len(op.Target))

	if err := inode.Write(txn, child); err != nil {
		return errno(err)
	}
	if err := direntry.Append(txn, uint64(op.Parent), child.Ino, op.Name, fs.cfg.FilenameMax); err != nil {
		return errno(err)
	}
	if err := symlink.Write(txn, child.Ino, []byte(op.Target), symlinkTargetMax); err != nil {
		return errno(err)
	}
	if err := txn.Commit(); err != nil {
		return errno(err)
	}
	committed = true

	op.Entry.Child = fuseops.InodeID(child.Ino)
	op.Entry.Attributes = toAttributes(child)
	return nil
}

// CreateLink implements spec §4.8's link state machine: dir.append, then
// increment nlink, then inode.write. Hard links to directories are refused.
func (fs *fileSystem) CreateLink(op *fuseops.CreateLinkOp) error {
	txn, err := fs.env.Begin(true)
	if err != nil {
		return errno(err)
	}
	committed := false
	defer func() {
		if !committed {
			txn.Abort()
		}
	}()

	target, err := inode.Read(txn, uint64(op.Target))
	if err != nil {
		return errno(err)
	}
	ft, err := inode.Classify(target.Mode)
	if err != nil {
		return errno(err)
	}
	if ft == inode.TypeDirectory {
		return errno(ferrors.New(ferrors.Invalid))
	}

	if err := direntry.Append(txn, uint64(op.Parent), target.Ino, op.Name, fs.cfg.FilenameMax); err != nil {
		return errno(err)
	}
	target.Nlink++
	if err := inode.Write(txn, target); err != nil {
		return errno(err)
	}
	if err := txn.Commit(); err != nil {
		return errno(err)
	}
	committed = true

	op.Entry.Child = op.Target
	op.Entry.Attributes = toAttributes(target)
	return nil
}
