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
	"github.com/jacobsa/fuse/fuseops"

	"github.com/pjh/dbfs/internal/codec"
	"github.com/pjh/dbfs/internal/direntry"
	"github.com/pjh/dbfs/internal/ferrors"
	"github.com/pjh/dbfs/internal/inode"
	"github.com/pjh/dbfs/internal/store"
)

// unlinkEntry implements spec §4.8's unlink state machine: dir.lookup, a
// guard against removing the root inode, a directory-flag check, then
// dir.remove_entry, then the nlink decrement. Per O4 a directory's nlink is
// set to 0 (rather than merely decremented) once it would drop to 2 or
// below, which is the source's literal removal trigger; see DESIGN.md for
// how this interacts with the conventional POSIX nlink count.
func unlinkEntry(txn *store.Txn, parent uint64, name string, isRmdir bool) error {
	child, err := direntry.Lookup(txn, parent, name)
	if err != nil {
		return err
	}
	if child == codec.RootInode {
		return ferrors.New(ferrors.Invalid)
	}

	in, err := inode.Read(txn, child)
	if err != nil {
		return err
	}
	ft, err := inode.Classify(in.Mode)
	if err != nil {
		return err
	}
	if ft == inode.TypeDirectory && !isRmdir {
		return ferrors.New(ferrors.IsADir)
	}

	if err := direntry.RemoveEntry(txn, parent, name); err != nil {
		return err
	}

	if ft == inode.TypeDirectory {
		in.Nlink--
		if in.Nlink <= 2 {
			in.Nlink = 0
		}
		if err := decrementParentForRemovedChildDir(txn, parent); err != nil {
			return err
		}
	} else {
		in.Nlink--
	}

	if in.Nlink == 0 {
		return inode.Delete(txn, in)
	}
	return inode.Write(txn, in)
}

// decrementParentForRemovedChildDir undoes bumpParentForNewChildDir: once a
// child directory's ".." entry is gone, the parent loses that incoming
// link (spec invariant P3).
func decrementParentForRemovedChildDir(txn *store.Txn, parent uint64) error {
	p, err := inode.Read(txn, parent)
	if err != nil {
		return err
	}
	p.Nlink--
	return inode.Write(txn, p)
}

// Unlink implements spec §4.8's unlink callback.
func (fs *fileSystem) Unlink(op *fuseops.UnlinkOp) error {
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

	if err := unlinkEntry(txn, uint64(op.Parent), op.Name, false); err != nil {
		return errno(err)
	}
	if err := txn.Commit(); err != nil {
		return errno(err)
	}
	committed = true
	return nil
}

// RmDir implements spec §4.8's rmdir state machine: dir.lookup, dir.read,
// an emptiness check, then the shared unlink pipeline with the directory
// flag set.
func (fs *fileSystem) RmDir(op *fuseops.RmDirOp) error {
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

	child, err := direntry.Lookup(txn, uint64(op.Parent), op.Name)
	if err != nil {
		return errno(err)
	}
	blob, err := direntry.Read(txn, child)
	if err != nil {
		return errno(err)
	}
	empty, err := direntry.IsEmpty(blob)
	if err != nil {
		return errno(err)
	}
	if !empty {
		return errno(ferrors.New(ferrors.NotEmpty))
	}

	if err := unlinkEntry(txn, uint64(op.Parent), op.Name, true); err != nil {
		return errno(err)
	}
	if err := txn.Commit(); err != nil {
		return errno(err)
	}
	committed = true
	return nil
}
