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

	"github.com/pjh/dbfs/internal/fileio"
	"github.com/pjh/dbfs/internal/inode"
	"github.com/pjh/dbfs/internal/symlink"
)

// OpenFile is a no-op beyond handing out a handle: every read/write carries
// its own inode number, so there is nothing to stash per-handle.
func (fs *fileSystem) OpenFile(op *fuseops.OpenFileOp) error {
	op.Handle = fs.allocHandle()
	fs.mu.Lock()
	fs.fileHandles[op.Handle] = struct{}{}
	fs.mu.Unlock()
	return nil
}

// ReadFile implements the Block Pool / File I/O Engine read path (spec
// §4.7): fetch the inode, then serve the requested byte range.
func (fs *fileSystem) ReadFile(op *fuseops.ReadFileOp) error {
	txn, err := fs.env.Begin(false)
	if err != nil {
		return errno(err)
	}
	defer txn.Abort()

	in, err := inode.Read(txn, uint64(op.Inode))
	if err != nil {
		return errno(err)
	}
	data, err := fileio.Read(txn, in, uint64(op.Offset), int(op.Size))
	if err != nil {
		return errno(err)
	}
	op.BytesRead = copy(op.Dst, data)
	return nil
}

// WriteFile implements the File I/O Engine write path (spec §4.7):
// fileio.Write rewrites the extent list and calls inode.Write itself, so the
// handler's only job is to commit the transaction.
func (fs *fileSystem) WriteFile(op *fuseops.WriteFileOp) error {
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

	in, err := inode.Read(txn, uint64(op.Inode))
	if err != nil {
		return errno(err)
	}
	if err := fileio.Write(txn, in, uint64(op.Offset), op.Data, uint32(fs.cfg.MaxExtentLen)); err != nil {
		return errno(err)
	}
	if err := txn.Commit(); err != nil {
		return errno(err)
	}
	committed = true
	return nil
}

// SyncFile and FlushFile are no-ops: every write already committed its own
// transaction, so there is nothing buffered to push out.
func (fs *fileSystem) SyncFile(op *fuseops.SyncFileOp) error {
	return nil
}

func (fs *fileSystem) FlushFile(op *fuseops.FlushFileOp) error {
	return nil
}

// ReleaseFileHandle drops the bookkeeping entry OpenFile/CreateFile created.
func (fs *fileSystem) ReleaseFileHandle(op *fuseops.ReleaseFileHandleOp) error {
	fs.mu.Lock()
	delete(fs.fileHandles, op.Handle)
	fs.mu.Unlock()
	return nil
}

// ReadSymlink implements spec §4.5's symlink read path.
func (fs *fileSystem) ReadSymlink(op *fuseops.ReadSymlinkOp) error {
	txn, err := fs.env.Begin(false)
	if err != nil {
		return errno(err)
	}
	defer txn.Abort()

	target, err := symlink.Read(txn, uint64(op.Inode))
	if err != nil {
		return errno(err)
	}
	op.Target = string(target)
	return nil
}
