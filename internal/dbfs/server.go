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

// Package dbfs is the Request Dispatch layer (spec §4.8): one handler per
// kernel-filesystem callback, each of which begins a store transaction, runs
// a pipeline of engine calls, and either commits and replies success or
// aborts and replies the mapped errno.
package dbfs

import (
	"sync"
	"syscall"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/pjh/dbfs/cfg"
	"github.com/pjh/dbfs/internal/direntry"
	"github.com/pjh/dbfs/internal/ferrors"
	"github.com/pjh/dbfs/internal/inode"
	"github.com/pjh/dbfs/internal/store"
)

// ServerConfig bundles everything NewServer needs to build a fuse.Server: an
// already-opened store environment and the POSIX-facing defaults applied to
// new inodes.
type ServerConfig struct {
	Env        *store.Env
	FileSystem cfg.FileSystem
}

// fileSystem implements the fuseutil.FileSystem interface backed by the
// engines in sibling packages. Unlike a process-wide inode cache, the
// allocator probes the store directly for each new inode number, so a
// forgotten-but-still-referenced inode simply stays on disk until an
// explicit unlink/rmdir drops its nlink to zero.
type fileSystem struct {
	fuseutil.NotImplementedFileSystem

	env   *store.Env
	alloc *inode.Allocator
	cfg   cfg.FileSystem

	mu          sync.Mutex
	dirHandles  map[fuseops.HandleID]*dirHandle
	fileHandles map[fuseops.HandleID]struct{}
	nextHandle  fuseops.HandleID
}

// NewServer builds a fuse.Server over an already-opened store environment.
// Formatting the environment (seeding the root inode) is the job of
// cmd/mkdbfs, not of the mount path.
func NewServer(c *ServerConfig) (fuse.Server, error) {
	fs := &fileSystem{
		env:         c.Env,
		alloc:       inode.NewAllocator(),
		cfg:         c.FileSystem,
		dirHandles:  make(map[fuseops.HandleID]*dirHandle),
		fileHandles: make(map[fuseops.HandleID]struct{}),
	}
	return fuseutil.NewFileSystemServer(fs), nil
}

func (fs *fileSystem) allocHandle() fuseops.HandleID {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.nextHandle++
	return fs.nextHandle
}

func (fs *fileSystem) Init(op *fuseops.InitOp) error {
	return nil
}

func (fs *fileSystem) LookUpInode(op *fuseops.LookUpInodeOp) error {
	txn, err := fs.env.Begin(false)
	if err != nil {
		return errno(err)
	}
	defer txn.Abort()

	child, err := direntry.Lookup(txn, uint64(op.Parent), op.Name)
	if err != nil {
		return errno(err)
	}
	in, err := inode.Read(txn, child)
	if err != nil {
		return errno(err)
	}

	op.Entry.Child = fuseops.InodeID(child)
	op.Entry.Attributes = toAttributes(in)
	return nil
}

func (fs *fileSystem) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) error {
	txn, err := fs.env.Begin(false)
	if err != nil {
		return errno(err)
	}
	defer txn.Abort()

	in, err := inode.Read(txn, uint64(op.Inode))
	if err != nil {
		return errno(err)
	}
	op.Attributes = toAttributes(in)
	return nil
}

// SetInodeAttributes applies a selective overwrite of mode/uid/gid/atime/
// mtime; when Size changes it calls inode.Resize first, then always
// inode.Write, then replies with the refreshed attributes (spec §4.8,
// setattr).
func (fs *fileSystem) SetInodeAttributes(op *fuseops.SetInodeAttributesOp) error {
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

	if op.Size != nil {
		if err := inode.Resize(txn, in, *op.Size, uint32(fs.cfg.MaxExtentLen)); err != nil {
			return errno(err)
		}
	}
	if op.Mode != nil {
		in.Mode = (in.Mode &^ 07777) | (fileModeToRaw(*op.Mode) & 07777)
	}
	if op.Atime != nil {
		in.Atime = uint64(op.Atime.Unix())
	}
	if op.Mtime != nil {
		in.Mtime = uint64(op.Mtime.Unix())
	}
	in.Ctime = now()

	if err := inode.Write(txn, in); err != nil {
		return errno(err)
	}
	if err := txn.Commit(); err != nil {
		return errno(err)
	}
	committed = true

	op.Attributes = toAttributes(in)
	return nil
}

// ForgetInode is a no-op: dbfs keeps no in-memory inode cache keyed by
// lookup count, so there is nothing to release here beyond what an explicit
// unlink/rmdir already did.
func (fs *fileSystem) ForgetInode(op *fuseops.ForgetInodeOp) error {
	return nil
}

// StatFS reflects the environment directory's host filesystem (spec §4.8,
// statfs), since the store has no block/inode accounting of its own.
func (fs *fileSystem) StatFS(op *fuseops.StatFSOp) error {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(fs.env.Path(), &stat); err != nil {
		return errno(ferrors.Wrap(ferrors.Io, err))
	}

	op.BlockSize = uint32(stat.Bsize)
	op.Blocks = stat.Blocks
	op.BlocksFree = stat.Bfree
	op.BlocksAvailable = stat.Bavail
	op.IoSize = uint32(stat.Bsize)
	op.Inodes = stat.Files
	op.InodesFree = stat.Ffree
	return nil
}
