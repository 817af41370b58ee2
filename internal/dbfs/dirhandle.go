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
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/pjh/dbfs/internal/codec"
	"github.com/pjh/dbfs/internal/direntry"
	"github.com/pjh/dbfs/internal/ferrors"
	"github.com/pjh/dbfs/internal/inode"
)

// errNoDirHandle is returned when ReadDir is called against a handle that
// OpenDir never issued or that ReleaseDirHandle already dropped.
var errNoDirHandle = ferrors.New(ferrors.Invalid)

// dirHandle holds the private snapshot of a directory's entries fetched at
// OpenDir time. Mutations made by other operations while the handle is open
// are not visible until the next OpenDir (spec §4.8, readdir).
type dirHandle struct {
	entries []codec.Dirent
}

func directoryDirentType(in *inode.Filetype) fuseutil.DirentType {
	switch *in {
	case inode.TypeDirectory:
		return fuseutil.DT_Directory
	case inode.TypeSymlink:
		return fuseutil.DT_Link
	case inode.TypeRegular:
		return fuseutil.DT_File
	default:
		return fuseutil.DT_Unknown
	}
}

// OpenDir implements spec §4.8's opendir: it reads the directory blob once
// and stashes a decoded copy under a fresh handle.
func (fs *fileSystem) OpenDir(op *fuseops.OpenDirOp) error {
	txn, err := fs.env.Begin(false)
	if err != nil {
		return errno(err)
	}
	defer txn.Abort()

	blob, err := direntry.Read(txn, uint64(op.Inode))
	if err != nil {
		return errno(err)
	}
	entries, err := codec.DecodeDirStream(blob)
	if err != nil {
		return errno(err)
	}

	op.Handle = fs.allocHandle()
	fs.mu.Lock()
	fs.dirHandles[op.Handle] = &dirHandle{entries: entries}
	fs.mu.Unlock()
	return nil
}

// ReadDir implements spec §4.8's readdir: entries are served from the
// private snapshot taken at OpenDir time, each re-classified against its
// current inode type for the DT_* hint in the wire dirent.
func (fs *fileSystem) ReadDir(op *fuseops.ReadDirOp) error {
	fs.mu.Lock()
	dh, ok := fs.dirHandles[op.Handle]
	fs.mu.Unlock()
	if !ok {
		return errno(errNoDirHandle)
	}

	txn, err := fs.env.Begin(false)
	if err != nil {
		return errno(err)
	}
	defer txn.Abort()

	op.BytesRead = 0
	for i := int(op.Offset); i < len(dh.entries); i++ {
		e := dh.entries[i]
		in, err := inode.Read(txn, e.Ino)
		if err != nil {
			return errno(err)
		}
		ft, err := inode.Classify(in.Mode)
		if err != nil {
			return errno(err)
		}

		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], fuseops.Dirent{
			Offset: fuseops.DirOffset(i + 1),
			Inode:  fuseops.InodeID(e.Ino),
			Name:   e.Name,
			Type:   directoryDirentType(&ft),
		})
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
	return nil
}

// ReleaseDirHandle implements spec §4.8's releasedir: it drops the private
// snapshot taken at OpenDir time.
func (fs *fileSystem) ReleaseDirHandle(op *fuseops.ReleaseDirHandleOp) error {
	fs.mu.Lock()
	delete(fs.dirHandles, op.Handle)
	fs.mu.Unlock()
	return nil
}
