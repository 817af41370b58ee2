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
	"os"
	"syscall"
	"time"

	"github.com/jacobsa/fuse/fuseops"

	"github.com/pjh/dbfs/internal/codec"
)

// toAttributes fills a stat-shaped reply: mode, nlink, uid, gid, rdev, size,
// atime/mtime/ctime (spec §4.8, getattr).
func toAttributes(in *codec.RawInode) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:  in.Size,
		Nlink: uint64(in.Nlink),
		Mode:  rawModeToFileMode(in.Mode),
		Rdev:  uint32(in.Rdev),
		Atime: time.Unix(int64(in.Atime), 0),
		Mtime: time.Unix(int64(in.Mtime), 0),
		Ctime: time.Unix(int64(in.Ctime), 0),
		Uid:   in.Uid,
		Gid:   in.Gid,
	}
}

// rawModeToFileMode converts the packed S_IFMT/perm bits stored in a raw
// inode to the os.FileMode shape the adapter expects.
func rawModeToFileMode(raw uint32) os.FileMode {
	perm := os.FileMode(raw & 0777)
	if raw&syscall.S_ISUID != 0 {
		perm |= os.ModeSetuid
	}
	if raw&syscall.S_ISGID != 0 {
		perm |= os.ModeSetgid
	}
	if raw&syscall.S_ISVTX != 0 {
		perm |= os.ModeSticky
	}
	switch raw & syscall.S_IFMT {
	case syscall.S_IFDIR:
		perm |= os.ModeDir
	case syscall.S_IFLNK:
		perm |= os.ModeSymlink
	case syscall.S_IFCHR:
		perm |= os.ModeDevice | os.ModeCharDevice
	case syscall.S_IFBLK:
		perm |= os.ModeDevice
	case syscall.S_IFIFO:
		perm |= os.ModeNamedPipe
	case syscall.S_IFSOCK:
		perm |= os.ModeSocket
	}
	return perm
}

// fileModeToRaw is the inverse of rawModeToFileMode, used when a create
// request supplies the desired os.FileMode for a new inode.
func fileModeToRaw(mode os.FileMode) uint32 {
	raw := uint32(mode.Perm())
	if mode&os.ModeSetuid != 0 {
		raw |= syscall.S_ISUID
	}
	if mode&os.ModeSetgid != 0 {
		raw |= syscall.S_ISGID
	}
	if mode&os.ModeSticky != 0 {
		raw |= syscall.S_ISVTX
	}
	switch {
	case mode&os.ModeDir != 0:
		raw |= syscall.S_IFDIR
	case mode&os.ModeSymlink != 0:
		raw |= syscall.S_IFLNK
	case mode&os.ModeNamedPipe != 0:
		raw |= syscall.S_IFIFO
	case mode&os.ModeSocket != 0:
		raw |= syscall.S_IFSOCK
	case mode&os.ModeCharDevice != 0:
		raw |= syscall.S_IFCHR
	case mode&os.ModeDevice != 0:
		raw |= syscall.S_IFBLK
	default:
		raw |= syscall.S_IFREG
	}
	return raw
}

func now() uint64 {
	return uint64(time.Now().Unix())
}
