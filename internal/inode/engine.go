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

package inode

import (
	"github.com/pjh/dbfs/internal/blockpool"
	"github.com/pjh/dbfs/internal/codec"
	"github.com/pjh/dbfs/internal/ferrors"
	"github.com/pjh/dbfs/internal/store"
	"github.com/pjh/dbfs/internal/xattr"
)

// Read fetches and decodes the raw inode record for ino.
func Read(txn *store.Txn, ino uint64) (*codec.RawInode, error) {
	raw, err := txn.Get(store.Meta, []byte(codec.InodeKey(ino)))
	if err != nil {
		return nil, err
	}
	in, err := codec.DecodeInode(raw)
	if err != nil {
		return nil, err
	}
	if _, err := Classify(in.Mode); err != nil {
		return nil, err
	}
	return in, nil
}

// Write re-encodes and stores the inode, bumping its version.
//
// The original source's inode_write issued a GET against the target key
// where a PUT was evidently intended (spec §9, O1); this always PUTs.
func Write(txn *store.Txn, in *codec.RawInode) error {
	in.Version++
	return txn.Put(store.Meta, []byte(codec.InodeKey(in.Ino)), codec.EncodeInode(in))
}

// Delete removes an inode and everything owned by it: for regular files,
// every extent's block is unreferenced; for directories the "/dir/<n>" blob
// is removed; for symlinks the "/symlink/<n>" target is removed; device,
// FIFO, and socket inodes have no extra content. Xattr records belonging to
// the inode are always removed.
func Delete(txn *store.Txn, in *codec.RawInode) error {
	ft, err := Classify(in.Mode)
	if err != nil {
		return err
	}

	switch ft {
	case TypeRegular:
		for _, e := range in.Extents {
			if err := blockpool.Unref(txn, e.Hash); err != nil {
				return err
			}
		}
	case TypeDirectory:
		if err := txn.Delete(store.Meta, []byte(codec.DirKey(in.Ino))); err != nil {
			return err
		}
	case TypeSymlink:
		if err := txn.Delete(store.Meta, []byte(codec.SymlinkKey(in.Ino))); err != nil {
			return err
		}
	}

	if err := xattr.PurgeAll(txn, in.Ino); err != nil {
		return err
	}

	return txn.Delete(store.Meta, []byte(codec.InodeKey(in.Ino)))
}

// Resize grows or shrinks the inode's extent table so the sum of extent
// lengths equals newSize. Growing appends hole extents of length at most
// maxExtLen; shrinking pops extents from the tail, unreferencing their
// blocks, trimming the last remaining extent's length if needed.
func Resize(txn *store.Txn, in *codec.RawInode, newSize uint64, maxExtLen uint32) error {
	switch {
	case newSize > in.Size:
		if err := grow(txn, in, newSize, maxExtLen); err != nil {
			return err
		}
	case newSize < in.Size:
		if err := shrink(txn, in, newSize); err != nil {
			return err
		}
	}
	in.Size = newSize
	return nil
}

func grow(txn *store.Txn, in *codec.RawInode, newSize uint64, maxExtLen uint32) error {
	remaining := newSize - in.Size
	for remaining > 0 {
		length := remaining
		if length > uint64(maxExtLen) {
			length = uint64(maxExtLen)
		}
		in.Extents = append(in.Extents, codec.Extent{Length: uint32(length), Hash: codec.ZeroHash})
		remaining -= length
	}
	return nil
}

func shrink(txn *store.Txn, in *codec.RawInode, newSize uint64) error {
	total := extentTotal(in.Extents)
	for total > newSize && len(in.Extents) > 0 {
		last := in.Extents[len(in.Extents)-1]
		if total-uint64(last.Length) >= newSize {
			// The whole tail extent is beyond the new size: drop it.
			if err := blockpool.Unref(txn, last.Hash); err != nil {
				return err
			}
			total -= uint64(last.Length)
			in.Extents = in.Extents[:len(in.Extents)-1]
			continue
		}
		// Part of the tail extent survives: trim its length in place. The
		// surviving prefix of a content extent keeps referencing the same
		// block at the same starting Offset; only Length shrinks.
		keep := newSize - (total - uint64(last.Length))
		last.Length = uint32(keep)
		in.Extents[len(in.Extents)-1] = last
		total = newSize
	}
	return nil
}

func extentTotal(extents []codec.Extent) uint64 {
	var total uint64
	for _, e := range extents {
		total += uint64(e.Length)
	}
	return total
}

// AllocateFresh returns a zeroed inode for number ino stamped with the
// supplied timestamp (used by mknod/mkdir/symlink after the allocator hands
// out a number).
func AllocateFresh(ino uint64, now uint64) *codec.RawInode {
	return &codec.RawInode{
		Ino:   ino,
		Ctime: now,
		Atime: now,
		Mtime: now,
	}
}

// Exists reports whether an inode key is present, used by the allocator's
// probe loop.
func Exists(txn *store.Txn, ino uint64) (bool, error) {
	ok, err := txn.Has(store.Meta, []byte(codec.InodeKey(ino)))
	if err != nil {
		return false, ferrors.Wrap(ferrors.Io, err)
	}
	return ok, nil
}
