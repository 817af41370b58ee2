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

// Package fileio is the File I/O Engine (spec §4.7): maps (offset, length)
// ranges onto an inode's extent table for reads, and implements the
// write-one-block protocol plus full extent splitting for writes, including
// middle-of-file rewrites (spec §9, O2).
package fileio

import (
	"github.com/pjh/dbfs/internal/blockpool"
	"github.com/pjh/dbfs/internal/codec"
	"github.com/pjh/dbfs/internal/inode"
	"github.com/pjh/dbfs/internal/store"
)

// Read walks in's extent table, filling holes with zeros and fetching
// content fragments with partial-gets, returning up to length bytes starting
// at off. A read entirely or partially past end-of-file is truncated to the
// inode's current size.
func Read(txn *store.Txn, in *codec.RawInode, off uint64, length int) ([]byte, error) {
	if length <= 0 || off >= in.Size {
		return []byte{}, nil
	}
	end := off + uint64(length)
	if end > in.Size {
		end = in.Size
	}

	out := make([]byte, 0, end-off)
	var cum uint64
	for _, e := range in.Extents {
		extentStart := cum
		extentEnd := cum + uint64(e.Length)
		cum = extentEnd

		if extentEnd <= off {
			continue
		}
		if extentStart >= end {
			break
		}

		var fragStart uint64
		if extentStart < off {
			fragStart = off - extentStart
		}
		fragEnd := uint64(e.Length)
		if extentEnd > end {
			fragEnd = end - extentStart
		}

		frag := codec.Extent{
			Offset: e.Offset + uint32(fragStart),
			Length: uint32(fragEnd - fragStart),
			Hash:   e.Hash,
		}
		data, err := blockpool.ReadFragment(txn, frag)
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
	}
	return out, nil
}

// splitExtents divides extents at logical byte offset pos into the portion
// before pos and the portion at-or-after pos. An extent straddling pos is
// cut into two surviving pieces that both reference the same block; since
// that doubles the number of live references to the block, the block's
// refcount is bumped to match (spec invariant I2).
func splitExtents(txn *store.Txn, extents []codec.Extent, pos uint64) (before, after []codec.Extent, err error) {
	var cum uint64
	for i, e := range extents {
		extentStart := cum
		extentEnd := cum + uint64(e.Length)
		cum = extentEnd

		switch {
		case extentEnd <= pos:
			before = append(before, e)
		case extentStart >= pos:
			after = append(after, extents[i:]...)
			return before, after, nil
		default:
			headLen := pos - extentStart
			tailLen := extentEnd - pos
			head := codec.Extent{Offset: e.Offset, Length: uint32(headLen), Hash: e.Hash}
			tail := codec.Extent{Offset: e.Offset + uint32(headLen), Length: uint32(tailLen), Hash: e.Hash}
			if !e.IsHole() {
				if err := blockpool.Ref(txn, e.Hash); err != nil {
					return nil, nil, err
				}
			}
			before = append(before, head)
			after = append(after, tail)
			after = append(after, extents[i+1:]...)
			return before, after, nil
		}
	}
	return before, after, nil
}

// unrefAll unreferences every block in extents, used to discard the span of
// an inode's content being overwritten.
func unrefAll(txn *store.Txn, extents []codec.Extent) error {
	for _, e := range extents {
		if err := blockpool.Unref(txn, e.Hash); err != nil {
			return err
		}
	}
	return nil
}

// chunkedBlocks splits buf into extents no longer than maxExtLen, each
// backed by a block inserted or deduplicated via the write-one-block
// protocol.
func chunkedBlocks(txn *store.Txn, buf []byte, maxExtLen uint32) ([]codec.Extent, error) {
	var out []codec.Extent
	for off := 0; off < len(buf); {
		end := off + int(maxExtLen)
		if end > len(buf) {
			end = len(buf)
		}
		e, err := blockpool.PutNewBlock(txn, buf[off:end])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		off = end
	}
	return out, nil
}

// Write overwrites the byte range [off, off+len(buf)) of in's content,
// splitting any extent straddling either boundary, unreferencing every
// block fully displaced within the range, and inserting new extents for
// buf. Writes past the current end of file grow the inode with holes first.
// A zero-length write is a no-op other than the version bump inode.Write
// always performs (spec B4).
func Write(txn *store.Txn, in *codec.RawInode, off uint64, buf []byte, maxExtLen uint32) error {
	if off > in.Size {
		if err := inode.Resize(txn, in, off, maxExtLen); err != nil {
			return err
		}
	}

	if len(buf) == 0 {
		return inode.Write(txn, in)
	}

	head, rest, err := splitExtents(txn, in.Extents, off)
	if err != nil {
		return err
	}
	middle, tail, err := splitExtents(txn, rest, uint64(len(buf)))
	if err != nil {
		return err
	}

	if err := unrefAll(txn, middle); err != nil {
		return err
	}

	fresh, err := chunkedBlocks(txn, buf, maxExtLen)
	if err != nil {
		return err
	}

	extents := make([]codec.Extent, 0, len(head)+len(fresh)+len(tail))
	extents = append(extents, head...)
	extents = append(extents, fresh...)
	extents = append(extents, tail...)
	in.Extents = extents

	newEnd := off + uint64(len(buf))
	if newEnd > in.Size {
		in.Size = newEnd
	}

	return inode.Write(txn, in)
}
