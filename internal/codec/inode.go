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

package codec

import (
	"encoding/binary"

	"github.com/pjh/dbfs/internal/ferrors"
)

// HashSize is the length in bytes of a block-hash (SHA-1 digest).
const HashSize = 20

// InodeHeaderSize is the size in bytes of the fixed part of a raw inode
// record: inode_number, version, mode, nlink, uid, gid, rdev, size, ctime,
// atime, mtime.
const InodeHeaderSize = 72

// ExtentSize is the size in bytes of one packed extent descriptor: block
// offset (4), fragment length (4), block-hash (20).
const ExtentSize = 4 + 4 + HashSize

// ZeroHash is the null hash marking a hole extent.
var ZeroHash [HashSize]byte

// Extent describes one contiguous run of logical bytes: either real content
// at offset..offset+length within the hashed block, or (when Hash is the
// all-zero ZeroHash) a hole of Length bytes.
type Extent struct {
	Offset uint32
	Length uint32
	Hash   [HashSize]byte
}

func (e Extent) IsHole() bool {
	return e.Hash == ZeroHash
}

// RawInode is the decoded form of an "/inode/<N>" record.
type RawInode struct {
	Ino     uint64
	Version uint64
	Mode    uint32
	Nlink   uint32
	Uid     uint32
	Gid     uint32
	Rdev    uint64
	Size    uint64
	Ctime   uint64
	Atime   uint64
	Mtime   uint64
	Extents []Extent
}

// EncodeInode serializes a RawInode to its packed little-endian form.
func EncodeInode(in *RawInode) []byte {
	buf := make([]byte, InodeHeaderSize+len(in.Extents)*ExtentSize)
	binary.LittleEndian.PutUint64(buf[0:8], in.Ino)
	binary.LittleEndian.PutUint64(buf[8:16], in.Version)
	binary.LittleEndian.PutUint32(buf[16:20], in.Mode)
	binary.LittleEndian.PutUint32(buf[20:24], in.Nlink)
	binary.LittleEndian.PutUint32(buf[24:28], in.Uid)
	binary.LittleEndian.PutUint32(buf[28:32], in.Gid)
	binary.LittleEndian.PutUint64(buf[32:40], in.Rdev)
	binary.LittleEndian.PutUint64(buf[40:48], in.Size)
	binary.LittleEndian.PutUint64(buf[48:56], in.Ctime)
	binary.LittleEndian.PutUint64(buf[56:64], in.Atime)
	binary.LittleEndian.PutUint64(buf[64:72], in.Mtime)

	off := InodeHeaderSize
	for _, e := range in.Extents {
		binary.LittleEndian.PutUint32(buf[off:off+4], e.Offset)
		binary.LittleEndian.PutUint32(buf[off+4:off+8], e.Length)
		copy(buf[off+8:off+8+HashSize], e.Hash[:])
		off += ExtentSize
	}
	return buf
}

// DecodeInode parses a packed raw inode record, validating its length
// bounds. Any violation produces an on-disk corruption error (ferrors.Io).
func DecodeInode(buf []byte) (*RawInode, error) {
	if len(buf) < InodeHeaderSize {
		return nil, ferrors.New(ferrors.Io)
	}
	rem := len(buf) - InodeHeaderSize
	if rem%ExtentSize != 0 {
		return nil, ferrors.New(ferrors.Io)
	}
	nExtents := rem / ExtentSize

	in := &RawInode{
		Ino:     binary.LittleEndian.Uint64(buf[0:8]),
		Version: binary.LittleEndian.Uint64(buf[8:16]),
		Mode:    binary.LittleEndian.Uint32(buf[16:20]),
		Nlink:   binary.LittleEndian.Uint32(buf[20:24]),
		Uid:     binary.LittleEndian.Uint32(buf[24:28]),
		Gid:     binary.LittleEndian.Uint32(buf[28:32]),
		Rdev:    binary.LittleEndian.Uint64(buf[32:40]),
		Size:    binary.LittleEndian.Uint64(buf[40:48]),
		Ctime:   binary.LittleEndian.Uint64(buf[48:56]),
		Atime:   binary.LittleEndian.Uint64(buf[56:64]),
		Mtime:   binary.LittleEndian.Uint64(buf[64:72]),
	}

	if nExtents > 0 {
		in.Extents = make([]Extent, nExtents)
		off := InodeHeaderSize
		for i := 0; i < nExtents; i++ {
			var e Extent
			e.Offset = binary.LittleEndian.Uint32(buf[off : off+4])
			e.Length = binary.LittleEndian.Uint32(buf[off+4 : off+8])
			copy(e.Hash[:], buf[off+8:off+8+HashSize])
			in.Extents[i] = e
			off += ExtentSize
		}
	}
	return in, nil
}
