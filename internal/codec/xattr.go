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

// xattrEntryHeaderSize is the fixed part of one xattr-list entry: namelen(4).
const xattrEntryHeaderSize = 4

// XattrEntryNext returns the on-disk size of a list entry for a name of the
// given length, 8-byte aligned.
func XattrEntryNext(namelen int) int {
	return AlignUp8(xattrEntryHeaderSize + namelen)
}

// EncodeXattrList packs the per-inode xattr name index.
func EncodeXattrList(names []string) []byte {
	size := 0
	for _, n := range names {
		size += XattrEntryNext(len(n))
	}
	buf := make([]byte, size)
	off := 0
	for _, n := range names {
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(n)))
		copy(buf[off+4:off+4+len(n)], n)
		off += XattrEntryNext(len(n))
	}
	return buf
}

// DecodeXattrList parses the xattr name index, validating every length
// bound.
func DecodeXattrList(buf []byte) ([]string, error) {
	var names []string
	off := 0
	for off < len(buf) {
		if off+xattrEntryHeaderSize > len(buf) {
			return nil, ferrors.New(ferrors.Io)
		}
		namelen := int(binary.LittleEndian.Uint32(buf[off : off+4]))
		nameStart := off + xattrEntryHeaderSize
		nameEnd := nameStart + namelen
		if namelen < 0 || nameEnd > len(buf) {
			return nil, ferrors.New(ferrors.Io)
		}
		names = append(names, string(buf[nameStart:nameEnd]))
		off += XattrEntryNext(namelen)
	}
	return names, nil
}

// EncodeRefcount packs a u32 refcount record.
func EncodeRefcount(refs uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, refs)
	return buf
}

// DecodeRefcount parses a u32 refcount record.
func DecodeRefcount(buf []byte) (uint32, error) {
	if len(buf) != 4 {
		return 0, ferrors.New(ferrors.Io)
	}
	return binary.LittleEndian.Uint32(buf), nil
}
