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

// DirentMagic marks every dirent header, including the terminator.
const DirentMagic uint32 = 0xD4D4D4D4

// DirentHeaderSize is the fixed part of a dirent: magic(4) + reserved(2) +
// namelen(2) + ino(8).
const DirentHeaderSize = 4 + 2 + 2 + 8

// Dirent is one decoded directory entry. A Dirent with Namelen == 0 is the
// stream terminator and carries no Name.
type Dirent struct {
	Namelen uint16
	Ino     uint64
	Name    string
}

// AlignUp8 rounds n up to the next multiple of 8.
func AlignUp8(n int) int {
	return (n + 7) &^ 7
}

// DirentNext returns the on-disk size of an entry whose name is namelen
// bytes long: dirent_next(namelen) = align_up(header + namelen, 8).
func DirentNext(namelen int) int {
	return AlignUp8(DirentHeaderSize + namelen)
}

// EncodeDirStream packs a slice of entries followed by the terminator.
func EncodeDirStream(entries []Dirent) []byte {
	size := 0
	for _, e := range entries {
		size += DirentNext(len(e.Name))
	}
	size += DirentHeaderSize // terminator

	buf := make([]byte, size)
	off := 0
	for _, e := range entries {
		off += encodeDirent(buf[off:], e)
	}
	// Terminator: magic present, namelen 0, ino 0.
	binary.LittleEndian.PutUint32(buf[off:off+4], DirentMagic)
	binary.LittleEndian.PutUint16(buf[off+4:off+6], 0)
	binary.LittleEndian.PutUint16(buf[off+6:off+8], 0)
	binary.LittleEndian.PutUint64(buf[off+8:off+16], 0)
	return buf
}

func encodeDirent(dst []byte, e Dirent) int {
	n := DirentNext(len(e.Name))
	binary.LittleEndian.PutUint32(dst[0:4], DirentMagic)
	binary.LittleEndian.PutUint16(dst[4:6], 0)
	binary.LittleEndian.PutUint16(dst[6:8], uint16(len(e.Name)))
	binary.LittleEndian.PutUint64(dst[8:16], e.Ino)
	copy(dst[16:16+len(e.Name)], e.Name)
	return n
}

// ForeachDirent walks a directory blob, invoking fn for each non-terminator
// entry along with its byte offset. Stops early if fn returns false. Any
// magic violation, or an entry whose declared length would run past the end
// of the blob, surfaces as corruption (ferrors.Io) per spec invariant I5.
func ForeachDirent(blob []byte, fn func(offset int, e Dirent) (cont bool)) error {
	off := 0
	for {
		if off+DirentHeaderSize > len(blob) {
			return ferrors.New(ferrors.Io)
		}
		magic := binary.LittleEndian.Uint32(blob[off : off+4])
		if magic != DirentMagic {
			return ferrors.New(ferrors.Io)
		}
		namelen := binary.LittleEndian.Uint16(blob[off+4+2 : off+4+2+2])
		ino := binary.LittleEndian.Uint64(blob[off+8 : off+16])

		if namelen == 0 {
			return nil // terminator reached.
		}

		nameStart := off + DirentHeaderSize
		nameEnd := nameStart + int(namelen)
		if nameEnd > len(blob) {
			return ferrors.New(ferrors.Io)
		}
		name := string(blob[nameStart:nameEnd])

		if fn != nil {
			if !fn(off, Dirent{Namelen: namelen, Ino: ino, Name: name}) {
				return nil
			}
		}
		off += DirentNext(int(namelen))
	}
}

// DecodeDirStream returns every non-terminator entry as a slice.
func DecodeDirStream(blob []byte) ([]Dirent, error) {
	var out []Dirent
	err := ForeachDirent(blob, func(_ int, e Dirent) bool {
		out = append(out, e)
		return true
	})
	return out, err
}
