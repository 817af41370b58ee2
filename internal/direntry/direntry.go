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

// Package direntry is the Directory Engine (spec §4.4): read, write, scan,
// append to, remove from, and create directory blobs on top of the record
// codec's dirent stream.
package direntry

import (
	"strings"
	"unicode/utf8"

	"github.com/pjh/dbfs/internal/codec"
	"github.com/pjh/dbfs/internal/ferrors"
	"github.com/pjh/dbfs/internal/store"
)

// Dot and DotDot are the two entries every directory is seeded with.
const (
	Dot    = "."
	DotDot = ".."
)

// Read fetches the raw directory blob for ino.
func Read(txn *store.Txn, ino uint64) ([]byte, error) {
	blob, err := txn.Get(store.Meta, []byte(codec.DirKey(ino)))
	if err != nil {
		if ferrors.Is(err, ferrors.NotFound) {
			return nil, ferrors.New(ferrors.NotADir)
		}
		return nil, err
	}
	return blob, nil
}

// Write replaces the stored blob for ino.
func Write(txn *store.Txn, ino uint64, blob []byte) error {
	return txn.Put(store.Meta, []byte(codec.DirKey(ino)), blob)
}

// Foreach iterates the entries of blob in order, stopping early if fn
// returns false. Corruption (bad magic, truncated entry) surfaces as
// ferrors.Io per spec invariant I5.
func Foreach(blob []byte, fn func(e codec.Dirent) (cont bool)) error {
	return codec.ForeachDirent(blob, func(_ int, e codec.Dirent) bool {
		if fn == nil {
			return true
		}
		return fn(e)
	})
}

// Lookup scans parent's directory blob for an exact name match, returning
// the child inode number. Streams carry at most one entry per name, so the
// first match is the only match.
func Lookup(txn *store.Txn, parent uint64, name string) (uint64, error) {
	blob, err := Read(txn, parent)
	if err != nil {
		return 0, err
	}

	var found uint64
	var ok bool
	err = Foreach(blob, func(e codec.Dirent) bool {
		if e.Name == name {
			found = e.Ino
			ok = true
			return false
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ferrors.New(ferrors.NotFound)
	}
	return found, nil
}

// ValidateName checks a user-supplied path component: non-empty, not "."
// or "..", no embedded "/", valid UTF-8, and no longer than nameMax.
func ValidateName(name string, nameMax int) error {
	if name == "" || name == Dot || name == DotDot {
		return ferrors.New(ferrors.Invalid)
	}
	if strings.Contains(name, "/") {
		return ferrors.New(ferrors.Invalid)
	}
	if len(name) > nameMax {
		return ferrors.New(ferrors.Invalid)
	}
	if !utf8.ValidString(name) {
		return ferrors.New(ferrors.Invalid)
	}
	return nil
}

// Append validates name and adds one entry (name -> child) to parent's
// directory blob, refusing duplicates (spec invariant I8).
func Append(txn *store.Txn, parent uint64, child uint64, name string, nameMax int) error {
	if err := ValidateName(name, nameMax); err != nil {
		return err
	}

	blob, err := Read(txn, parent)
	if err != nil {
		return err
	}

	entries, err := codec.DecodeDirStream(blob)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name == name {
			return ferrors.New(ferrors.AlreadyExists)
		}
	}

	entries = append(entries, codec.Dirent{Namelen: uint16(len(name)), Ino: child, Name: name})
	return Write(txn, parent, codec.EncodeDirStream(entries))
}

// RemoveEntry locates name in parent's blob and rewrites the blob without
// it. Fails with ferrors.NotFound if absent.
func RemoveEntry(txn *store.Txn, parent uint64, name string) error {
	blob, err := Read(txn, parent)
	if err != nil {
		return err
	}

	entries, err := codec.DecodeDirStream(blob)
	if err != nil {
		return err
	}

	kept := entries[:0:0]
	removed := false
	for _, e := range entries {
		if e.Name == name {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	if !removed {
		return ferrors.New(ferrors.NotFound)
	}
	return Write(txn, parent, codec.EncodeDirStream(kept))
}

// New synthesizes the minimum directory blob for a freshly allocated
// directory inode: "." pointing at itself, ".." pointing at parent, and the
// stream terminator.
func New(txn *store.Txn, newIno uint64, parentIno uint64) error {
	entries := []codec.Dirent{
		{Namelen: uint16(len(Dot)), Ino: newIno, Name: Dot},
		{Namelen: uint16(len(DotDot)), Ino: parentIno, Name: DotDot},
	}
	return Write(txn, newIno, codec.EncodeDirStream(entries))
}

// ReplaceDotDot rewrites child's ".." entry to point at newParent. Used by
// rename when a directory moves to a new parent (spec invariant P3); unlike
// Append, it writes the reserved name directly the way New does, since
// ValidateName exists to police user-supplied names and would reject ".."
// itself.
func ReplaceDotDot(txn *store.Txn, child uint64, newParent uint64) error {
	if err := RemoveEntry(txn, child, DotDot); err != nil {
		return err
	}

	blob, err := Read(txn, child)
	if err != nil {
		return err
	}
	entries, err := codec.DecodeDirStream(blob)
	if err != nil {
		return err
	}
	entries = append(entries, codec.Dirent{Namelen: uint16(len(DotDot)), Ino: newParent, Name: DotDot})
	return Write(txn, child, codec.EncodeDirStream(entries))
}

// IsEmpty reports whether blob contains only "." and "..".
func IsEmpty(blob []byte) (bool, error) {
	entries, err := codec.DecodeDirStream(blob)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Name != Dot && e.Name != DotDot {
			return false, nil
		}
	}
	return true, nil
}
