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

// Package xattr is the Extended-Attribute Engine (spec §4.6). The key
// namespace split is deliberate: a scan-free "/xattr/<N>" list gives fast
// listxattr, and individual "/xattr/<N>/<name>" records give O(1) get/set.
// The two are always created and removed together; the original source's
// xattr.c accepts standard "user."/"system."/"trusted."/"security." name
// prefixes without special-casing any of them here — the engine is
// prefix-agnostic and stores full names verbatim.
package xattr

import (
	"unicode/utf8"

	"github.com/pjh/dbfs/internal/codec"
	"github.com/pjh/dbfs/internal/ferrors"
	"github.com/pjh/dbfs/internal/store"
)

// SetFlags controls the create/replace semantics of Set, mirroring the
// POSIX setxattr() XATTR_CREATE / XATTR_REPLACE flags.
type SetFlags int

const (
	SetFlagsNone SetFlags = 0
	// Create fails if the attribute already exists.
	Create SetFlags = 1 << iota
	// Replace fails if the attribute is absent.
	Replace
)

func readList(txn *store.Txn, ino uint64) ([]string, error) {
	raw, err := txn.Get(store.Meta, []byte(codec.XattrListKey(ino)))
	if err != nil {
		if ferrors.Is(err, ferrors.NotFound) {
			return nil, nil
		}
		return nil, err
	}
	return codec.DecodeXattrList(raw)
}

func writeList(txn *store.Txn, ino uint64, names []string) error {
	if len(names) == 0 {
		return txn.Delete(store.Meta, []byte(codec.XattrListKey(ino)))
	}
	return txn.Put(store.Meta, []byte(codec.XattrListKey(ino)), codec.EncodeXattrList(names))
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// Set validates and stores name/value on ino, honoring Create/Replace flags.
// If the list update fails after the value has been written, the value
// record is removed before the error is surfaced — belt-and-braces
// alongside the enclosing transaction's abort (spec §7).
func Set(txn *store.Txn, ino uint64, name string, value []byte, flags SetFlags, nameMax, valueMax int) error {
	if name == "" || len(name) > nameMax || !utf8.ValidString(name) {
		return ferrors.New(ferrors.Invalid)
	}
	if len(value) > valueMax {
		return ferrors.New(ferrors.Invalid)
	}

	names, err := readList(txn, ino)
	if err != nil {
		return err
	}
	exists := contains(names, name)

	if flags&Create != 0 && exists {
		return ferrors.New(ferrors.AlreadyExists)
	}
	if flags&Replace != 0 && !exists {
		return ferrors.New(ferrors.NotFound)
	}

	if err := txn.Put(store.Meta, []byte(codec.XattrValueKey(ino, name)), value); err != nil {
		return err
	}

	if !exists {
		names = append(names, name)
		if err := writeList(txn, ino, names); err != nil {
			_ = txn.Delete(store.Meta, []byte(codec.XattrValueKey(ino, name)))
			return err
		}
	}
	return nil
}

// Remove pulls name out of ino's list; when the last entry is removed, the
// list record is deleted rather than stored empty.
func Remove(txn *store.Txn, ino uint64, name string) error {
	names, err := readList(txn, ino)
	if err != nil {
		return err
	}
	if !contains(names, name) {
		return ferrors.New(ferrors.NotFound)
	}

	kept := names[:0:0]
	for _, n := range names {
		if n != name {
			kept = append(kept, n)
		}
	}
	if err := writeList(txn, ino, kept); err != nil {
		return err
	}
	return txn.Delete(store.Meta, []byte(codec.XattrValueKey(ino, name)))
}

// Get returns the full value bytes for name.
func Get(txn *store.Txn, ino uint64, name string) ([]byte, error) {
	return txn.Get(store.Meta, []byte(codec.XattrValueKey(ino, name)))
}

// List concatenates every attribute name with a NUL separator, the POSIX
// listxattr() wire format.
func List(txn *store.Txn, ino uint64) ([]byte, error) {
	names, err := readList(txn, ino)
	if err != nil {
		return nil, err
	}
	var out []byte
	for _, n := range names {
		out = append(out, n...)
		out = append(out, 0)
	}
	return out, nil
}

// PurgeAll removes every xattr belonging to ino, used when the inode itself
// is destroyed.
func PurgeAll(txn *store.Txn, ino uint64) error {
	names, err := readList(txn, ino)
	if err != nil {
		return err
	}
	for _, n := range names {
		if err := txn.Delete(store.Meta, []byte(codec.XattrValueKey(ino, n))); err != nil {
			return err
		}
	}
	if len(names) > 0 {
		return txn.Delete(store.Meta, []byte(codec.XattrListKey(ino)))
	}
	return nil
}
