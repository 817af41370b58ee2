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

// Package codec implements the Record Codec: deterministic little-endian
// encode/decode for every on-disk record type, plus the key-string builders
// for the meta namespace (spec §3, §4.2, §6).
package codec

import "strconv"

// RootInode is the inode number of the root directory. Inode numbers 0 and
// 1 are reserved; the allocator skips to >= 2.
const RootInode uint64 = 1

// InodeKey builds the "/inode/<N>" key.
func InodeKey(ino uint64) string {
	return "/inode/" + strconv.FormatUint(ino, 10)
}

// DirKey builds the "/dir/<N>" key.
func DirKey(ino uint64) string {
	return "/dir/" + strconv.FormatUint(ino, 10)
}

// SymlinkKey builds the "/symlink/<N>" key.
func SymlinkKey(ino uint64) string {
	return "/symlink/" + strconv.FormatUint(ino, 10)
}

// XattrListKey builds the "/xattr/<N>" key (the per-inode name index).
func XattrListKey(ino uint64) string {
	return "/xattr/" + strconv.FormatUint(ino, 10)
}

// XattrValueKey builds the "/xattr/<N>/<name>" key.
func XattrValueKey(ino uint64, name string) string {
	return "/xattr/" + strconv.FormatUint(ino, 10) + "/" + name
}
