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

// Package inode is the Inode Engine: read, write, allocate, delete, and
// resize raw inode records (spec §4.3).
package inode

import (
	"syscall"

	"github.com/pjh/dbfs/internal/ferrors"
)

// Filetype classifies an inode by the POSIX S_IFMT bits of its mode.
type Filetype int

const (
	TypeUnknown Filetype = iota
	TypeRegular
	TypeDirectory
	TypeCharDevice
	TypeBlockDevice
	TypeFIFO
	TypeSymlink
	TypeSocket
)

// Classify inspects mode's S_IFMT bits.
func Classify(mode uint32) (Filetype, error) {
	switch mode & syscall.S_IFMT {
	case syscall.S_IFDIR:
		return TypeDirectory, nil
	case syscall.S_IFREG:
		return TypeRegular, nil
	case syscall.S_IFCHR:
		return TypeCharDevice, nil
	case syscall.S_IFBLK:
		return TypeBlockDevice, nil
	case syscall.S_IFIFO:
		return TypeFIFO, nil
	case syscall.S_IFLNK:
		return TypeSymlink, nil
	case syscall.S_IFSOCK:
		return TypeSocket, nil
	default:
		return TypeUnknown, ferrors.New(ferrors.Invalid)
	}
}
