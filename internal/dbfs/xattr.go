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
	"github.com/jacobsa/fuse/fuseops"

	"github.com/pjh/dbfs/internal/ferrors"
	"github.com/pjh/dbfs/internal/xattr"
)

// xattrSetFlags maps the caller-supplied getxattr/setxattr flag bits onto
// the engine's SetFlags enum. fuseops reuses the Linux XATTR_CREATE (1) /
// XATTR_REPLACE (2) values directly.
func xattrSetFlags(flags uint32) xattr.SetFlags {
	var out xattr.SetFlags
	if flags&1 != 0 {
		out |= xattr.Create
	}
	if flags&2 != 0 {
		out |= xattr.Replace
	}
	return out
}

// copyOrRange serves the common getxattr/listxattr pattern: a zero-size
// request reports the needed length, anything else either copies into the
// caller's buffer or fails with ERANGE if it is too small (spec B5).
func copyOrRange(dst []byte, full []byte) (int, error) {
	if len(dst) == 0 {
		return len(full), nil
	}
	if len(full) > len(dst) {
		return 0, ferrors.New(ferrors.Range)
	}
	return copy(dst, full), nil
}

// GetXattr implements spec §4.6's getxattr.
func (fs *fileSystem) GetXattr(op *fuseops.GetXattrOp) error {
	txn, err := fs.env.Begin(false)
	if err != nil {
		return errno(err)
	}
	defer txn.Abort()

	value, err := xattr.Get(txn, uint64(op.Inode), op.Name)
	if err != nil {
		return errno(err)
	}
	n, err := copyOrRange(op.Dst, value)
	if err != nil {
		return errno(err)
	}
	op.BytesRead = n
	return nil
}

// ListXattr implements spec §4.6's listxattr.
func (fs *fileSystem) ListXattr(op *fuseops.ListXattrOp) error {
	txn, err := fs.env.Begin(false)
	if err != nil {
		return errno(err)
	}
	defer txn.Abort()

	list, err := xattr.List(txn, uint64(op.Inode))
	if err != nil {
		return errno(err)
	}
	n, err := copyOrRange(op.Dst, list)
	if err != nil {
		return errno(err)
	}
	op.BytesRead = n
	return nil
}

// SetXattr implements spec §4.6's setxattr.
func (fs *fileSystem) SetXattr(op *fuseops.SetXattrOp) error {
	txn, err := fs.env.Begin(true)
	if err != nil {
		return errno(err)
	}
	committed := false
	defer func() {
		if !committed {
			txn.Abort()
		}
	}()

	if err := xattr.Set(txn, uint64(op.Inode), op.Name, op.Value, xattrSetFlags(op.Flags), fs.cfg.XattrNameMax, fs.cfg.XattrValueMax); err != nil {
		return errno(err)
	}
	if err := txn.Commit(); err != nil {
		return errno(err)
	}
	committed = true
	return nil
}

// RemoveXattr implements spec §4.6's removexattr.
func (fs *fileSystem) RemoveXattr(op *fuseops.RemoveXattrOp) error {
	txn, err := fs.env.Begin(true)
	if err != nil {
		return errno(err)
	}
	committed := false
	defer func() {
		if !committed {
			txn.Abort()
		}
	}()

	if err := xattr.Remove(txn, uint64(op.Inode), op.Name); err != nil {
		return errno(err)
	}
	if err := txn.Commit(); err != nil {
		return errno(err)
	}
	committed = true
	return nil
}
