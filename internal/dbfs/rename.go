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

	"github.com/pjh/dbfs/internal/direntry"
	"github.com/pjh/dbfs/internal/ferrors"
	"github.com/pjh/dbfs/internal/inode"
)

// Rename implements spec §4.8's rename state machine: forbid a no-op
// rename of an entry onto itself, look up the source, remove it from the
// source directory, best-effort unlink whatever sat at the destination
// (tolerating it not existing), then append the moved entry at the
// destination. Per O3, when the moved entry is itself a directory and the
// parent changes, its ".." entry is rewritten in the same transaction so
// invariant P3 keeps holding for both the old and new parent.
func (fs *fileSystem) Rename(op *fuseops.RenameOp) error {
	if uint64(op.OldParent) == uint64(op.NewParent) && op.OldName == op.NewName {
		return errno(ferrors.New(ferrors.Invalid))
	}

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

	child, err := direntry.Lookup(txn, uint64(op.OldParent), op.OldName)
	if err != nil {
		return errno(err)
	}
	if err := direntry.RemoveEntry(txn, uint64(op.OldParent), op.OldName); err != nil {
		return errno(err)
	}

	if err := unlinkEntry(txn, uint64(op.NewParent), op.NewName, false); err != nil && !ferrors.Is(err, ferrors.NotFound) {
		return errno(err)
	}

	if err := direntry.Append(txn, uint64(op.NewParent), child, op.NewName, fs.cfg.FilenameMax); err != nil {
		return errno(err)
	}

	in, err := inode.Read(txn, child)
	if err != nil {
		return errno(err)
	}
	ft, err := inode.Classify(in.Mode)
	if err != nil {
		return errno(err)
	}
	if ft == inode.TypeDirectory && uint64(op.OldParent) != uint64(op.NewParent) {
		if err := direntry.ReplaceDotDot(txn, child, uint64(op.NewParent)); err != nil {
			return errno(err)
		}
		if err := decrementParentForRemovedChildDir(txn, uint64(op.OldParent)); err != nil {
			return errno(err)
		}
		if err := bumpParentForNewChildDir(txn, uint64(op.NewParent)); err != nil {
			return errno(err)
		}
	}

	if err := txn.Commit(); err != nil {
		return errno(err)
	}
	committed = true
	return nil
}
