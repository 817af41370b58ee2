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

// Package symlink is the Symlink Engine (spec §4.5): read and write the raw
// target bytes stored at "/symlink/<N>".
package symlink

import (
	"unicode/utf8"

	"github.com/pjh/dbfs/internal/codec"
	"github.com/pjh/dbfs/internal/ferrors"
	"github.com/pjh/dbfs/internal/store"
)

// Read returns the target bytes of the symlink at ino.
func Read(txn *store.Txn, ino uint64) ([]byte, error) {
	return txn.Get(store.Meta, []byte(codec.SymlinkKey(ino)))
}

// Write validates target and stores it at ino, no terminator appended.
func Write(txn *store.Txn, ino uint64, target []byte, targetMax int) error {
	if len(target) == 0 || len(target) > targetMax {
		return ferrors.New(ferrors.Invalid)
	}
	if !utf8.Valid(target) {
		return ferrors.New(ferrors.Invalid)
	}
	return txn.Put(store.Meta, []byte(codec.SymlinkKey(ino)), target)
}
