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

package direntry

import (
	"testing"

	"github.com/pjh/dbfs/cfg"
	"github.com/pjh/dbfs/internal/codec"
	"github.com/pjh/dbfs/internal/ferrors"
	"github.com/pjh/dbfs/internal/store"
	"github.com/stretchr/testify/require"
)

func newTxn(t *testing.T) *store.Txn {
	t.Helper()
	env, err := store.Open(cfg.Store{Path: t.TempDir(), Create: true})
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })
	txn, err := env.Begin(true)
	require.NoError(t, err)
	t.Cleanup(func() { txn.Commit() })
	return txn
}

func TestNewSeedsDotAndDotDot(t *testing.T) {
	txn := newTxn(t)
	require.NoError(t, New(txn, 2, 1))

	blob, err := Read(txn, 2)
	require.NoError(t, err)

	empty, err := IsEmpty(blob)
	require.NoError(t, err)
	require.True(t, empty)

	self, err := Lookup(txn, 2, Dot)
	require.NoError(t, err)
	require.Equal(t, uint64(2), self)

	parent, err := Lookup(txn, 2, DotDot)
	require.NoError(t, err)
	require.Equal(t, uint64(1), parent)
}

func TestAppendThenLookup(t *testing.T) {
	txn := newTxn(t)
	require.NoError(t, New(txn, 1, 1))
	require.NoError(t, Append(txn, 1, 5, "a", 255))

	ino, err := Lookup(txn, 1, "a")
	require.NoError(t, err)
	require.Equal(t, uint64(5), ino)

	blob, err := Read(txn, 1)
	require.NoError(t, err)
	empty, err := IsEmpty(blob)
	require.NoError(t, err)
	require.False(t, empty)
}

func TestAppendRejectsDuplicate(t *testing.T) {
	txn := newTxn(t)
	require.NoError(t, New(txn, 1, 1))
	require.NoError(t, Append(txn, 1, 5, "a", 255))
	err := Append(txn, 1, 6, "a", 255)
	require.True(t, ferrors.Is(err, ferrors.AlreadyExists))
}

func TestAppendRejectsBadNames(t *testing.T) {
	txn := newTxn(t)
	require.NoError(t, New(txn, 1, 1))

	for _, name := range []string{"", ".", "..", "a/b"} {
		err := Append(txn, 1, 5, name, 255)
		require.True(t, ferrors.Is(err, ferrors.Invalid), "name %q", name)
	}
}

func TestAppendRejectsOverlongName(t *testing.T) {
	txn := newTxn(t)
	require.NoError(t, New(txn, 1, 1))
	err := Append(txn, 1, 5, "toolong", 3)
	require.True(t, ferrors.Is(err, ferrors.Invalid))
}

func TestRemoveEntry(t *testing.T) {
	txn := newTxn(t)
	require.NoError(t, New(txn, 1, 1))
	require.NoError(t, Append(txn, 1, 5, "a", 255))
	require.NoError(t, RemoveEntry(txn, 1, "a"))

	_, err := Lookup(txn, 1, "a")
	require.True(t, ferrors.Is(err, ferrors.NotFound))

	blob, err := Read(txn, 1)
	require.NoError(t, err)
	empty, err := IsEmpty(blob)
	require.NoError(t, err)
	require.True(t, empty)
}

func TestRemoveEntryMissingFails(t *testing.T) {
	txn := newTxn(t)
	require.NoError(t, New(txn, 1, 1))
	err := RemoveEntry(txn, 1, "nosuch")
	require.True(t, ferrors.Is(err, ferrors.NotFound))
}

func TestLookupMissingDirFails(t *testing.T) {
	txn := newTxn(t)
	_, err := Lookup(txn, 99, "a")
	require.True(t, ferrors.Is(err, ferrors.NotADir))
}

func TestNoDuplicateNamesAfterMultipleAppends(t *testing.T) {
	txn := newTxn(t)
	require.NoError(t, New(txn, 1, 1))
	require.NoError(t, Append(txn, 1, 5, "a", 255))
	require.NoError(t, Append(txn, 1, 6, "b", 255))

	blob, err := Read(txn, 1)
	require.NoError(t, err)

	seen := map[string]int{}
	err = Foreach(blob, func(e codec.Dirent) bool {
		seen[e.Name]++
		return true
	})
	require.NoError(t, err)
	for name, n := range seen {
		require.Equal(t, 1, n, "name %q appeared %d times", name, n)
	}
}
