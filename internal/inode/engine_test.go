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

package inode

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pjh/dbfs/cfg"
	"github.com/pjh/dbfs/internal/codec"
	"github.com/pjh/dbfs/internal/ferrors"
	"github.com/pjh/dbfs/internal/store"
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

func TestWriteThenRead(t *testing.T) {
	txn := newTxn(t)
	in := AllocateFresh(9, 1000)
	in.Mode = syscall.S_IFREG | 0644
	require.NoError(t, Write(txn, in))

	got, err := Read(txn, 9)
	require.NoError(t, err)
	require.Equal(t, uint64(9), got.Ino)
	require.Equal(t, uint64(1), got.Version)
}

func TestWriteBumpsVersionEveryTime(t *testing.T) {
	txn := newTxn(t)
	in := AllocateFresh(9, 1000)
	in.Mode = syscall.S_IFREG | 0644
	require.NoError(t, Write(txn, in))
	require.NoError(t, Write(txn, in))
	require.NoError(t, Write(txn, in))

	got, err := Read(txn, 9)
	require.NoError(t, err)
	require.Equal(t, uint64(3), got.Version)
}

func TestReadMissingIsNotFound(t *testing.T) {
	txn := newTxn(t)
	_, err := Read(txn, 42)
	require.True(t, ferrors.Is(err, ferrors.NotFound))
}

func TestReadRejectsUnrecognizedMode(t *testing.T) {
	txn := newTxn(t)
	in := AllocateFresh(9, 1000)
	in.Mode = 0 // no S_IFMT bits set at all
	require.NoError(t, Write(txn, in))

	_, err := Read(txn, 9)
	require.True(t, ferrors.Is(err, ferrors.Invalid))
}

func TestResizeGrowAddsHoleExtent(t *testing.T) {
	txn := newTxn(t)
	in := AllocateFresh(9, 1000)
	in.Mode = syscall.S_IFREG | 0644

	require.NoError(t, Resize(txn, in, 100, 4096))
	require.Equal(t, uint64(100), in.Size)
	require.Len(t, in.Extents, 1)
	require.True(t, in.Extents[0].IsHole())
	require.Equal(t, uint32(100), in.Extents[0].Length)
}

func TestResizeGrowSplitsAcrossMaxExtentLen(t *testing.T) {
	txn := newTxn(t)
	in := AllocateFresh(9, 1000)
	in.Mode = syscall.S_IFREG | 0644

	require.NoError(t, Resize(txn, in, 10, 4))
	require.Equal(t, uint64(10), in.Size)
	require.Len(t, in.Extents, 3)
	require.Equal(t, uint32(4), in.Extents[0].Length)
	require.Equal(t, uint32(4), in.Extents[1].Length)
	require.Equal(t, uint32(2), in.Extents[2].Length)
}

func TestResizeShrinkDropsTailExtents(t *testing.T) {
	txn := newTxn(t)
	in := AllocateFresh(9, 1000)
	in.Mode = syscall.S_IFREG | 0644
	require.NoError(t, Resize(txn, in, 10, 4))

	require.NoError(t, Resize(txn, in, 3, 4))
	require.Equal(t, uint64(3), in.Size)
	require.Len(t, in.Extents, 1)
	require.Equal(t, uint32(3), in.Extents[0].Length)
}

func TestResizeShrinkToZeroClearsExtents(t *testing.T) {
	txn := newTxn(t)
	in := AllocateFresh(9, 1000)
	in.Mode = syscall.S_IFREG | 0644
	require.NoError(t, Resize(txn, in, 10, 4))

	require.NoError(t, Resize(txn, in, 0, 4))
	require.Equal(t, uint64(0), in.Size)
	require.Len(t, in.Extents, 0)
}

func TestDeleteRegularUnrefsExtents(t *testing.T) {
	txn := newTxn(t)
	in := AllocateFresh(9, 1000)
	in.Mode = syscall.S_IFREG | 0644
	require.NoError(t, Resize(txn, in, 10, 4096))
	require.NoError(t, Write(txn, in))

	require.NoError(t, Delete(txn, in))
	_, err := Read(txn, 9)
	require.True(t, ferrors.Is(err, ferrors.NotFound))
}

func TestDeleteDirectoryRemovesDirBlob(t *testing.T) {
	txn := newTxn(t)
	in := AllocateFresh(codec.RootInode, 1000)
	in.Mode = syscall.S_IFDIR | 0755
	in.Nlink = 2
	require.NoError(t, txn.Put(store.Meta, []byte(codec.DirKey(in.Ino)), []byte("fake-dir-blob")))
	require.NoError(t, Write(txn, in))

	require.NoError(t, Delete(txn, in))
	_, err := txn.Get(store.Meta, []byte(codec.DirKey(in.Ino)))
	require.True(t, ferrors.Is(err, ferrors.NotFound))
}

func TestAllocateSkipsExistingInodes(t *testing.T) {
	txn := newTxn(t)
	alloc := NewAllocator()

	first, err := alloc.Allocate(txn, 1000)
	require.NoError(t, err)
	require.Equal(t, uint64(2), first.Ino)
	first.Mode = syscall.S_IFREG | 0644
	require.NoError(t, Write(txn, first))

	second, err := alloc.Allocate(txn, 1000)
	require.NoError(t, err)
	require.Equal(t, uint64(3), second.Ino)
}

func TestAllocateProbesAroundManuallyOccupiedNumber(t *testing.T) {
	txn := newTxn(t)
	// Occupy what the allocator would hand out first.
	taken := AllocateFresh(2, 1000)
	taken.Mode = syscall.S_IFREG | 0644
	require.NoError(t, Write(txn, taken))

	alloc := NewAllocator()
	got, err := alloc.Allocate(txn, 1000)
	require.NoError(t, err)
	require.Equal(t, uint64(3), got.Ino)
}

func TestExists(t *testing.T) {
	txn := newTxn(t)
	ok, err := Exists(txn, codec.RootInode)
	require.NoError(t, err)
	require.False(t, ok)

	in := AllocateFresh(codec.RootInode, 1000)
	in.Mode = syscall.S_IFDIR | 0755
	require.NoError(t, Write(txn, in))

	ok, err = Exists(txn, codec.RootInode)
	require.NoError(t, err)
	require.True(t, ok)
}
