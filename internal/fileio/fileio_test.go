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

package fileio

import (
	"testing"

	"github.com/pjh/dbfs/cfg"
	"github.com/pjh/dbfs/internal/blockpool"
	"github.com/pjh/dbfs/internal/codec"
	"github.com/pjh/dbfs/internal/inode"
	"github.com/pjh/dbfs/internal/store"
	"github.com/stretchr/testify/require"
)

const maxExtLen = 4 << 20

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

func freshFile(ino uint64) *codec.RawInode {
	return inode.AllocateFresh(ino, 1000)
}

func TestAppendWriteThenRead(t *testing.T) {
	txn := newTxn(t)
	in := freshFile(5)

	require.NoError(t, Write(txn, in, 0, []byte("hello"), maxExtLen))
	require.EqualValues(t, 5, in.Size)

	got, err := Read(txn, in, 0, 5)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestZeroBufferYieldsHoleAndNoDataKey(t *testing.T) {
	txn := newTxn(t)
	in := freshFile(5)
	zeros := make([]byte, 8192)

	require.NoError(t, Write(txn, in, 0, zeros, maxExtLen))
	require.Len(t, in.Extents, 1)
	require.True(t, in.Extents[0].IsHole())

	got, err := Read(txn, in, 0, 8192)
	require.NoError(t, err)
	require.Equal(t, zeros, got)
}

func TestDedupSharesBlockAcrossFiles(t *testing.T) {
	txn := newTxn(t)
	a := freshFile(5)
	b := freshFile(6)
	content := []byte("identical content")

	require.NoError(t, Write(txn, a, 0, content, maxExtLen))
	require.NoError(t, Write(txn, b, 0, content, maxExtLen))

	hash := a.Extents[0].Hash
	require.Equal(t, hash, b.Extents[0].Hash)

	refs, err := blockpool.Refcount(txn, hash)
	require.NoError(t, err)
	require.EqualValues(t, 2, refs)
}

func TestMiddleOfFileWriteSplitsExtent(t *testing.T) {
	txn := newTxn(t)
	in := freshFile(5)
	require.NoError(t, Write(txn, in, 0, []byte("0123456789"), maxExtLen))

	require.NoError(t, Write(txn, in, 3, []byte("XYZ"), maxExtLen))

	got, err := Read(txn, in, 0, 10)
	require.NoError(t, err)
	require.Equal(t, "012XYZ6789", string(got))
	require.EqualValues(t, 10, in.Size)
}

func TestMiddleOfFileWritePastEndExtendsSize(t *testing.T) {
	txn := newTxn(t)
	in := freshFile(5)
	require.NoError(t, Write(txn, in, 0, []byte("01234"), maxExtLen))

	require.NoError(t, Write(txn, in, 3, []byte("ABCDE"), maxExtLen))

	got, err := Read(txn, in, 0, 8)
	require.NoError(t, err)
	require.Equal(t, "012ABCDE", string(got))
	require.EqualValues(t, 8, in.Size)
}

func TestWriteBeyondEndFillsHole(t *testing.T) {
	txn := newTxn(t)
	in := freshFile(5)
	require.NoError(t, Write(txn, in, 10, []byte("end"), maxExtLen))
	require.EqualValues(t, 13, in.Size)

	got, err := Read(txn, in, 0, 13)
	require.NoError(t, err)
	require.Equal(t, append(make([]byte, 10), []byte("end")...), got)
}

func TestZeroLengthWriteIsNoopButBumpsVersion(t *testing.T) {
	txn := newTxn(t)
	in := freshFile(5)
	require.NoError(t, Write(txn, in, 0, []byte("abc"), maxExtLen))
	v := in.Version

	require.NoError(t, Write(txn, in, 0, nil, maxExtLen))
	require.Greater(t, in.Version, v)
	require.EqualValues(t, 3, in.Size)
}

func TestUnrefOfOverwrittenBlockDropsRefcount(t *testing.T) {
	txn := newTxn(t)
	in := freshFile(5)
	require.NoError(t, Write(txn, in, 0, []byte("0123456789"), maxExtLen))
	origHash := in.Extents[0].Hash

	require.NoError(t, Write(txn, in, 0, []byte("9999999999"), maxExtLen))

	_, err := blockpool.Refcount(txn, origHash)
	require.Error(t, err)
}
