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

package main

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pjh/dbfs/cfg"
	"github.com/pjh/dbfs/internal/codec"
	"github.com/pjh/dbfs/internal/direntry"
	"github.com/pjh/dbfs/internal/inode"
	"github.com/pjh/dbfs/internal/store"
)

func seedCleanStore(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	c := cfg.GetDefaultStoreConfig()
	c.Path = dir
	c.Create = true

	env, err := store.Open(c)
	require.NoError(t, err)
	defer env.Close()

	txn, err := env.Begin(true)
	require.NoError(t, err)
	require.NoError(t, direntry.New(txn, codec.RootInode, codec.RootInode))
	root := inode.AllocateFresh(codec.RootInode, 1000)
	root.Mode = syscall.S_IFDIR | 0755
	root.Nlink = 2
	blob, err := direntry.Read(txn, codec.RootInode)
	require.NoError(t, err)
	root.Size = uint64(len(blob))
	require.NoError(t, inode.Write(txn, root))
	require.NoError(t, txn.Commit())
	return dir
}

func TestCheckReportsNoViolationsOnFreshStore(t *testing.T) {
	dir := seedCleanStore(t)
	violations, err := check(dir)
	require.NoError(t, err)
	require.Empty(t, violations)
}

// TestCheckCatchesDirEntryPointingAtMissingInode corrupts the store outside
// the engine's own invariant-preserving paths (a directory entry naming an
// inode that was never written) and asserts the P1 check flags it.
func TestCheckCatchesDirEntryPointingAtMissingInode(t *testing.T) {
	dir := seedCleanStore(t)

	c := cfg.GetDefaultStoreConfig()
	c.Path = dir
	c.Create = false
	env, err := store.Open(c)
	require.NoError(t, err)
	defer env.Close()

	txn, err := env.Begin(true)
	require.NoError(t, err)
	require.NoError(t, direntry.Append(txn, codec.RootInode, 999, "ghost", 255))
	require.NoError(t, txn.Commit())

	violations, err := check(dir)
	require.NoError(t, err)
	require.NotEmpty(t, violations)

	found := false
	for _, v := range violations {
		if v == "P1: dir 1 entry \"ghost\" points at missing inode 999" {
			found = true
		}
	}
	require.True(t, found, "violations: %v", violations)
}

// TestCheckCatchesNlinkMismatch corrupts an inode's nlink directly so it no
// longer matches the directory-entry count referencing it, and asserts the
// P3 check flags it.
func TestCheckCatchesNlinkMismatch(t *testing.T) {
	dir := seedCleanStore(t)

	c := cfg.GetDefaultStoreConfig()
	c.Path = dir
	c.Create = false
	env, err := store.Open(c)
	require.NoError(t, err)
	defer env.Close()

	txn, err := env.Begin(true)
	require.NoError(t, err)
	root, err := inode.Read(txn, codec.RootInode)
	require.NoError(t, err)
	root.Nlink = 99
	require.NoError(t, inode.Write(txn, root))
	require.NoError(t, txn.Commit())

	violations, err := check(dir)
	require.NoError(t, err)
	require.Contains(t, violations, "P3: inode 1 nlink 99 does not match 2 directory entries")
}
