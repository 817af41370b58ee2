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

// Command mkdbfs formats a fresh store environment and seeds the root
// directory inode, the way the original mkdbfs.c's make_root_dir does.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	fallocate "github.com/detailyang/go-fallocate"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pjh/dbfs/cfg"
	"github.com/pjh/dbfs/internal/codec"
	"github.com/pjh/dbfs/internal/direntry"
	"github.com/pjh/dbfs/internal/inode"
	"github.com/pjh/dbfs/internal/store"
)

var preallocateBytes int64

var rootCmd = &cobra.Command{
	Use:   "mkdbfs <path>",
	Short: "Format a dbfs store environment and seed its root directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mkdbfs(args[0])
	},
}

func init() {
	flags := pflag.NewFlagSet("mkdbfs", pflag.ExitOnError)
	flags.Int64Var(&preallocateBytes, "preallocate-bytes", 0, "preallocate this many bytes for the backing store file after formatting")
	rootCmd.Flags().AddFlagSet(flags)
}

// preallocateStoreFile reserves disk space for the backing file up front so
// that later writes do not fail with ENOSPC mid-transaction. It runs after
// the store has been formatted, so the file already holds the store's own
// pages and only grows to size here.
func preallocateStoreFile(dir string, size int64) error {
	if size <= 0 {
		return nil
	}
	path := filepath.Join(dir, "dbfs.db")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open for preallocation: %w", err)
	}
	defer f.Close()
	if err := fallocate.Fallocate(f, 0, size); err != nil {
		return fmt.Errorf("fallocate: %w", err)
	}
	return nil
}

func mkdbfs(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}

	defaults := cfg.GetDefaultStoreConfig()
	defaults.Path = path
	defaults.Create = true

	env, err := store.Open(defaults)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer env.Close()

	txn, err := env.Begin(true)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			txn.Abort()
		}
	}()

	if err := makeRootDir(txn); err != nil {
		return fmt.Errorf("make root dir: %w", err)
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return preallocateStoreFile(path, preallocateBytes)
}

// makeRootDir seeds inode 1 exactly the way the original's make_root_dir
// does: mode S_IFDIR|0755, nlink 2, all three timestamps set to the format
// time, then a fresh empty directory blob ("." and ".." both pointing at
// inode 1) whose length becomes the inode's size.
func makeRootDir(txn *store.Txn) error {
	now := uint64(time.Now().Unix())
	root := &codec.RawInode{
		Ino:   codec.RootInode,
		Mode:  0040755, // S_IFDIR | 0755
		Nlink: 2,
		Ctime: now,
		Atime: now,
		Mtime: now,
	}

	if err := direntry.New(txn, codec.RootInode, codec.RootInode); err != nil {
		return err
	}
	blob, err := direntry.Read(txn, codec.RootInode)
	if err != nil {
		return err
	}
	root.Size = uint64(len(blob))

	return inode.Write(txn, root)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
