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

// Command dbfsck walks a store environment and reports invariant
// violations (spec P1-P6) to stderr. Like the original dbfsck.c, it does
// not attempt any repair; it only reports, and exits 1 if anything is
// wrong.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pjh/dbfs/cfg"
	"github.com/pjh/dbfs/internal/blockpool"
	"github.com/pjh/dbfs/internal/codec"
	"github.com/pjh/dbfs/internal/inode"
	"github.com/pjh/dbfs/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "dbfsck <path>",
	Short: "Check a dbfs store environment for invariant violations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		violations, err := check(args[0])
		if err != nil {
			return err
		}
		for _, v := range violations {
			fmt.Fprintln(os.Stderr, v)
		}
		if len(violations) > 0 {
			os.Exit(1)
		}
		return nil
	},
}

// checker accumulates every record read while walking the environment so
// each invariant can be evaluated once the walk completes.
type checker struct {
	inodes      map[uint64]*codec.RawInode
	dirs        map[uint64][]codec.Dirent
	symlinks    map[uint64]bool
	xattrLists  map[uint64][]string
	xattrValues map[string]bool // "ino/name"
	extentRefs  map[[codec.HashSize]byte]int
	violations  []string
}

func check(path string) ([]string, error) {
	c := cfg.GetDefaultStoreConfig()
	c.Path = path
	c.Create = false

	env, err := store.Open(c)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer env.Close()

	txn, err := env.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer txn.Abort()

	ck := &checker{
		inodes:      make(map[uint64]*codec.RawInode),
		dirs:        make(map[uint64][]codec.Dirent),
		symlinks:    make(map[uint64]bool),
		xattrLists:  make(map[uint64][]string),
		xattrValues: make(map[string]bool),
		extentRefs:  make(map[[codec.HashSize]byte]int),
	}
	if err := ck.loadMeta(txn); err != nil {
		return nil, err
	}
	ck.checkP1()
	ck.checkP2(txn)
	ck.checkP3()
	ck.checkP4P5()
	ck.checkP6()
	return ck.violations, nil
}

func (c *checker) loadMeta(txn *store.Txn) error {
	return txn.ForEach(store.Meta, func(key, value []byte) error {
		k := string(key)
		switch {
		case strings.HasPrefix(k, "/inode/"):
			ino, err := strconv.ParseUint(strings.TrimPrefix(k, "/inode/"), 10, 64)
			if err != nil {
				return nil
			}
			raw, err := codec.DecodeInode(value)
			if err != nil {
				c.violations = append(c.violations, fmt.Sprintf("inode %d: corrupt record: %v", ino, err))
				return nil
			}
			c.inodes[ino] = raw
		case strings.HasPrefix(k, "/dir/"):
			ino, err := strconv.ParseUint(strings.TrimPrefix(k, "/dir/"), 10, 64)
			if err != nil {
				return nil
			}
			entries, err := codec.DecodeDirStream(value)
			if err != nil {
				c.violations = append(c.violations, fmt.Sprintf("dir %d: corrupt stream (P5): %v", ino, err))
				return nil
			}
			c.dirs[ino] = entries
		case strings.HasPrefix(k, "/symlink/"):
			ino, err := strconv.ParseUint(strings.TrimPrefix(k, "/symlink/"), 10, 64)
			if err != nil {
				return nil
			}
			c.symlinks[ino] = true
		case strings.HasPrefix(k, "/xattr/"):
			rest := strings.TrimPrefix(k, "/xattr/")
			parts := strings.SplitN(rest, "/", 2)
			ino, err := strconv.ParseUint(parts[0], 10, 64)
			if err != nil {
				return nil
			}
			if len(parts) == 1 {
				names, err := codec.DecodeXattrList(value)
				if err != nil {
					return nil
				}
				c.xattrLists[ino] = names
			} else {
				c.xattrValues[parts[0]+"/"+parts[1]] = true
			}
		}
		return nil
	})
}

// checkP1: every directory entry's target inode exists. Additionally, a
// symlink record must exist for every symlink-typed inode and nowhere else.
func (c *checker) checkP1() {
	for ino, entries := range c.dirs {
		for _, e := range entries {
			if _, ok := c.inodes[e.Ino]; !ok {
				c.violations = append(c.violations, fmt.Sprintf("P1: dir %d entry %q points at missing inode %d", ino, e.Name, e.Ino))
			}
		}
	}
	for ino, in := range c.inodes {
		ft, err := inode.Classify(in.Mode)
		if err != nil {
			c.violations = append(c.violations, fmt.Sprintf("P1: inode %d has unrecognized mode %#o", ino, in.Mode))
			continue
		}
		isSymlink := ft == inode.TypeSymlink
		if isSymlink && !c.symlinks[ino] {
			c.violations = append(c.violations, fmt.Sprintf("P1: inode %d is a symlink with no symlink record", ino))
		}
		if !isSymlink && c.symlinks[ino] {
			c.violations = append(c.violations, fmt.Sprintf("P1: inode %d has a symlink record but is not a symlink", ino))
		}
	}
}

// checkP2: every non-hole extent hash has a refcount equal to its
// reference count, and the data key exists.
func (c *checker) checkP2(txn *store.Txn) {
	for ino, in := range c.inodes {
		for _, e := range in.Extents {
			if e.IsHole() {
				continue
			}
			c.extentRefs[e.Hash]++
			if ok, err := txn.Has(store.Data, e.Hash[:]); err == nil && !ok {
				c.violations = append(c.violations, fmt.Sprintf("P2: inode %d extent hash %x has no data record", ino, e.Hash))
			}
		}
	}
	for hash, refs := range c.extentRefs {
		stored, err := blockpool.Refcount(txn, hash)
		if err != nil {
			c.violations = append(c.violations, fmt.Sprintf("P2: hash %x has no refcount record (referenced %d times)", hash, refs))
			continue
		}
		if int(stored) != refs {
			c.violations = append(c.violations, fmt.Sprintf("P2: hash %x refcount %d does not match %d referencing extents", hash, stored, refs))
		}
	}
}

// checkP3: every inode's nlink equals the number of directory entries
// pointing at it (directories additionally count their own "." self-link).
func (c *checker) checkP3() {
	linkCounts := make(map[uint64]uint32)
	for _, entries := range c.dirs {
		for _, e := range entries {
			linkCounts[e.Ino]++
		}
	}
	for ino, in := range c.inodes {
		if linkCounts[ino] != in.Nlink {
			c.violations = append(c.violations, fmt.Sprintf("P3: inode %d nlink %d does not match %d directory entries", ino, in.Nlink, linkCounts[ino]))
		}
	}
}

// checkP4P5: no duplicate names in a directory (the engine's append path
// refuses duplicates, but DecodeDirStream does not check for them, so a
// corrupted blob written outside the engine is detected here directly). P5 (terminator present) is implied by a successful
// DecodeDirStream and was already checked during loadMeta.
func (c *checker) checkP4P5() {
	for ino, entries := range c.dirs {
		seen := make(map[string]bool)
		for _, e := range entries {
			if seen[e.Name] {
				c.violations = append(c.violations, fmt.Sprintf("P4: dir %d has duplicate entry name %q", ino, e.Name))
			}
			seen[e.Name] = true
		}
	}
}

// checkP6: every xattr list entry has a matching value record, and every
// value record's name appears in its inode's list.
func (c *checker) checkP6() {
	for ino, names := range c.xattrLists {
		for _, n := range names {
			key := strconv.FormatUint(ino, 10) + "/" + n
			if !c.xattrValues[key] {
				c.violations = append(c.violations, fmt.Sprintf("P6: inode %d lists xattr %q with no value record", ino, n))
			}
		}
	}
	for key := range c.xattrValues {
		parts := strings.SplitN(key, "/", 2)
		ino, _ := strconv.ParseUint(parts[0], 10, 64)
		found := false
		for _, n := range c.xattrLists[ino] {
			if n == parts[1] {
				found = true
				break
			}
		}
		if !found {
			c.violations = append(c.violations, fmt.Sprintf("P6: inode %d has xattr value %q with no list entry", ino, parts[1]))
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
