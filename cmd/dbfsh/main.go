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

// Command dbfsh is an interactive debug shell over a store environment:
// cd PATH, ls, stat PATH, exit, help.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pjh/dbfs/cfg"
	"github.com/pjh/dbfs/internal/codec"
	"github.com/pjh/dbfs/internal/direntry"
	"github.com/pjh/dbfs/internal/inode"
	"github.com/pjh/dbfs/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "dbfsh <path>",
	Short: "Interactive debug shell over a dbfs store environment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(args[0])
	},
}

// shell holds the REPL's cwd state across commands; every command opens its
// own read-only transaction, so a long-running session never holds a stale
// view of the store.
type shell struct {
	env *store.Env
	cwd uint64
	out *bufio.Writer
}

func run(path string) error {
	c := cfg.GetDefaultStoreConfig()
	c.Path = path
	c.Create = false

	env, err := store.Open(c)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer env.Close()

	sh := &shell{env: env, cwd: codec.RootInode, out: bufio.NewWriter(os.Stdout)}
	defer sh.out.Flush()

	fmt.Fprintf(sh.out, "dbfsh %s, session %s\n", path, uuid.NewString())
	sh.out.Flush()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(sh.out, "dbfsh> ")
		sh.out.Flush()
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, rest := fields[0], fields[1:]

		switch cmd {
		case "exit", "quit":
			return nil
		case "help":
			sh.help()
		case "cd":
			sh.cd(rest)
		case "ls":
			sh.ls(rest)
		case "stat":
			sh.stat(rest)
		default:
			fmt.Fprintf(sh.out, "unknown command %q, try help\n", cmd)
		}
		sh.out.Flush()
	}
	return scanner.Err()
}

func (sh *shell) help() {
	fmt.Fprintln(sh.out, "cd PATH    change the current directory")
	fmt.Fprintln(sh.out, "ls         list the current directory's entries")
	fmt.Fprintln(sh.out, "stat PATH  print an inode's raw fields")
	fmt.Fprintln(sh.out, "exit       leave the shell")
}

// resolve walks path component by component from root (absolute) or cwd
// (relative), returning the inode number it names.
func (sh *shell) resolve(txn *store.Txn, path string) (uint64, error) {
	cur := sh.cwd
	if strings.HasPrefix(path, "/") {
		cur = codec.RootInode
	}
	for _, comp := range strings.Split(path, "/") {
		if comp == "" || comp == "." {
			continue
		}
		next, err := direntry.Lookup(txn, cur, comp)
		if err != nil {
			return 0, err
		}
		cur = next
	}
	return cur, nil
}

func (sh *shell) cd(args []string) {
	path := "/"
	if len(args) > 0 {
		path = args[0]
	}
	txn, err := sh.env.Begin(false)
	if err != nil {
		fmt.Fprintln(sh.out, err)
		return
	}
	defer txn.Abort()

	target, err := sh.resolve(txn, path)
	if err != nil {
		fmt.Fprintf(sh.out, "cd %s: %v\n", path, err)
		return
	}
	in, err := inode.Read(txn, target)
	if err != nil {
		fmt.Fprintf(sh.out, "cd %s: %v\n", path, err)
		return
	}
	ft, err := inode.Classify(in.Mode)
	if err != nil || ft != inode.TypeDirectory {
		fmt.Fprintf(sh.out, "cd %s: not a directory\n", path)
		return
	}
	sh.cwd = target
}

func (sh *shell) ls(args []string) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	txn, err := sh.env.Begin(false)
	if err != nil {
		fmt.Fprintln(sh.out, err)
		return
	}
	defer txn.Abort()

	target, err := sh.resolve(txn, path)
	if err != nil {
		fmt.Fprintf(sh.out, "ls %s: %v\n", path, err)
		return
	}
	blob, err := direntry.Read(txn, target)
	if err != nil {
		fmt.Fprintf(sh.out, "ls %s: %v\n", path, err)
		return
	}
	if err := direntry.Foreach(blob, func(e codec.Dirent) bool {
		fmt.Fprintf(sh.out, "%-20s %d\n", e.Name, e.Ino)
		return true
	}); err != nil {
		fmt.Fprintf(sh.out, "ls %s: %v\n", path, err)
	}
}

func (sh *shell) stat(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(sh.out, "usage: stat PATH")
		return
	}
	txn, err := sh.env.Begin(false)
	if err != nil {
		fmt.Fprintln(sh.out, err)
		return
	}
	defer txn.Abort()

	target, err := sh.resolve(txn, args[0])
	if err != nil {
		fmt.Fprintf(sh.out, "stat %s: %v\n", args[0], err)
		return
	}
	in, err := inode.Read(txn, target)
	if err != nil {
		fmt.Fprintf(sh.out, "stat %s: %v\n", args[0], err)
		return
	}
	fmt.Fprintf(sh.out, "ino:     %d\n", in.Ino)
	fmt.Fprintf(sh.out, "version: %d\n", in.Version)
	fmt.Fprintf(sh.out, "mode:    %#o\n", in.Mode)
	fmt.Fprintf(sh.out, "nlink:   %d\n", in.Nlink)
	fmt.Fprintf(sh.out, "uid:     %d\n", in.Uid)
	fmt.Fprintf(sh.out, "gid:     %d\n", in.Gid)
	fmt.Fprintf(sh.out, "size:    %d\n", in.Size)
	fmt.Fprintf(sh.out, "ctime:   %d\n", in.Ctime)
	fmt.Fprintf(sh.out, "atime:   %d\n", in.Atime)
	fmt.Fprintf(sh.out, "mtime:   %d\n", in.Mtime)
	fmt.Fprintf(sh.out, "extents: %d\n", len(in.Extents))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
