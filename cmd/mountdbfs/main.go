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

// Command mountdbfs mounts a store environment at a mount point, serving
// FUSE requests out of it until unmounted.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/jacobsa/fuse"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pjh/dbfs/cfg"
	"github.com/pjh/dbfs/internal/dbfs"
	"github.com/pjh/dbfs/internal/logger"
	"github.com/pjh/dbfs/internal/store"
)

var (
	cfgFile       string
	configFileErr error
	unmarshalErr  error
	mountConfig   = cfg.Config{
		Store:      cfg.GetDefaultStoreConfig(),
		FileSystem: cfg.GetDefaultFileSystemConfig(),
		Logging:    cfg.GetDefaultLoggingConfig(),
	}
)

var rootCmd = &cobra.Command{
	Use:   "mountdbfs <store-path> <mount-point>",
	Short: "Mount a dbfs store environment as a FUSE file system",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if configFileErr != nil {
			return configFileErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}
		mountConfig.Store.Path = args[0]
		if err := mountConfig.Validate(); err != nil {
			return err
		}
		return mountAndServe(args[0], args[1])
	},
}

func init() {
	cobra.OnInitialize(initConfig)
	flags := rootCmd.Flags()
	flags.StringVar(&cfgFile, "config-file", "", "path to a YAML config file overriding every default below")
	flags.Uint32Var(&mountConfig.FileSystem.Uid, "uid", 0, "uid stamped on newly created inodes")
	flags.Uint32Var(&mountConfig.FileSystem.Gid, "gid", 0, "gid stamped on newly created inodes")
	flags.StringVar(&mountConfig.Logging.Severity, "log-severity", mountConfig.Logging.Severity, "one of TRACE, DEBUG, INFO, WARNING, ERROR, OFF")
	flags.StringVar(&mountConfig.Logging.Format, "log-format", mountConfig.Logging.Format, "one of text, json")
	flags.StringVar(&mountConfig.Logging.FilePath, "log-file", "", "empty for stderr, \"syslog\", or a file path")
}

// initConfig follows root.go's pattern: flags already populated mountConfig
// by the time this runs, and a config file, if given, is decoded on top of
// it: keys present in the file overwrite the matching fields, and fields the
// file does not name keep their flag or default values.
func initConfig() {
	if cfgFile == "" {
		return
	}
	viper.SetConfigFile(cfgFile)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("reading config file: %w", err)
		return
	}
	unmarshalErr = viper.Unmarshal(&mountConfig)
}

func mountAndServe(storePath, mountPoint string) error {
	if err := logger.InitLogFile(mountConfig.Logging); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	sessionID := uuid.NewString()
	logger.Infof("starting mount session %s on %s", sessionID, mountPoint)

	env, err := store.Open(mountConfig.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer env.Close()

	server, err := dbfs.NewServer(&dbfs.ServerConfig{
		Env:        env,
		FileSystem: mountConfig.FileSystem,
	})
	if err != nil {
		return fmt.Errorf("new server: %w", err)
	}

	mountCfg := &fuse.MountConfig{
		FSName:     "dbfs",
		Subtype:    "dbfs",
		VolumeName: "dbfs",
		// Letting the kernel issue lookups and readdirs in parallel is safe
		// here: every handler opens its own store transaction and holds no
		// state across requests beyond the handle tables' mutex.
		EnableParallelDirOps: true,
		ErrorLogger:          log.New(os.Stderr, "dbfs-fuse: ", 0),
	}
	if mountConfig.Logging.Severity == logger.Trace {
		mountCfg.DebugLogger = log.New(os.Stderr, "dbfs-fuse-debug: ", 0)
	}

	mfs, err := fuse.Mount(mountPoint, server, mountCfg)
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}

	logger.Infof("session %s mounted, waiting for unmount", sessionID)
	return mfs.Join(context.Background())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
