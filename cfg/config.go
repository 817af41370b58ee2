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

// Package cfg holds the configuration tree for the dbfs mounter and its
// companion tools, bound through viper/pflag the way the rest of this
// family of filesystem adapters does it.
package cfg

// Config is the top-level configuration for a dbfs mount or tool invocation.
type Config struct {
	Store Store `yaml:"store"`

	FileSystem FileSystem `yaml:"file-system"`

	Logging Logging `yaml:"logging"`

	Debug Debug `yaml:"debug"`
}

// Store configures the Store Adapter's view of the K/V environment.
type Store struct {
	// Path to the environment directory. Defaults from $DB_HOME if unset.
	Path string `yaml:"path"`

	Create  bool `yaml:"create"`
	Recover bool `yaml:"recover"`

	PageSizeMeta uint32 `yaml:"page-size-meta"`
	PageSizeHash uint32 `yaml:"page-size-hash"`
	PageSizeData uint32 `yaml:"page-size-data"`

	// Name of the environment variable holding the optional AES password.
	// Defaults to $DB_PASSWORD.
	AESPasswordEnv string `yaml:"aes-password-env"`
}

// FileSystem configures the POSIX-facing defaults applied to new inodes.
type FileSystem struct {
	Uid uint32 `yaml:"uid"`
	Gid uint32 `yaml:"gid"`

	FileMode Octal `yaml:"file-mode"`
	DirMode  Octal `yaml:"dir-mode"`

	FilenameMax   int `yaml:"filename-max"`
	XattrNameMax  int `yaml:"xattr-name-max"`
	XattrValueMax int `yaml:"xattr-value-max"`
	MaxExtentLen  int `yaml:"max-extent-len"`
}

// Logging configures the leveled logger.
type Logging struct {
	Severity string `yaml:"severity"`
	Format   string `yaml:"format"`

	// FilePath is empty for stderr, "syslog" for the syslog sink, or a path
	// to a file that will be rotated through LogRotate.
	FilePath string `yaml:"file-path"`

	LogRotate LogRotate `yaml:"log-rotate"`
}

type LogRotate struct {
	MaxFileSizeMb   int  `yaml:"max-file-size-mb"`
	BackupFileCount int  `yaml:"backup-file-count"`
	Compress        bool `yaml:"compress"`
}

// Debug holds debugging options. ExitOnInvariantViolation is parsed from
// config files, but no code path reads it: invariant violations
// are not reported or acted on because of it.
type Debug struct {
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`
}
