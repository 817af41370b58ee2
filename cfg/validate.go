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

package cfg

import "fmt"

const (
	StorePathRequiredError     = "store.path (or $DB_HOME) must be set"
	PageSizeInvalidValueError  = "page sizes must be a positive power of two"
	FilenameMaxInvalidError    = "file-system.filename-max must be positive"
	XattrNameMaxInvalidError   = "file-system.xattr-name-max must be positive"
	XattrValueMaxInvalidError  = "file-system.xattr-value-max must be positive"
	MaxExtentLenInvalidError   = "file-system.max-extent-len must be positive"
	LogRotateMaxSizeInvalid    = "logging.log-rotate.max-file-size-mb should be at least 1"
	LogRotateBackupCountNegErr = "logging.log-rotate.backup-file-count should be 0 (retain all) or positive"
)

func isPowerOfTwo(v uint32) bool {
	return v != 0 && v&(v-1) == 0
}

func isValidStore(c *Store) error {
	if c.Path == "" {
		return fmt.Errorf(StorePathRequiredError)
	}
	for _, ps := range []uint32{c.PageSizeMeta, c.PageSizeHash, c.PageSizeData} {
		if !isPowerOfTwo(ps) {
			return fmt.Errorf(PageSizeInvalidValueError)
		}
	}
	return nil
}

func isValidFileSystem(c *FileSystem) error {
	if c.FilenameMax <= 0 {
		return fmt.Errorf(FilenameMaxInvalidError)
	}
	if c.XattrNameMax <= 0 {
		return fmt.Errorf(XattrNameMaxInvalidError)
	}
	if c.XattrValueMax <= 0 {
		return fmt.Errorf(XattrValueMaxInvalidError)
	}
	if c.MaxExtentLen <= 0 {
		return fmt.Errorf(MaxExtentLenInvalidError)
	}
	return nil
}

func isValidLogRotate(c *LogRotate) error {
	if c.MaxFileSizeMb <= 0 {
		return fmt.Errorf(LogRotateMaxSizeInvalid)
	}
	if c.BackupFileCount < 0 {
		return fmt.Errorf(LogRotateBackupCountNegErr)
	}
	return nil
}

// Validate checks that the configuration is internally consistent, with
// one isValid* helper per section.
func (c *Config) Validate() error {
	if err := isValidStore(&c.Store); err != nil {
		return err
	}
	if err := isValidFileSystem(&c.FileSystem); err != nil {
		return err
	}
	if err := isValidLogRotate(&c.Logging.LogRotate); err != nil {
		return err
	}
	return nil
}
