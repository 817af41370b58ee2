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

import "os"

// GetDefaultStoreConfig returns the store configuration to use when no flag
// or config file overrides it.
func GetDefaultStoreConfig() Store {
	return Store{
		Path:           os.Getenv("DB_HOME"),
		PageSizeMeta:   512,
		PageSizeHash:   512,
		PageSizeData:   2048,
		AESPasswordEnv: "DB_PASSWORD",
	}
}

// GetDefaultFileSystemConfig returns the filesystem-facing defaults.
func GetDefaultFileSystemConfig() FileSystem {
	return FileSystem{
		FileMode:      0644,
		DirMode:       0755,
		FilenameMax:   255,
		XattrNameMax:  256,
		XattrValueMax: 1 << 20,
		MaxExtentLen:  4 << 20,
	}
}

// GetDefaultLoggingConfig returns the default configuration used during
// application startup, before any config file or flag has been parsed.
func GetDefaultLoggingConfig() Logging {
	return Logging{
		Severity: "INFO",
		Format:   "text",
		LogRotate: LogRotate{
			MaxFileSizeMb:   512,
			BackupFileCount: 10,
			Compress:        true,
		},
	}
}
