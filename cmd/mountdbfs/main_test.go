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
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/pjh/dbfs/cfg"
)

func resetMountConfig() {
	mountConfig = cfg.Config{
		Store:      cfg.GetDefaultStoreConfig(),
		FileSystem: cfg.GetDefaultFileSystemConfig(),
		Logging:    cfg.GetDefaultLoggingConfig(),
	}
	cfgFile = ""
	configFileErr = nil
	unmarshalErr = nil
	viper.Reset()
}

func TestInitConfigNoFileLeavesDefaultsUntouched(t *testing.T) {
	resetMountConfig()
	t.Cleanup(resetMountConfig)

	before := mountConfig
	initConfig()
	require.NoError(t, configFileErr)
	require.NoError(t, unmarshalErr)
	require.Equal(t, before, mountConfig)
}

func TestInitConfigFromYAMLOverridesNamedFields(t *testing.T) {
	resetMountConfig()
	t.Cleanup(resetMountConfig)

	path := filepath.Join(t.TempDir(), "dbfs.yaml")
	yaml := "store:\n  path: /var/lib/dbfs\n  create: true\nlogging:\n  severity: DEBUG\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfgFile = path
	initConfig()
	require.NoError(t, configFileErr)
	require.NoError(t, unmarshalErr)
	require.Equal(t, "/var/lib/dbfs", mountConfig.Store.Path)
	require.True(t, mountConfig.Store.Create)
	require.Equal(t, "DEBUG", mountConfig.Logging.Severity)
}

func TestInitConfigMissingFileSetsError(t *testing.T) {
	resetMountConfig()
	t.Cleanup(resetMountConfig)

	cfgFile = filepath.Join(t.TempDir(), "does-not-exist.yaml")
	initConfig()
	require.Error(t, configFileErr)
}

func TestMountConfigValidateAcceptsDefaults(t *testing.T) {
	resetMountConfig()
	t.Cleanup(resetMountConfig)

	mountConfig.Store.Path = t.TempDir()
	require.NoError(t, mountConfig.Validate())
}
