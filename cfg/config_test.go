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

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	return Config{
		Store:      GetDefaultStoreConfig(),
		FileSystem: GetDefaultFileSystemConfig(),
		Logging:    GetDefaultLoggingConfig(),
	}
}

func TestValidateRejectsMissingStorePath(t *testing.T) {
	c := validConfig()
	err := c.Validate()
	assert.EqualError(t, err, StorePathRequiredError)
}

func TestValidateAcceptsDefaults(t *testing.T) {
	c := validConfig()
	c.Store.Path = "/tmp/env"
	assert.NoError(t, c.Validate())
}

func TestValidateRejectsNonPowerOfTwoPageSize(t *testing.T) {
	c := validConfig()
	c.Store.Path = "/tmp/env"
	c.Store.PageSizeMeta = 513
	assert.EqualError(t, c.Validate(), PageSizeInvalidValueError)
}

func TestValidateRejectsZeroMaxExtentLen(t *testing.T) {
	c := validConfig()
	c.Store.Path = "/tmp/env"
	c.FileSystem.MaxExtentLen = 0
	assert.EqualError(t, c.Validate(), MaxExtentLenInvalidError)
}

func TestValidateRejectsBadLogRotate(t *testing.T) {
	c := validConfig()
	c.Store.Path = "/tmp/env"
	c.Logging.LogRotate.MaxFileSizeMb = 0
	assert.EqualError(t, c.Validate(), LogRotateMaxSizeInvalid)
}

func TestOctalRoundTrip(t *testing.T) {
	var o Octal
	assert.NoError(t, o.UnmarshalText([]byte("755")))
	assert.EqualValues(t, 0755, o)
	text, err := o.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "755", string(text))
}
