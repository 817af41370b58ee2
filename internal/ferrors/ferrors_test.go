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

package ferrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsMatchesCode(t *testing.T) {
	err := New(NotFound)
	require.True(t, Is(err, NotFound))
	require.False(t, Is(err, Invalid))
}

func TestIsRejectsForeignErrors(t *testing.T) {
	require.False(t, Is(errors.New("boom"), NotFound))
}

func TestWrapNilReturnsNil(t *testing.T) {
	require.Nil(t, Wrap(Io, nil))
}

func TestWrapPreservesCauseInMessage(t *testing.T) {
	cause := errors.New("disk exploded")
	err := Wrap(Io, cause)
	require.True(t, Is(err, Io))
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "disk exploded")
}

func TestNewHasNoWrappedCause(t *testing.T) {
	err := New(Range)
	require.Nil(t, err.Unwrap())
	require.Equal(t, "range", err.Error())
}

func TestCodeStringCoversEveryCode(t *testing.T) {
	codes := []Code{NotFound, AlreadyExists, NotADir, IsADir, NotEmpty, Invalid, NoSpace, Io, OutOfMemory, Range}
	for _, c := range codes {
		require.NotEqual(t, "unknown", c.String())
	}
	require.Equal(t, "unknown", Code(1000).String())
}
