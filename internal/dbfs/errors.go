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

package dbfs

import (
	"syscall"

	"github.com/jacobsa/fuse"

	"github.com/pjh/dbfs/internal/ferrors"
)

// errno translates an engine error into the errno the adapter replies with.
// Every handler funnels its terminal error through this one place (spec
// §9, "undifferentiated error returns").
func errno(err error) error {
	if err == nil {
		return nil
	}

	var code ferrors.Code
	switch {
	case ferrors.Is(err, ferrors.NotFound):
		code = ferrors.NotFound
	case ferrors.Is(err, ferrors.AlreadyExists):
		code = ferrors.AlreadyExists
	case ferrors.Is(err, ferrors.NotADir):
		code = ferrors.NotADir
	case ferrors.Is(err, ferrors.IsADir):
		code = ferrors.IsADir
	case ferrors.Is(err, ferrors.NotEmpty):
		code = ferrors.NotEmpty
	case ferrors.Is(err, ferrors.Invalid):
		code = ferrors.Invalid
	case ferrors.Is(err, ferrors.NoSpace):
		code = ferrors.NoSpace
	case ferrors.Is(err, ferrors.OutOfMemory):
		code = ferrors.OutOfMemory
	case ferrors.Is(err, ferrors.Range):
		code = ferrors.Range
	default:
		return fuse.EIO
	}

	switch code {
	case ferrors.NotFound:
		return fuse.ENOENT
	case ferrors.AlreadyExists:
		return fuse.EEXIST
	case ferrors.NotADir:
		return fuse.ENOTDIR
	case ferrors.IsADir:
		return syscall.EISDIR
	case ferrors.NotEmpty:
		return fuse.ENOTEMPTY
	case ferrors.Invalid:
		return fuse.EINVAL
	case ferrors.NoSpace:
		return syscall.EBUSY
	case ferrors.OutOfMemory:
		return syscall.ENOMEM
	case ferrors.Range:
		return syscall.ERANGE
	default:
		return fuse.EIO
	}
}
