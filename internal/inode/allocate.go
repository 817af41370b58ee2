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

package inode

import (
	"sync"

	"github.com/pjh/dbfs/internal/codec"
	"github.com/pjh/dbfs/internal/ferrors"
	"github.com/pjh/dbfs/internal/store"
)

// firstFreeInode is the first inode number the allocator will ever hand
// out; 0 and 1 are reserved (1 is the root directory).
const firstFreeInode = 2

// Allocator hands out fresh inode numbers from a rolling counter, injected
// explicitly into the dispatch layer rather than kept as a hidden global
// (spec §9, redesign point "process-wide store handle"). One Allocator is
// created per mount and shared by every request.
type Allocator struct {
	mu   sync.Mutex
	next uint64
}

// NewAllocator creates an allocator starting its probe at firstFreeInode.
func NewAllocator() *Allocator {
	return &Allocator{next: firstFreeInode}
}

// Allocate probes keys starting at the rolling counter until it finds a gap,
// returning a zeroed inode for that number stamped with now. If a full
// cycle of the inode-number space is probed without finding a gap, it fails
// with ferrors.NoSpace (spec invariant I7).
func (a *Allocator) Allocate(txn *store.Txn, now uint64) (*codec.RawInode, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := a.next
	if start < firstFreeInode {
		start = firstFreeInode
	}
	candidate := start
	firstPass := true

	for firstPass || candidate != start {
		firstPass = false

		exists, err := Exists(txn, candidate)
		if err != nil {
			return nil, err
		}
		if !exists {
			a.next = candidate + 1
			if a.next == 0 {
				a.next = firstFreeInode
			}
			return AllocateFresh(candidate, now), nil
		}

		candidate++
		if candidate == 0 {
			candidate = firstFreeInode
		}
	}
	return nil, ferrors.New(ferrors.NoSpace)
}
