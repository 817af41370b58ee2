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

// Package blockpool implements the content-addressed data Block Pool:
// blocks keyed by the SHA-1 of their bytes, refcounted in the hash
// database, with zero-block elision (spec §4.7).
package blockpool

import (
	"crypto/sha1"

	"github.com/pjh/dbfs/internal/codec"
	"github.com/pjh/dbfs/internal/ferrors"
	"github.com/pjh/dbfs/internal/store"
)

// ZeroChunkSize is the granularity at which a candidate block is scanned for
// all-zero content.
const ZeroChunkSize = 8192

// IsAllZero reports whether buf is entirely zero bytes, scanning in
// ZeroChunkSize chunks.
func IsAllZero(buf []byte) bool {
	for off := 0; off < len(buf); off += ZeroChunkSize {
		end := off + ZeroChunkSize
		if end > len(buf) {
			end = len(buf)
		}
		for _, b := range buf[off:end] {
			if b != 0 {
				return false
			}
		}
	}
	return true
}

// Hash returns the content address (SHA-1 digest) of buf.
func Hash(buf []byte) [codec.HashSize]byte {
	return sha1.Sum(buf)
}

// PutNewBlock implements the write-one-block protocol: a zero buffer
// synthesizes a hole extent with no store access; otherwise the buffer is
// hashed, an existing block's refcount is incremented, or a brand new block
// and refcount record are inserted. The returned extent always has Offset 0
// and Length len(buf); callers that need a sub-range of a larger block build
// their own codec.Extent from the Hash.
func PutNewBlock(txn *store.Txn, buf []byte) (codec.Extent, error) {
	if IsAllZero(buf) {
		return codec.Extent{Offset: 0, Length: uint32(len(buf)), Hash: codec.ZeroHash}, nil
	}

	h := Hash(buf)
	key := h[:]

	refs, err := getRefcount(txn, key)
	if err != nil && !ferrors.Is(err, ferrors.NotFound) {
		return codec.Extent{}, err
	}
	if err == nil {
		if err := txn.Put(store.Hash, key, codec.EncodeRefcount(refs+1)); err != nil {
			return codec.Extent{}, err
		}
		return codec.Extent{Offset: 0, Length: uint32(len(buf)), Hash: h}, nil
	}

	if err := txn.Put(store.Hash, key, codec.EncodeRefcount(1)); err != nil {
		return codec.Extent{}, err
	}
	if err := txn.PutIfAbsent(store.Data, key, buf); err != nil && !ferrors.Is(err, ferrors.AlreadyExists) {
		return codec.Extent{}, err
	}
	return codec.Extent{Offset: 0, Length: uint32(len(buf)), Hash: h}, nil
}

// Unref implements the block-unreference protocol: decrement the refcount,
// deleting both the refcount and the content key once it reaches zero. A
// hole hash is a no-op.
func Unref(txn *store.Txn, hash [codec.HashSize]byte) error {
	if hash == codec.ZeroHash {
		return nil
	}
	key := hash[:]
	refs, err := getRefcount(txn, key)
	if err != nil {
		return err
	}
	if refs <= 1 {
		if err := txn.Delete(store.Hash, key); err != nil {
			return err
		}
		return txn.Delete(store.Data, key)
	}
	return txn.Put(store.Hash, key, codec.EncodeRefcount(refs-1))
}

// Ref increments the refcount of an already-live block, used when a new
// extent is made to reference an existing block (e.g. splitting an extent
// during a middle-of-file write keeps the same hash alive in two places).
func Ref(txn *store.Txn, hash [codec.HashSize]byte) error {
	if hash == codec.ZeroHash {
		return nil
	}
	key := hash[:]
	refs, err := getRefcount(txn, key)
	if err != nil {
		return err
	}
	return txn.Put(store.Hash, key, codec.EncodeRefcount(refs+1))
}

func getRefcount(txn *store.Txn, key []byte) (uint32, error) {
	raw, err := txn.Get(store.Hash, key)
	if err != nil {
		return 0, err
	}
	return codec.DecodeRefcount(raw)
}

// Refcount returns the live refcount for a hash, or ferrors.NotFound.
func Refcount(txn *store.Txn, hash [codec.HashSize]byte) (uint32, error) {
	return getRefcount(txn, hash[:])
}

// ReadFragment fetches the bytes of one fragment: zeros for a hole, or a
// partial read from the data database otherwise.
func ReadFragment(txn *store.Txn, e codec.Extent) ([]byte, error) {
	if e.IsHole() {
		return make([]byte, e.Length), nil
	}
	return txn.GetPartial(store.Data, e.Hash[:], int(e.Offset), int(e.Length))
}
