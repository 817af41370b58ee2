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

// Package store is the Store Adapter: a thin capability wrapper around an
// embedded transactional K/V engine (go.etcd.io/bbolt), giving every other
// package in dbfs the three logical "databases" (meta, hash, data), a
// begin/commit/abort transaction handle, and get/put/del primitives with an
// optional partial-value read used by block reads to avoid copying
// unreferenced bytes.
//
// bbolt does not expose per-database page sizes or built-in encryption the
// way the original store does; page sizes are therefore accepted and
// validated by cfg but not forwarded to the underlying engine or used
// elsewhere, and AES-at-rest is implemented here as a transparent
// encrypt/decrypt layer over value bytes (see crypto.go).
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pjh/dbfs/cfg"
	"github.com/pjh/dbfs/internal/ferrors"
	bolt "go.etcd.io/bbolt"
)

// Logical database names, each backed by a top-level bbolt bucket.
const (
	Meta = "meta"
	Hash = "hash"
	Data = "data"
)

var allBuckets = []string{Meta, Hash, Data}

// Env is the process-wide store environment handle: opened at mount-init,
// closed at unmount. All other engine state is request-local.
type Env struct {
	db     *bolt.DB
	cipher *aesCodec // nil when no encryption configured
	cfg    cfg.Store
}

// Open opens (optionally creating) the environment rooted at cfg.Path and
// ensures the three logical databases exist.
func Open(c cfg.Store) (*Env, error) {
	if c.Path == "" {
		return nil, ferrors.New(ferrors.Invalid)
	}
	if c.Create {
		if err := os.MkdirAll(c.Path, 0755); err != nil {
			return nil, ferrors.Wrap(ferrors.Io, err)
		}
	}

	dbPath := filepath.Join(c.Path, "dbfs.db")
	opts := &bolt.Options{Timeout: 5 * time.Second}
	if !c.Create {
		if _, err := os.Stat(dbPath); err != nil {
			return nil, ferrors.Wrap(ferrors.NotFound, err)
		}
	}

	db, err := bolt.Open(dbPath, 0600, opts)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Io, err)
	}

	env := &Env{db: db, cfg: c}

	codec, err := newAESCodecFromEnv(c.AESPasswordEnv)
	if err != nil {
		db.Close()
		return nil, err
	}
	env.cipher = codec

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(b)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, ferrors.Wrap(ferrors.Io, err)
	}

	return env, nil
}

// Path returns the environment directory the store was opened against, used
// by statfs to report the real host filesystem's capacity.
func (e *Env) Path() string {
	return e.cfg.Path
}

// Close releases the environment. Safe to call once.
func (e *Env) Close() error {
	if err := e.db.Close(); err != nil {
		return ferrors.Wrap(ferrors.Io, err)
	}
	return nil
}

// Txn is a single store-level transaction. Exactly one request owns it; it
// is not safe for concurrent use.
type Txn struct {
	tx  *bolt.Tx
	env *Env
}

// Begin starts a new transaction. Every FUSE request handler begins exactly
// one and either Commits or Aborts it before returning.
func (e *Env) Begin(writable bool) (*Txn, error) {
	tx, err := e.db.Begin(writable)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Io, err)
	}
	return &Txn{tx: tx, env: e}, nil
}

func (t *Txn) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return ferrors.Wrap(ferrors.Io, err)
	}
	return nil
}

func (t *Txn) Abort() error {
	if err := t.tx.Rollback(); err != nil {
		return ferrors.Wrap(ferrors.Io, err)
	}
	return nil
}

func (t *Txn) bucket(db string) (*bolt.Bucket, error) {
	b := t.tx.Bucket([]byte(db))
	if b == nil {
		return nil, ferrors.Wrap(ferrors.Io, fmt.Errorf("no such database %q", db))
	}
	return b, nil
}

// Get fetches a full value. Returns *ferrors.Error{Code: NotFound} when the
// key is absent.
func (t *Txn) Get(db string, key []byte) ([]byte, error) {
	b, err := t.bucket(db)
	if err != nil {
		return nil, err
	}
	raw := b.Get(key)
	if raw == nil {
		return nil, ferrors.New(ferrors.NotFound)
	}
	plain, err := t.env.decrypt(raw)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Io, err)
	}
	out := make([]byte, len(plain))
	copy(out, plain)
	return out, nil
}

// GetPartial fetches the [offset, offset+length) sub-range of a stored
// value, used by block reads to avoid copying bytes that will not be
// consumed. Returns ferrors.NotFound if the key is absent, ferrors.Range if
// the requested range exceeds the stored value's length.
func (t *Txn) GetPartial(db string, key []byte, offset, length int) ([]byte, error) {
	full, err := t.Get(db, key)
	if err != nil {
		return nil, err
	}
	if offset < 0 || length < 0 || offset+length > len(full) {
		return nil, ferrors.New(ferrors.Range)
	}
	return full[offset : offset+length], nil
}

// Put stores a value, overwriting any existing one.
func (t *Txn) Put(db string, key, val []byte) error {
	b, err := t.bucket(db)
	if err != nil {
		return err
	}
	enc, err := t.env.encrypt(val)
	if err != nil {
		return ferrors.Wrap(ferrors.Io, err)
	}
	if err := b.Put(key, enc); err != nil {
		return ferrors.Wrap(ferrors.Io, err)
	}
	return nil
}

// PutIfAbsent stores a value only if the key does not already exist,
// implementing the "fail-if-present" semantics the block pool's
// put-new-block protocol needs.
func (t *Txn) PutIfAbsent(db string, key, val []byte) error {
	b, err := t.bucket(db)
	if err != nil {
		return err
	}
	if b.Get(key) != nil {
		return ferrors.New(ferrors.AlreadyExists)
	}
	enc, err := t.env.encrypt(val)
	if err != nil {
		return ferrors.Wrap(ferrors.Io, err)
	}
	if err := b.Put(key, enc); err != nil {
		return ferrors.Wrap(ferrors.Io, err)
	}
	return nil
}

// Delete removes a key. Deleting an absent key is not an error (mirrors
// bbolt semantics and keeps unref/prune paths simple).
func (t *Txn) Delete(db string, key []byte) error {
	b, err := t.bucket(db)
	if err != nil {
		return err
	}
	if err := b.Delete(key); err != nil {
		return ferrors.Wrap(ferrors.Io, err)
	}
	return nil
}

// Has reports whether a key exists, without paying for a decrypt/copy.
func (t *Txn) Has(db string, key []byte) (bool, error) {
	b, err := t.bucket(db)
	if err != nil {
		return false, err
	}
	return b.Get(key) != nil, nil
}

// ForEach walks every key in db in key order, decrypting each value before
// passing it to fn. Stops and returns fn's error immediately if it returns
// one. Used by dbfsck's walk-and-report pass, which does not know the key
// space ahead of time the way request dispatch does.
func (t *Txn) ForEach(db string, fn func(key, value []byte) error) error {
	b, err := t.bucket(db)
	if err != nil {
		return err
	}
	return b.ForEach(func(k, v []byte) error {
		plain, err := t.env.decrypt(v)
		if err != nil {
			return ferrors.Wrap(ferrors.Io, err)
		}
		return fn(k, plain)
	})
}
