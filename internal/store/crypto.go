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

package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/pjh/dbfs/internal/ferrors"
)

var errCiphertextTooShort = errors.New("ciphertext shorter than nonce")

// aesCodec encrypts values with AES-GCM under a key derived from the
// password found in the environment variable named by
// cfg.Store.AESPasswordEnv. No ecosystem AES/authenticated-encryption
// library appears anywhere in the retrieved example pack, so this uses the
// standard library's crypto/aes + crypto/cipher directly (see DESIGN.md).
type aesCodec struct {
	gcm cipher.AEAD
}

// newAESCodecFromEnv reads and scrubs the named environment variable. Per
// the original dbfs-backend.c, the variable is overwritten in place with the
// byte 'X' repeated to its original length, not cleared to empty, so a
// concurrent inspection of the process environment never observes a
// shortened value.
func newAESCodecFromEnv(envVar string) (*aesCodec, error) {
	if envVar == "" {
		return nil, nil
	}
	password, ok := os.LookupEnv(envVar)
	if !ok || password == "" {
		return nil, nil
	}
	defer scrubEnv(envVar, len(password))

	key := sha256.Sum256([]byte(password))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Io, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.Io, err)
	}
	return &aesCodec{gcm: gcm}, nil
}

func scrubEnv(envVar string, length int) {
	os.Setenv(envVar, strings.Repeat("X", length))
}

func (e *Env) encrypt(plain []byte) ([]byte, error) {
	if e.cipher == nil {
		return plain, nil
	}
	nonce := make([]byte, e.cipher.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return e.cipher.gcm.Seal(nonce, nonce, plain, nil), nil
}

func (e *Env) decrypt(ciphertext []byte) ([]byte, error) {
	if e.cipher == nil {
		return ciphertext, nil
	}
	n := e.cipher.gcm.NonceSize()
	if len(ciphertext) < n {
		return nil, errCiphertextTooShort
	}
	nonce, ct := ciphertext[:n], ciphertext[n:]
	return e.cipher.gcm.Open(nil, nonce, ct, nil)
}
