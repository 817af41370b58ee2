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

// Package ferrors defines the single typed error taxonomy shared by every
// engine, replacing the original source's mix of negative errnos and raw
// store return codes (spec §9, redesign point "undifferentiated error
// returns"). Dispatch is the only layer that knows about syscall.Errno.
package ferrors

import "fmt"

// Code classifies a failure the way the dispatch layer needs to see it, not
// the way any particular engine produced it.
type Code int

const (
	// NotFound means a key, path component, or xattr name does not exist.
	NotFound Code = iota
	// AlreadyExists means a create-exclusive operation found something.
	AlreadyExists
	// NotADir means a directory key was expected but absent or wrong-typed.
	NotADir
	// IsADir means a directory-only rule was violated (e.g. unlink without
	// the directory flag).
	IsADir
	// NotEmpty means rmdir was attempted on a non-empty directory.
	NotEmpty
	// Invalid means a malformed argument: bad name, bad mode, bad target.
	Invalid
	// NoSpace means inode number allocation wrapped without finding a gap.
	NoSpace
	// Io means a store-layer failure or on-disk corruption.
	Io
	// OutOfMemory means an allocation failed.
	OutOfMemory
	// Range means a caller-supplied buffer was too small.
	Range
)

func (c Code) String() string {
	switch c {
	case NotFound:
		return "not found"
	case AlreadyExists:
		return "already exists"
	case NotADir:
		return "not a directory"
	case IsADir:
		return "is a directory"
	case NotEmpty:
		return "not empty"
	case Invalid:
		return "invalid argument"
	case NoSpace:
		return "no space"
	case Io:
		return "I/O error"
	case OutOfMemory:
		return "out of memory"
	case Range:
		return "range"
	default:
		return "unknown"
	}
}

// Error wraps a Code with the underlying cause, if any.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs an *Error with no wrapped cause.
func New(code Code) *Error {
	return &Error{Code: code}
}

// Wrap constructs an *Error classifying an underlying cause.
func Wrap(code Code, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Err: err}
}

// Is reports whether err carries the given Code.
func Is(err error, code Code) bool {
	fe, ok := err.(*Error)
	return ok && fe.Code == code
}
