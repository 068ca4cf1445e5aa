package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by a Backend when the key has no value.
	ErrNotFound = errors.New("record not found")

	// ErrClosed is returned by a Backend operation when the backend is not open.
	ErrClosed = errors.New("backend not open")

	// ErrStorage reports a failure of the underlying storage.
	ErrStorage = errors.New("storage error")

	// ErrEncryption reports a failure to encrypt or decrypt the secret.
	ErrEncryption = errors.New("encryption error")

	// ErrUnreadable is returned by Load when a record exists but cannot be decoded
	// or decrypted. Callers treat it as "no session" and clear the store.
	ErrUnreadable = errors.New("stored session unreadable")

	// ErrInvalidRecord is returned by Save for records without an id or secret.
	ErrInvalidRecord = errors.New("invalid session record")
)

// OpError is a typed store error with a stable Op + Kind contract.
// Kind is one of the sentinels above; Err carries the cause and never a secret.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
