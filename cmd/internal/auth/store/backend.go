package store

import "context"

// Backend is an openable keyed record store.
//
// Operations on a backend that is not open must return ErrClosed; Get returns
// ErrNotFound for missing keys; Delete of a missing key succeeds.
type Backend interface {
	Open(ctx context.Context) error
	IsOpen() bool
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
