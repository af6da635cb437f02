// Package storage is the device-local key-value persistence behind the
// session store.
package storage

import (
	"context"
	"errors"
)

// Keys used by the session store.
const (
	KeyUser  = "user"
	KeyToken = "token"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Store persists string values. Removing an absent key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
