// Package kvstore defines the key-value port checkout state is persisted
// through. Persistence is best-effort: callers treat missing or corrupt
// entries as absent and fall back to defaults.
package kvstore

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}
