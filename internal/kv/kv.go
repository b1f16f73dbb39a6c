// Package kv provides the durable key-value layer behind the local mock
// store, pending signups and the persisted session. Every write publishes
// the key on the notifier hub, which is the storage-level change signal
// other components observe.
package kv

import (
	"context"
	"errors"
)

// ErrNoKey indicates the key has never been written or was deleted.
var ErrNoKey = errors.New("kv: key not found")

// Store is a durable key-value store with change broadcast. Implementations
// publish the key as the hub topic after every successful write, carrying
// the new value (nil for deletes).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
