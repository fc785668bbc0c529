// Package store provides the key-value persistence behind xpost settings.
// It mirrors an extension's local storage area: flat string keys, string
// values, last write wins.
package store

import (
	"context"
)

// Store is the minimal interface all stores must implement.
type Store interface {
	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error
	// Close releases any resources held by the store.
	Close() error
}

// KV is a flat key-value area. Missing keys are simply absent from Get
// results; they are not an error.
type KV interface {
	Store
	// Get returns the values of the keys that exist.
	Get(ctx context.Context, keys ...string) (map[string]string, error)
	// Set writes all values. There is no transaction across concurrent
	// writers; the last write wins.
	Set(ctx context.Context, values map[string]string) error
	// Remove deletes keys. Removing an absent key is not an error.
	Remove(ctx context.Context, keys ...string) error
}

// GetOne returns a single value, or ErrNotFound.
func GetOne(ctx context.Context, kv KV, key string) (string, error) {
	vals, err := kv.Get(ctx, key)
	if err != nil {
		return "", err
	}
	v, ok := vals[key]
	if !ok {
		return "", NewNotFoundError("key", key)
	}
	return v, nil
}
