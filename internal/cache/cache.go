// Package cache memoizes results of finalized-history queries. Entries are
// content-addressed by operation name and canonical arguments and never expire.
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// Store is a persistent key/value blob store.
// Writes for distinct keys must not conflict, and rewriting an existing key is allowed.
type Store interface {
	Get(ctx context.Context, key []byte) ([]byte, bool, error)
	Put(ctx context.Context, key []byte, value []byte) error
	Close() error
}

// Key returns keccak256(op || 0x00 || json(args)).
// Callers canonicalize args (sorted slices, normalized case) before hashing.
func Key(op string, args interface{}) ([]byte, error) {
	encoded, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal cache args for %s: %w", op, err)
	}
	buf := make([]byte, 0, len(op)+1+len(encoded))
	buf = append(buf, op...)
	buf = append(buf, 0)
	buf = append(buf, encoded...)
	return crypto.Keccak256(buf), nil
}

// Memoize returns the cached value for (op, args) or computes, stores and returns it.
// A nil store disables caching.
func Memoize[T any](ctx context.Context, store Store, op string, args interface{}, fn func() (T, error)) (T, error) {
	var zero T
	if store == nil {
		return fn()
	}

	key, err := Key(op, args)
	if err != nil {
		return zero, err
	}

	blob, ok, err := store.Get(ctx, key)
	if err != nil {
		return zero, fmt.Errorf("cache get %s: %w", op, err)
	}
	if ok {
		var cached T
		if err := json.Unmarshal(blob, &cached); err != nil {
			return zero, fmt.Errorf("cache decode %s: %w", op, err)
		}
		return cached, nil
	}

	value, err := fn()
	if err != nil {
		return zero, err
	}

	blob, err = json.Marshal(value)
	if err != nil {
		return zero, fmt.Errorf("cache encode %s: %w", op, err)
	}
	if err := store.Put(ctx, key, blob); err != nil {
		return zero, fmt.Errorf("cache put %s: %w", op, err)
	}
	return value, nil
}
