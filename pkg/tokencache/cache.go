// Package tokencache is the key-value boundary a session persists through so
// it survives process restarts. Drivers live under drivers/.
package tokencache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Keys owned by the session manager.
const (
	KeyAuthStatus = "authStatus"
	KeyToken      = "jwt"
)

// ErrCorrupt reports a stored value that could not be decoded.
var ErrCorrupt = errors.New("tokencache: corrupt value")

// Cache is a string key-value store. A missing key is not an error: Get
// reports ok=false and Remove is a no-op. Implementations never interpret
// stored values and touch only the named key.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// GetJSON loads key and unmarshals it into a T. Returns (nil, nil) when the
// key is absent.
func GetJSON[T any](ctx context.Context, c Cache, key string) (*T, error) {
	raw, ok, err := c.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("tokencache get %q: %w", key, err)
	}
	if !ok {
		return nil, nil
	}

	var val T
	if err := json.Unmarshal([]byte(raw), &val); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrCorrupt, key, err)
	}
	return &val, nil
}

// SetJSON marshals val and stores it under key.
func SetJSON[T any](ctx context.Context, c Cache, key string, val T) error {
	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("tokencache marshal %q: %w", key, err)
	}
	if err := c.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("tokencache set %q: %w", key, err)
	}
	return nil
}
