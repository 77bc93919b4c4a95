// Package memory is an in-process tokencache driver. Nothing survives the
// process, which is what tests and one-shot runs want.
package memory

import (
	"context"
	"sync"

	"github.com/aussiebroadwan/tillsession/pkg/tokencache"
)

type Cache struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ tokencache.Cache = (*Cache)(nil)

func New() *Cache {
	return &Cache{values: make(map[string]string)}
}

func (c *Cache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *Cache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *Cache) Remove(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

// Len is the number of stored keys.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}
