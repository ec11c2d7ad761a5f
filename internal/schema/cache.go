package schema

import (
	"context"
	"sync"
)

// CachedProvider memoizes the first successful extraction. The target database
// schema is assumed stable for the lifetime of the process; prompt stability
// across requests depends on it. Failed extractions are not cached.
type CachedProvider struct {
	inner Provider

	mu     sync.Mutex
	loaded bool
	desc   Description
}

func NewCachedProvider(inner Provider) *CachedProvider {
	return &CachedProvider{inner: inner}
}

func (c *CachedProvider) Extract(ctx context.Context) (Description, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.desc, nil
	}
	desc, err := c.inner.Extract(ctx)
	if err != nil {
		return Description{}, err
	}
	c.desc = desc
	c.loaded = true
	return desc, nil
}
