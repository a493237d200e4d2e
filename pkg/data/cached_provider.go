package data

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ducminhle1904/gap-atr-backtest/pkg/types"
)

// MemoryCache implements DataCache using in-memory storage
type MemoryCache struct {
	cache map[string][]types.OHLCV
	mutex sync.RWMutex
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		cache: make(map[string][]types.OHLCV),
	}
}

// Get retrieves a copy of the cached bars
func (c *MemoryCache) Get(key string) ([]types.OHLCV, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	data, exists := c.cache[key]
	if !exists {
		return nil, false
	}
	result := make([]types.OHLCV, len(data))
	copy(result, data)
	return result, true
}

// Set stores a copy of data
func (c *MemoryCache) Set(key string, data []types.OHLCV) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	cached := make([]types.OHLCV, len(data))
	copy(cached, data)
	c.cache[key] = cached
}

// Clear removes all cached data
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.cache = make(map[string][]types.OHLCV)
}

// Size returns the number of cached entries
func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.cache)
}

// CachedProvider wraps another BarProvider. Failures are not cached.
type CachedProvider struct {
	provider BarProvider
	cache    DataCache
}

// NewCachedProvider creates a new cached data provider
func NewCachedProvider(provider BarProvider) *CachedProvider {
	return NewCachedProviderWithCache(provider, NewMemoryCache())
}

// NewCachedProviderWithCache creates a new cached data provider with custom cache
func NewCachedProviderWithCache(provider BarProvider, cache DataCache) *CachedProvider {
	return &CachedProvider{provider: provider, cache: cache}
}

// GetName returns the name of the underlying provider with cache indication
func (p *CachedProvider) GetName() string {
	return "cached " + p.provider.GetName()
}

// FetchBars serves repeated requests for the same symbol and range from memory
func (p *CachedProvider) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]types.OHLCV, error) {
	key := fmt.Sprintf("%s|%d|%d", symbol, start.Unix(), end.Unix())
	if data, ok := p.cache.Get(key); ok {
		return data, nil
	}
	data, err := p.provider.FetchBars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	p.cache.Set(key, data)
	return data, nil
}

// ClearCache clears all cached data
func (p *CachedProvider) ClearCache() {
	p.cache.Clear()
}
