package backtest

import (
	"sync"

	"futures-backtest-lab/internal/domain"
)

// CandleCache holds fetched candle series for the duration of one driver
// invocation so comparative runs fetch each instrument once. Callers that
// want sharing across invocations pass the same cache in; there is no
// global state.
type CandleCache struct {
	mu   sync.RWMutex
	data map[cacheKey][]*domain.Candle
}

type cacheKey struct {
	ticker   string
	interval string
}

// NewCandleCache creates an empty candle cache.
func NewCandleCache() *CandleCache {
	return &CandleCache{
		data: make(map[cacheKey][]*domain.Candle),
	}
}

// Get returns the cached series for (ticker, interval), if present.
func (c *CandleCache) Get(ticker, interval string) ([]*domain.Candle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	candles, ok := c.data[cacheKey{ticker: ticker, interval: interval}]
	return candles, ok
}

// Put stores a series for (ticker, interval).
func (c *CandleCache) Put(ticker, interval string, candles []*domain.Candle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[cacheKey{ticker: ticker, interval: interval}] = candles
}
