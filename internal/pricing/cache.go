package pricing

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

const dayMs = int64(24 * 60 * 60 * 1000)

// DayBucket floors a millisecond timestamp to its UTC calendar day.
func DayBucket(ts int64) int64 {
	if ts < 0 {
		return 0
	}
	return ts - ts%dayMs
}

// Cache stores resolved prices per (feed, day bucket) for the process
// lifetime. Explicitly constructed and injected into the oracle, never
// ambient state.
type Cache struct {
	mu   sync.RWMutex
	data map[string]decimal.Decimal
}

func NewCache() *Cache {
	return &Cache{data: make(map[string]decimal.Decimal)}
}

func (c *Cache) Get(feedID string, bucket int64) (decimal.Decimal, bool) {
	c.mu.RLock()
	price, ok := c.data[cacheKey(feedID, bucket)]
	c.mu.RUnlock()
	return price, ok
}

func (c *Cache) Set(feedID string, bucket int64, price decimal.Decimal) {
	c.mu.Lock()
	c.data[cacheKey(feedID, bucket)] = price
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

func cacheKey(feedID string, bucket int64) string {
	return fmt.Sprintf("%s:%d", feedID, bucket)
}
