package db

import (
	"sync"
	"time"

	"starling-server/src/models"

	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"
)

// BalanceCache holds recently fetched balances so repeated /accounts/balances
// calls do not hit the bank for every request. Keys are tracked alongside the
// cache so a full sync can drop every balance at once.
type BalanceCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
	keys  struct {
		sync.RWMutex
		m map[string]struct{}
	}
}

func NewBalanceCache(ttl time.Duration) (*BalanceCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10000, // number of keys to track frequency of
		MaxCost:     10000,
		BufferItems: 64, // number of keys per Get buffer
	})
	if err != nil {
		return nil, err
	}
	c := &BalanceCache{cache: cache, ttl: ttl}
	c.keys.m = make(map[string]struct{})
	return c, nil
}

func balanceKey(account uuid.UUID) string {
	return "balance:" + account.String()
}

func (c *BalanceCache) Set(b models.AccountBalance) {
	if c.ttl <= 0 {
		return
	}
	key := balanceKey(b.AccountUUID)
	c.keys.Lock()
	c.keys.m[key] = struct{}{}
	c.keys.Unlock()
	c.cache.SetWithTTL(key, b, 1, c.ttl)
	c.cache.Wait()
}

func (c *BalanceCache) Get(account uuid.UUID) (models.AccountBalance, bool) {
	v, ok := c.cache.Get(balanceKey(account))
	if !ok {
		return models.AccountBalance{}, false
	}
	b, ok := v.(models.AccountBalance)
	return b, ok
}

func (c *BalanceCache) Del(account uuid.UUID) {
	key := balanceKey(account)
	c.keys.Lock()
	delete(c.keys.m, key)
	c.keys.Unlock()
	c.cache.Del(key)
}

func (c *BalanceCache) Clear() {
	c.keys.Lock()
	for key := range c.keys.m {
		c.cache.Del(key)
	}
	c.keys.m = make(map[string]struct{})
	c.keys.Unlock()
}

func (c *BalanceCache) Close() {
	c.cache.Close()
}
