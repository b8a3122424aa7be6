package chain

import (
	"errors"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"
)

const (
	defaultNumCounters = 1e5
	defaultMaxCost     = 1e4
	defaultBufferItems = 64
)

var errNoValue = errors.New("no value on chain")

// lookupCache caches immutable chain lookups. Misses are never cached.
type lookupCache struct {
	cache *ristretto.Cache[string, string]
	sfg   singleflight.Group
	ttl   time.Duration
}

func newLookupCache(ttl time.Duration) (*lookupCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: defaultNumCounters,
		MaxCost:     defaultMaxCost,
		BufferItems: defaultBufferItems,
		Cost: func(value string) int64 {
			return 1
		},
	})
	if err != nil {
		return nil, err
	}
	return &lookupCache{cache: c, ttl: ttl}, nil
}

func (lc *lookupCache) getOrLoad(key string, loader func() (string, bool, error)) (string, bool, error) {
	if value, found := lc.cache.Get(key); found {
		return value, true, nil
	}

	res, err, _ := lc.sfg.Do(key, func() (interface{}, error) {
		value, found, err := loader()
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, errNoValue
		}
		lc.cache.SetWithTTL(key, value, 0, lc.ttl)
		lc.cache.Wait()
		return value, nil
	})
	if errors.Is(err, errNoValue) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return res.(string), true, nil
}

func (lc *lookupCache) Close() {
	lc.cache.Close()
}
