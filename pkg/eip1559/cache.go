package eip1559

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
)

// DefaultFeeTTL bounds how stale a cached fee pair may get. Roughly one
// block on mainnet.
const DefaultFeeTTL = 15 * time.Second

const feeCacheKey = "fees"

// CachingSuggester memoizes another Suggester so bursts of operations built
// back to back share one fee lookup.
type CachingSuggester struct {
	inner Suggester
	cache *bigcache.BigCache
}

func NewCachingSuggester(inner Suggester, ttl time.Duration) (*CachingSuggester, error) {
	if ttl <= 0 {
		ttl = DefaultFeeTTL
	}

	cache, err := bigcache.New(context.Background(), bigcache.Config{
		// number of shards (must be a power of 2)
		Shards: 16,

		// time after which entry can be evicted
		LifeWindow: ttl,

		// bigcache has a one second resolution, nothing to gain below that
		CleanWindow: time.Minute,

		// used only in initial memory allocation
		MaxEntriesInWindow: 64,

		// max entry size in bytes, used only in initial memory allocation
		MaxEntrySize: 128,

		// value in MB
		HardMaxCacheSize: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create fee cache: %w", err)
	}

	return &CachingSuggester{inner: inner, cache: cache}, nil
}

func (s *CachingSuggester) SuggestFee(ctx context.Context) (*big.Int, *big.Int, error) {
	if raw, err := s.cache.Get(feeCacheKey); err == nil {
		if maxFee, maxPriority, err := decodeFees(raw); err == nil {
			return maxFee, maxPriority, nil
		}
	}

	maxFee, maxPriority, err := s.inner.SuggestFee(ctx)
	if err != nil {
		return nil, nil, err
	}

	_ = s.cache.Set(feeCacheKey, encodeFees(maxFee, maxPriority))

	return maxFee, maxPriority, nil
}

// Invalidate drops the cached pair so the next call hits the inner suggester.
func (s *CachingSuggester) Invalidate() {
	_ = s.cache.Delete(feeCacheKey)
}

func encodeFees(maxFee, maxPriority *big.Int) []byte {
	return []byte(maxFee.String() + "|" + maxPriority.String())
}

func decodeFees(raw []byte) (*big.Int, *big.Int, error) {
	first, second, found := strings.Cut(string(raw), "|")
	if !found {
		return nil, nil, fmt.Errorf("malformed fee cache entry: %q", raw)
	}

	maxFee, ok := new(big.Int).SetString(first, 10)
	if !ok {
		return nil, nil, fmt.Errorf("malformed fee cache entry: %q", raw)
	}
	maxPriority, ok := new(big.Int).SetString(second, 10)
	if !ok {
		return nil, nil, fmt.Errorf("malformed fee cache entry: %q", raw)
	}

	return maxFee, maxPriority, nil
}
