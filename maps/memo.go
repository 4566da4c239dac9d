package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"house-finder/storage"
	"house-finder/utils"
)

// memo is the cache-aside core shared by the lookups. Concurrent misses on
// one key share a single fetch.
type memo struct {
	name    string
	cache   storage.Cache
	flight  singleflight.Group
	logger  *utils.Logger
	metrics *Metrics
}

func newMemo(name string, cache storage.Cache, logger *utils.Logger, metrics *Metrics) *memo {
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &memo{name: name, cache: cache, logger: logger, metrics: metrics}
}

func (m *memo) load(ctx context.Context, key storage.Key, out any) (bool, error) {
	b, ok, err := m.cache.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("maps: %s cache get: %w", m.name, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, fmt.Errorf("maps: %s cache decode: %w", m.name, err)
	}
	return true, nil
}

// remember returns the cached value for params or computes, stores and
// returns it. Failed fetches are not cached.
func remember[T any](ctx context.Context, m *memo, params map[string]any, fetch func(context.Context) (T, error)) (T, error) {
	var zero T

	key, err := storage.NewKey(m.name, params)
	if err != nil {
		return zero, err
	}

	var cached T
	if ok, err := m.load(ctx, key, &cached); err != nil {
		return zero, err
	} else if ok {
		m.metrics.IncLookup(m.name, lookupHit)
		m.logger.Debug("[maps] %s cache hit: %s", m.name, key)
		return cached, nil
	}

	v, err, _ := m.flight.Do(string(key), func() (any, error) {
		// A flight that just finished may have filled the cache.
		var again T
		if ok, err := m.load(ctx, key, &again); err != nil || ok {
			return again, err
		}

		m.metrics.IncLookup(m.name, lookupMiss)
		val, err := fetch(ctx)
		if err != nil {
			if errors.Is(err, ErrNoResult) {
				m.metrics.IncLookup(m.name, lookupNoResult)
			}
			return nil, err
		}

		b, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("maps: %s cache encode: %w", m.name, err)
		}
		if err := m.cache.Set(ctx, key, b); err != nil {
			return nil, fmt.Errorf("maps: %s cache set: %w", m.name, err)
		}
		return val, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}
