package resstock

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/wattcarbon/resstock-dashboard/internal/domain"
	"github.com/wattcarbon/resstock-dashboard/internal/hourly"
	"github.com/wattcarbon/resstock-dashboard/internal/observability"
)

// CachedWeather wraps a WeatherSource with an in-memory LRU cache keyed by
// state, county and year. Concurrent misses for one key share a download.
type CachedWeather struct {
	inner   domain.WeatherSource
	cache   *lruCache[hourly.Series]
	group   singleflight.Group
	metrics *observability.Metrics
}

// NewCachedWeather creates a cache decorator around a weather source.
func NewCachedWeather(inner domain.WeatherSource, maxEntries int, metrics *observability.Metrics) *CachedWeather {
	return &CachedWeather{
		inner:   inner,
		cache:   newLRUCache[hourly.Series](maxEntries),
		metrics: metrics,
	}
}

// HourlyTemperature implements domain.WeatherSource. Callers must not modify
// the returned series.
func (c *CachedWeather) HourlyTemperature(ctx context.Context, state, county string, year int) (hourly.Series, error) {
	key := fmt.Sprintf("%s|%s|%d", state, county, year)
	if s, ok := c.cache.get(key); ok {
		c.metrics.WeatherCache.WithLabelValues("hit").Inc()
		return s, nil
	}
	c.metrics.WeatherCache.WithLabelValues("miss").Inc()

	v, err, _ := c.group.Do(key, func() (any, error) {
		s, err := c.inner.HourlyTemperature(ctx, state, county, year)
		if err != nil {
			return nil, err
		}
		// Only cache non-empty series so a missing file can be retried.
		if len(s) > 0 {
			c.cache.put(key, s)
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(hourly.Series), nil
}

// lruCache is a simple thread-safe LRU cache.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[V]) remove(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
