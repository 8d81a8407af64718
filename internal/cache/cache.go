// Package cache implements the request-scoped record cache: a key→payload
// read-through store with a freshness TTL, background revalidation, and a
// last-writer-wins guard against stale fetch results. A single Controller
// owns the map; nothing mutates entries except through its API.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Loader fetches the authoritative payload for one key.
type Loader func(ctx context.Context) (any, error)

type entry struct {
	payload   any
	fetchedAt time.Time
	gen       uint64
}

// Controller is the process-wide cache owner.
type Controller struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*entry
	loaders map[string]Loader
	latest  map[string]uint64
	now     func() time.Time

	hits   prometheus.Counter
	misses prometheus.Counter
}

// New creates a controller with the given freshness TTL and registers its
// hit/miss counters with reg.
func New(ttl time.Duration, reg prometheus.Registerer) *Controller {
	c := &Controller{
		ttl:     ttl,
		entries: make(map[string]*entry),
		loaders: make(map[string]Loader),
		latest:  make(map[string]uint64),
		now:     time.Now,
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classtrack_cache_hits_total",
			Help: "Record cache lookups served from a fresh entry.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "classtrack_cache_misses_total",
			Help: "Record cache lookups that required a fetch.",
		}),
	}
	if reg != nil {
		reg.MustRegister(c.hits, c.misses)
	}
	return c
}

// GetOrFetch returns the cached payload for key when it is still fresh,
// otherwise runs load and stores the result. When two fetches for the same
// key race, only the newest request's result is stored (last-writer-wins);
// a superseded result is still returned to its own caller but discarded
// from the cache. The loader is remembered for background revalidation.
func (c *Controller) GetOrFetch(ctx context.Context, key string, load Loader) (any, error) {
	c.mu.Lock()
	c.loaders[key] = load
	if e, ok := c.entries[key]; ok && c.now().Sub(e.fetchedAt) < c.ttl {
		c.hits.Inc()
		payload := e.payload
		c.mu.Unlock()
		return payload, nil
	}
	c.misses.Inc()
	c.latest[key]++
	gen := c.latest[key]
	c.mu.Unlock()

	payload, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.store(key, gen, payload)
	return payload, nil
}

// store keeps the payload only if no newer request for the key has started.
func (c *Controller) store(key string, gen uint64, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.latest[key] {
		return // superseded: stale response discarded
	}
	c.entries[key] = &entry{payload: payload, fetchedAt: c.now(), gen: gen}
}

// Invalidate drops a key so the next lookup refetches.
func (c *Controller) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Run revalidates expired entries on the given interval until ctx is
// cancelled. Fetch failures leave the old entry in place.
func (c *Controller) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.revalidate(ctx)
		}
	}
}

func (c *Controller) revalidate(ctx context.Context) {
	type job struct {
		key  string
		gen  uint64
		load Loader
	}
	c.mu.Lock()
	var jobs []job
	for key, e := range c.entries {
		if c.now().Sub(e.fetchedAt) < c.ttl {
			continue
		}
		load, ok := c.loaders[key]
		if !ok {
			continue
		}
		c.latest[key]++
		jobs = append(jobs, job{key: key, gen: c.latest[key], load: load})
	}
	c.mu.Unlock()

	for _, j := range jobs {
		payload, err := j.load(ctx)
		if err != nil {
			continue
		}
		c.store(j.key, j.gen, payload)
	}
}

// Fetch is a typed wrapper over Controller.GetOrFetch.
func Fetch[T any](ctx context.Context, c *Controller, key string, load func(ctx context.Context) (T, error)) (T, error) {
	payload, err := c.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return payload.(T), nil
}
