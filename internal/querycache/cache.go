// Package querycache implements a keyed store of fetched results with
// staleness tracking, in-flight request deduplication and prefix-based
// invalidation. It is the single read path of the sync layer: views read
// through it, mutations and the event bridge invalidate through it.
//
// Cached values are treated as immutable. Writers must store fresh values
// rather than mutating what a previous read returned; the optimistic
// rollback in the mutation engine depends on this.
package querycache

import (
	"context"
	"sync"
	"time"

	"github.com/sitesentry/livesync/internal/logger"
)

// DefaultGCDelay is how long an entry without subscribers survives before
// being evicted.
const DefaultGCDelay = 5 * time.Minute

// Status describes an entry's lifecycle state.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusFetching Status = "fetching"
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
)

// Fetcher loads the authoritative value for a key.
type Fetcher func(ctx context.Context) (any, error)

// Result is a snapshot of an entry delivered to waiters and subscribers.
// Stale means the value landed after an invalidation and a refetch is
// already underway or required.
type Result struct {
	Value     any
	Err       error
	UpdatedAt time.Time
	Stale     bool
}

// Options configures a Cache.
type Options struct {
	Logger  logger.Logger
	Metrics *Metrics
	GCDelay time.Duration
}

type entry struct {
	key       Key
	value     any
	hasValue  bool
	err       error
	updatedAt time.Time

	// stale marks the value untrustworthy; the next read refetches.
	stale bool

	// inFlight with fetchGen implement single-fetch-per-key and the
	// superseded-response guard: a completing fetch applies only when its
	// generation is still current.
	inFlight bool
	fetchGen uint64

	// staleOnLand records an invalidation that arrived mid-flight. The
	// landing result is stored but kept stale, forcing one more fetch.
	staleOnLand bool

	waiters []chan Result
	fetcher Fetcher
	subs    map[int64]func(Result)
	gcTimer *time.Timer
}

func (e *entry) status() Status {
	switch {
	case e.inFlight:
		return StatusFetching
	case e.err != nil:
		return StatusError
	case e.hasValue:
		return StatusSuccess
	default:
		return StatusIdle
	}
}

func (e *entry) result() Result {
	return Result{Value: e.value, Err: e.err, UpdatedAt: e.updatedAt, Stale: e.stale}
}

// Cache is the process-wide query cache. Its lifecycle is bound to the
// session: constructed at login, cleared at logout.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	nextSub int64

	log     logger.Logger
	metrics *Metrics
	gcDelay time.Duration

	refreshMu   sync.Mutex
	refreshStop chan struct{}
}

// New creates an empty cache.
func New(opts Options) *Cache {
	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	gcDelay := opts.GCDelay
	if gcDelay <= 0 {
		gcDelay = DefaultGCDelay
	}
	return &Cache{
		entries: make(map[string]*entry),
		log:     log,
		metrics: opts.Metrics,
		gcDelay: gcDelay,
	}
}

func (c *Cache) getOrCreate(key Key) *entry {
	id := key.id()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{key: key, subs: make(map[int64]func(Result))}
		c.entries[id] = e
		c.metrics.addEntries(1)
	}
	return e
}

func (c *Cache) beginFetch(e *entry) uint64 {
	e.inFlight = true
	e.fetchGen++
	c.metrics.incFetches()
	return e.fetchGen
}

// Read returns the cached value for key, fetching when the entry is absent
// or stale. Concurrent readers of the same key share a single fetch. A read
// that lands after a mid-flight invalidation triggers a follow-up fetch and
// only returns once a trustworthy value is available. Read never hands out
// a stale value; callers wanting stale-while-revalidate combine Peek for
// the immediate snapshot with Subscribe for the refreshed one.
func (c *Cache) Read(ctx context.Context, key Key, fetcher Fetcher) (any, error) {
	for {
		c.mu.Lock()
		e := c.getOrCreate(key)
		if fetcher != nil {
			e.fetcher = fetcher
		}

		if e.hasValue && !e.stale {
			v := e.value
			c.mu.Unlock()
			c.metrics.incHits()
			return v, nil
		}

		if e.inFlight {
			ch := make(chan Result, 1)
			e.waiters = append(e.waiters, ch)
			c.mu.Unlock()
			c.metrics.incDedupedReads()

			select {
			case r := <-ch:
				if r.Err != nil {
					return nil, r.Err
				}
				if !r.Stale {
					return r.Value, nil
				}
				// Invalidated while in flight; go around for the refetch.
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		gen := c.beginFetch(e)
		c.mu.Unlock()
		c.metrics.incMisses()

		value, err := fetcher(ctx)
		r, applied := c.completeFetch(e, gen, value, err)
		if !applied {
			// Superseded or evicted mid-flight; the newer state wins.
			continue
		}
		if err != nil {
			return nil, err
		}
		if r.Stale {
			continue
		}
		return value, nil
	}
}

// completeFetch applies a finished fetch. It returns applied=false when the
// fetch was superseded by a newer one or the entry was evicted (and possibly
// recreated), in which case the result is discarded.
func (c *Cache) completeFetch(e *entry, gen uint64, value any, err error) (Result, bool) {
	c.mu.Lock()
	cur, ok := c.entries[e.key.id()]
	if !ok || cur != e || gen != e.fetchGen {
		c.mu.Unlock()
		c.log.Debug("discarding superseded fetch result",
			logger.String("key", e.key.String()),
		)
		return Result{}, false
	}

	e.inFlight = false
	stale := e.staleOnLand
	e.staleOnLand = false
	e.updatedAt = time.Now()

	if err != nil {
		// Errors are not cached as values: the entry stays stale so the
		// next read retries, but no automatic refetch is started to avoid
		// hammering a failing endpoint.
		e.err = err
		e.stale = true
	} else {
		e.value = value
		e.hasValue = true
		e.err = nil
		e.stale = stale
	}

	r := e.result()
	waiters := e.waiters
	e.waiters = nil
	subs := collectSubs(e)

	// A mid-flight invalidation on a subscribed entry refetches right away;
	// plain readers loop on their own.
	if err == nil && stale && len(e.subs) > 0 {
		c.refetchLocked(e)
	}
	if len(e.subs) == 0 {
		c.scheduleGCLocked(e)
	}
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- r
	}
	for _, fn := range subs {
		fn(r)
	}
	return r, true
}

// refetchLocked starts a background fetch using the entry's last fetcher.
// Caller must hold c.mu.
func (c *Cache) refetchLocked(e *entry) {
	if e.inFlight || e.fetcher == nil {
		return
	}
	gen := c.beginFetch(e)
	fetcher := e.fetcher
	go func() {
		value, err := fetcher(context.Background())
		c.completeFetch(e, gen, value, err)
	}()
}

// Invalidate marks every entry whose key starts with prefix as stale.
// Subscribed entries refetch immediately; others lazily on the next read.
// Invalidating an already-stale key is a no-op beyond the marking, so
// duplicate deliveries cannot produce duplicate fetches.
func (c *Cache) Invalidate(prefix Key) {
	c.mu.Lock()
	c.metrics.incInvalidations()
	for _, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		if e.inFlight {
			e.staleOnLand = true
			continue
		}
		e.stale = true
		if len(e.subs) > 0 {
			c.refetchLocked(e)
		}
	}
	c.mu.Unlock()

	c.log.Debug("cache invalidated", logger.String("prefix", prefix.String()))
}

// Write synchronously replaces the cached value for key. The updater
// receives the current value (ok=false when absent) and returns the new
// one. Used for optimistic updates and for seeding related caches after a
// mutation.
func (c *Cache) Write(key Key, updater func(old any, ok bool) any) {
	c.mu.Lock()
	e := c.getOrCreate(key)
	e.value = updater(e.value, e.hasValue)
	e.hasValue = true
	e.err = nil
	e.updatedAt = time.Now()
	r := e.result()
	subs := collectSubs(e)
	c.mu.Unlock()

	for _, fn := range subs {
		fn(r)
	}
}

// Peek returns the cached value without touching staleness or fetching.
func (c *Cache) Peek(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.id()]
	if !ok || !e.hasValue {
		return nil, false
	}
	return e.value, true
}

// Status reports the lifecycle state of the entry for key.
func (c *Cache) Status(key Key) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.id()]
	if !ok {
		return StatusIdle
	}
	return e.status()
}

// Remove evicts the entry for key outright. Readers waiting on an in-flight
// fetch are released and restart against a fresh entry.
func (c *Cache) Remove(key Key) {
	c.mu.Lock()
	waiters := c.evictLocked(key.id())
	c.mu.Unlock()
	releaseWaiters(waiters)
}

// Clear evicts everything. Called on logout.
func (c *Cache) Clear() {
	c.mu.Lock()
	var waiters []chan Result
	for id := range c.entries {
		waiters = append(waiters, c.evictLocked(id)...)
	}
	c.mu.Unlock()
	releaseWaiters(waiters)

	c.log.Info("cache cleared")
}

// evictLocked removes an entry and returns its pending waiters. Caller must
// hold c.mu.
func (c *Cache) evictLocked(id string) []chan Result {
	e, ok := c.entries[id]
	if !ok {
		return nil
	}
	if e.gcTimer != nil {
		e.gcTimer.Stop()
	}
	delete(c.entries, id)
	c.metrics.addEntries(-1)
	waiters := e.waiters
	e.waiters = nil
	return waiters
}

// releaseWaiters unblocks readers of an evicted entry. The stale result
// makes them loop and refetch into a fresh entry.
func releaseWaiters(waiters []chan Result) {
	for _, ch := range waiters {
		ch <- Result{Stale: true}
	}
}

func collectSubs(e *entry) []func(Result) {
	if len(e.subs) == 0 {
		return nil
	}
	subs := make([]func(Result), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	return subs
}

// Subscription represents an active interest in a key. Closing it makes the
// entry eligible for garbage collection once no other subscriber remains.
type Subscription struct {
	c   *Cache
	key Key
	id  int64
}

// Subscribe registers interest in key. The entry is fetched immediately when
// absent or stale, and onUpdate (optional) fires on every applied change:
// fetch completions and synchronous writes.
func (c *Cache) Subscribe(key Key, fetcher Fetcher, onUpdate func(Result)) *Subscription {
	c.mu.Lock()
	e := c.getOrCreate(key)
	if fetcher != nil {
		e.fetcher = fetcher
	}
	if e.gcTimer != nil {
		e.gcTimer.Stop()
		e.gcTimer = nil
	}
	c.nextSub++
	id := c.nextSub
	if onUpdate == nil {
		onUpdate = func(Result) {}
	}
	e.subs[id] = onUpdate
	if !e.hasValue || e.stale {
		c.refetchLocked(e)
	}
	c.mu.Unlock()

	return &Subscription{c: c, key: key, id: id}
}

// Close unregisters the subscriber. It does not cancel an in-flight fetch;
// the result may still serve future subscribers until GC evicts the entry.
func (s *Subscription) Close() {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	e, ok := s.c.entries[s.key.id()]
	if !ok {
		return
	}
	delete(e.subs, s.id)
	if len(e.subs) == 0 {
		s.c.scheduleGCLocked(e)
	}
}

// scheduleGCLocked arms the eviction timer for an unsubscribed entry.
// Caller must hold c.mu.
func (c *Cache) scheduleGCLocked(e *entry) {
	if e.gcTimer != nil {
		e.gcTimer.Stop()
	}
	id := e.key.id()
	e.gcTimer = time.AfterFunc(c.gcDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		cur, ok := c.entries[id]
		if !ok || cur != e || len(cur.subs) > 0 || len(cur.waiters) > 0 {
			return
		}
		if cur.inFlight {
			// Let the fetch land first; try again next cycle.
			c.scheduleGCLocked(cur)
			return
		}
		delete(c.entries, id)
		c.metrics.addEntries(-1)
	})
}

// SetGCDelay changes how long unsubscribed entries linger before eviction.
// Already-armed timers keep their old delay; new ones use the new value.
func (c *Cache) SetGCDelay(delay time.Duration) {
	if delay <= 0 {
		delay = DefaultGCDelay
	}
	c.mu.Lock()
	c.gcDelay = delay
	c.mu.Unlock()
}

// SetRefreshInterval enables the polling fallback: every interval, all
// entries are invalidated so subscribed ones refetch. Zero disables it.
// The event bridge toggles this while the push channel is down; the cache
// does not care which trigger fired.
func (c *Cache) SetRefreshInterval(interval time.Duration) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if c.refreshStop != nil {
		close(c.refreshStop)
		c.refreshStop = nil
	}
	if interval <= 0 {
		return
	}

	stop := make(chan struct{})
	c.refreshStop = stop
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Invalidate(Key{})
			case <-stop:
				return
			}
		}
	}()

	c.log.Info("cache polling fallback enabled",
		logger.Duration("interval", interval),
	)
}
