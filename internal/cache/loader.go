package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// FetchFunc produces a fresh value for a Loader.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Loader caches the result of one fetch for a fixed TTL. It is safe for
// concurrent use; concurrent refreshes share a single fetch.
//
// A value is reused while now < fetchedAt+ttl. A failed refresh keeps the
// previous value, and Get returns it together with the error. With a retry
// backoff set, Gets within the backoff after a failure return that same
// result without fetching again; otherwise every Get retries.
type Loader[T any] struct {
	fetch FetchFunc[T]
	ttl   time.Duration
	retry time.Duration
	now   func() time.Time
	group singleflight.Group

	mu         sync.RWMutex
	value      T
	loaded     bool
	fetchedAt  time.Time
	generation uint64
	epoch      uint64
	stale      bool
	lastErr    error
	failedAt   time.Time
}

// LoaderStatus describes the state of a Loader.
type LoaderStatus struct {
	Loaded     bool
	FetchedAt  time.Time
	ExpiresAt  time.Time
	Generation uint64
	LastError  error
}

// NewLoader returns a loader that calls fetch at most once per ttl.
func NewLoader[T any](ttl time.Duration, fetch FetchFunc[T]) *Loader[T] {
	return &Loader[T]{
		fetch: fetch,
		ttl:   ttl,
		now:   time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (l *Loader[T]) WithClock(now func() time.Time) *Loader[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
	return l
}

// WithRetryBackoff sets how long a failed refresh is reported before the
// source is asked again. Zero retries on every Get.
func (l *Loader[T]) WithRetryBackoff(d time.Duration) *Loader[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.retry = d
	return l
}

// TTL returns the configured time to live.
func (l *Loader[T]) TTL() time.Duration {
	return l.ttl
}

func (l *Loader[T]) freshLocked() bool {
	return l.loaded && !l.stale && l.now().Before(l.fetchedAt.Add(l.ttl))
}

// backingOffLocked reports whether the last refresh failed less than the
// retry backoff ago.
func (l *Loader[T]) backingOffLocked() bool {
	return l.lastErr != nil && l.retry > 0 && l.now().Before(l.failedAt.Add(l.retry))
}

// Get returns the cached value, fetching a new one when it has expired or
// was invalidated.
func (l *Loader[T]) Get(ctx context.Context) (T, error) {
	l.mu.RLock()
	if l.freshLocked() {
		v := l.value
		l.mu.RUnlock()
		return v, nil
	}
	if l.backingOffLocked() {
		v, err := l.value, l.lastErr
		l.mu.RUnlock()
		return v, err
	}
	l.mu.RUnlock()

	v, err, _ := l.group.Do("load", func() (any, error) {
		return l.refresh(ctx)
	})
	val, _ := v.(T)
	return val, err
}

func (l *Loader[T]) refresh(ctx context.Context) (T, error) {
	l.mu.RLock()
	if l.freshLocked() {
		v := l.value
		l.mu.RUnlock()
		return v, nil
	}
	epoch := l.epoch
	l.mu.RUnlock()

	v, err := l.fetch(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.lastErr = err
		l.failedAt = l.now()
		return l.value, err
	}
	l.value = v
	l.loaded = true
	l.fetchedAt = l.now()
	l.generation++
	l.lastErr = nil
	// An Invalidate that raced with this fetch still forces the next refetch.
	l.stale = l.epoch != epoch
	return v, nil
}

// Invalidate makes the next Get fetch regardless of the TTL.
func (l *Loader[T]) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.epoch++
	l.stale = true
	l.failedAt = time.Time{}
}

// Snapshot returns the current value without fetching.
func (l *Loader[T]) Snapshot() (T, LoaderStatus) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	st := LoaderStatus{
		Loaded:     l.loaded,
		FetchedAt:  l.fetchedAt,
		Generation: l.generation,
		LastError:  l.lastErr,
	}
	if l.loaded {
		st.ExpiresAt = l.fetchedAt.Add(l.ttl)
	}
	return l.value, st
}
