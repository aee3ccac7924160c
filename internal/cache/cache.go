// Package cache provides a small generic LRU cache with expiry, used to
// memoize per-user analytics between ledger changes.
package cache

import (
	"context"
	"log/slog"
	"time"
)

// Cache defines a generic keyed cache
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V)
	Delete(key K)
	Len() int
}

// Cleaner is implemented by caches that can drop expired entries
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically removes expired entries from registered caches
type Janitor struct {
	caches []Cleaner
	done   chan struct{}
}

func NewJanitor(caches ...Cleaner) *Janitor {
	return &Janitor{caches: caches, done: make(chan struct{})}
}

// Run cleans every interval until ctx is cancelled. It closes Done on return.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	defer close(j.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := j.sweep()
			if removed > 0 {
				slog.DebugContext(ctx, "Expired cache entries removed", "component", "cache", "removed", removed)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (j *Janitor) sweep() int {
	total := 0
	for _, c := range j.caches {
		total += c.CleanExpired()
	}
	return total
}

// Done is closed once Run has returned.
func (j *Janitor) Done() <-chan struct{} {
	return j.done
}
