package taxonomy

import (
	"context"
	"sync"

	"ilochat/internal/logging"
)

// Repository holds one taxonomy collection with isolated loading state.
// Loads are pull-based: Load runs the fetch and applies the result unless
// the repository was invalidated mid-flight (backend re-base), in which
// case the stale result is discarded. A failed or malformed load resolves
// to an empty collection; read-path failures never reach the conversation,
// they are only logged.
type Repository[T any] struct {
	mu      sync.Mutex
	name    string
	items   []T
	loading bool
	epoch   uint64
}

// NewRepository creates an empty repository. name is used for log lines.
func NewRepository[T any](name string) *Repository[T] {
	return &Repository[T]{name: name}
}

// Load runs fetch and installs its result. The loading flag is set for the
// whole call and cleared on every exit path. If Invalidate was called
// after the load began, the arriving result is dropped so a newer cycle's
// data is never overwritten by a stale one.
func (r *Repository[T]) Load(ctx context.Context, fetch func(context.Context) ([]T, error)) []T {
	r.mu.Lock()
	token := r.epoch
	r.loading = true
	r.mu.Unlock()

	items, err := fetch(ctx)
	if err != nil {
		logging.Get(logging.CategoryTaxonomy).Warn("%s load failed: %v", r.name, err)
		items = nil
	}
	if items == nil {
		items = []T{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading = false
	if token != r.epoch {
		// A re-base superseded this load cycle; keep whatever the newer
		// cycle installed (or will install).
		logging.TaxonomyDebug("%s: discarding stale load result (epoch %d != %d)", r.name, token, r.epoch)
		return r.items
	}
	r.items = items
	logging.TaxonomyDebug("%s: loaded %d items", r.name, len(items))
	return items
}

// Invalidate marks any in-flight load as stale and clears the current
// items. Called when the backend base address changes.
func (r *Repository[T]) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epoch++
	r.items = nil
}

// Items returns the current collection. Nil before the first load.
func (r *Repository[T]) Items() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items
}

// Loading reports whether a load is in flight.
func (r *Repository[T]) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}
