package core

import (
	"context"
	"strings"
	"sync"

	"targetdb/pkg/domain"
)

// Resolver maps free-form gene identifiers (ID, symbol, alias, any case)
// to canonical genes. Hits are cached per organism; the cache drops on
// annotation import since new rows can rebind aliases.
type Resolver struct {
	store domain.PersistentStore

	mu    sync.RWMutex
	cache map[resolverKey]domain.Gene
}

type resolverKey struct {
	organism   string
	identifier string
}

// NewResolver builds a resolver over the store.
func NewResolver(store domain.PersistentStore) *Resolver {
	return &Resolver{store: store, cache: make(map[resolverKey]domain.Gene)}
}

// Resolve returns the canonical gene for an identifier, or an
// UnresolvedIdentifierError when nothing in the organism matches.
func (r *Resolver) Resolve(ctx context.Context, organism, identifier string) (domain.Gene, error) {
	key := resolverKey{organism, strings.ToLower(strings.TrimSpace(identifier))}
	if key.identifier == "" {
		return domain.Gene{}, domain.UnresolvedIdentifierError{Identifier: identifier, Organism: organism}
	}

	r.mu.RLock()
	g, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return g, nil
	}

	var found bool
	err := r.store.View(ctx, func(view domain.StoreView) error {
		if g, found = view.Gene(organism, identifier); found {
			return nil
		}
		g, found = view.GeneByAlias(organism, identifier)
		return nil
	})
	if err != nil {
		return domain.Gene{}, err
	}
	if !found {
		return domain.Gene{}, domain.UnresolvedIdentifierError{Identifier: identifier, Organism: organism}
	}

	r.mu.Lock()
	r.cache[key] = g
	r.mu.Unlock()
	return g, nil
}

// Invalidate clears the cache. Called after every annotation import.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.cache = make(map[resolverKey]domain.Gene)
	r.mu.Unlock()
}
