// Package registry memoizes compiled permission tables keyed by the inputs
// that determine them: the ordered source identities, the resolver chain ID
// and the naming function ID.
package registry

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/AllianceSoftware/csvpermissions-go/csvperm"
)

// Key identifies one compiled table.
type Key struct {
	Sources []string // ordered source identities
	ChainID string   // resolver chain identity
	NamerID string   // permission naming function identity
}

// String canonicalizes the key. Field and record separators are control
// characters so path-like identities cannot collide.
func (k Key) String() string {
	return strings.Join(k.Sources, "\x1f") + "\x1e" + k.ChainID + "\x1e" + k.NamerID
}

// BuildFunc compiles a table. It must be a pure function of the key.
type BuildFunc func(ctx context.Context) (*csvperm.Table, error)

// Registry caches built tables. Concurrent GetOrBuild calls for the same key
// are collapsed into a single build; build failures propagate to every
// waiting caller and are never cached.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*csvperm.Table
	group  singleflight.Group
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{tables: make(map[string]*csvperm.Table)}
}

var shared = New()

// Shared returns the process-wide registry used when a host does not supply
// its own. Hosts that rebuild backends per request share builds through it.
func Shared() *Registry {
	return shared
}

// GetOrBuild returns the cached table for key, building it with build on a
// miss. The returned table is always fully constructed.
func (r *Registry) GetOrBuild(ctx context.Context, key Key, build BuildFunc) (*csvperm.Table, error) {
	id := key.String()

	r.mu.RLock()
	table, ok := r.tables[id]
	r.mu.RUnlock()
	if ok {
		return table, nil
	}

	value, err, _ := r.group.Do(id, func() (any, error) {
		r.mu.RLock()
		table, ok := r.tables[id]
		r.mu.RUnlock()
		if ok {
			return table, nil
		}

		table, err := build(ctx)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.tables[id] = table
		r.mu.Unlock()
		return table, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*csvperm.Table), nil
}

// Invalidate drops the cached table for key, if any. A subsequent
// GetOrBuild rebuilds it.
func (r *Registry) Invalidate(key Key) {
	r.mu.Lock()
	delete(r.tables, key.String())
	r.mu.Unlock()
}

// Reset drops every cached table.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.tables = make(map[string]*csvperm.Table)
	r.mu.Unlock()
}

// Len reports the number of cached tables.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables)
}
