// Package registry maintains the persisted table of every identity record
// the node knows about, its own and those learned from peers.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aseio6668/Sigmos/foundation/sigel/identity"
)

// Store interface represents the behavior required to persist identity
// records.
type Store interface {
	Save(rec identity.Record) error
	All() ([]identity.Record, error)
	Close() error
}

// Registry manages a set of identity records keyed by id. Records only ever
// move forward, an update with fewer training iterations than the record we
// hold is dropped.
type Registry struct {
	mu      sync.RWMutex
	store   Store
	records map[string]identity.Record
	byName  map[string]string
}

// New constructs a registry, loading any persisted records.
func New(store Store) (*Registry, error) {
	recs, err := store.All()
	if err != nil {
		return nil, fmt.Errorf("loading identity records: %w", err)
	}

	r := Registry{
		store:   store,
		records: make(map[string]identity.Record, len(recs)),
		byName:  make(map[string]string, len(recs)),
	}

	for _, rec := range recs {
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("persisted identity %s: %w", rec.ID, err)
		}
		r.records[rec.ID] = rec
		r.byName[rec.Name] = rec.ID
	}

	return &r, nil
}

// Close releases the underlying store.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.store.Close()
}

// Create mints a brand new identity record under the given name and signing
// address. Names are unique within a registry.
func (r *Registry) Create(name string, address string) (identity.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return identity.Record{}, fmt.Errorf("identity named %q already exists", name)
	}

	rec := identity.New(name, address)
	if err := rec.Validate(); err != nil {
		return identity.Record{}, err
	}

	if err := r.store.Save(rec); err != nil {
		return identity.Record{}, fmt.Errorf("persisting identity %s: %w", rec.ID, err)
	}

	r.records[rec.ID] = rec
	r.byName[rec.Name] = rec.ID

	return rec, nil
}

// Upsert applies an identity record learned from a peer. It reports whether
// the record was applied. Records are applied when unknown, or when they
// carry strictly more training iterations than the one we hold.
func (r *Registry) Upsert(rec identity.Record) (bool, error) {
	if err := rec.Validate(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.byName[rec.Name]; exists && id != rec.ID {
		return false, fmt.Errorf("identity named %q already exists under a different id", rec.Name)
	}

	if cur, exists := r.records[rec.ID]; exists {
		if rec.Name != cur.Name {
			return false, fmt.Errorf("identity %s cannot change name from %q to %q", rec.ID, cur.Name, rec.Name)
		}
		if rec.Address != cur.Address {
			return false, fmt.Errorf("identity %s cannot change address", rec.ID)
		}
		if rec.TrainingIterations <= cur.TrainingIterations {
			return false, nil
		}
	}

	if err := r.store.Save(rec); err != nil {
		return false, fmt.Errorf("persisting identity %s: %w", rec.ID, err)
	}

	r.records[rec.ID] = rec
	r.byName[rec.Name] = rec.ID

	return true, nil
}

// Query retrieves the identity record with the given id.
func (r *Registry) Query(id string) (identity.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.records[id]
	if !exists {
		return identity.Record{}, fmt.Errorf("identity %s not found", id)
	}

	return rec, nil
}

// QueryByName retrieves the identity record with the given name.
func (r *Registry) QueryByName(name string) (identity.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byName[name]
	if !exists {
		return identity.Record{}, fmt.Errorf("identity named %q not found", name)
	}

	return r.records[id], nil
}

// Copy returns every known identity record ordered by name.
func (r *Registry) Copy() []identity.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	recs := make([]identity.Record, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Name < recs[j].Name })

	return recs
}

// Count returns the number of known identity records.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.records)
}
