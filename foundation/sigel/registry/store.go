package registry

import (
	"encoding/json"
	"sync"

	"github.com/aseio6668/Sigmos/foundation/sigel/identity"
	"github.com/dgraph-io/badger/v2"
)

// MemoryStore keeps identity records in memory, primarily to support
// testing. This implements the Store interface.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]identity.Record
}

// NewMemoryStore constructs an empty in-memory identity store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]identity.Record{}}
}

// Save stores the identity record.
func (m *MemoryStore) Save(rec identity.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[rec.ID] = rec
	return nil
}

// All returns every stored identity record.
func (m *MemoryStore) All() ([]identity.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	recs := make([]identity.Record, 0, len(m.records))
	for _, rec := range m.records {
		recs = append(recs, rec)
	}
	return recs, nil
}

// Close in this implementation has nothing to do.
func (m *MemoryStore) Close() error {
	return nil
}

// =============================================================================

// BadgerStore persists identity records inside a badger database. This
// implements the Store interface.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens an identity store under the specified directory.
func NewBadgerStore(dbPath string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerStore{db: db}, nil
}

// Save stores the identity record under its id.
func (b *BadgerStore) Save(rec identity.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(rec.ID), data)
	})
}

// All returns every stored identity record.
func (b *BadgerStore) All() ([]identity.Record, error) {
	var recs []identity.Record

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec identity.Record
				if err := json.Unmarshal(val, &rec); err != nil {
					return err
				}
				recs = append(recs, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return recs, nil
}

// Close releases the underlying database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}
