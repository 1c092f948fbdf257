// Package badgerdb implements block storage inside a badger key value store,
// keyed by big endian block number so iteration runs in chain order.
package badgerdb

import (
	"encoding/binary"
	"encoding/json"

	"github.com/aseio6668/Sigmos/foundation/sigel/ledger"
	"github.com/dgraph-io/badger/v2"
)

// BadgerDB represents the storage implementation for reading and storing
// blocks inside a badger database. This implements the ledger.Serializer
// interface.
type BadgerDB struct {
	db *badger.DB
}

// New constructs a BadgerDB value for use, opening the database under the
// specified directory.
func New(dbPath string) (*BadgerDB, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerDB{db: db}, nil
}

// Close releases the underlying database.
func (b *BadgerDB) Close() error {
	return b.db.Close()
}

// Write stores the specified block data under its block number.
func (b *BadgerDB) Write(blockData ledger.BlockData) error {
	data, err := json.Marshal(blockData)
	if err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blockKey(blockData.Header.Number), data)
	})
}

// GetBlock retrieves the block stored under the specified number.
func (b *BadgerDB) GetBlock(num uint64) (ledger.BlockData, error) {
	var blockData ledger.BlockData

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockKey(num))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &blockData)
		})
	})
	if err != nil {
		return ledger.BlockData{}, err
	}

	return blockData, nil
}

// Replace swaps the stored chain for the given blocks. Blocks overwrite the
// existing keys in chain order and stale higher-numbered keys are removed
// afterward. An interrupted swap leaves a seam that startup re-validation
// refuses to load, never an empty store.
func (b *BadgerDB) Replace(blocks []ledger.BlockData) error {
	for _, blockData := range blocks {
		if err := b.Write(blockData); err != nil {
			return err
		}
	}

	return b.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(blockKey(uint64(len(blocks)))); it.Valid(); it.Next() {
			if err := txn.Delete(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}
		return nil
	})
}

// ForEach returns an iterator to walk through all the stored blocks starting
// with the genesis block.
func (b *BadgerDB) ForEach() ledger.Iterator {
	return &badgerIterator{storage: b}
}

func blockKey(num uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, num)
	return key
}

// =============================================================================

// badgerIterator represents the iteration implementation for walking through
// and reading blocks in the database. This implements the ledger.Iterator
// interface.
type badgerIterator struct {
	storage *BadgerDB
	current uint64
	started bool
	eoc     bool
}

// Next retrieves the next block from the database.
func (bi *badgerIterator) Next() (ledger.BlockData, error) {
	if bi.eoc {
		return ledger.BlockData{}, nil
	}

	if bi.started {
		bi.current++
	}
	bi.started = true

	blockData, err := bi.storage.GetBlock(bi.current)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			bi.eoc = true
			return ledger.BlockData{}, nil
		}
		return ledger.BlockData{}, err
	}

	return blockData, nil
}

// Done returns the end of chain value.
func (bi *badgerIterator) Done() bool {
	return bi.eoc
}
