// Package disk implements block storage as one JSON document per block on
// the local file system.
package disk

import (
	"encoding/json"
	"fmt"
	"os"
	"path"

	"github.com/aseio6668/Sigmos/foundation/sigel/ledger"
)

// Disk represents the storage implementation for reading and storing blocks
// in their own separate files on disk. This implements the ledger.Serializer
// interface.
type Disk struct {
	dbPath string
}

// New constructs a Disk value for use, creating the storage directory if it
// does not exist.
func New(dbPath string) (*Disk, error) {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, err
	}

	return &Disk{dbPath: dbPath}, nil
}

// Close in this implementation has nothing to do since a new file is written
// for each now block and then immediately closed.
func (d *Disk) Close() error {
	return nil
}

// Write takes the specified block data and stores it on disk in a file
// labeled with the block number.
func (d *Disk) Write(blockData ledger.BlockData) error {
	data, err := json.MarshalIndent(blockData, "", "  ")
	if err != nil {
		return err
	}

	f, err := os.OpenFile(d.getPath(blockData.Header.Number), os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return err
	}

	return nil
}

// GetBlock searches the disk for the block with the specified number.
func (d *Disk) GetBlock(num uint64) (ledger.BlockData, error) {
	f, err := os.OpenFile(d.getPath(num), os.O_RDONLY, 0600)
	if err != nil {
		return ledger.BlockData{}, err
	}
	defer f.Close()

	var blockData ledger.BlockData
	if err := json.NewDecoder(f).Decode(&blockData); err != nil {
		return ledger.BlockData{}, err
	}

	return blockData, nil
}

// Replace swaps the stored chain for the given blocks. The new chain is
// fully written into a scratch directory first and moved into place with
// renames, so a failure at any point leaves the old chain on disk.
func (d *Disk) Replace(blocks []ledger.BlockData) error {
	scratch := d.dbPath + ".rewrite"
	if err := os.RemoveAll(scratch); err != nil {
		return err
	}
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return err
	}

	for _, blockData := range blocks {
		data, err := json.MarshalIndent(blockData, "", "  ")
		if err != nil {
			return err
		}
		name := path.Join(scratch, fmt.Sprintf("%09d.json", blockData.Header.Number))
		if err := os.WriteFile(name, data, 0600); err != nil {
			return err
		}
	}

	old := d.dbPath + ".old"
	if err := os.RemoveAll(old); err != nil {
		return err
	}
	if err := os.Rename(d.dbPath, old); err != nil {
		return err
	}
	if err := os.Rename(scratch, d.dbPath); err != nil {
		os.Rename(old, d.dbPath)
		return err
	}

	return os.RemoveAll(old)
}

// ForEach returns an iterator to walk through all the blocks on disk starting
// with the genesis block.
func (d *Disk) ForEach() ledger.Iterator {
	return &diskIterator{storage: d}
}

// getPath forms the path to the specified block.
func (d *Disk) getPath(blockNum uint64) string {
	name := fmt.Sprintf("%09d.json", blockNum)
	return path.Join(d.dbPath, name)
}

// =============================================================================

// diskIterator represents the iteration implementation for walking through
// and reading blocks on disk. This implements the ledger.Iterator interface.
type diskIterator struct {
	storage *Disk
	current uint64
	started bool
	eoc     bool
}

// Next retrieves the next block from disk.
func (di *diskIterator) Next() (ledger.BlockData, error) {
	if di.eoc {
		return ledger.BlockData{}, nil
	}

	if di.started {
		di.current++
	}
	di.started = true

	blockData, err := di.storage.GetBlock(di.current)
	if err != nil {
		if os.IsNotExist(err) {
			di.eoc = true
			return ledger.BlockData{}, nil
		}
		return ledger.BlockData{}, err
	}

	return blockData, nil
}

// Done returns the end of chain value.
func (di *diskIterator) Done() bool {
	return di.eoc
}
