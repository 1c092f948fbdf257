// Package memory implements block storage in memory, primarily to support
// testing.
package memory

import (
	"fmt"
	"sync"

	"github.com/aseio6668/Sigmos/foundation/sigel/ledger"
)

// Memory represents the storage implementation for keeping blocks in memory.
// This implements the ledger.Serializer interface.
type Memory struct {
	mu     sync.RWMutex
	blocks []ledger.BlockData
}

// New constructs an empty in-memory block store.
func New() *Memory {
	return &Memory{}
}

// Close in this implementation has nothing to do.
func (m *Memory) Close() error {
	return nil
}

// Write appends the specified block data to the store.
func (m *Memory) Write(blockData ledger.BlockData) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if blockData.Header.Number != uint64(len(m.blocks)) {
		return fmt.Errorf("block %d written out of order, store holds %d blocks", blockData.Header.Number, len(m.blocks))
	}
	m.blocks = append(m.blocks, blockData)

	return nil
}

// GetBlock retrieves the block stored under the specified number.
func (m *Memory) GetBlock(num uint64) (ledger.BlockData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if num >= uint64(len(m.blocks)) {
		return ledger.BlockData{}, fmt.Errorf("block %d does not exist", num)
	}

	return m.blocks[num], nil
}

// Replace swaps the stored chain for the given blocks in one step.
func (m *Memory) Replace(blocks []ledger.BlockData) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks = append([]ledger.BlockData(nil), blocks...)

	return nil
}

// ForEach returns an iterator to walk through all the stored blocks starting
// with the genesis block.
func (m *Memory) ForEach() ledger.Iterator {
	return &memoryIterator{storage: m}
}

// =============================================================================

// memoryIterator represents the iteration implementation for walking through
// the blocks held in memory. This implements the ledger.Iterator interface.
type memoryIterator struct {
	storage *Memory
	current uint64
	started bool
	eoc     bool
}

// Next retrieves the next block from the store.
func (mi *memoryIterator) Next() (ledger.BlockData, error) {
	if mi.eoc {
		return ledger.BlockData{}, nil
	}

	if mi.started {
		mi.current++
	}
	mi.started = true

	mi.storage.mu.RLock()
	defer mi.storage.mu.RUnlock()

	if mi.current >= uint64(len(mi.storage.blocks)) {
		mi.eoc = true
		return ledger.BlockData{}, nil
	}

	return mi.storage.blocks[mi.current], nil
}

// Done returns the end of chain value.
func (mi *memoryIterator) Done() bool {
	return mi.eoc
}
