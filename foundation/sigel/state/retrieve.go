package state

import (
	"math/big"

	"github.com/aseio6668/Sigmos/foundation/sigel/identity"
	"github.com/aseio6668/Sigmos/foundation/sigel/ledger"
	"github.com/aseio6668/Sigmos/foundation/sigel/transfer"
)

// QueryLastest represents to query the latest block in the chain.
const QueryLastest = ledger.QueryLastest

// QueryBlocksByNumber returns the blocks numbered from through to inclusive.
func (s *State) QueryBlocksByNumber(from uint64, to uint64) []ledger.Block {
	if from == QueryLastest {
		tip := s.ledger.Height()
		from, to = tip, tip
	}
	return s.ledger.Blocks(from, to)
}

// QueryBlocksFrom returns serialized block data from the given number to the
// tip, for chain responses on the wire.
func (s *State) QueryBlocksFrom(from uint64) []ledger.BlockData {
	blocks := s.ledger.Blocks(from, QueryLastest)

	blockData := make([]ledger.BlockData, len(blocks))
	for i, block := range blocks {
		blockData[i] = ledger.NewBlockData(block)
	}
	return blockData
}

// QueryIdentities returns every identity record this node knows about.
func (s *State) QueryIdentities() []identity.Record {
	return s.registry.Copy()
}

// QueryIdentity returns the identity record with the given id.
func (s *State) QueryIdentity(id string) (identity.Record, error) {
	return s.registry.Query(id)
}

// QueryPendingTransfers returns a copy of the pending transfer pool, oldest
// first.
func (s *State) QueryPendingTransfers() []transfer.SignedTransfer {
	return s.pool.PickOldest(-1)
}

// CumulativeDifficulty returns the total work embedded in the chain.
func (s *State) CumulativeDifficulty() (*big.Int, error) {
	return s.ledger.CumulativeDifficulty()
}

// NextDifficulty returns the base target the next block must declare.
func (s *State) NextDifficulty() (*big.Int, error) {
	return s.ledger.NextDifficulty()
}
