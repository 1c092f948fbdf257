// Package ledger maintains the validated chain of knowledge transfer blocks
// and is the single authority over what the chain contains.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"sync"

	"github.com/aseio6668/Sigmos/foundation/sigel/genesis"
	"github.com/aseio6668/Sigmos/foundation/sigel/identity"
)

// QueryLastest represents to query the latest block in the chain.
const QueryLastest = ^uint64(0) >> 1

// EventHandler defines a function that is called when events occur in the
// processing of validating blocks.
type EventHandler func(v string, args ...any)

// IdentityReader provides the identity lookups block validation needs.
type IdentityReader interface {
	Query(id string) (identity.Record, error)
}

// Config represents the configuration required to start the ledger.
type Config struct {
	Genesis    genesis.Genesis
	Serializer Serializer
	Identities IdentityReader
	EvHandler  EventHandler
}

// Ledger manages the chain of blocks. All mutation is serialized behind a
// single mutex so validation always runs against a settled tip.
type Ledger struct {
	mu          sync.RWMutex
	genesis     genesis.Genesis
	serializer  Serializer
	identities  IdentityReader
	evHandler   EventHandler
	blocks      []Block
	transferIdx map[string]uint64
}

// New constructs a ledger, loading and re-validating any persisted chain. A
// fresh store is seeded with the genesis block derived from the genesis file.
func New(cfg Config) (*Ledger, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	genesisBlock, err := GenesisBlock(cfg.Genesis)
	if err != nil {
		return nil, err
	}

	l := Ledger{
		genesis:     cfg.Genesis,
		serializer:  cfg.Serializer,
		identities:  cfg.Identities,
		evHandler:   ev,
		blocks:      []Block{genesisBlock},
		transferIdx: map[string]uint64{},
	}

	var loaded []Block
	iter := cfg.Serializer.ForEach()
	for blockData, err := iter.Next(); !iter.Done(); blockData, err = iter.Next() {
		if err != nil {
			return nil, fmt.Errorf("reading persisted chain: %w", err)
		}
		block, err := ToBlock(blockData)
		if err != nil {
			return nil, fmt.Errorf("reading persisted chain: %w", err)
		}
		loaded = append(loaded, block)
	}

	if len(loaded) == 0 {
		if err := cfg.Serializer.Write(NewBlockData(genesisBlock)); err != nil {
			return nil, fmt.Errorf("%w: persisting genesis block: %v", ErrPersistenceFailure, err)
		}
		return &l, nil
	}

	if loaded[0].Hash() != genesisBlock.Hash() {
		return nil, errors.New("persisted chain was built on a different genesis block")
	}

	for _, block := range loaded[1:] {
		if err := validateNextBlock(l.genesis, l.blocks, l.transferIdx, l.identities, block, ev); err != nil {
			return nil, fmt.Errorf("re-validating persisted block %d: %w", block.Header.Number, err)
		}
		l.commit(block)
	}

	ev("ledger: loaded %d blocks from storage, tip %d", len(loaded), l.blocks[len(l.blocks)-1].Header.Number)

	return &l, nil
}

// Close releases the underlying block storage.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.serializer.Close()
}

// Append validates a block against the current tip and, when it holds,
// persists it and extends the chain.
func (l *Ledger) Append(block Block) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := validateNextBlock(l.genesis, l.blocks, l.transferIdx, l.identities, block, l.evHandler); err != nil {
		return err
	}

	if err := l.serializer.Write(NewBlockData(block)); err != nil {
		return fmt.Errorf("%w: persisting block %d: %v", ErrPersistenceFailure, block.Header.Number, err)
	}

	l.commit(block)
	l.evHandler("ledger: appended block %d with %d transfers", block.Header.Number, len(block.Trans))

	return nil
}

// ReplaceIfBetter validates a complete candidate chain from genesis and
// adopts it when its cumulative work strictly exceeds the current chain's.
// Ties keep the chain we already have. It reports whether adoption happened.
func (l *Ledger) ReplaceIfBetter(candidate []Block) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(candidate) == 0 {
		return false, errors.New("empty candidate chain")
	}
	if candidate[0].Hash() != l.blocks[0].Hash() {
		return false, errors.New("candidate chain was built on a different genesis block")
	}

	chain := []Block{candidate[0]}
	idx := map[string]uint64{}
	for _, block := range candidate[1:] {
		if err := validateNextBlock(l.genesis, chain, idx, l.identities, block, l.evHandler); err != nil {
			return false, fmt.Errorf("candidate block %d: %w", block.Header.Number, err)
		}
		chain = append(chain, block)
		indexTransfers(idx, block)
	}

	candWork, err := ChainWork(chain)
	if err != nil {
		return false, err
	}
	curWork, err := ChainWork(l.blocks)
	if err != nil {
		return false, err
	}

	if candWork.Cmp(curWork) <= 0 {
		l.evHandler("ledger: candidate chain of %d blocks does not exceed current work, keeping ours", len(chain))
		return false, nil
	}

	// Storage swaps first. The in-memory chain only advances once the new
	// chain is durable, and a failed swap leaves the old chain reloadable.
	blockData := make([]BlockData, len(chain))
	for i, block := range chain {
		blockData[i] = NewBlockData(block)
	}
	if err := l.serializer.Replace(blockData); err != nil {
		return false, fmt.Errorf("%w: rewriting chain storage: %v", ErrPersistenceFailure, err)
	}

	l.blocks = chain
	l.transferIdx = idx
	l.evHandler("ledger: adopted candidate chain, new tip %d", chain[len(chain)-1].Header.Number)

	return true, nil
}

// Tip returns the latest block in the chain.
func (l *Ledger) Tip() Block {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.blocks[len(l.blocks)-1]
}

// Height returns the block number of the current tip.
func (l *Ledger) Height() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.blocks[len(l.blocks)-1].Header.Number
}

// Genesis returns the chain parameters the ledger was started with.
func (l *Ledger) Genesis() genesis.Genesis {
	return l.genesis
}

// Blocks returns the blocks numbered from through to inclusive. Use
// QueryLastest for to when the caller wants everything from a point on.
func (l *Ledger) Blocks(from uint64, to uint64) []Block {
	l.mu.RLock()
	defer l.mu.RUnlock()

	tip := l.blocks[len(l.blocks)-1].Header.Number
	if to > tip {
		to = tip
	}
	if from > to {
		return nil
	}

	blocks := make([]Block, 0, to-from+1)
	blocks = append(blocks, l.blocks[from:to+1]...)

	return blocks
}

// HasTransfer reports whether a transfer with the given content identity is
// already embedded anywhere in the chain.
func (l *Ledger) HasTransfer(contentID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, exists := l.transferIdx[contentID]
	return exists
}

// TransferBlock returns the number of the block holding the transfer with
// the given content identity.
func (l *Ledger) TransferBlock(contentID string) (uint64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	number, exists := l.transferIdx[contentID]
	return number, exists
}

// CumulativeDifficulty returns the total work embedded in the chain.
func (l *Ledger) CumulativeDifficulty() (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return ChainWork(l.blocks)
}

// NextDifficulty returns the base target the next block must declare.
func (l *Ledger) NextDifficulty() (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return nextTarget(l.genesis, l.blocks)
}

// commit extends the in-memory chain. Callers hold the write lock and have
// already validated and persisted the block.
func (l *Ledger) commit(block Block) {
	l.blocks = append(l.blocks, block)
	indexTransfers(l.transferIdx, block)
}

// =============================================================================

func indexTransfers(idx map[string]uint64, block Block) {
	for _, st := range block.Trans {
		idx[st.ContentID()] = block.Header.Number
	}
}

// validateNextBlock runs the full ordered check list a block must pass to
// extend the given chain. The checks are pure over their inputs so the same
// function serves live appends, startup re-validation and candidate chains.
func validateNextBlock(g genesis.Genesis, blocks []Block, idx map[string]uint64, ids IdentityReader, block Block, ev EventHandler) error {
	prev := blocks[len(blocks)-1]

	if block.Header.Number != prev.Header.Number+1 {
		return fmt.Errorf("%w: got %d, chain is at %d", ErrStaleIndex, block.Header.Number, prev.Header.Number)
	}

	if block.Header.PrevBlockHash != prev.Hash() {
		return fmt.Errorf("%w: block %d links to %s", ErrHashMismatch, block.Header.Number, block.Header.PrevBlockHash)
	}

	if block.Header.TimeStamp < prev.Header.TimeStamp {
		return fmt.Errorf("%w: block %d at %d, parent at %d", ErrNonMonotonicTimestamp, block.Header.Number, block.Header.TimeStamp, prev.Header.TimeStamp)
	}

	score := block.Header.MinerScore
	if score < 0 || score > MaxMinerScore || math.IsNaN(score) || math.IsInf(score, 0) {
		return fmt.Errorf("%w: unusable miner score %f", ErrDifficultyNotMet, score)
	}

	expected, err := nextTarget(g, blocks)
	if err != nil {
		return err
	}
	declared, err := ParseTarget(block.Header.Difficulty)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrDifficultyNotMet, err)
	}
	if declared.Cmp(expected) != 0 {
		return fmt.Errorf("%w: block %d declares target %s, schedule requires %s", ErrDifficultyNotMet, block.Header.Number, FormatTarget(declared), FormatTarget(expected))
	}

	effective := EffectiveTarget(declared, g.ConsciousnessWeight, block.Header.MinerScore)
	if !HashMeetsTarget(block.Hash(), effective) {
		return fmt.Errorf("%w: block %d hash %s above effective target", ErrDifficultyNotMet, block.Header.Number, block.Hash())
	}

	if len(block.Trans) > int(g.TransPerBlock) {
		return fmt.Errorf("%w: block %d carries %d transfers, limit is %d", ErrInvalidTransaction, block.Header.Number, len(block.Trans), g.TransPerBlock)
	}

	seen := make(map[string]bool, len(block.Trans))
	for _, st := range block.Trans {
		if err := st.Validate(); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidTransaction, err)
		}

		contentID := st.ContentID()
		if seen[contentID] {
			return fmt.Errorf("%w: transfer %s repeated within block %d", ErrInvalidTransaction, contentID, block.Header.Number)
		}
		if number, exists := idx[contentID]; exists {
			return fmt.Errorf("%w: transfer %s already embedded in block %d", ErrInvalidTransaction, contentID, number)
		}
		seen[contentID] = true

		from, err := ids.Query(st.FromID)
		if err != nil {
			return fmt.Errorf("%w: unknown sender %s", ErrInvalidTransaction, st.FromID)
		}
		if _, err := ids.Query(st.ToID); err != nil {
			return fmt.Errorf("%w: unknown recipient %s", ErrInvalidTransaction, st.ToID)
		}

		address, err := st.FromAddress()
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidTransaction, err)
		}
		if address != from.Address {
			return fmt.Errorf("%w: transfer %s not signed by %s", ErrInvalidTransaction, contentID, from.String())
		}
	}

	ev("ledger: block %d passed validation", block.Header.Number)

	return nil
}
