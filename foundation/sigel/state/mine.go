package state

import (
	"context"
	"errors"

	"github.com/aseio6668/Sigmos/foundation/sigel/ledger"
	"github.com/aseio6668/Sigmos/foundation/sigel/mining"
)

// ErrNoTransactions is returned when the pending pool has nothing to mine.
var ErrNoTransactions = errors.New("no transactions in the pool")

// MineNewBlock attempts to mine the next block over the pending transfers
// and commit it to the ledger. The miner's score is snapshotted once before
// the search starts.
func (s *State) MineNewBlock(ctx context.Context) (ledger.Block, error) {
	trans := s.pool.PickOldest(int(s.genesis.TransPerBlock))
	if len(trans) == 0 {
		return ledger.Block{}, ErrNoTransactions
	}

	difficulty, err := s.ledger.NextDifficulty()
	if err != nil {
		return ledger.Block{}, err
	}

	block, err := mining.Mine(ctx, mining.MineArgs{
		MinerID:       s.MinerID(),
		MinerScore:    s.MinerScore(),
		Weight:        s.genesis.ConsciousnessWeight,
		Difficulty:    difficulty,
		PrevBlock:     s.ledger.Tip(),
		Trans:         trans,
		AttemptBudget: s.attemptBudget,
		EvHandler:     mining.EventHandler(s.evHandler),
	})
	if err != nil {
		return ledger.Block{}, err
	}

	if ctx.Err() != nil {
		return ledger.Block{}, ctx.Err()
	}

	// Another block may have landed while we were searching. The ledger's
	// own validation settles the race.
	if err := s.ledger.Append(block); err != nil {
		s.escalate(err)
		return ledger.Block{}, err
	}

	s.removeEmbedded(block)
	s.evHandler("state: mined block %d with %d transfers", block.Header.Number, len(block.Trans))

	return block, nil
}
