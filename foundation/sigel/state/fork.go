package state

import (
	"fmt"

	"github.com/aseio6668/Sigmos/foundation/sigel/ledger"
)

// ProcessCandidateChain takes a complete chain received from a peer and
// adopts it when it carries strictly more cumulative work than ours. It
// reports whether adoption happened.
func (s *State) ProcessCandidateChain(blockData []ledger.BlockData) (bool, error) {
	candidate := make([]ledger.Block, len(blockData))
	for i, bd := range blockData {
		block, err := ledger.ToBlock(bd)
		if err != nil {
			return false, fmt.Errorf("candidate chain: %w", err)
		}
		candidate[i] = block
	}

	done := s.signalCancelMining()
	defer done()

	adopted, err := s.ledger.ReplaceIfBetter(candidate)
	if err != nil {
		s.escalate(err)
		return false, err
	}
	if !adopted {
		return false, nil
	}

	// Pending transfers embedded by the new chain leave the pool.
	// Transfers from abandoned blocks are not resurrected, resubmission
	// is the owner's job.
	for _, block := range candidate {
		s.removeEmbedded(block)
	}

	s.evHandler("state: adopted candidate chain, new tip %d", candidate[len(candidate)-1].Header.Number)

	return true, nil
}
