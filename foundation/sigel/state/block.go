package state

import (
	"github.com/aseio6668/Sigmos/foundation/sigel/ledger"
)

// ProcessPeerBlock takes a block received from a peer, validates it and
// appends it to the chain. Any in-flight mining attempt is cancelled first
// and released once the chain has settled.
func (s *State) ProcessPeerBlock(blockData ledger.BlockData) error {
	block, err := ledger.ToBlock(blockData)
	if err != nil {
		return err
	}

	done := s.signalCancelMining()
	defer done()

	if err := s.ledger.Append(block); err != nil {
		s.escalate(err)
		return err
	}

	s.removeEmbedded(block)
	s.evHandler("state: accepted peer block %d", block.Header.Number)

	return nil
}

func (s *State) signalCancelMining() (done func()) {
	if s.Worker == nil {
		return func() {}
	}
	return s.Worker.SignalCancelMining()
}
