package state

import (
	"fmt"

	"github.com/aseio6668/Sigmos/foundation/sigel/ledger"
	"github.com/aseio6668/Sigmos/foundation/sigel/transfer"
)

// SubmitTransfer accepts a signed transfer from this node's own clients,
// adds it to the pending pool, shares it with peers and kicks off mining.
func (s *State) SubmitTransfer(st transfer.SignedTransfer) error {
	if err := s.acceptTransfer(st); err != nil {
		return err
	}

	s.evHandler("state: submitted transfer %s", st)

	if s.Worker != nil {
		s.Worker.SignalShareTransfer(st)
		s.Worker.SignalStartMining()
	}

	return nil
}

// ProcessPeerTransfer accepts a transfer gossiped by a peer. It reports
// whether the transfer was new to this node.
func (s *State) ProcessPeerTransfer(st transfer.SignedTransfer) (bool, error) {
	if s.pool.Has(st.ContentID()) {
		return false, nil
	}

	if err := s.acceptTransfer(st); err != nil {
		return false, err
	}

	s.evHandler("state: accepted peer transfer %s", st)

	if s.Worker != nil {
		s.Worker.SignalStartMining()
	}

	return true, nil
}

// acceptTransfer runs the full submission checks and pools the transfer.
// The same rules apply again at block validation, checking here just keeps
// garbage out of the pool and off the wire.
func (s *State) acceptTransfer(st transfer.SignedTransfer) error {
	if err := st.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ledger.ErrInvalidTransaction, err)
	}

	from, err := s.registry.Query(st.FromID)
	if err != nil {
		return fmt.Errorf("%w: unknown sender %s", ledger.ErrInvalidTransaction, st.FromID)
	}
	if _, err := s.registry.Query(st.ToID); err != nil {
		return fmt.Errorf("%w: unknown recipient %s", ledger.ErrInvalidTransaction, st.ToID)
	}

	address, err := st.FromAddress()
	if err != nil {
		return fmt.Errorf("%w: %s", ledger.ErrInvalidTransaction, err)
	}
	if address != from.Address {
		return fmt.Errorf("%w: transfer not signed by %s", ledger.ErrInvalidTransaction, from.String())
	}

	if s.ledger.HasTransfer(st.ContentID()) {
		return fmt.Errorf("%w: transfer %s already embedded in the chain", ledger.ErrInvalidTransaction, st.ContentID())
	}

	s.pool.Upsert(st)

	return nil
}

// removeEmbedded drops a committed block's transfers from the pending pool.
func (s *State) removeEmbedded(block ledger.Block) {
	for _, st := range block.Trans {
		s.pool.Delete(st)
	}
}
