package state

import (
	"github.com/aseio6668/Sigmos/foundation/sigel/identity"
)

// CreateIdentity mints a new identity record owned by this node's client and
// shares it with peers.
func (s *State) CreateIdentity(name string, address string) (identity.Record, error) {
	rec, err := s.registry.Create(name, address)
	if err != nil {
		return identity.Record{}, err
	}

	s.evHandler("state: created identity %s", rec.String())

	if s.Worker != nil {
		s.Worker.SignalShareIdentity(rec)
	}

	return rec, nil
}

// ProcessPeerIdentity applies an identity record learned from a peer. It
// reports whether the record advanced what this node holds.
func (s *State) ProcessPeerIdentity(rec identity.Record) (bool, error) {
	applied, err := s.registry.Upsert(rec)
	if err != nil {
		return false, err
	}

	if applied {
		s.evHandler("state: learned identity %s", rec.String())
	}

	return applied, nil
}

// MinerScore computes a consistent snapshot of this node's consciousness
// score for one mining attempt. A node without an identity mines at score
// zero, with no target relaxation.
func (s *State) MinerScore() float64 {
	id := s.MinerID()
	if id == "" {
		return 0
	}

	rec, err := s.registry.Query(id)
	if err != nil {
		return 0
	}

	return rec.ConsciousnessScore()
}
