// Package state is the core API layer that ties the ledger, the pending
// transfer pool, the identity registry and the peer set together.
package state

import (
	"errors"
	"sync"

	"github.com/aseio6668/Sigmos/foundation/sigel/genesis"
	"github.com/aseio6668/Sigmos/foundation/sigel/identity"
	"github.com/aseio6668/Sigmos/foundation/sigel/ledger"
	"github.com/aseio6668/Sigmos/foundation/sigel/peer"
	"github.com/aseio6668/Sigmos/foundation/sigel/registry"
	"github.com/aseio6668/Sigmos/foundation/sigel/transfer"
)

// EventHandler defines a function that is called when events occur in the
// processing of state changes.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining, sharing and syncing.
type Worker interface {
	Shutdown()
	Sync()
	SignalStartMining()
	SignalCancelMining() (done func())
	SignalShareTransfer(st transfer.SignedTransfer)
	SignalShareIdentity(rec identity.Record)
}

// Config represents the configuration required to start the state.
type Config struct {
	Host          string
	Genesis       genesis.Genesis
	Serializer    ledger.Serializer
	Registry      *registry.Registry
	KnownPeers    *peer.Set
	AttemptBudget uint64
	EvHandler     EventHandler

	// FatalHandler is invoked when the ledger can no longer persist what
	// it commits. The node must come down rather than keep serving a
	// chain a restart cannot reload.
	FatalHandler func(err error)
}

// State manages the node state. A Worker must be registered before the
// signal methods fire.
type State struct {
	mu      sync.RWMutex
	minerID string

	host          string
	genesis       genesis.Genesis
	attemptBudget uint64
	evHandler     EventHandler
	fatalHandler  func(err error)

	ledger     *ledger.Ledger
	pool       *transfer.Pool
	registry   *registry.Registry
	knownPeers *peer.Set

	// Worker is set by the worker package during its construction.
	Worker Worker
}

// New constructs a new state value for use, opening the ledger over the
// configured storage.
func New(cfg Config) (*State, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	l, err := ledger.New(ledger.Config{
		Genesis:    cfg.Genesis,
		Serializer: cfg.Serializer,
		Identities: cfg.Registry,
		EvHandler:  ledger.EventHandler(ev),
	})
	if err != nil {
		return nil, err
	}

	knownPeers := cfg.KnownPeers
	if knownPeers == nil {
		knownPeers = peer.NewSet()
	}

	s := State{
		host:          cfg.Host,
		genesis:       cfg.Genesis,
		attemptBudget: cfg.AttemptBudget,
		evHandler:     ev,
		fatalHandler:  cfg.FatalHandler,
		ledger:        l,
		pool:          transfer.NewPool(),
		registry:      cfg.Registry,
		knownPeers:    knownPeers,
	}

	return &s, nil
}

// Shutdown cleanly brings the node down, stopping the worker first so no
// mining attempt outlives the ledger.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	return s.ledger.Close()
}

// escalate hands a persistence failure to the fatal handler. Other chain
// errors are consensus outcomes and stay with the caller.
func (s *State) escalate(err error) {
	if err == nil || !errors.Is(err, ledger.ErrPersistenceFailure) {
		return
	}

	s.evHandler("state: FATAL: %s", err)
	if s.fatalHandler != nil {
		s.fatalHandler(err)
	}
}

// SetMiner records the identity this node mines as.
func (s *State) SetMiner(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.minerID = id
}

// MinerID returns the identity this node mines as, empty when the node has
// no identity yet.
func (s *State) MinerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.minerID
}

// Host returns this node's public host.
func (s *State) Host() string {
	return s.host
}

// Genesis returns the chain parameters.
func (s *State) Genesis() genesis.Genesis {
	return s.genesis
}

// ChainID returns the chain this node participates in.
func (s *State) ChainID() uint16 {
	return s.genesis.ChainID
}

// ChainHeight returns the block number of the current tip.
func (s *State) ChainHeight() uint64 {
	return s.ledger.Height()
}

// TipHash returns the hash of the current tip.
func (s *State) TipHash() string {
	return s.ledger.Tip().Hash()
}

// LatestBlock returns the current tip block.
func (s *State) LatestBlock() ledger.Block {
	return s.ledger.Tip()
}

// KnownPeers returns the known peer list, excluding the specified host.
func (s *State) KnownPeers(exceptHost string) []peer.Peer {
	return s.knownPeers.Copy(exceptHost)
}

// AddKnownPeer adds the host to the known peer set and reports whether it
// was not yet known. This node's own host is never added.
func (s *State) AddKnownPeer(host string) bool {
	if host == "" || host == s.host {
		return false
	}
	return s.knownPeers.Add(peer.New(host))
}

// RemoveKnownPeer removes the host from the known peer set.
func (s *State) RemoveKnownPeer(host string) {
	s.knownPeers.Remove(peer.New(host))
}
