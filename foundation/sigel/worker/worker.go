// Package worker implements mining, chain syncing and gossip sharing as the
// node's background goroutines.
package worker

import (
	"sync"
	"time"

	"github.com/aseio6668/Sigmos/foundation/sigel/identity"
	"github.com/aseio6668/Sigmos/foundation/sigel/network"
	"github.com/aseio6668/Sigmos/foundation/sigel/state"
	"github.com/aseio6668/Sigmos/foundation/sigel/transfer"
)

// syncInterval represents the interval for reconnecting known peers and
// pulling any chain we are missing.
const syncInterval = time.Minute

// maxShareRequests caps the queued gossip sends before new ones are dropped.
const maxShareRequests = 100

// Worker manages the background workflows for the node.
type Worker struct {
	state         *state.State
	node          *network.Node
	wg            sync.WaitGroup
	ticker        *time.Ticker
	shut          chan struct{}
	startMining   chan bool
	cancelMining  chan chan struct{}
	transferShare chan transfer.SignedTransfer
	identityShare chan identity.Record
	continuous    bool
	evHandler     state.EventHandler
}

// Config holds the worker's tunables.
type Config struct {
	State *state.State
	Node  *network.Node

	// Continuous keeps mining going as long as the pool has transfers.
	Continuous bool

	EvHandler state.EventHandler
}

// Run creates a worker, registers it with the state package and starts up
// all the background goroutines.
func Run(cfg Config) *Worker {
	w := Worker{
		state:         cfg.State,
		node:          cfg.Node,
		ticker:        time.NewTicker(syncInterval),
		shut:          make(chan struct{}),
		startMining:   make(chan bool, 1),
		cancelMining:  make(chan chan struct{}, 1),
		transferShare: make(chan transfer.SignedTransfer, maxShareRequests),
		identityShare: make(chan identity.Record, maxShareRequests),
		continuous:    cfg.Continuous,
		evHandler:     cfg.EvHandler,
	}

	// Register this worker with the state package.
	cfg.State.Worker = &w

	// Update this node before starting any support G's.
	w.Sync()

	// Load the set of operations we need to run.
	operations := []func(){
		w.syncOperations,
		w.miningOperations,
		w.shareOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}

	return &w
}

// =============================================================================
// These methods implement the state.Worker interface.

// Shutdown terminates the goroutines performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.ticker.Stop()

	done := w.SignalCancelMining()
	done()

	close(w.shut)
	w.wg.Wait()
}

// SignalStartMining starts a mining operation. If there is already a signal
// pending in the channel, just return since a mining operation will start.
func (w *Worker) SignalStartMining() {
	select {
	case w.startMining <- true:
	default:
	}
	w.evHandler("worker: SignalStartMining: mining signaled")
}

// SignalCancelMining signals the G executing the runMiningOperation function
// to stop immediately. The returned done function releases the cancelled
// miner once the caller's state changes have settled.
func (w *Worker) SignalCancelMining() (done func()) {
	wait := make(chan struct{})

	select {
	case w.cancelMining <- wait:
	default:
	}
	w.evHandler("worker: SignalCancelMining: cancel signaled")

	return func() { close(wait) }
}

// SignalShareTransfer queues a transfer for gossip. When the queue is full
// the transfer is dropped, a later sync converges the pools.
func (w *Worker) SignalShareTransfer(st transfer.SignedTransfer) {
	select {
	case w.transferShare <- st:
		w.evHandler("worker: SignalShareTransfer: share signaled")
	default:
		w.evHandler("worker: SignalShareTransfer: queue full, transfer not shared")
	}
}

// SignalShareIdentity queues an identity record for gossip.
func (w *Worker) SignalShareIdentity(rec identity.Record) {
	select {
	case w.identityShare <- rec:
		w.evHandler("worker: SignalShareIdentity: share signaled")
	default:
		w.evHandler("worker: SignalShareIdentity: queue full, identity not shared")
	}
}

// =============================================================================

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
