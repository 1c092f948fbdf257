package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aseio6668/Sigmos/foundation/sigel/ledger"
	"github.com/aseio6668/Sigmos/foundation/sigel/mining"
	"github.com/aseio6668/Sigmos/foundation/sigel/state"
)

// miningOperations handles mining.
func (w *Worker) miningOperations() {
	w.evHandler("worker: miningOperations: G started")
	defer w.evHandler("worker: miningOperations: G completed")

	for {
		select {
		case <-w.startMining:
			if !w.isShutdown() {
				w.runMiningOperation()
			}
		case <-w.shut:
			w.evHandler("worker: miningOperations: received shut signal")
			return
		}
	}
}

// runMiningOperation takes pending transfers and mines a new block over
// them.
func (w *Worker) runMiningOperation() {
	w.evHandler("worker: runMiningOperation: MINING: started")
	defer w.evHandler("worker: runMiningOperation: MINING: completed")

	// After this mining operation, signal another when transfers remain and
	// continuous mining is on.
	defer func() {
		if w.continuous && len(w.state.QueryPendingTransfers()) > 0 {
			w.evHandler("worker: runMiningOperation: MINING: signal new mining operation")
			w.SignalStartMining()
		}
	}()

	// If mining is cancelled mid block, this G can't terminate until it is
	// told the chain has settled.
	var wait chan struct{}
	defer func() {
		if wait != nil {
			w.evHandler("worker: runMiningOperation: MINING: termination signal: waiting")
			<-wait
			w.evHandler("worker: runMiningOperation: MINING: termination signal: received")
		}
	}()

	// Drain the cancel mining channel before starting.
	select {
	case <-w.cancelMining:
		w.evHandler("worker: runMiningOperation: MINING: drained cancel channel")
	default:
	}

	// Create a context so mining can be cancelled.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Can't return from this function until these G's are complete.
	var wg sync.WaitGroup
	wg.Add(2)

	// This G exists to cancel the mining operation.
	go func() {
		defer func() {
			cancel()
			wg.Done()
		}()

		select {
		case wait = <-w.cancelMining:
			w.evHandler("worker: runMiningOperation: MINING: CANCEL: requested")
		case <-ctx.Done():
		}
	}()

	// This G is performing the mining.
	go func() {
		defer func() {
			cancel()
			wg.Done()
		}()

		t := time.Now()
		block, err := w.state.MineNewBlock(ctx)
		w.evHandler("worker: runMiningOperation: MINING: mining duration[%v]", time.Since(t))

		if err != nil {
			switch {
			case errors.Is(err, state.ErrNoTransactions):
				w.evHandler("worker: runMiningOperation: MINING: no transfers in the pool")
			case errors.Is(err, mining.ErrNoSolution):
				w.evHandler("worker: runMiningOperation: MINING: attempt budget exhausted, no block found")
			case errors.Is(err, ledger.ErrStaleIndex):
				w.evHandler("worker: runMiningOperation: MINING: chain moved during the search")
			case ctx.Err() != nil:
				w.evHandler("worker: runMiningOperation: MINING: CANCEL: complete")
			default:
				w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)
			}
			return
		}

		// The block is committed locally. Announce it to the network.
		w.node.BroadcastBlock(block)
	}()

	// Wait for both G's to terminate.
	wg.Wait()
}
