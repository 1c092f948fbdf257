package worker

import (
	"context"
	"time"
)

// syncOperations reconnects known peers and pulls missing chain on a timer.
func (w *Worker) syncOperations() {
	w.evHandler("worker: syncOperations: G started")
	defer w.evHandler("worker: syncOperations: G completed")

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				w.Sync()
			}
		case <-w.shut:
			w.evHandler("worker: syncOperations: received shut signal")
			return
		}
	}
}

// Sync dials any known peer we are not connected to and runs a status
// exchange with every live session.
func (w *Worker) Sync() {
	w.evHandler("worker: sync: started")
	defer w.evHandler("worker: sync: completed")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, p := range w.state.KnownPeers(w.state.Host()) {
		if err := w.node.Connect(ctx, p.Host); err != nil {
			w.evHandler("worker: sync: connect to %s failed: %s", p.Host, err)
		}
	}

	w.node.Sync(ctx)
}
