package worker

// shareOperations gossips queued transfers and identity records to the
// network.
func (w *Worker) shareOperations() {
	w.evHandler("worker: shareOperations: G started")
	defer w.evHandler("worker: shareOperations: G completed")

	for {
		select {
		case st := <-w.transferShare:
			if !w.isShutdown() {
				w.node.BroadcastTransfer(st)
			}
		case rec := <-w.identityShare:
			if !w.isShutdown() {
				w.node.BroadcastIdentity(rec)
			}
		case <-w.shut:
			w.evHandler("worker: shareOperations: received shut signal")
			return
		}
	}
}
