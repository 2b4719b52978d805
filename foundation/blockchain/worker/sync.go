package worker

// syncOperations periodically catches the node up with its peers.
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

// Sync requests any blocks the peers have that this node is missing.
func (w *Worker) Sync() {
	w.evHandler("worker: sync: started: host[%s]", w.node.Host())
	defer w.evHandler("worker: sync: completed: host[%s]", w.node.Host())

	if err := w.node.Sync(); err != nil {
		w.evHandler("worker: sync: host[%s]: WARNING: %s", w.node.Host(), err)
	}
}
