package worker

import "github.com/ardanlabs/powchain/foundation/blockchain/database"

// delivery is one gossip message waiting to be processed. Only one of the
// fields is set.
type delivery struct {
	tx    *database.Tx
	block *database.Block
}

// deliver queues the message without blocking the sender.
func (w *Worker) deliver(d delivery) {
	if w.isShutdown() {
		return
	}

	select {
	case w.deliveries <- d:
	default:
		w.evHandler("worker: deliver: host[%s]: WARNING: queue full, message dropped", w.node.Host())
	}
}

// deliveryOperations handles the gossip messages sent by peers in the order
// they arrived.
func (w *Worker) deliveryOperations() {
	w.evHandler("worker: deliveryOperations: G started")
	defer w.evHandler("worker: deliveryOperations: G completed")

	for {
		select {
		case d := <-w.deliveries:
			if !w.isShutdown() {
				w.runDeliveryOperation(d)
			}
		case <-w.shut:
			w.evHandler("worker: deliveryOperations: received shut signal")
			return
		}
	}
}

// runDeliveryOperation hands the message to the node. Rejections are
// logged by the node.
func (w *Worker) runDeliveryOperation(d delivery) {
	switch {
	case d.tx != nil:
		w.node.OnTransactionReceived(*d.tx)

	case d.block != nil:
		w.node.OnBlockReceived(*d.block)
	}
}
