// Package worker implements mining, gossip delivery and peer syncing for a
// node in the background.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/node"
)

// syncInterval represents the interval of asking peers for blocks this node
// is missing.
const syncInterval = 10 * time.Second

// maxDeliveries represents the max number of gossip messages that can be
// queued before new ones are dropped. Senders never wait on a full queue.
const maxDeliveries = 100

// =============================================================================

// Worker manages the background workflows for a node.
type Worker struct {
	node        *node.Node
	wg          sync.WaitGroup
	ticker      *time.Ticker
	shut        chan struct{}
	shutOnce    sync.Once
	ctx         context.Context
	cancel      context.CancelFunc
	startMining chan bool
	deliveries  chan delivery
	evHandler   database.EventHandler
}

// Run creates a worker, registers the worker with the node, and starts up
// all the background processes.
func Run(n *node.Node, evHandler database.EventHandler) *Worker {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := Worker{
		node:        n,
		ticker:      time.NewTicker(syncInterval),
		shut:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		startMining: make(chan bool, 1),
		deliveries:  make(chan delivery, maxDeliveries),
		evHandler:   ev,
	}

	// Register this worker with the node.
	n.Worker = &w

	// Load the set of operations we need to run.
	operations := []func(){
		w.syncOperations,
		w.miningOperations,
		w.deliveryOperations,
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
	for range g {
		<-hasStarted
	}

	// Mine anything that was already pending when the worker started.
	if n.ShouldMine() {
		w.SignalStartMining()
	}

	return &w
}

// =============================================================================
// These methods implement the node.Worker interface.

// Shutdown terminates the goroutines performing work. Queued deliveries
// that have not been processed are dropped.
func (w *Worker) Shutdown() {
	w.shutOnce.Do(func() {
		w.evHandler("worker: shutdown: started: host[%s]", w.node.Host())
		defer w.evHandler("worker: shutdown: completed: host[%s]", w.node.Host())

		w.evHandler("worker: shutdown: stop ticker")
		w.ticker.Stop()

		w.evHandler("worker: shutdown: cancel mining")
		w.cancel()

		w.evHandler("worker: shutdown: terminate goroutines")
		close(w.shut)
		w.wg.Wait()
	})
}

// SignalStartMining starts a mining operation. If there is already a signal
// pending in the channel, just return since a mining operation will start.
func (w *Worker) SignalStartMining() {
	select {
	case w.startMining <- true:
		w.evHandler("worker: SignalStartMining: host[%s]: mining signaled", w.node.Host())
	default:
	}
}

// SignalDeliverTx queues a gossiped transaction for processing. If the queue
// is full the transaction is dropped.
func (w *Worker) SignalDeliverTx(tx database.Tx) {
	w.deliver(delivery{tx: &tx})
}

// SignalDeliverBlock queues a gossiped block for processing. If the queue is
// full the block is dropped.
func (w *Worker) SignalDeliverBlock(block database.Block) {
	w.deliver(delivery{block: &block})
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
