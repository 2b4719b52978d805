package worker

import (
	"context"
	"errors"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/chain"
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

// runMiningOperation mines the pending transactions into a new block and
// gossips it to the peers. Mining stops early when a peer's block is
// accepted or the worker shuts down.
func (w *Worker) runMiningOperation() {
	host := w.node.Host()

	w.evHandler("worker: runMiningOperation: MINING: started: host[%s]", host)
	defer w.evHandler("worker: runMiningOperation: MINING: completed: host[%s]", host)

	// After running a mining operation, check if a new operation should
	// be signaled again.
	defer func() {
		if !w.isShutdown() && w.node.ShouldMine() {
			w.evHandler("worker: runMiningOperation: MINING: signal new mining operation: Txs[%d]", w.node.PendingCount())
			w.SignalStartMining()
		}
	}()

	t := time.Now()
	block, err := w.node.MineNewBlock(w.ctx)
	duration := time.Since(t)

	w.evHandler("worker: runMiningOperation: MINING: mining duration[%v]", duration)

	if err != nil {
		switch {
		case errors.Is(err, chain.ErrNoTransactions):
			w.evHandler("worker: runMiningOperation: MINING: WARNING: no transactions in mempool")
		case w.ctx.Err() != nil:
			w.evHandler("worker: runMiningOperation: MINING: CANCEL: shutdown")
		case errors.Is(err, context.Canceled):
			w.evHandler("worker: runMiningOperation: MINING: CANCEL: superseded by a peer block")
		default:
			w.evHandler("worker: runMiningOperation: MINING: ERROR: %s", err)
		}
		return
	}

	w.evHandler("worker: runMiningOperation: MINING: SOLVED: blk[%s]", block)
}
