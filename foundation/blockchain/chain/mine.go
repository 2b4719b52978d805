package chain

import (
	"context"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// Mine attempts to create a new block from the pending transactions with a
// proper hash that becomes the next block in the chain. Invalid pending
// transactions are dropped from the pool. Only one mining operation runs at
// a time and CancelMining stops the search.
func (c *Chain) Mine(ctx context.Context) (database.Block, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Register the cancel before waiting on the lock so a block arriving
	// while this call waits can still stop it.
	id := c.registerCancel(cancel)
	defer c.unregisterCancel(id)

	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	c.evHandler("chain: Mine: MINING: check mempool count")

	// Are there enough transactions in the pool.
	if c.mempool.Count() == 0 {
		return database.Block{}, ErrNoTransactions
	}

	c.evHandler("chain: Mine: MINING: filter pending transactions")

	var prevBlock database.Block
	var reward float64
	var trans []database.Tx
	c.rw.RLock()
	{
		prevBlock = c.blocks[len(c.blocks)-1]
		reward = c.state.reward
		trans = c.filterPending(c.mempool.PickBest(-1))
	}
	c.rw.RUnlock()

	if len(trans) == 0 {
		return database.Block{}, ErrNoTransactions
	}

	c.evHandler("chain: Mine: MINING: perform POW: trans[%d]", len(trans))

	// Attempt to create a new block by solving the POW puzzle. This can be cancelled.
	block, err := database.POW(ctx, database.POWArgs{
		MinerID:    c.minerID,
		Difficulty: c.genesis.Difficulty,
		Reward:     reward,
		PrevBlock:  prevBlock,
		Trans:      trans,
		Now:        c.now,
		EvHandler:  c.evHandler,
	})
	if err != nil {
		return database.Block{}, err
	}

	// Just check one more time we were not cancelled.
	if ctx.Err() != nil {
		return database.Block{}, ctx.Err()
	}

	c.evHandler("chain: Mine: MINING: validate and update chain")

	if err := c.addBlock(block); err != nil {
		return database.Block{}, err
	}

	return block, nil
}

// CancelMining stops any mining operation in progress or waiting to start.
func (c *Chain) CancelMining() {
	c.cancelMu.Lock()
	defer c.cancelMu.Unlock()

	for _, cancel := range c.cancels {
		cancel()
	}
}

// =============================================================================

// filterPending returns the transactions that verify and are affordable when
// applied in order. The others are removed from the pool. The caller must
// hold the read lock.
func (c *Chain) filterPending(pending []database.Tx) []database.Tx {
	ledger := c.state.ledger.Clone()

	valid := make([]database.Tx, 0, len(pending))
	for _, tx := range pending {
		err := tx.Verify(c.recoverer)
		if err == nil {
			_, err = tx.Hash()
		}

		switch {
		case err != nil:
		case c.state.isIncluded(tx.ID()):
			err = ErrDuplicateTransaction
		default:
			err = ledger.ApplyTransaction(tx)
		}

		if err != nil {
			c.evHandler("chain: Mine: MINING: drop tx[%s]: %s", tx.ID(), err)
			c.mempool.Delete(tx)
			continue
		}

		valid = append(valid, tx)
	}

	return valid
}

func (c *Chain) registerCancel(cancel context.CancelFunc) uint64 {
	c.cancelMu.Lock()
	defer c.cancelMu.Unlock()

	c.cancelID++
	c.cancels[c.cancelID] = cancel
	return c.cancelID
}

func (c *Chain) unregisterCancel(id uint64) {
	c.cancelMu.Lock()
	defer c.cancelMu.Unlock()

	delete(c.cancels, id)
}
