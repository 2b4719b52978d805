package chain

import (
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// QueryLatest represents to query the latest block in the chain.
const QueryLatest = ^uint64(0) >> 1

// =============================================================================

// GetChain returns a copy of the blocks from genesis to the tip.
func (c *Chain) GetChain() []database.Block {
	c.rw.RLock()
	defer c.rw.RUnlock()

	blocks := make([]database.Block, len(c.blocks))
	copy(blocks, c.blocks)
	return blocks
}

// LatestBlock returns the tip of the chain.
func (c *Chain) LatestBlock() database.Block {
	c.rw.RLock()
	defer c.rw.RUnlock()

	return c.blocks[len(c.blocks)-1]
}

// HasBlock reports whether a block with the hash is in the chain.
func (c *Chain) HasBlock(hash string) bool {
	c.rw.RLock()
	defer c.rw.RUnlock()

	_, exists := c.byHash[hash]
	return exists
}

// QueryBlocks returns the blocks numbered from through to inclusive. Numbers
// past the tip are ignored.
func (c *Chain) QueryBlocks(from uint64, to uint64) []database.Block {
	c.rw.RLock()
	defer c.rw.RUnlock()

	latest := uint64(len(c.blocks) - 1)
	if from == QueryLatest {
		from = latest
		to = latest
	}
	if to == QueryLatest || to > latest {
		to = latest
	}

	var out []database.Block
	for i := from; i <= to; i++ {
		out = append(out, c.blocks[i])
	}

	return out
}

// GetBalance returns the current balance of the account.
func (c *Chain) GetBalance(accountID database.AccountID) float64 {
	c.rw.RLock()
	defer c.rw.RUnlock()

	return c.state.ledger.Balance(accountID)
}

// Balances returns a copy of every balance on the ledger.
func (c *Chain) Balances() map[database.AccountID]float64 {
	c.rw.RLock()
	defer c.rw.RUnlock()

	return c.state.ledger.Copy()
}

// GetAddressHistory returns the transactions involving the account in the
// order they were added to the chain.
func (c *Chain) GetAddressHistory(accountID database.AccountID) []database.Tx {
	c.rw.RLock()
	defer c.rw.RUnlock()

	history := c.state.history[accountID]
	out := make([]database.Tx, len(history))
	copy(out, history)
	return out
}

// BlockReward returns the coinbase amount for the next block.
func (c *Chain) BlockReward() float64 {
	c.rw.RLock()
	defer c.rw.RUnlock()

	return c.state.reward
}

// Difficulty returns the number of leading zeros a block hash needs.
func (c *Chain) Difficulty() uint {
	return c.genesis.Difficulty
}

// PendingTransactions returns the pending transactions in arrival order.
func (c *Chain) PendingTransactions() []database.Tx {
	return c.mempool.Copy()
}

// PendingCount returns the number of pending transactions.
func (c *Chain) PendingCount() int {
	return c.mempool.Count()
}
