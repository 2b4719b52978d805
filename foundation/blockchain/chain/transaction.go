package chain

import (
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// AddTransactionToPool accepts a signed transfer for inclusion in a future
// block. The transfer must verify, must not already be pending or in the
// chain, and the sender must be able to afford it on top of everything
// they already have pending. It returns the number of pending transactions.
func (c *Chain) AddTransactionToPool(tx database.Tx) (int, error) {
	if tx.IsCoinbase() {
		return 0, fmt.Errorf("%w: coinbase transactions are created by mining", database.ErrInvalidParameters)
	}

	if err := tx.Verify(c.recoverer); err != nil {
		c.evHandler("chain: AddTransactionToPool: REJECTED: tx[%s]: %s", tx.ID(), err)
		return 0, err
	}

	c.poolMu.Lock()
	defer c.poolMu.Unlock()

	id := tx.ID()

	var included bool
	var ledger *database.Ledger
	c.rw.RLock()
	{
		included = c.state.isIncluded(id)
		ledger = c.state.ledger
	}
	c.rw.RUnlock()

	if included || c.mempool.Contains(id) {
		return 0, fmt.Errorf("%w: tx[%s]", ErrDuplicateTransaction, id)
	}

	if err := ledger.ValidateTransfer(tx, c.mempool.PendingDebit(tx.FromID)); err != nil {
		c.evHandler("chain: AddTransactionToPool: REJECTED: tx[%s]: %s", id, err)
		return 0, err
	}

	n, err := c.mempool.Upsert(tx)
	if err != nil {
		return 0, err
	}

	c.evHandler("chain: AddTransactionToPool: tx[%s]: pending[%d]", id, n)

	return n, nil
}

// HasTransaction reports whether the transaction is pending or already
// included in a block.
func (c *Chain) HasTransaction(txID string) bool {
	if c.mempool.Contains(txID) {
		return true
	}

	c.rw.RLock()
	defer c.rw.RUnlock()

	return c.state.isIncluded(txID)
}
