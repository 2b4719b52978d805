// Package mempool maintains the mempool for the blockchain.
package mempool

import (
	"errors"
	"sync"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/mempool/selector"
)

// ErrCoinbase is returned when a coinbase transaction is offered to the pool.
var ErrCoinbase = errors.New("coinbase transactions are not pooled")

// Mempool represents a cache of pending transactions keyed by transaction id
// that remembers the order the transactions arrived in.
type Mempool struct {
	pool     map[string]database.Tx
	order    []string
	mu       sync.RWMutex
	selectFn selector.Func
}

// New constructs a new mempool using the default select strategy.
func New() (*Mempool, error) {
	return NewWithStrategy(selector.StrategyFIFO)
}

// NewWithStrategy constructs a new mempool with specified select strategy.
func NewWithStrategy(strategy string) (*Mempool, error) {
	selectFn, err := selector.Retrieve(strategy)
	if err != nil {
		return nil, err
	}

	mp := Mempool{
		pool:     make(map[string]database.Tx),
		selectFn: selectFn,
	}

	return &mp, nil
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Contains reports whether the transaction id is pending.
func (mp *Mempool) Contains(txID string) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	_, exists := mp.pool[txID]
	return exists
}

// Upsert adds or replaces a transaction in the mempool. A replaced
// transaction keeps its original position.
func (mp *Mempool) Upsert(tx database.Tx) (int, error) {
	if tx.IsCoinbase() {
		return 0, ErrCoinbase
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	key := tx.ID()
	if _, exists := mp.pool[key]; !exists {
		mp.order = append(mp.order, key)
	}
	mp.pool[key] = tx

	return len(mp.pool), nil
}

// Delete removes a transaction from the mempool.
func (mp *Mempool) Delete(tx database.Tx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	key := tx.ID()
	if _, exists := mp.pool[key]; !exists {
		return
	}

	delete(mp.pool, key)
	for i, id := range mp.order {
		if id == key {
			mp.order = append(mp.order[:i:i], mp.order[i+1:]...)
			break
		}
	}
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]database.Tx)
	mp.order = nil
}

// Copy returns the pending transactions in the order they arrived.
func (mp *Mempool) Copy() []database.Tx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return mp.inOrder()
}

// PendingDebit returns the total cost of the pending transactions sent
// by the account.
func (mp *Mempool) PendingDebit(accountID database.AccountID) float64 {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	var debit float64
	for _, tx := range mp.pool {
		if tx.FromID == accountID {
			debit += tx.Cost()
		}
	}
	return debit
}

// PickBest uses the configured select strategy to return the next set
// of transactions for the next block. Pass -1 for all the transactions.
func (mp *Mempool) PickBest(howMany int) []database.Tx {
	var txs []database.Tx
	mp.mu.RLock()
	{
		if howMany == -1 {
			howMany = len(mp.pool)
		}
		txs = mp.inOrder()
	}
	mp.mu.RUnlock()

	return mp.selectFn(txs, howMany)
}

// =============================================================================

// inOrder returns the transactions in arrival order. The caller must hold
// the lock.
func (mp *Mempool) inOrder() []database.Tx {
	txs := make([]database.Tx, 0, len(mp.order))
	for _, id := range mp.order {
		txs = append(txs, mp.pool[id])
	}
	return txs
}
