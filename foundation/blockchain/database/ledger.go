package database

import (
	"fmt"
	"sync"
)

// Ledger maintains the balance of every account derived from the starting
// balances plus every transaction applied since.
type Ledger struct {
	initial  map[AccountID]float64
	balances map[AccountID]float64
	mu       sync.RWMutex
}

// NewLedger constructs a ledger for use, expects the starting balances
// usually from a genesis file.
func NewLedger(initial map[AccountID]float64) *Ledger {
	l := Ledger{
		initial: make(map[AccountID]float64, len(initial)),
	}

	for accountID, value := range initial {
		l.initial[accountID] = value
	}

	l.Reset()

	return &l
}

// Reset puts the balances back to the starting balances.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances = make(map[AccountID]float64, len(l.initial))
	for accountID, value := range l.initial {
		l.balances[accountID] = value
	}
}

// Clone makes an independent copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ledger := NewLedger(l.initial)
	for accountID, value := range l.balances {
		ledger.balances[accountID] = value
	}
	return ledger
}

// Copy makes a copy of the current balances but returns the raw data.
func (l *Ledger) Copy() map[AccountID]float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	balances := make(map[AccountID]float64, len(l.balances))
	for accountID, value := range l.balances {
		balances[accountID] = value
	}
	return balances
}

// Balance returns the balance for the account. Unknown accounts have
// a balance of zero.
func (l *Ledger) Balance(accountID AccountID) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.balances[accountID]
}

// Total returns the sum of every balance in the ledger.
func (l *Ledger) Total() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var total float64
	for _, value := range l.balances {
		total += value
	}
	return total
}

// ValidateTransfer checks the sender can afford the transaction on top of
// the amount already committed elsewhere, such as pending transactions.
func (l *Ledger) ValidateTransfer(tx Tx, committed float64) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	if tx.IsCoinbase() {
		return nil
	}

	balance := l.Balance(tx.FromID)
	if balance-committed < tx.Cost() {
		return fmt.Errorf("%w: %s has %v, committed %v, needs %v", ErrInsufficientBalance, tx.FromID, balance, committed, tx.Cost())
	}

	return nil
}

// ApplyTransaction updates the balances for the transaction. A coinbase
// credits the recipient, a transfer moves the amount from the sender to the
// recipient and the fee leaves the sender for the miner's coinbase.
func (l *Ledger) ApplyTransaction(tx Tx) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if tx.IsCoinbase() {
		l.balances[tx.ToID] += tx.Amount
		return nil
	}

	if l.balances[tx.FromID] < tx.Cost() {
		return fmt.Errorf("%w: %s has %v, needs %v", ErrInsufficientBalance, tx.FromID, l.balances[tx.FromID], tx.Cost())
	}

	l.balances[tx.FromID] -= tx.Cost()
	l.balances[tx.ToID] += tx.Amount

	return nil
}

// ApplyBlock applies every transaction in the block in order. If any
// transaction can't be applied the ledger is left unchanged.
func (l *Ledger) ApplyBlock(block Block) error {
	scratch := l.Clone()
	for _, tx := range block.Values() {
		if err := scratch.ApplyTransaction(tx); err != nil {
			return err
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances = scratch.balances

	return nil
}
