// Package selector provides different transaction selecting algorithms.
package selector

import (
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// List of different select strategies.
const (
	StrategyFIFO        = "fifo"
	StrategyTip         = "tip"
	StrategyTipAdvanced = "tip_advanced"
)

// Map of different select strategies with functions.
var strategies = map[string]Func{
	StrategyFIFO:        fifoSelect,
	StrategyTip:         tipSelect,
	StrategyTipAdvanced: advancedTipSelect,
}

// Func defines a function that takes the pending transactions in the order
// they arrived and selects howMany of them in an order based on the functions
// strategy. All selector functions MUST keep the arrival order of the
// transactions from the same account, a later transfer may depend on funds
// an earlier one leaves behind. Receiving -1 for howMany must return all the
// transactions in the strategies ordering.
type Func func(transactions []database.Tx, howMany int) []database.Tx

// Retrieve returns the specified select strategy function.
func Retrieve(strategy string) (Func, error) {
	fn, exists := strategies[strategy]
	if !exists {
		return nil, fmt.Errorf("strategy %q does not exist", strategy)
	}
	return fn, nil
}

// =============================================================================

// groupByAccount groups the transactions by sender keeping the arrival order
// inside each group. The accounts are returned in order of first appearance.
func groupByAccount(transactions []database.Tx) (map[database.AccountID][]database.Tx, []database.AccountID) {
	m := make(map[database.AccountID][]database.Tx)
	var accounts []database.AccountID

	for _, tx := range transactions {
		if _, exists := m[tx.FromID]; !exists {
			accounts = append(accounts, tx.FromID)
		}
		m[tx.FromID] = append(m[tx.FromID], tx)
	}

	return m, accounts
}

// =============================================================================

// byFee provides sorting support by the transaction fee value.
type byFee []database.Tx

// Len returns the number of transactions in the list.
func (bf byFee) Len() int {
	return len(bf)
}

// Less helps to sort the list by fee in decending order to pick the
// transactions that provide the best reward.
func (bf byFee) Less(i, j int) bool {
	return bf[i].Fee > bf[j].Fee
}

// Swap moves transactions in the order of the fee value.
func (bf byFee) Swap(i, j int) {
	bf[i], bf[j] = bf[j], bf[i]
}
