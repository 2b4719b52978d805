package selector

import (
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// advancedTipSelect returns transactions with the best fee while respecting
// the arrival order for each account. This strategy takes into account
// high-fee transactions that happen to be stuck behind a low-fee transaction
// from the same account.
var advancedTipSelect = func(transactions []database.Tx, howMany int) []database.Tx {
	if howMany < 0 {
		howMany = len(transactions)
	}

	m, accounts := groupByAccount(transactions)

	at := newAdvancedTips(m, accounts, howMany)
	best := at.findBest()

	final := []database.Tx{}
	for _, from := range accounts {
		final = append(final, m[from][:best[from]]...)
	}

	return final
}

// =============================================================================

type advancedTips struct {
	howMany   int
	bestFee   float64
	bestPos   map[database.AccountID]int
	groupFees map[database.AccountID][]float64
	groups    []database.AccountID
}

func newAdvancedTips(m map[database.AccountID][]database.Tx, accounts []database.AccountID, howMany int) *advancedTips {
	groupFees := map[database.AccountID][]float64{}

	for _, from := range accounts {
		groupFees[from] = []float64{0}
		for i, tx := range m[from] {
			if i >= howMany {
				break
			}
			groupFees[from] = append(groupFees[from], tx.Fee+groupFees[from][i])
		}
	}

	return &advancedTips{
		howMany:   howMany,
		bestFee:   -1,
		bestPos:   map[database.AccountID]int{},
		groupFees: groupFees,
		groups:    accounts,
	}
}

func (at *advancedTips) findBest() map[database.AccountID]int {
	at.findBestTransactions(0, at.howMany, map[database.AccountID]int{}, 0, 0)
	return at.bestPos
}

// findBestTransactions walks every combination of prefixes per account. Ties
// on the total fee are broken by taking more transactions.
func (at *advancedTips) findBestTransactions(groupID int, left int, currPos map[database.AccountID]int, prevFee float64, taken int) {
	if groupID >= len(at.groups) {
		if prevFee > at.bestFee || (prevFee == at.bestFee && taken > countPos(at.bestPos)) {
			at.bestFee = prevFee
			at.bestPos = currPos
		}
		return
	}

	from := at.groups[groupID]

	for pos, fee := range at.groupFees[from] {
		if left-pos < 0 {
			break
		}

		newCurrPos := copyMap(currPos)
		newCurrPos[from] = pos
		at.findBestTransactions(groupID+1, left-pos, newCurrPos, prevFee+fee, taken+pos)
	}
}

// =============================================================================

func copyMap(m map[database.AccountID]int) map[database.AccountID]int {
	newCurrPos := map[database.AccountID]int{}
	for from, pos := range m {
		newCurrPos[from] = pos
	}

	return newCurrPos
}

func countPos(m map[database.AccountID]int) int {
	var n int
	for _, pos := range m {
		n += pos
	}
	return n
}
