package selector

import (
	"sort"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// tipSelect returns transactions with the best fee while respecting the
// arrival order for each account.
var tipSelect = func(transactions []database.Tx, howMany int) []database.Tx {
	if howMany < 0 {
		howMany = len(transactions)
	}

	/*
		Bill: {To: "0xbEE6ACE826eC3DE1B6349888B9151B92522F7F76", Fee: 1.5},
			  {To: "0x6Fe6CF3c8fF57c58d24BfC869668F48BCbDb3BD9", Fee: 2.5},
		Pavl: {To: "0xbEE6ACE826eC3DE1B6349888B9151B92522F7F76", Fee: 0.75},
			  {To: "0xa988b1866EaBF72B4c53b592c97aAD8e4b9bDCC0", Fee: 2},
		Edua: {To: "0x6Fe6CF3c8fF57c58d24BfC869668F48BCbDb3BD9", Fee: 1},
			  {To: "0xa988b1866EaBF72B4c53b592c97aAD8e4b9bDCC0", Fee: 0.75},
	*/

	m, accounts := groupByAccount(transactions)

	// Pick the first transaction in the slice for each account. Each iteration
	// represents a new row of selections. Keep doing that until all the
	// transactions have been selected.
	var rows [][]database.Tx
	for {
		var row []database.Tx
		for _, from := range accounts {
			if len(m[from]) > 0 {
				row = append(row, m[from][0])
				m[from] = m[from][1:]
			}
		}
		if row == nil {
			break
		}
		rows = append(rows, row)
	}

	/*
		0: Bill: {To: "0xbEE6ACE826eC3DE1B6349888B9151B92522F7F76", Fee: 1.5},
		0: Pavl: {To: "0xbEE6ACE826eC3DE1B6349888B9151B92522F7F76", Fee: 0.75},
		0: Edua: {To: "0x6Fe6CF3c8fF57c58d24BfC869668F48BCbDb3BD9", Fee: 1},
		1: Bill: {To: "0x6Fe6CF3c8fF57c58d24BfC869668F48BCbDb3BD9", Fee: 2.5},
		1: Pavl: {To: "0xa988b1866EaBF72B4c53b592c97aAD8e4b9bDCC0", Fee: 2},
		1: Edua: {To: "0xa988b1866EaBF72B4c53b592c97aAD8e4b9bDCC0", Fee: 0.75},
	*/

	// Sort each row by fee unless we will take all transactions from that row
	// anyway. Then try to select the number of requested transactions. Keep
	// pulling transactions from each row until the amount of fulfilled or
	// there are no more transactions.
	final := []database.Tx{}
done:
	for _, row := range rows {
		need := howMany - len(final)
		if len(row) > need {
			sort.Stable(byFee(row))
			final = append(final, row[:need]...)
			break done
		}
		final = append(final, row...)
	}

	/*
		0: Bill: {To: "0xbEE6ACE826eC3DE1B6349888B9151B92522F7F76", Fee: 1.5},
		1: Pavl: {To: "0xbEE6ACE826eC3DE1B6349888B9151B92522F7F76", Fee: 0.75},
		2: Edua: {To: "0x6Fe6CF3c8fF57c58d24BfC869668F48BCbDb3BD9", Fee: 1},
		3: Bill: {To: "0x6Fe6CF3c8fF57c58d24BfC869668F48BCbDb3BD9", Fee: 2.5},
	*/

	return final
}
