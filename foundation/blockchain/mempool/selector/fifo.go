package selector

import "github.com/ardanlabs/powchain/foundation/blockchain/database"

// fifoSelect returns the transactions in the order they arrived.
var fifoSelect = func(transactions []database.Tx, howMany int) []database.Tx {
	if howMany < 0 || howMany > len(transactions) {
		howMany = len(transactions)
	}

	final := make([]database.Tx, howMany)
	copy(final, transactions[:howMany])

	return final
}
