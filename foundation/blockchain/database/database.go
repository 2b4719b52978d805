// Package database handles the data model of the blockchain: accounts,
// transactions, blocks and the ledger of balances derived from them.
package database

import (
	"errors"
	"fmt"
)

// Set of errors for transactions that are rejected.
var (
	ErrInvalidParameters   = errors.New("invalid parameters")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// ErrInvalidBlock is the parent of every reason a block can be rejected for.
var ErrInvalidBlock = errors.New("invalid block")

// Set of reasons a block fails validation. Each one also matches
// ErrInvalidBlock with errors.Is.
var (
	ErrBadIndex               = fmt.Errorf("%w: bad index", ErrInvalidBlock)
	ErrBadPrevHash            = fmt.Errorf("%w: bad previous hash", ErrInvalidBlock)
	ErrBadHash                = fmt.Errorf("%w: bad hash", ErrInvalidBlock)
	ErrInsufficientDifficulty = fmt.Errorf("%w: insufficient difficulty", ErrInvalidBlock)
	ErrBadMerkleRoot          = fmt.Errorf("%w: bad merkle root", ErrInvalidBlock)
	ErrBadTimestamp           = fmt.Errorf("%w: bad timestamp", ErrInvalidBlock)
	ErrInvalidTransaction     = fmt.Errorf("%w: invalid transaction", ErrInvalidBlock)
)

// EventHandler defines a function that is called when events
// occur in the processing of blocks and transactions.
type EventHandler func(v string, args ...any)
