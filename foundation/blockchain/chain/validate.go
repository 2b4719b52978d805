package chain

import (
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// ValidateChain walks the blocks from genesis applying the validation rule
// to each adjacent pair. It returns the first failure with the number of the
// block that failed.
func (c *Chain) ValidateChain() error {
	blocks := c.GetChain()

	if blocks[0].Hash() != database.Genesis().Hash() || blocks[0].ComputeHash() != blocks[0].Hash() {
		return fmt.Errorf("blk[0]: %w: genesis does not match", database.ErrBadHash)
	}

	state, err := newLedgerState(c.genesis)
	if err != nil {
		return err
	}

	for i := 1; i < len(blocks); i++ {
		if err := blocks[i].ValidateBlock(blocks[i-1], c.validateArgs(state)); err != nil {
			return fmt.Errorf("blk[%d]: %w", i, err)
		}

		if err := state.apply(blocks[i]); err != nil {
			return fmt.Errorf("blk[%d]: %w", i, err)
		}
	}

	return nil
}

// IsValidChain reports whether every block in the chain is valid.
func (c *Chain) IsValidChain() bool {
	if err := c.ValidateChain(); err != nil {
		c.evHandler("chain: IsValidChain: %s", err)
		return false
	}
	return true
}
