package chain

import (
	"encoding/json"
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// AddBlock validates the block against the current tip and if that passes,
// appends it and updates the ledger. A failed block leaves the chain
// untouched.
func (c *Chain) AddBlock(block database.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.addBlock(block)
}

// ReplaceTip swaps the current tip for a competing block at the same height.
// The competing block is validated against the tip's parent. If it fails the
// chain is left untouched. Transactions of the displaced tip that are not in
// the new block go back to the pool.
func (c *Chain) ReplaceTip(block database.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evHandler("chain: ReplaceTip: started: blk[%s]", block)
	defer c.evHandler("chain: ReplaceTip: completed: blk[%s]", block)

	var blocks []database.Block
	c.rw.RLock()
	{
		blocks = c.blocks
	}
	c.rw.RUnlock()

	n := len(blocks)
	if n < 2 {
		return fmt.Errorf("%w: genesis can't be replaced", database.ErrBadIndex)
	}

	oldTip := blocks[n-1]
	if block.Header.Number != oldTip.Header.Number {
		return fmt.Errorf("%w: got %d, exp %d", database.ErrBadIndex, block.Header.Number, oldTip.Header.Number)
	}

	if block.Hash() == oldTip.Hash() {
		return ErrDuplicateBlock
	}

	// Rebuild the state as of the parent on the side so a failure leaves the
	// current state in place.
	state, err := c.replay(blocks[:n-1])
	if err != nil {
		return err
	}

	if err := block.ValidateBlock(blocks[n-2], c.validateArgs(state)); err != nil {
		c.evHandler("chain: ReplaceTip: REJECTED: blk[%s]: %s", block, err)
		return err
	}

	if err := state.apply(block); err != nil {
		return err
	}

	c.replaceTip(blocks, oldTip, block, state)

	c.blockEvent(block)

	return nil
}

// =============================================================================

// addBlock takes the block and validates it against the consensus rules. If
// the block passes, the state of the chain is updated. The caller must
// hold mu.
func (c *Chain) addBlock(block database.Block) error {
	if c.HasBlock(block.Hash()) {
		return ErrDuplicateBlock
	}

	var prevBlock database.Block
	var args database.ValidateArgs
	c.rw.RLock()
	{
		prevBlock = c.blocks[len(c.blocks)-1]
		args = c.validateArgs(c.state)
	}
	c.rw.RUnlock()

	c.evHandler("chain: addBlock: validate: blk[%s]", block)

	if err := block.ValidateBlock(prevBlock, args); err != nil {
		c.evHandler("chain: addBlock: REJECTED: blk[%s]: %s", block, err)
		return err
	}

	c.evHandler("chain: addBlock: update ledger and remove from mempool")

	if err := c.commitBlock(block); err != nil {
		return err
	}

	// Send an event about this new block.
	c.blockEvent(block)

	return nil
}

// commitBlock applies the block to the state and removes its transactions
// from the pool. Pool admission reads the ledger and the pool together, so
// both change under the pool lock.
func (c *Chain) commitBlock(block database.Block) error {
	c.poolMu.Lock()
	defer c.poolMu.Unlock()

	c.rw.Lock()
	{
		if err := c.state.apply(block); err != nil {
			c.rw.Unlock()
			return err
		}

		c.blocks = append(c.blocks, block)
		c.byHash[block.Hash()] = block.Header.Number
	}
	c.rw.Unlock()

	for _, tx := range block.Values() {
		c.mempool.Delete(tx)
	}

	return nil
}

// replaceTip swaps in the new tip and its replayed state, then moves the
// displaced tip's transactions back to the pool under the pool lock.
func (c *Chain) replaceTip(blocks []database.Block, oldTip database.Block, block database.Block, state *ledgerState) {
	c.poolMu.Lock()
	defer c.poolMu.Unlock()

	n := len(blocks)

	c.rw.Lock()
	{
		c.blocks = append(blocks[:n-1:n-1], block)
		delete(c.byHash, oldTip.Hash())
		c.byHash[block.Hash()] = block.Header.Number
		c.state = state
	}
	c.rw.Unlock()

	for _, tx := range block.Values() {
		c.mempool.Delete(tx)
	}

	for _, tx := range oldTip.Values() {
		if tx.IsCoinbase() || state.isIncluded(tx.ID()) {
			continue
		}

		c.evHandler("chain: ReplaceTip: return tx[%s] to mempool", tx.ID())
		c.mempool.Upsert(tx)
	}
}

// blockEvent provides a specific event about a new block in the chain for
// application specific support.
func (c *Chain) blockEvent(block database.Block) {
	blockHeaderJSON, err := json.Marshal(block.Header)
	if err != nil {
		blockHeaderJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	blockTransJSON, err := json.Marshal(block.Values())
	if err != nil {
		blockTransJSON = []byte(fmt.Sprintf("%q", err.Error()))
	}

	c.evHandler(`viewer: block: {"hash":%q,"header":%s,"trans":%s}`, block.Hash(), string(blockHeaderJSON), string(blockTransJSON))
}
