package node

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// MineNewBlock mines the pending transactions into a new block and gossips
// the block to the peers.
func (n *Node) MineNewBlock(ctx context.Context) (database.Block, error) {
	block, err := n.chain.Mine(ctx)
	if err != nil {
		return database.Block{}, err
	}

	n.evHandler("node: MineNewBlock: host[%s]: MINED: blk[%s]", n.host, block)

	n.BroadcastBlock(block)

	return block, nil
}

// BroadcastBlock delivers the block to every connected peer. Failures are
// logged and never stop the fan out.
func (n *Node) BroadcastBlock(block database.Block) {
	for _, p := range n.peers.Copy(n.id) {
		if err := p.DeliverBlock(block); err != nil {
			n.evHandler("node: BroadcastBlock: host[%s]: peer[%s]: WARNING: %s", n.host, p.Host(), err)
		}
	}
}

// OnBlockReceived handles a block gossiped by a peer.
//
//	A block already in the chain is ignored.
//	A block extending the tip is validated and appended.
//	A block beyond the tip triggers a request for the missing blocks.
//	A block at the tip height competes with the tip: the earlier timestamp
//	wins, then the smaller hash.
//	A block below the tip can't be resolved.
//
// Blocks this node accepts are relayed to the peers.
func (n *Node) OnBlockReceived(block database.Block) error {
	n.mu.Lock()
	accepted, err := n.processBlock(block)
	n.mu.Unlock()

	if err != nil {
		n.evHandler("node: OnBlockReceived: host[%s]: REJECTED: blk[%s]: %s", n.host, block, err)
	}

	for _, b := range accepted {
		n.BroadcastBlock(b)
	}

	if len(accepted) > 0 {
		n.signalMining()
	}

	return err
}

// RequestMissingBlocks asks the peers for the blocks numbered from through to
// and appends them in order. Peers are tried one at a time until the chain
// reaches to. It returns the blocks that were appended.
func (n *Node) RequestMissingBlocks(from uint64, to uint64) ([]database.Block, error) {
	n.evHandler("node: RequestMissingBlocks: host[%s]: blocks[%d-%d]", n.host, from, to)

	var appended []database.Block
	for _, p := range n.peers.Copy(n.id) {
		if n.chain.LatestBlock().Header.Number >= to {
			break
		}

		next := n.chain.LatestBlock().Header.Number + 1
		blocks, err := p.QueryBlocks(next, to)
		if err != nil {
			n.evHandler("node: RequestMissingBlocks: host[%s]: peer[%s]: WARNING: %s", n.host, p.Host(), err)
			continue
		}

		for _, block := range blocks {
			if err := n.chain.AddBlock(block); err != nil {
				n.evHandler("node: RequestMissingBlocks: host[%s]: peer[%s]: blk[%s]: WARNING: %s", n.host, p.Host(), block, err)
				break
			}
			appended = append(appended, block)
		}
	}

	if latest := n.chain.LatestBlock().Header.Number; latest < to {
		return appended, fmt.Errorf("%w: have %d, need %d", ErrBlockGap, latest, to)
	}

	return appended, nil
}

// =============================================================================

// processBlock applies the receive rules and returns the blocks that were
// added to the chain. The caller must hold mu.
func (n *Node) processBlock(block database.Block) ([]database.Block, error) {
	if n.chain.HasBlock(block.Hash()) {
		n.evHandler("node: OnBlockReceived: host[%s]: ignore known blk[%s]", n.host, block)
		return nil, nil
	}

	if block.Header.Number == 0 {
		return nil, fmt.Errorf("%w: genesis can't be received", database.ErrBadIndex)
	}

	tip := n.chain.LatestBlock()

	switch {
	case block.Header.Number == tip.Header.Number+1:
		n.chain.CancelMining()

		err := n.chain.AddBlock(block)
		if err == nil {
			return n.connectOrphans([]database.Block{block}), nil
		}

		// A local mining operation may have appended a block at the same
		// height while this one waited.
		if errors.Is(err, database.ErrBadIndex) && n.chain.LatestBlock().Header.Number == block.Header.Number {
			return n.resolveFork(block)
		}

		return nil, err

	case block.Header.Number > tip.Header.Number+1:
		n.chain.CancelMining()

		appended, err := n.RequestMissingBlocks(tip.Header.Number+1, block.Header.Number-1)
		if err != nil {
			n.holdOrphan(block)
			return appended, err
		}

		if err := n.chain.AddBlock(block); err != nil {
			return appended, err
		}

		return n.connectOrphans(append(appended, block)), nil

	case block.Header.Number == tip.Header.Number:
		return n.resolveFork(block)

	default:
		return nil, fmt.Errorf("%w: blk[%d] is behind tip[%d]", ErrForkUnresolved, block.Header.Number, tip.Header.Number)
	}
}

// resolveFork applies the tie-break between the block and the tip at the
// same height. The loser is discarded even if it is the local tip.
func (n *Node) resolveFork(block database.Block) ([]database.Block, error) {
	tip := n.chain.LatestBlock()

	if !wins(block, tip) {
		n.evHandler("node: resolveFork: host[%s]: keep tip[%s] over blk[%s]", n.host, tip, block)
		return nil, nil
	}

	n.evHandler("node: resolveFork: host[%s]: replace tip[%s] with blk[%s]", n.host, tip, block)

	n.chain.CancelMining()

	if err := n.chain.ReplaceTip(block); err != nil {
		if errors.Is(err, database.ErrBadPrevHash) {
			return nil, fmt.Errorf("%w: %w", ErrForkUnresolved, err)
		}
		return nil, err
	}

	return n.connectOrphans([]database.Block{block}), nil
}

// wins reports whether block a beats block b at the same height.
func wins(a database.Block, b database.Block) bool {
	if a.Header.TimeStamp != b.Header.TimeStamp {
		return a.Header.TimeStamp < b.Header.TimeStamp
	}
	return a.Hash() < b.Hash()
}

// holdOrphan keeps a block whose parent is missing. When the set is full
// the oldest orphan is dropped.
func (n *Node) holdOrphan(block database.Block) {
	if _, exists := n.orphans[block.Hash()]; exists {
		return
	}

	if len(n.order) >= maxOrphans {
		oldest := n.order[0]
		n.order = n.order[1:]
		delete(n.orphans, oldest)
	}

	n.orphans[block.Hash()] = block
	n.order = append(n.order, block.Hash())

	n.evHandler("node: holdOrphan: host[%s]: blk[%s]: orphans[%d]", n.host, block, len(n.orphans))
}

// connectOrphans appends any held blocks that extend the tip. It returns the
// blocks passed in followed by the orphans that were connected.
func (n *Node) connectOrphans(accepted []database.Block) []database.Block {
	for {
		tip := n.chain.LatestBlock()

		var next database.Block
		var found bool
		for _, hash := range n.order {
			orphan := n.orphans[hash]
			if orphan.Header.Number == tip.Header.Number+1 && orphan.Header.PrevBlockHash == tip.Hash() {
				next, found = orphan, true
				break
			}
		}

		if !found {
			n.pruneOrphans(tip.Header.Number)
			return accepted
		}

		n.removeOrphan(next.Hash())

		if err := n.chain.AddBlock(next); err != nil {
			n.evHandler("node: connectOrphans: host[%s]: blk[%s]: WARNING: %s", n.host, next, err)
			continue
		}

		n.evHandler("node: connectOrphans: host[%s]: connected blk[%s]", n.host, next)
		accepted = append(accepted, next)
	}
}

// pruneOrphans drops held blocks that can no longer extend the chain.
func (n *Node) pruneOrphans(tipNumber uint64) {
	for _, hash := range append([]string(nil), n.order...) {
		if n.orphans[hash].Header.Number <= tipNumber {
			n.removeOrphan(hash)
		}
	}
}

func (n *Node) removeOrphan(hash string) {
	delete(n.orphans, hash)
	for i, h := range n.order {
		if h == hash {
			n.order = append(n.order[:i:i], n.order[i+1:]...)
			return
		}
	}
}

// Orphans returns the number of blocks held waiting for their parent.
func (n *Node) Orphans() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.orphans)
}

// Sync asks the peers for their status and requests the blocks this node is
// missing when a peer is ahead. Blocks that don't link to the local chain are
// logged and skipped.
func (n *Node) Sync() error {
	var highest uint64
	for _, p := range n.peers.Copy(n.id) {
		status := p.QueryStatus()
		if status.LatestBlockNumber > highest {
			highest = status.LatestBlockNumber
		}
	}

	n.mu.Lock()
	tip := n.chain.LatestBlock().Header.Number
	if highest <= tip {
		n.mu.Unlock()
		return nil
	}

	n.evHandler("node: Sync: host[%s]: tip[%d]: peers[%d]", n.host, tip, highest)

	appended, err := n.RequestMissingBlocks(tip+1, highest)
	accepted := n.connectOrphans(appended)
	n.mu.Unlock()

	if len(accepted) > 0 {
		n.signalMining()
	}

	return err
}
