package node

import (
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
)

// These methods implement the peer.Peer interface so nodes can be connected
// to each other in process.

// ID returns the unique id of the node.
func (n *Node) ID() string {
	return n.id
}

// Host returns the name the node was configured with.
func (n *Node) Host() string {
	return n.host
}

// DeliverTransaction hands a gossiped transaction to the node. With a worker
// the call only queues the transaction and never blocks the sender.
func (n *Node) DeliverTransaction(tx database.Tx) error {
	if n.Worker != nil {
		n.Worker.SignalDeliverTx(tx)
		return nil
	}

	return n.OnTransactionReceived(tx)
}

// DeliverBlock hands a gossiped block to the node. With a worker the call
// only queues the block and never blocks the sender.
func (n *Node) DeliverBlock(block database.Block) error {
	if n.Worker != nil {
		n.Worker.SignalDeliverBlock(block)
		return nil
	}

	return n.OnBlockReceived(block)
}

// QueryBlocks returns the blocks numbered from through to inclusive.
func (n *Node) QueryBlocks(from uint64, to uint64) ([]database.Block, error) {
	return n.chain.QueryBlocks(from, to), nil
}

// QueryStatus returns the status of the node.
func (n *Node) QueryStatus() peer.Status {
	return n.Status()
}

// Status returns the status of the node.
func (n *Node) Status() peer.Status {
	latest := n.chain.LatestBlock()

	return peer.Status{
		ID:                n.id,
		Host:              n.host,
		LatestBlockHash:   latest.Hash(),
		LatestBlockNumber: latest.Header.Number,
		KnownPeers:        n.peers.IDs(),
	}
}

var _ peer.Peer = (*Node)(nil)
