package node

import (
	"errors"

	"github.com/ardanlabs/powchain/foundation/blockchain/chain"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// SubmitTransaction accepts a transaction from a wallet. It is added to the
// local pool and gossiped to the peers. Every rejection is returned.
func (n *Node) SubmitTransaction(tx database.Tx) error {
	n.evHandler("node: SubmitTransaction: host[%s]: tx[%s]", n.host, tx.ID())

	if _, err := n.chain.AddTransactionToPool(tx); err != nil {
		return err
	}

	n.BroadcastTransaction(tx)
	n.signalMining()

	return nil
}

// OnTransactionReceived handles a transaction gossiped by a peer. A
// transaction this node already knows is ignored, which ends the gossip.
// A new valid transaction is relayed to the peers.
func (n *Node) OnTransactionReceived(tx database.Tx) error {
	pending, err := n.chain.AddTransactionToPool(tx)
	if err != nil {
		if errors.Is(err, chain.ErrDuplicateTransaction) {
			return nil
		}

		n.evHandler("node: OnTransactionReceived: host[%s]: REJECTED: tx[%s]: %s", n.host, tx.ID(), err)
		return err
	}

	n.evHandler("node: OnTransactionReceived: host[%s]: tx[%s]: pending[%d]", n.host, tx.ID(), pending)

	n.BroadcastTransaction(tx)
	n.signalMining()

	return nil
}

// BroadcastTransaction delivers the transaction to every connected peer.
// Failures are logged and never stop the fan out.
func (n *Node) BroadcastTransaction(tx database.Tx) {
	for _, p := range n.peers.Copy(n.id) {
		if err := p.DeliverTransaction(tx); err != nil {
			n.evHandler("node: BroadcastTransaction: host[%s]: peer[%s]: WARNING: %s", n.host, p.Host(), err)
		}
	}
}
