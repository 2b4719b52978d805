// Package node connects a chain to its peers. It gossips transactions and
// blocks, fills gaps from peers and resolves forks at the tip.
package node

import (
	"errors"
	"sync"

	"github.com/ardanlabs/powchain/foundation/blockchain/chain"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/peer"
	"github.com/google/uuid"
)

// Set of errors returned by the node.
var (
	ErrForkUnresolved = errors.New("fork unresolved")
	ErrBlockGap       = errors.New("block gap")
)

// maxOrphans is the number of blocks held while waiting for their parent.
const maxOrphans = 32

// =============================================================================

// Worker interface represents the behavior required to be implemented by any
// package providing support for mining and delivery of gossip messages.
type Worker interface {
	Shutdown()
	SignalStartMining()
	SignalDeliverTx(tx database.Tx)
	SignalDeliverBlock(block database.Block)
}

// Config represents the configuration required to start a node.
type Config struct {
	Host          string
	Chain         *chain.Chain
	PoolThreshold int
	EvHandler     database.EventHandler
}

// Node represents a peer in the network that owns a chain.
type Node struct {
	id            string
	host          string
	chain         *chain.Chain
	peers         *peer.PeerSet
	poolThreshold int
	evHandler     database.EventHandler

	// mu serializes the processing of received blocks.
	mu      sync.Mutex
	orphans map[string]database.Block
	order   []string

	// Worker is assigned by worker.Run. Without a worker, deliveries are
	// processed on the caller's goroutine and mining only happens through
	// MineNewBlock.
	Worker Worker
}

// New constructs a node for the chain.
func New(cfg Config) (*Node, error) {
	if cfg.Chain == nil {
		return nil, errors.New("node: chain is required")
	}

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	threshold := cfg.PoolThreshold
	if threshold <= 0 {
		threshold = cfg.Chain.Genesis().PoolThreshold
	}
	if threshold <= 0 {
		threshold = 1
	}

	id := uuid.NewString()
	host := cfg.Host
	if host == "" {
		host = id
	}

	n := Node{
		id:            id,
		host:          host,
		chain:         cfg.Chain,
		peers:         peer.NewPeerSet(),
		poolThreshold: threshold,
		evHandler:     ev,
		orphans:       make(map[string]database.Block),
	}

	return &n, nil
}

// Shutdown stops the worker if one was assigned.
func (n *Node) Shutdown() {
	n.evHandler("node: Shutdown: started: host[%s]", n.host)
	defer n.evHandler("node: Shutdown: completed: host[%s]", n.host)

	if n.Worker != nil {
		n.Worker.Shutdown()
	}
	n.chain.CancelMining()
}

// Chain returns the chain owned by the node.
func (n *Node) Chain() *chain.Chain {
	return n.chain
}

// Connect adds the peer to the set this node gossips with. The relation is
// one way, connect both nodes to each other for a symmetric link.
func (n *Node) Connect(p peer.Peer) bool {
	if p.ID() == n.id {
		return false
	}

	if n.peers.Add(p) {
		n.evHandler("node: Connect: host[%s]: peer[%s]", n.host, p.Host())
		return true
	}

	return false
}

// Disconnect removes the peer from the set this node gossips with.
func (n *Node) Disconnect(id string) {
	n.peers.Remove(id)
}

// KnownPeers returns the peers this node gossips with.
func (n *Node) KnownPeers() []peer.Peer {
	return n.peers.Copy(n.id)
}

// PendingCount returns the number of transactions waiting to be mined.
func (n *Node) PendingCount() int {
	return n.chain.PendingCount()
}

// ShouldMine reports whether the pool has reached the mining threshold.
func (n *Node) ShouldMine() bool {
	return n.chain.PendingCount() >= n.poolThreshold
}

// signalMining asks the worker to mine if the pool has reached the
// threshold.
func (n *Node) signalMining() {
	if n.Worker != nil && n.ShouldMine() {
		n.Worker.SignalStartMining()
	}
}
