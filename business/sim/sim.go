// Package sim builds an in-process network of nodes and drives wallet
// traffic through it.
package sim

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ardanlabs/powchain/foundation/blockchain/chain"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/node"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/ardanlabs/powchain/foundation/blockchain/worker"
)

// Config represents the configuration required to build a network.
type Config struct {
	Genesis        genesis.Genesis
	Miners         []*signature.KeySigner
	SelectStrategy string
	PoolThreshold  int

	// EvHandler returns the event handler for the node with the host name.
	EvHandler func(host string) database.EventHandler

	// Workers runs a worker for every node so gossip and mining happen in
	// the background.
	Workers bool
}

// Network is a set of fully connected nodes running in this process.
type Network struct {
	nodes  []*node.Node
	byHost map[string]*node.Node
}

// NewNetwork constructs one node per miner and connects every node to every
// other node.
func NewNetwork(cfg Config) (*Network, error) {
	if len(cfg.Miners) == 0 {
		return nil, errors.New("sim: at least one miner is required")
	}

	net := Network{
		byHost: make(map[string]*node.Node, len(cfg.Miners)),
	}

	for i, miner := range cfg.Miners {
		host := fmt.Sprintf("node%d", i)

		var ev database.EventHandler
		if cfg.EvHandler != nil {
			ev = cfg.EvHandler(host)
		}

		c, err := chain.New(chain.Config{
			Genesis:        cfg.Genesis,
			MinerID:        database.AccountID(miner.Address()),
			SelectStrategy: cfg.SelectStrategy,
			EvHandler:      ev,
		})
		if err != nil {
			return nil, fmt.Errorf("constructing chain for %s: %w", host, err)
		}

		n, err := node.New(node.Config{
			Host:          host,
			Chain:         c,
			PoolThreshold: cfg.PoolThreshold,
			EvHandler:     ev,
		})
		if err != nil {
			return nil, fmt.Errorf("constructing node %s: %w", host, err)
		}

		net.nodes = append(net.nodes, n)
		net.byHost[host] = n
	}

	for _, n := range net.nodes {
		for _, p := range net.nodes {
			n.Connect(p)
		}
	}

	if cfg.Workers {
		for _, n := range net.nodes {
			var ev database.EventHandler
			if cfg.EvHandler != nil {
				ev = cfg.EvHandler(n.Host())
			}
			worker.Run(n, ev)
		}
	}

	return &net, nil
}

// Shutdown stops the background work of every node.
func (net *Network) Shutdown() {
	for _, n := range net.nodes {
		n.Shutdown()
	}
}

// Nodes returns the nodes in the order they were built.
func (net *Network) Nodes() []*node.Node {
	nodes := make([]*node.Node, len(net.nodes))
	copy(nodes, net.nodes)
	return nodes
}

// Node returns the node with the host name.
func (net *Network) Node(host string) (*node.Node, bool) {
	n, exists := net.byHost[host]
	return n, exists
}

// Hosts returns the host names of the nodes in sorted order.
func (net *Network) Hosts() []string {
	hosts := make([]string, 0, len(net.byHost))
	for host := range net.byHost {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)
	return hosts
}

// Converged reports whether every node has the same tip and an empty pool.
func (net *Network) Converged() bool {
	tip := net.nodes[0].Chain().LatestBlock().Hash()
	for _, n := range net.nodes {
		if n.Chain().LatestBlock().Hash() != tip || n.PendingCount() != 0 {
			return false
		}
	}
	return true
}
