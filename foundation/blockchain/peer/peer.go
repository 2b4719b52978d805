// Package peer maintains the peer related information such as the set
// of known peers and their status.
package peer

import (
	"sync"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
)

// Peer represents a node in the network that can be gossiped with.
type Peer interface {
	ID() string
	Host() string
	DeliverTransaction(tx database.Tx) error
	DeliverBlock(block database.Block) error
	QueryBlocks(from uint64, to uint64) ([]database.Block, error)
	QueryStatus() Status
}

// =============================================================================

// Status represents information about the status of any given peer.
type Status struct {
	ID                string   `json:"id"`
	Host              string   `json:"host"`
	LatestBlockHash   string   `json:"latest_block_hash"`
	LatestBlockNumber uint64   `json:"latest_block_number"`
	KnownPeers        []string `json:"known_peers"`
}

// =============================================================================

// PeerSet represents the data representation to maintain a set of known
// peers in the order they were added.
type PeerSet struct {
	mu    sync.RWMutex
	set   map[string]Peer
	order []string
}

// NewPeerSet constructs a new info set to manage node peer information.
func NewPeerSet() *PeerSet {
	return &PeerSet{
		set: make(map[string]Peer),
	}
}

// Add adds a new node to the set.
func (ps *PeerSet) Add(peer Peer) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if _, exists := ps.set[peer.ID()]; exists {
		return false
	}

	ps.set[peer.ID()] = peer
	ps.order = append(ps.order, peer.ID())

	return true
}

// Remove removes a node from the set.
func (ps *PeerSet) Remove(id string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if _, exists := ps.set[id]; !exists {
		return
	}

	delete(ps.set, id)
	for i, peerID := range ps.order {
		if peerID == id {
			ps.order = append(ps.order[:i:i], ps.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of known peers.
func (ps *PeerSet) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return len(ps.set)
}

// Copy returns a list of the known peers except the one matching the
// specified id.
func (ps *PeerSet) Copy(excludeID string) []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	var peers []Peer
	for _, id := range ps.order {
		if id != excludeID {
			peers = append(peers, ps.set[id])
		}
	}

	return peers
}

// IDs returns the ids of the known peers.
func (ps *PeerSet) IDs() []string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	ids := make([]string, len(ps.order))
	copy(ids, ps.order)
	return ids
}
