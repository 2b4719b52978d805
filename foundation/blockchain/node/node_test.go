package node_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/chain"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/node"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
)

const (
	walletECDSA = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	minerECDSA  = "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"
	recipient   = "0xbEE6ACE826eC3DE1B6349888B9151B92522F7F76"
)

var (
	seq      atomic.Uint64
	mineTime = time.UnixMilli(int64(database.GenesisTimeStamp) + 60_000)
)

// =============================================================================

func Test_SyncGossip(t *testing.T) {
	nodes := connectAll(newNode(t, "a", nil), newNode(t, "b", nil), newNode(t, "c", nil))
	wallet := newSigner(t, walletECDSA)

	tx := transfer(t, wallet, 10, 1)
	if err := nodes[0].SubmitTransaction(tx); err != nil {
		t.Fatalf("Should be able to submit the transaction: %s", err)
	}

	for _, n := range nodes {
		if !n.Chain().HasTransaction(tx.ID()) {
			t.Fatalf("Should have gossiped the transaction to %s.", n.Host())
		}
	}

	if err := nodes[1].SubmitTransaction(tx); !errors.Is(err, chain.ErrDuplicateTransaction) {
		t.Fatalf("Should not be able to submit the transaction twice, got: %v", err)
	}

	block, err := nodes[0].MineNewBlock(context.Background())
	if err != nil {
		t.Fatalf("Should be able to mine a block: %s", err)
	}

	for _, n := range nodes {
		if got := n.Chain().LatestBlock().Hash(); got != block.Hash() {
			t.Fatalf("Should have the mined block as the tip on %s, got %s", n.Host(), got)
		}

		if n.PendingCount() != 0 {
			t.Fatalf("Should have an empty pool on %s, got %d", n.Host(), n.PendingCount())
		}

		if got := n.Chain().GetBalance(recipient); got != 10 {
			t.Fatalf("Should credit the recipient on %s, got %v", n.Host(), got)
		}
	}
}

func Test_ForkTieBreak(t *testing.T) {
	early := newNode(t, "early", func() time.Time { return mineTime })
	late := newNode(t, "late", func() time.Time { return mineTime.Add(2 * time.Second) })
	wallet := newSigner(t, walletECDSA)

	if err := early.SubmitTransaction(transfer(t, wallet, 10, 1)); err != nil {
		t.Fatalf("Should be able to submit the transaction: %s", err)
	}

	lateTx := transfer(t, wallet, 20, 1)
	if err := late.SubmitTransaction(lateTx); err != nil {
		t.Fatalf("Should be able to submit the transaction: %s", err)
	}

	earlyBlock, err := early.MineNewBlock(context.Background())
	if err != nil {
		t.Fatalf("Should be able to mine a block: %s", err)
	}

	lateBlock, err := late.MineNewBlock(context.Background())
	if err != nil {
		t.Fatalf("Should be able to mine a block: %s", err)
	}

	if err := early.OnBlockReceived(lateBlock); err != nil {
		t.Fatalf("Should ignore the losing block: %s", err)
	}

	if early.Chain().LatestBlock().Hash() != earlyBlock.Hash() {
		t.Fatalf("Should keep the earlier block as the tip.")
	}

	if err := late.OnBlockReceived(earlyBlock); err != nil {
		t.Fatalf("Should accept the winning block: %s", err)
	}

	if late.Chain().LatestBlock().Hash() != earlyBlock.Hash() {
		t.Fatalf("Should replace the tip with the earlier block.")
	}

	if !late.Chain().HasTransaction(lateTx.ID()) || late.PendingCount() != 1 {
		t.Fatalf("Should return the displaced transaction to the pool.")
	}

	if got := late.Chain().GetBalance(recipient); got != 10 {
		t.Fatalf("Should rebuild the ledger from the winning block, got %v", got)
	}

	if !late.Chain().IsValidChain() {
		t.Fatalf("Should have a valid chain after replacing the tip.")
	}
}

func Test_GapFill(t *testing.T) {
	source := newNode(t, "source", nil)
	behind := newNode(t, "behind", nil)
	behind.Connect(source)

	blocks := mineBlocks(t, source, 3)

	if err := behind.OnBlockReceived(blocks[2]); err != nil {
		t.Fatalf("Should be able to fill the gap from the peer: %s", err)
	}

	if got := behind.Chain().LatestBlock().Hash(); got != blocks[2].Hash() {
		t.Fatalf("Should catch up to the received block, got %s", got)
	}

	if len(behind.Chain().GetChain()) != 4 {
		t.Fatalf("Should have every block, got %d", len(behind.Chain().GetChain()))
	}
}

func Test_Orphans(t *testing.T) {
	source := newNode(t, "source", nil)
	isolated := newNode(t, "isolated", nil)

	blocks := mineBlocks(t, source, 2)

	if err := isolated.OnBlockReceived(blocks[1]); !errors.Is(err, node.ErrBlockGap) {
		t.Fatalf("Should not be able to fill the gap without peers, got: %v", err)
	}

	if isolated.Orphans() != 1 {
		t.Fatalf("Should hold the block until its parent arrives, got %d", isolated.Orphans())
	}

	if err := isolated.OnBlockReceived(blocks[0]); err != nil {
		t.Fatalf("Should accept the parent: %s", err)
	}

	if got := isolated.Chain().LatestBlock().Hash(); got != blocks[1].Hash() {
		t.Fatalf("Should connect the held block, got %s", got)
	}

	if isolated.Orphans() != 0 {
		t.Fatalf("Should not hold any blocks, got %d", isolated.Orphans())
	}
}

func Test_RejectBlocks(t *testing.T) {
	early := newNode(t, "early", func() time.Time { return mineTime })
	late := newNode(t, "late", func() time.Time { return mineTime.Add(2 * time.Second) })

	earlyBlocks := mineBlocks(t, early, 1)
	lateBlocks := mineBlocks(t, late, 2)

	if err := late.OnBlockReceived(earlyBlocks[0]); !errors.Is(err, node.ErrForkUnresolved) {
		t.Fatalf("Should not be able to resolve a fork behind the tip, got: %v", err)
	}

	if err := late.OnBlockReceived(lateBlocks[1]); err != nil {
		t.Fatalf("Should ignore a known block: %s", err)
	}

	if err := late.OnBlockReceived(database.Genesis()); err != nil {
		t.Fatalf("Should ignore the known genesis block: %s", err)
	}

	bd := database.NewBlockData(lateBlocks[0])
	bd.Header.Nonce++
	tampered, err := database.ToBlock(bd)
	if err != nil {
		t.Fatalf("Should be able to convert block data: %s", err)
	}

	fresh := newNode(t, "fresh", nil)
	if err := fresh.OnBlockReceived(tampered); !errors.Is(err, database.ErrInvalidBlock) {
		t.Fatalf("Should reject a tampered block, got: %v", err)
	}

	if fresh.Chain().LatestBlock().Header.Number != 0 {
		t.Fatalf("Should keep the tip after a rejected block.")
	}
}

// =============================================================================

func testGenesis() genesis.Genesis {
	g := genesis.Default()
	g.Difficulty = 1

	return g.WithBalances(map[string]float64{
		"0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4": 100,
	})
}

func newNode(t *testing.T, host string, now func() time.Time) *node.Node {
	t.Helper()

	c, err := chain.New(chain.Config{
		Genesis: testGenesis(),
		MinerID: database.AccountID(newSigner(t, minerECDSA).Address()),
		Now:     now,
	})
	if err != nil {
		t.Fatalf("Should be able to construct a chain: %s", err)
	}

	n, err := node.New(node.Config{
		Host:  host,
		Chain: c,
	})
	if err != nil {
		t.Fatalf("Should be able to construct a node: %s", err)
	}

	return n
}

func connectAll(nodes ...*node.Node) []*node.Node {
	for _, n := range nodes {
		for _, p := range nodes {
			n.Connect(p)
		}
	}
	return nodes
}

// mineBlocks mines count blocks on the node, each holding one transfer.
func mineBlocks(t *testing.T, n *node.Node, count int) []database.Block {
	t.Helper()

	wallet := newSigner(t, walletECDSA)

	var blocks []database.Block
	for range count {
		if err := n.SubmitTransaction(transfer(t, wallet, 1, 1)); err != nil {
			t.Fatalf("Should be able to submit the transaction: %s", err)
		}

		block, err := n.MineNewBlock(context.Background())
		if err != nil {
			t.Fatalf("Should be able to mine a block: %s", err)
		}
		blocks = append(blocks, block)
	}

	return blocks
}

func newSigner(t *testing.T, hexKey string) *signature.KeySigner {
	t.Helper()

	signer, err := signature.HexKeySigner(hexKey)
	if err != nil {
		t.Fatalf("Should be able to construct a signer: %s", err)
	}

	return signer
}

// transfer constructs a signed transfer to the recipient with a unique
// timestamp so repeated transfers have different ids.
func transfer(t *testing.T, signer *signature.KeySigner, amount float64, fee float64) database.Tx {
	t.Helper()

	tx, err := database.NewTransfer(signer, recipient, amount, fee)
	if err != nil {
		t.Fatalf("Should be able to construct a transfer: %s", err)
	}
	tx.TimeStamp += seq.Add(1)

	tx, err = tx.Sign(signer)
	if err != nil {
		t.Fatalf("Should be able to sign the transfer: %s", err)
	}

	return tx
}
