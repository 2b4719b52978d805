package chain_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/chain"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
)

const (
	walletECDSA = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	minerECDSA  = "8dc79feefd3b86e2f9991def0e5ccd9a5128e104682407b308594bc1032ac7f0"
	otherECDSA  = "9f332e3700d8fc2446eaf6d15034cf96e0c2745e40353deef032a5dbf1dfed93"
	recipient   = "0xbEE6ACE826eC3DE1B6349888B9151B92522F7F76"
)

var seq atomic.Uint64

// =============================================================================

func Test_GenesisDeterminism(t *testing.T) {
	c1 := newChain(t, 100, nil)
	c2 := newChain(t, 100, nil)

	if c1.LatestBlock().Hash() != c2.LatestBlock().Hash() {
		t.Fatalf("Should have the same genesis hash on every chain.")
	}

	if len(c1.GetChain()) != 1 {
		t.Fatalf("Should start with only the genesis block.")
	}

	if !c1.IsValidChain() {
		t.Fatalf("Should have a valid chain with only genesis.")
	}
}

func Test_BasicMine(t *testing.T) {
	var events []string
	var mu sync.Mutex
	ev := func(v string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		if strings.HasPrefix(v, "viewer:") {
			events = append(events, v)
		}
	}

	c := newChain(t, 100, ev)
	wallet := newSigner(t, walletECDSA)
	miner := newSigner(t, minerECDSA)

	tx := transfer(t, wallet, recipient, 10, 1)
	if _, err := c.AddTransactionToPool(tx); err != nil {
		t.Fatalf("Should be able to add the transaction to the pool: %s", err)
	}

	block, err := c.Mine(context.Background())
	if err != nil {
		t.Fatalf("Should be able to mine a block: %s", err)
	}

	if !strings.HasPrefix(block.Hash(), "0") {
		t.Fatalf("Should have a hash that meets the difficulty, got %s", block.Hash())
	}

	if got := c.GetBalance(database.AccountID(wallet.Address())); got != 89 {
		t.Fatalf("Should debit amount plus fee from the wallet, got %v", got)
	}

	if got := c.GetBalance(recipient); got != 10 {
		t.Fatalf("Should credit the recipient, got %v", got)
	}

	if got := c.GetBalance(database.AccountID(miner.Address())); got != 51 {
		t.Fatalf("Should credit the miner the reward plus fees, got %v", got)
	}

	if c.PendingCount() != 0 {
		t.Fatalf("Should remove the mined transaction from the pool.")
	}

	if len(c.GetChain()) != 2 || c.LatestBlock().Hash() != block.Hash() {
		t.Fatalf("Should have the mined block as the tip.")
	}

	if !c.IsValidChain() {
		t.Fatalf("Should have a valid chain after mining.")
	}

	if h := c.GetAddressHistory(database.AccountID(wallet.Address())); len(h) != 1 || !h[0].Equals(tx) {
		t.Fatalf("Should record the transfer for the sender, got %d", len(h))
	}

	if h := c.GetAddressHistory(recipient); len(h) != 1 || !h[0].Equals(tx) {
		t.Fatalf("Should record the transfer for the recipient, got %d", len(h))
	}

	if h := c.GetAddressHistory(database.AccountID(miner.Address())); len(h) != 1 || !h[0].IsCoinbase() {
		t.Fatalf("Should record the coinbase for the miner, got %d", len(h))
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 {
		t.Fatalf("Should emit one block event, got %d", len(events))
	}
}

func Test_InsufficientFunds(t *testing.T) {
	c := newChain(t, 5, nil)
	wallet := newSigner(t, walletECDSA)

	tx := transfer(t, wallet, recipient, 10, 1)
	if _, err := c.AddTransactionToPool(tx); !errors.Is(err, database.ErrInsufficientBalance) {
		t.Fatalf("Should reject an unaffordable transfer, got: %v", err)
	}

	if c.PendingCount() != 0 {
		t.Fatalf("Should not add the transfer to the pool.")
	}

	if _, err := c.Mine(context.Background()); !errors.Is(err, chain.ErrNoTransactions) {
		t.Fatalf("Should not mine without transactions, got: %v", err)
	}

	if len(c.GetChain()) != 1 {
		t.Fatalf("Should leave the chain length unchanged.")
	}
}

func Test_PendingAffordability(t *testing.T) {
	c := newChain(t, 20, nil)
	wallet := newSigner(t, walletECDSA)

	if _, err := c.AddTransactionToPool(transfer(t, wallet, recipient, 10, 1)); err != nil {
		t.Fatalf("Should be able to add the first transfer: %s", err)
	}

	if _, err := c.AddTransactionToPool(transfer(t, wallet, recipient, 10, 1)); !errors.Is(err, database.ErrInsufficientBalance) {
		t.Fatalf("Should count pending transfers against the balance, got: %v", err)
	}
}

func Test_RejectTransactions(t *testing.T) {
	c := newChain(t, 100, nil)
	wallet := newSigner(t, walletECDSA)

	tx := transfer(t, wallet, recipient, 10, 1)

	type table struct {
		name string
		tx   database.Tx
		err  error
	}

	unsigned := tx
	unsigned.Signature = nil

	tampered := tx
	tampered.Amount = 1

	tt := []table{
		{name: "unsigned", tx: unsigned, err: database.ErrInvalidSignature},
		{name: "tampered", tx: tampered, err: database.ErrInvalidSignature},
		{name: "coinbase", tx: database.NewCoinbase(recipient, 50, 1), err: database.ErrInvalidParameters},
		{name: "negative-amount", tx: signedValues(t, wallet, -50, 0), err: database.ErrInvalidParameters},
		{name: "zero-amount", tx: signedValues(t, wallet, 0, 1), err: database.ErrInvalidParameters},
		{name: "negative-fee", tx: signedValues(t, wallet, 10, -5), err: database.ErrInvalidParameters},
		{name: "nan-amount", tx: signedValues(t, wallet, math.NaN(), 0), err: database.ErrInvalidParameters},
		{name: "inf-fee", tx: signedValues(t, wallet, 10, math.Inf(1)), err: database.ErrInvalidParameters},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			if _, err := c.AddTransactionToPool(tst.tx); !errors.Is(err, tst.err) {
				t.Fatalf("Should get back %v, got: %v", tst.err, err)
			}
		}

		t.Run(tst.name, f)
	}

	if c.PendingCount() != 0 {
		t.Fatalf("Should not pool any rejected transaction.")
	}
}

func Test_MineAfterBadValues(t *testing.T) {
	c := newChain(t, 100, nil)
	wallet := newSigner(t, walletECDSA)

	for _, bad := range []database.Tx{
		signedValues(t, wallet, math.NaN(), 0),
		signedValues(t, wallet, -50, 0),
	} {
		if _, err := c.AddTransactionToPool(bad); err == nil {
			t.Fatalf("Should not pool a transfer with bad values: %s", bad)
		}
	}

	if _, err := c.AddTransactionToPool(transfer(t, wallet, recipient, 1, 0)); err != nil {
		t.Fatalf("Should be able to add the transaction to the pool: %s", err)
	}

	for i := range 2 {
		if _, err := c.Mine(context.Background()); err != nil && !errors.Is(err, chain.ErrNoTransactions) {
			t.Fatalf("Should be able to mine on attempt %d: %s", i, err)
		}
	}

	if len(c.GetChain()) != 2 {
		t.Fatalf("Should have mined the valid transfer, got %d blocks", len(c.GetChain()))
	}

	if got := c.GetBalance(recipient); got != 1 {
		t.Fatalf("Should credit the recipient, got %v", got)
	}

	if got := c.GetBalance(database.AccountID(wallet.Address())); got != 99 {
		t.Fatalf("Should debit the wallet, got %v", got)
	}

	if !c.IsValidChain() {
		t.Fatalf("Should have a valid chain.")
	}
}

func Test_AdmissionWhileMining(t *testing.T) {
	const transfers = 40

	// The balance covers every transfer exactly, so no admission can fail
	// no matter when blocks land.
	c := newChain(t, transfers*2, nil)
	wallet := newSigner(t, walletECDSA)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			c.Mine(context.Background())
		}
	}()

	for i := range transfers {
		if _, err := c.AddTransactionToPool(transfer(t, wallet, recipient, 2, 0)); err != nil {
			close(done)
			wg.Wait()
			t.Fatalf("Should be able to add transfer %d while mining: %s", i, err)
		}
	}

	close(done)
	wg.Wait()

	for c.PendingCount() > 0 {
		if _, err := c.Mine(context.Background()); err != nil {
			t.Fatalf("Should be able to mine the remaining transfers: %s", err)
		}
	}

	if got := c.GetBalance(database.AccountID(wallet.Address())); got != 0 {
		t.Fatalf("Should spend the whole balance, got %v", got)
	}

	if got := c.GetBalance(recipient); got != transfers*2 {
		t.Fatalf("Should credit every transfer, got %v", got)
	}
}

func Test_DuplicateTransaction(t *testing.T) {
	c := newChain(t, 100, nil)
	wallet := newSigner(t, walletECDSA)

	tx := transfer(t, wallet, recipient, 10, 1)
	if _, err := c.AddTransactionToPool(tx); err != nil {
		t.Fatalf("Should be able to add the transaction to the pool: %s", err)
	}

	if _, err := c.AddTransactionToPool(tx); !errors.Is(err, chain.ErrDuplicateTransaction) {
		t.Fatalf("Should reject a pending duplicate, got: %v", err)
	}

	if _, err := c.Mine(context.Background()); err != nil {
		t.Fatalf("Should be able to mine a block: %s", err)
	}

	if _, err := c.AddTransactionToPool(tx); !errors.Is(err, chain.ErrDuplicateTransaction) {
		t.Fatalf("Should reject a replay of an included transaction, got: %v", err)
	}

	if !c.HasTransaction(tx.ID()) {
		t.Fatalf("Should know the included transaction.")
	}
}

func Test_Halving(t *testing.T) {
	g := testGenesis(100)
	g.HalvingInterval = 2

	c := newChainWithGenesis(t, g, nil)
	wallet := newSigner(t, walletECDSA)
	miner := database.AccountID(newSigner(t, minerECDSA).Address())

	for i := 1; i <= 2; i++ {
		if c.BlockReward() != 50 {
			t.Fatalf("Should have the initial reward before block %d, got %v", i, c.BlockReward())
		}

		if _, err := c.AddTransactionToPool(transfer(t, wallet, recipient, 1, 0)); err != nil {
			t.Fatalf("Should be able to add the transaction to the pool: %s", err)
		}

		if _, err := c.Mine(context.Background()); err != nil {
			t.Fatalf("Should be able to mine block %d: %s", i, err)
		}
	}

	if c.BlockReward() != 25 {
		t.Fatalf("Should halve the reward after the 2nd block, got %v", c.BlockReward())
	}

	if got := c.GetBalance(miner); got != 100 {
		t.Fatalf("Should have paid the full reward for both blocks, got %v", got)
	}

	if _, err := c.AddTransactionToPool(transfer(t, wallet, recipient, 1, 0)); err != nil {
		t.Fatalf("Should be able to add the transaction to the pool: %s", err)
	}

	block, err := c.Mine(context.Background())
	if err != nil {
		t.Fatalf("Should be able to mine block 3: %s", err)
	}

	if coinbase, _ := block.Coinbase(); coinbase.Amount != 25 {
		t.Fatalf("Should pay the halved reward, got %v", coinbase.Amount)
	}

	if !c.IsValidChain() {
		t.Fatalf("Should have a valid chain across a halving.")
	}
}

func Test_Conservation(t *testing.T) {
	c := newChain(t, 100, nil)
	wallet := newSigner(t, walletECDSA)
	other := newSigner(t, otherECDSA)

	for i := 0; i < 3; i++ {
		if _, err := c.AddTransactionToPool(transfer(t, wallet, other.Address(), 10, 0.5)); err != nil {
			t.Fatalf("Should be able to add the transaction to the pool: %s", err)
		}

		if _, err := c.Mine(context.Background()); err != nil {
			t.Fatalf("Should be able to mine a block: %s", err)
		}
	}

	var total float64
	for _, balance := range c.Balances() {
		total += balance
	}

	var minted float64
	for _, block := range c.GetChain() {
		if coinbase, exists := block.Coinbase(); exists {
			minted += coinbase.Amount - feesOf(block)
		}
	}

	if total != 100+minted {
		t.Fatalf("Should conserve the supply: total %v, exp %v", total, 100+minted)
	}

	if minted != 150 {
		t.Fatalf("Should only mint the block rewards, got %v", minted)
	}
}

func Test_AddBlock(t *testing.T) {
	miner := newChain(t, 100, nil)
	replica := newChain(t, 100, nil)
	wallet := newSigner(t, walletECDSA)

	if _, err := miner.AddTransactionToPool(transfer(t, wallet, recipient, 10, 1)); err != nil {
		t.Fatalf("Should be able to add the transaction to the pool: %s", err)
	}

	block, err := miner.Mine(context.Background())
	if err != nil {
		t.Fatalf("Should be able to mine a block: %s", err)
	}

	bd := database.NewBlockData(block)
	bd.Header.Nonce++
	tampered, err := database.ToBlock(bd)
	if err != nil {
		t.Fatalf("Should be able to convert block data: %s", err)
	}

	if err := replica.AddBlock(tampered); !errors.Is(err, database.ErrBadHash) {
		t.Fatalf("Should reject a tampered block, got: %v", err)
	}

	if len(replica.GetChain()) != 1 || replica.GetBalance(recipient) != 0 {
		t.Fatalf("Should not change the chain when a block is rejected.")
	}

	if err := replica.AddBlock(block); err != nil {
		t.Fatalf("Should be able to add the mined block: %s", err)
	}

	if err := replica.AddBlock(block); !errors.Is(err, chain.ErrDuplicateBlock) {
		t.Fatalf("Should reject the same block twice, got: %v", err)
	}

	if replica.GetBalance(recipient) != 10 || replica.LatestBlock().Hash() != block.Hash() {
		t.Fatalf("Should have the same state as the miner.")
	}

	if !replica.IsValidChain() {
		t.Fatalf("Should have a valid chain.")
	}

	blocks := replica.QueryBlocks(0, chain.QueryLatest)
	if len(blocks) != 2 || blocks[1].Hash() != block.Hash() {
		t.Fatalf("Should be able to query every block, got %d", len(blocks))
	}

	if latest := replica.QueryBlocks(chain.QueryLatest, chain.QueryLatest); len(latest) != 1 || latest[0].Hash() != block.Hash() {
		t.Fatalf("Should be able to query the latest block.")
	}
}

func Test_ReplaceTip(t *testing.T) {
	wallet := newSigner(t, walletECDSA)
	other := newSigner(t, otherECDSA)

	first := newChain(t, 100, nil)
	second := newChainWithMiner(t, testGenesis(100), otherECDSA)
	replica := newChain(t, 100, nil)

	txFirst := transfer(t, wallet, recipient, 10, 1)
	txSecond := transfer(t, wallet, other.Address(), 20, 2)

	if _, err := first.AddTransactionToPool(txFirst); err != nil {
		t.Fatalf("Should be able to add the transaction to the pool: %s", err)
	}
	if _, err := second.AddTransactionToPool(txSecond); err != nil {
		t.Fatalf("Should be able to add the transaction to the pool: %s", err)
	}

	blockFirst, err := first.Mine(context.Background())
	if err != nil {
		t.Fatalf("Should be able to mine a block: %s", err)
	}

	blockSecond, err := second.Mine(context.Background())
	if err != nil {
		t.Fatalf("Should be able to mine a block: %s", err)
	}

	if err := replica.AddBlock(blockFirst); err != nil {
		t.Fatalf("Should be able to add the first block: %s", err)
	}

	bd := database.NewBlockData(blockSecond)
	bd.Header.Nonce++
	tampered, err := database.ToBlock(bd)
	if err != nil {
		t.Fatalf("Should be able to convert block data: %s", err)
	}

	if err := replica.ReplaceTip(tampered); !errors.Is(err, database.ErrInvalidBlock) {
		t.Fatalf("Should not replace the tip with an invalid block, got: %v", err)
	}

	if replica.LatestBlock().Hash() != blockFirst.Hash() || replica.GetBalance(recipient) != 10 {
		t.Fatalf("Should keep the tip when the replacement is rejected.")
	}

	if err := replica.ReplaceTip(blockSecond); err != nil {
		t.Fatalf("Should be able to replace the tip: %s", err)
	}

	if replica.LatestBlock().Hash() != blockSecond.Hash() {
		t.Fatalf("Should have the competing block as the tip.")
	}

	if got := replica.GetBalance(recipient); got != 0 {
		t.Fatalf("Should undo the displaced transfer, got %v", got)
	}

	if got := replica.GetBalance(database.AccountID(other.Address())); got != 20+52 {
		t.Fatalf("Should apply the competing block, got %v", got)
	}

	pending := replica.PendingTransactions()
	if len(pending) != 1 || !pending[0].Equals(txFirst) {
		t.Fatalf("Should return the displaced transfer to the pool, got %d", len(pending))
	}

	if !replica.IsValidChain() {
		t.Fatalf("Should have a valid chain after replacing the tip.")
	}
}

func Test_CancelMining(t *testing.T) {
	g := testGenesis(100)
	g.Difficulty = 64

	c := newChainWithGenesis(t, g, nil)
	wallet := newSigner(t, walletECDSA)

	if _, err := c.AddTransactionToPool(transfer(t, wallet, recipient, 10, 1)); err != nil {
		t.Fatalf("Should be able to add the transaction to the pool: %s", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := c.Mine(context.Background())
		done <- err
	}()

	deadline := time.After(5 * time.Second)
	for {
		c.CancelMining()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("Should get back a cancelled error, got: %v", err)
			}

			if c.PendingCount() != 1 || len(c.GetChain()) != 1 {
				t.Fatalf("Should leave the chain and pool untouched when cancelled.")
			}
			return

		case <-deadline:
			t.Fatalf("Should be able to cancel mining.")

		case <-time.After(10 * time.Millisecond):
		}
	}
}

// =============================================================================

func testGenesis(balance float64) genesis.Genesis {
	g := genesis.Default()
	g.Difficulty = 1

	return g.WithBalances(map[string]float64{
		"0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4": balance,
	})
}

func newChain(t *testing.T, balance float64, ev database.EventHandler) *chain.Chain {
	t.Helper()

	return newChainWithGenesis(t, testGenesis(balance), ev)
}

func newChainWithGenesis(t *testing.T, g genesis.Genesis, ev database.EventHandler) *chain.Chain {
	t.Helper()

	c, err := chain.New(chain.Config{
		Genesis:   g,
		MinerID:   database.AccountID(newSigner(t, minerECDSA).Address()),
		EvHandler: ev,
	})
	if err != nil {
		t.Fatalf("Should be able to construct a chain: %s", err)
	}

	return c
}

func newChainWithMiner(t *testing.T, g genesis.Genesis, minerKey string) *chain.Chain {
	t.Helper()

	c, err := chain.New(chain.Config{
		Genesis: g,
		MinerID: database.AccountID(newSigner(t, minerKey).Address()),
	})
	if err != nil {
		t.Fatalf("Should be able to construct a chain: %s", err)
	}

	return c
}

func newSigner(t *testing.T, hexKey string) *signature.KeySigner {
	t.Helper()

	signer, err := signature.HexKeySigner(hexKey)
	if err != nil {
		t.Fatalf("Should be able to construct a signer: %s", err)
	}

	return signer
}

// transfer constructs a signed transfer with a unique timestamp so repeated
// transfers of the same amount have different ids.
func transfer(t *testing.T, signer *signature.KeySigner, to string, amount float64, fee float64) database.Tx {
	t.Helper()

	tx, err := database.NewTransfer(signer, to, amount, fee)
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

// signedValues signs a transfer carrying the exact amount and fee, bypassing
// the checks done by NewTransfer the way a transfer received from a peer does.
func signedValues(t *testing.T, signer *signature.KeySigner, amount float64, fee float64) database.Tx {
	t.Helper()

	tx := database.Tx{
		Kind:      database.TxTransfer,
		FromID:    database.AccountID(signer.Address()),
		ToID:      recipient,
		Amount:    amount,
		Fee:       fee,
		TimeStamp: uint64(time.Now().UnixMilli()) + seq.Add(1),
	}

	tx, err := tx.Sign(signer)
	if err != nil {
		t.Fatalf("Should be able to sign the transfer: %s", err)
	}

	return tx
}

func feesOf(block database.Block) float64 {
	var fees float64
	for _, tx := range block.Values() {
		if !tx.IsCoinbase() {
			fees += tx.Fee
		}
	}
	return fees
}
