// Package chain is the core API for the blockchain and implements all the
// business rules and processing for a single replica of the chain.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/powchain/foundation/blockchain/mempool"
	"github.com/ardanlabs/powchain/foundation/blockchain/mempool/selector"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
)

// Set of errors returned by the chain.
var (
	ErrNoTransactions       = errors.New("no transactions in mempool")
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	ErrDuplicateBlock       = errors.New("duplicate block")
)

// =============================================================================

// Config represents the configuration required to start a chain.
type Config struct {
	Genesis        genesis.Genesis
	MinerID        database.AccountID
	SelectStrategy string
	Recoverer      signature.Recoverer
	EvHandler      database.EventHandler
	Now            func() time.Time
}

// Chain manages the blocks, the ledger and the pending transactions of one
// replica of the blockchain.
type Chain struct {
	genesis   genesis.Genesis
	minerID   database.AccountID
	recoverer signature.Recoverer
	evHandler database.EventHandler
	now       func() time.Time
	mempool   *mempool.Mempool

	// mu serializes mining and every change to the blocks and state.
	mu sync.Mutex

	// rw guards reads of the blocks and state against the writers
	// holding mu.
	rw     sync.RWMutex
	blocks []database.Block
	byHash map[string]uint64
	state  *ledgerState

	// poolMu makes the admission check and insert into the pool atomic.
	poolMu sync.Mutex

	cancelMu sync.Mutex
	cancels  map[uint64]context.CancelFunc
	cancelID uint64
}

// New constructs a chain holding only the genesis block.
func New(cfg Config) (*Chain, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.MinerID != "" && !cfg.MinerID.IsAccountID() {
		return nil, fmt.Errorf("%w: miner account %q", database.ErrInvalidParameters, cfg.MinerID)
	}

	recoverer := cfg.Recoverer
	if recoverer == nil {
		recoverer = signature.ECDSARecoverer{}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	strategy := cfg.SelectStrategy
	if strategy == "" {
		strategy = selector.StrategyFIFO
	}

	// Construct a mempool with the specified select strategy.
	mp, err := mempool.NewWithStrategy(strategy)
	if err != nil {
		return nil, err
	}

	state, err := newLedgerState(cfg.Genesis)
	if err != nil {
		return nil, err
	}

	genesisBlock := database.Genesis()

	chain := Chain{
		genesis:   cfg.Genesis,
		minerID:   cfg.MinerID,
		recoverer: recoverer,
		evHandler: ev,
		now:       now,
		mempool:   mp,
		blocks:    []database.Block{genesisBlock},
		byHash:    map[string]uint64{genesisBlock.Hash(): 0},
		state:     state,
		cancels:   make(map[uint64]context.CancelFunc),
	}

	return &chain, nil
}

// MinerID returns the account credited for blocks mined by this chain.
func (c *Chain) MinerID() database.AccountID {
	return c.minerID
}

// Genesis returns the genesis information the chain was started with.
func (c *Chain) Genesis() genesis.Genesis {
	return c.genesis
}

// =============================================================================

// ledgerState is everything derived from replaying the blocks in order.
type ledgerState struct {
	ledger          *database.Ledger
	reward          float64
	halvingInterval uint64
	included        map[string]struct{}
	history         map[database.AccountID][]database.Tx
}

// newLedgerState constructs the state as of the genesis block.
func newLedgerState(g genesis.Genesis) (*ledgerState, error) {
	balances := make(map[database.AccountID]float64, len(g.Balances))
	for account, balance := range g.Balances {
		accountID, err := database.ToAccountID(account)
		if err != nil {
			return nil, fmt.Errorf("genesis balance: %w", err)
		}
		balances[accountID] = balance
	}

	ls := ledgerState{
		ledger:          database.NewLedger(balances),
		reward:          g.MiningReward,
		halvingInterval: g.HalvingInterval,
		included:        make(map[string]struct{}),
		history:         make(map[database.AccountID][]database.Tx),
	}

	return &ls, nil
}

// apply updates the state for a block that has passed validation. The
// reward is halved when the block number lands on the halving interval.
func (ls *ledgerState) apply(block database.Block) error {
	if err := ls.ledger.ApplyBlock(block); err != nil {
		return err
	}

	for _, tx := range block.Values() {
		if !tx.IsCoinbase() {
			ls.included[tx.ID()] = struct{}{}
		}
		ls.record(tx)
	}

	if ls.halvingInterval > 0 && block.Header.Number%ls.halvingInterval == 0 {
		ls.reward /= 2
	}

	return nil
}

// record adds the transaction to the history of the accounts involved. A
// coinbase only appears for the miner it credits.
func (ls *ledgerState) record(tx database.Tx) {
	if !tx.IsCoinbase() {
		ls.history[tx.FromID] = append(ls.history[tx.FromID], tx)
		if tx.ToID == tx.FromID {
			return
		}
	}

	ls.history[tx.ToID] = append(ls.history[tx.ToID], tx)
}

// isIncluded reports whether the transaction is already in a block.
func (ls *ledgerState) isIncluded(txID string) bool {
	_, exists := ls.included[txID]
	return exists
}

// replay constructs the state by applying the blocks after genesis in order.
// Blocks are applied without validation.
func (c *Chain) replay(blocks []database.Block) (*ledgerState, error) {
	state, err := newLedgerState(c.genesis)
	if err != nil {
		return nil, err
	}

	for _, block := range blocks[1:] {
		if err := state.apply(block); err != nil {
			return nil, fmt.Errorf("replay blk[%d]: %w", block.Header.Number, err)
		}
	}

	return state, nil
}

// validateArgs returns the arguments to validate the next block against
// the specified state.
func (c *Chain) validateArgs(state *ledgerState) database.ValidateArgs {
	return database.ValidateArgs{
		Difficulty:   c.genesis.Difficulty,
		MaxClockSkew: c.genesis.MaxClockSkew(),
		Now:          c.now(),
		Reward:       state.reward,
		Ledger:       state.ledger,
		Recoverer:    c.recoverer,
		Included:     state.isIncluded,
		EvHandler:    c.evHandler,
	}
}
