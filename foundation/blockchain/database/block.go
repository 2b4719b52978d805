package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/merkle"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
)

// GenesisTimeStamp is the fixed creation time of the genesis block.
const GenesisTimeStamp uint64 = 1678886400000

// GenesisPrevHash is the previous hash recorded on the genesis block.
const GenesisPrevHash = "0"

// =============================================================================

// BlockHeader represents common information required for each block.
type BlockHeader struct {
	Number        uint64 `json:"number"`          // Block number in the chain.
	PrevBlockHash string `json:"prev_block_hash"` // Hash of the previous block in the chain.
	TimeStamp     uint64 `json:"timestamp"`       // Time the block was mined in milliseconds.
	Nonce         uint64 `json:"nonce"`           // Value identified to solve the hash solution.
	TransRoot     string `json:"trans_root"`      // Merkle root of the transactions in this block.
}

// Hash returns the SHA-256 hex digest over the number, previous hash,
// timestamp, merkle root and nonce.
func (bh BlockHeader) Hash() string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(bh.Number, 10))
	b.WriteString(bh.PrevBlockHash)
	b.WriteString(strconv.FormatUint(bh.TimeStamp, 10))
	b.WriteString(bh.TransRoot)
	b.WriteString(strconv.FormatUint(bh.Nonce, 10))

	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}

// Block represents a group of transactions batched together. A block is
// immutable once constructed.
type Block struct {
	Header BlockHeader
	Trans  *merkle.Tree[Tx]
	hash   string
}

// NewBlock constructs a block for the header and transactions. The merkle
// root and hash are always derived here, never provided.
func NewBlock(header BlockHeader, trans []Tx) (Block, error) {
	tree, err := merkle.NewTree(trans)
	if err != nil {
		return Block{}, err
	}

	header.TransRoot = tree.RootHex()

	block := Block{
		Header: header,
		Trans:  tree,
		hash:   header.Hash(),
	}

	return block, nil
}

// Genesis returns the genesis block which is identical on every node.
func Genesis() Block {
	block, _ := NewBlock(BlockHeader{
		Number:        0,
		PrevBlockHash: GenesisPrevHash,
		TimeStamp:     GenesisTimeStamp,
		Nonce:         0,
	}, nil)

	return block
}

// Hash returns the hash recorded for the block.
func (b Block) Hash() string {
	return b.hash
}

// ComputeHash recomputes the hash from the header fields.
func (b Block) ComputeHash() string {
	return b.Header.Hash()
}

// Values returns the transactions of the block in mining order.
func (b Block) Values() []Tx {
	if b.Trans == nil {
		return nil
	}
	return b.Trans.Values()
}

// Coinbase returns the reward transaction of the block if one exists.
func (b Block) Coinbase() (Tx, bool) {
	trans := b.Values()
	if len(trans) == 0 || !trans[0].IsCoinbase() {
		return Tx{}, false
	}
	return trans[0], true
}

// String implements the fmt.Stringer interface for logging.
func (b Block) String() string {
	return fmt.Sprintf("%d:%s", b.Header.Number, b.hash)
}

// =============================================================================

// POWArgs represents the set of arguments required to run POW.
type POWArgs struct {
	MinerID    AccountID
	Difficulty uint
	Reward     float64
	PrevBlock  Block
	Trans      []Tx
	Now        func() time.Time
	EvHandler  EventHandler
}

// POW constructs a new Block and performs the work to find a nonce that
// solves the cryptographic POW puzzle. A coinbase crediting the miner with
// the reward plus the fees of the transactions is placed first.
func POW(ctx context.Context, args POWArgs) (Block, error) {
	ev := args.EvHandler
	if ev == nil {
		ev = func(string, ...any) {}
	}

	now := args.Now
	if now == nil {
		now = time.Now
	}

	var fees float64
	for _, tx := range args.Trans {
		fees += tx.Fee
	}

	trans := make([]Tx, 0, len(args.Trans)+1)
	trans = append(trans, NewCoinbase(args.MinerID, args.Reward+fees, uint64(now().UTC().UnixMilli())))
	trans = append(trans, args.Trans...)

	// Construct a merkle tree from the transactions for this block. The root
	// is fixed for the remainder of the search.
	tree, err := merkle.NewTree(trans)
	if err != nil {
		return Block{}, err
	}

	header := BlockHeader{
		Number:        args.PrevBlock.Header.Number + 1,
		PrevBlockHash: args.PrevBlock.Hash(),
		TransRoot:     tree.RootHex(),
	}

	hash, err := performPOW(ctx, &header, args.Difficulty, now, ev)
	if err != nil {
		return Block{}, err
	}

	block := Block{
		Header: header,
		Trans:  tree,
		hash:   hash,
	}

	return block, nil
}

// performPOW does the work of mining to find a valid hash for the header.
// The timestamp is refreshed on every attempt along with the nonce.
func performPOW(ctx context.Context, header *BlockHeader, difficulty uint, now func() time.Time, ev EventHandler) (string, error) {
	ev("database: PerformPOW: MINING: started: blk[%d]", header.Number)
	defer ev("database: PerformPOW: MINING: completed: blk[%d]", header.Number)

	var attempts uint64
	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("database: PerformPOW: MINING: attempts[%d]", attempts)
		}

		// Did another block or a shutdown cancel the work.
		if ctx.Err() != nil {
			ev("database: PerformPOW: MINING: CANCELLED")
			return "", ctx.Err()
		}

		header.TimeStamp = uint64(now().UTC().UnixMilli())

		hash := header.Hash()
		if !isHashSolved(difficulty, hash) {
			header.Nonce++
			continue
		}

		ev("database: PerformPOW: MINING: SOLVED: prevBlk[%s]: newBlk[%s]: attempts[%d]", header.PrevBlockHash, hash, attempts)

		return hash, nil
	}
}

// =============================================================================

// ValidateArgs represents the chain state a block is validated against.
type ValidateArgs struct {
	Difficulty   uint
	MaxClockSkew time.Duration
	Now          time.Time
	Reward       float64
	Ledger       *Ledger
	Recoverer    signature.Recoverer
	Included     func(txID string) bool
	EvHandler    EventHandler
}

// ValidateBlock takes a block and validates it to be the next block after
// previousBlock. The ledger provided must reflect the state as of
// previousBlock and is never modified.
func (b Block) ValidateBlock(previousBlock Block, args ValidateArgs) error {
	ev := args.EvHandler
	if ev == nil {
		ev = func(string, ...any) {}
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: block number is the next number", b.Header.Number)

	nextNumber := previousBlock.Header.Number + 1
	if b.Header.Number != nextNumber {
		return fmt.Errorf("%w: got %d, exp %d", ErrBadIndex, b.Header.Number, nextNumber)
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: parent hash does match parent block", b.Header.Number)

	if b.Header.PrevBlockHash != previousBlock.Hash() {
		return fmt.Errorf("%w: got %s, exp %s", ErrBadPrevHash, b.Header.PrevBlockHash, previousBlock.Hash())
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: block hash matches the header", b.Header.Number)

	hash := b.ComputeHash()
	if hash != b.hash {
		return fmt.Errorf("%w: got %s, exp %s", ErrBadHash, b.hash, hash)
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: block hash has been solved", b.Header.Number)

	if !isHashSolved(args.Difficulty, hash) {
		return fmt.Errorf("%w: %s needs %d leading zeros", ErrInsufficientDifficulty, hash, args.Difficulty)
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: merkle root does match transactions", b.Header.Number)

	var root string
	if b.Trans != nil {
		root = b.Trans.RootHex()
	}
	if b.Header.TransRoot != root {
		return fmt.Errorf("%w: got %s, exp %s", ErrBadMerkleRoot, b.Header.TransRoot, root)
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: block timestamp is within the clock skew", b.Header.Number)

	skew := args.MaxClockSkew.Milliseconds()
	blockTime := int64(b.Header.TimeStamp)
	earliest := int64(previousBlock.Header.TimeStamp) - skew
	latest := args.Now.UTC().UnixMilli() + skew
	if blockTime < earliest || blockTime > latest {
		return fmt.Errorf("%w: %d outside [%d, %d]", ErrBadTimestamp, blockTime, earliest, latest)
	}

	ev("database: ValidateBlock: validate: blk[%d]: check: transactions are valid and affordable", b.Header.Number)

	if err := b.validateTransactions(args); err != nil {
		return err
	}

	return nil
}

// validateTransactions checks every transaction verifies and that transfers
// are affordable when applied in order against a copy of the ledger.
func (b Block) validateTransactions(args ValidateArgs) error {
	ledger := NewLedger(nil)
	if args.Ledger != nil {
		ledger = args.Ledger.Clone()
	}

	trans := b.Values()
	seen := make(map[string]struct{}, len(trans))
	var fees float64

	for i, tx := range trans {
		if err := tx.Verify(args.Recoverer); err != nil {
			return fmt.Errorf("%w: tx[%d]: %w", ErrInvalidTransaction, i, err)
		}

		if tx.IsCoinbase() {
			if i != 0 {
				return fmt.Errorf("%w: tx[%d]: coinbase must be the first transaction", ErrInvalidTransaction, i)
			}
			continue
		}

		id := tx.ID()
		if _, exists := seen[id]; exists {
			return fmt.Errorf("%w: tx[%d]: %s appears twice", ErrInvalidTransaction, i, id)
		}
		seen[id] = struct{}{}

		if args.Included != nil && args.Included(id) {
			return fmt.Errorf("%w: tx[%d]: %s already in the chain", ErrInvalidTransaction, i, id)
		}

		if err := ledger.ApplyTransaction(tx); err != nil {
			return fmt.Errorf("%w: tx[%d]: %w", ErrInvalidTransaction, i, err)
		}

		fees += tx.Fee
	}

	if coinbase, exists := b.Coinbase(); exists {
		if coinbase.Amount != args.Reward+fees {
			return fmt.Errorf("%w: coinbase amount %v, exp %v", ErrInvalidTransaction, coinbase.Amount, args.Reward+fees)
		}
	}

	return nil
}

// isHashSolved checks the hash to make sure it complies with
// the POW rules. We need to match a difficulty number of 0's.
func isHashSolved(difficulty uint, hash string) bool {
	if int(difficulty) > len(hash) {
		return false
	}

	return strings.Count(hash[:difficulty], "0") == int(difficulty)
}

// =============================================================================

// BlockData represents what is shared between nodes for a block.
type BlockData struct {
	Hash   string      `json:"hash"`
	Header BlockHeader `json:"block"`
	Trans  []Tx        `json:"trans"`
}

// NewBlockData constructs the value to share with other nodes.
func NewBlockData(block Block) BlockData {
	return BlockData{
		Hash:   block.Hash(),
		Header: block.Header,
		Trans:  block.Values(),
	}
}

// ToBlock converts a BlockData into a Block. The hash is taken as claimed
// by the sender and is checked by ValidateBlock.
func ToBlock(blockData BlockData) (Block, error) {
	tree, err := merkle.NewTree(blockData.Trans)
	if err != nil {
		return Block{}, err
	}

	block := Block{
		Header: blockData.Header,
		Trans:  tree,
		hash:   blockData.Hash,
	}

	return block, nil
}
