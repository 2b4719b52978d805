package database

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/ardanlabs/powchain/foundation/validate"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TxKind identifies the variant of a transaction.
type TxKind uint8

// Set of transaction variants.
const (
	TxTransfer TxKind = iota
	TxCoinbase
)

// String implements the fmt.Stringer interface.
func (k TxKind) String() string {
	switch k {
	case TxTransfer:
		return "transfer"
	case TxCoinbase:
		return "coinbase"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// =============================================================================

// Tx is an economic transfer between two parties. A transfer is signed by
// the sender, a coinbase credits the miner of a block and carries no
// signature. Values are immutable once signed.
type Tx struct {
	Kind      TxKind        `json:"kind"`
	FromID    AccountID     `json:"from"`
	ToID      AccountID     `json:"to"`
	Amount    float64       `json:"amount"`
	Fee       float64       `json:"fee"`
	TimeStamp uint64        `json:"timestamp"` // Milliseconds since the epoch.
	Signature hexutil.Bytes `json:"signature,omitempty"`
}

// transferParams is the set of caller provided values validated when a
// transfer is constructed.
type transferParams struct {
	To     string  `json:"to" validate:"required,eth_addr"`
	Amount float64 `json:"amount" validate:"gt=0"`
	Fee    float64 `json:"fee" validate:"gte=0"`
}

// NewTransfer constructs an unsigned transfer from the signer's account.
func NewTransfer(signer signature.Signer, to string, amount float64, fee float64) (Tx, error) {
	if signer == nil {
		return Tx{}, fmt.Errorf("%w: no signer provided", ErrInvalidParameters)
	}

	if !isFinite(amount) || !isFinite(fee) {
		return Tx{}, fmt.Errorf("%w: amount and fee must be finite", ErrInvalidParameters)
	}

	if err := validate.Check(transferParams{To: to, Amount: amount, Fee: fee}); err != nil {
		return Tx{}, fmt.Errorf("%w: %s", ErrInvalidParameters, err)
	}

	fromID, err := ToAccountID(signer.Address())
	if err != nil {
		return Tx{}, err
	}

	toID, err := ToAccountID(to)
	if err != nil {
		return Tx{}, err
	}

	tx := Tx{
		Kind:      TxTransfer,
		FromID:    fromID,
		ToID:      toID,
		Amount:    amount,
		Fee:       fee,
		TimeStamp: uint64(time.Now().UTC().UnixMilli()),
	}

	return tx, nil
}

// NewCoinbase constructs the reward transaction for the miner of a block.
func NewCoinbase(minerID AccountID, amount float64, timeStamp uint64) Tx {
	return Tx{
		Kind:      TxCoinbase,
		FromID:    CoinbaseID,
		ToID:      minerID,
		Amount:    amount,
		TimeStamp: timeStamp,
	}
}

// IsCoinbase reports whether this is a mining reward transaction.
func (tx Tx) IsCoinbase() bool {
	return tx.Kind == TxCoinbase
}

// Cost returns the amount debited from the sender.
func (tx Tx) Cost() float64 {
	return tx.Amount + tx.Fee
}

// SigningHash returns the SHA-256 of the canonical concatenation of the
// sender, recipient, amount, fee and timestamp. This is the value signed.
func (tx Tx) SigningHash() []byte {
	var b bytes.Buffer
	b.WriteString(string(tx.FromID))
	b.WriteString(string(tx.ToID))
	b.WriteString(strconv.FormatFloat(tx.Amount, 'f', -1, 64))
	b.WriteString(strconv.FormatFloat(tx.Fee, 'f', -1, 64))
	b.WriteString(strconv.FormatUint(tx.TimeStamp, 10))

	hash := sha256.Sum256(b.Bytes())
	return hash[:]
}

// ID returns the hex encoded signing hash which identifies the transaction.
func (tx Tx) ID() string {
	return hexutil.Encode(tx.SigningHash())
}

// Validate checks the values carried by the transaction. A transfer moves a
// positive finite amount and pays a finite fee that is not negative. A
// coinbase credits a finite amount that is not negative.
func (tx Tx) Validate() error {
	if !isFinite(tx.Amount) || !isFinite(tx.Fee) {
		return fmt.Errorf("%w: amount %v and fee %v must be finite", ErrInvalidParameters, tx.Amount, tx.Fee)
	}

	switch tx.Kind {
	case TxTransfer:
		if tx.Amount <= 0 {
			return fmt.Errorf("%w: amount %v must be positive", ErrInvalidParameters, tx.Amount)
		}
		if tx.Fee < 0 {
			return fmt.Errorf("%w: fee %v is negative", ErrInvalidParameters, tx.Fee)
		}

	case TxCoinbase:
		if tx.Amount < 0 || tx.Fee != 0 {
			return fmt.Errorf("%w: coinbase amount %v fee %v", ErrInvalidParameters, tx.Amount, tx.Fee)
		}

	default:
		return fmt.Errorf("%w: unknown kind %s", ErrInvalidParameters, tx.Kind)
	}

	return nil
}

// Sign returns a copy of the transaction signed by the specified signer.
// Signing again with the same signer produces the same signature.
func (tx Tx) Sign(signer signature.Signer) (Tx, error) {
	if tx.IsCoinbase() {
		return Tx{}, errors.New("coinbase transactions are not signed")
	}

	if signer == nil {
		return Tx{}, fmt.Errorf("%w: no signer provided", ErrInvalidParameters)
	}

	if AccountID(signer.Address()) != tx.FromID {
		return Tx{}, fmt.Errorf("%w: signer %s is not the sender %s", ErrInvalidParameters, signer.Address(), tx.FromID)
	}

	sig, err := signer.Sign(tx.SigningHash())
	if err != nil {
		return Tx{}, fmt.Errorf("signing: %w", err)
	}

	tx.Signature = sig
	return tx, nil
}

// Verify checks the transaction values are valid and that it carries a
// signature that recovers to the sender. Coinbase transactions carry no
// signature.
func (tx Tx) Verify(recoverer signature.Recoverer) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	switch tx.Kind {
	case TxCoinbase:
		if tx.FromID != CoinbaseID {
			return fmt.Errorf("%w: coinbase with sender %s", ErrInvalidSignature, tx.FromID)
		}
		return nil

	case TxTransfer:
		if tx.FromID == CoinbaseID {
			return fmt.Errorf("%w: transfer from the coinbase account", ErrInvalidSignature)
		}

	default:
		return fmt.Errorf("%w: unknown kind %s", ErrInvalidSignature, tx.Kind)
	}

	if len(tx.Signature) == 0 {
		return fmt.Errorf("%w: missing signature", ErrInvalidSignature)
	}

	address, err := recoverer.RecoverAddress(tx.SigningHash(), tx.Signature)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}

	if AccountID(address) != tx.FromID {
		return fmt.Errorf("%w: signed by %s, not %s", ErrInvalidSignature, address, tx.FromID)
	}

	return nil
}

// Hash implements the merkle Hashable interface. The leaf is the SHA-256 of
// the canonical serialization, which includes the signature.
func (tx Tx) Hash() ([]byte, error) {
	data, err := json.Marshal(tx)
	if err != nil {
		return nil, err
	}

	hash := sha256.Sum256(data)
	return hash[:], nil
}

// Equals implements the merkle Hashable interface for providing an equality
// check between two transactions.
func (tx Tx) Equals(otherTx Tx) bool {
	return tx.ID() == otherTx.ID() && bytes.Equal(tx.Signature, otherTx.Signature)
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	return fmt.Sprintf("%s:%s->%s:%v+%v", tx.Kind, tx.FromID, tx.ToID, tx.Amount, tx.Fee)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
