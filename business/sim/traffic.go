package sim

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
)

// TrafficConfig represents the configuration for generating transfers.
type TrafficConfig struct {
	Wallets   []*signature.KeySigner
	Interval  time.Duration
	MaxAmount float64
	Fee       float64
	EvHandler database.EventHandler
}

// Traffic sends transfers between the wallets through random nodes.
type Traffic struct {
	net       *Network
	wallets   []*signature.KeySigner
	interval  time.Duration
	maxAmount float64
	fee       float64
	evHandler database.EventHandler
	rnd       *rand.Rand
}

// NewTraffic constructs a traffic generator for the network.
func NewTraffic(net *Network, cfg TrafficConfig) (*Traffic, error) {
	if len(cfg.Wallets) < 2 {
		return nil, errors.New("sim: at least two wallets are required")
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}

	maxAmount := cfg.MaxAmount
	if maxAmount <= 0 {
		maxAmount = 10
	}

	t := Traffic{
		net:       net,
		wallets:   cfg.Wallets,
		interval:  interval,
		maxAmount: maxAmount,
		fee:       cfg.Fee,
		evHandler: ev,
		rnd:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}

	return &t, nil
}

// Run sends a transfer every interval until the context is cancelled.
func (t *Traffic) Run(ctx context.Context) error {
	t.evHandler("sim: traffic: started")
	defer t.evHandler("sim: traffic: completed")

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := t.Send(); err != nil {
				t.evHandler("sim: traffic: WARNING: %s", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Send signs one transfer between two different wallets and submits it to a
// random node.
func (t *Traffic) Send() (database.Tx, error) {
	from := t.wallets[t.rnd.IntN(len(t.wallets))]

	to := from
	for to == from {
		to = t.wallets[t.rnd.IntN(len(t.wallets))]
	}

	// Keep amounts to two decimals so balances stay readable.
	amount := math.Round((1+t.rnd.Float64()*(t.maxAmount-1))*100) / 100

	tx, err := database.NewTransfer(from, to.Address(), amount, t.fee)
	if err != nil {
		return database.Tx{}, err
	}

	tx, err = tx.Sign(from)
	if err != nil {
		return database.Tx{}, err
	}

	nodes := t.net.Nodes()
	n := nodes[t.rnd.IntN(len(nodes))]

	t.evHandler("sim: traffic: send: node[%s]: tx[%s]", n.Host(), tx)

	if err := n.SubmitTransaction(tx); err != nil {
		return database.Tx{}, err
	}

	return tx, nil
}
