// Package genesis maintains access to the genesis file which carries the
// chain policy and the starting balances shared by every node.
package genesis

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date            time.Time          `json:"date"`
	ChainID         uint16             `json:"chain_id"`         // The chain id represents an unique id for this running instance.
	Difficulty      uint               `json:"difficulty"`       // Number of leading hex zeros a block hash needs.
	MiningReward    float64            `json:"mining_reward"`    // Reward for mining a block before any halving.
	HalvingInterval uint64             `json:"halving_interval"` // Number of blocks between reward halvings.
	MaxClockSkewMS  uint64             `json:"max_clock_skew"`   // Tolerance in milliseconds for block timestamps.
	PoolThreshold   int                `json:"pool_threshold"`   // Pending transactions that trigger mining on a node.
	Balances        map[string]float64 `json:"balances"`
}

// Default returns the genesis used when no file is provided.
func Default() Genesis {
	return Genesis{
		Date:            time.Date(2023, time.March, 15, 13, 20, 0, 0, time.UTC),
		ChainID:         1,
		Difficulty:      3,
		MiningReward:    50,
		HalvingInterval: 210,
		MaxClockSkewMS:  uint64((15 * time.Minute).Milliseconds()),
		PoolThreshold:   2,
		Balances:        map[string]float64{},
	}
}

// =============================================================================

// Load opens and consumes the genesis file. Fields missing from the file
// keep their default values.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	genesis := Default()
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, fmt.Errorf("decoding genesis %s: %w", path, err)
	}

	if genesis.Balances == nil {
		genesis.Balances = map[string]float64{}
	}

	return genesis, nil
}

// MaxClockSkew returns the timestamp tolerance as a duration.
func (g Genesis) MaxClockSkew() time.Duration {
	return time.Duration(g.MaxClockSkewMS) * time.Millisecond
}

// WithBalances returns a copy of the genesis with the specified balances
// added to the existing ones.
func (g Genesis) WithBalances(balances map[string]float64) Genesis {
	merged := make(map[string]float64, len(g.Balances)+len(balances))
	for account, balance := range g.Balances {
		merged[account] = balance
	}
	for account, balance := range balances {
		merged[account] = balance
	}

	g.Balances = merged
	return g
}
