// Package genesis maintains access to the genesis file.
package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"
)

// Genesis represents the genesis file. Every honest node starts from the
// same file so the deterministic genesis block it produces is identical
// across the network. The retarget and consciousness constants live here
// rather than in code because the exact weighting is tunable per network.
type Genesis struct {
	Date                time.Time `json:"date"`
	ChainID             uint16    `json:"chain_id"`              // Unique id for this running network.
	TransPerBlock       uint16    `json:"trans_per_block"`       // Maximum number of transfers that can be in a block.
	InitialDifficulty   string    `json:"initial_difficulty"`    // Hex encoded 256-bit target the first blocks must hash below.
	RetargetBlocks      uint64    `json:"retarget_blocks"`       // Number of blocks between difficulty retargets.
	BlockIntervalSecs   uint64    `json:"block_interval_secs"`   // Desired average seconds between blocks.
	MaxRetargetFactor   uint64    `json:"max_retarget_factor"`   // Clamp on how far a single retarget can move the target.
	ConsciousnessWeight float64   `json:"consciousness_weight"`  // Scales how much a miner's score widens its acceptance region.
}

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, err
	}

	if err := genesis.Validate(); err != nil {
		return Genesis{}, fmt.Errorf("invalid genesis file %q: %w", path, err)
	}

	return genesis, nil
}

// Validate checks the genesis carries workable consensus constants.
func (g Genesis) Validate() error {
	if _, err := g.DifficultyTarget(); err != nil {
		return err
	}

	if g.RetargetBlocks == 0 {
		return errors.New("retarget_blocks must be greater than zero")
	}

	if g.BlockIntervalSecs == 0 {
		return errors.New("block_interval_secs must be greater than zero")
	}

	if g.MaxRetargetFactor < 2 {
		return errors.New("max_retarget_factor must be at least 2")
	}

	if g.ConsciousnessWeight < 0 {
		return errors.New("consciousness_weight must be >= 0")
	}

	return nil
}

// DifficultyTarget parses the initial difficulty into its numeric target.
func (g Genesis) DifficultyTarget() (*big.Int, error) {
	target, ok := new(big.Int).SetString(g.InitialDifficulty, 0)
	if !ok || target.Sign() <= 0 {
		return nil, fmt.Errorf("initial_difficulty %q is not a positive hex number", g.InitialDifficulty)
	}

	return target, nil
}
