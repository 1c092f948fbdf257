package ledger

import (
	"fmt"
	"math"
	"math/big"

	"github.com/aseio6668/Sigmos/foundation/sigel/genesis"
)

// scoreScale bounds the precision carried from a floating point consciousness
// score into integer target arithmetic.
const scoreScale = 1_000_000

// MaxMinerScore caps the consciousness score a block header may declare.
// Scores far above anything a real record can produce keep the relaxation
// factor inside exact integer range.
const MaxMinerScore = 1_000_000

// maxRelaxation caps the factor a score can widen the target by, keeping
// factor*scoreScale well inside int64.
const maxRelaxation = 1 << 40

// maxTarget is 2^256 - 1, the easiest possible target.
var maxTarget = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// MaxTarget returns a copy of the easiest possible target.
func MaxTarget() *big.Int {
	return new(big.Int).Set(maxTarget)
}

// ParseTarget converts the hex string form of a difficulty target into its
// integer form.
func ParseTarget(s string) (*big.Int, error) {
	t, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("target %q is not a valid hex integer", s)
	}
	if t.Sign() <= 0 || t.Cmp(maxTarget) > 0 {
		return nil, fmt.Errorf("target %q is outside (0, 2^256)", s)
	}

	return t, nil
}

// FormatTarget converts a difficulty target into its canonical hex string
// form for block headers and genesis files.
func FormatTarget(t *big.Int) string {
	return "0x" + t.Text(16)
}

// EffectiveTarget relaxes the base target for a miner by its consciousness
// score, scaled by the chain's consciousness weight. A zero score leaves the
// base target untouched. Non-finite inputs get no relaxation and the factor
// is clamped so the integer arithmetic stays exact.
func EffectiveTarget(target *big.Int, weight float64, score float64) *big.Int {
	f := 1 + weight*score
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 1 {
		return new(big.Int).Set(target)
	}
	if f > maxRelaxation {
		f = maxRelaxation
	}

	factor := big.NewInt(int64(f * scoreScale))
	eff := new(big.Int).Mul(target, factor)
	eff.Quo(eff, big.NewInt(scoreScale))

	if eff.Cmp(maxTarget) > 0 {
		eff.Set(maxTarget)
	}

	return eff
}

// HashMeetsTarget reports whether a block hash, read as a 256 bit integer,
// falls strictly below the target.
func HashMeetsTarget(hash string, target *big.Int) bool {
	h, ok := new(big.Int).SetString(hash, 0)
	if !ok {
		return false
	}

	return h.Cmp(target) < 0
}

// blockWork values a block at 2^256 / (target + 1) so harder targets carry
// more weight in fork choice.
func blockWork(target *big.Int) *big.Int {
	den := new(big.Int).Add(target, big.NewInt(1))
	num := new(big.Int).Lsh(big.NewInt(1), 256)

	return num.Quo(num, den)
}

// ChainWork sums the work of every block in the chain, genesis included.
func ChainWork(blocks []Block) (*big.Int, error) {
	total := big.NewInt(0)

	for _, block := range blocks {
		target, err := ParseTarget(block.Header.Difficulty)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", block.Header.Number, err)
		}
		total.Add(total, blockWork(target))
	}

	return total, nil
}

// nextTarget computes the base target the next block must declare. Outside a
// retarget boundary it is the tip's target. At a boundary the target scales
// by the ratio of the observed block interval over the desired interval,
// clamped to the genesis retarget factor in both directions.
func nextTarget(g genesis.Genesis, blocks []Block) (*big.Int, error) {
	tip := blocks[len(blocks)-1]

	base, err := ParseTarget(tip.Header.Difficulty)
	if err != nil {
		return nil, fmt.Errorf("tip block %d: %w", tip.Header.Number, err)
	}

	nextNumber := tip.Header.Number + 1
	if g.RetargetBlocks == 0 || nextNumber%g.RetargetBlocks != 0 {
		return base, nil
	}

	// The window spans the last RetargetBlocks intervals when the chain is
	// long enough, otherwise everything back to genesis.
	start := 0
	if n := len(blocks) - int(g.RetargetBlocks) - 1; n > 0 {
		start = n
	}
	window := blocks[start:]
	if len(window) < 2 {
		return base, nil
	}

	observed := new(big.Int).SetUint64(window[len(window)-1].Header.TimeStamp - window[0].Header.TimeStamp)
	desired := new(big.Int).SetUint64(g.BlockIntervalSecs * uint64(len(window)-1))
	if desired.Sign() == 0 {
		return base, nil
	}

	next := new(big.Int).Mul(base, observed)
	next.Quo(next, desired)

	factor := new(big.Int).SetUint64(g.MaxRetargetFactor)
	if factor.Sign() > 0 {
		floor := new(big.Int).Quo(base, factor)
		ceil := new(big.Int).Mul(base, factor)
		if next.Cmp(floor) < 0 {
			next.Set(floor)
		}
		if next.Cmp(ceil) > 0 {
			next.Set(ceil)
		}
	}

	if next.Sign() <= 0 {
		next.SetInt64(1)
	}
	if next.Cmp(maxTarget) > 0 {
		next.Set(maxTarget)
	}

	return next, nil
}
