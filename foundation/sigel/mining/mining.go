// Package mining implements the nonce search that produces new blocks, with
// block acceptance relaxed by the miner's consciousness score.
package mining

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/aseio6668/Sigmos/foundation/sigel/ledger"
	"github.com/aseio6668/Sigmos/foundation/sigel/transfer"
)

// ErrNoSolution is returned when the attempt budget runs out before a nonce
// satisfying the effective target is found.
var ErrNoSolution = errors.New("attempt budget exhausted")

// EventHandler defines a function that is called when events occur during
// mining.
type EventHandler func(v string, args ...any)

// MineArgs represents everything a single mining attempt needs. MinerScore
// is a snapshot taken before the attempt starts and stays fixed for its
// whole duration, even if the identity keeps training concurrently.
type MineArgs struct {
	MinerID       string
	MinerScore    float64
	Weight        float64
	Difficulty    *big.Int
	PrevBlock     ledger.Block
	Trans         []transfer.SignedTransfer
	AttemptBudget uint64
	EvHandler     EventHandler
}

// Mine performs the proof of work search for the next block. The search
// starts from a random nonce and runs until a hash falls below the effective
// target, the context is cancelled, or the attempt budget is exhausted. A
// budget of zero means unbounded.
func Mine(ctx context.Context, args MineArgs) (ledger.Block, error) {
	ev := func(v string, a ...any) {
		if args.EvHandler != nil {
			args.EvHandler(v, a...)
		}
	}

	timeStamp := uint64(time.Now().UTC().Unix())
	if prevTS := args.PrevBlock.Header.TimeStamp; timeStamp < prevTS {
		timeStamp = prevTS
	}

	block := ledger.Block{
		Header: ledger.BlockHeader{
			Number:        args.PrevBlock.Header.Number + 1,
			PrevBlockHash: args.PrevBlock.Hash(),
			TimeStamp:     timeStamp,
			MinerID:       args.MinerID,
			MinerScore:    args.MinerScore,
			Difficulty:    ledger.FormatTarget(args.Difficulty),
		},
		Trans: args.Trans,
	}

	// Choose a random starting point for the nonce.
	nBig, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return ledger.Block{}, fmt.Errorf("generating nonce: %w", err)
	}
	block.Header.Nonce = nBig.Uint64()

	effective := ledger.EffectiveTarget(args.Difficulty, args.Weight, args.MinerScore)
	ev("mining: block %d: score %.3f: searching from nonce %d", block.Header.Number, args.MinerScore, block.Header.Nonce)

	var attempts uint64
	t := time.Now()

	for {
		attempts++
		if attempts%1_000_000 == 0 {
			ev("mining: block %d: %d attempts", block.Header.Number, attempts)
		}

		if attempts%1000 == 0 {
			if ctx.Err() != nil {
				ev("mining: block %d: cancelled after %d attempts", block.Header.Number, attempts)
				return ledger.Block{}, ctx.Err()
			}
		}

		if args.AttemptBudget > 0 && attempts > args.AttemptBudget {
			return ledger.Block{}, ErrNoSolution
		}

		if ledger.HashMeetsTarget(block.Hash(), effective) {
			break
		}
		block.Header.Nonce++
	}

	ev("mining: block %d: solved with nonce %d after %d attempts in %v", block.Header.Number, block.Header.Nonce, attempts, time.Since(t))

	return block, nil
}
