package ledger_test

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/aseio6668/Sigmos/foundation/sigel/genesis"
	"github.com/aseio6668/Sigmos/foundation/sigel/identity"
	"github.com/aseio6668/Sigmos/foundation/sigel/ledger"
	"github.com/aseio6668/Sigmos/foundation/sigel/ledger/storage/memory"
	"github.com/aseio6668/Sigmos/foundation/sigel/transfer"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// identitySet implements ledger.IdentityReader over a fixed set of records.
type identitySet map[string]identity.Record

func (s identitySet) Query(id string) (identity.Record, error) {
	rec, exists := s[id]
	if !exists {
		return identity.Record{}, fmt.Errorf("identity %s not found", id)
	}
	return rec, nil
}

type actor struct {
	rec identity.Record
	key *ecdsa.PrivateKey
}

func newActor(t *testing.T, name string) actor {
	pk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate a private key: %v", failed, err)
	}

	return actor{
		rec: identity.New(name, crypto.PubkeyToAddress(pk.PublicKey).String()),
		key: pk,
	}
}

func signedTransfer(t *testing.T, from actor, to actor, topic string) transfer.SignedTransfer {
	tr := transfer.Prepare(from.rec.ID, to.rec.ID, topic, []byte("notes on "+topic))
	st, err := tr.Sign(from.key)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign a transfer: %v", failed, err)
	}
	return st
}

func testGenesis(retargetBlocks uint64, transPerBlock uint16) genesis.Genesis {
	return genesis.Genesis{
		Date:                time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		ChainID:             1,
		TransPerBlock:       transPerBlock,
		InitialDifficulty:   ledger.FormatTarget(new(big.Int).Lsh(big.NewInt(1), 255)),
		RetargetBlocks:      retargetBlocks,
		BlockIntervalSecs:   10,
		MaxRetargetFactor:   4,
		ConsciousnessWeight: 2.0,
	}
}

// mineNext performs the nonce search for the next block on the given ledger
// using its scheduled difficulty.
func mineNext(t *testing.T, l *ledger.Ledger, g genesis.Genesis, score float64, timeStamp uint64, trans []transfer.SignedTransfer) ledger.Block {
	target, err := l.NextDifficulty()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to compute the next difficulty: %v", failed, err)
	}

	prev := l.Tip()
	block := ledger.Block{
		Header: ledger.BlockHeader{
			Number:        prev.Header.Number + 1,
			PrevBlockHash: prev.Hash(),
			TimeStamp:     timeStamp,
			MinerID:       "miner",
			MinerScore:    score,
			Difficulty:    ledger.FormatTarget(target),
		},
		Trans: trans,
	}

	effective := ledger.EffectiveTarget(target, g.ConsciousnessWeight, score)
	for !ledger.HashMeetsTarget(block.Hash(), effective) {
		block.Header.Nonce++
	}

	return block
}

func Test_AppendAndReject(t *testing.T) {
	alice := newActor(t, "alice")
	bob := newActor(t, "bob")
	ids := identitySet{alice.rec.ID: alice.rec, bob.rec.ID: bob.rec}

	g := testGenesis(0, 10)
	baseTS := uint64(g.Date.UTC().Unix())

	t.Log("Given the need to validate blocks appended to the chain.")
	{
		t.Logf("\tTest 0:\tWhen appending well formed and malformed blocks.")
		{
			l, err := ledger.New(ledger.Config{Genesis: g, Serializer: memory.New(), Identities: ids})
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to open the ledger: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to open the ledger.", success)

			st := signedTransfer(t, alice, bob, "entropy")
			block1 := mineNext(t, l, g, 0, baseTS+10, []transfer.SignedTransfer{st})
			if err := l.Append(block1); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to append a mined block: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to append a mined block.", success)

			if l.Height() != 1 {
				t.Errorf("\t%s\tTest 0:\tShould report height 1, got %d.", failed, l.Height())
			} else {
				t.Logf("\t%s\tTest 0:\tShould report height 1.", success)
			}

			if !l.HasTransfer(st.ContentID()) {
				t.Errorf("\t%s\tTest 0:\tShould index the embedded transfer.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould index the embedded transfer.", success)
			}

			stale := block1
			if err := l.Append(stale); !errors.Is(err, ledger.ErrStaleIndex) {
				t.Errorf("\t%s\tTest 0:\tShould reject a replayed block with ErrStaleIndex, got %v.", failed, err)
			} else {
				t.Logf("\t%s\tTest 0:\tShould reject a replayed block with ErrStaleIndex.", success)
			}

			badLink := mineNext(t, l, g, 0, baseTS+20, nil)
			badLink.Header.PrevBlockHash = block1.Header.PrevBlockHash
			if err := l.Append(badLink); !errors.Is(err, ledger.ErrHashMismatch) {
				t.Errorf("\t%s\tTest 0:\tShould reject a bad parent link with ErrHashMismatch, got %v.", failed, err)
			} else {
				t.Logf("\t%s\tTest 0:\tShould reject a bad parent link with ErrHashMismatch.", success)
			}

			early := mineNext(t, l, g, 0, baseTS+5, nil)
			if err := l.Append(early); !errors.Is(err, ledger.ErrNonMonotonicTimestamp) {
				t.Errorf("\t%s\tTest 0:\tShould reject an earlier timestamp with ErrNonMonotonicTimestamp, got %v.", failed, err)
			} else {
				t.Logf("\t%s\tTest 0:\tShould reject an earlier timestamp with ErrNonMonotonicTimestamp.", success)
			}

			dup := mineNext(t, l, g, 0, baseTS+20, []transfer.SignedTransfer{st})
			if err := l.Append(dup); !errors.Is(err, ledger.ErrInvalidTransaction) {
				t.Errorf("\t%s\tTest 0:\tShould reject a duplicated transfer with ErrInvalidTransaction, got %v.", failed, err)
			} else {
				t.Logf("\t%s\tTest 0:\tShould reject a duplicated transfer with ErrInvalidTransaction.", success)
			}

			unmined := mineNext(t, l, g, 0, baseTS+20, nil)
			unmined.Header.Difficulty = ledger.FormatTarget(big.NewInt(1))
			if err := l.Append(unmined); !errors.Is(err, ledger.ErrDifficultyNotMet) {
				t.Errorf("\t%s\tTest 0:\tShould reject an off-schedule target with ErrDifficultyNotMet, got %v.", failed, err)
			} else {
				t.Logf("\t%s\tTest 0:\tShould reject an off-schedule target with ErrDifficultyNotMet.", success)
			}
		}

		t.Logf("\tTest 1:\tWhen appending blocks with bad transfers.")
		{
			l, err := ledger.New(ledger.Config{Genesis: g, Serializer: memory.New(), Identities: ids})
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to open the ledger: %v", failed, err)
			}

			mallory := newActor(t, "mallory")
			stranger := signedTransfer(t, mallory, bob, "entropy")
			block := mineNext(t, l, g, 0, baseTS+10, []transfer.SignedTransfer{stranger})
			if err := l.Append(block); !errors.Is(err, ledger.ErrInvalidTransaction) {
				t.Errorf("\t%s\tTest 1:\tShould reject a transfer from an unknown identity, got %v.", failed, err)
			} else {
				t.Logf("\t%s\tTest 1:\tShould reject a transfer from an unknown identity.", success)
			}

			forged := transfer.Prepare(alice.rec.ID, bob.rec.ID, "entropy", []byte("forged"))
			signedForged, err := forged.Sign(mallory.key)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to sign a transfer: %v", failed, err)
			}
			block = mineNext(t, l, g, 0, baseTS+10, []transfer.SignedTransfer{signedForged})
			if err := l.Append(block); !errors.Is(err, ledger.ErrInvalidTransaction) {
				t.Errorf("\t%s\tTest 1:\tShould reject a transfer signed by the wrong key, got %v.", failed, err)
			} else {
				t.Logf("\t%s\tTest 1:\tShould reject a transfer signed by the wrong key.", success)
			}
		}

		t.Logf("\tTest 2:\tWhen a block exceeds the transfer limit.")
		{
			gSmall := testGenesis(0, 2)
			l, err := ledger.New(ledger.Config{Genesis: gSmall, Serializer: memory.New(), Identities: ids})
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to open the ledger: %v", failed, err)
			}

			trans := []transfer.SignedTransfer{
				signedTransfer(t, alice, bob, "one"),
				signedTransfer(t, alice, bob, "two"),
				signedTransfer(t, alice, bob, "three"),
			}
			block := mineNext(t, l, gSmall, 0, baseTS+10, trans)
			if err := l.Append(block); !errors.Is(err, ledger.ErrInvalidTransaction) {
				t.Errorf("\t%s\tTest 2:\tShould reject an overfull block, got %v.", failed, err)
			} else {
				t.Logf("\t%s\tTest 2:\tShould reject an overfull block.", success)
			}
		}

		t.Logf("\tTest 3:\tWhen a block carries enough transfers to wrap a 16 bit count.")
		{
			gSmall := testGenesis(0, 2)
			l, err := ledger.New(ledger.Config{Genesis: gSmall, Serializer: memory.New(), Identities: ids})
			if err != nil {
				t.Fatalf("\t%s\tTest 3:\tShould be able to open the ledger: %v", failed, err)
			}

			st := signedTransfer(t, alice, bob, "overflow")
			trans := make([]transfer.SignedTransfer, math.MaxUint16+1)
			for i := range trans {
				trans[i] = st
			}

			block := mineNext(t, l, gSmall, 0, baseTS+10, trans)
			err = l.Append(block)
			if !errors.Is(err, ledger.ErrInvalidTransaction) || !strings.Contains(err.Error(), "limit") {
				t.Errorf("\t%s\tTest 3:\tShould reject 65536 transfers at the block limit, got %v.", failed, err)
			} else {
				t.Logf("\t%s\tTest 3:\tShould reject 65536 transfers at the block limit.", success)
			}
		}

		t.Logf("\tTest 4:\tWhen a block declares an unusable miner score.")
		{
			l, err := ledger.New(ledger.Config{Genesis: g, Serializer: memory.New(), Identities: ids})
			if err != nil {
				t.Fatalf("\t%s\tTest 4:\tShould be able to open the ledger: %v", failed, err)
			}

			for _, score := range []float64{math.Inf(1), math.NaN(), ledger.MaxMinerScore * 2} {
				block := mineNext(t, l, g, score, baseTS+10, nil)
				if err := l.Append(block); !errors.Is(err, ledger.ErrDifficultyNotMet) {
					t.Errorf("\t%s\tTest 4:\tShould reject miner score %f with ErrDifficultyNotMet, got %v.", failed, score, err)
				} else {
					t.Logf("\t%s\tTest 4:\tShould reject miner score %f with ErrDifficultyNotMet.", success, score)
				}
			}
		}
	}
}

func Test_PersistAndReload(t *testing.T) {
	alice := newActor(t, "alice")
	bob := newActor(t, "bob")
	ids := identitySet{alice.rec.ID: alice.rec, bob.rec.ID: bob.rec}

	g := testGenesis(0, 10)
	baseTS := uint64(g.Date.UTC().Unix())
	store := memory.New()

	t.Log("Given the need to re-validate a persisted chain on startup.")
	{
		t.Logf("\tTest 0:\tWhen reopening a ledger over existing storage.")
		{
			l, err := ledger.New(ledger.Config{Genesis: g, Serializer: store, Identities: ids})
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to open the ledger: %v", failed, err)
			}

			for i := 1; i <= 3; i++ {
				var trans []transfer.SignedTransfer
				if i == 2 {
					trans = append(trans, signedTransfer(t, alice, bob, "wisdom"))
				}
				block := mineNext(t, l, g, 1.5, baseTS+uint64(i*10), trans)
				if err := l.Append(block); err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be able to append block %d: %v", failed, i, err)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould be able to build a three block chain.", success)

			reopened, err := ledger.New(ledger.Config{Genesis: g, Serializer: store, Identities: ids})
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to reopen the ledger: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to reopen the ledger.", success)

			if reopened.Height() != l.Height() {
				t.Errorf("\t%s\tTest 0:\tShould reload to height %d, got %d.", failed, l.Height(), reopened.Height())
			} else {
				t.Logf("\t%s\tTest 0:\tShould reload to height %d.", success, l.Height())
			}

			if reopened.Tip().Hash() != l.Tip().Hash() {
				t.Errorf("\t%s\tTest 0:\tShould reload to the same tip hash.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould reload to the same tip hash.", success)
			}
		}

		t.Logf("\tTest 1:\tWhen storage was built on a different genesis.")
		{
			other := testGenesis(0, 10)
			other.Date = other.Date.Add(time.Hour)
			if _, err := ledger.New(ledger.Config{Genesis: other, Serializer: store, Identities: ids}); err == nil {
				t.Errorf("\t%s\tTest 1:\tShould refuse to load a chain from a different genesis.", failed)
			} else {
				t.Logf("\t%s\tTest 1:\tShould refuse to load a chain from a different genesis.", success)
			}
		}
	}
}

func Test_ForkChoice(t *testing.T) {
	alice := newActor(t, "alice")
	bob := newActor(t, "bob")
	ids := identitySet{alice.rec.ID: alice.rec, bob.rec.ID: bob.rec}

	g := testGenesis(2, 10)
	baseTS := uint64(g.Date.UTC().Unix())

	open := func() *ledger.Ledger {
		l, err := ledger.New(ledger.Config{Genesis: g, Serializer: memory.New(), Identities: ids})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open the ledger: %v", failed, err)
		}
		return l
	}

	t.Log("Given the need to resolve forks by cumulative difficulty.")
	{
		t.Logf("\tTest 0:\tWhen two equal length chains carry different work.")
		{
			// The fast chain hits the retarget boundary with no elapsed
			// time, so its second block must meet a much harder target and
			// therefore carries more work than the slow chain's.
			fast := open()
			fast1 := mineNext(t, fast, g, 0, baseTS, nil)
			if err := fast.Append(fast1); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to append to the fast chain: %v", failed, err)
			}
			fast2 := mineNext(t, fast, g, 0, baseTS, nil)
			if err := fast.Append(fast2); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to append to the fast chain: %v", failed, err)
			}

			slow := open()
			patience := signedTransfer(t, alice, bob, "patience")
			slow1 := mineNext(t, slow, g, 0, baseTS+20, []transfer.SignedTransfer{patience})
			if err := slow.Append(slow1); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to append to the slow chain: %v", failed, err)
			}
			slow2 := mineNext(t, slow, g, 0, baseTS+40, nil)
			if err := slow.Append(slow2); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to append to the slow chain: %v", failed, err)
			}

			fastWork, err := fast.CumulativeDifficulty()
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to compute chain work: %v", failed, err)
			}
			slowWork, err := slow.CumulativeDifficulty()
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to compute chain work: %v", failed, err)
			}
			if fastWork.Cmp(slowWork) <= 0 {
				t.Fatalf("\t%s\tTest 0:\tShould give the fast chain more work at equal length.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould give the fast chain more work at equal length.", success)

			adopted, err := slow.ReplaceIfBetter(fast.Blocks(0, ledger.QueryLastest))
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to evaluate the heavier chain: %v", failed, err)
			}
			if !adopted {
				t.Errorf("\t%s\tTest 0:\tShould adopt the heavier chain.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould adopt the heavier chain.", success)
			}

			if slow.Tip().Hash() != fast.Tip().Hash() {
				t.Errorf("\t%s\tTest 0:\tShould share the heavier tip after adoption.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould share the heavier tip after adoption.", success)
			}

			if slow.HasTransfer(patience.ContentID()) {
				t.Errorf("\t%s\tTest 0:\tShould drop transfer indexes from the abandoned chain.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould drop transfer indexes from the abandoned chain.", success)
			}

			adopted, err = fast.ReplaceIfBetter(slow.Blocks(0, ledger.QueryLastest))
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to evaluate an equal chain: %v", failed, err)
			}
			if adopted {
				t.Errorf("\t%s\tTest 0:\tShould keep the current chain on a work tie.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould keep the current chain on a work tie.", success)
			}
		}
	}
}

// failingStore wraps a memory store and refuses persistence on demand.
type failingStore struct {
	*memory.Memory
	failWrite   bool
	failReplace bool
}

func (f *failingStore) Write(blockData ledger.BlockData) error {
	if f.failWrite {
		return errors.New("store unavailable")
	}
	return f.Memory.Write(blockData)
}

func (f *failingStore) Replace(blocks []ledger.BlockData) error {
	if f.failReplace {
		return errors.New("store unavailable")
	}
	return f.Memory.Replace(blocks)
}

func Test_PersistenceFailure(t *testing.T) {
	alice := newActor(t, "alice")
	bob := newActor(t, "bob")
	ids := identitySet{alice.rec.ID: alice.rec, bob.rec.ID: bob.rec}

	t.Log("Given the need to keep storage reloadable when persistence fails.")
	{
		t.Logf("\tTest 0:\tWhen appending a block the store cannot write.")
		{
			g := testGenesis(0, 10)
			baseTS := uint64(g.Date.UTC().Unix())
			store := &failingStore{Memory: memory.New()}

			l, err := ledger.New(ledger.Config{Genesis: g, Serializer: store, Identities: ids})
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to open the ledger: %v", failed, err)
			}

			good := mineNext(t, l, g, 0, baseTS+10, []transfer.SignedTransfer{signedTransfer(t, alice, bob, "entropy")})
			if err := l.Append(good); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to append a block: %v", failed, err)
			}

			store.failWrite = true
			bad := mineNext(t, l, g, 0, baseTS+20, nil)
			if err := l.Append(bad); !errors.Is(err, ledger.ErrPersistenceFailure) {
				t.Errorf("\t%s\tTest 0:\tShould surface ErrPersistenceFailure, got %v.", failed, err)
			} else {
				t.Logf("\t%s\tTest 0:\tShould surface ErrPersistenceFailure.", success)
			}

			if l.Height() != 1 || l.Tip().Hash() != good.Hash() {
				t.Errorf("\t%s\tTest 0:\tShould keep the tip at the last durable block.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould keep the tip at the last durable block.", success)
			}

			store.failWrite = false
			reopened, err := ledger.New(ledger.Config{Genesis: g, Serializer: store, Identities: ids})
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to reopen the ledger: %v", failed, err)
			}
			if reopened.Height() != 1 || reopened.Tip().Hash() != good.Hash() {
				t.Errorf("\t%s\tTest 0:\tShould reload the chain the tip reports.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould reload the chain the tip reports.", success)
			}
		}

		t.Logf("\tTest 1:\tWhen adopting a chain the store cannot rewrite.")
		{
			g := testGenesis(2, 10)
			baseTS := uint64(g.Date.UTC().Unix())

			fast, err := ledger.New(ledger.Config{Genesis: g, Serializer: memory.New(), Identities: ids})
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to open the ledger: %v", failed, err)
			}
			for i := 0; i < 2; i++ {
				block := mineNext(t, fast, g, 0, baseTS, nil)
				if err := fast.Append(block); err != nil {
					t.Fatalf("\t%s\tTest 1:\tShould be able to append to the fast chain: %v", failed, err)
				}
			}

			store := &failingStore{Memory: memory.New()}
			slow, err := ledger.New(ledger.Config{Genesis: g, Serializer: store, Identities: ids})
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to open the ledger: %v", failed, err)
			}
			for i := 1; i <= 2; i++ {
				block := mineNext(t, slow, g, 0, baseTS+uint64(i*20), nil)
				if err := slow.Append(block); err != nil {
					t.Fatalf("\t%s\tTest 1:\tShould be able to append to the slow chain: %v", failed, err)
				}
			}
			slowTip := slow.Tip().Hash()

			store.failReplace = true
			adopted, err := slow.ReplaceIfBetter(fast.Blocks(0, ledger.QueryLastest))
			if adopted || !errors.Is(err, ledger.ErrPersistenceFailure) {
				t.Errorf("\t%s\tTest 1:\tShould refuse adoption with ErrPersistenceFailure, got %v.", failed, err)
			} else {
				t.Logf("\t%s\tTest 1:\tShould refuse adoption with ErrPersistenceFailure.", success)
			}

			if slow.Height() != 2 || slow.Tip().Hash() != slowTip {
				t.Errorf("\t%s\tTest 1:\tShould keep the current chain in memory.", failed)
			} else {
				t.Logf("\t%s\tTest 1:\tShould keep the current chain in memory.", success)
			}

			store.failReplace = false
			reopened, err := ledger.New(ledger.Config{Genesis: g, Serializer: store, Identities: ids})
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to reopen the ledger: %v", failed, err)
			}
			if reopened.Height() != 2 || reopened.Tip().Hash() != slowTip {
				t.Errorf("\t%s\tTest 1:\tShould reload the chain that was never swapped out.", failed)
			} else {
				t.Logf("\t%s\tTest 1:\tShould reload the chain that was never swapped out.", success)
			}
		}
	}
}

func Test_RetargetClamp(t *testing.T) {
	g := testGenesis(2, 10)
	g.InitialDifficulty = ledger.FormatTarget(new(big.Int).Lsh(big.NewInt(1), 254))
	g.MaxRetargetFactor = 2
	baseTS := uint64(g.Date.UTC().Unix())
	base := new(big.Int).Lsh(big.NewInt(1), 254)

	open := func() *ledger.Ledger {
		l, err := ledger.New(ledger.Config{Genesis: g, Serializer: memory.New(), Identities: identitySet{}})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to open the ledger: %v", failed, err)
		}
		return l
	}

	t.Log("Given the need to bound how far one retarget can move the target.")
	{
		t.Logf("\tTest 0:\tWhen blocks arrive with no elapsed time.")
		{
			l := open()
			block := mineNext(t, l, g, 0, baseTS, nil)
			if err := l.Append(block); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to append a block: %v", failed, err)
			}

			next, err := l.NextDifficulty()
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to compute the next difficulty: %v", failed, err)
			}

			want := new(big.Int).Rsh(base, 1)
			if next.Cmp(want) != 0 {
				t.Errorf("\t%s\tTest 0:\tShould clamp the target at base over the retarget factor, got %s want %s.", failed, ledger.FormatTarget(next), ledger.FormatTarget(want))
			} else {
				t.Logf("\t%s\tTest 0:\tShould clamp the target at base over the retarget factor.", success)
			}
		}

		t.Logf("\tTest 1:\tWhen blocks arrive far behind schedule.")
		{
			l := open()
			block := mineNext(t, l, g, 0, baseTS+1000, nil)
			if err := l.Append(block); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to append a block: %v", failed, err)
			}

			next, err := l.NextDifficulty()
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to compute the next difficulty: %v", failed, err)
			}

			want := new(big.Int).Lsh(base, 1)
			if next.Cmp(want) != 0 {
				t.Errorf("\t%s\tTest 1:\tShould clamp the target at base times the retarget factor, got %s want %s.", failed, ledger.FormatTarget(next), ledger.FormatTarget(want))
			} else {
				t.Logf("\t%s\tTest 1:\tShould clamp the target at base times the retarget factor.", success)
			}
		}
	}
}
