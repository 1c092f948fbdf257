package network_test

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aseio6668/Sigmos/foundation/sigel/genesis"
	"github.com/aseio6668/Sigmos/foundation/sigel/identity"
	"github.com/aseio6668/Sigmos/foundation/sigel/ledger"
	"github.com/aseio6668/Sigmos/foundation/sigel/ledger/storage/memory"
	"github.com/aseio6668/Sigmos/foundation/sigel/network"
	"github.com/aseio6668/Sigmos/foundation/sigel/registry"
	"github.com/aseio6668/Sigmos/foundation/sigel/state"
	"github.com/aseio6668/Sigmos/foundation/sigel/transfer"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

func testGenesis() genesis.Genesis {
	return genesis.Genesis{
		Date:                time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		ChainID:             1,
		TransPerBlock:       10,
		InitialDifficulty:   ledger.FormatTarget(new(big.Int).Lsh(big.NewInt(1), 255)),
		BlockIntervalSecs:   10,
		MaxRetargetFactor:   4,
		ConsciousnessWeight: 2.0,
	}
}

// testNode bundles one node's full stack for a peer session test.
type testNode struct {
	state *state.State
	node  *network.Node
	srv   *httptest.Server
}

func (tn *testNode) stop() {
	tn.node.Shutdown()
	tn.srv.Close()
	tn.state.Shutdown()
}

// newTestNode stands up a state and network node behind a live websocket
// endpoint, identified by the test server's own host.
func newTestNode(t *testing.T, reg *registry.Registry) *testNode {
	var node *network.Node

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := node.AcceptUpgrade(w, r); err != nil {
			t.Logf("accept upgrade: %v", err)
		}
	}))

	st, err := state.New(state.Config{
		Host:       strings.TrimPrefix(srv.URL, "http://"),
		Genesis:    testGenesis(),
		Serializer: memory.New(),
		Registry:   reg,
	})
	if err != nil {
		srv.Close()
		t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
	}

	node, err = network.New(network.Config{Backend: st})
	if err != nil {
		srv.Close()
		t.Fatalf("\t%s\tShould be able to construct the node: %v", failed, err)
	}

	return &testNode{state: st, node: node, srv: srv}
}

func newRegistry(t *testing.T) *registry.Registry {
	reg, err := registry.New(registry.NewMemoryStore())
	if err != nil {
		t.Fatalf("\t%s\tShould be able to open a registry: %v", failed, err)
	}
	return reg
}

func createMember(t *testing.T, reg *registry.Registry, name string) (identity.Record, *ecdsa.PrivateKey) {
	pk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to generate a private key: %v", failed, err)
	}

	rec, err := reg.Create(name, crypto.PubkeyToAddress(pk.PublicKey).String())
	if err != nil {
		t.Fatalf("\t%s\tShould be able to create identity %s: %v", failed, name, err)
	}

	return rec, pk
}

// waitFor polls the condition until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func Test_PeerSessionSync(t *testing.T) {
	minerReg := newRegistry(t)
	alice, aliceKey := createMember(t, minerReg, "alice")
	bob, _ := createMember(t, minerReg, "bob")

	miner := newTestNode(t, minerReg)
	defer miner.stop()
	miner.state.SetMiner(alice.ID)

	tr := transfer.Prepare(alice.ID, bob.ID, "entropy", []byte("notes on entropy"))
	st, err := tr.Sign(aliceKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign a transfer: %v", failed, err)
	}
	if err := miner.state.SubmitTransfer(st); err != nil {
		t.Fatalf("\t%s\tShould be able to submit a transfer: %v", failed, err)
	}
	if _, err := miner.state.MineNewBlock(context.Background()); err != nil {
		t.Fatalf("\t%s\tShould be able to mine a block: %v", failed, err)
	}

	t.Log("Given the need to sync a fresh node from a peer.")
	{
		t.Logf("\tTest 0:\tWhen connecting to a peer with a longer chain.")
		{
			follower := newTestNode(t, newRegistry(t))
			defer follower.stop()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := follower.node.Connect(ctx, miner.state.Host()); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to connect to the peer: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to connect to the peer.", success)

			if !waitFor(t, func() bool { return len(follower.state.QueryIdentities()) == 2 }) {
				t.Fatalf("\t%s\tTest 0:\tShould learn the peer's identities, have %d.", failed, len(follower.state.QueryIdentities()))
			}
			t.Logf("\t%s\tTest 0:\tShould learn the peer's identities.", success)

			if !waitFor(t, func() bool { return follower.state.TipHash() == miner.state.TipHash() }) {
				t.Fatalf("\t%s\tTest 0:\tShould converge on the peer's tip.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould converge on the peer's tip.", success)

			if !waitFor(t, func() bool { return len(miner.node.Sessions()) == 1 }) {
				t.Fatalf("\t%s\tTest 0:\tShould hold a session on both sides.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould hold a session on both sides.", success)
		}

		t.Logf("\tTest 1:\tWhen a new block is announced over the session.")
		{
			follower := newTestNode(t, newRegistry(t))
			defer follower.stop()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := follower.node.Connect(ctx, miner.state.Host()); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to connect to the peer: %v", failed, err)
			}
			if !waitFor(t, func() bool { return follower.state.TipHash() == miner.state.TipHash() }) {
				t.Fatalf("\t%s\tTest 1:\tShould converge before the announce.", failed)
			}

			tr := transfer.Prepare(alice.ID, bob.ID, "wisdom", []byte("notes on wisdom"))
			signed, err := tr.Sign(aliceKey)
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to sign a transfer: %v", failed, err)
			}
			if err := miner.state.SubmitTransfer(signed); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to submit a transfer: %v", failed, err)
			}

			block, err := miner.state.MineNewBlock(context.Background())
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to mine a block: %v", failed, err)
			}
			miner.node.BroadcastBlock(block)

			if !waitFor(t, func() bool { return follower.state.TipHash() == miner.state.TipHash() }) {
				t.Fatalf("\t%s\tTest 1:\tShould adopt the announced block.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould adopt the announced block.", success)
		}
	}
}

func Test_WireEnvelope(t *testing.T) {
	t.Log("Given the need to move typed payloads over the wire.")
	{
		t.Logf("\tTest 0:\tWhen encoding and decoding an envelope.")
		{
			env, err := network.NewEnvelope(network.TypeChainRequest, network.ChainRequest{FromNumber: 7})
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to build an envelope: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to build an envelope.", success)

			if env.Version != network.ProtocolVersion {
				t.Errorf("\t%s\tTest 0:\tShould carry the protocol version, got %d.", failed, env.Version)
			} else {
				t.Logf("\t%s\tTest 0:\tShould carry the protocol version.", success)
			}
			if env.ID == "" {
				t.Errorf("\t%s\tTest 0:\tShould carry a correlation id.", failed)
			} else {
				t.Logf("\t%s\tTest 0:\tShould carry a correlation id.", success)
			}

			var req network.ChainRequest
			if err := env.Decode(&req); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to decode the payload: %v", failed, err)
			}
			if req.FromNumber != 7 {
				t.Errorf("\t%s\tTest 0:\tShould round trip the payload, got from %d.", failed, req.FromNumber)
			} else {
				t.Logf("\t%s\tTest 0:\tShould round trip the payload.", success)
			}
		}
	}
}
