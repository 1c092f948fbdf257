// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	v1 "github.com/aseio6668/Sigmos/business/web/v1"
	"github.com/aseio6668/Sigmos/foundation/events"
	"github.com/aseio6668/Sigmos/foundation/sigel/identity"
	"github.com/aseio6668/Sigmos/foundation/sigel/network"
	"github.com/aseio6668/Sigmos/foundation/sigel/state"
	"github.com/aseio6668/Sigmos/foundation/sigel/transfer"
	"github.com/aseio6668/Sigmos/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	Node  *network.Node
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// CreateIdentity mints a new identity record on this node and shares it
// with the network.
func (h Handlers) CreateIdentity(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var ni newIdentity
	if err := web.Decode(r, &ni); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	h.Log.Infow("create identity", "traceid", v.TraceID, "name", ni.Name, "address", ni.Address)
	rec, err := h.State.CreateIdentity(ni.Name, ni.Address)
	if err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, toSigel(rec), http.StatusCreated)
}

// Identities returns every identity record this node knows about.
func (h Handlers) Identities(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	recs := h.State.QueryIdentities()

	sigels := make([]sigel, len(recs))
	for i, rec := range recs {
		sigels[i] = toSigel(rec)
	}

	return web.Respond(ctx, w, sigels, http.StatusOK)
}

// SubmitTransfer adds a new signed knowledge transfer to the pending pool.
func (h Handlers) SubmitTransfer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var st transfer.SignedTransfer
	if err := web.Decode(r, &st); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	h.Log.Infow("submit transfer", "traceid", v.TraceID, "from", st.FromID, "to", st.ToID, "topic", st.Topic)
	if err := h.State.SubmitTransfer(st); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	resp := struct {
		Status    string `json:"status"`
		ContentID string `json:"content_id"`
	}{
		Status:    "transfer added to pending pool",
		ContentID: st.ContentID(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// PendingTransfers returns the set of transfers not yet embedded in a block.
func (h Handlers) PendingTransfers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	pending := h.State.QueryPendingTransfers()

	trans := make([]tx, len(pending))
	for i, st := range pending {
		trans[i] = h.toTx(st)
	}

	return web.Respond(ctx, w, trans, http.StatusOK)
}

// Status returns a summary of the node and its chain.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	work, err := h.State.CumulativeDifficulty()
	if err != nil {
		return err
	}

	ns := nodeStatus{
		ChainHeight:          h.State.ChainHeight(),
		TipHash:              h.State.TipHash(),
		MinerID:              h.State.MinerID(),
		MinerScore:           h.State.MinerScore(),
		PendingTransfers:     len(h.State.QueryPendingTransfers()),
		KnownIdentities:      len(h.State.QueryIdentities()),
		CumulativeDifficulty: work.String(),
		KnownPeers:           h.State.KnownPeers(""),
	}

	return web.Respond(ctx, w, ns, http.StatusOK)
}

// SignalMining asks the worker to start a mining operation.
func (h Handlers) SignalMining(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if h.State.Worker == nil {
		return v1.NewRequestError(fmt.Errorf("no mining worker is running"), http.StatusConflict)
	}
	h.State.Worker.SignalStartMining()

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "mining signalled",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// ConnectPeer dials the specified host and adds it to the peer set.
func (h Handlers) ConnectPeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var cp connectPeer
	if err := web.Decode(r, &cp); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	h.Log.Infow("connect peer", "traceid", v.TraceID, "host", cp.Host)
	if err := h.Node.Connect(ctx, cp.Host); err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	resp := struct {
		Status string `json:"status"`
		Host   string `json:"host"`
	}{
		Status: "peer connected",
		Host:   cp.Host,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Genesis returns the chain parameters.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	gen := h.State.Genesis()
	return web.Respond(ctx, w, gen, http.StatusOK)
}

// BlocksByNumber returns the blocks numbered from through to inclusive.
// Either parameter accepts the literal "latest".
func (h Handlers) BlocksByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	fromStr := web.Param(r, "from")
	toStr := web.Param(r, "to")

	from, err := parseBlockNumber(fromStr)
	if err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	to, err := parseBlockNumber(toStr)
	if err != nil {
		return v1.NewRequestError(err, http.StatusBadRequest)
	}

	dbBlocks := h.State.QueryBlocksByNumber(from, to)
	if len(dbBlocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	blocks := make([]block, len(dbBlocks))
	for i, blk := range dbBlocks {
		trans := make([]tx, len(blk.Trans))
		for j, st := range blk.Trans {
			trans[j] = h.toTx(st)
		}

		blocks[i] = block{
			Hash:          blk.Hash(),
			Number:        blk.Header.Number,
			PrevBlockHash: blk.Header.PrevBlockHash,
			TimeStamp:     blk.Header.TimeStamp,
			MinerID:       blk.Header.MinerID,
			MinerName:     h.lookupName(blk.Header.MinerID),
			MinerScore:    blk.Header.MinerScore,
			Difficulty:    blk.Header.Difficulty,
			Nonce:         blk.Header.Nonce,
			Trans:         trans,
		}
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// parseBlockNumber converts a route parameter into a block number, with the
// literal "latest" selecting the tip.
func parseBlockNumber(s string) (uint64, error) {
	if s == "latest" {
		return state.QueryLastest, nil
	}

	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid block number %q", s)
	}

	return n, nil
}

// lookupName resolves an identity id to its name, empty when unknown.
func (h Handlers) lookupName(id string) string {
	rec, err := h.State.QueryIdentity(id)
	if err != nil {
		return ""
	}
	return rec.Name
}

// toTx builds the client view of a signed transfer.
func (h Handlers) toTx(st transfer.SignedTransfer) tx {
	return tx{
		FromID:    st.FromID,
		FromName:  h.lookupName(st.FromID),
		ToID:      st.ToID,
		ToName:    h.lookupName(st.ToID),
		Topic:     st.Topic,
		Payload:   st.Payload,
		CreatedAt: st.CreatedAt,
		ContentID: st.ContentID(),
		Sig:       st.SignatureString(),
	}
}

// toSigel builds the client view of an identity record.
func toSigel(rec identity.Record) sigel {
	return sigel{
		ID:                   rec.ID,
		Name:                 rec.Name,
		Address:              rec.Address,
		Traits:               rec.Traits,
		DimensionalAwareness: rec.DimensionalAwareness,
		EntropyResistance:    rec.EntropyResistance,
		TrainingIterations:   rec.TrainingIterations,
		ConsciousnessScore:   rec.ConsciousnessScore(),
	}
}
