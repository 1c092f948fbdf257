// Package private maintains the group of handlers for node to node access.
package private

import (
	"context"
	"net/http"

	"github.com/aseio6668/Sigmos/foundation/sigel/network"
	"github.com/aseio6668/Sigmos/foundation/sigel/peer"
	"github.com/aseio6668/Sigmos/foundation/sigel/state"
	"github.com/aseio6668/Sigmos/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of node to node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	Node  *network.Node
}

// session is the view of one live peer session.
type session struct {
	Host       string `json:"host"`
	State      string `json:"state"`
	PeerHeight uint64 `json:"peer_height"`
	Initiated  bool   `json:"initiated"`
}

// Status returns this node's chain position, known peers and live sessions.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	sessions := h.Node.Sessions()

	views := make([]session, len(sessions))
	for i, s := range sessions {
		views[i] = session{
			Host:       s.Host(),
			State:      string(s.State()),
			PeerHeight: s.PeerHeight(),
			Initiated:  s.Initiated(),
		}
	}

	status := struct {
		peer.Status
		Sessions []session `json:"sessions"`
	}{
		Status: peer.Status{
			ChainHeight: h.State.ChainHeight(),
			TipHash:     h.State.TipHash(),
			KnownPeers:  h.State.KnownPeers(""),
		},
		Sessions: views,
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// Peer upgrades an inbound node connection to a websocket session.
func (h Handlers) Peer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return h.Node.AcceptUpgrade(w, r)
}
