// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/aseio6668/Sigmos/app/services/node/handlers/v1/private"
	"github.com/aseio6668/Sigmos/app/services/node/handlers/v1/public"
	"github.com/aseio6668/Sigmos/foundation/events"
	"github.com/aseio6668/Sigmos/foundation/sigel/network"
	"github.com/aseio6668/Sigmos/foundation/sigel/state"
	"github.com/aseio6668/Sigmos/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log   *zap.SugaredLogger
	State *state.State
	Node  *network.Node
	Evts  *events.Events
}

// PublicRoutes binds all the version 1 public routes.
func PublicRoutes(app *web.App, cfg Config) {
	pbl := public.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		Node:  cfg.Node,
		Evts:  cfg.Evts,
	}

	app.Handle(http.MethodPost, version, "/identity", pbl.CreateIdentity)
	app.Handle(http.MethodGet, version, "/identity/list", pbl.Identities)
	app.Handle(http.MethodPost, version, "/transfer", pbl.SubmitTransfer)
	app.Handle(http.MethodGet, version, "/transfer/pending", pbl.PendingTransfers)
	app.Handle(http.MethodGet, version, "/status", pbl.Status)
	app.Handle(http.MethodPost, version, "/mining/signal", pbl.SignalMining)
	app.Handle(http.MethodPost, version, "/peer/connect", pbl.ConnectPeer)
	app.Handle(http.MethodGet, version, "/genesis/list", pbl.Genesis)
	app.Handle(http.MethodGet, version, "/block/list/:from/:to", pbl.BlocksByNumber)
	app.Handle(http.MethodGet, version, "/events", pbl.Events)
}

// PrivateRoutes binds all the version 1 private routes.
func PrivateRoutes(app *web.App, cfg Config) {
	prv := private.Handlers{
		Log:   cfg.Log,
		State: cfg.State,
		Node:  cfg.Node,
	}

	app.Handle(http.MethodGet, version, "/node/status", prv.Status)
	app.Handle(http.MethodGet, version, "/node/peer", prv.Peer)
}
