// Package v1 contains the full set of handler functions and routes
// supported by the v1 web api.
package v1

import (
	"net/http"

	"github.com/ardanlabs/powchain/app/services/simnode/handlers/v1/viewergrp"
	"github.com/ardanlabs/powchain/business/sim"
	"github.com/ardanlabs/powchain/foundation/events"
	"github.com/ardanlabs/powchain/foundation/nameservice"
	"github.com/ardanlabs/powchain/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log  *zap.SugaredLogger
	Net  *sim.Network
	NS   *nameservice.NameService
	Evts *events.Events
}

// ViewerRoutes binds all the version 1 viewer routes.
func ViewerRoutes(app *web.App, cfg Config) {
	vgh := viewergrp.Handlers{
		Log:  cfg.Log,
		Net:  cfg.Net,
		NS:   cfg.NS,
		Evts: cfg.Evts,
	}

	app.Handle(http.MethodGet, version, "/events", vgh.Events)
	app.Handle(http.MethodGet, version, "/nodes", vgh.Nodes)
	app.Handle(http.MethodGet, version, "/nodes/:host", vgh.Node)
	app.Handle(http.MethodGet, version, "/nodes/:host/blocks", vgh.Blocks)
	app.Handle(http.MethodGet, version, "/nodes/:host/mempool", vgh.Mempool)
	app.Handle(http.MethodGet, version, "/nodes/:host/balances", vgh.Balances)
	app.Handle(http.MethodGet, version, "/nodes/:host/balances/:account", vgh.Balances)
	app.Handle(http.MethodGet, version, "/nodes/:host/history/:account", vgh.History)
}
