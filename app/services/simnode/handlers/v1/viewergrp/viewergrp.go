// Package viewergrp maintains the group of handlers for viewing the state of
// the simulated network.
package viewergrp

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/ardanlabs/powchain/business/sim"
	"github.com/ardanlabs/powchain/business/web/errs"
	"github.com/ardanlabs/powchain/foundation/blockchain/chain"
	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/node"
	"github.com/ardanlabs/powchain/foundation/events"
	"github.com/ardanlabs/powchain/foundation/nameservice"
	"github.com/ardanlabs/powchain/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of viewer endpoints.
type Handlers struct {
	Log  *zap.SugaredLogger
	Net  *sim.Network
	NS   *nameservice.NameService
	WS   websocket.Upgrader
	Evts *events.Events
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

	id, ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(id)

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

// Nodes returns the status of every node in the network.
func (h Handlers) Nodes(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var resp []nodeStatus
	for _, host := range h.Net.Hosts() {
		n, _ := h.Net.Node(host)
		resp = append(resp, toNodeStatus(n))
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Node returns the status of a single node.
func (h Handlers) Node(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	n, err := h.node(r)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, toNodeStatus(n), http.StatusOK)
}

// Blocks returns the blocks of a node. The optional from and to query
// parameters select a range of block numbers.
func (h Handlers) Blocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	n, err := h.node(r)
	if err != nil {
		return err
	}

	from, err := queryNumber(r, "from", 0)
	if err != nil {
		return err
	}

	to, err := queryNumber(r, "to", chain.QueryLatest)
	if err != nil {
		return err
	}

	blocks := n.Chain().QueryBlocks(from, to)

	resp := make([]block, len(blocks))
	for i, blk := range blocks {
		resp[i] = h.toBlock(blk)
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Mempool returns the transactions waiting to be mined on a node.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	n, err := h.node(r)
	if err != nil {
		return err
	}

	pending := n.Chain().PendingTransactions()

	resp := make([]tx, len(pending))
	for i, tran := range pending {
		resp[i] = h.toTx(tran)
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Balances returns the balances of a node's ledger. An account parameter
// restricts the response to one account.
func (h Handlers) Balances(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	n, err := h.node(r)
	if err != nil {
		return err
	}

	all := n.Chain().Balances()

	if account := web.Param(r, "account"); account != "" {
		accountID, err := database.ToAccountID(account)
		if err != nil {
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
		all = map[database.AccountID]float64{accountID: n.Chain().GetBalance(accountID)}
	}

	resp := balances{
		LatestBlock: n.Chain().LatestBlock().Hash(),
		Balances:    make([]balance, 0, len(all)),
	}

	for accountID, value := range all {
		resp.Total += value
		resp.Balances = append(resp.Balances, balance{
			Account: accountID,
			Name:    h.NS.Lookup(accountID),
			Balance: value,
		})
	}

	sort.Slice(resp.Balances, func(i, j int) bool {
		return resp.Balances[i].Account < resp.Balances[j].Account
	})

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// History returns every transaction that touched an account on a node.
func (h Handlers) History(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	n, err := h.node(r)
	if err != nil {
		return err
	}

	accountID, err := database.ToAccountID(web.Param(r, "account"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	history := n.Chain().GetAddressHistory(accountID)

	resp := make([]tx, len(history))
	for i, tran := range history {
		resp[i] = h.toTx(tran)
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// =============================================================================

func (h Handlers) node(r *http.Request) (*node.Node, error) {
	host := web.Param(r, "host")

	n, exists := h.Net.Node(host)
	if !exists {
		return nil, errs.NewTrusted(fmt.Errorf("node %q not found", host), http.StatusNotFound)
	}

	return n, nil
}

func (h Handlers) toTx(tran database.Tx) tx {
	return tx{
		ID:        tran.ID(),
		Kind:      tran.Kind.String(),
		FromID:    tran.FromID,
		FromName:  h.NS.Lookup(tran.FromID),
		ToID:      tran.ToID,
		ToName:    h.NS.Lookup(tran.ToID),
		Amount:    tran.Amount,
		Fee:       tran.Fee,
		TimeStamp: tran.TimeStamp,
		Signature: tran.Signature.String(),
	}
}

func (h Handlers) toBlock(blk database.Block) block {
	values := blk.Values()

	trans := make([]tx, len(values))
	for i, tran := range values {
		trans[i] = h.toTx(tran)
	}

	return block{
		Number:        blk.Header.Number,
		PrevBlockHash: blk.Header.PrevBlockHash,
		TimeStamp:     blk.Header.TimeStamp,
		Nonce:         blk.Header.Nonce,
		TransRoot:     blk.Header.TransRoot,
		Hash:          blk.Hash(),
		Trans:         trans,
	}
}

func toNodeStatus(n *node.Node) nodeStatus {
	c := n.Chain()

	return nodeStatus{
		Status:      n.Status(),
		Pending:     c.PendingCount(),
		Orphans:     n.Orphans(),
		BlockReward: c.BlockReward(),
		Difficulty:  c.Difficulty(),
		Valid:       c.IsValidChain(),
	}
}

func queryNumber(r *http.Request, key string, def uint64) (uint64, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return def, nil
	}

	number, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errs.NewTrusted(fmt.Errorf("invalid %s block number: %w", key, err), http.StatusBadRequest)
	}

	return number, nil
}
