// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package farms exposes the reward ledger over REST. Mutating endpoints
// resolve the caller's bearer token to a role and pass it through; the
// ledger itself decides whether the role covers the operation.
package farms

import (
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/silo-farm/silo/api/restutil"
	"github.com/silo-farm/silo/farm"
	"github.com/silo-farm/silo/node"
	"github.com/silo-farm/silo/silo"
)

type Farms struct {
	node *node.Node
	auth *Auth
}

func New(n *node.Node, auth *Auth) *Farms {
	return &Farms{
		node: n,
		auth: auth,
	}
}

func (f *Farms) handleGetState(w http.ResponseWriter, _ *http.Request) error {
	state := f.node.GlobalState()
	out := &GlobalState{
		CycleLength:  state.CycleLength,
		TotalWeight:  state.TotalWeight.String(),
		AccPerWeight: state.AccPerWeight.String(),
		LastSettled:  state.LastSettled,
		Tick:         f.node.Now(),
	}
	for _, p := range f.node.Pools() {
		out.Pools = append(out.Pools, convertPool(p))
	}
	return restutil.WriteJSON(w, out)
}

func (f *Farms) handleGetRates(w http.ResponseWriter, _ *http.Request) error {
	rates := f.node.Rates()
	out := &Rates{CycleLength: rates.CycleLength}
	for _, e := range rates.Epochs {
		out.Epochs = append(out.Epochs, &Epoch{
			Rate:      e.Rate.String(),
			Start:     e.Start,
			Allotment: e.Allotment.String(),
		})
	}
	return restutil.WriteJSON(w, out)
}

func (f *Farms) handleGetVault(w http.ResponseWriter, _ *http.Request) error {
	balance, totalPaid := f.node.Vault()
	return restutil.WriteJSON(w, &Vault{
		Balance:   balance.String(),
		TotalPaid: totalPaid.String(),
	})
}

func (f *Farms) handleGetPool(w http.ResponseWriter, r *http.Request) error {
	id := silo.PoolID(mux.Vars(r)["id"])
	p, ok := f.node.Pool(id)
	if !ok {
		return restutil.NotFound(errors.Errorf("pool %v not registered", id))
	}
	return restutil.WriteJSON(w, convertPool(p))
}

func (f *Farms) handleGetPosition(w http.ResponseWriter, r *http.Request) error {
	vars := mux.Vars(r)
	pos, ok := f.node.Position(silo.PoolID(vars["id"]), silo.StakerID(vars["staker"]))
	if !ok {
		return restutil.NotFound(errors.New("no position"))
	}
	return restutil.WriteJSON(w, convertPosition(pos))
}

func (f *Farms) handleGetPending(w http.ResponseWriter, r *http.Request) error {
	vars := mux.Vars(r)
	id, staker := silo.PoolID(vars["id"]), silo.StakerID(vars["staker"])

	var (
		pending *big.Int
		tick    uint64
		err     error
	)
	if raw := r.URL.Query().Get("tick"); raw != "" {
		if tick, err = strconv.ParseUint(raw, 10, 64); err != nil {
			return restutil.BadRequest(errors.WithMessage(err, "tick"))
		}
		pending, err = f.node.PendingAt(id, staker, tick)
	} else {
		pending, tick, err = f.node.Pending(id, staker)
	}
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, &Pending{Pending: pending.String(), Tick: tick})
}

func (f *Farms) handleGetPendingTotal(w http.ResponseWriter, r *http.Request) error {
	staker := silo.StakerID(mux.Vars(r)["staker"])
	var ids []silo.PoolID
	if raw := r.URL.Query().Get("pools"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			ids = append(ids, silo.PoolID(id))
		}
	}
	pending, tick, err := f.node.PendingTotal(staker, ids)
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, &Pending{Pending: pending.String(), Tick: tick})
}

func (f *Farms) handleFund(w http.ResponseWriter, r *http.Request) error {
	var req FundRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return restutil.BadRequest(err)
	}
	tick, err := f.node.Fund(f.auth.role(r), amount)
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, &TickReceipt{Tick: tick})
}

func (f *Farms) handleRegister(w http.ResponseWriter, r *http.Request) error {
	id := silo.PoolID(mux.Vars(r)["id"])
	tick, err := f.node.Register(f.auth.role(r), id)
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, &TickReceipt{Tick: tick})
}

func (f *Farms) handleReweight(w http.ResponseWriter, r *http.Request) error {
	id := silo.PoolID(mux.Vars(r)["id"])
	var req WeightRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	weight, err := parseAmount(req.Weight)
	if err != nil {
		return restutil.BadRequest(err)
	}
	tick, err := f.node.Reweight(f.auth.role(r), id, weight)
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, &TickReceipt{Tick: tick})
}

func (f *Farms) handleDeposit(w http.ResponseWriter, r *http.Request) error {
	return f.handleStake(w, r, f.node.Deposit)
}

func (f *Farms) handleWithdraw(w http.ResponseWriter, r *http.Request) error {
	return f.handleStake(w, r, f.node.Withdraw)
}

func (f *Farms) handleStake(
	w http.ResponseWriter,
	r *http.Request,
	op func(silo.Role, silo.PoolID, silo.StakerID, *big.Int) (*big.Int, uint64, error),
) error {
	id := silo.PoolID(mux.Vars(r)["id"])
	var req StakeRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return restutil.BadRequest(err)
	}
	paid, tick, err := op(f.auth.role(r), id, silo.StakerID(req.Staker), amount)
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, &Receipt{Paid: paid.String(), Tick: tick})
}

func (f *Farms) handleClaim(w http.ResponseWriter, r *http.Request) error {
	id := silo.PoolID(mux.Vars(r)["id"])
	var req ClaimRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	staker, err := f.claimant(r, req.Staker)
	if err != nil {
		return err
	}
	paid, tick, err := f.node.Claim(staker, id)
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, &Receipt{Paid: paid.String(), Tick: tick})
}

func (f *Farms) handleClaimBatch(w http.ResponseWriter, r *http.Request) error {
	var req BatchClaimRequest
	if err := restutil.ParseJSON(r.Body, &req); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	staker, err := f.claimant(r, req.Staker)
	if err != nil {
		return err
	}
	ids := make([]silo.PoolID, 0, len(req.Pools))
	for _, id := range req.Pools {
		ids = append(ids, silo.PoolID(id))
	}
	paid, tick, err := f.node.ClaimBatch(staker, ids)
	if err != nil {
		return convertError(err)
	}
	return restutil.WriteJSON(w, &Receipt{Paid: paid.String(), Tick: tick})
}

// claimant checks that the bearer token is bound to the claimed staker.
// Claims move funds to the staker, so a bare staker role is not enough.
func (f *Farms) claimant(r *http.Request, claimed string) (silo.StakerID, error) {
	staker, ok := f.auth.staker(r)
	if !ok {
		return "", restutil.Forbidden(errors.New("claim requires a staker token"))
	}
	if claimed != "" && claimed != string(staker) {
		return "", restutil.Forbidden(errors.Errorf("token not bound to staker %q", claimed))
	}
	return staker, nil
}

func convertError(err error) error {
	switch {
	case errors.Is(err, farm.ErrUnauthorized):
		return restutil.Forbidden(err)
	case errors.Is(err, farm.ErrInvalidArgument),
		errors.Is(err, farm.ErrAlreadyRegistered),
		errors.Is(err, farm.ErrInsufficientStake):
		return restutil.BadRequest(err)
	default:
		return err
	}
}

func (f *Farms) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("farms_get_state").
		HandlerFunc(restutil.WrapHandlerFunc(f.handleGetState))
	sub.Path("/rates").
		Methods(http.MethodGet).
		Name("farms_get_rates").
		HandlerFunc(restutil.WrapHandlerFunc(f.handleGetRates))
	sub.Path("/vault").
		Methods(http.MethodGet).
		Name("farms_get_vault").
		HandlerFunc(restutil.WrapHandlerFunc(f.handleGetVault))
	sub.Path("/fund").
		Methods(http.MethodPost).
		Name("farms_fund").
		HandlerFunc(restutil.WrapHandlerFunc(f.handleFund))
	sub.Path("/claims").
		Methods(http.MethodPost).
		Name("farms_claim_batch").
		HandlerFunc(restutil.WrapHandlerFunc(f.handleClaimBatch))
	sub.Path("/stakers/{staker}/pending").
		Methods(http.MethodGet).
		Name("farms_get_pending_total").
		HandlerFunc(restutil.WrapHandlerFunc(f.handleGetPendingTotal))
	sub.Path("/pools/{id}").
		Methods(http.MethodGet).
		Name("farms_get_pool").
		HandlerFunc(restutil.WrapHandlerFunc(f.handleGetPool))
	sub.Path("/pools/{id}").
		Methods(http.MethodPost).
		Name("farms_register_pool").
		HandlerFunc(restutil.WrapHandlerFunc(f.handleRegister))
	sub.Path("/pools/{id}/weight").
		Methods(http.MethodPut).
		Name("farms_reweight_pool").
		HandlerFunc(restutil.WrapHandlerFunc(f.handleReweight))
	sub.Path("/pools/{id}/deposits").
		Methods(http.MethodPost).
		Name("farms_deposit").
		HandlerFunc(restutil.WrapHandlerFunc(f.handleDeposit))
	sub.Path("/pools/{id}/withdrawals").
		Methods(http.MethodPost).
		Name("farms_withdraw").
		HandlerFunc(restutil.WrapHandlerFunc(f.handleWithdraw))
	sub.Path("/pools/{id}/claims").
		Methods(http.MethodPost).
		Name("farms_claim").
		HandlerFunc(restutil.WrapHandlerFunc(f.handleClaim))
	sub.Path("/pools/{id}/stakers/{staker}").
		Methods(http.MethodGet).
		Name("farms_get_position").
		HandlerFunc(restutil.WrapHandlerFunc(f.handleGetPosition))
	sub.Path("/pools/{id}/stakers/{staker}/pending").
		Methods(http.MethodGet).
		Name("farms_get_pending").
		HandlerFunc(restutil.WrapHandlerFunc(f.handleGetPending))
}
