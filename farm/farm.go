// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package farm implements the pro-rata reward distribution ledger: a
// periodically funded reward asset streams to weighted pools and within each
// pool to stakers, proportionally to stake and elapsed ticks.
//
// The whole ledger is one owned aggregate. Settlement is lazy: nothing
// advances until an operation touches the global state, a pool, or a
// position, and a touch replays all emission since the last one. Callers
// must serialize operations; the aggregate itself holds no lock.
package farm

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/silo-farm/silo/farm/rates"
	"github.com/silo-farm/silo/log"
	"github.com/silo-farm/silo/silo"
)

var logger = log.WithContext("pkg", "farm")

// WeightOracle supplies a pool's allocation weight. It is consulted exactly
// once per pool, at registration.
type WeightOracle interface {
	WeightOf(id silo.PoolID) (*big.Int, error)
}

// Vault is the custody collaborator payouts are delegated to. Transfer pays
// at most the requested amount, truncated to the custody balance, and
// reports what was actually paid. It never fails.
type Vault interface {
	Transfer(to silo.StakerID, amount *big.Int) *big.Int
}

// Farm is the reward ledger aggregate.
type Farm struct {
	rates  *rates.Ledger
	oracle WeightOracle
	vault  Vault

	totalWeight  *big.Int
	accPerWeight *big.Int // scaled by silo.AccScale
	lastSettled  uint64
	epochCursor  int

	pools     map[silo.PoolID]*Pool
	order     []silo.PoolID
	positions map[posKey]*Position
}

// New creates an empty ledger with the given cycle length.
func New(cycle uint64, oracle WeightOracle, vault Vault) (*Farm, error) {
	if oracle == nil || vault == nil {
		return nil, errors.WithMessage(ErrInvalidArgument, "nil collaborator")
	}
	rl, err := rates.New(cycle)
	if err != nil {
		return nil, errors.WithMessage(ErrInvalidArgument, err.Error())
	}
	return &Farm{
		rates:        rl,
		oracle:       oracle,
		vault:        vault,
		totalWeight:  new(big.Int),
		accPerWeight: new(big.Int),
		pools:        make(map[silo.PoolID]*Pool),
		positions:    make(map[posKey]*Position),
	}, nil
}

// Fund books a funding event of the given amount at the current tick.
// The unused allotment of the previous emission epoch carries into the new
// one; the summed amount streams over one full cycle.
func (f *Farm) Fund(role silo.Role, amount *big.Int, now uint64) error {
	if role != silo.RoleFunder {
		return errors.WithMessagef(ErrUnauthorized, "fund requires funder role, got %v", role)
	}
	if amount == nil || amount.Sign() <= 0 {
		return errors.WithMessage(ErrInvalidArgument, "funding amount must be positive")
	}
	if now < f.lastSettled {
		return errors.WithMessagef(ErrInvalidArgument, "funding at tick %d behind settlement %d", now, f.lastSettled)
	}

	rate, err := f.rates.Fund(amount, now)
	if err != nil {
		return errors.WithMessage(ErrInvalidArgument, err.Error())
	}
	logger.Debug("funded", "amount", amount, "rate", rate, "tick", now)
	return nil
}

// Register creates a pool, fetching its weight from the oracle. The pool is
// backdated to the registration tick: it cannot claim emission from before.
func (f *Farm) Register(role silo.Role, id silo.PoolID, now uint64) error {
	if role != silo.RoleController {
		return errors.WithMessagef(ErrUnauthorized, "register requires controller role, got %v", role)
	}
	_, err := f.register(id, now)
	return err
}

func (f *Farm) register(id silo.PoolID, now uint64) (*Pool, error) {
	if id.IsZero() {
		return nil, errors.WithMessage(ErrInvalidArgument, "empty pool id")
	}
	if _, ok := f.pools[id]; ok {
		return nil, errors.WithMessagef(ErrAlreadyRegistered, "pool %v", id)
	}

	weight, err := f.oracle.WeightOf(id)
	if err != nil {
		return nil, errors.WithMessagef(err, "weight oracle, pool %v", id)
	}
	if weight == nil || weight.Sign() < 0 {
		return nil, errors.WithMessagef(ErrInvalidArgument, "oracle weight for pool %v", id)
	}

	f.settleGlobal(now)
	f.totalWeight.Add(f.totalWeight, weight)

	p := &Pool{
		ID:             id,
		Weight:         new(big.Int).Set(weight),
		TotalStaked:    new(big.Int),
		AccPerShare:    new(big.Int),
		SettlementDebt: f.owedToWeight(weight),
		LastSettled:    now,
		EpochCursor:    uint64(f.epochCursor),
	}
	f.pools[id] = p
	f.order = append(f.order, id)

	logger.Info("pool registered", "pool", id, "weight", weight, "tick", now)
	return p, nil
}

// Reweight revises a pool's allocation weight, settling it at the old weight
// first. An unregistered pool is registered, then set to the new weight.
func (f *Farm) Reweight(role silo.Role, id silo.PoolID, newWeight *big.Int, now uint64) error {
	if role != silo.RoleController {
		return errors.WithMessagef(ErrUnauthorized, "reweight requires controller role, got %v", role)
	}
	if newWeight == nil || newWeight.Sign() < 0 {
		return errors.WithMessage(ErrInvalidArgument, "weight must be non-negative")
	}

	p, ok := f.pools[id]
	if !ok {
		var err error
		if p, err = f.register(id, now); err != nil {
			return err
		}
	}

	f.settlePool(p, now)
	f.totalWeight.Add(f.totalWeight, new(big.Int).Sub(newWeight, p.Weight))
	p.Weight = new(big.Int).Set(newWeight)
	p.SettlementDebt = f.owedToWeight(p.Weight)

	logger.Info("pool reweighted", "pool", id, "weight", newWeight, "tick", now)
	return nil
}

// Deposit adds stake to a staker's position, paying out any pending reward
// first. A zero amount is a plain claim. Unregistered pools are registered
// on first deposit. Returns the amount actually paid out.
func (f *Farm) Deposit(role silo.Role, id silo.PoolID, staker silo.StakerID, amount *big.Int, now uint64) (*big.Int, error) {
	if role != silo.RoleStaker {
		return nil, errors.WithMessagef(ErrUnauthorized, "deposit requires staker role, got %v", role)
	}
	if staker.IsZero() {
		return nil, errors.WithMessage(ErrInvalidArgument, "empty staker id")
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, errors.WithMessage(ErrInvalidArgument, "deposit amount must be non-negative")
	}

	p, ok := f.pools[id]
	if !ok {
		var err error
		if p, err = f.register(id, now); err != nil {
			return nil, err
		}
	}

	f.settlePool(p, now)
	pos := f.getOrCreatePosition(id, staker)
	paid := f.payPending(p, pos)

	if amount.Sign() > 0 {
		pos.Amount.Add(pos.Amount, amount)
		p.TotalStaked.Add(p.TotalStaked, amount)
	}
	pos.RewardDebt = f.owedToStake(pos.Amount, p.AccPerShare)
	return paid, nil
}

// Withdraw removes stake from a staker's position, paying out any pending
// reward first. A zero amount is a plain claim, allowed even without a
// position. Returns the amount actually paid out.
func (f *Farm) Withdraw(role silo.Role, id silo.PoolID, staker silo.StakerID, amount *big.Int, now uint64) (*big.Int, error) {
	if role != silo.RoleStaker {
		return nil, errors.WithMessagef(ErrUnauthorized, "withdraw requires staker role, got %v", role)
	}
	if staker.IsZero() {
		return nil, errors.WithMessage(ErrInvalidArgument, "empty staker id")
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, errors.WithMessage(ErrInvalidArgument, "withdraw amount must be non-negative")
	}

	p, ok := f.pools[id]
	if !ok {
		return nil, errors.WithMessagef(ErrInvalidArgument, "pool %v not registered", id)
	}
	pos, ok := f.positions[posKey{id, staker}]
	if amount.Sign() > 0 && (!ok || pos.Amount.Cmp(amount) < 0) {
		return nil, errors.WithMessagef(ErrInsufficientStake, "pool %v staker %v", id, staker)
	}

	f.settlePool(p, now)
	if !ok {
		// zero withdraw without a position settles the pool, nothing to pay
		return new(big.Int), nil
	}
	paid := f.payPending(p, pos)

	if amount.Sign() > 0 {
		pos.Amount.Sub(pos.Amount, amount)
		p.TotalStaked.Sub(p.TotalStaked, amount)
	}
	pos.RewardDebt = f.owedToStake(pos.Amount, p.AccPerShare)
	return paid, nil
}

// Claim settles and pays out the caller's pending reward in one pool
// without touching the stake.
func (f *Farm) Claim(caller silo.StakerID, id silo.PoolID, now uint64) (*big.Int, error) {
	if caller.IsZero() {
		return nil, errors.WithMessage(ErrInvalidArgument, "empty staker id")
	}
	p, ok := f.pools[id]
	if !ok {
		return nil, errors.WithMessagef(ErrInvalidArgument, "pool %v not registered", id)
	}

	f.settlePool(p, now)
	pos, ok := f.positions[posKey{id, caller}]
	if !ok {
		return new(big.Int), nil
	}
	paid := f.payPending(p, pos)
	pos.RewardDebt = f.owedToStake(pos.Amount, p.AccPerShare)
	return paid, nil
}

// ClaimBatch claims from each listed pool in order and returns the total
// paid. All pools are validated up front so the whole call either runs to
// completion or fails without mutation.
func (f *Farm) ClaimBatch(caller silo.StakerID, ids []silo.PoolID, now uint64) (*big.Int, error) {
	if caller.IsZero() {
		return nil, errors.WithMessage(ErrInvalidArgument, "empty staker id")
	}
	for _, id := range ids {
		if _, ok := f.pools[id]; !ok {
			return nil, errors.WithMessagef(ErrInvalidArgument, "pool %v not registered", id)
		}
	}

	total := new(big.Int)
	for _, id := range ids {
		paid, err := f.Claim(caller, id, now)
		if err != nil {
			return nil, err
		}
		total.Add(total, paid)
	}
	return total, nil
}

// payPending pays out the position's unpaid settled reward, truncated by the
// vault to the custody balance. The caller updates RewardDebt afterwards, so
// any shortfall is forfeited rather than carried.
func (f *Farm) payPending(p *Pool, pos *Position) *big.Int {
	if pos.Amount.Sign() == 0 {
		return new(big.Int)
	}
	pending := f.owedToStake(pos.Amount, p.AccPerShare)
	pending.Sub(pending, pos.RewardDebt)
	if pending.Sign() <= 0 {
		return new(big.Int)
	}

	paid := f.vault.Transfer(pos.Staker, pending)
	if paid.Cmp(pending) < 0 {
		logger.Warn("payout truncated by custody balance",
			"pool", p.ID, "staker", pos.Staker, "pending", pending, "paid", paid)
	}
	return paid
}

func (f *Farm) getOrCreatePosition(id silo.PoolID, staker silo.StakerID) *Position {
	key := posKey{id, staker}
	if pos, ok := f.positions[key]; ok {
		return pos
	}
	pos := &Position{
		Pool:       id,
		Staker:     staker,
		Amount:     new(big.Int),
		RewardDebt: new(big.Int),
	}
	f.positions[key] = pos
	return pos
}

// owedToWeight is weight*accPerWeight/scale, the reward ever attributed to
// that much allocation weight.
func (f *Farm) owedToWeight(weight *big.Int) *big.Int {
	owed := new(big.Int).Mul(weight, f.accPerWeight)
	return owed.Div(owed, silo.AccScale)
}

// owedToStake is amount*accPerShare/scale, the reward ever attributed to
// that much stake under the given per-share accumulator.
func (f *Farm) owedToStake(amount, accPerShare *big.Int) *big.Int {
	owed := new(big.Int).Mul(amount, accPerShare)
	return owed.Div(owed, silo.AccScale)
}
