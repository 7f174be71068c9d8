// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package farm

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/silo-farm/silo/silo"
)

// settleGlobal advances the per-weight accumulator to now, replaying all
// emission epochs since the last settlement. Every mutating operation calls
// it before changing the weight set, so each settled window integrates under
// the weights actually in effect during that window.
func (f *Farm) settleGlobal(now uint64) {
	if now <= f.lastSettled {
		return
	}

	emitted, cursor := f.rates.EmittedBetween(f.lastSettled, now, f.epochCursor)
	if f.totalWeight.Sign() > 0 && emitted.Sign() > 0 {
		emitted.Mul(emitted, silo.AccScale)
		f.accPerWeight.Add(f.accPerWeight, emitted.Div(emitted, f.totalWeight))
	}
	// with zero total weight the emission of the window is unattributable
	// and forfeited: the tick and cursor still advance
	f.lastSettled = now
	f.epochCursor = cursor
}

// settlePool folds the pool's share of global accrual into its per-share
// accumulator. An empty pool only fast-forwards its bookkeeping: the debt is
// left behind so the skipped window is re-attributed once staking resumes.
func (f *Farm) settlePool(p *Pool, now uint64) {
	if now < p.LastSettled {
		return
	}
	f.settleGlobal(now)

	if p.TotalStaked.Sign() == 0 {
		p.LastSettled = now
		p.EpochCursor = uint64(f.epochCursor)
		return
	}

	owed := f.owedToWeight(p.Weight)
	share := new(big.Int).Sub(owed, p.SettlementDebt)
	if share.Sign() > 0 {
		share.Mul(share, silo.AccScale)
		p.AccPerShare.Add(p.AccPerShare, share.Div(share, p.TotalStaked))
	}
	p.SettlementDebt = owed
	p.LastSettled = now
	p.EpochCursor = uint64(f.epochCursor)
}

// SettleGlobal advances the global accumulator. Exposed for testability;
// all operations invoke it implicitly and it is idempotent per tick.
func (f *Farm) SettleGlobal(now uint64) {
	f.settleGlobal(now)
}

// SettlePool settles one pool up to now. Exposed for testability; all
// pool-touching operations invoke it implicitly and it is idempotent per
// tick.
func (f *Farm) SettlePool(id silo.PoolID, now uint64) error {
	p, ok := f.pools[id]
	if !ok {
		return errors.WithMessagef(ErrInvalidArgument, "pool %v not registered", id)
	}
	f.settlePool(p, now)
	return nil
}

// GlobalState returns a copy of the ledger-wide accrual record.
func (f *Farm) GlobalState() *GlobalState {
	return &GlobalState{
		CycleLength:  f.rates.Cycle(),
		TotalWeight:  new(big.Int).Set(f.totalWeight),
		AccPerWeight: new(big.Int).Set(f.accPerWeight),
		LastSettled:  f.lastSettled,
		EpochCursor:  uint64(f.epochCursor),
	}
}

// Pool returns a copy of a pool record.
func (f *Farm) Pool(id silo.PoolID) (*Pool, bool) {
	p, ok := f.pools[id]
	if !ok {
		return nil, false
	}
	return p.Copy(), true
}

// Pools returns copies of all pool records in registration order.
func (f *Farm) Pools() []*Pool {
	out := make([]*Pool, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.pools[id].Copy())
	}
	return out
}

// Position returns a copy of a staker's position record.
func (f *Farm) Position(id silo.PoolID, staker silo.StakerID) (*Position, bool) {
	pos, ok := f.positions[posKey{id, staker}]
	if !ok {
		return nil, false
	}
	return pos.Copy(), true
}

// Stats returns the number of pool and position records.
func (f *Farm) Stats() (pools, positions int) {
	return len(f.pools), len(f.positions)
}

// Rates exposes the emission history for inspection.
func (f *Farm) Rates() *GlobalRates {
	return &GlobalRates{
		CycleLength: f.rates.Cycle(),
		Epochs:      f.rates.Epochs(),
	}
}
