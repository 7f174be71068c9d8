// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package farm

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/silo-farm/silo/silo"
)

// PendingReward projects the global and pool settlement to now in
// temporaries and returns exactly the amount a claim at the same tick would
// pay, without mutating any state. The arithmetic mirrors the mutating path
// operation for operation, truncation for truncation.
func (f *Farm) PendingReward(id silo.PoolID, staker silo.StakerID, now uint64) (*big.Int, error) {
	if staker.IsZero() {
		return nil, errors.WithMessage(ErrInvalidArgument, "empty staker id")
	}
	p, ok := f.pools[id]
	if !ok {
		return nil, errors.WithMessagef(ErrInvalidArgument, "pool %v not registered", id)
	}
	pos, ok := f.positions[posKey{id, staker}]
	if !ok || pos.Amount.Sign() == 0 {
		return new(big.Int), nil
	}

	accPerShare := f.projectPool(p, f.projectGlobal(now))

	pending := new(big.Int).Mul(pos.Amount, accPerShare)
	pending.Div(pending, silo.AccScale)
	pending.Sub(pending, pos.RewardDebt)
	if pending.Sign() < 0 {
		pending.SetInt64(0)
	}
	return pending, nil
}

// TotalPendingReward sums PendingReward over the listed pools. Like
// ClaimBatch, it fails if any listed pool is unregistered.
func (f *Farm) TotalPendingReward(staker silo.StakerID, ids []silo.PoolID, now uint64) (*big.Int, error) {
	total := new(big.Int)
	for _, id := range ids {
		pending, err := f.PendingReward(id, staker, now)
		if err != nil {
			return nil, err
		}
		total.Add(total, pending)
	}
	return total, nil
}

// projectGlobal returns the per-weight accumulator as settleGlobal(now)
// would leave it, without persisting.
func (f *Farm) projectGlobal(now uint64) *big.Int {
	acc := new(big.Int).Set(f.accPerWeight)
	if now <= f.lastSettled || f.totalWeight.Sign() == 0 {
		return acc
	}
	emitted, _ := f.rates.EmittedBetween(f.lastSettled, now, f.epochCursor)
	if emitted.Sign() > 0 {
		emitted.Mul(emitted, silo.AccScale)
		acc.Add(acc, emitted.Div(emitted, f.totalWeight))
	}
	return acc
}

// projectPool returns the pool's per-share accumulator as settlePool would
// leave it under the projected global accumulator.
func (f *Farm) projectPool(p *Pool, accPerWeight *big.Int) *big.Int {
	accPerShare := new(big.Int).Set(p.AccPerShare)
	if p.TotalStaked.Sign() == 0 {
		return accPerShare
	}
	owed := new(big.Int).Mul(p.Weight, accPerWeight)
	owed.Div(owed, silo.AccScale)
	share := owed.Sub(owed, p.SettlementDebt)
	if share.Sign() > 0 {
		share.Mul(share, silo.AccScale)
		accPerShare.Add(accPerShare, share.Div(share, p.TotalStaked))
	}
	return accPerShare
}
