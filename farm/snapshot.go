// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package farm

import (
	"math/big"
	"sort"

	"github.com/pkg/errors"

	"github.com/silo-farm/silo/farm/rates"
)

// Snapshot is the full persisted state surface of the aggregate: the rate
// epoch list, the global accrual record and every pool and position record.
type Snapshot struct {
	CycleLength  uint64
	Epochs       []rates.Epoch
	TotalWeight  *big.Int
	AccPerWeight *big.Int
	LastSettled  uint64
	EpochCursor  uint64
	Pools        []*Pool
	Positions    []*Position
}

// Snapshot captures the aggregate. Pools keep registration order, positions
// are sorted by (pool, staker), so equal states snapshot identically.
func (f *Farm) Snapshot() *Snapshot {
	snap := &Snapshot{
		CycleLength:  f.rates.Cycle(),
		Epochs:       f.rates.Epochs(),
		TotalWeight:  new(big.Int).Set(f.totalWeight),
		AccPerWeight: new(big.Int).Set(f.accPerWeight),
		LastSettled:  f.lastSettled,
		EpochCursor:  uint64(f.epochCursor),
	}
	for _, id := range f.order {
		snap.Pools = append(snap.Pools, f.pools[id].Copy())
	}
	for _, pos := range f.positions {
		snap.Positions = append(snap.Positions, pos.Copy())
	}
	sort.Slice(snap.Positions, func(i, j int) bool {
		a, b := snap.Positions[i], snap.Positions[j]
		if a.Pool != b.Pool {
			return a.Pool < b.Pool
		}
		return a.Staker < b.Staker
	})
	return snap
}

// RestoreFarm rebuilds an aggregate from a snapshot.
func RestoreFarm(snap *Snapshot, oracle WeightOracle, vault Vault) (*Farm, error) {
	f, err := New(snap.CycleLength, oracle, vault)
	if err != nil {
		return nil, err
	}
	if f.rates, err = rates.Restore(snap.CycleLength, snap.Epochs); err != nil {
		return nil, errors.WithMessage(err, "restore rate ledger")
	}

	f.totalWeight.Set(snap.TotalWeight)
	f.accPerWeight.Set(snap.AccPerWeight)
	f.lastSettled = snap.LastSettled
	f.epochCursor = int(snap.EpochCursor)

	for _, p := range snap.Pools {
		if _, ok := f.pools[p.ID]; ok {
			return nil, errors.WithMessagef(ErrInvalidArgument, "duplicate pool %v in snapshot", p.ID)
		}
		f.pools[p.ID] = p.Copy()
		f.order = append(f.order, p.ID)
	}
	for _, pos := range snap.Positions {
		if _, ok := f.pools[pos.Pool]; !ok {
			return nil, errors.WithMessagef(ErrInvalidArgument, "position for unknown pool %v", pos.Pool)
		}
		f.positions[posKey{pos.Pool, pos.Staker}] = pos.Copy()
	}
	return f, nil
}
