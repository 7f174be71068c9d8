// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package farm

import (
	"math/big"

	"github.com/silo-farm/silo/farm/rates"
	"github.com/silo-farm/silo/silo"
)

// Pool is the per-pool accrual record. AccPerShare and SettlementDebt carry
// the silo.AccScale fixed-point scale.
type Pool struct {
	ID             silo.PoolID
	Weight         *big.Int
	TotalStaked    *big.Int
	AccPerShare    *big.Int
	SettlementDebt *big.Int
	LastSettled    uint64
	EpochCursor    uint64
}

// Copy returns a deep copy of the record.
func (p *Pool) Copy() *Pool {
	return &Pool{
		ID:             p.ID,
		Weight:         new(big.Int).Set(p.Weight),
		TotalStaked:    new(big.Int).Set(p.TotalStaked),
		AccPerShare:    new(big.Int).Set(p.AccPerShare),
		SettlementDebt: new(big.Int).Set(p.SettlementDebt),
		LastSettled:    p.LastSettled,
		EpochCursor:    p.EpochCursor,
	}
}

// Position is one staker's stake in one pool. RewardDebt equals
// Amount*AccPerShare/AccScale right after any settlement touching the
// position, so the unpaid pending amount is always the difference.
type Position struct {
	Pool       silo.PoolID
	Staker     silo.StakerID
	Amount     *big.Int
	RewardDebt *big.Int
}

// Copy returns a deep copy of the record.
func (p *Position) Copy() *Position {
	return &Position{
		Pool:       p.Pool,
		Staker:     p.Staker,
		Amount:     new(big.Int).Set(p.Amount),
		RewardDebt: new(big.Int).Set(p.RewardDebt),
	}
}

// GlobalState is the ledger-wide accrual record.
type GlobalState struct {
	CycleLength  uint64
	TotalWeight  *big.Int
	AccPerWeight *big.Int
	LastSettled  uint64
	EpochCursor  uint64
}

// GlobalRates is the emission history view.
type GlobalRates struct {
	CycleLength uint64
	Epochs      []rates.Epoch
}

type posKey struct {
	pool   silo.PoolID
	staker silo.StakerID
}
