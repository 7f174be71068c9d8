// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package vault models the custody collaborator holding the reward asset.
// The ledger only ever asks it to pay; a payout is truncated to the held
// balance, never refused.
package vault

import (
	"math/big"

	"github.com/silo-farm/silo/log"
	"github.com/silo-farm/silo/silo"
)

var logger = log.WithContext("pkg", "vault")

// Vault is the custody interface the ledger pays through.
type Vault interface {
	// Credit adds funded reward asset to custody.
	Credit(amount *big.Int)
	// Balance returns the held balance.
	Balance() *big.Int
	// Transfer pays out at most amount, truncated to the held balance,
	// and returns what was actually paid.
	Transfer(to silo.StakerID, amount *big.Int) *big.Int
}

// Mem is an in-memory vault.
type Mem struct {
	balance   *big.Int
	totalPaid *big.Int
	paid      map[silo.StakerID]*big.Int
}

// NewMem creates an empty in-memory vault.
func NewMem() *Mem {
	return &Mem{
		balance:   new(big.Int),
		totalPaid: new(big.Int),
		paid:      make(map[silo.StakerID]*big.Int),
	}
}

// RestoreMem rebuilds a vault from persisted balances.
func RestoreMem(balance, totalPaid *big.Int) *Mem {
	v := NewMem()
	v.balance.Set(balance)
	v.totalPaid.Set(totalPaid)
	return v
}

func (v *Mem) Credit(amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	v.balance.Add(v.balance, amount)
}

func (v *Mem) Balance() *big.Int {
	return new(big.Int).Set(v.balance)
}

func (v *Mem) Transfer(to silo.StakerID, amount *big.Int) *big.Int {
	paid := new(big.Int)
	if amount == nil || amount.Sign() <= 0 {
		return paid
	}

	paid.Set(amount)
	if v.balance.Cmp(paid) < 0 {
		logger.Warn("custody short, truncating payout", "to", to, "requested", amount, "held", v.balance)
		paid.Set(v.balance)
	}
	v.balance.Sub(v.balance, paid)
	v.totalPaid.Add(v.totalPaid, paid)

	acc, ok := v.paid[to]
	if !ok {
		acc = new(big.Int)
		v.paid[to] = acc
	}
	acc.Add(acc, paid)
	return paid
}

// TotalPaid returns the cumulative amount ever paid out.
func (v *Mem) TotalPaid() *big.Int {
	return new(big.Int).Set(v.totalPaid)
}

// PaidTo returns the cumulative amount paid to one staker since the vault
// was created or restored.
func (v *Mem) PaidTo(staker silo.StakerID) *big.Int {
	if acc, ok := v.paid[staker]; ok {
		return new(big.Int).Set(acc)
	}
	return new(big.Int)
}
