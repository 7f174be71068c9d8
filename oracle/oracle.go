// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package oracle supplies pool allocation weights. The ledger consults the
// oracle exactly once per pool, at registration; later revisions go through
// the reweight operation.
package oracle

import (
	"math/big"

	"github.com/silo-farm/silo/silo"
)

// WeightOracle resolves a pool's allocation weight.
type WeightOracle interface {
	WeightOf(id silo.PoolID) (*big.Int, error)
}

// Func adapts a plain function to the WeightOracle interface.
type Func func(id silo.PoolID) (*big.Int, error)

func (f Func) WeightOf(id silo.PoolID) (*big.Int, error) {
	return f(id)
}

// Static serves weights from a fixed table. Pools absent from the table get
// zero weight: they register fine but earn nothing until reweighted.
type Static struct {
	weights map[silo.PoolID]*big.Int
}

// NewStatic builds a static oracle from a weight table.
func NewStatic(weights map[silo.PoolID]uint64) *Static {
	s := &Static{weights: make(map[silo.PoolID]*big.Int, len(weights))}
	for id, w := range weights {
		s.weights[id] = new(big.Int).SetUint64(w)
	}
	return s
}

func (s *Static) WeightOf(id silo.PoolID) (*big.Int, error) {
	if w, ok := s.weights[id]; ok {
		return new(big.Int).Set(w), nil
	}
	return new(big.Int), nil
}
