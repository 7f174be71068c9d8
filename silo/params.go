// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package silo

import "math/big"

// Constants of the reward ledger.
const (
	TickInterval uint64 = 10 // seconds between two consecutive ticks.

	// DefaultCycleLength is the number of ticks a funded amount is streamed
	// over, one day at the default tick interval.
	DefaultCycleLength uint64 = 8640
)

// AccScale is the fixed-point scale carried by the per-weight and per-share
// accumulators. All accumulator math multiplies by this scale before dividing,
// and divides by it when converting back to plain amounts.
var AccScale = big.NewInt(1e12)
