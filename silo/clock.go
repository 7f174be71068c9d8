// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package silo

import "time"

// Clock derives the ledger's monotonic tick counter from wall time.
// Ticks start at zero at the genesis instant and advance every Interval
// seconds. The ledger never mutates the clock; it only reads it.
type Clock struct {
	Genesis  int64  // unix seconds of tick zero
	Interval uint64 // seconds per tick, must be > 0
}

// Now returns the current tick.
func (c Clock) Now() uint64 {
	return c.At(time.Now())
}

// At returns the tick containing the given instant, zero for instants
// before genesis.
func (c Clock) At(t time.Time) uint64 {
	sec := t.Unix()
	if sec <= c.Genesis {
		return 0
	}
	return uint64(sec-c.Genesis) / c.Interval
}
