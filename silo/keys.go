// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package silo

// PoolID identifies a reward pool.
type PoolID string

// IsZero returns true if the id is empty.
func (p PoolID) IsZero() bool {
	return len(p) == 0
}

func (p PoolID) String() string {
	return string(p)
}

// StakerID identifies a staker across all pools.
type StakerID string

// IsZero returns true if the id is empty.
func (s StakerID) IsZero() bool {
	return len(s) == 0
}

func (s StakerID) String() string {
	return string(s)
}
