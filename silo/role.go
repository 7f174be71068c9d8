// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package silo

// Role is the capability a caller presents to the ledger. Identity and
// authentication live outside the ledger; every mutating operation only
// checks that the presented role covers it.
type Role uint8

const (
	RoleNone Role = iota
	// RoleFunder may push funding events.
	RoleFunder
	// RoleController may register pools and revise pool weights.
	RoleController
	// RoleStaker may deposit and withdraw stake on behalf of stakers.
	RoleStaker
)

func (r Role) String() string {
	switch r {
	case RoleFunder:
		return "funder"
	case RoleController:
		return "controller"
	case RoleStaker:
		return "staker"
	default:
		return "none"
	}
}

// ParseRole maps a role name to its Role value, RoleNone if unknown.
func ParseRole(name string) Role {
	switch name {
	case "funder":
		return RoleFunder
	case "controller":
		return RoleController
	case "staker":
		return RoleStaker
	default:
		return RoleNone
	}
}
