// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package farm

import "github.com/pkg/errors"

// Typed failures reported to callers. Every failing operation aborts with no
// state mutation; callers match with errors.Is.
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrAlreadyRegistered = errors.New("pool already registered")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInsufficientStake = errors.New("insufficient stake")
)
