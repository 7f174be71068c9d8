// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package farms

import (
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/silo-farm/silo/silo"
)

// Auth resolves bearer tokens to ledger capabilities. Tokens are static,
// from the daemon config; there is no session state.
type Auth struct {
	roles   map[string]silo.Role
	stakers map[string]silo.StakerID
}

// NewAuth builds the token table. roleTokens maps token to role name
// (funder, controller, staker); stakerTokens maps token to the staker id
// the token may claim for. A claim token grants no role on its own, so
// it cannot move stake.
func NewAuth(roleTokens map[string]string, stakerTokens map[string]string) (*Auth, error) {
	a := &Auth{
		roles:   make(map[string]silo.Role, len(roleTokens)),
		stakers: make(map[string]silo.StakerID, len(stakerTokens)),
	}
	for token, name := range roleTokens {
		role := silo.ParseRole(name)
		if role == silo.RoleNone {
			return nil, errors.Errorf("unknown role %q for token", name)
		}
		a.roles[token] = role
	}
	for token, staker := range stakerTokens {
		if staker == "" {
			return nil, errors.Errorf("empty staker id for token %q", token)
		}
		a.stakers[token] = silo.StakerID(staker)
	}
	return a, nil
}

// role returns the role the request's bearer token carries, RoleNone for
// missing or unknown tokens.
func (a *Auth) role(r *http.Request) silo.Role {
	if role, ok := a.roles[bearer(r)]; ok {
		return role
	}
	return silo.RoleNone
}

// staker returns the staker id the request's bearer token may claim for.
func (a *Auth) staker(r *http.Request) (silo.StakerID, bool) {
	id, ok := a.stakers[bearer(r)]
	return id, ok
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
