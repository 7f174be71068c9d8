// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silo-farm/silo/farm"
	"github.com/silo-farm/silo/farmdb"
	"github.com/silo-farm/silo/lvldb"
	"github.com/silo-farm/silo/oracle"
	"github.com/silo-farm/silo/silo"
)

const testCycle = 100

// fakeTicker is a manually advanced tick source.
type fakeTicker struct {
	tick uint64
}

func (t *fakeTicker) Now() uint64 { return t.tick }

func newTestNode(t *testing.T) (*Node, *fakeTicker, *farmdb.Store) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := farmdb.New(db)
	ticker := &fakeTicker{}
	orc := oracle.NewStatic(map[silo.PoolID]uint64{"gold": 100, "silver": 200})
	n, err := New(store, orc, ticker, testCycle)
	require.NoError(t, err)
	return n, ticker, store
}

func TestNewCommitsGenesisSnapshot(t *testing.T) {
	_, _, store := newTestNode(t)
	has, err := store.HasState()
	require.NoError(t, err)
	assert.True(t, has)
}

func TestNewRejectsCycleMismatch(t *testing.T) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	defer db.Close()

	store := farmdb.New(db)
	orc := oracle.NewStatic(nil)
	_, err = New(store, orc, &fakeTicker{}, testCycle)
	require.NoError(t, err)

	_, err = New(store, orc, &fakeTicker{}, testCycle+1)
	assert.True(t, errors.Is(err, farmdb.ErrAlreadyInitialized))
}

func TestOperationsUseClockTicks(t *testing.T) {
	n, ticker, _ := newTestNode(t)

	tick, err := n.Fund(silo.RoleFunder, big.NewInt(10000))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), tick)

	ticker.tick = 7
	_, tick, err = n.Deposit(silo.RoleStaker, "gold", "alice", big.NewInt(5))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), tick)

	state := n.GlobalState()
	assert.Equal(t, uint64(7), state.LastSettled)
}

func TestFundCreditsVault(t *testing.T) {
	n, _, _ := newTestNode(t)

	_, err := n.Fund(silo.RoleFunder, big.NewInt(10000))
	require.NoError(t, err)

	balance, totalPaid := n.Vault()
	assert.Equal(t, big.NewInt(10000), balance)
	assert.Zero(t, totalPaid.Sign())
}

func TestRejectedOpDoesNotAdvance(t *testing.T) {
	n, _, _ := newTestNode(t)

	_, err := n.Fund(silo.RoleStaker, big.NewInt(100))
	assert.True(t, errors.Is(err, farm.ErrUnauthorized))

	balance, _ := n.Vault()
	assert.Zero(t, balance.Sign())
	assert.Empty(t, n.Rates().Epochs)
}

func TestClaimFlow(t *testing.T) {
	n, ticker, _ := newTestNode(t)

	// rate 100/tick, one staker in the only active pool
	_, err := n.Fund(silo.RoleFunder, big.NewInt(10000))
	require.NoError(t, err)
	_, _, err = n.Deposit(silo.RoleStaker, "gold", "alice", big.NewInt(5))
	require.NoError(t, err)

	ticker.tick = 10
	pending, tick, err := n.Pending("gold", "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), tick)
	assert.Equal(t, big.NewInt(1000), pending)

	paid, _, err := n.Claim("alice", "gold")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), paid)

	// nothing left right after the claim
	pending, _, err = n.Pending("gold", "alice")
	require.NoError(t, err)
	assert.Zero(t, pending.Sign())

	balance, totalPaid := n.Vault()
	assert.Equal(t, big.NewInt(9000), balance)
	assert.Equal(t, big.NewInt(1000), totalPaid)
}

func TestClaimBatch(t *testing.T) {
	n, ticker, _ := newTestNode(t)

	_, err := n.Fund(silo.RoleFunder, big.NewInt(30000))
	require.NoError(t, err)
	_, _, err = n.Deposit(silo.RoleStaker, "gold", "alice", big.NewInt(1))
	require.NoError(t, err)
	_, _, err = n.Deposit(silo.RoleStaker, "silver", "alice", big.NewInt(1))
	require.NoError(t, err)

	ticker.tick = 10
	want, _, err := n.PendingTotal("alice", []silo.PoolID{"gold", "silver"})
	require.NoError(t, err)

	paid, _, err := n.ClaimBatch("alice", []silo.PoolID{"gold", "silver"})
	require.NoError(t, err)
	assert.Equal(t, want, paid)
	// rate 300/tick split 100:200 over 10 ticks
	assert.Equal(t, big.NewInt(3000), paid)
}

func TestRestartRestoresState(t *testing.T) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	defer db.Close()

	orc := oracle.NewStatic(map[silo.PoolID]uint64{"gold": 100})
	ticker := &fakeTicker{}

	n, err := New(farmdb.New(db), orc, ticker, testCycle)
	require.NoError(t, err)
	_, err = n.Fund(silo.RoleFunder, big.NewInt(10000))
	require.NoError(t, err)
	_, _, err = n.Deposit(silo.RoleStaker, "gold", "alice", big.NewInt(5))
	require.NoError(t, err)

	// reopen over the same db, as after a restart
	ticker.tick = 10
	reopened, err := New(farmdb.New(db), orc, ticker, testCycle)
	require.NoError(t, err)

	pending, _, err := reopened.Pending("gold", "alice")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), pending)

	paid, _, err := reopened.Claim("alice", "gold")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), paid)
}

func TestVaultUnaffectedByFailedClaim(t *testing.T) {
	n, _, _ := newTestNode(t)

	_, err := n.Fund(silo.RoleFunder, big.NewInt(1000))
	require.NoError(t, err)

	_, _, err = n.Claim("alice", "unknown")
	assert.True(t, errors.Is(err, farm.ErrInvalidArgument))

	balance, totalPaid := n.Vault()
	assert.Equal(t, big.NewInt(1000), balance)
	assert.Zero(t, totalPaid.Sign())
}

var _ Ticker = silo.Clock{}
