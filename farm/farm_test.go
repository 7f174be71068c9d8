// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package farm

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silo-farm/silo/oracle"
	"github.com/silo-farm/silo/silo"
	"github.com/silo-farm/silo/vault"
)

const testCycle = 8640

func newTestFarm(t *testing.T, weights map[silo.PoolID]uint64) (*Farm, *vault.Mem) {
	t.Helper()
	v := vault.NewMem()
	f, err := New(testCycle, oracle.NewStatic(weights), v)
	require.NoError(t, err)
	return f, v
}

// fund books the funding event and mirrors the asset arriving in custody.
func fund(t *testing.T, f *Farm, v *vault.Mem, amount int64, now uint64) {
	t.Helper()
	require.NoError(t, f.Fund(silo.RoleFunder, big.NewInt(amount), now))
	v.Credit(big.NewInt(amount))
}

func TestNewValidatesArgs(t *testing.T) {
	v := vault.NewMem()
	orc := oracle.NewStatic(nil)

	_, err := New(0, orc, v)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	_, err = New(testCycle, nil, v)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	_, err = New(testCycle, orc, nil)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestRoleChecks(t *testing.T) {
	f, _ := newTestFarm(t, map[silo.PoolID]uint64{"p": 1})

	assert.True(t, errors.Is(f.Fund(silo.RoleStaker, big.NewInt(1), 0), ErrUnauthorized))
	assert.True(t, errors.Is(f.Register(silo.RoleFunder, "p", 0), ErrUnauthorized))
	assert.True(t, errors.Is(f.Reweight(silo.RoleStaker, "p", big.NewInt(2), 0), ErrUnauthorized))

	_, err := f.Deposit(silo.RoleController, "p", "alice", big.NewInt(1), 0)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	_, err = f.Withdraw(silo.RoleFunder, "p", "alice", big.NewInt(1), 0)
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestFundValidation(t *testing.T) {
	f, _ := newTestFarm(t, nil)

	assert.True(t, errors.Is(f.Fund(silo.RoleFunder, nil, 0), ErrInvalidArgument))
	assert.True(t, errors.Is(f.Fund(silo.RoleFunder, big.NewInt(0), 0), ErrInvalidArgument))
	assert.True(t, errors.Is(f.Fund(silo.RoleFunder, big.NewInt(-3), 0), ErrInvalidArgument))

	require.NoError(t, f.Fund(silo.RoleFunder, big.NewInt(100), 50))
	assert.True(t, errors.Is(f.Fund(silo.RoleFunder, big.NewInt(100), 49), ErrInvalidArgument))
}

func TestRegister(t *testing.T) {
	f, _ := newTestFarm(t, map[silo.PoolID]uint64{"p": 1000})

	assert.True(t, errors.Is(f.Register(silo.RoleController, "", 0), ErrInvalidArgument))

	require.NoError(t, f.Register(silo.RoleController, "p", 0))
	assert.True(t, errors.Is(f.Register(silo.RoleController, "p", 5), ErrAlreadyRegistered))

	p, ok := f.Pool("p")
	require.True(t, ok)
	assert.Equal(t, big.NewInt(1000), p.Weight)
	assert.Zero(t, p.TotalStaked.Sign())
	assert.Equal(t, big.NewInt(1000), f.GlobalState().TotalWeight)

	// unknown pools register with zero weight
	require.NoError(t, f.Register(silo.RoleController, "q", 0))
	q, _ := f.Pool("q")
	assert.Zero(t, q.Weight.Sign())
}

// A pool registered late must not claim emission from before its
// registration tick.
func TestRegisterBackdates(t *testing.T) {
	f, v := newTestFarm(t, map[silo.PoolID]uint64{"a": 1000, "b": 1000})

	fund(t, f, v, 8640*100, 0) // rate 100
	_, err := f.Deposit(silo.RoleStaker, "a", "alice", big.NewInt(10), 0)
	require.NoError(t, err)

	// pool b arrives at tick 100 with equal weight
	require.NoError(t, f.Register(silo.RoleController, "b", 100))
	_, err = f.Deposit(silo.RoleStaker, "b", "bob", big.NewInt(10), 100)
	require.NoError(t, err)

	// over (0,100] all emission went to a; over (100,200] it splits
	pendingA, err := f.PendingReward("a", "alice", 200)
	require.NoError(t, err)
	pendingB, err := f.PendingReward("b", "bob", 200)
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(100*100+100*50), pendingA)
	assert.Equal(t, big.NewInt(100*50), pendingB)
}

// First worked example: cycle 8640, fund 100 at tick 0, one pool of weight
// 1000, deposit 10 at tick 0, advance to tick 100. The truncated rate emits
// nothing, so pending is exactly zero.
func TestWorkedExampleTruncatedRate(t *testing.T) {
	f, v := newTestFarm(t, map[silo.PoolID]uint64{"P": 1000})

	fund(t, f, v, 100, 0)
	_, err := f.Deposit(silo.RoleStaker, "P", "user", big.NewInt(10), 0)
	require.NoError(t, err)

	pending, err := f.PendingReward("P", "user", 100)
	require.NoError(t, err)
	assert.Zero(t, pending.Sign())

	paid, err := f.Claim("user", "P", 100)
	require.NoError(t, err)
	assert.Zero(t, paid.Sign())
}

// Second worked example: fund 100 at tick 0, advance, fund 150 at tick 100
// with pools weighted 1000/2000. The truncated rate keeps accPerWeight at
// zero while the full first allotment carries into the second epoch.
func TestWorkedExampleCarry(t *testing.T) {
	f, v := newTestFarm(t, map[silo.PoolID]uint64{"a": 1000, "b": 2000})

	fund(t, f, v, 100, 0)
	require.NoError(t, f.Register(silo.RoleController, "a", 0))
	require.NoError(t, f.Register(silo.RoleController, "b", 0))

	fund(t, f, v, 150, 100)
	f.SettleGlobal(100)

	assert.Zero(t, f.GlobalState().AccPerWeight.Sign())

	rl := f.Rates()
	require.Len(t, rl.Epochs, 2)
	assert.Equal(t, big.NewInt(100), rl.Epochs[0].Allotment)
	assert.Equal(t, big.NewInt(250), rl.Epochs[1].Allotment, "carry 100 plus the newly funded 150")
}

func TestProRataFairness(t *testing.T) {
	f, v := newTestFarm(t, map[silo.PoolID]uint64{"p": 1000})

	fund(t, f, v, 8640*90, 0) // rate 90
	_, err := f.Deposit(silo.RoleStaker, "p", "alice", big.NewInt(10), 0)
	require.NoError(t, err)
	_, err = f.Deposit(silo.RoleStaker, "p", "bob", big.NewInt(20), 0)
	require.NoError(t, err)

	pendingA, err := f.PendingReward("p", "alice", 100)
	require.NoError(t, err)
	pendingB, err := f.PendingReward("p", "bob", 100)
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(3000), pendingA)
	assert.Equal(t, big.NewInt(6000), pendingB, "stakes 1:2 earn 1:2")
}

func TestWeightedPoolSplit(t *testing.T) {
	f, v := newTestFarm(t, map[silo.PoolID]uint64{"a": 1000, "b": 2000})

	fund(t, f, v, 8640*90, 0)
	_, err := f.Deposit(silo.RoleStaker, "a", "alice", big.NewInt(5), 0)
	require.NoError(t, err)
	_, err = f.Deposit(silo.RoleStaker, "b", "bob", big.NewInt(3), 0)
	require.NoError(t, err)

	pendingA, err := f.PendingReward("a", "alice", 300)
	require.NoError(t, err)
	pendingB, err := f.PendingReward("b", "bob", 300)
	require.NoError(t, err)

	// 90*300 emitted, split 1/3 : 2/3
	assert.Equal(t, big.NewInt(9000), pendingA)
	assert.Equal(t, big.NewInt(18000), pendingB)
}

func TestSettlementIdempotence(t *testing.T) {
	f, v := newTestFarm(t, map[silo.PoolID]uint64{"p": 1000})

	fund(t, f, v, 8640*10, 0)
	_, err := f.Deposit(silo.RoleStaker, "p", "alice", big.NewInt(5), 0)
	require.NoError(t, err)

	f.SettleGlobal(100)
	require.NoError(t, f.SettlePool("p", 100))
	snap := f.Snapshot()

	f.SettleGlobal(100)
	require.NoError(t, f.SettlePool("p", 100))
	assert.Equal(t, snap, f.Snapshot())

	assert.True(t, errors.Is(f.SettlePool("nope", 100), ErrInvalidArgument))
}

func TestPendingMatchesClaim(t *testing.T) {
	f, v := newTestFarm(t, map[silo.PoolID]uint64{"a": 1000, "b": 500})

	fund(t, f, v, 8640*33, 0)
	_, err := f.Deposit(silo.RoleStaker, "a", "alice", big.NewInt(17), 0)
	require.NoError(t, err)
	_, err = f.Deposit(silo.RoleStaker, "b", "alice", big.NewInt(5), 40)
	require.NoError(t, err)
	fund(t, f, v, 12345, 77)

	for _, tick := range []uint64{100, 101, 5000, 20000} {
		pending, err := f.PendingReward("a", "alice", tick)
		require.NoError(t, err)
		paid, err := f.Claim("alice", "a", tick)
		require.NoError(t, err)
		assert.Equal(t, pending, paid, "tick %d", tick)

		// claim drained it
		pending, err = f.PendingReward("a", "alice", tick)
		require.NoError(t, err)
		assert.Zero(t, pending.Sign())
	}
}

func TestClaimBatch(t *testing.T) {
	f, v := newTestFarm(t, map[silo.PoolID]uint64{"a": 1000, "b": 500})

	fund(t, f, v, 8640*30, 0)
	_, err := f.Deposit(silo.RoleStaker, "a", "alice", big.NewInt(1), 0)
	require.NoError(t, err)
	_, err = f.Deposit(silo.RoleStaker, "b", "alice", big.NewInt(1), 0)
	require.NoError(t, err)

	pools := []silo.PoolID{"a", "b"}
	pending, err := f.TotalPendingReward("alice", pools, 100)
	require.NoError(t, err)
	require.True(t, pending.Sign() > 0)

	// unknown pool fails the whole call before any mutation
	snap := f.Snapshot()
	_, err = f.ClaimBatch("alice", []silo.PoolID{"a", "nope"}, 100)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.Equal(t, snap, f.Snapshot())

	paid, err := f.ClaimBatch("alice", pools, 100)
	require.NoError(t, err)
	assert.Equal(t, pending, paid)
}

func TestWithdraw(t *testing.T) {
	f, v := newTestFarm(t, map[silo.PoolID]uint64{"p": 1000})

	fund(t, f, v, 8640*10, 0)
	_, err := f.Deposit(silo.RoleStaker, "p", "alice", big.NewInt(10), 0)
	require.NoError(t, err)

	_, err = f.Withdraw(silo.RoleStaker, "p", "alice", big.NewInt(11), 50)
	assert.True(t, errors.Is(err, ErrInsufficientStake))
	_, err = f.Withdraw(silo.RoleStaker, "p", "bob", big.NewInt(1), 50)
	assert.True(t, errors.Is(err, ErrInsufficientStake))

	paid, err := f.Withdraw(silo.RoleStaker, "p", "alice", big.NewInt(4), 100)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), paid, "withdraw pays pending first")

	pos, ok := f.Position("p", "alice")
	require.True(t, ok)
	assert.Equal(t, big.NewInt(6), pos.Amount)

	p, _ := f.Pool("p")
	assert.Equal(t, big.NewInt(6), p.TotalStaked)

	// drain to zero; the record survives with zero amount
	_, err = f.Withdraw(silo.RoleStaker, "p", "alice", big.NewInt(6), 100)
	require.NoError(t, err)
	pos, ok = f.Position("p", "alice")
	require.True(t, ok)
	assert.Zero(t, pos.Amount.Sign())
	assert.Zero(t, pos.RewardDebt.Sign())
}

func TestZeroAmountDepositIsClaim(t *testing.T) {
	f, v := newTestFarm(t, map[silo.PoolID]uint64{"p": 1000})

	fund(t, f, v, 8640*10, 0)
	_, err := f.Deposit(silo.RoleStaker, "p", "alice", big.NewInt(10), 0)
	require.NoError(t, err)

	paid, err := f.Deposit(silo.RoleStaker, "p", "alice", big.NewInt(0), 100)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), paid)

	pending, err := f.PendingReward("p", "alice", 100)
	require.NoError(t, err)
	assert.Zero(t, pending.Sign())
}

func TestZeroAmountWithdrawIsClaim(t *testing.T) {
	f, v := newTestFarm(t, map[silo.PoolID]uint64{"p": 1000})

	fund(t, f, v, 8640*10, 0)
	_, err := f.Deposit(silo.RoleStaker, "p", "alice", big.NewInt(10), 0)
	require.NoError(t, err)

	paid, err := f.Withdraw(silo.RoleStaker, "p", "alice", big.NewInt(0), 100)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), paid)

	pos, ok := f.Position("p", "alice")
	require.True(t, ok)
	assert.Equal(t, big.NewInt(10), pos.Amount, "stake untouched")

	// without a position a zero withdraw settles and pays nothing
	paid, err = f.Withdraw(silo.RoleStaker, "p", "bob", big.NewInt(0), 100)
	require.NoError(t, err)
	assert.Zero(t, paid.Sign())
	_, ok = f.Position("p", "bob")
	assert.False(t, ok)
}

func TestZeroWeightSafety(t *testing.T) {
	f, v := newTestFarm(t, map[silo.PoolID]uint64{"p": 1000})

	// funding with no registered weight must not corrupt anything
	fund(t, f, v, 8640*10, 0)
	f.SettleGlobal(100)
	assert.Zero(t, f.GlobalState().AccPerWeight.Sign())

	// the zero-weight window's emission is forfeited: a pool registering
	// at tick 100 earns only from tick 100 on
	require.NoError(t, f.Register(silo.RoleController, "p", 100))
	_, err := f.Deposit(silo.RoleStaker, "p", "alice", big.NewInt(1), 100)
	require.NoError(t, err)

	pending, err := f.PendingReward("p", "alice", 200)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10*100), pending)
}

// While a pool holds no stake its share keeps accruing in the gap between
// the global and pool accumulators, and is re-attributed to whoever stakes
// first once staking resumes.
func TestEmptyPoolWindowReattributed(t *testing.T) {
	f, v := newTestFarm(t, map[silo.PoolID]uint64{"p": 1000})

	fund(t, f, v, 8640*10, 0)
	require.NoError(t, f.Register(silo.RoleController, "p", 0))

	// empty settles only fast-forward bookkeeping
	require.NoError(t, f.SettlePool("p", 50))
	p, _ := f.Pool("p")
	assert.Zero(t, p.AccPerShare.Sign())
	assert.Equal(t, uint64(50), p.LastSettled)

	_, err := f.Deposit(silo.RoleStaker, "p", "alice", big.NewInt(5), 100)
	require.NoError(t, err)

	pending, err := f.PendingReward("p", "alice", 150)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10*150), pending, "the unstaked window (0,100] lands on the first staker")
}

func TestReweightSettlesAtOldWeight(t *testing.T) {
	f, v := newTestFarm(t, map[silo.PoolID]uint64{"a": 1000, "b": 1000})

	fund(t, f, v, 8640*100, 0)
	_, err := f.Deposit(silo.RoleStaker, "a", "alice", big.NewInt(1), 0)
	require.NoError(t, err)
	_, err = f.Deposit(silo.RoleStaker, "b", "bob", big.NewInt(1), 0)
	require.NoError(t, err)

	// equal split over (0,100], then a gets 3x weight
	require.NoError(t, f.Reweight(silo.RoleController, "a", big.NewInt(3000), 100))
	assert.Equal(t, big.NewInt(4000), f.GlobalState().TotalWeight)

	pendingA, err := f.PendingReward("a", "alice", 200)
	require.NoError(t, err)
	pendingB, err := f.PendingReward("b", "bob", 200)
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(100*50+100*75), pendingA)
	assert.Equal(t, big.NewInt(100*50+100*25), pendingB)
}

func TestReweightUnregisteredRegistersFirst(t *testing.T) {
	f, _ := newTestFarm(t, map[silo.PoolID]uint64{"p": 1000})

	require.NoError(t, f.Reweight(silo.RoleController, "p", big.NewInt(500), 10))
	p, ok := f.Pool("p")
	require.True(t, ok)
	assert.Equal(t, big.NewInt(500), p.Weight)
	assert.Equal(t, big.NewInt(500), f.GlobalState().TotalWeight)

	assert.True(t, errors.Is(f.Reweight(silo.RoleController, "p", big.NewInt(-1), 10), ErrInvalidArgument))
}

// A custody shortfall truncates the payout and the difference is forfeited,
// not carried as a debt.
func TestCustodyShortfallForfeited(t *testing.T) {
	f, v := newTestFarm(t, map[silo.PoolID]uint64{"p": 1000})

	// ledger believes 8640*10 was funded but custody only ever saw 300
	require.NoError(t, f.Fund(silo.RoleFunder, big.NewInt(8640*10), 0))
	v.Credit(big.NewInt(300))

	_, err := f.Deposit(silo.RoleStaker, "p", "alice", big.NewInt(1), 0)
	require.NoError(t, err)

	pending, err := f.PendingReward("p", "alice", 100)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1000), pending)

	paid, err := f.Claim("alice", "p", 100)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(300), paid)

	// bookkeeping moved on as though fully paid
	v.Credit(big.NewInt(10000))
	paid, err = f.Claim("alice", "p", 100)
	require.NoError(t, err)
	assert.Zero(t, paid.Sign())
}

func TestClaimOnUnknownPoolOrPosition(t *testing.T) {
	f, v := newTestFarm(t, map[silo.PoolID]uint64{"p": 1000})
	fund(t, f, v, 8640, 0)

	_, err := f.Claim("alice", "nope", 10)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	_, err = f.Claim("", "p", 10)
	assert.True(t, errors.Is(err, ErrInvalidArgument))

	require.NoError(t, f.Register(silo.RoleController, "p", 0))
	paid, err := f.Claim("alice", "p", 10)
	require.NoError(t, err)
	assert.Zero(t, paid.Sign(), "no position claims nothing")
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	f, v := newTestFarm(t, map[silo.PoolID]uint64{"a": 1000, "b": 2000})

	fund(t, f, v, 8640*12, 0)
	_, err := f.Deposit(silo.RoleStaker, "a", "alice", big.NewInt(3), 10)
	require.NoError(t, err)
	_, err = f.Deposit(silo.RoleStaker, "b", "bob", big.NewInt(9), 20)
	require.NoError(t, err)
	fund(t, f, v, 555, 30)

	snap := f.Snapshot()
	restored, err := RestoreFarm(snap, oracle.NewStatic(nil), v)
	require.NoError(t, err)
	assert.Equal(t, snap, restored.Snapshot())

	// both ledgers answer queries identically
	a, err := f.PendingReward("a", "alice", 500)
	require.NoError(t, err)
	b, err := restored.PendingReward("a", "alice", 500)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
