// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package node owns the running ledger: it serializes operations over the
// farm aggregate, derives ticks from the wall clock and commits a full
// snapshot to the store after every mutation.
package node

import (
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/silo-farm/silo/farm"
	"github.com/silo-farm/silo/farmdb"
	"github.com/silo-farm/silo/log"
	"github.com/silo-farm/silo/metrics"
	"github.com/silo-farm/silo/oracle"
	"github.com/silo-farm/silo/silo"
	"github.com/silo-farm/silo/vault"
)

var logger = log.WithContext("pkg", "node")

var (
	metricOps       = metrics.LazyLoadCounterVec("ledger_op_total", []string{"op"})
	metricFunded    = metrics.LazyLoadCounter("funded_total")
	metricPaid      = metrics.LazyLoadCounterVec("paid_total", []string{"pool"})
	metricPools     = metrics.LazyLoadGauge("pools_count")
	metricPositions = metrics.LazyLoadGauge("positions_count")
	metricCommitDur = metrics.LazyLoadHistogram("commit_duration_us", metrics.BucketSettleUs)
)

// Ticker supplies the current ledger tick. silo.Clock is the production
// implementation.
type Ticker interface {
	Now() uint64
}

// Node is the single-writer service around the ledger aggregate.
type Node struct {
	mu     sync.Mutex
	farm   *farm.Farm
	vault  *vault.Mem
	oracle oracle.WeightOracle
	store  *farmdb.Store
	clock  Ticker
}

// New opens or creates the ledger with the given cycle length. A fresh
// store gets an initial empty snapshot committed right away.
func New(store *farmdb.Store, orc oracle.WeightOracle, clock Ticker, cycle uint64) (*Node, error) {
	if err := store.Init(cycle); err != nil {
		return nil, err
	}

	n := &Node{oracle: orc, store: store, clock: clock}

	has, err := store.HasState()
	if err != nil {
		return nil, errors.WithMessage(err, "probe store")
	}
	if has {
		if err := n.reload(); err != nil {
			return nil, err
		}
		logger.Info("ledger restored", "tick", n.clock.Now())
	} else {
		n.vault = vault.NewMem()
		if n.farm, err = farm.New(cycle, orc, n.vault); err != nil {
			return nil, err
		}
		if err := store.Commit(n.farm, n.vault); err != nil {
			return nil, errors.WithMessage(err, "commit genesis snapshot")
		}
		logger.Info("ledger created", "cycle", cycle)
	}
	n.updateGauges()
	return n, nil
}

// Fund credits the vault and books a funding event at the current tick.
func (n *Node) Fund(role silo.Role, amount *big.Int) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.clock.Now()
	if err := n.farm.Fund(role, amount, now); err != nil {
		return 0, err
	}
	n.vault.Credit(amount)
	if err := n.commit(); err != nil {
		return 0, err
	}

	n.countOp("fund")
	metricFunded().Add(clampInt64(amount))
	return now, nil
}

// Register creates a pool at the current tick.
func (n *Node) Register(role silo.Role, id silo.PoolID) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.clock.Now()
	if err := n.farm.Register(role, id, now); err != nil {
		return 0, err
	}
	if err := n.commit(); err != nil {
		return 0, err
	}

	n.countOp("register")
	n.updateGauges()
	return now, nil
}

// Reweight revises a pool's allocation weight at the current tick.
func (n *Node) Reweight(role silo.Role, id silo.PoolID, weight *big.Int) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.clock.Now()
	if err := n.farm.Reweight(role, id, weight, now); err != nil {
		return 0, err
	}
	if err := n.commit(); err != nil {
		return 0, err
	}

	n.countOp("reweight")
	n.updateGauges()
	return now, nil
}

// Deposit adds stake for a staker and returns the pending reward paid out.
func (n *Node) Deposit(role silo.Role, id silo.PoolID, staker silo.StakerID, amount *big.Int) (*big.Int, uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.clock.Now()
	paid, err := n.farm.Deposit(role, id, staker, amount, now)
	if err != nil {
		return nil, 0, err
	}
	if err := n.commit(); err != nil {
		return nil, 0, err
	}

	n.countOp("deposit")
	n.countPaid(id, paid)
	n.updateGauges()
	return paid, now, nil
}

// Withdraw removes stake for a staker and returns the pending reward paid out.
func (n *Node) Withdraw(role silo.Role, id silo.PoolID, staker silo.StakerID, amount *big.Int) (*big.Int, uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.clock.Now()
	paid, err := n.farm.Withdraw(role, id, staker, amount, now)
	if err != nil {
		return nil, 0, err
	}
	if err := n.commit(); err != nil {
		return nil, 0, err
	}

	n.countOp("withdraw")
	n.countPaid(id, paid)
	return paid, now, nil
}

// Claim pays out the caller's pending reward in one pool.
func (n *Node) Claim(caller silo.StakerID, id silo.PoolID) (*big.Int, uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.clock.Now()
	paid, err := n.farm.Claim(caller, id, now)
	if err != nil {
		return nil, 0, err
	}
	if err := n.commit(); err != nil {
		return nil, 0, err
	}

	n.countOp("claim")
	n.countPaid(id, paid)
	return paid, now, nil
}

// ClaimBatch pays out the caller's pending reward across the listed pools.
func (n *Node) ClaimBatch(caller silo.StakerID, ids []silo.PoolID) (*big.Int, uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.clock.Now()
	paid, err := n.farm.ClaimBatch(caller, ids, now)
	if err != nil {
		return nil, 0, err
	}
	if err := n.commit(); err != nil {
		return nil, 0, err
	}

	n.countOp("claim_batch")
	return paid, now, nil
}

// Pending projects the unpaid reward of one position at the current tick
// without mutating anything.
func (n *Node) Pending(id silo.PoolID, staker silo.StakerID) (*big.Int, uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.clock.Now()
	pending, err := n.farm.PendingReward(id, staker, now)
	if err != nil {
		return nil, 0, err
	}
	return pending, now, nil
}

// PendingAt projects the unpaid reward of one position at an explicit tick.
// Ticks at or before the last settlement project nothing new.
func (n *Node) PendingAt(id silo.PoolID, staker silo.StakerID, tick uint64) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.farm.PendingReward(id, staker, tick)
}

// PendingTotal projects the summed unpaid reward across the listed pools.
func (n *Node) PendingTotal(staker silo.StakerID, ids []silo.PoolID) (*big.Int, uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.clock.Now()
	pending, err := n.farm.TotalPendingReward(staker, ids, now)
	if err != nil {
		return nil, 0, err
	}
	return pending, now, nil
}

// GlobalState returns the ledger-wide accrual record.
func (n *Node) GlobalState() *farm.GlobalState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.farm.GlobalState()
}

// Rates returns the emission history.
func (n *Node) Rates() *farm.GlobalRates {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.farm.Rates()
}

// Pools returns all pool records in registration order.
func (n *Node) Pools() []*farm.Pool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.farm.Pools()
}

// Pool returns one pool record.
func (n *Node) Pool(id silo.PoolID) (*farm.Pool, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.farm.Pool(id)
}

// Position returns one position record.
func (n *Node) Position(id silo.PoolID, staker silo.StakerID) (*farm.Position, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.farm.Position(id, staker)
}

// Vault returns the custody balance and the cumulative amount paid out.
func (n *Node) Vault() (balance, totalPaid *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.Balance(), n.vault.TotalPaid()
}

// Now returns the current ledger tick.
func (n *Node) Now() uint64 {
	return n.clock.Now()
}

// commit persists the full state. On failure the in-memory aggregate is
// rolled back to the last committed snapshot so memory and store never
// diverge.
func (n *Node) commit() error {
	start := time.Now()
	if err := n.store.Commit(n.farm, n.vault); err != nil {
		logger.Error("commit failed, rolling back to last snapshot", "err", err)
		if rerr := n.reload(); rerr != nil {
			logger.Error("rollback reload failed", "err", rerr)
		}
		return errors.WithMessage(err, "commit snapshot")
	}
	metricCommitDur().Observe(time.Since(start).Microseconds())
	return nil
}

func (n *Node) reload() error {
	snap, vs, err := n.store.Load()
	if err != nil {
		return errors.WithMessage(err, "load snapshot")
	}
	v := vault.RestoreMem(vs.Balance, vs.TotalPaid)
	f, err := farm.RestoreFarm(snap, n.oracle, v)
	if err != nil {
		return errors.WithMessage(err, "restore aggregate")
	}
	n.farm, n.vault = f, v
	return nil
}

func (n *Node) countOp(op string) {
	metricOps().AddWithLabel(1, map[string]string{"op": op})
}

func (n *Node) countPaid(id silo.PoolID, paid *big.Int) {
	if paid.Sign() > 0 {
		metricPaid().AddWithLabel(clampInt64(paid), map[string]string{"pool": string(id)})
	}
}

func (n *Node) updateGauges() {
	pools, positions := n.farm.Stats()
	metricPools().Set(int64(pools))
	metricPositions().Set(int64(positions))
}

func clampInt64(v *big.Int) int64 {
	if !v.IsInt64() {
		return math.MaxInt64
	}
	return v.Int64()
}
