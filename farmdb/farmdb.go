// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package farmdb persists the farm aggregate and vault balances as
// RLP-encoded records in a key-value store. A commit writes the full
// state through a single batch, so a crash leaves either the previous
// snapshot or the new one, never a mix.
package farmdb

import (
	"encoding/binary"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/silo-farm/silo/farm"
	"github.com/silo-farm/silo/farm/rates"
	"github.com/silo-farm/silo/kv"
	"github.com/silo-farm/silo/silo"
	"github.com/silo-farm/silo/vault"
)

// ErrAlreadyInitialized is returned by Init when the store was created
// with a different cycle length.
var ErrAlreadyInitialized = errors.New("store already initialized")

const (
	configBucket   = kv.Bucket("c")
	globalBucket   = kv.Bucket("g")
	epochBucket    = kv.Bucket("e")
	poolBucket     = kv.Bucket("p")
	positionBucket = kv.Bucket("s")
	vaultBucket    = kv.Bucket("v")
)

var (
	cycleKey = []byte("cycle")
	stateKey = []byte("state")
)

type globalRecord struct {
	TotalWeight  *big.Int
	AccPerWeight *big.Int
	LastSettled  uint64
	EpochCursor  uint64
}

type epochRecord struct {
	Rate      *big.Int
	Start     uint64
	Allotment *big.Int
}

// Index preserves registration order, which the bucket's lexicographic
// key order does not.
type poolRecord struct {
	Index          uint64
	Weight         *big.Int
	TotalStaked    *big.Int
	AccPerShare    *big.Int
	SettlementDebt *big.Int
	LastSettled    uint64
	EpochCursor    uint64
}

type positionRecord struct {
	Amount     *big.Int
	RewardDebt *big.Int
}

type vaultRecord struct {
	Balance   *big.Int
	TotalPaid *big.Int
}

// VaultState is the persisted custody balances.
type VaultState struct {
	Balance   *big.Int
	TotalPaid *big.Int
}

// Store reads and writes farm snapshots over a key-value store.
type Store struct {
	db kv.GetPutter
}

// New creates a store over the given key-value store.
func New(db kv.GetPutter) *Store {
	return &Store{db: db}
}

// Init records the cycle length on first use. Reopening with the same
// cycle length is a no-op; a different one fails with ErrAlreadyInitialized.
func (s *Store) Init(cycle uint64) error {
	getter := configBucket.NewGetter(s.db)
	data, err := getter.Get(cycleKey)
	if err != nil {
		if !getter.IsNotFound(err) {
			return errors.WithMessage(err, "read cycle length")
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], cycle)
		return configBucket.NewPutter(s.db).Put(cycleKey, buf[:])
	}
	if stored := binary.BigEndian.Uint64(data); stored != cycle {
		return errors.WithMessagef(ErrAlreadyInitialized, "store holds cycle length %d, configured %d", stored, cycle)
	}
	return nil
}

// HasState reports whether a snapshot has ever been committed.
func (s *Store) HasState() (bool, error) {
	return globalBucket.NewGetter(s.db).Has(stateKey)
}

// Commit writes the full state of the aggregate and the vault in one
// batch. Records are only ever added or overwritten, never removed, so
// the previous snapshot needs no clearing.
func (s *Store) Commit(f *farm.Farm, v *vault.Mem) error {
	snap := f.Snapshot()
	batch := s.db.NewBatch()

	global := &globalRecord{snap.TotalWeight, snap.AccPerWeight, snap.LastSettled, snap.EpochCursor}
	if err := saveRLP(globalBucket.NewPutter(batch), stateKey, global); err != nil {
		return err
	}

	epochPutter := epochBucket.NewPutter(batch)
	for i, e := range snap.Epochs {
		var key [8]byte
		binary.BigEndian.PutUint64(key[:], uint64(i))
		if err := saveRLP(epochPutter, key[:], &epochRecord{e.Rate, e.Start, e.Allotment}); err != nil {
			return err
		}
	}

	poolPutter := poolBucket.NewPutter(batch)
	for i, p := range snap.Pools {
		rec := &poolRecord{uint64(i), p.Weight, p.TotalStaked, p.AccPerShare, p.SettlementDebt, p.LastSettled, p.EpochCursor}
		if err := saveRLP(poolPutter, []byte(p.ID), rec); err != nil {
			return err
		}
	}

	positionPutter := positionBucket.NewPutter(batch)
	for _, pos := range snap.Positions {
		key, err := positionKey(pos.Pool, pos.Staker)
		if err != nil {
			return err
		}
		if err := saveRLP(positionPutter, key, &positionRecord{pos.Amount, pos.RewardDebt}); err != nil {
			return err
		}
	}

	if err := saveRLP(vaultBucket.NewPutter(batch), stateKey, &vaultRecord{v.Balance(), v.TotalPaid()}); err != nil {
		return err
	}

	return errors.WithMessage(batch.Write(), "write snapshot batch")
}

// Load rebuilds the last committed snapshot and the vault balances.
func (s *Store) Load() (*farm.Snapshot, *VaultState, error) {
	data, err := configBucket.NewGetter(s.db).Get(cycleKey)
	if err != nil {
		return nil, nil, errors.WithMessage(err, "read cycle length")
	}
	snap := &farm.Snapshot{CycleLength: binary.BigEndian.Uint64(data)}

	var global globalRecord
	if err := loadRLP(globalBucket.NewGetter(s.db), stateKey, &global); err != nil {
		return nil, nil, errors.WithMessage(err, "read global record")
	}
	snap.TotalWeight = global.TotalWeight
	snap.AccPerWeight = global.AccPerWeight
	snap.LastSettled = global.LastSettled
	snap.EpochCursor = global.EpochCursor

	if err := s.loadEpochs(snap); err != nil {
		return nil, nil, err
	}
	if err := s.loadPools(snap); err != nil {
		return nil, nil, err
	}
	if err := s.loadPositions(snap); err != nil {
		return nil, nil, err
	}

	var vr vaultRecord
	if err := loadRLP(vaultBucket.NewGetter(s.db), stateKey, &vr); err != nil {
		return nil, nil, errors.WithMessage(err, "read vault record")
	}
	return snap, &VaultState{Balance: vr.Balance, TotalPaid: vr.TotalPaid}, nil
}

func (s *Store) loadEpochs(snap *farm.Snapshot) error {
	it := epochBucket.NewGetter(s.db).NewIterator(kv.Range{})
	defer it.Release()
	for it.Next() {
		var rec epochRecord
		if err := rlp.DecodeBytes(it.Value(), &rec); err != nil {
			return errors.WithMessage(err, "decode epoch record")
		}
		snap.Epochs = append(snap.Epochs, rates.Epoch{Rate: rec.Rate, Start: rec.Start, Allotment: rec.Allotment})
	}
	return errors.WithMessage(it.Error(), "iterate epochs")
}

func (s *Store) loadPools(snap *farm.Snapshot) error {
	it := poolBucket.NewGetter(s.db).NewIterator(kv.Range{})
	defer it.Release()

	type indexed struct {
		index uint64
		pool  *farm.Pool
	}
	var pools []indexed
	for it.Next() {
		var rec poolRecord
		if err := rlp.DecodeBytes(it.Value(), &rec); err != nil {
			return errors.WithMessage(err, "decode pool record")
		}
		pools = append(pools, indexed{rec.Index, &farm.Pool{
			ID:             silo.PoolID(it.Key()),
			Weight:         rec.Weight,
			TotalStaked:    rec.TotalStaked,
			AccPerShare:    rec.AccPerShare,
			SettlementDebt: rec.SettlementDebt,
			LastSettled:    rec.LastSettled,
			EpochCursor:    rec.EpochCursor,
		}})
	}
	if err := it.Error(); err != nil {
		return errors.WithMessage(err, "iterate pools")
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].index < pools[j].index })
	for _, p := range pools {
		snap.Pools = append(snap.Pools, p.pool)
	}
	return nil
}

func (s *Store) loadPositions(snap *farm.Snapshot) error {
	it := positionBucket.NewGetter(s.db).NewIterator(kv.Range{})
	defer it.Release()
	for it.Next() {
		pool, staker, err := splitPositionKey(it.Key())
		if err != nil {
			return err
		}
		var rec positionRecord
		if err := rlp.DecodeBytes(it.Value(), &rec); err != nil {
			return errors.WithMessage(err, "decode position record")
		}
		snap.Positions = append(snap.Positions, &farm.Position{
			Pool:       pool,
			Staker:     staker,
			Amount:     rec.Amount,
			RewardDebt: rec.RewardDebt,
		})
	}
	return errors.WithMessage(it.Error(), "iterate positions")
}

// positionKey joins pool and staker id. The pair is RLP encoded so ids
// of any shape split back unambiguously.
func positionKey(pool silo.PoolID, staker silo.StakerID) ([]byte, error) {
	key, err := rlp.EncodeToBytes([]string{string(pool), string(staker)})
	return key, errors.WithMessage(err, "encode position key")
}

func splitPositionKey(key []byte) (silo.PoolID, silo.StakerID, error) {
	var pair []string
	if err := rlp.DecodeBytes(key, &pair); err != nil {
		return "", "", errors.WithMessage(err, "decode position key")
	}
	if len(pair) != 2 {
		return "", "", errors.New("malformed position key")
	}
	return silo.PoolID(pair[0]), silo.StakerID(pair[1]), nil
}

func saveRLP(p kv.Putter, key []byte, val interface{}) error {
	data, err := rlp.EncodeToBytes(val)
	if err != nil {
		return errors.WithMessage(err, "encode record")
	}
	return p.Put(key, data)
}

func loadRLP(g kv.Getter, key []byte, val interface{}) error {
	data, err := g.Get(key)
	if err != nil {
		return err
	}
	return rlp.DecodeBytes(data, val)
}
