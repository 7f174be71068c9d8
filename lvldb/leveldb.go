// Copyright (c) 2025 The Silo developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package lvldb backs the kv abstraction with goleveldb. The ledger writes
// one snapshot batch per operation and reads everything back only at
// startup, so a plain engine with a bloom filter covers it.
package lvldb

import (
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/silo-farm/silo/kv"
)

var _ kv.GetPutCloser = (*Store)(nil)

// Options tunes the underlying engine. Zero values fall back to minimums
// that suit the ledger's small working set.
type Options struct {
	CacheSize              int // in MB, split between block cache and write buffer
	OpenFilesCacheCapacity int
}

// Store is a goleveldb-backed kv store.
type Store struct {
	db *leveldb.DB
}

// New opens the database at path, creating it when absent.
func New(path string, opts Options) (*Store, error) {
	stg, err := storage.OpenFile(path, false)
	if err != nil {
		return nil, errors.WithMessage(err, "open db storage")
	}
	return open(stg, opts)
}

// NewMem creates a throwaway in-memory store, mainly for tests.
func NewMem() (*Store, error) {
	return open(storage.NewMemStorage(), Options{})
}

func open(stg storage.Storage, opts Options) (*Store, error) {
	cache := max(opts.CacheSize, 16)
	db, err := leveldb.Open(stg, &opt.Options{
		OpenFilesCacheCapacity: max(opts.OpenFilesCacheCapacity, 16),
		BlockCacheCapacity:     cache / 2 * opt.MiB,
		WriteBuffer:            cache / 4 * opt.MiB, // engine keeps two of these
		Filter:                 filter.NewBloomFilter(10),
	})
	if err != nil {
		return nil, errors.WithMessage(err, "open db")
	}
	return &Store{db}, nil
}

func (s *Store) Get(key []byte) ([]byte, error) {
	return s.db.Get(key, nil)
}

func (s *Store) Has(key []byte) (bool, error) {
	return s.db.Has(key, nil)
}

// IsNotFound reports whether err is the engine's missing-key error.
func (s *Store) IsNotFound(err error) bool {
	return err == leveldb.ErrNotFound
}

func (s *Store) Put(key, value []byte) error {
	return s.db.Put(key, value, nil)
}

func (s *Store) Delete(key []byte) error {
	return s.db.Delete(key, nil)
}

// Close releases the engine. The store is unusable afterwards.
func (s *Store) Close() error {
	return s.db.Close()
}

// NewBatch creates an empty write batch.
func (s *Store) NewBatch() kv.Batch {
	return &batch{db: s.db, ops: new(leveldb.Batch)}
}

// NewIterator iterates the keys within r in ascending order.
func (s *Store) NewIterator(r kv.Range) kv.Iterator {
	return s.db.NewIterator(&util.Range{Start: r.Start, Limit: r.Limit}, nil)
}

// batch queues puts and deletes until Write flushes them atomically.
type batch struct {
	db  *leveldb.DB
	ops *leveldb.Batch
}

func (b *batch) Put(key, value []byte) error {
	b.ops.Put(key, value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.ops.Delete(key)
	return nil
}

// Len returns the number of queued ops.
func (b *batch) Len() int {
	return b.ops.Len()
}

// Write flushes the batch in one atomic write.
func (b *batch) Write() error {
	return b.db.Write(b.ops, nil)
}
