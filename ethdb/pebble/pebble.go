// Copyright 2024 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package pebble implements the key-value database layer on top of pebble.
package pebble

import (
	"errors"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/bnb-chain/avm/ethdb"
)

const (
	// metricsGatheringInterval specifies the interval to retrieve pebble database
	// compaction, io and pause stats to report to the user.
	metricsGatheringInterval = 3 * time.Second

	// minCache is the minimum amount of memory in megabytes to allocate to pebble
	// read and write caching.
	minCache = 16

	// minHandles is the minimum number of files handles to allocate to the open
	// database files.
	minHandles = 16
)

// Database is a persistent key-value store based on the pebble storage engine.
type Database struct {
	fn string     // filename for reporting
	db *pebble.DB // Underlying pebble storage engine

	quitLock sync.Mutex      // Mutex protecting the quit channel access
	quitChan chan chan error // Quit channel to stop the metrics collection before closing the database

	log log.Logger // Contextual logger tracking the database path
}

// New returns a wrapped pebble DB object. The namespace is the prefix that the
// metrics reporting should use for surfacing internal stats.
func New(file string, cache int, handles int, namespace string, readonly bool) (*Database, error) {
	if cache < minCache {
		cache = minCache
	}
	if handles < minHandles {
		handles = minHandles
	}
	return NewCustom(file, namespace, func(options *pebble.Options) {
		options.Cache = pebble.NewCache(int64(cache * 1024 * 1024))
		options.MaxOpenFiles = handles
		options.ReadOnly = readonly
	})
}

// NewCustom returns a wrapped pebble DB object. The customize function allows
// the caller to modify the pebble options.
func NewCustom(file string, namespace string, customize func(options *pebble.Options)) (*Database, error) {
	options := configureOptions(customize)
	logger := log.New("database", file)
	logger.Info("Allocated cache and file handles", "handles", options.MaxOpenFiles, "readonly", options.ReadOnly)

	db, err := pebble.Open(file, options)
	if err != nil {
		return nil, err
	}
	if options.Cache != nil {
		// The db holds its own reference.
		options.Cache.Unref()
	}
	pdb := &Database{
		fn:       file,
		db:       db,
		log:      logger,
		quitChan: make(chan chan error),
	}
	go pdb.meter(metricsGatheringInterval, namespace)
	return pdb, nil
}

// configureOptions sets some default options, then runs the provided setter.
func configureOptions(customizeFn func(*pebble.Options)) *pebble.Options {
	options := &pebble.Options{
		MaxOpenFiles: minHandles,
	}
	if customizeFn != nil {
		customizeFn(options)
	}
	return options
}

// Close stops the metrics collection, flushes any pending data to disk and closes
// all io accesses to the underlying key-value store.
func (db *Database) Close() error {
	db.quitLock.Lock()
	defer db.quitLock.Unlock()

	if db.quitChan != nil {
		errc := make(chan error)
		db.quitChan <- errc
		if err := <-errc; err != nil {
			db.log.Error("Metrics collection failed", "err", err)
		}
		db.quitChan = nil
	}
	return db.db.Close()
}

// Has retrieves if a key is present in the key-value store.
func (db *Database) Has(key []byte) (bool, error) {
	_, closer, err := db.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if err = closer.Close(); err != nil {
		return false, err
	}
	return true, nil
}

// Get retrieves the given key if it's present in the key-value store.
func (db *Database) Get(key []byte) ([]byte, error) {
	defer func(start time.Time) { ethdb.EthdbGetTimer.UpdateSince(start) }(time.Now())

	dat, closer, err := db.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ethdb.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	// The returned slice is only valid until the closer is released.
	ret := make([]byte, len(dat))
	copy(ret, dat)
	if err = closer.Close(); err != nil {
		return nil, err
	}
	return ret, nil
}

// Put inserts the given value into the key-value store.
func (db *Database) Put(key []byte, value []byte) error {
	defer func(start time.Time) { ethdb.EthdbPutTimer.UpdateSince(start) }(time.Now())
	return db.db.Set(key, value, pebble.Sync)
}

// Delete removes the key from the key-value store.
func (db *Database) Delete(key []byte) error {
	defer func(start time.Time) { ethdb.EthdbDeleteTimer.UpdateSince(start) }(time.Now())
	return db.db.Delete(key, pebble.Sync)
}

// NewBatch creates a write-only key-value store that buffers changes to its host
// database until a final write is called.
func (db *Database) NewBatch() ethdb.Batch {
	return &batch{
		db: db.db,
		b:  db.db.NewBatch(),
	}
}

// Compact flattens the underlying data store for the given key range.
func (db *Database) Compact(start []byte, limit []byte) error {
	if limit == nil {
		limit = []byte{0xff, 0xff, 0xff, 0xff}
	}
	return db.db.Compact(start, limit, true)
}

// Path returns the path to the database directory.
func (db *Database) Path() string {
	return db.fn
}

// meter periodically retrieves internal pebble counters and reports them to
// the metrics subsystem.
func (db *Database) meter(refresh time.Duration, namespace string) {
	var (
		diskSizeGauge   = metrics.NewRegisteredGauge(namespace+"disk/size", nil)
		compactionGauge = metrics.NewRegisteredGauge(namespace+"compact/count", nil)
		flushGauge      = metrics.NewRegisteredGauge(namespace+"flush/count", nil)
		memTableGauge   = metrics.NewRegisteredGauge(namespace+"memtable/size", nil)
	)
	timer := time.NewTimer(refresh)
	defer timer.Stop()

	for {
		select {
		case errc := <-db.quitChan:
			errc <- nil
			return
		case <-timer.C:
			stats := db.db.Metrics()
			diskSizeGauge.Update(int64(stats.DiskSpaceUsage()))
			compactionGauge.Update(stats.Compact.Count)
			flushGauge.Update(stats.Flush.Count)
			memTableGauge.Update(int64(stats.MemTable.Size))
			timer.Reset(refresh)
		}
	}
}

// batch is a write-only pebble batch that commits changes to its host database
// when Write is called. A batch cannot be used concurrently.
type batch struct {
	db   *pebble.DB
	b    *pebble.Batch
	size int
}

// Put inserts the given value into the batch for later committing.
func (b *batch) Put(key, value []byte) error {
	if err := b.b.Set(key, value, nil); err != nil {
		return err
	}
	b.size += len(key) + len(value)
	return nil
}

// Delete inserts the a key removal into the batch for later committing.
func (b *batch) Delete(key []byte) error {
	if err := b.b.Delete(key, nil); err != nil {
		return err
	}
	b.size += len(key)
	return nil
}

// ValueSize retrieves the amount of data queued up for writing.
func (b *batch) ValueSize() int {
	return b.size
}

// Write flushes any accumulated data to disk.
func (b *batch) Write() error {
	defer func(start time.Time) { ethdb.EthdbBatchWriteTimer.UpdateSince(start) }(time.Now())
	return b.db.Apply(b.b, pebble.Sync)
}

// Reset resets the batch for reuse.
func (b *batch) Reset() {
	b.b.Reset()
	b.size = 0
}
