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

// Package leveldb implements the key-value database layer on top of LevelDB.
package leveldb

import (
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/log"
	goleveldb "github.com/syndtr/goleveldb/leveldb"

	"github.com/bnb-chain/avm/ethdb"
)

// Database is a persistent key-value store backed by LevelDB.
type Database struct {
	db  *leveldb.Database
	log log.Logger
}

// New opens a LevelDB database at file. The namespace is the prefix that the
// metrics reporting should use for surfacing internal stats.
func New(file string, cache int, handles int, namespace string, readonly bool) (*Database, error) {
	db, err := leveldb.New(file, cache, handles, namespace, readonly)
	if err != nil {
		return nil, err
	}
	return &Database{db: db, log: log.New("database", file)}, nil
}

// Has retrieves if a key is present in the key-value store.
func (db *Database) Has(key []byte) (bool, error) {
	return db.db.Has(key)
}

// Get retrieves the given key if it's present in the key-value store.
func (db *Database) Get(key []byte) ([]byte, error) {
	defer func(start time.Time) { ethdb.EthdbGetTimer.UpdateSince(start) }(time.Now())

	dat, err := db.db.Get(key)
	if errors.Is(err, goleveldb.ErrNotFound) {
		return nil, ethdb.ErrNotFound
	}
	return dat, err
}

// Put inserts the given value into the key-value store.
func (db *Database) Put(key []byte, value []byte) error {
	defer func(start time.Time) { ethdb.EthdbPutTimer.UpdateSince(start) }(time.Now())
	return db.db.Put(key, value)
}

// Delete removes the key from the key-value store.
func (db *Database) Delete(key []byte) error {
	defer func(start time.Time) { ethdb.EthdbDeleteTimer.UpdateSince(start) }(time.Now())
	return db.db.Delete(key)
}

// NewBatch creates a write-only key-value store that buffers changes to its host
// database until a final write is called.
func (db *Database) NewBatch() ethdb.Batch {
	return db.db.NewBatch()
}

// Path returns the path to the database directory.
func (db *Database) Path() string {
	return db.db.Path()
}

// Close stops the metrics collection, flushes any pending data to disk and
// closes the database.
func (db *Database) Close() error {
	if err := db.db.Close(); err != nil {
		db.log.Error("Failed to close database", "err", err)
		return err
	}
	return nil
}
