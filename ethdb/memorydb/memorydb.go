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

// Package memorydb implements the key-value database layer in memory. It is
// used by tests and by ephemeral nodes.
package memorydb

import (
	"github.com/ethereum/go-ethereum/ethdb/memorydb"

	"github.com/bnb-chain/avm/ethdb"
)

// Database is an ephemeral key-value store.
type Database struct {
	db *memorydb.Database
}

// New returns a wrapped map with all the required database interface methods
// implemented.
func New() *Database {
	return &Database{db: memorydb.New()}
}

// Has retrieves if a key is present in the key-value store.
func (db *Database) Has(key []byte) (bool, error) {
	return db.db.Has(key)
}

// Get retrieves the given key if it's present in the key-value store.
func (db *Database) Get(key []byte) ([]byte, error) {
	dat, err := db.db.Get(key)
	if err != nil {
		if ok, herr := db.db.Has(key); herr == nil && !ok {
			return nil, ethdb.ErrNotFound
		}
		return nil, err
	}
	return dat, nil
}

// Put inserts the given value into the key-value store.
func (db *Database) Put(key []byte, value []byte) error {
	return db.db.Put(key, value)
}

// Delete removes the key from the key-value store.
func (db *Database) Delete(key []byte) error {
	return db.db.Delete(key)
}

// NewBatch creates a write-only key-value store that buffers changes to its host
// database until a final write is called.
func (db *Database) NewBatch() ethdb.Batch {
	return db.db.NewBatch()
}

// Len returns the number of entries currently present in the memory database.
func (db *Database) Len() int {
	return db.db.Len()
}

// Close deallocates the internal map. Further calls fail.
func (db *Database) Close() error {
	return db.db.Close()
}
