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

// Package bboltdb implements the key-value database layer on top of bbolt. All
// keys live in a single bucket.
package bboltdb

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	bolt "go.etcd.io/bbolt"

	"github.com/bnb-chain/avm/ethdb"
)

var bucketName = []byte("ethdb")

// Database is a persistent key-value store based on the bbolt storage engine.
type Database struct {
	fn string   // Filename for reporting
	db *bolt.DB // Underlying bbolt storage engine

	log log.Logger // Contextual logger tracking the database path
}

// New opens the bbolt file inside the directory dir. An ephemeral database
// skips fsync on commit.
func New(dir string, readonly bool, ephemeral bool) (*Database, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	fullpath := filepath.Join(dir, "bbolt.db")
	inner, err := bolt.Open(fullpath, 0600, &bolt.Options{
		Timeout:  time.Second,
		ReadOnly: readonly,
		NoSync:   ephemeral,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt database: %w", err)
	}
	if !readonly {
		err = inner.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucketName)
			return err
		})
		if err != nil {
			inner.Close()
			return nil, fmt.Errorf("failed to create default bucket: %w", err)
		}
	}
	logger := log.New("database", fullpath)
	logger.Info("Opened bbolt database", "readonly", readonly, "ephemeral", ephemeral)
	return &Database{fn: fullpath, db: inner, log: logger}, nil
}

var errNoBucket = errors.New("bucket does not exist")

// Has retrieves if a key is present in the key-value store.
func (d *Database) Has(key []byte) (bool, error) {
	var found bool
	err := d.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return nil
		}
		k, _ := bucket.Cursor().Seek(key)
		found = k != nil && bytes.Equal(k, key)
		return nil
	})
	return found, err
}

// Get retrieves the given key if it's present in the key-value store.
func (d *Database) Get(key []byte) ([]byte, error) {
	defer func(start time.Time) { ethdb.EthdbGetTimer.UpdateSince(start) }(time.Now())

	var result []byte
	err := d.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return nil
		}
		// Values are only valid for the life of the transaction.
		if k, v := bucket.Cursor().Seek(key); k != nil && bytes.Equal(k, key) {
			result = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, ethdb.ErrNotFound
	}
	return result, nil
}

// Put inserts the given value into the key-value store.
func (d *Database) Put(key []byte, value []byte) error {
	defer func(start time.Time) { ethdb.EthdbPutTimer.UpdateSince(start) }(time.Now())
	return d.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return errNoBucket
		}
		return bucket.Put(key, value)
	})
}

// Delete removes the key from the key-value store.
func (d *Database) Delete(key []byte) error {
	defer func(start time.Time) { ethdb.EthdbDeleteTimer.UpdateSince(start) }(time.Now())
	return d.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return errNoBucket
		}
		return bucket.Delete(key)
	})
}

// NewBatch creates a write-only key-value store that buffers changes to its host
// database until a final write is called.
func (d *Database) NewBatch() ethdb.Batch {
	return &batch{db: d.db}
}

// Path returns the path to the database file.
func (d *Database) Path() string {
	return d.fn
}

// Close flushes any pending data to disk and closes the database file.
func (d *Database) Close() error {
	return d.db.Close()
}

type keyvalue struct {
	key    []byte
	value  []byte
	delete bool
}

// batch buffers writes and applies them in a single bbolt transaction.
type batch struct {
	db     *bolt.DB
	writes []keyvalue
	size   int
}

// Put inserts the given value into the batch for later committing.
func (b *batch) Put(key, value []byte) error {
	b.writes = append(b.writes, keyvalue{key: append([]byte{}, key...), value: append([]byte{}, value...)})
	b.size += len(key) + len(value)
	return nil
}

// Delete inserts the a key removal into the batch for later committing.
func (b *batch) Delete(key []byte) error {
	b.writes = append(b.writes, keyvalue{key: append([]byte{}, key...), delete: true})
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
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return errNoBucket
		}
		for _, kv := range b.writes {
			var err error
			if kv.delete {
				err = bucket.Delete(kv.key)
			} else {
				err = bucket.Put(kv.key, kv.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Reset resets the batch for reuse.
func (b *batch) Reset() {
	b.writes = b.writes[:0]
	b.size = 0
}
