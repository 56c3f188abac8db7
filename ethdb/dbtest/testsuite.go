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

// Package dbtest holds the conformance tests every key-value engine must pass.
package dbtest

import (
	"bytes"
	"errors"
	"testing"

	"github.com/bnb-chain/avm/ethdb"
)

// TestDatabaseSuite runs a suite of tests against a KeyValueStore database
// implementation.
func TestDatabaseSuite(t *testing.T, New func() ethdb.Database) {
	t.Run("KeyValueOperations", func(t *testing.T) {
		db := New()
		defer db.Close()

		key := []byte("foo")
		if got, err := db.Has(key); err != nil {
			t.Error(err)
		} else if got {
			t.Errorf("wrong value: %t", got)
		}
		if _, err := db.Get(key); !errors.Is(err, ethdb.ErrNotFound) {
			t.Errorf("missing key error mismatch: have %v, want %v", err, ethdb.ErrNotFound)
		}
		value := []byte("hello world")
		if err := db.Put(key, value); err != nil {
			t.Error(err)
		}
		if got, err := db.Has(key); err != nil {
			t.Error(err)
		} else if !got {
			t.Errorf("wrong value: %t", got)
		}
		if got, err := db.Get(key); err != nil {
			t.Error(err)
		} else if !bytes.Equal(got, value) {
			t.Errorf("wrong value: %q", got)
		}
		if err := db.Delete(key); err != nil {
			t.Error(err)
		}
		if got, err := db.Has(key); err != nil {
			t.Error(err)
		} else if got {
			t.Errorf("wrong value: %t", got)
		}
	})

	t.Run("Batch", func(t *testing.T) {
		db := New()
		defer db.Close()

		b := db.NewBatch()
		for _, k := range []string{"1", "2", "3", "4"} {
			if err := b.Put([]byte(k), nil); err != nil {
				t.Fatal(err)
			}
		}
		if has, err := db.Has([]byte("1")); err != nil {
			t.Fatal(err)
		} else if has {
			t.Error("db contains element before batch write")
		}
		if err := b.Write(); err != nil {
			t.Fatal(err)
		}
		for _, k := range []string{"1", "2", "3", "4"} {
			if has, err := db.Has([]byte(k)); err != nil {
				t.Fatal(err)
			} else if !has {
				t.Errorf("key %s missing after batch write", k)
			}
		}
		b.Reset()
		if b.ValueSize() != 0 {
			t.Errorf("batch size not reset: %d", b.ValueSize())
		}
		// Mix writes and deletes
		if err := b.Delete([]byte("2")); err != nil {
			t.Fatal(err)
		}
		if err := b.Put([]byte("5"), []byte("five")); err != nil {
			t.Fatal(err)
		}
		if err := b.Write(); err != nil {
			t.Fatal(err)
		}
		if has, _ := db.Has([]byte("2")); has {
			t.Error("deleted key still present")
		}
		if got, err := db.Get([]byte("5")); err != nil || string(got) != "five" {
			t.Errorf("wrong value for key 5: %q %v", got, err)
		}
	})

	t.Run("OverwriteReturnsLatest", func(t *testing.T) {
		db := New()
		defer db.Close()

		for _, v := range []string{"a", "b", "c"} {
			if err := db.Put([]byte("k"), []byte(v)); err != nil {
				t.Fatal(err)
			}
		}
		got, err := db.Get([]byte("k"))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "c" {
			t.Errorf("wrong value: %q", got)
		}
	})
}
