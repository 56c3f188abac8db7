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

package state

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/bnb-chain/avm/core/types"
	"github.com/bnb-chain/avm/ethdb"
	"github.com/bnb-chain/avm/params"
)

var (
	worldCacheHitMeter  = metrics.NewRegisteredMeter("state/world/cache/hit", nil)
	worldCacheMissMeter = metrics.NewRegisteredMeter("state/world/cache/miss", nil)
	worldCommitTimer    = metrics.NewRegisteredTimer("state/world/commit", nil)
)

// versionedValue is the value of a slot from a tree version on.
type versionedValue struct {
	version uint64
	value   types.Fr
}

// WorldStateDB is the public data tree shared by all transactions. It keeps
// the latest values on disk and, for every slot written since it was opened,
// the in-memory value history needed to serve reads pinned to older versions.
//
// WorldStateDB is safe for concurrent use.
type WorldStateDB struct {
	db    ethdb.Database
	cache *fastcache.Cache

	lock    sync.RWMutex
	base    uint64                          // Oldest version reads can be pinned to
	version uint64                          // Latest committed version
	roots   map[uint64]types.Fr             // Roots of the versions since base
	history map[storageKey][]versionedValue // Ascending by version
}

// NewWorldStateDB opens the world state persisted in db. cacheSize is the
// size of the read cache in bytes.
func NewWorldStateDB(db ethdb.Database, cacheSize int) (*WorldStateDB, error) {
	w := &WorldStateDB{
		db:      db,
		cache:   fastcache.New(cacheSize),
		roots:   make(map[uint64]types.Fr),
		history: make(map[storageKey][]versionedValue),
	}
	enc, err := db.Get(headVersionKey)
	switch {
	case errors.Is(err, ethdb.ErrNotFound):
		w.roots[0] = types.Fr{}
	case err != nil:
		return nil, err
	case len(enc) != uint64EncodingLen:
		return nil, fmt.Errorf("corrupt public data head version %x", enc)
	default:
		w.version = binary.BigEndian.Uint64(enc)
		root, err := db.Get(publicRootKey(w.version))
		if err != nil {
			return nil, fmt.Errorf("missing root of public data version %d: %w", w.version, err)
		}
		w.roots[w.version] = types.BytesToFr(root)
	}
	w.base = w.version
	log.Info("Opened world state", "version", w.version, "root", w.roots[w.version])
	return w, nil
}

// Snapshot returns the latest committed version of the public data tree.
func (w *WorldStateDB) Snapshot() types.TreeSnapshot {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return types.TreeSnapshot{Root: w.roots[w.version], Version: w.version}
}

func (w *WorldStateDB) validate(snapshot types.TreeSnapshot) error {
	root, ok := w.roots[snapshot.Version]
	if !ok || root != snapshot.Root {
		return fmt.Errorf("%w: version %d root %s", ErrUnknownSnapshot, snapshot.Version, snapshot.Root.TerminalString())
	}
	return nil
}

// read returns the value of a slot at the given version. The caller must hold
// the read lock.
func (w *WorldStateDB) read(key storageKey, version uint64) (types.Fr, error) {
	if hist, ok := w.history[key]; ok {
		i := sort.Search(len(hist), func(i int) bool { return hist[i].version > version })
		// The first entry is the baseline at w.base, so i is at least one.
		return hist[i-1].value, nil
	}
	return w.latest(key)
}

// latest returns the persisted value of a slot, zero if never written.
func (w *WorldStateDB) latest(key storageKey) (types.Fr, error) {
	if blob, ok := w.cache.HasGet(nil, key[:]); ok {
		worldCacheHitMeter.Mark(1)
		return types.BytesToFr(blob), nil
	}
	worldCacheMissMeter.Mark(1)

	blob, err := w.db.Get(publicDataKey(key))
	if errors.Is(err, ethdb.ErrNotFound) {
		return types.Fr{}, nil
	} else if err != nil {
		return types.Fr{}, err
	}
	w.cache.Set(key[:], blob)
	return types.BytesToFr(blob), nil
}

// StorageReadAt returns the value of a slot as of the snapshot.
func (w *WorldStateDB) StorageReadAt(snapshot types.TreeSnapshot, contract types.AztecAddress, slot types.Fr) (types.Fr, error) {
	w.lock.RLock()
	defer w.lock.RUnlock()

	if err := w.validate(snapshot); err != nil {
		return types.Fr{}, err
	}
	return w.read(newStorageKey(contract, slot), snapshot.Version)
}

// nextRoot chains the root of the previous version with the sorted writes.
func nextRoot(prev types.Fr, keys []storageKey, writes map[storageKey]types.Fr) types.Fr {
	inputs := make([]types.Fr, 0, 1+3*len(keys))
	inputs = append(inputs, prev)
	for _, key := range keys {
		inputs = append(inputs, key.contract().ToField(), key.slot(), writes[key])
	}
	return types.HashFields(params.GeneratorIndexWorldStateRoot, inputs...)
}

// apply commits a set of writes as a new version of the tree. The writes are
// persisted in a single batch.
func (w *WorldStateDB) apply(writes map[storageKey]types.Fr) (types.TreeSnapshot, error) {
	defer func(start time.Time) { worldCommitTimer.UpdateSince(start) }(time.Now())

	w.lock.Lock()
	defer w.lock.Unlock()

	keys := make([]storageKey, 0, len(writes))
	for key := range writes {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(a, b int) bool { return bytes.Compare(keys[a][:], keys[b][:]) < 0 })

	var (
		version = w.version + 1
		root    = nextRoot(w.roots[w.version], keys, writes)
		batch   = w.db.NewBatch()
	)
	baselines := make(map[storageKey]types.Fr)
	for _, key := range keys {
		if _, ok := w.history[key]; !ok {
			old, err := w.latest(key)
			if err != nil {
				return types.TreeSnapshot{}, err
			}
			baselines[key] = old
		}
		value := writes[key]
		if err := batch.Put(publicDataKey(key), value[:]); err != nil {
			return types.TreeSnapshot{}, err
		}
	}
	if err := batch.Put(publicRootKey(version), root[:]); err != nil {
		return types.TreeSnapshot{}, err
	}
	if err := batch.Put(headVersionKey, encodeUint64(version)); err != nil {
		return types.TreeSnapshot{}, err
	}
	if err := batch.Write(); err != nil {
		return types.TreeSnapshot{}, err
	}
	for _, key := range keys {
		if old, ok := baselines[key]; ok {
			w.history[key] = []versionedValue{{version: w.base, value: old}}
		}
		value := writes[key]
		w.history[key] = append(w.history[key], versionedValue{version: version, value: value})
		w.cache.Set(key[:], value[:])
	}
	w.version = version
	w.roots[version] = root

	log.Debug("Committed public data", "version", version, "root", root, "writes", len(keys))
	return types.TreeSnapshot{Root: root, Version: version}, nil
}

// TxStateDB is the public state view of one transaction. Reads are pinned to
// the snapshot taken when the transaction started; writes are staged until
// Commit applies them to the world state as a new version.
//
// A TxStateDB is owned by a single transaction and must not be used
// concurrently.
type TxStateDB struct {
	world    *WorldStateDB
	snapshot types.TreeSnapshot

	staged    map[storageKey]types.Fr
	committed map[storageKey]types.Fr // Writes of the committed phases of this tx
	last      types.TreeSnapshot
}

// NewTxStateDB creates a transaction view pinned to the snapshot.
func NewTxStateDB(world *WorldStateDB, snapshot types.TreeSnapshot) (*TxStateDB, error) {
	world.lock.RLock()
	err := world.validate(snapshot)
	world.lock.RUnlock()
	if err != nil {
		return nil, err
	}
	return &TxStateDB{
		world:     world,
		snapshot:  snapshot,
		staged:    make(map[storageKey]types.Fr),
		committed: make(map[storageKey]types.Fr),
		last:      snapshot,
	}, nil
}

// Snapshot returns the version the reads of the transaction are pinned to.
func (s *TxStateDB) Snapshot() types.TreeSnapshot { return s.snapshot }

// LastCommit returns the version created by the latest Commit, or the pinned
// snapshot if nothing was committed.
func (s *TxStateDB) LastCommit() types.TreeSnapshot { return s.last }

// StorageRead returns the staged value, else the value committed by this
// transaction, else the value at the pinned snapshot.
func (s *TxStateDB) StorageRead(ctx context.Context, contract types.AztecAddress, slot types.Fr) (types.Fr, error) {
	key := newStorageKey(contract, slot)
	if value, ok := s.staged[key]; ok {
		return value, nil
	}
	if value, ok := s.committed[key]; ok {
		return value, nil
	}
	return s.world.StorageReadAt(s.snapshot, contract, slot)
}

// StorageWrite stages a write.
func (s *TxStateDB) StorageWrite(ctx context.Context, contract types.AztecAddress, slot, value types.Fr) error {
	s.staged[newStorageKey(contract, slot)] = value
	return nil
}

// Commit applies the staged writes to the world state.
func (s *TxStateDB) Commit(ctx context.Context) error {
	if len(s.staged) == 0 {
		return nil
	}
	snapshot, err := s.world.apply(s.staged)
	if err != nil {
		return err
	}
	for key, value := range s.staged {
		s.committed[key] = value
	}
	s.staged = make(map[storageKey]types.Fr)
	s.last = snapshot
	return nil
}

// Rollback discards the staged writes.
func (s *TxStateDB) Rollback(ctx context.Context) error {
	s.staged = make(map[storageKey]types.Fr)
	return nil
}
