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
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/bnb-chain/avm/core/types"
)

// Storage maps slots to values of a single contract.
type Storage map[types.Fr]types.Fr

// Copy returns a shallow copy of the storage.
func (s Storage) Copy() Storage {
	cpy := make(Storage, len(s))
	for key, value := range s {
		cpy[key] = value
	}
	return cpy
}

// publicStorage is the storage cache of one journal layer: the latest value
// written to each slot by the layer. Misses fall through to the parent layer.
type publicStorage struct {
	cache map[types.AztecAddress]Storage
}

func newPublicStorage() *publicStorage {
	return &publicStorage{cache: make(map[types.AztecAddress]Storage)}
}

func (s *publicStorage) read(contract types.AztecAddress, slot types.Fr) (types.Fr, bool) {
	if st, ok := s.cache[contract]; ok {
		value, ok := st[slot]
		return value, ok
	}
	return types.Fr{}, false
}

func (s *publicStorage) write(contract types.AztecAddress, slot, value types.Fr) {
	st, ok := s.cache[contract]
	if !ok {
		st = make(Storage)
		s.cache[contract] = st
	}
	st[slot] = value
}

// merge overwrites the receiver with every value the child wrote.
func (s *publicStorage) merge(child *publicStorage) {
	for contract, st := range child.cache {
		for slot, value := range st {
			s.write(contract, slot, value)
		}
	}
}

// nullifierKey identifies a pending nullifier. Pending nullifiers are kept
// unsiloed, scoped by the emitting contract.
type nullifierKey struct {
	contract  types.AztecAddress
	nullifier types.Fr
}

// pendingNullifiers are the nullifiers emitted within one journal layer and
// not yet part of the nullifier tree.
type pendingNullifiers struct {
	set mapset.Set[nullifierKey]
}

func newPendingNullifiers() *pendingNullifiers {
	return &pendingNullifiers{set: mapset.NewThreadUnsafeSet[nullifierKey]()}
}

func (n *pendingNullifiers) contains(contract types.AztecAddress, nullifier types.Fr) bool {
	return n.set.Contains(nullifierKey{contract, nullifier})
}

func (n *pendingNullifiers) add(contract types.AztecAddress, nullifier types.Fr) {
	n.set.Add(nullifierKey{contract, nullifier})
}

func (n *pendingNullifiers) merge(child *pendingNullifiers) {
	n.set = n.set.Union(child.set)
}
