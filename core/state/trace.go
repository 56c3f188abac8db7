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

import "github.com/bnb-chain/avm/core/types"

// TracedStorageAccess is a storage read or write.
type TracedStorageAccess struct {
	Contract types.AztecAddress
	Slot     types.Fr
	Value    types.Fr
	Counter  uint32
}

type TracedNoteHash struct {
	Contract types.AztecAddress
	NoteHash types.Fr
	Counter  uint32
}

type TracedNoteHashCheck struct {
	Contract  types.AztecAddress
	NoteHash  types.Fr
	LeafIndex types.Fr
	Exists    bool
	Counter   uint32
}

// TracedNullifierCheck records an existence check. Pending nullifiers have
// no leaf index yet.
type TracedNullifierCheck struct {
	Contract  types.AztecAddress
	Nullifier types.Fr
	Exists    bool
	IsPending bool
	LeafIndex types.Fr
	Counter   uint32
}

type TracedNullifier struct {
	Contract  types.AztecAddress
	Nullifier types.Fr
	Counter   uint32
}

type TracedL1ToL2MessageRead struct {
	MsgHash   types.Fr
	LeafIndex types.Fr
	Exists    bool
	Counter   uint32
}

// accessTrace is the world state access trace of a journal layer. Entries
// are kept in emission order.
type accessTrace struct {
	storageReads       []TracedStorageAccess
	storageWrites      []TracedStorageAccess
	noteHashChecks     []TracedNoteHashCheck
	newNoteHashes      []TracedNoteHash
	nullifierChecks    []TracedNullifierCheck
	newNullifiers      []TracedNullifier
	l1ToL2MessageReads []TracedL1ToL2MessageRead
}

// merge appends the child's entries after the receiver's.
func (t *accessTrace) merge(child *accessTrace) {
	t.storageReads = append(t.storageReads, child.storageReads...)
	t.storageWrites = append(t.storageWrites, child.storageWrites...)
	t.noteHashChecks = append(t.noteHashChecks, child.noteHashChecks...)
	t.newNoteHashes = append(t.newNoteHashes, child.newNoteHashes...)
	t.nullifierChecks = append(t.nullifierChecks, child.nullifierChecks...)
	t.newNullifiers = append(t.newNullifiers, child.newNullifiers...)
	t.l1ToL2MessageReads = append(t.l1ToL2MessageReads, child.l1ToL2MessageReads...)
}
