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
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/log"

	"github.com/bnb-chain/avm/core/types"
)

// layer is a single level of the journal tree. Layers are stored in the
// arena and refer to their parent by index.
type layer struct {
	parent     int
	storage    *publicStorage
	nullifiers *pendingNullifiers
	trace      *accessTrace

	newL1Messages []types.L2ToL1Message
	newLogs       []types.UnencryptedL2Log

	released bool
}

func newLayer(parent int) *layer {
	return &layer{
		parent:     parent,
		storage:    newPublicStorage(),
		nullifiers: newPendingNullifiers(),
		trace:      new(accessTrace),
	}
}

// arena owns every layer of one journal tree. All layers of a tree share the
// host storage and the side effect counter.
type arena struct {
	host    *HostStorage
	layers  []*layer
	counter uint32
}

// Journal is a handle to a layer of the world state journal. Forking appends
// a child layer whose reads fall through to the receiver; at the end of the
// nested call the child is merged back with AcceptNestedCallState or
// RejectNestedCallState.
//
// A journal tree is owned by a single transaction and must not be used
// concurrently.
type Journal struct {
	arena *arena
	index int
}

// NewJournal creates the root journal of a transaction. Side effect counters
// start at startCounter.
func NewJournal(host *HostStorage, startCounter uint32) *Journal {
	a := &arena{host: host, counter: startCounter}
	a.layers = append(a.layers, newLayer(-1))
	return &Journal{arena: a}
}

func (j *Journal) layer() *layer {
	l := j.arena.layers[j.index]
	if l.released {
		panic(fmt.Sprintf("journal layer %d used after merge", j.index))
	}
	return l
}

// HostStorage returns the backing stores of the journal tree.
func (j *Journal) HostStorage() *HostStorage { return j.arena.host }

// Counter returns the side effect counter the next traced operation gets.
func (j *Journal) Counter() uint32 { return j.arena.counter }

func (j *Journal) nextCounter() uint32 {
	c := j.arena.counter
	j.arena.counter++
	return c
}

// Depth returns the number of ancestors of the layer.
func (j *Journal) Depth() int {
	var depth int
	for idx := j.layer().parent; idx >= 0; idx = j.arena.layers[idx].parent {
		depth++
	}
	return depth
}

// Fork creates a nested journal for a nested call.
func (j *Journal) Fork() *Journal {
	j.layer()
	j.arena.layers = append(j.arena.layers, newLayer(j.index))
	return &Journal{arena: j.arena, index: len(j.arena.layers) - 1}
}

func (j *Journal) child(child *Journal) *layer {
	if child.arena != j.arena {
		panic("merging journal from a different tree")
	}
	l := child.layer()
	if l.parent != j.index {
		panic(fmt.Sprintf("journal layer %d is not a child of %d", child.index, j.index))
	}
	return l
}

// AcceptNestedCallState merges the state changes, the accrued substate and
// the access trace of a successful nested call.
func (j *Journal) AcceptNestedCallState(nested *Journal) {
	parent, child := j.layer(), j.child(nested)

	parent.storage.merge(child.storage)
	parent.nullifiers.merge(child.nullifiers)
	parent.trace.merge(child.trace)
	parent.newL1Messages = append(parent.newL1Messages, child.newL1Messages...)
	parent.newLogs = append(parent.newLogs, child.newLogs...)

	j.release(nested.index)
}

// RejectNestedCallState discards the state changes of a failed nested call.
// Only its access trace is kept, everything it read must still be proven.
func (j *Journal) RejectNestedCallState(nested *Journal) {
	parent, child := j.layer(), j.child(nested)
	parent.trace.merge(child.trace)

	j.release(nested.index)
}

func (j *Journal) release(index int) {
	l := j.arena.layers[index]
	*l = layer{parent: l.parent, released: true}
}

// ReadStorage returns the current value of a slot: the latest write of this
// layer or an ancestor, else the backing store, else zero. Every read is
// traced.
func (j *Journal) ReadStorage(ctx context.Context, contract types.AztecAddress, slot types.Fr) (types.Fr, error) {
	value, cached := j.lookupStorage(contract, slot)
	if !cached {
		var err error
		if value, err = j.arena.host.PublicState.StorageRead(ctx, contract, slot); err != nil {
			return types.Fr{}, fmt.Errorf("storage read %s/%s: %w", contract.TerminalString(), slot.TerminalString(), err)
		}
	}
	l := j.layer()
	l.trace.storageReads = append(l.trace.storageReads, TracedStorageAccess{
		Contract: contract,
		Slot:     slot,
		Value:    value,
		Counter:  j.nextCounter(),
	})
	log.Trace("Journal storage read", "contract", contract, "slot", slot, "value", value, "cached", cached)
	return value, nil
}

func (j *Journal) lookupStorage(contract types.AztecAddress, slot types.Fr) (types.Fr, bool) {
	for idx := j.index; idx >= 0; idx = j.arena.layers[idx].parent {
		if value, ok := j.arena.layers[idx].storage.read(contract, slot); ok {
			return value, true
		}
	}
	return types.Fr{}, false
}

// WriteStorage sets a slot in this layer.
func (j *Journal) WriteStorage(contract types.AztecAddress, slot, value types.Fr) {
	l := j.layer()
	l.storage.write(contract, slot, value)
	l.trace.storageWrites = append(l.trace.storageWrites, TracedStorageAccess{
		Contract: contract,
		Slot:     slot,
		Value:    value,
		Counter:  j.nextCounter(),
	})
}

// WriteNoteHash records a new note hash.
func (j *Journal) WriteNoteHash(contract types.AztecAddress, noteHash types.Fr) {
	l := j.layer()
	l.trace.newNoteHashes = append(l.trace.newNoteHashes, TracedNoteHash{
		Contract: contract,
		NoteHash: noteHash,
		Counter:  j.nextCounter(),
	})
}

// CheckNoteHashExists reports whether the note hash is in the note hash tree
// at the given leaf index.
func (j *Journal) CheckNoteHashExists(ctx context.Context, contract types.AztecAddress, noteHash, leafIndex types.Fr) (bool, error) {
	index, found, err := j.arena.host.Commitments.GetCommitmentIndex(ctx, noteHash)
	if err != nil {
		return false, err
	}
	exists := found && types.NewFr(index) == leafIndex
	l := j.layer()
	l.trace.noteHashChecks = append(l.trace.noteHashChecks, TracedNoteHashCheck{
		Contract:  contract,
		NoteHash:  noteHash,
		LeafIndex: leafIndex,
		Exists:    exists,
		Counter:   j.nextCounter(),
	})
	return exists, nil
}

// nullifierExists looks a nullifier up without tracing. Pending nullifiers of
// this layer and its ancestors are checked before the nullifier tree.
func (j *Journal) nullifierExists(ctx context.Context, contract types.AztecAddress, nullifier types.Fr) (exists, pending bool, leafIndex types.Fr, err error) {
	for idx := j.index; idx >= 0; idx = j.arena.layers[idx].parent {
		if j.arena.layers[idx].nullifiers.contains(contract, nullifier) {
			return true, true, types.Fr{}, nil
		}
	}
	index, found, err := j.arena.host.Commitments.GetNullifierIndex(ctx, types.SiloNullifier(contract, nullifier))
	if err != nil {
		return false, false, types.Fr{}, err
	}
	if !found {
		return false, false, types.Fr{}, nil
	}
	return true, false, types.NewFr(index), nil
}

// CheckNullifierExists reports whether the nullifier was emitted by the
// contract, either pending in this transaction or committed.
func (j *Journal) CheckNullifierExists(ctx context.Context, contract types.AztecAddress, nullifier types.Fr) (bool, error) {
	exists, pending, leafIndex, err := j.nullifierExists(ctx, contract, nullifier)
	if err != nil {
		return false, err
	}
	l := j.layer()
	l.trace.nullifierChecks = append(l.trace.nullifierChecks, TracedNullifierCheck{
		Contract:  contract,
		Nullifier: nullifier,
		Exists:    exists,
		IsPending: pending,
		LeafIndex: leafIndex,
		Counter:   j.nextCounter(),
	})
	return exists, nil
}

// WriteNullifier emits a new nullifier. Emitting a nullifier that is pending
// or committed fails with ErrDuplicateNullifier.
func (j *Journal) WriteNullifier(ctx context.Context, contract types.AztecAddress, nullifier types.Fr) error {
	exists, _, _, err := j.nullifierExists(ctx, contract, nullifier)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: attempted to emit duplicate nullifier %s (storage address: %s)", ErrDuplicateNullifier, nullifier, contract)
	}
	l := j.layer()
	l.nullifiers.add(contract, nullifier)
	l.trace.newNullifiers = append(l.trace.newNullifiers, TracedNullifier{
		Contract:  contract,
		Nullifier: nullifier,
		Counter:   j.nextCounter(),
	})
	return nil
}

// ReadL1ToL2Message reports whether the message is in the L1 to L2 message
// tree at the given leaf index, and returns its fields when found.
func (j *Journal) ReadL1ToL2Message(ctx context.Context, msgKey, leafIndex types.Fr) (bool, []types.Fr, error) {
	witness, err := j.arena.host.Commitments.GetL1ToL2MembershipWitness(ctx, msgKey)
	if err != nil {
		return false, nil, err
	}
	var (
		exists  bool
		content []types.Fr
	)
	if witness != nil {
		exists = types.NewFr(witness.Index) == leafIndex
		content = witness.Message.Fields()
	}
	l := j.layer()
	l.trace.l1ToL2MessageReads = append(l.trace.l1ToL2MessageReads, TracedL1ToL2MessageRead{
		MsgHash:   msgKey,
		LeafIndex: leafIndex,
		Exists:    exists,
		Counter:   j.nextCounter(),
	})
	return exists, content, nil
}

// WriteL1Message records an L2 to L1 message.
func (j *Journal) WriteL1Message(recipient types.EthAddress, content types.Fr) {
	l := j.layer()
	l.newL1Messages = append(l.newL1Messages, types.L2ToL1Message{Recipient: recipient, Content: content})
}

// WriteLog records an unencrypted log.
func (j *Journal) WriteLog(contract types.AztecAddress, selector types.FunctionSelector, data []types.Fr) {
	l := j.layer()
	l.newLogs = append(l.newLogs, types.UnencryptedL2Log{
		ContractAddress: contract,
		Selector:        selector,
		Data:            append([]types.Fr(nil), data...),
	})
}

// Publish stages the storage values of the root layer into the backing
// public state. It never commits.
func (j *Journal) Publish(ctx context.Context) error {
	l := j.layer()
	if l.parent != -1 {
		panic("publishing a nested journal")
	}
	contracts := make([]types.AztecAddress, 0, len(l.storage.cache))
	for contract := range l.storage.cache {
		contracts = append(contracts, contract)
	}
	sort.Slice(contracts, func(a, b int) bool { return lessFr(types.Fr(contracts[a]), types.Fr(contracts[b])) })

	for _, contract := range contracts {
		st := l.storage.cache[contract]
		slots := make([]types.Fr, 0, len(st))
		for slot := range st {
			slots = append(slots, slot)
		}
		sort.Slice(slots, func(a, b int) bool { return lessFr(slots[a], slots[b]) })
		for _, slot := range slots {
			if err := j.arena.host.PublicState.StorageWrite(ctx, contract, slot, st[slot]); err != nil {
				return fmt.Errorf("storage write %s/%s: %w", contract.TerminalString(), slot.TerminalString(), err)
			}
		}
	}
	return nil
}

// JournalData is an immutable snapshot of a journal layer.
type JournalData struct {
	NoteHashChecks     []TracedNoteHashCheck
	NewNoteHashes      []TracedNoteHash
	NullifierChecks    []TracedNullifierCheck
	NewNullifiers      []TracedNullifier
	L1ToL2MessageReads []TracedL1ToL2MessageRead

	NewL1Messages []types.L2ToL1Message
	NewLogs       []types.UnencryptedL2Log

	// CurrentStorageValue is the storage as seen by the layer: its own
	// writes over those of its ancestors.
	CurrentStorageValue map[types.AztecAddress]Storage

	// StorageReads and StorageWrites hold the traced values per contract and
	// slot, in emission order.
	StorageReads  map[types.AztecAddress]map[types.Fr][]types.Fr
	StorageWrites map[types.AztecAddress]map[types.Fr][]types.Fr

	StorageReadTrace  []TracedStorageAccess
	StorageWriteTrace []TracedStorageAccess
}

// Flush snapshots the journal layer.
func (j *Journal) Flush() *JournalData {
	l := j.layer()
	data := &JournalData{
		NoteHashChecks:      append([]TracedNoteHashCheck(nil), l.trace.noteHashChecks...),
		NewNoteHashes:       append([]TracedNoteHash(nil), l.trace.newNoteHashes...),
		NullifierChecks:     append([]TracedNullifierCheck(nil), l.trace.nullifierChecks...),
		NewNullifiers:       append([]TracedNullifier(nil), l.trace.newNullifiers...),
		L1ToL2MessageReads:  append([]TracedL1ToL2MessageRead(nil), l.trace.l1ToL2MessageReads...),
		NewL1Messages:       append([]types.L2ToL1Message(nil), l.newL1Messages...),
		NewLogs:             append([]types.UnencryptedL2Log(nil), l.newLogs...),
		CurrentStorageValue: make(map[types.AztecAddress]Storage),
		StorageReadTrace:    append([]TracedStorageAccess(nil), l.trace.storageReads...),
		StorageWriteTrace:   append([]TracedStorageAccess(nil), l.trace.storageWrites...),
	}
	// Walk root first so that nearer layers override.
	var chain []int
	for idx := j.index; idx >= 0; idx = j.arena.layers[idx].parent {
		chain = append(chain, idx)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for contract, st := range j.arena.layers[chain[i]].storage.cache {
			cur, ok := data.CurrentStorageValue[contract]
			if !ok {
				cur = make(Storage, len(st))
				data.CurrentStorageValue[contract] = cur
			}
			for slot, value := range st {
				cur[slot] = value
			}
		}
	}
	data.StorageReads = groupAccesses(data.StorageReadTrace)
	data.StorageWrites = groupAccesses(data.StorageWriteTrace)
	return data
}

func groupAccesses(trace []TracedStorageAccess) map[types.AztecAddress]map[types.Fr][]types.Fr {
	out := make(map[types.AztecAddress]map[types.Fr][]types.Fr)
	for _, access := range trace {
		slots, ok := out[access.Contract]
		if !ok {
			slots = make(map[types.Fr][]types.Fr)
			out[access.Contract] = slots
		}
		slots[access.Slot] = append(slots[access.Slot], access.Value)
	}
	return out
}

func lessFr(a, b types.Fr) bool { return bytes.Compare(a[:], b[:]) < 0 }
