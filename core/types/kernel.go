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

package types

import (
	"slices"

	"github.com/bnb-chain/avm/params"
)

// SideEffect is a value emitted by a call, ordered by its counter.
type SideEffect struct {
	Value   Fr     `json:"value"`
	Counter uint32 `json:"counter"`
}

// SideEffectLinkedToNoteHash is a nullifier together with the note hash it
// nullifies, if any.
type SideEffectLinkedToNoteHash struct {
	Value    Fr     `json:"value"`
	NoteHash Fr     `json:"noteHash"`
	Counter  uint32 `json:"counter"`
}

// L2ToL1Message is a message sent from L2 to an L1 recipient.
type L2ToL1Message struct {
	Recipient EthAddress `json:"recipient"`
	Content   Fr         `json:"content"`
}

// PublicDataRead is a read of the public data tree, addressed by leaf slot.
type PublicDataRead struct {
	LeafSlot          Fr     `json:"leafSlot"`
	Value             Fr     `json:"value"`
	SideEffectCounter uint32 `json:"sideEffectCounter"`
}

// PublicDataUpdateRequest is a write to the public data tree.
type PublicDataUpdateRequest struct {
	LeafSlot          Fr     `json:"leafSlot"`
	NewValue          Fr     `json:"newValue"`
	SideEffectCounter uint32 `json:"sideEffectCounter"`
}

// ComputePublicDataLeafSlot derives the public data tree slot of a contract
// storage slot.
func ComputePublicDataLeafSlot(contract AztecAddress, storageSlot Fr) Fr {
	return HashFields(params.GeneratorIndexPublicLeafIndex, contract.ToField(), storageSlot)
}

// SiloNullifier binds a nullifier to the contract that emitted it.
func SiloNullifier(contract AztecAddress, nullifier Fr) Fr {
	return HashFields(params.GeneratorIndexOuterNullifier, contract.ToField(), nullifier)
}

// SiloNoteHash binds a note hash to the contract that emitted it.
func SiloNoteHash(contract AztecAddress, noteHash Fr) Fr {
	return HashFields(params.GeneratorIndexOuterNoteHash, contract.ToField(), noteHash)
}

// AccumulatedData holds the side effects both kernel partitions collect.
type AccumulatedData struct {
	NewNoteHashes            []SideEffect                 `json:"newNoteHashes"`
	NewNullifiers            []SideEffectLinkedToNoteHash `json:"newNullifiers"`
	PublicCallStack          []CallRequest                `json:"publicCallStack"`
	NewL2ToL1Msgs            []L2ToL1Message              `json:"newL2ToL1Msgs"`
	PublicDataUpdateRequests []PublicDataUpdateRequest    `json:"publicDataUpdateRequests"`
	PublicDataReads          []PublicDataRead             `json:"publicDataReads"`
}

// Copy returns a deep copy.
func (d *AccumulatedData) Copy() AccumulatedData {
	return AccumulatedData{
		NewNoteHashes:            slices.Clone(d.NewNoteHashes),
		NewNullifiers:            slices.Clone(d.NewNullifiers),
		PublicCallStack:          slices.Clone(d.PublicCallStack),
		NewL2ToL1Msgs:            slices.Clone(d.NewL2ToL1Msgs),
		PublicDataUpdateRequests: slices.Clone(d.PublicDataUpdateRequests),
		PublicDataReads:          slices.Clone(d.PublicDataReads),
	}
}

// AccumulatedNonRevertibleData is produced by SETUP and TEARDOWN and is kept
// even if application logic reverts.
type AccumulatedNonRevertibleData struct {
	AccumulatedData
}

// AccumulatedRevertibleData is produced by APP_LOGIC.
type AccumulatedRevertibleData struct {
	AccumulatedData
	EncryptedLogsHash             Fr     `json:"encryptedLogsHash"`
	UnencryptedLogsHash           Fr     `json:"unencryptedLogsHash"`
	EncryptedLogPreimagesLength   uint64 `json:"encryptedLogPreimagesLength"`
	UnencryptedLogPreimagesLength uint64 `json:"unencryptedLogPreimagesLength"`
}

// TxContext carries the chain identity a transaction was built for.
type TxContext struct {
	ChainID Fr `json:"chainId"`
	Version Fr `json:"version"`
}

// CombinedConstantData is constant across all kernel iterations of a tx.
type CombinedConstantData struct {
	HistoricalHeader Header    `json:"historicalHeader"`
	TxContext        TxContext `json:"txContext"`
}

// PublicKernelCircuitPublicInputs is the accumulator threaded through the
// public kernel iterations. The private kernel tail produces the initial
// value.
type PublicKernelCircuitPublicInputs struct {
	EndNonRevertibleData AccumulatedNonRevertibleData `json:"endNonRevertibleData"`
	End                  AccumulatedRevertibleData    `json:"end"`
	Constants            CombinedConstantData         `json:"constants"`
	NeedsSetup           bool                         `json:"needsSetup"`
	NeedsAppLogic        bool                         `json:"needsAppLogic"`
	NeedsTeardown        bool                         `json:"needsTeardown"`
}

// Copy returns a deep copy of the accumulator.
func (p *PublicKernelCircuitPublicInputs) Copy() *PublicKernelCircuitPublicInputs {
	cpy := *p
	cpy.EndNonRevertibleData.AccumulatedData = p.EndNonRevertibleData.Copy()
	cpy.End.AccumulatedData = p.End.Copy()
	return &cpy
}

// Partition returns the accumulator a phase writes into.
func (p *PublicKernelCircuitPublicInputs) Partition(revertible bool) *AccumulatedData {
	if revertible {
		return &p.End.AccumulatedData
	}
	return &p.EndNonRevertibleData.AccumulatedData
}
