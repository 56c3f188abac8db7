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

// FunctionData describes the function being invoked.
type FunctionData struct {
	Selector  FunctionSelector `json:"selector"`
	IsPrivate bool             `json:"isPrivate"`
}

// CallContext is the context a public function runs in. It is part of the
// public inputs of every call and is inherited, with modifications, by nested
// calls.
type CallContext struct {
	MsgSender              AztecAddress     `json:"msgSender"`
	StorageContractAddress AztecAddress     `json:"storageContractAddress"`
	PortalContractAddress  EthAddress       `json:"portalContractAddress"`
	FunctionSelector       FunctionSelector `json:"functionSelector"`
	IsDelegateCall         bool             `json:"isDelegateCall"`
	IsStaticCall           bool             `json:"isStaticCall"`
	StartSideEffectCounter uint32           `json:"startSideEffectCounter"`
}

// ToFields flattens the context for hashing.
func (c *CallContext) ToFields() []Fr {
	return []Fr{
		c.MsgSender.ToField(),
		c.StorageContractAddress.ToField(),
		EthAddressToField(c.PortalContractAddress),
		c.FunctionSelector.ToField(),
		BoolToFr(c.IsDelegateCall),
		BoolToFr(c.IsStaticCall),
		NewFr(uint64(c.StartSideEffectCounter)),
	}
}

// PublicCallRequest is a public function call enqueued by the private part of
// a transaction, or discovered during execution.
type PublicCallRequest struct {
	ContractAddress AztecAddress `json:"contractAddress"`
	FunctionData    FunctionData `json:"functionData"`
	CallContext     CallContext  `json:"callContext"`
	Args            []Fr         `json:"args"`
}

// ArgsHash hashes the call arguments. An empty argument list hashes to zero.
func ArgsHash(args []Fr) Fr {
	if len(args) == 0 {
		return Fr{}
	}
	return HashFields(params.GeneratorIndexFunctionArgs, args...)
}

// ToPublicCallStackItem converts the request into a call stack item with empty
// outputs.
func (r *PublicCallRequest) ToPublicCallStackItem() *PublicCallStackItem {
	return &PublicCallStackItem{
		ContractAddress: r.ContractAddress,
		FunctionData:    r.FunctionData,
		PublicInputs: PublicCircuitPublicInputs{
			CallContext: r.CallContext,
			ArgsHash:    ArgsHash(r.Args),
		},
		IsExecutionRequest: true,
	}
}

// ToCallRequest returns the call stack entry the kernel tracks for r.
func (r *PublicCallRequest) ToCallRequest() CallRequest {
	return CallRequest{
		Hash:                   r.ToPublicCallStackItem().Hash(),
		CallerContractAddress:  r.CallContext.MsgSender,
		StartSideEffectCounter: r.CallContext.StartSideEffectCounter,
	}
}

// CallRequest is an entry of a kernel public call stack.
type CallRequest struct {
	Hash                   Fr           `json:"hash"`
	CallerContractAddress  AztecAddress `json:"callerContractAddress"`
	StartSideEffectCounter uint32       `json:"startSideEffectCounter"`
}

// IsEmpty reports whether the request is the zero value.
func (c CallRequest) IsEmpty() bool { return c == CallRequest{} }

// ContractStorageRead is a storage read performed by a single call.
type ContractStorageRead struct {
	StorageSlot       Fr     `json:"storageSlot"`
	CurrentValue      Fr     `json:"currentValue"`
	SideEffectCounter uint32 `json:"sideEffectCounter"`
}

// ContractStorageUpdateRequest is a storage write performed by a single call.
type ContractStorageUpdateRequest struct {
	StorageSlot       Fr     `json:"storageSlot"`
	NewValue          Fr     `json:"newValue"`
	SideEffectCounter uint32 `json:"sideEffectCounter"`
}

// PublicCircuitPublicInputs are the public inputs of a single public function
// circuit.
type PublicCircuitPublicInputs struct {
	CallContext                   CallContext                    `json:"callContext"`
	ArgsHash                      Fr                             `json:"argsHash"`
	ReturnValues                  []Fr                           `json:"returnValues"`
	NewNoteHashes                 []SideEffect                   `json:"newNoteHashes"`
	NewNullifiers                 []SideEffectLinkedToNoteHash   `json:"newNullifiers"`
	NewL2ToL1Msgs                 []L2ToL1Message                `json:"newL2ToL1Msgs"`
	ContractStorageReads          []ContractStorageRead          `json:"contractStorageReads"`
	ContractStorageUpdateRequests []ContractStorageUpdateRequest `json:"contractStorageUpdateRequests"`
	PublicCallStackHashes         []Fr                           `json:"publicCallStackHashes"`
	UnencryptedLogsHash           Fr                             `json:"unencryptedLogsHash"`
	UnencryptedLogPreimagesLength uint64                         `json:"unencryptedLogPreimagesLength"`
	HistoricalHeader              Header                         `json:"historicalHeader"`
}

// PublicCallStackItem is a call together with its public inputs.
type PublicCallStackItem struct {
	ContractAddress    AztecAddress              `json:"contractAddress"`
	FunctionData       FunctionData              `json:"functionData"`
	PublicInputs       PublicCircuitPublicInputs `json:"publicInputs"`
	IsExecutionRequest bool                      `json:"isExecutionRequest"`
}

// Hash returns the identifier of the call on a kernel call stack. It only
// commits to what is known before execution, so a request and the item
// produced by running it hash to the same value.
func (i *PublicCallStackItem) Hash() Fr {
	fields := make([]Fr, 0, 10)
	fields = append(fields, i.ContractAddress.ToField(), i.FunctionData.Selector.ToField(), BoolToFr(i.FunctionData.IsPrivate))
	fields = append(fields, i.PublicInputs.CallContext.ToFields()...)
	fields = append(fields, i.PublicInputs.ArgsHash)
	return HashFields(params.GeneratorIndexCallStackItem, fields...)
}

// Copy returns a deep copy of the public inputs.
func (p *PublicCircuitPublicInputs) Copy() PublicCircuitPublicInputs {
	cpy := *p
	cpy.ReturnValues = slices.Clone(p.ReturnValues)
	cpy.NewNoteHashes = slices.Clone(p.NewNoteHashes)
	cpy.NewNullifiers = slices.Clone(p.NewNullifiers)
	cpy.NewL2ToL1Msgs = slices.Clone(p.NewL2ToL1Msgs)
	cpy.ContractStorageReads = slices.Clone(p.ContractStorageReads)
	cpy.ContractStorageUpdateRequests = slices.Clone(p.ContractStorageUpdateRequests)
	cpy.PublicCallStackHashes = slices.Clone(p.PublicCallStackHashes)
	return cpy
}
