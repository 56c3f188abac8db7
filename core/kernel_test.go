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

package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnb-chain/avm/core/types"
	"github.com/bnb-chain/avm/params"
)

// kernelInputs prepares a kernel iteration for req, which must be on the
// stack of the previous output.
func kernelInputs(previous *types.PublicKernelCircuitPublicInputs, req *types.PublicCallRequest, nested ...*types.PublicCallRequest) *PublicKernelCircuitPrivateInputs {
	return &PublicKernelCircuitPrivateInputs{
		PreviousKernel: PublicKernelData{PublicInputs: previous},
		PublicCall: PublicCallData{
			CallStackItem:   req.ToPublicCallStackItem(),
			PublicCallStack: callRequests(nested...),
			BytecodeHash:    types.NewFr(1),
		},
	}
}

func TestKernelFold(t *testing.T) {
	var (
		call     = request(contractA, 1, types.NewFr(3))
		nested   = request(contractB, 2)
		previous = privateOutput(nil, []*types.PublicCallRequest{call})
		inputs   = kernelInputs(previous, call, nested)
		pub      = &inputs.PublicCall.CallStackItem.PublicInputs
	)
	pub.NewNoteHashes = []types.SideEffect{{Value: types.NewFr(10), Counter: 1}}
	pub.NewNullifiers = []types.SideEffectLinkedToNoteHash{{Value: types.NewFr(11), Counter: 2}}
	pub.ContractStorageReads = []types.ContractStorageRead{{StorageSlot: types.NewFr(5), CurrentValue: types.NewFr(6), SideEffectCounter: 3}}
	pub.ContractStorageUpdateRequests = []types.ContractStorageUpdateRequest{{StorageSlot: types.NewFr(5), NewValue: types.NewFr(7), SideEffectCounter: 4}}
	pub.UnencryptedLogsHash = types.NewFr(12)
	pub.UnencryptedLogPreimagesLength = 8

	out, err := NativeKernelSimulator{}.PublicKernelCircuitAppLogic(context.Background(), inputs)
	require.NoError(t, err)

	end := out.End
	require.Equal(t, callRequests(nested), end.PublicCallStack)
	assert.Equal(t, []types.SideEffect{{Value: types.SiloNoteHash(contractA, types.NewFr(10)), Counter: 1}}, end.NewNoteHashes)
	assert.Equal(t, types.SiloNullifier(contractA, types.NewFr(11)), end.NewNullifiers[0].Value)

	slot := types.ComputePublicDataLeafSlot(contractA, types.NewFr(5))
	assert.Equal(t, []types.PublicDataRead{{LeafSlot: slot, Value: types.NewFr(6), SideEffectCounter: 3}}, end.PublicDataReads)
	assert.Equal(t, []types.PublicDataUpdateRequest{{LeafSlot: slot, NewValue: types.NewFr(7), SideEffectCounter: 4}}, end.PublicDataUpdateRequests)
	assert.Equal(t, types.AccumulateLogsHash(types.Fr{}, types.NewFr(12)), end.UnencryptedLogsHash)
	assert.Equal(t, uint64(8), end.UnencryptedLogPreimagesLength)
	assert.Empty(t, out.EndNonRevertibleData.NewNoteHashes)

	// The previous output is left alone.
	require.Len(t, previous.End.PublicCallStack, 1)
	require.Empty(t, previous.End.PublicDataReads)
}

func TestKernelFoldNonRevertible(t *testing.T) {
	call := request(contractA, 1)
	inputs := kernelInputs(privateOutput([]*types.PublicCallRequest{call}, nil), call)
	inputs.PublicCall.CallStackItem.PublicInputs.NewNoteHashes = []types.SideEffect{{Value: types.NewFr(1)}}

	out, err := NativeKernelSimulator{}.PublicKernelCircuitTeardown(context.Background(), inputs)
	require.NoError(t, err)
	require.Empty(t, out.EndNonRevertibleData.PublicCallStack)
	require.Len(t, out.EndNonRevertibleData.NewNoteHashes, 1)
	require.Empty(t, out.End.NewNoteHashes)
}

func TestKernelCallRequestNotFound(t *testing.T) {
	call := request(contractA, 1)
	// The call sits on the revertible stack, SETUP looks at the other one.
	inputs := kernelInputs(privateOutput(nil, []*types.PublicCallRequest{call}), call)

	_, err := NativeKernelSimulator{}.PublicKernelCircuitSetup(context.Background(), inputs)
	require.True(t, errors.Is(err, ErrCallRequestNotFound), "err: %v", err)
}

func TestKernelArrayOverflow(t *testing.T) {
	call := request(contractA, 1)
	inputs := kernelInputs(privateOutput(nil, []*types.PublicCallRequest{call}), call)
	inputs.PublicCall.CallStackItem.PublicInputs.NewNoteHashes = make([]types.SideEffect, params.MaxNewNoteHashesPerCall+1)

	_, err := NativeKernelSimulator{}.PublicKernelCircuitAppLogic(context.Background(), inputs)
	require.True(t, errors.Is(err, ErrKernelArrayOverflow), "err: %v", err)
}

func TestKernelTxArrayOverflow(t *testing.T) {
	call := request(contractA, 1)
	previous := privateOutput(nil, []*types.PublicCallRequest{call})
	previous.End.NewNoteHashes = make([]types.SideEffect, params.MaxNewNoteHashesPerTx)

	inputs := kernelInputs(previous, call)
	inputs.PublicCall.CallStackItem.PublicInputs.NewNoteHashes = []types.SideEffect{{Value: types.NewFr(1)}}

	_, err := NativeKernelSimulator{}.PublicKernelCircuitAppLogic(context.Background(), inputs)
	require.ErrorIs(t, err, ErrKernelArrayOverflow)
}
