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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bnb-chain/avm/core/types"
)

var (
	contractA = types.HexToAztecAddress("0xaa")
	contractB = types.HexToAztecAddress("0xbb")
	sender    = types.HexToAztecAddress("0xcc")
)

func request(contract types.AztecAddress, selector uint32, args ...types.Fr) *types.PublicCallRequest {
	sel := types.FunctionSelectorFromUint32(selector)
	return &types.PublicCallRequest{
		ContractAddress: contract,
		FunctionData:    types.FunctionData{Selector: sel},
		CallContext: types.CallContext{
			MsgSender:              sender,
			StorageContractAddress: contract,
			FunctionSelector:       sel,
		},
		Args: args,
	}
}

func testCall(selector uint32) *types.PublicCallRequest { return request(contractA, selector) }

func callRequests(calls ...*types.PublicCallRequest) []types.CallRequest {
	reqs := make([]types.CallRequest, len(calls))
	for i, call := range calls {
		reqs[i] = call.ToCallRequest()
	}
	return reqs
}

// privateOutput builds a private kernel output with the given calls on its
// public call stacks.
func privateOutput(nonRevertible, revertible []*types.PublicCallRequest) *types.PublicKernelCircuitPublicInputs {
	out := new(types.PublicKernelCircuitPublicInputs)
	out.EndNonRevertibleData.PublicCallStack = callRequests(nonRevertible...)
	out.End.PublicCallStack = callRequests(revertible...)
	out.NeedsSetup = len(nonRevertible) > 1
	out.NeedsAppLogic = len(revertible) > 0
	out.NeedsTeardown = len(nonRevertible) > 0
	return out
}

// reversed returns the calls in the order the private execution enqueues
// them.
func reversed(calls ...*types.PublicCallRequest) []*types.PublicCallRequest {
	out := make([]*types.PublicCallRequest, len(calls))
	for i, call := range calls {
		out[len(calls)-1-i] = call
	}
	return out
}

func TestExtractNoCalls(t *testing.T) {
	phases := ExtractEnqueuedPublicCallsByPhase(privateOutput(nil, nil), reversed(testCall(1), testCall(2)))
	for phase := PublicKernelPhase(0); phase < NumPhases; phase++ {
		require.Empty(t, phases[phase], phase.String())
	}
}

func TestExtractFirstRevertibleAtZero(t *testing.T) {
	c0, c1, c2 := testCall(0), testCall(1), testCall(2)
	phases := ExtractEnqueuedPublicCallsByPhase(privateOutput([]*types.PublicCallRequest{c1, c2}, []*types.PublicCallRequest{c0}), reversed(c0, c1, c2))

	require.Empty(t, phases[PhaseSetup])
	require.Equal(t, []*types.PublicCallRequest{c0, c1, c2}, phases[PhaseAppLogic])
	require.Empty(t, phases[PhaseTeardown])
}

func TestExtractSplit(t *testing.T) {
	c0, c1, c2, c3 := testCall(0), testCall(1), testCall(2), testCall(3)
	phases := ExtractEnqueuedPublicCallsByPhase(privateOutput([]*types.PublicCallRequest{c0, c1}, []*types.PublicCallRequest{c2, c3}), reversed(c0, c1, c2, c3))

	require.Equal(t, []*types.PublicCallRequest{c0}, phases[PhaseSetup])
	require.Equal(t, []*types.PublicCallRequest{c2, c3}, phases[PhaseAppLogic])
	require.Equal(t, []*types.PublicCallRequest{c1}, phases[PhaseTeardown])
}

func TestExtractFirstRevertibleAtTwo(t *testing.T) {
	c0, c1, c2 := testCall(0), testCall(1), testCall(2)
	phases := ExtractEnqueuedPublicCallsByPhase(privateOutput([]*types.PublicCallRequest{c0, c1}, []*types.PublicCallRequest{c2}), reversed(c0, c1, c2))

	require.Equal(t, []*types.PublicCallRequest{c0}, phases[PhaseSetup])
	require.Equal(t, []*types.PublicCallRequest{c2}, phases[PhaseAppLogic])
	require.Equal(t, []*types.PublicCallRequest{c1}, phases[PhaseTeardown])
}

func TestExtractWithoutRevertibleCalls(t *testing.T) {
	c0, c1, c2 := testCall(0), testCall(1), testCall(2)
	phases := ExtractEnqueuedPublicCallsByPhase(privateOutput([]*types.PublicCallRequest{c0, c1, c2}, nil), reversed(c0, c1, c2))
	for phase := PublicKernelPhase(0); phase < NumPhases; phase++ {
		require.Empty(t, phases[phase], phase.String())
	}
}

func TestExtractDropsUnknownCalls(t *testing.T) {
	c0, c1, unknown := testCall(0), testCall(1), testCall(9)
	tests := []struct {
		name     string
		output   *types.PublicKernelCircuitPublicInputs
		enqueued []*types.PublicCallRequest
		setup    []*types.PublicCallRequest
		app      []*types.PublicCallRequest
		teardown []*types.PublicCallRequest
	}{
		{
			// The boundary is counted over known calls only, so the unknown
			// call neither shifts it nor lands in APP_LOGIC.
			name:     "before boundary",
			output:   privateOutput([]*types.PublicCallRequest{c0}, []*types.PublicCallRequest{c1}),
			enqueued: reversed(c0, unknown, c1),
			app:      []*types.PublicCallRequest{c1},
			teardown: []*types.PublicCallRequest{c0},
		},
		{
			name:     "first revertible at zero",
			output:   privateOutput([]*types.PublicCallRequest{c1}, []*types.PublicCallRequest{c0}),
			enqueued: reversed(unknown, c0, c1),
			app:      []*types.PublicCallRequest{c0, c1},
		},
		{
			name:     "only unknown calls",
			output:   privateOutput([]*types.PublicCallRequest{c0}, []*types.PublicCallRequest{c1}),
			enqueued: reversed(unknown),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phases := ExtractEnqueuedPublicCallsByPhase(tt.output, tt.enqueued)
			require.Equal(t, tt.setup, nilIfEmpty(phases[PhaseSetup]))
			require.Equal(t, tt.app, nilIfEmpty(phases[PhaseAppLogic]))
			require.Equal(t, tt.teardown, nilIfEmpty(phases[PhaseTeardown]))
			for _, calls := range phases {
				require.NotContains(t, calls, unknown)
			}
		})
	}
}

func nilIfEmpty(calls []*types.PublicCallRequest) []*types.PublicCallRequest {
	if len(calls) == 0 {
		return nil
	}
	return calls
}

func TestPhaseOrder(t *testing.T) {
	require.False(t, PhaseSetup.IsRevertible())
	require.True(t, PhaseAppLogic.IsRevertible())
	require.False(t, PhaseTeardown.IsRevertible())

	next, ok := PhaseSetup.next()
	require.True(t, ok)
	require.Equal(t, PhaseAppLogic, next)
	_, ok = PhaseTeardown.next()
	require.False(t, ok)
	require.Equal(t, "app-logic", PhaseAppLogic.String())
}
