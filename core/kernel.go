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
	"fmt"

	"github.com/bnb-chain/avm/core/types"
	"github.com/bnb-chain/avm/params"
)

// PublicKernelData is the output of the previous kernel iteration.
type PublicKernelData struct {
	PublicInputs *types.PublicKernelCircuitPublicInputs
	Proof        types.Proof
}

// PublicCallData is a simulated call as consumed by a kernel iteration.
type PublicCallData struct {
	CallStackItem         *types.PublicCallStackItem
	PublicCallStack       []types.CallRequest // Requests of the nested calls, in call order
	Proof                 types.Proof
	PortalContractAddress types.Fr
	BytecodeHash          types.Fr
}

// PublicKernelCircuitPrivateInputs are the inputs of one kernel iteration.
type PublicKernelCircuitPrivateInputs struct {
	PreviousKernel PublicKernelData
	PublicCall     PublicCallData
}

// KernelCircuitSimulator folds a simulated call into the kernel accumulator,
// with one entry point per phase.
type KernelCircuitSimulator interface {
	PublicKernelCircuitSetup(ctx context.Context, inputs *PublicKernelCircuitPrivateInputs) (*types.PublicKernelCircuitPublicInputs, error)
	PublicKernelCircuitAppLogic(ctx context.Context, inputs *PublicKernelCircuitPrivateInputs) (*types.PublicKernelCircuitPublicInputs, error)
	PublicKernelCircuitTeardown(ctx context.Context, inputs *PublicKernelCircuitPrivateInputs) (*types.PublicKernelCircuitPublicInputs, error)
}

type kernelCircuit func(KernelCircuitSimulator, context.Context, *PublicKernelCircuitPrivateInputs) (*types.PublicKernelCircuitPublicInputs, error)

// kernelCircuits maps every phase to its kernel entry point.
var kernelCircuits = [NumPhases]kernelCircuit{
	PhaseSetup:    KernelCircuitSimulator.PublicKernelCircuitSetup,
	PhaseAppLogic: KernelCircuitSimulator.PublicKernelCircuitAppLogic,
	PhaseTeardown: KernelCircuitSimulator.PublicKernelCircuitTeardown,
}

// NativeKernelSimulator computes the public kernel outputs in process.
type NativeKernelSimulator struct{}

func (NativeKernelSimulator) PublicKernelCircuitSetup(ctx context.Context, inputs *PublicKernelCircuitPrivateInputs) (*types.PublicKernelCircuitPublicInputs, error) {
	return foldPublicCall(inputs, PhaseSetup)
}

func (NativeKernelSimulator) PublicKernelCircuitAppLogic(ctx context.Context, inputs *PublicKernelCircuitPrivateInputs) (*types.PublicKernelCircuitPublicInputs, error) {
	return foldPublicCall(inputs, PhaseAppLogic)
}

func (NativeKernelSimulator) PublicKernelCircuitTeardown(ctx context.Context, inputs *PublicKernelCircuitPrivateInputs) (*types.PublicKernelCircuitPublicInputs, error) {
	return foldPublicCall(inputs, PhaseTeardown)
}

func checkLimit(what string, n, limit int) error {
	if n > limit {
		return fmt.Errorf("%w: %d %s, limit %d", ErrKernelArrayOverflow, n, what, limit)
	}
	return nil
}

func checkCallLimits(pub *types.PublicCircuitPublicInputs, nested int) error {
	for _, c := range []struct {
		what     string
		n, limit int
	}{
		{"note hashes", len(pub.NewNoteHashes), params.MaxNewNoteHashesPerCall},
		{"nullifiers", len(pub.NewNullifiers), params.MaxNewNullifiersPerCall},
		{"L2 to L1 messages", len(pub.NewL2ToL1Msgs), params.MaxNewL2ToL1MsgsPerCall},
		{"nested calls", nested, params.MaxPublicCallStackLengthPerCall},
		{"storage reads", len(pub.ContractStorageReads), params.MaxPublicDataReadsPerCall},
		{"storage updates", len(pub.ContractStorageUpdateRequests), params.MaxPublicDataUpdateRequestsPerCall},
	} {
		if err := checkLimit(c.what+" per call", c.n, c.limit); err != nil {
			return err
		}
	}
	return nil
}

func checkTxLimits(data *types.AccumulatedData) error {
	for _, c := range []struct {
		what     string
		n, limit int
	}{
		{"note hashes", len(data.NewNoteHashes), params.MaxNewNoteHashesPerTx},
		{"nullifiers", len(data.NewNullifiers), params.MaxNewNullifiersPerTx},
		{"L2 to L1 messages", len(data.NewL2ToL1Msgs), params.MaxNewL2ToL1MsgsPerTx},
		{"public calls", len(data.PublicCallStack), params.MaxPublicCallStackLengthPerTx},
		{"public data reads", len(data.PublicDataReads), params.MaxPublicDataReadsPerTx},
		{"public data updates", len(data.PublicDataUpdateRequests), params.MaxPublicDataUpdateRequestsPerTx},
	} {
		if err := checkLimit(c.what+" per tx", c.n, c.limit); err != nil {
			return err
		}
	}
	return nil
}

// foldPublicCall applies one simulated call to a copy of the previous kernel
// output: the call is popped off the public call stack of the phase, its
// nested calls are pushed, and its side effects are siloed by the storage
// contract and appended to the partition of the phase.
func foldPublicCall(inputs *PublicKernelCircuitPrivateInputs, phase PublicKernelPhase) (*types.PublicKernelCircuitPublicInputs, error) {
	var (
		item     = inputs.PublicCall.CallStackItem
		pub      = &item.PublicInputs
		contract = pub.CallContext.StorageContractAddress
	)
	if err := checkCallLimits(pub, len(inputs.PublicCall.PublicCallStack)); err != nil {
		return nil, err
	}
	out := inputs.PreviousKernel.PublicInputs.Copy()
	data := out.Partition(phase.IsRevertible())

	hash := item.Hash()
	idx := -1
	for i := len(data.PublicCallStack) - 1; i >= 0; i-- {
		if data.PublicCallStack[i].Hash == hash {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, fmt.Errorf("%w: %s in %s phase", ErrCallRequestNotFound, hash.TerminalString(), phase)
	}
	data.PublicCallStack = append(data.PublicCallStack[:idx], data.PublicCallStack[idx+1:]...)
	data.PublicCallStack = append(data.PublicCallStack, inputs.PublicCall.PublicCallStack...)

	for _, nh := range pub.NewNoteHashes {
		data.NewNoteHashes = append(data.NewNoteHashes, types.SideEffect{
			Value:   types.SiloNoteHash(contract, nh.Value),
			Counter: nh.Counter,
		})
	}
	for _, n := range pub.NewNullifiers {
		data.NewNullifiers = append(data.NewNullifiers, types.SideEffectLinkedToNoteHash{
			Value:    types.SiloNullifier(contract, n.Value),
			NoteHash: n.NoteHash,
			Counter:  n.Counter,
		})
	}
	data.NewL2ToL1Msgs = append(data.NewL2ToL1Msgs, pub.NewL2ToL1Msgs...)

	for _, read := range pub.ContractStorageReads {
		data.PublicDataReads = append(data.PublicDataReads, types.PublicDataRead{
			LeafSlot:          types.ComputePublicDataLeafSlot(contract, read.StorageSlot),
			Value:             read.CurrentValue,
			SideEffectCounter: read.SideEffectCounter,
		})
	}
	for _, update := range pub.ContractStorageUpdateRequests {
		data.PublicDataUpdateRequests = append(data.PublicDataUpdateRequests, types.PublicDataUpdateRequest{
			LeafSlot:          types.ComputePublicDataLeafSlot(contract, update.StorageSlot),
			NewValue:          update.NewValue,
			SideEffectCounter: update.SideEffectCounter,
		})
	}
	out.End.UnencryptedLogsHash = types.AccumulateLogsHash(out.End.UnencryptedLogsHash, pub.UnencryptedLogsHash)
	out.End.UnencryptedLogPreimagesLength += pub.UnencryptedLogPreimagesLength

	if err := checkTxLimits(data); err != nil {
		return nil, err
	}
	kernelIterationCounter.Inc(1)
	return out, nil
}
