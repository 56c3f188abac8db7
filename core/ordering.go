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
	"cmp"
	"fmt"
	"slices"

	"github.com/bnb-chain/avm/core/types"
	"github.com/bnb-chain/avm/core/vm"
)

// collectPublicDataReads returns the storage reads of a result tree as public
// data reads, in execution order.
func collectPublicDataReads(result *vm.PublicExecutionResult) []types.PublicDataRead {
	var reads []types.PublicDataRead
	result.Walk(func(r *vm.PublicExecutionResult) error {
		contract := r.Execution.CallContext.StorageContractAddress
		for _, read := range r.ContractStorageReads {
			reads = append(reads, types.PublicDataRead{
				LeafSlot:          types.ComputePublicDataLeafSlot(contract, read.StorageSlot),
				Value:             read.CurrentValue,
				SideEffectCounter: read.SideEffectCounter,
			})
		}
		return nil
	})
	slices.SortStableFunc(reads, func(a, b types.PublicDataRead) int {
		return cmp.Compare(a.SideEffectCounter, b.SideEffectCounter)
	})
	return reads
}

// collectPublicDataUpdateRequests returns the storage writes of a result tree
// as public data update requests, in execution order.
func collectPublicDataUpdateRequests(result *vm.PublicExecutionResult) []types.PublicDataUpdateRequest {
	var updates []types.PublicDataUpdateRequest
	result.Walk(func(r *vm.PublicExecutionResult) error {
		contract := r.Execution.CallContext.StorageContractAddress
		for _, update := range r.ContractStorageUpdateRequests {
			updates = append(updates, types.PublicDataUpdateRequest{
				LeafSlot:          types.ComputePublicDataLeafSlot(contract, update.StorageSlot),
				NewValue:          update.NewValue,
				SideEffectCounter: update.SideEffectCounter,
			})
		}
		return nil
	})
	slices.SortStableFunc(updates, func(a, b types.PublicDataUpdateRequest) int {
		return cmp.Compare(a.SideEffectCounter, b.SideEffectCounter)
	})
	return updates
}

// reorderTail checks that every simulated action is part of the kernel output
// and replaces the last len(simulated) kernel entries with the simulated
// actions, which are in execution order.
func reorderTail[T comparable](kernel, simulated []T, what string) ([]T, error) {
	for _, action := range simulated {
		if !slices.Contains(kernel, action) {
			return nil, fmt.Errorf("%w: %s %+v missing from kernel output", ErrSimulatorKernelMismatch, what, action)
		}
	}
	before := len(kernel) - len(simulated)
	if before < 0 {
		return nil, fmt.Errorf("%w: simulator traced %d %s, kernel holds %d", ErrSimulatorKernelMismatch, len(simulated), what, len(kernel))
	}
	return append(kernel[:before:before], simulated...), nil
}

// patchPublicStorageActionOrdering overrides the order of the public data
// actions the kernel accumulated for the last enqueued call with the order
// the simulator observed. The kernel cannot see whether an action happened
// before or after a nested call, so only the order is patched; the actions
// themselves must match.
func patchPublicStorageActionOrdering(output *types.PublicKernelCircuitPublicInputs, enqueued *vm.PublicExecutionResult, phase PublicKernelPhase) error {
	data := output.Partition(phase.IsRevertible())

	reads, err := reorderTail(data.PublicDataReads, collectPublicDataReads(enqueued), "public data read")
	if err != nil {
		return err
	}
	updates, err := reorderTail(data.PublicDataUpdateRequests, collectPublicDataUpdateRequests(enqueued), "public data update request")
	if err != nil {
		return err
	}
	data.PublicDataReads, data.PublicDataUpdateRequests = reads, updates
	return nil
}

// removeRedundantPublicDataWrites keeps only the last write to every leaf
// slot, in both partitions.
func removeRedundantPublicDataWrites(output *types.PublicKernelCircuitPublicInputs) {
	prune := func(updates []types.PublicDataUpdateRequest) []types.PublicDataUpdateRequest {
		last := make(map[types.Fr]types.PublicDataUpdateRequest, len(updates))
		for _, update := range updates {
			last[update.LeafSlot] = update
		}
		kept := updates[:0]
		for _, update := range updates {
			if last[update.LeafSlot] == update {
				kept = append(kept, update)
			}
		}
		return kept
	}
	output.End.PublicDataUpdateRequests = prune(output.End.PublicDataUpdateRequests)
	output.EndNonRevertibleData.PublicDataUpdateRequests = prune(output.EndNonRevertibleData.PublicDataUpdateRequests)
}
