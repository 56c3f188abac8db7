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
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/bnb-chain/avm/core/state"
	"github.com/bnb-chain/avm/core/types"
	"github.com/bnb-chain/avm/core/vm"
	"github.com/bnb-chain/avm/params"
)

// PublicProver proves public function circuits and public kernel iterations.
type PublicProver interface {
	GetPublicCircuitProof(ctx context.Context, inputs *types.PublicCircuitPublicInputs) (types.Proof, error)
	GetPublicKernelCircuitProof(ctx context.Context, inputs *types.PublicKernelCircuitPublicInputs) (types.Proof, error)
}

// PhaseResult is the outcome of a successful phase.
type PhaseResult struct {
	Output *types.PublicKernelCircuitPublicInputs
	Proof  types.Proof
	Logs   []types.FunctionL2Logs // Unencrypted logs per simulated call
}

// PhaseManager runs the enqueued public calls of one phase of a transaction
// and threads their results through the public kernel.
type PhaseManager struct {
	phase       PublicKernelPhase
	executor    *vm.PublicExecutor
	kernel      KernelCircuitSimulator
	prover      PublicProver
	publicState state.PublicStateDB
	globals     types.GlobalVariables
	header      types.Header
	log         log.Logger
}

// NewPhaseManager creates the manager of a phase. The executor must run
// against publicState, which the manager commits or rolls back.
func NewPhaseManager(phase PublicKernelPhase, executor *vm.PublicExecutor, kernel KernelCircuitSimulator, prover PublicProver,
	publicState state.PublicStateDB, globals types.GlobalVariables, header types.Header) *PhaseManager {
	return &PhaseManager{
		phase:       phase,
		executor:    executor,
		kernel:      kernel,
		prover:      prover,
		publicState: publicState,
		globals:     globals,
		header:      header,
		log:         log.New("phase", phase),
	}
}

// Phase returns the phase run by the manager.
func (m *PhaseManager) Phase() PublicKernelPhase { return m.phase }

// NextPhase returns the manager of the following phase, or nil after
// TEARDOWN.
func (m *PhaseManager) NextPhase() *PhaseManager {
	next, ok := m.phase.next()
	if !ok {
		return nil
	}
	return NewPhaseManager(next, m.executor, m.kernel, m.prover, m.publicState, m.globals, m.header)
}

// Handle runs the phase on top of the previous kernel output and commits its
// state updates. The previous output is not modified.
func (m *PhaseManager) Handle(ctx context.Context, tx *types.Tx, previous *types.PublicKernelCircuitPublicInputs, proof types.Proof) (*PhaseResult, error) {
	defer metrics.GetOrRegisterTimer("avm/phase/"+m.phase.String(), nil).UpdateSince(time.Now())

	m.log.Debug("Executing enqueued public calls", "tx", tx.Hash())
	result, err := m.processEnqueuedPublicCalls(ctx, tx, previous.Copy(), proof)
	if err != nil {
		return nil, err
	}
	switch m.phase {
	case PhaseSetup:
		result.Output.NeedsSetup = false
	case PhaseAppLogic:
		result.Output.NeedsAppLogic = false
	case PhaseTeardown:
		result.Output.NeedsTeardown = false
	}
	if err := m.publicState.Commit(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// Rollback discards the uncommitted state updates of the phase.
func (m *PhaseManager) Rollback(ctx context.Context, tx *types.Tx, err error) *types.FailedTx {
	m.log.Warn("Error processing tx", "tx", tx.Hash(), "err", err)
	if rerr := m.publicState.Rollback(ctx); rerr != nil {
		m.log.Error("Failed to roll back public state", "tx", tx.Hash(), "err", rerr)
	}
	return &types.FailedTx{Tx: tx, Err: &PhaseError{Phase: m.phase, Err: err}}
}

// pendingExecution is an entry of the execution stack: either a request to
// simulate or the result of a nested call that was simulated with its parent.
type pendingExecution struct {
	request *types.PublicCallRequest
	result  *vm.PublicExecutionResult
}

func (m *PhaseManager) processEnqueuedPublicCalls(ctx context.Context, tx *types.Tx, output *types.PublicKernelCircuitPublicInputs, proof types.Proof) (*PhaseResult, error) {
	res := &PhaseResult{Output: output, Proof: proof}

	calls := ExtractEnqueuedPublicCallsByPhase(tx.Data, tx.EnqueuedPublicFunctionCalls)[m.phase]
	if len(calls) == 0 {
		return res, nil
	}
	for _, call := range calls {
		var (
			stack    = []pendingExecution{{request: call}}
			enqueued *vm.PublicExecutionResult
		)
		for len(stack) > 0 {
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			result, isExecutionRequest := current.result, current.request != nil
			if isExecutionRequest {
				var err error
				if result, err = m.executor.Simulate(ctx, m.executor.NewExecution(current.request), m.globals); err != nil {
					return nil, err
				}
				if result.Reverted {
					return nil, fmt.Errorf("%w: %s", ErrPublicCallReverted, result.RevertReason)
				}
			}
			res.Logs = append(res.Logs, result.UnencryptedLogs)
			m.log.Debug("Running public kernel circuit", "contract", result.Execution.ContractAddress, "selector", result.Execution.FunctionData.Selector)

			for _, nested := range result.NestedExecutions {
				stack = append(stack, pendingExecution{result: nested})
			}
			callData, err := m.publicCallData(ctx, result, isExecutionRequest)
			if err != nil {
				return nil, err
			}
			if res.Output, res.Proof, err = m.runKernelCircuit(ctx, callData, res.Output, res.Proof); err != nil {
				return nil, err
			}
			if enqueued == nil {
				enqueued = result
			}
		}
		if err := patchPublicStorageActionOrdering(res.Output, enqueued, m.phase); err != nil {
			return nil, err
		}
	}
	removeRedundantPublicDataWrites(res.Output)
	return res, nil
}

func (m *PhaseManager) runKernelCircuit(ctx context.Context, callData *PublicCallData, previous *types.PublicKernelCircuitPublicInputs, proof types.Proof) (*types.PublicKernelCircuitPublicInputs, types.Proof, error) {
	inputs := &PublicKernelCircuitPrivateInputs{
		PreviousKernel: PublicKernelData{PublicInputs: previous, Proof: proof},
		PublicCall:     *callData,
	}
	output, err := kernelCircuits[m.phase](m.kernel, ctx, inputs)
	if err != nil {
		return nil, nil, err
	}
	kernelProof, err := m.prover.GetPublicKernelCircuitProof(ctx, output)
	if err != nil {
		return nil, nil, err
	}
	return output, kernelProof, nil
}

func (m *PhaseManager) publicCircuitPublicInputs(result *vm.PublicExecutionResult) (types.PublicCircuitPublicInputs, error) {
	if n := len(result.NestedExecutions); n > params.MaxPublicCallStackLengthPerCall {
		return types.PublicCircuitPublicInputs{}, fmt.Errorf("%w: public call stack size %d, max %d", ErrKernelArrayOverflow, n, params.MaxPublicCallStackLengthPerCall)
	}
	hashes := make([]types.Fr, len(result.NestedExecutions))
	for i, nested := range result.NestedExecutions {
		hashes[i] = nested.Execution.ToPublicCallStackItem().Hash()
	}
	return types.PublicCircuitPublicInputs{
		CallContext:                   result.Execution.CallContext,
		ArgsHash:                      types.ArgsHash(result.Execution.Args),
		ReturnValues:                  result.ReturnValues,
		NewNoteHashes:                 result.NewNoteHashes,
		NewNullifiers:                 result.NewNullifiers,
		NewL2ToL1Msgs:                 result.NewL2ToL1Messages,
		ContractStorageReads:          result.ContractStorageReads,
		ContractStorageUpdateRequests: result.ContractStorageUpdateRequests,
		PublicCallStackHashes:         hashes,
		UnencryptedLogsHash:           result.UnencryptedLogs.Hash(),
		UnencryptedLogPreimagesLength: result.UnencryptedLogs.PreimageLength(),
		HistoricalHeader:              m.header,
	}, nil
}

// publicCallData builds and proves the kernel view of a simulated call.
func (m *PhaseManager) publicCallData(ctx context.Context, result *vm.PublicExecutionResult, isExecutionRequest bool) (*PublicCallData, error) {
	pub, err := m.publicCircuitPublicInputs(result)
	if err != nil {
		return nil, err
	}
	item := &types.PublicCallStackItem{
		ContractAddress:    result.Execution.ContractAddress,
		FunctionData:       result.Execution.FunctionData,
		PublicInputs:       pub,
		IsExecutionRequest: isExecutionRequest,
	}
	proof, err := m.prover.GetPublicCircuitProof(ctx, &item.PublicInputs)
	if err != nil {
		return nil, err
	}
	return &PublicCallData{
		CallStackItem:         item,
		PublicCallStack:       result.CallRequests(),
		Proof:                 proof,
		PortalContractAddress: types.EthAddressToField(result.Execution.CallContext.PortalContractAddress),
		// Circuits only check that the bytecode hash is not zero.
		BytecodeHash: types.NewFr(1),
	}, nil
}
