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

package vm

import (
	"fmt"

	"github.com/bnb-chain/avm/core/types"
)

// Strategy selects how a public call is simulated.
type Strategy uint8

const (
	// StrategyAVM runs the bytecode on the tagged memory interpreter.
	StrategyAVM Strategy = iota
	// StrategyLegacy hands the call to an injected LegacySimulator.
	StrategyLegacy
)

func (s Strategy) String() string {
	switch s {
	case StrategyAVM:
		return "avm"
	case StrategyLegacy:
		return "legacy"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	switch s {
	case StrategyAVM, StrategyLegacy:
		return []byte(s.String()), nil
	}
	return nil, fmt.Errorf("unknown strategy %d", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	switch string(text) {
	case "avm":
		*s = StrategyAVM
	case "legacy":
		*s = StrategyLegacy
	default:
		return fmt.Errorf(`unknown strategy %q, want "avm" or "legacy"`, text)
	}
	return nil
}

// PublicExecution is a public call to simulate.
type PublicExecution struct {
	types.PublicCallRequest

	Strategy Strategy
}

// PublicExecutionResult is the outcome of simulating a public call and,
// recursively, of the calls it made.
type PublicExecutionResult struct {
	Execution *PublicExecution

	NewNoteHashes                 []types.SideEffect
	NewL2ToL1Messages             []types.L2ToL1Message
	NewNullifiers                 []types.SideEffectLinkedToNoteHash
	ContractStorageReads          []types.ContractStorageRead
	ContractStorageUpdateRequests []types.ContractStorageUpdateRequest
	ReturnValues                  []types.Fr
	NestedExecutions              []*PublicExecutionResult
	UnencryptedLogs               types.FunctionL2Logs

	StartSideEffectCounter uint32
	EndSideEffectCounter   uint32

	Reverted     bool
	RevertReason string
}

// clearEffects drops the side effects of a reverted call and its nested
// calls. Storage reads are kept, they must still be proven.
func (r *PublicExecutionResult) clearEffects() {
	r.NewNoteHashes = nil
	r.NewL2ToL1Messages = nil
	r.NewNullifiers = nil
	r.ContractStorageUpdateRequests = nil
	r.UnencryptedLogs = types.FunctionL2Logs{}
	for _, nested := range r.NestedExecutions {
		nested.clearEffects()
	}
}

// hasEffects reports whether the call changed state or emitted anything.
func (r *PublicExecutionResult) hasEffects() bool {
	return len(r.NewNoteHashes) > 0 || len(r.NewL2ToL1Messages) > 0 ||
		len(r.NewNullifiers) > 0 || len(r.ContractStorageUpdateRequests) > 0 ||
		len(r.UnencryptedLogs.Logs) > 0
}

// CallRequests returns the call requests of the nested calls, in call order.
func (r *PublicExecutionResult) CallRequests() []types.CallRequest {
	reqs := make([]types.CallRequest, len(r.NestedExecutions))
	for i, nested := range r.NestedExecutions {
		reqs[i] = nested.Execution.ToCallRequest()
	}
	return reqs
}

// Walk visits the result tree depth first, the receiver first.
func (r *PublicExecutionResult) Walk(fn func(*PublicExecutionResult) error) error {
	if err := fn(r); err != nil {
		return err
	}
	for _, nested := range r.NestedExecutions {
		if err := nested.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}
