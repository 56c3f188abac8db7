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
	"slices"

	"github.com/bnb-chain/avm/core/types"
)

// PublicKernelPhase is a phase of the public part of a transaction.
type PublicKernelPhase uint8

const (
	PhaseSetup PublicKernelPhase = iota
	PhaseAppLogic
	PhaseTeardown

	// NumPhases is the number of public kernel phases.
	NumPhases
)

var phaseNames = [NumPhases]string{
	PhaseSetup:    "setup",
	PhaseAppLogic: "app-logic",
	PhaseTeardown: "teardown",
}

// PhaseIsRevertible reports, per phase, whether the side effects of the phase
// land in the revertible accumulator.
var PhaseIsRevertible = [NumPhases]bool{
	PhaseSetup:    false,
	PhaseAppLogic: true,
	PhaseTeardown: false,
}

func (p PublicKernelPhase) String() string {
	if p < NumPhases {
		return phaseNames[p]
	}
	return "unknown"
}

// IsRevertible reports whether the phase writes the revertible partition.
func (p PublicKernelPhase) IsRevertible() bool {
	return p < NumPhases && PhaseIsRevertible[p]
}

// next returns the phase following p. The second value is false after
// TEARDOWN.
func (p PublicKernelPhase) next() (PublicKernelPhase, bool) {
	if p+1 >= NumPhases {
		return 0, false
	}
	return p + 1, true
}

// initialPhase picks the first phase a transaction needs from the flags of
// its private kernel output.
func initialPhase(data *types.PublicKernelCircuitPublicInputs) (PublicKernelPhase, bool) {
	switch {
	case data.NeedsSetup:
		return PhaseSetup, true
	case data.NeedsAppLogic:
		return PhaseAppLogic, true
	case data.NeedsTeardown:
		return PhaseTeardown, true
	}
	return 0, false
}

// ExtractEnqueuedPublicCallsByPhase splits the enqueued calls of a transaction
// into its phases. The calls are taken in enqueue order, i.e. reversed, and
// calls whose request is on neither public call stack of the private kernel
// output are dropped before the phase boundaries are computed.
//
// Without any revertible call every phase is empty. If the first revertible
// call is the first call, every call goes to APP_LOGIC and there is no
// teardown. Otherwise the calls before the first revertible one, less the
// last of them, form SETUP; that last one is the TEARDOWN call and the rest
// is APP_LOGIC.
func ExtractEnqueuedPublicCallsByPhase(data *types.PublicKernelCircuitPublicInputs, enqueued []*types.PublicCallRequest) [NumPhases][]*types.PublicCallRequest {
	var (
		revertible    = data.End.PublicCallStack
		nonRevertible = data.EndNonRevertibleData.PublicCallStack
		calls         []*types.PublicCallRequest
		requests      []types.CallRequest
	)
	for i := len(enqueued) - 1; i >= 0; i-- {
		req := enqueued[i].ToCallRequest()
		if !containsCallRequest(revertible, req) && !containsCallRequest(nonRevertible, req) {
			continue
		}
		calls = append(calls, enqueued[i])
		requests = append(requests, req)
	}
	var phases [NumPhases][]*types.PublicCallRequest
	if len(calls) == 0 {
		return phases
	}
	first := slices.IndexFunc(requests, func(req types.CallRequest) bool {
		return containsCallRequest(revertible, req)
	})
	switch first {
	case -1:
		return phases
	case 0:
		phases[PhaseAppLogic] = calls
		return phases
	}
	phases[PhaseSetup] = calls[:first-1]
	phases[PhaseAppLogic] = calls[first:]
	phases[PhaseTeardown] = []*types.PublicCallRequest{calls[first-1]}
	return phases
}

func containsCallRequest(stack []types.CallRequest, req types.CallRequest) bool {
	for _, r := range stack {
		if !r.IsEmpty() && r == req {
			return true
		}
	}
	return false
}
