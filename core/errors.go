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
	"errors"
	"fmt"
)

var (
	// ErrSimulatorKernelMismatch is returned if the public data actions the
	// simulator traced are not all part of the kernel output.
	ErrSimulatorKernelMismatch = errors.New("public data actions from simulator do not match those from public kernel")

	// ErrCallRequestNotFound is returned if the kernel is asked to process a
	// call that is not on the public call stack of its phase.
	ErrCallRequestNotFound = errors.New("call request not found in public call stack")

	// ErrKernelArrayOverflow is returned if a call or a transaction produces
	// more side effects than the kernel accumulators can hold.
	ErrKernelArrayOverflow = errors.New("kernel array overflow")

	// ErrPublicCallReverted is returned if an enqueued public call reverts.
	ErrPublicCallReverted = errors.New("public call reverted")
)

// PhaseError is the failure of a public kernel phase.
type PhaseError struct {
	Phase PublicKernelPhase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s phase: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }
