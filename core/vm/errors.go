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
	"errors"
	"fmt"
	"strings"

	"github.com/bnb-chain/avm/core/types"
)

// List AVM execution errors
var (
	ErrTagMismatch                = errors.New("tag mismatch")
	ErrStaticCallViolation        = errors.New("static call cannot update the state, emit L2->L1 messages or generate logs")
	ErrBytecodeNotFound           = errors.New("bytecode not found")
	ErrCallStackOverflow          = errors.New("max call depth exceeded")
	ErrInvalidOpcode              = errors.New("invalid opcode")
	ErrTruncatedInstruction       = errors.New("truncated instruction")
	ErrInvalidJump                = errors.New("invalid jump destination")
	ErrInvalidProgramCounter      = errors.New("program counter out of range")
	ErrInternalCallStackUnderflow = errors.New("internal call stack underflow")
	ErrInternalCallStackOverflow  = errors.New("internal call stack overflow")
	ErrDivisionByZero             = errors.New("division by zero")
	ErrInvalidTagForOperation     = errors.New("invalid tag for operation")
	ErrInvalidTag                 = errors.New("invalid type tag")
	ErrMemoryOutOfRange           = errors.New("memory access out of range")
	ErrInternalFunctionCall       = errors.New("internal function called from another contract")
	ErrStrategyUnavailable        = errors.New("execution strategy unavailable")
	ErrCalldataOutOfRange         = errors.New("calldata copy out of range")
)

// TagMismatchError is returned when a memory cell does not carry the tag an
// instruction expects.
type TagMismatchError struct {
	Offset   uint32
	Got      TypeTag
	Expected TypeTag
}

func (e *TagMismatchError) Error() string {
	return fmt.Sprintf("offset %d has tag %s, expected %s", e.Offset, e.Got, e.Expected)
}

func (e *TagMismatchError) Unwrap() error { return ErrTagMismatch }

// CallSite names a frame of the public call stack.
type CallSite struct {
	Address  types.AztecAddress
	Selector types.FunctionSelector
	PC       uint32
}

func (s CallSite) String() string {
	return fmt.Sprintf("%s:%s@%d", s.Address.Hex(), s.Selector, s.PC)
}

// ExecutionError wraps an error raised while executing public bytecode with
// the call stack that led to it, innermost frame first.
type ExecutionError struct {
	Err       error
	CallStack []CallSite
}

func (e *ExecutionError) Error() string {
	sites := make([]string, len(e.CallStack))
	for i, s := range e.CallStack {
		sites[i] = s.String()
	}
	return fmt.Sprintf("%v (call stack: %s)", e.Err, strings.Join(sites, " <- "))
}

func (e *ExecutionError) Unwrap() error { return e.Err }
