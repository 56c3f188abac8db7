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
	"github.com/bnb-chain/avm/core/types"
	"github.com/bnb-chain/avm/params"
)

// MachineState is the mutable state of a frame.
type MachineState struct {
	PC     uint32
	Memory *TaggedMemory

	Halted   bool
	Reverted bool
	Output   []types.Fr

	internalCallStack []uint32
}

func newMachineState() *MachineState {
	return &MachineState{Memory: NewTaggedMemory()}
}

func (s *MachineState) halt(output []types.Fr, reverted bool) {
	s.Halted = true
	s.Reverted = reverted
	s.Output = output
}

func (s *MachineState) pushReturn(pc uint32) error {
	if len(s.internalCallStack) >= params.MaxInternalCallStackDepth {
		return ErrInternalCallStackOverflow
	}
	s.internalCallStack = append(s.internalCallStack, pc)
	return nil
}

func (s *MachineState) popReturn() (uint32, error) {
	n := len(s.internalCallStack)
	if n == 0 {
		return 0, ErrInternalCallStackUnderflow
	}
	pc := s.internalCallStack[n-1]
	s.internalCallStack = s.internalCallStack[:n-1]
	return pc, nil
}
