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
)

// ExecutionEnvironment holds the context a frame executes in. It is
// immutable for the lifetime of the frame.
type ExecutionEnvironment struct {
	Address        types.AztecAddress
	StorageAddress types.AztecAddress
	Origin         types.AztecAddress
	Sender         types.AztecAddress
	Portal         types.EthAddress
	Selector       types.FunctionSelector

	Globals types.GlobalVariables
	Header  types.Header

	IsStaticCall   bool
	IsDelegateCall bool
	Calldata       []types.Fr
	Depth          int // Number of calling frames
}

// newTopLevelEnvironment builds the environment of an enqueued call.
func newTopLevelEnvironment(req *types.PublicCallRequest, globals types.GlobalVariables, header types.Header) *ExecutionEnvironment {
	return &ExecutionEnvironment{
		Address:        req.ContractAddress,
		StorageAddress: req.CallContext.StorageContractAddress,
		Origin:         req.CallContext.MsgSender,
		Sender:         req.CallContext.MsgSender,
		Portal:         req.CallContext.PortalContractAddress,
		Selector:       req.FunctionData.Selector,
		Globals:        globals,
		Header:         header,
		IsStaticCall:   req.CallContext.IsStaticCall,
		IsDelegateCall: req.CallContext.IsDelegateCall,
		Calldata:       req.Args,
	}
}

// deriveNested builds the environment of a call made from this one. Static
// context is inherited.
func (e *ExecutionEnvironment) deriveNested(req *types.PublicCallRequest) *ExecutionEnvironment {
	return &ExecutionEnvironment{
		Address:        req.ContractAddress,
		StorageAddress: req.CallContext.StorageContractAddress,
		Origin:         e.Origin,
		Sender:         e.Address,
		Portal:         req.CallContext.PortalContractAddress,
		Selector:       req.FunctionData.Selector,
		Globals:        e.Globals,
		Header:         e.Header,
		IsStaticCall:   e.IsStaticCall || req.CallContext.IsStaticCall,
		Calldata:       req.Args,
		Depth:          e.Depth + 1,
	}
}
