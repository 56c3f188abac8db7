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

import "fmt"

// Opcode is an AVM opcode
type Opcode byte

// 0x00 range - arithmetic, comparison and bitwise ops.
const (
	ADD Opcode = iota
	SUB
	MUL
	DIV
	EQ
	LT
	LTE
	AND
	OR
	XOR
	NOT
	SHL
	SHR
	CAST
)

// 0x0e range - execution environment.
const (
	ADDRESS Opcode = iota + 0x0e
	STORAGEADDRESS
	ORIGIN
	SENDER
	PORTAL
	CHAINID
	VERSION
	BLOCKNUMBER
	TIMESTAMP
	COINBASE
	CONTRACTCALLDEPTH
	CALLDATACOPY
)

// 0x1a range - control flow and memory.
const (
	JUMP Opcode = iota + 0x1a
	JUMPI
	INTERNALCALL
	INTERNALRETURN
	SET
	MOV
	CMOV
)

// 0x21 range - world state and accrued substate.
const (
	SLOAD Opcode = iota + 0x21
	SSTORE
	NOTEHASHEXISTS
	EMITNOTEHASH
	NULLIFIEREXISTS
	EMITNULLIFIER
	L1TOL2MSGEXISTS
	EMITUNENCRYPTEDLOG
	SENDL2TOL1MSG
)

// 0x2a range - calls, halting and gadgets.
const (
	CALL Opcode = iota + 0x2a
	STATICCALL
	RETURN
	REVERT
	KECCAK

	opcodeCount
)

var opCodeToString = [opcodeCount]string{
	ADD:  "ADD",
	SUB:  "SUB",
	MUL:  "MUL",
	DIV:  "DIV",
	EQ:   "EQ",
	LT:   "LT",
	LTE:  "LTE",
	AND:  "AND",
	OR:   "OR",
	XOR:  "XOR",
	NOT:  "NOT",
	SHL:  "SHL",
	SHR:  "SHR",
	CAST: "CAST",

	ADDRESS:           "ADDRESS",
	STORAGEADDRESS:    "STORAGEADDRESS",
	ORIGIN:            "ORIGIN",
	SENDER:            "SENDER",
	PORTAL:            "PORTAL",
	CHAINID:           "CHAINID",
	VERSION:           "VERSION",
	BLOCKNUMBER:       "BLOCKNUMBER",
	TIMESTAMP:         "TIMESTAMP",
	COINBASE:          "COINBASE",
	CONTRACTCALLDEPTH: "CONTRACTCALLDEPTH",
	CALLDATACOPY:      "CALLDATACOPY",

	JUMP:           "JUMP",
	JUMPI:          "JUMPI",
	INTERNALCALL:   "INTERNALCALL",
	INTERNALRETURN: "INTERNALRETURN",
	SET:            "SET",
	MOV:            "MOV",
	CMOV:           "CMOV",

	SLOAD:              "SLOAD",
	SSTORE:             "SSTORE",
	NOTEHASHEXISTS:     "NOTEHASHEXISTS",
	EMITNOTEHASH:       "EMITNOTEHASH",
	NULLIFIEREXISTS:    "NULLIFIEREXISTS",
	EMITNULLIFIER:      "EMITNULLIFIER",
	L1TOL2MSGEXISTS:    "L1TOL2MSGEXISTS",
	EMITUNENCRYPTEDLOG: "EMITUNENCRYPTEDLOG",
	SENDL2TOL1MSG:      "SENDL2TOL1MSG",

	CALL:       "CALL",
	STATICCALL: "STATICCALL",
	RETURN:     "RETURN",
	REVERT:     "REVERT",
	KECCAK:     "KECCAK",
}

func (op Opcode) String() string {
	if op < opcodeCount {
		return opCodeToString[op]
	}
	return fmt.Sprintf("opcode %#x not defined", byte(op))
}

var stringToOp = make(map[string]Opcode, opcodeCount)

func init() {
	for op := Opcode(0); op < opcodeCount; op++ {
		stringToOp[opCodeToString[op]] = op
	}
}

// StringToOp finds the opcode whose name is stored in `str`.
func StringToOp(str string) (Opcode, bool) {
	op, ok := stringToOp[str]
	return op, ok
}

// IsStateMutating reports whether the opcode changes the world state or the
// accrued substate and is therefore forbidden in a static context.
func (op Opcode) IsStateMutating() bool {
	switch op {
	case SSTORE, EMITNOTEHASH, EMITNULLIFIER, EMITUNENCRYPTEDLOG, SENDL2TOL1MSG:
		return true
	}
	return false
}
