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

package types

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// AztecAddress identifies an L2 contract. It is a field element.
type AztecAddress Fr

// EthAddress is an L1 address, used for portal contracts and message
// recipients.
type EthAddress = common.Address

// HexToAztecAddress parses a hex string into an address.
func HexToAztecAddress(s string) AztecAddress { return AztecAddress(HexToFr(s)) }

// ToField returns the address as a field element.
func (a AztecAddress) ToField() Fr { return Fr(a) }

// IsZero reports whether the address is the zero address.
func (a AztecAddress) IsZero() bool { return Fr(a).IsZero() }

// Hex returns the 0x-prefixed hex encoding.
func (a AztecAddress) Hex() string { return Fr(a).Hex() }

// String implements fmt.Stringer.
func (a AztecAddress) String() string { return a.Hex() }

// TerminalString implements log.TerminalStringer.
func (a AztecAddress) TerminalString() string { return Fr(a).TerminalString() }

// MarshalText implements encoding.TextMarshaler.
func (a AztecAddress) MarshalText() ([]byte, error) { return Fr(a).MarshalText() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AztecAddress) UnmarshalText(input []byte) error {
	return (*Fr)(a).UnmarshalText(input)
}

// EthAddressToField left pads an L1 address into a field element.
func EthAddressToField(a EthAddress) Fr { return BytesToFr(a[:]) }

// FieldToEthAddress keeps the low 20 bytes of the element.
func FieldToEthAddress(f Fr) EthAddress { return common.BytesToAddress(f[:]) }

// FunctionSelectorLength is the size of a function selector in bytes.
const FunctionSelectorLength = 4

// FunctionSelector identifies a function within a contract.
type FunctionSelector [FunctionSelectorLength]byte

// FunctionSelectorFromUint32 builds a selector from its integer form.
func FunctionSelectorFromUint32(v uint32) FunctionSelector {
	var s FunctionSelector
	binary.BigEndian.PutUint32(s[:], v)
	return s
}

// FunctionSelectorFromField truncates a field element to its low 4 bytes.
func FunctionSelectorFromField(f Fr) FunctionSelector {
	var s FunctionSelector
	copy(s[:], f[FrLength-FunctionSelectorLength:])
	return s
}

// Uint32 returns the integer form of the selector.
func (s FunctionSelector) Uint32() uint32 { return binary.BigEndian.Uint32(s[:]) }

// ToField returns the selector as a field element.
func (s FunctionSelector) ToField() Fr { return NewFr(uint64(s.Uint32())) }

// String implements fmt.Stringer.
func (s FunctionSelector) String() string { return hexutil.Encode(s[:]) }

// MarshalText implements encoding.TextMarshaler.
func (s FunctionSelector) MarshalText() ([]byte, error) {
	return hexutil.Bytes(s[:]).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *FunctionSelector) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("FunctionSelector", input, s[:])
}

// ContractFunction names a function of a deployed contract, used as a cache
// and database key.
type ContractFunction struct {
	Address  AztecAddress
	Selector FunctionSelector
}

func (c ContractFunction) String() string {
	return fmt.Sprintf("%s:%s", c.Address.Hex(), c.Selector)
}
