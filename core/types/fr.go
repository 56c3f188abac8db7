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
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// FrLength is the expected length of a serialized field element.
const FrLength = fr.Bytes

// FrModulus is the order of the BN254 scalar field.
var FrModulus = fr.Modulus()

// Fr is an element of the BN254 scalar field in canonical big-endian form.
// The zero value is the additive identity. Being an array it can be used as
// a map key and compared with ==.
type Fr [FrLength]byte

// NewFr returns the field element representing v.
func NewFr(v uint64) Fr {
	var e fr.Element
	e.SetUint64(v)
	return FrFromElement(&e)
}

// FrFromElement converts a gnark field element into its canonical encoding.
func FrFromElement(e *fr.Element) Fr {
	return Fr(e.Bytes())
}

// BytesToFr interprets b as a big-endian integer and reduces it modulo the
// field order. Inputs longer than 32 bytes are reduced as a whole.
func BytesToFr(b []byte) Fr {
	var e fr.Element
	e.SetBytes(b)
	return FrFromElement(&e)
}

// BigToFr reduces b modulo the field order.
func BigToFr(b *big.Int) Fr {
	var e fr.Element
	e.SetBigInt(b)
	return FrFromElement(&e)
}

// HexToFr parses a hex string, with or without 0x prefix, into a field element.
func HexToFr(s string) Fr { return BytesToFr(common.FromHex(s)) }

// Element returns the gnark representation of the field element.
func (f Fr) Element() fr.Element {
	var e fr.Element
	e.SetBytes(f[:])
	return e
}

// Big returns the element as an integer in [0, FrModulus).
func (f Fr) Big() *big.Int { return new(big.Int).SetBytes(f[:]) }

// Uint64 returns the low 64 bits of the element.
func (f Fr) Uint64() uint64 { return binary.BigEndian.Uint64(f[FrLength-8:]) }

// IsZero reports whether f is the additive identity.
func (f Fr) IsZero() bool { return f == Fr{} }

// Bytes returns a copy of the big-endian encoding.
func (f Fr) Bytes() []byte { return common.CopyBytes(f[:]) }

// Hex returns the 0x-prefixed hex encoding.
func (f Fr) Hex() string { return hexutil.Encode(f[:]) }

// String implements fmt.Stringer.
func (f Fr) String() string { return f.Hex() }

// TerminalString implements log.TerminalStringer, formatting a string for
// console output during logging.
func (f Fr) TerminalString() string {
	return fmt.Sprintf("%x..%x", f[:3], f[29:])
}

// MarshalText implements encoding.TextMarshaler.
func (f Fr) MarshalText() ([]byte, error) {
	return hexutil.Bytes(f[:]).MarshalText()
}

// UnmarshalText parses a 32 byte hex string and rejects non-canonical values.
func (f *Fr) UnmarshalText(input []byte) error {
	var raw [FrLength]byte
	if err := hexutil.UnmarshalFixedText("Fr", input, raw[:]); err != nil {
		return err
	}
	if new(big.Int).SetBytes(raw[:]).Cmp(FrModulus) >= 0 {
		return fmt.Errorf("field element %x exceeds modulus", raw)
	}
	*f = raw
	return nil
}

// Add returns f + g mod p.
func (f Fr) Add(g Fr) Fr {
	a, b := f.Element(), g.Element()
	a.Add(&a, &b)
	return FrFromElement(&a)
}

// HashFields hashes the inputs with MiMC, prefixed by a domain separator.
// Inputs are canonical by construction so the hasher never rejects a block.
func HashFields(generator uint32, inputs ...Fr) Fr {
	h := mimc.NewMiMC()
	sep := NewFr(uint64(generator))
	h.Write(sep[:])
	for i := range inputs {
		h.Write(inputs[i][:])
	}
	return BytesToFr(h.Sum(nil))
}

// BoolToFr encodes a boolean as 0 or 1.
func BoolToFr(b bool) Fr {
	if b {
		return NewFr(1)
	}
	return Fr{}
}
