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
	"math"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/holiman/uint256"

	"github.com/bnb-chain/avm/core/types"
)

// TypeTag is the type carried by every word of tagged memory.
type TypeTag uint8

const (
	TagUninitialized TypeTag = iota
	TagU8
	TagU16
	TagU32
	TagU64
	TagU128
	TagField
	tagInvalid
)

var tagNames = [...]string{
	TagUninitialized: "UNINITIALIZED",
	TagU8:            "U8",
	TagU16:           "U16",
	TagU32:           "U32",
	TagU64:           "U64",
	TagU128:          "U128",
	TagField:         "FIELD",
}

func (t TypeTag) String() string {
	if t < tagInvalid {
		return tagNames[t]
	}
	return fmt.Sprintf("INVALID(%d)", uint8(t))
}

// Valid reports whether t can be the tag of an instruction operand.
func (t TypeTag) Valid() bool { return t >= TagU8 && t <= TagField }

// IsInteger reports whether t is one of the unsigned integer tags.
func (t TypeTag) IsInteger() bool { return t >= TagU8 && t <= TagU128 }

// Bits returns the width of an integer tag.
func (t TypeTag) Bits() uint {
	switch t {
	case TagU8:
		return 8
	case TagU16:
		return 16
	case TagU32:
		return 32
	case TagU64:
		return 64
	case TagU128:
		return 128
	}
	return 0
}

// masks[t] is 2^bits(t)-1 for integer tags.
var masks [tagInvalid]uint256.Int

func init() {
	for t := TagU8; t <= TagU128; t++ {
		one := uint256.NewInt(1)
		masks[t].Lsh(one, t.Bits())
		masks[t].SubUint64(&masks[t], 1)
	}
}

// MemoryValue is a word of tagged memory. Field words are reduced modulo the
// BN254 prime, integer words are kept below 2^bits of their tag.
type MemoryValue struct {
	tag   TypeTag
	field fr.Element
	num   uint256.Int
}

// NewField returns a FIELD word.
func NewField(f types.Fr) MemoryValue {
	return MemoryValue{tag: TagField, field: f.Element()}
}

// NewFieldUint64 returns a FIELD word holding v.
func NewFieldUint64(v uint64) MemoryValue {
	var m MemoryValue
	m.tag = TagField
	m.field.SetUint64(v)
	return m
}

// NewUint returns an integer word, truncating v to the tag's width.
func NewUint(tag TypeTag, v uint64) MemoryValue {
	return NewUintFrom(tag, uint256.NewInt(v))
}

// NewUint8 is shorthand for NewUint(TagU8, v).
func NewUint8(v uint8) MemoryValue { return NewUint(TagU8, uint64(v)) }

// NewUint32 is shorthand for NewUint(TagU32, v).
func NewUint32(v uint32) MemoryValue { return NewUint(TagU32, uint64(v)) }

// NewUintFrom returns an integer word, truncating v to the tag's width.
func NewUintFrom(tag TypeTag, v *uint256.Int) MemoryValue {
	m := MemoryValue{tag: tag}
	m.num.And(v, &masks[tag])
	return m
}

// NewValue builds a word of any valid tag from an integer. Field values are
// reduced modulo the prime.
func NewValue(tag TypeTag, v *uint256.Int) (MemoryValue, error) {
	switch {
	case tag == TagField:
		b := v.Bytes32()
		return NewField(types.BytesToFr(b[:])), nil
	case tag.IsInteger():
		return NewUintFrom(tag, v), nil
	}
	return MemoryValue{}, fmt.Errorf("%w: %s", ErrInvalidTag, tag)
}

// Tag returns the type tag of the word.
func (m MemoryValue) Tag() TypeTag { return m.tag }

// ToFr returns the value as a field element.
func (m MemoryValue) ToFr() types.Fr {
	if m.tag == TagField {
		return types.FrFromElement(&m.field)
	}
	b := m.num.Bytes32()
	return types.Fr(b)
}

// Uint256 returns the value as an integer. Field words are returned as their
// canonical representative.
func (m MemoryValue) Uint256() *uint256.Int {
	if m.tag == TagField {
		b := m.field.Bytes()
		return new(uint256.Int).SetBytes32(b[:])
	}
	return new(uint256.Int).Set(&m.num)
}

// Uint64 returns the low 64 bits of the value.
func (m MemoryValue) Uint64() uint64 { return m.Uint256().Uint64() }

// Uint32 returns the value as an offset, saturating at MaxUint32.
func (m MemoryValue) Uint32() uint32 {
	v := m.Uint256()
	if !v.IsUint64() || v.Uint64() > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v.Uint64())
}

// IsZero reports whether the value is zero, regardless of tag.
func (m MemoryValue) IsZero() bool {
	if m.tag == TagField {
		return m.field.IsZero()
	}
	return m.num.IsZero()
}

func (m MemoryValue) String() string {
	return fmt.Sprintf("%s(%s)", m.tag, m.Uint256().Dec())
}

// Add returns m+o. Both operands must carry the same tag.
func (m MemoryValue) Add(o MemoryValue) MemoryValue {
	r := MemoryValue{tag: m.tag}
	if m.tag == TagField {
		r.field.Add(&m.field, &o.field)
		return r
	}
	r.num.Add(&m.num, &o.num)
	r.num.And(&r.num, &masks[m.tag])
	return r
}

// Sub returns m-o, wrapping within the tag's domain.
func (m MemoryValue) Sub(o MemoryValue) MemoryValue {
	r := MemoryValue{tag: m.tag}
	if m.tag == TagField {
		r.field.Sub(&m.field, &o.field)
		return r
	}
	r.num.Sub(&m.num, &o.num)
	r.num.And(&r.num, &masks[m.tag])
	return r
}

// Mul returns m*o, wrapping within the tag's domain.
func (m MemoryValue) Mul(o MemoryValue) MemoryValue {
	r := MemoryValue{tag: m.tag}
	if m.tag == TagField {
		r.field.Mul(&m.field, &o.field)
		return r
	}
	r.num.Mul(&m.num, &o.num)
	r.num.And(&r.num, &masks[m.tag])
	return r
}

// Div returns m/o. Field division multiplies by the modular inverse, integer
// division truncates.
func (m MemoryValue) Div(o MemoryValue) (MemoryValue, error) {
	if o.IsZero() {
		return MemoryValue{}, ErrDivisionByZero
	}
	r := MemoryValue{tag: m.tag}
	if m.tag == TagField {
		var inv fr.Element
		inv.Inverse(&o.field)
		r.field.Mul(&m.field, &inv)
		return r, nil
	}
	r.num.Div(&m.num, &o.num)
	return r, nil
}

// Equal compares the values of two words of the same tag.
func (m MemoryValue) Equal(o MemoryValue) bool {
	if m.tag == TagField {
		return m.field.Equal(&o.field)
	}
	return m.num.Eq(&o.num)
}

// Lt compares the integer representatives of two words.
func (m MemoryValue) Lt(o MemoryValue) bool {
	if m.tag == TagField {
		return m.field.Cmp(&o.field) < 0
	}
	return m.num.Lt(&o.num)
}

// Bitwise operations are only defined on integer tags.

func (m MemoryValue) And(o MemoryValue) MemoryValue {
	r := MemoryValue{tag: m.tag}
	r.num.And(&m.num, &o.num)
	return r
}

func (m MemoryValue) Or(o MemoryValue) MemoryValue {
	r := MemoryValue{tag: m.tag}
	r.num.Or(&m.num, &o.num)
	return r
}

func (m MemoryValue) Xor(o MemoryValue) MemoryValue {
	r := MemoryValue{tag: m.tag}
	r.num.Xor(&m.num, &o.num)
	return r
}

func (m MemoryValue) Not() MemoryValue {
	r := MemoryValue{tag: m.tag}
	r.num.Not(&m.num)
	r.num.And(&r.num, &masks[m.tag])
	return r
}

func (m MemoryValue) Shl(o MemoryValue) MemoryValue {
	r := MemoryValue{tag: m.tag}
	if !o.num.IsUint64() || o.num.Uint64() >= uint64(m.tag.Bits()) {
		return r
	}
	r.num.Lsh(&m.num, uint(o.num.Uint64()))
	r.num.And(&r.num, &masks[m.tag])
	return r
}

func (m MemoryValue) Shr(o MemoryValue) MemoryValue {
	r := MemoryValue{tag: m.tag}
	if !o.num.IsUint64() || o.num.Uint64() >= uint64(m.tag.Bits()) {
		return r
	}
	r.num.Rsh(&m.num, uint(o.num.Uint64()))
	return r
}

// Cast converts the word to another tag. Narrowing truncates to the low
// bits; a cast to FIELD reduces modulo the prime.
func (m MemoryValue) Cast(tag TypeTag) (MemoryValue, error) {
	return NewValue(tag, m.Uint256())
}

// TaggedMemory is the flat, word addressed memory of a frame. Words never
// written read as UNINITIALIZED and fail every tag check.
type TaggedMemory struct {
	cells map[uint32]MemoryValue
}

// NewTaggedMemory returns an empty memory.
func NewTaggedMemory() *TaggedMemory {
	return &TaggedMemory{cells: make(map[uint32]MemoryValue)}
}

// Len returns the number of initialized words.
func (m *TaggedMemory) Len() int { return len(m.cells) }

// Get returns the word at offset.
func (m *TaggedMemory) Get(offset uint32) MemoryValue {
	return m.cells[offset]
}

// Tag returns the tag of the word at offset.
func (m *TaggedMemory) Tag(offset uint32) TypeTag {
	return m.cells[offset].tag
}

// GetAs returns the word at offset after checking its tag.
func (m *TaggedMemory) GetAs(offset uint32, tag TypeTag) (MemoryValue, error) {
	v := m.cells[offset]
	if v.tag != tag {
		return MemoryValue{}, &TagMismatchError{Offset: offset, Got: v.tag, Expected: tag}
	}
	return v, nil
}

// Set writes a word.
func (m *TaggedMemory) Set(offset uint32, v MemoryValue) {
	m.cells[offset] = v
}

// GetSlice returns size consecutive words starting at offset.
func (m *TaggedMemory) GetSlice(offset, size uint32) ([]MemoryValue, error) {
	if uint64(offset)+uint64(size) > math.MaxUint32+1 {
		return nil, ErrMemoryOutOfRange
	}
	out := make([]MemoryValue, size)
	for i := uint32(0); i < size; i++ {
		out[i] = m.cells[offset+i]
	}
	return out, nil
}

// GetSliceAs is GetSlice with a tag check on every word.
func (m *TaggedMemory) GetSliceAs(offset, size uint32, tag TypeTag) ([]MemoryValue, error) {
	if err := m.CheckTagsRange(tag, offset, size); err != nil {
		return nil, err
	}
	return m.GetSlice(offset, size)
}

// SetSlice writes consecutive words starting at offset.
func (m *TaggedMemory) SetSlice(offset uint32, vs []MemoryValue) error {
	if uint64(offset)+uint64(len(vs)) > math.MaxUint32+1 {
		return ErrMemoryOutOfRange
	}
	for i, v := range vs {
		m.cells[offset+uint32(i)] = v
	}
	return nil
}

// CheckTag verifies that every offset carries tag.
func (m *TaggedMemory) CheckTag(tag TypeTag, offsets ...uint32) error {
	for _, off := range offsets {
		if got := m.cells[off].tag; got != tag {
			return &TagMismatchError{Offset: off, Got: got, Expected: tag}
		}
	}
	return nil
}

// CheckTagsRange verifies the tags of size words starting at start.
func (m *TaggedMemory) CheckTagsRange(tag TypeTag, start, size uint32) error {
	if uint64(start)+uint64(size) > math.MaxUint32+1 {
		return ErrMemoryOutOfRange
	}
	for i := uint32(0); i < size; i++ {
		if got := m.cells[start+i].tag; got != tag {
			return &TagMismatchError{Offset: start + i, Got: got, Expected: tag}
		}
	}
	return nil
}
