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
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnb-chain/avm/core/types"
)

func modulusMinus(n int64) types.Fr {
	return types.BigToFr(new(big.Int).Sub(fr.Modulus(), big.NewInt(n)))
}

func TestFieldArithmeticWraps(t *testing.T) {
	one := NewFieldUint64(1)
	top := NewField(modulusMinus(1))

	assert.True(t, one.Add(top).IsZero())
	assert.Equal(t, top.ToFr(), NewFieldUint64(0).Sub(one).ToFr())
	// (p-1)^2 = 1 mod p
	assert.Equal(t, one.ToFr(), top.Mul(top).ToFr())
}

func TestFieldDivision(t *testing.T) {
	q, err := NewFieldUint64(10).Div(NewFieldUint64(5))
	require.NoError(t, err)
	assert.Equal(t, types.NewFr(2), q.ToFr())

	// Division is multiplication by the inverse, not floor division.
	q, err = NewFieldUint64(7).Div(NewFieldUint64(3))
	require.NoError(t, err)
	assert.Equal(t, types.NewFr(7), q.Mul(NewFieldUint64(3)).ToFr())

	_, err = NewFieldUint64(7).Div(NewFieldUint64(0))
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestIntegerArithmeticWraps(t *testing.T) {
	tests := []struct {
		name string
		got  MemoryValue
		want uint64
	}{
		{"u8 add", NewUint8(255).Add(NewUint8(1)), 0},
		{"u8 sub", NewUint8(0).Sub(NewUint8(1)), 255},
		{"u16 mul", NewUint(TagU16, 0x100).Mul(NewUint(TagU16, 0x100)), 0},
		{"u32 add", NewUint32(0xffffffff).Add(NewUint32(2)), 1},
		{"u64 not", NewUint(TagU64, 0).Not(), 0xffffffffffffffff},
		{"u8 shl", NewUint8(0x81).Shl(NewUint8(1)), 0x02},
		{"u8 shl past width", NewUint8(1).Shl(NewUint8(8)), 0},
		{"u16 shr", NewUint(TagU16, 0x8000).Shr(NewUint(TagU16, 15)), 1},
		{"u32 xor", NewUint32(0xf0).Xor(NewUint32(0xff)), 0x0f},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got.Uint64())
		})
	}
}

func TestU128Wraps(t *testing.T) {
	max := new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))
	v := NewUintFrom(TagU128, max)
	assert.True(t, v.Add(NewUint(TagU128, 1)).IsZero())
}

func TestIntegerDivisionTruncates(t *testing.T) {
	q, err := NewUint32(7).Div(NewUint32(2))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), q.Uint64())

	_, err = NewUint32(7).Div(NewUint32(0))
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestCast(t *testing.T) {
	v, err := NewUint(TagU64, 0x1234).Cast(TagU8)
	require.NoError(t, err)
	assert.Equal(t, TagU8, v.Tag())
	assert.Equal(t, uint64(0x34), v.Uint64())

	v, err = NewField(modulusMinus(1)).Cast(TagU32)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xf0000000), v.Uint64()) // low bits of p-1

	v, err = NewUint8(9).Cast(TagField)
	require.NoError(t, err)
	assert.Equal(t, NewFieldUint64(9), v)

	_, err = NewUint8(9).Cast(TagUninitialized)
	assert.ErrorIs(t, err, ErrInvalidTag)
}

func TestTaggedMemoryTagChecks(t *testing.T) {
	mem := NewTaggedMemory()
	mem.Set(3, NewUint32(7))

	v, err := mem.GetAs(3, TagU32)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), v.Uint32())

	_, err = mem.GetAs(3, TagField)
	require.ErrorIs(t, err, ErrTagMismatch)
	var mismatch *TagMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, uint32(3), mismatch.Offset)
	assert.Equal(t, TagU32, mismatch.Got)
	assert.Equal(t, TagField, mismatch.Expected)

	// Uninitialized words fail every check.
	assert.ErrorIs(t, mem.CheckTag(TagU8, 4), ErrTagMismatch)
	assert.Equal(t, TagUninitialized, mem.Tag(4))

	require.NoError(t, mem.SetSlice(10, []MemoryValue{NewUint8(1), NewUint8(2)}))
	words, err := mem.GetSliceAs(10, 2, TagU8)
	require.NoError(t, err)
	assert.Len(t, words, 2)
	_, err = mem.GetSliceAs(10, 3, TagU8)
	assert.ErrorIs(t, err, ErrTagMismatch)

	_, err = mem.GetSlice(0xffffffff, 2)
	assert.ErrorIs(t, err, ErrMemoryOutOfRange)
}

func TestNewValue(t *testing.T) {
	v, err := NewValue(TagU8, uint256.NewInt(0x1ff))
	require.NoError(t, err)
	assert.Equal(t, uint64(0xff), v.Uint64())

	// Field values reduce modulo the prime.
	p, _ := uint256.FromBig(fr.Modulus())
	v, err = NewValue(TagField, p)
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	_, err = NewValue(tagInvalid, uint256.NewInt(1))
	assert.ErrorIs(t, err, ErrInvalidTag)
}
