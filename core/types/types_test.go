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
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrReduction(t *testing.T) {
	modMinusOne := new(big.Int).Sub(FrModulus, big.NewInt(1))
	f := BigToFr(modMinusOne)
	assert.Equal(t, modMinusOne, f.Big())
	assert.True(t, f.Add(NewFr(1)).IsZero())
	assert.True(t, BytesToFr(FrModulus.Bytes()).IsZero())
	assert.Equal(t, uint64(42), NewFr(42).Uint64())
}

func TestFrText(t *testing.T) {
	f := NewFr(0x1234)
	enc, err := json.Marshal(f)
	require.NoError(t, err)

	var dec Fr
	require.NoError(t, json.Unmarshal(enc, &dec))
	assert.Equal(t, f, dec)

	var mod [32]byte
	FrModulus.FillBytes(mod[:])
	err = dec.UnmarshalText([]byte(Fr(mod).Hex()))
	assert.Error(t, err)
}

func TestSelectorConversions(t *testing.T) {
	s := FunctionSelectorFromUint32(0xdeadbeef)
	assert.Equal(t, uint32(0xdeadbeef), s.Uint32())
	assert.Equal(t, s, FunctionSelectorFromField(s.ToField()))
	assert.Equal(t, "0xdeadbeef", s.String())
}

func TestCallRequestHashMatchesStackItem(t *testing.T) {
	req := &PublicCallRequest{
		ContractAddress: AztecAddress(NewFr(7)),
		FunctionData:    FunctionData{Selector: FunctionSelectorFromUint32(1)},
		CallContext: CallContext{
			MsgSender:              AztecAddress(NewFr(3)),
			StorageContractAddress: AztecAddress(NewFr(7)),
			FunctionSelector:       FunctionSelectorFromUint32(1),
		},
		Args: []Fr{NewFr(1), NewFr(2)},
	}
	item := req.ToPublicCallStackItem()
	item.PublicInputs.ReturnValues = []Fr{NewFr(9)}
	assert.Equal(t, req.ToCallRequest().Hash, item.Hash())

	other := *req
	other.Args = []Fr{NewFr(2), NewFr(1)}
	assert.NotEqual(t, req.ToCallRequest().Hash, other.ToCallRequest().Hash)
}

func TestKernelInputsCopy(t *testing.T) {
	orig := &PublicKernelCircuitPublicInputs{}
	orig.End.PublicDataReads = []PublicDataRead{{LeafSlot: NewFr(1)}}
	cpy := orig.Copy()
	cpy.End.PublicDataReads[0].Value = NewFr(5)
	cpy.Partition(false).NewNoteHashes = append(cpy.Partition(false).NewNoteHashes, SideEffect{Value: NewFr(1)})

	assert.True(t, orig.End.PublicDataReads[0].Value.IsZero())
	assert.Empty(t, orig.EndNonRevertibleData.NewNoteHashes)
	assert.Len(t, cpy.EndNonRevertibleData.NewNoteHashes, 1)
}

func TestTxHashStable(t *testing.T) {
	tx := &Tx{Data: &PublicKernelCircuitPublicInputs{NeedsSetup: true}}
	h := tx.Hash()
	assert.NotEqual(t, h, (&Tx{Data: &PublicKernelCircuitPublicInputs{}}).Hash())
	tx.Data.NeedsSetup = false
	assert.Equal(t, h, tx.Hash(), "hash is cached")
}
