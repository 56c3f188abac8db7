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

package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bnb-chain/avm/core/types"
	"github.com/bnb-chain/avm/ethdb/memorydb"
)

func TestContractStore(t *testing.T) {
	ctx := context.Background()
	store := NewContractStore(memorydb.New(), 0)

	artifact := &ContractArtifact{
		Address: contractA,
		Portal:  types.EthAddress{0xde, 0xad},
		Functions: []ContractFunctionArtifact{
			{Name: "increment", Selector: types.FunctionSelectorFromUint32(1), Bytecode: []byte{0x01, 0x02}},
			{Name: "_check", Selector: types.FunctionSelectorFromUint32(2), IsInternal: true, Bytecode: []byte{0x03}},
		},
	}
	require.NoError(t, store.AddContract(artifact))

	code, err := store.GetBytecode(ctx, contractA, types.FunctionSelectorFromUint32(1))
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02}, code)

	internal, err := store.GetIsInternal(ctx, contractA, types.FunctionSelectorFromUint32(2))
	require.NoError(t, err)
	require.True(t, internal)

	code, err = store.GetBytecode(ctx, contractB, types.FunctionSelectorFromUint32(1))
	require.NoError(t, err)
	require.Nil(t, code)

	portal, err := store.GetPortalContractAddress(ctx, contractA)
	require.NoError(t, err)
	require.Equal(t, artifact.Portal, portal)

	portal, err = store.GetPortalContractAddress(ctx, contractB)
	require.NoError(t, err)
	require.Equal(t, types.EthAddress{}, portal)

	// Redeploying replaces the cached code.
	artifact.Functions = artifact.Functions[:1]
	artifact.Functions[0].Bytecode = []byte{0xff}
	require.NoError(t, store.AddContract(artifact))
	code, err = store.GetBytecode(ctx, contractA, types.FunctionSelectorFromUint32(1))
	require.NoError(t, err)
	require.Equal(t, []byte{0xff}, code)
}

func TestCommitmentStoreNullifiers(t *testing.T) {
	ctx := context.Background()
	store := NewCommitmentStore(memorydb.New())

	require.NoError(t, store.AddNullifiers([]types.Fr{types.NewFr(1), types.NewFr(2)}))
	err := store.AddNullifiers([]types.Fr{types.NewFr(3), types.NewFr(2)})
	require.ErrorIs(t, err, ErrDuplicateNullifier)
	err = store.AddNullifiers([]types.Fr{types.NewFr(4), types.NewFr(4)})
	require.ErrorIs(t, err, ErrDuplicateNullifier)

	// Failed appends write nothing.
	_, found, err := store.GetNullifierIndex(ctx, types.NewFr(3))
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.AddNullifiers([]types.Fr{types.NewFr(3)}))
	index, found, err := store.GetNullifierIndex(ctx, types.NewFr(3))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(2), index)

	witness, err := store.GetNullifierMembershipWitnessAtLatestBlock(ctx, types.NewFr(2))
	require.NoError(t, err)
	require.Equal(t, uint64(1), witness.Index)

	witness, err = store.GetNullifierMembershipWitnessAtLatestBlock(ctx, types.NewFr(9))
	require.NoError(t, err)
	require.Nil(t, witness)
}
