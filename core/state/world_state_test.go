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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnb-chain/avm/core/types"
	"github.com/bnb-chain/avm/ethdb/memorydb"
	"github.com/bnb-chain/avm/ethdb/pebble"
)

func TestTxStateDBCommitAndRollback(t *testing.T) {
	ctx := context.Background()
	world, err := NewWorldStateDB(memorydb.New(), 1<<20)
	require.NoError(t, err)
	tx, err := NewTxStateDB(world, world.Snapshot())
	require.NoError(t, err)

	require.NoError(t, tx.StorageWrite(ctx, contractA, types.NewFr(1), types.NewFr(1)))
	require.NoError(t, tx.Rollback(ctx))
	value, err := tx.StorageRead(ctx, contractA, types.NewFr(1))
	require.NoError(t, err)
	assert.True(t, value.IsZero())
	assert.Equal(t, uint64(0), world.Snapshot().Version)

	require.NoError(t, tx.StorageWrite(ctx, contractA, types.NewFr(1), types.NewFr(2)))
	require.NoError(t, tx.Commit(ctx))
	value, err = tx.StorageRead(ctx, contractA, types.NewFr(1))
	require.NoError(t, err)
	assert.Equal(t, types.NewFr(2), value)

	head := world.Snapshot()
	assert.Equal(t, uint64(1), head.Version)
	assert.Equal(t, head, tx.LastCommit())
	assert.False(t, head.Root.IsZero())

	// Empty commits do not create versions.
	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, head, world.Snapshot())
}

func TestTxStateDBSnapshotPinning(t *testing.T) {
	ctx := context.Background()
	world, err := NewWorldStateDB(memorydb.New(), 1<<20)
	require.NoError(t, err)
	genesis := world.Snapshot()

	pinned, err := NewTxStateDB(world, genesis)
	require.NoError(t, err)

	writer, err := NewTxStateDB(world, genesis)
	require.NoError(t, err)
	require.NoError(t, writer.StorageWrite(ctx, contractA, types.NewFr(5), types.NewFr(7)))
	require.NoError(t, writer.Commit(ctx))
	require.NoError(t, writer.StorageWrite(ctx, contractA, types.NewFr(5), types.NewFr(8)))
	require.NoError(t, writer.Commit(ctx))

	value, err := pinned.StorageRead(ctx, contractA, types.NewFr(5))
	require.NoError(t, err)
	assert.True(t, value.IsZero())

	fresh, err := NewTxStateDB(world, world.Snapshot())
	require.NoError(t, err)
	value, err = fresh.StorageRead(ctx, contractA, types.NewFr(5))
	require.NoError(t, err)
	assert.Equal(t, types.NewFr(8), value)

	// Intermediate versions stay readable.
	value, err = world.StorageReadAt(writer.Snapshot(), contractA, types.NewFr(5))
	require.NoError(t, err)
	assert.True(t, value.IsZero())
}

func TestUnknownSnapshot(t *testing.T) {
	world, err := NewWorldStateDB(memorydb.New(), 1<<20)
	require.NoError(t, err)

	_, err = NewTxStateDB(world, types.TreeSnapshot{Version: 3})
	require.ErrorIs(t, err, ErrUnknownSnapshot)

	_, err = NewTxStateDB(world, types.TreeSnapshot{Root: types.NewFr(1), Version: 0})
	require.ErrorIs(t, err, ErrUnknownSnapshot)
}

func TestWorldStateDeterministicRoots(t *testing.T) {
	ctx := context.Background()
	commit := func(writes [][3]uint64) types.TreeSnapshot {
		world, err := NewWorldStateDB(memorydb.New(), 1<<20)
		require.NoError(t, err)
		tx, err := NewTxStateDB(world, world.Snapshot())
		require.NoError(t, err)
		for _, w := range writes {
			require.NoError(t, tx.StorageWrite(ctx, types.AztecAddress(types.NewFr(w[0])), types.NewFr(w[1]), types.NewFr(w[2])))
		}
		require.NoError(t, tx.Commit(ctx))
		return world.Snapshot()
	}
	a := commit([][3]uint64{{1, 1, 1}, {2, 2, 2}})
	b := commit([][3]uint64{{2, 2, 2}, {1, 1, 1}})
	c := commit([][3]uint64{{1, 1, 1}, {2, 2, 3}})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a.Root, c.Root)
}

func TestWorldStateReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db, err := pebble.New(dir, 16, 16, "", false)
	require.NoError(t, err)
	world, err := NewWorldStateDB(db, 1<<20)
	require.NoError(t, err)
	genesis := world.Snapshot()
	tx, err := NewTxStateDB(world, genesis)
	require.NoError(t, err)
	require.NoError(t, tx.StorageWrite(ctx, contractA, types.NewFr(5), types.NewFr(7)))
	require.NoError(t, tx.Commit(ctx))
	head := world.Snapshot()
	require.NoError(t, db.Close())

	db, err = pebble.New(dir, 16, 16, "", false)
	require.NoError(t, err)
	defer db.Close()
	world, err = NewWorldStateDB(db, 1<<20)
	require.NoError(t, err)
	require.Equal(t, head, world.Snapshot())

	value, err := world.StorageReadAt(head, contractA, types.NewFr(5))
	require.NoError(t, err)
	require.Equal(t, types.NewFr(7), value)

	// History from before the reopen is gone.
	_, err = world.StorageReadAt(genesis, contractA, types.NewFr(5))
	require.ErrorIs(t, err, ErrUnknownSnapshot)
}
