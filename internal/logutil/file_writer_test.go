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

package logutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "avm.log")
	w, err := NewFileWriter(path, 16, 0)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	require.Error(t, w.Start())

	w.Write([]byte("hello\n"))
	w.Write([]byte("world\n"))
	require.NoError(t, w.Close())

	// The path is a symlink to the hourly file.
	target, err := os.Readlink(path)
	require.NoError(t, err)
	require.Contains(t, filepath.Base(target), "avm.log.")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello\nworld\n", string(content))
}

func TestFileWriterDropsWhenFull(t *testing.T) {
	w, err := NewFileWriter(filepath.Join(t.TempDir(), "avm.log"), 1, 0)
	require.NoError(t, err)

	// Not started: nothing drains the buffer.
	n, err := w.Write([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, 1, n)
	w.Write([]byte("b"))
	require.Equal(t, uint64(1), w.Dropped())
}

func TestNextRotationHour(t *testing.T) {
	at := func(hour, minute int) time.Time { return time.Date(2024, 3, 1, hour, minute, 0, 0, time.UTC) }
	require.Equal(t, 11, nextRotationHour(at(9, 12), 2))
	require.Equal(t, 0, nextRotationHour(at(23, 59), 1))
}
