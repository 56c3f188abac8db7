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

package params

const (
	// MaxCallStackDepth is the maximum depth of nested public calls, the
	// top-level enqueued call included.
	MaxCallStackDepth = 64

	// MaxInternalCallStackDepth bounds the INTERNALCALL return stack of a frame.
	MaxInternalCallStackDepth = 1024

	// MaxReturnValuesLength is the number of words a call may return or
	// revert with.
	MaxReturnValuesLength = 256

	// Per call limits of the public circuit.
	MaxNewNoteHashesPerCall            = 16
	MaxNewNullifiersPerCall            = 16
	MaxNewL2ToL1MsgsPerCall            = 2
	MaxPublicCallStackLengthPerCall    = 4
	MaxPublicDataReadsPerCall          = 16
	MaxPublicDataUpdateRequestsPerCall = 16

	// Per transaction limits of the public kernel accumulators. The revertible
	// and non-revertible partitions are bounded independently.
	MaxNewNoteHashesPerTx            = 64
	MaxNewNullifiersPerTx            = 64
	MaxNewL2ToL1MsgsPerTx            = 4
	MaxPublicCallStackLengthPerTx    = 32
	MaxPublicDataReadsPerTx          = 32
	MaxPublicDataUpdateRequestsPerTx = 32
)

// Domain separators for the MiMC hashes computed by the kernel and the
// state journal.
const (
	GeneratorIndexPublicLeafIndex = 23
	GeneratorIndexOuterNullifier  = 7
	GeneratorIndexOuterNoteHash   = 3
	GeneratorIndexCallStackItem   = 9
	GeneratorIndexFunctionArgs    = 26
	GeneratorIndexWorldStateRoot  = 41
)
