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

// AppendOnlyTreeSnapshot is the state of an append only tree.
type AppendOnlyTreeSnapshot struct {
	Root                   Fr     `json:"root"`
	NextAvailableLeafIndex uint64 `json:"nextAvailableLeafIndex"`
}

// TreeSnapshot pins a version of the public data tree. Reads of a transaction
// are served from the version named here.
type TreeSnapshot struct {
	Root    Fr     `json:"root"`
	Version uint64 `json:"version"`
}

type PartialStateReference struct {
	NoteHashTree   AppendOnlyTreeSnapshot `json:"noteHashTree"`
	NullifierTree  AppendOnlyTreeSnapshot `json:"nullifierTree"`
	PublicDataTree TreeSnapshot           `json:"publicDataTree"`
}

type StateReference struct {
	L1ToL2MessageTree AppendOnlyTreeSnapshot `json:"l1ToL2MessageTree"`
	Partial           PartialStateReference  `json:"partial"`
}

// GlobalVariables are the block-level values visible to public functions.
type GlobalVariables struct {
	ChainID      Fr           `json:"chainId"`
	Version      Fr           `json:"version"`
	BlockNumber  uint64       `json:"blockNumber"`
	Timestamp    uint64       `json:"timestamp"`
	Coinbase     EthAddress   `json:"coinbase"`
	FeeRecipient AztecAddress `json:"feeRecipient"`
}

// Header is a block header of the rollup.
type Header struct {
	LastArchive     AppendOnlyTreeSnapshot `json:"lastArchive"`
	State           StateReference         `json:"state"`
	GlobalVariables GlobalVariables        `json:"globalVariables"`
}
