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
	"encoding/binary"

	"github.com/bnb-chain/avm/core/types"
)

// The fields below define the low level database schema prefixing.
var (
	// headVersionKey tracks the latest committed public data tree version.
	headVersionKey = []byte("LastPublicDataVersion")

	publicDataPrefix  = []byte("s") // publicDataPrefix + contract + slot -> value
	publicRootPrefix  = []byte("r") // publicRootPrefix + version (uint64 big endian) -> root
	functionPrefix    = []byte("c") // functionPrefix + contract + selector -> internal flag + bytecode
	portalPrefix      = []byte("p") // portalPrefix + contract -> portal address
	noteHashPrefix    = []byte("n") // noteHashPrefix + note hash -> leaf index
	nullifierPrefix   = []byte("N") // nullifierPrefix + siloed nullifier -> leaf index
	l1ToL2MsgPrefix   = []byte("m") // l1ToL2MsgPrefix + entry key -> RLP(message, index)
	treeSizePrefix    = []byte("t") // treeSizePrefix + tree name -> next leaf index
	noteHashTreeName  = []byte("notehash")
	nullifierTreeName = []byte("nullifier")
	l1ToL2MsgTreeName = []byte("l1tol2")
)

const (
	storageKeyLength  = 2 * types.FrLength
	uint64EncodingLen = 8
)

// storageKey is a contract address followed by a slot.
type storageKey [storageKeyLength]byte

func newStorageKey(contract types.AztecAddress, slot types.Fr) storageKey {
	var key storageKey
	copy(key[:types.FrLength], contract[:])
	copy(key[types.FrLength:], slot[:])
	return key
}

func (k storageKey) contract() types.AztecAddress { return types.AztecAddress(k[:types.FrLength]) }
func (k storageKey) slot() types.Fr               { return types.Fr(k[types.FrLength:]) }

// encodeUint64 encodes a version or leaf index as big endian.
func encodeUint64(version uint64) []byte {
	enc := make([]byte, uint64EncodingLen)
	binary.BigEndian.PutUint64(enc, version)
	return enc
}

func publicDataKey(key storageKey) []byte {
	return append(append([]byte{}, publicDataPrefix...), key[:]...)
}

func publicRootKey(version uint64) []byte {
	return append(append([]byte{}, publicRootPrefix...), encodeUint64(version)...)
}

func functionKey(contract types.AztecAddress, selector types.FunctionSelector) []byte {
	key := append(append([]byte{}, functionPrefix...), contract[:]...)
	return append(key, selector[:]...)
}

func portalKey(contract types.AztecAddress) []byte {
	return append(append([]byte{}, portalPrefix...), contract[:]...)
}

func noteHashKey(noteHash types.Fr) []byte {
	return append(append([]byte{}, noteHashPrefix...), noteHash[:]...)
}

func nullifierIndexKey(siloed types.Fr) []byte {
	return append(append([]byte{}, nullifierPrefix...), siloed[:]...)
}

func l1ToL2MsgKey(entryKey types.Fr) []byte {
	return append(append([]byte{}, l1ToL2MsgPrefix...), entryKey[:]...)
}

func treeSizeKey(tree []byte) []byte {
	return append(append([]byte{}, treeSizePrefix...), tree...)
}
