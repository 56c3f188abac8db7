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
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// Proof is an opaque proof produced by the proving backend.
type Proof hexutil.Bytes

// MarshalText implements encoding.TextMarshaler.
func (p Proof) MarshalText() ([]byte, error) { return hexutil.Bytes(p).MarshalText() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Proof) UnmarshalText(input []byte) error {
	return (*hexutil.Bytes)(p).UnmarshalText(input)
}

// EmptyProof returns the proof used when proving is disabled.
func EmptyProof() Proof { return Proof{} }

// Tx is a rollup transaction as handed over by the private execution: the
// private kernel tail output, its proof, logs and the enqueued public calls.
type Tx struct {
	Data                        *PublicKernelCircuitPublicInputs `json:"data"`
	Proof                       Proof                            `json:"proof"`
	EncryptedLogs               []hexutil.Bytes                  `json:"encryptedLogs"`
	UnencryptedLogs             TxL2Logs                         `json:"unencryptedLogs"`
	EnqueuedPublicFunctionCalls []*PublicCallRequest             `json:"enqueuedPublicFunctionCalls"`

	hash atomic.Pointer[common.Hash]
}

// Hash returns the transaction hash, the keccak256 of the RLP encoded
// private kernel tail output.
func (tx *Tx) Hash() common.Hash {
	if h := tx.hash.Load(); h != nil {
		return *h
	}
	enc, err := rlp.EncodeToBytes(tx.Data)
	if err != nil {
		return common.Hash{}
	}
	h := crypto.Keccak256Hash(enc)
	tx.hash.Store(&h)
	return h
}

// ProcessedTx is a transaction whose public part has been executed.
type ProcessedTx struct {
	Hash             common.Hash                      `json:"hash"`
	Data             *PublicKernelCircuitPublicInputs `json:"data"`
	Proof            Proof                            `json:"proof"`
	EncryptedLogs    []hexutil.Bytes                  `json:"encryptedLogs"`
	UnencryptedLogs  TxL2Logs                         `json:"unencryptedLogs"`
	RevertedAppLogic bool                             `json:"revertedAppLogic"`
	RevertReason     string                           `json:"revertReason,omitempty"`
}

// FailedTx is a transaction that could not be processed. It is terminal.
type FailedTx struct {
	Tx  *Tx
	Err error
}
