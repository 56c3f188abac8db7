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
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// UnencryptedL2Log is a log emitted by a public function.
type UnencryptedL2Log struct {
	ContractAddress AztecAddress     `json:"contractAddress"`
	Selector        FunctionSelector `json:"selector"`
	Data            []Fr             `json:"data"`
}

// FunctionL2Logs are the logs emitted by one function invocation.
type FunctionL2Logs struct {
	Logs []UnencryptedL2Log `json:"logs"`
}

// Hash commits to the logs of the invocation. No logs hash to zero.
func (f *FunctionL2Logs) Hash() Fr {
	if len(f.Logs) == 0 {
		return Fr{}
	}
	enc, _ := rlp.EncodeToBytes(f.Logs)
	return BytesToFr(crypto.Keccak256(enc))
}

// PreimageLength is the number of serialized bytes the hash commits to.
func (f *FunctionL2Logs) PreimageLength() uint64 {
	if len(f.Logs) == 0 {
		return 0
	}
	enc, _ := rlp.EncodeToBytes(f.Logs)
	return uint64(len(enc))
}

// TxL2Logs are the logs of a whole transaction, grouped by invocation.
type TxL2Logs struct {
	FunctionLogs []FunctionL2Logs `json:"functionLogs"`
}

// AddFunctionLogs appends the logs of further invocations.
func (t *TxL2Logs) AddFunctionLogs(logs ...FunctionL2Logs) {
	t.FunctionLogs = append(t.FunctionLogs, logs...)
}

// LogCount returns the total number of logs.
func (t *TxL2Logs) LogCount() int {
	var n int
	for i := range t.FunctionLogs {
		n += len(t.FunctionLogs[i].Logs)
	}
	return n
}

// AccumulateLogsHash folds the hash of a new invocation into a running hash.
func AccumulateLogsHash(prev, next Fr) Fr {
	if next.IsZero() {
		return prev
	}
	return BytesToFr(crypto.Keccak256(prev[:], next[:]))
}
