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

package prover

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
)

var (
	proveTimer     = metrics.NewRegisteredTimer("prover/rpc/prove", nil)
	proveFailMeter = metrics.NewRegisteredMeter("prover/rpc/fail", nil)
)

// RPCBackend proves circuits on a remote proving service through the
// prover_prove JSON-RPC method. Calls are not retried.
type RPCBackend struct {
	client *rpc.Client
}

// DialRPCBackend connects to a proving service.
func DialRPCBackend(ctx context.Context, rawurl string) (*RPCBackend, error) {
	client, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, errors.Wrapf(err, "dial prover %s", rawurl)
	}
	return NewRPCBackend(client), nil
}

// NewRPCBackend creates a backend using the given client.
func NewRPCBackend(client *rpc.Client) *RPCBackend {
	return &RPCBackend{client: client}
}

func (b *RPCBackend) Prove(ctx context.Context, circuit string, inputs []byte) (*ProofResult, error) {
	defer proveTimer.UpdateSince(time.Now())

	var res ProofResult
	if err := b.client.CallContext(ctx, &res, "prover_prove", circuit, hexutil.Bytes(inputs)); err != nil {
		proveFailMeter.Mark(1)
		return nil, errors.Wrapf(err, "prove %s", circuit)
	}
	return &res, nil
}

// Close closes the underlying connection.
func (b *RPCBackend) Close() {
	b.client.Close()
}
