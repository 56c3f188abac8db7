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
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"

	"github.com/bnb-chain/avm/core/types"
)

var errUnknownCircuit = errors.New("unknown circuit")

// proverService is an in-process proving service returning the keccak hash
// of the inputs as proof.
type proverService struct {
	circuits []string
}

func (s *proverService) Prove(ctx context.Context, circuit string, inputs hexutil.Bytes) (*ProofResult, error) {
	if circuit != PublicCircuit && circuit != PublicKernelCircuit {
		return nil, errUnknownCircuit
	}
	s.circuits = append(s.circuits, circuit)
	return &ProofResult{Proof: crypto.Keccak256(inputs), VerificationKey: []byte{0x01}}, nil
}

func newTestRPCBackend(t *testing.T) (*RPCBackend, *proverService) {
	t.Helper()
	service := new(proverService)
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("prover", service))
	t.Cleanup(server.Stop)

	backend := NewRPCBackend(rpc.DialInProc(server))
	t.Cleanup(backend.Close)
	return backend, service
}

func TestRPCBackendProve(t *testing.T) {
	backend, service := newTestRPCBackend(t)
	prover := NewPublicProver(backend)

	inputs := &types.PublicCircuitPublicInputs{
		ArgsHash:     types.NewFr(3),
		ReturnValues: []types.Fr{types.NewFr(1)},
	}
	proof, err := prover.GetPublicCircuitProof(context.Background(), inputs)
	require.NoError(t, err)

	enc, err := rlp.EncodeToBytes(inputs)
	require.NoError(t, err)
	require.Equal(t, types.Proof(crypto.Keccak256(enc)), proof)

	_, err = prover.GetPublicKernelCircuitProof(context.Background(), &types.PublicKernelCircuitPublicInputs{NeedsAppLogic: true})
	require.NoError(t, err)
	require.Equal(t, []string{PublicCircuit, PublicKernelCircuit}, service.circuits)
}

func TestRPCBackendError(t *testing.T) {
	backend, _ := newTestRPCBackend(t)

	_, err := backend.Prove(context.Background(), "unknown", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "prove unknown")
	require.Contains(t, err.Error(), errUnknownCircuit.Error())
}

func TestEmptyBackend(t *testing.T) {
	prover := NewPublicProver(EmptyBackend{})
	proof, err := prover.GetPublicKernelCircuitProof(context.Background(), new(types.PublicKernelCircuitPublicInputs))
	require.NoError(t, err)
	require.Empty(t, proof)
}
