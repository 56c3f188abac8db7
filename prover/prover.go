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

// Package prover produces the proofs of the public circuits through a
// pluggable proving backend.
package prover

import (
	"context"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/bnb-chain/avm/core/types"
)

// Circuit names understood by the proving backends.
const (
	PublicCircuit       = "public-circuit"
	PublicKernelCircuit = "public-kernel-circuit"
)

// ProofResult is a proof together with the verification key of the circuit.
type ProofResult struct {
	Proof           types.Proof   `json:"proof"`
	VerificationKey hexutil.Bytes `json:"verificationKey"`
}

// Backend proves a circuit given its serialized inputs.
type Backend interface {
	Prove(ctx context.Context, circuit string, inputs []byte) (*ProofResult, error)
}

// EmptyBackend returns empty proofs. It is used when proving is disabled.
type EmptyBackend struct{}

func (EmptyBackend) Prove(ctx context.Context, circuit string, inputs []byte) (*ProofResult, error) {
	return &ProofResult{Proof: types.EmptyProof()}, nil
}

// PublicProver proves public function circuits and public kernel iterations.
// Inputs are RLP encoded before they are handed to the backend.
type PublicProver struct {
	backend Backend
}

// NewPublicProver creates a prover on top of a backend.
func NewPublicProver(backend Backend) *PublicProver {
	return &PublicProver{backend: backend}
}

func (p *PublicProver) prove(ctx context.Context, circuit string, inputs interface{}) (types.Proof, error) {
	enc, err := rlp.EncodeToBytes(inputs)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s inputs", circuit)
	}
	res, err := p.backend.Prove(ctx, circuit, enc)
	if err != nil {
		return nil, err
	}
	log.Trace("Proved circuit", "circuit", circuit, "inputs", len(enc), "proof", len(res.Proof))
	return res.Proof, nil
}

// GetPublicCircuitProof proves the public function circuit of a call.
func (p *PublicProver) GetPublicCircuitProof(ctx context.Context, inputs *types.PublicCircuitPublicInputs) (types.Proof, error) {
	return p.prove(ctx, PublicCircuit, inputs)
}

// GetPublicKernelCircuitProof proves a public kernel iteration.
func (p *PublicProver) GetPublicKernelCircuitProof(ctx context.Context, inputs *types.PublicKernelCircuitPublicInputs) (types.Proof, error) {
	return p.prove(ctx, PublicKernelCircuit, inputs)
}
