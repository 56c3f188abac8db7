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
	"errors"

	"github.com/bnb-chain/avm/core/types"
)

var (
	// ErrDuplicateNullifier is returned when a nullifier is emitted twice,
	// or emitted while already present in the nullifier tree.
	ErrDuplicateNullifier = errors.New("duplicate nullifier")

	// ErrUnknownSnapshot is returned when a transaction is pinned to a
	// public data tree version the world state does not know.
	ErrUnknownSnapshot = errors.New("unknown public data snapshot")
)

// PublicStateDB is the backing public data store of a transaction. Writes
// are staged until Commit, Rollback discards them.
type PublicStateDB interface {
	StorageRead(ctx context.Context, contract types.AztecAddress, slot types.Fr) (types.Fr, error)
	StorageWrite(ctx context.Context, contract types.AztecAddress, slot, value types.Fr) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// PublicContractsDB gives access to the deployed public functions.
type PublicContractsDB interface {
	// GetBytecode returns nil if the function is not deployed.
	GetBytecode(ctx context.Context, address types.AztecAddress, selector types.FunctionSelector) ([]byte, error)
	GetIsInternal(ctx context.Context, address types.AztecAddress, selector types.FunctionSelector) (bool, error)
	// GetPortalContractAddress returns the zero address for contracts
	// without a portal.
	GetPortalContractAddress(ctx context.Context, address types.AztecAddress) (types.EthAddress, error)
}

// CommitmentsDB gives access to the commitment trees of the latest block.
type CommitmentsDB interface {
	// GetL1ToL2MembershipWitness returns nil if no message has the key.
	GetL1ToL2MembershipWitness(ctx context.Context, entryKey types.Fr) (*MessageLoadOracleInputs, error)
	GetCommitmentIndex(ctx context.Context, commitment types.Fr) (uint64, bool, error)
	GetNullifierIndex(ctx context.Context, nullifier types.Fr) (uint64, bool, error)
	// GetNullifierMembershipWitnessAtLatestBlock returns nil if the
	// nullifier is not in the tree.
	GetNullifierMembershipWitnessAtLatestBlock(ctx context.Context, nullifier types.Fr) (*NullifierMembershipWitness, error)
}

// L1ToL2Message is a message sent from an L1 portal to an L2 contract.
type L1ToL2Message struct {
	Sender     types.EthAddress   `json:"sender"`
	Recipient  types.AztecAddress `json:"recipient"`
	Content    types.Fr           `json:"content"`
	SecretHash types.Fr           `json:"secretHash"`
	Deadline   uint64             `json:"deadline"`
	Fee        uint64             `json:"fee"`
	EntryKey   types.Fr           `json:"entryKey"`
}

// Fields returns the message as field elements, in the order the reading
// contract receives them.
func (m *L1ToL2Message) Fields() []types.Fr {
	return []types.Fr{
		types.EthAddressToField(m.Sender),
		m.Recipient.ToField(),
		m.Content,
		m.SecretHash,
		types.NewFr(m.Deadline),
		types.NewFr(m.Fee),
		m.EntryKey,
	}
}

// MessageLoadOracleInputs is an L1 to L2 message with its tree position.
type MessageLoadOracleInputs struct {
	Message     L1ToL2Message `json:"message"`
	Index       uint64        `json:"index"`
	SiblingPath []types.Fr    `json:"siblingPath"`
}

// NullifierMembershipWitness proves that a nullifier is in the tree.
type NullifierMembershipWitness struct {
	Index       uint64     `json:"index"`
	Nullifier   types.Fr   `json:"nullifier"`
	SiblingPath []types.Fr `json:"siblingPath"`
}

// HostStorage bundles the backing stores a journal falls through to.
type HostStorage struct {
	PublicState PublicStateDB
	Contracts   PublicContractsDB
	Commitments CommitmentsDB
}

// NewHostStorage creates the host storage of a transaction.
func NewHostStorage(publicState PublicStateDB, contracts PublicContractsDB, commitments CommitmentsDB) *HostStorage {
	return &HostStorage{
		PublicState: publicState,
		Contracts:   contracts,
		Commitments: commitments,
	}
}
