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
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru"

	"github.com/bnb-chain/avm/core/types"
	"github.com/bnb-chain/avm/ethdb"
)

const defaultFunctionCacheSize = 1024

// ContractFunctionArtifact is a deployable public function.
type ContractFunctionArtifact struct {
	Name       string                 `json:"name"`
	Selector   types.FunctionSelector `json:"selector"`
	IsInternal bool                   `json:"isInternal"`
	Bytecode   hexutil.Bytes          `json:"bytecode"`
}

// ContractArtifact is a deployable contract instance: its public functions
// and the L1 portal it is linked to.
type ContractArtifact struct {
	Address   types.AztecAddress         `json:"address"`
	Portal    types.EthAddress           `json:"portalContractAddress"`
	Functions []ContractFunctionArtifact `json:"functions"`
}

// function is a deployed public function as cached by the store.
type function struct {
	code     []byte
	internal bool
}

// ContractStore persists the deployed public functions. It implements
// PublicContractsDB and is safe for concurrent use.
type ContractStore struct {
	db    ethdb.Database
	cache *lru.Cache // Recently executed functions
}

// NewContractStore creates a contract store over db caching up to cacheSize
// functions.
func NewContractStore(db ethdb.Database, cacheSize int) *ContractStore {
	if cacheSize <= 0 {
		cacheSize = defaultFunctionCacheSize
	}
	cache, _ := lru.New(cacheSize)
	return &ContractStore{db: db, cache: cache}
}

// AddContract deploys every function of the artifact and links its portal.
func (s *ContractStore) AddContract(artifact *ContractArtifact) error {
	batch := s.db.NewBatch()
	for _, fn := range artifact.Functions {
		enc := make([]byte, 1+len(fn.Bytecode))
		if fn.IsInternal {
			enc[0] = 1
		}
		copy(enc[1:], fn.Bytecode)
		if err := batch.Put(functionKey(artifact.Address, fn.Selector), enc); err != nil {
			return err
		}
		s.cache.Remove(types.ContractFunction{Address: artifact.Address, Selector: fn.Selector})
	}
	if artifact.Portal != (types.EthAddress{}) {
		if err := batch.Put(portalKey(artifact.Address), artifact.Portal[:]); err != nil {
			return err
		}
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("failed to deploy contract %s: %w", artifact.Address.TerminalString(), err)
	}
	log.Info("Deployed contract", "address", artifact.Address, "functions", len(artifact.Functions), "portal", artifact.Portal)
	return nil
}

func (s *ContractStore) function(address types.AztecAddress, selector types.FunctionSelector) (*function, error) {
	id := types.ContractFunction{Address: address, Selector: selector}
	if cached, ok := s.cache.Get(id); ok {
		return cached.(*function), nil
	}
	enc, err := s.db.Get(functionKey(address, selector))
	if errors.Is(err, ethdb.ErrNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	if len(enc) == 0 {
		return nil, fmt.Errorf("corrupt function entry %s", id)
	}
	fn := &function{code: enc[1:], internal: enc[0] == 1}
	s.cache.Add(id, fn)
	return fn, nil
}

// GetBytecode returns the bytecode of a function, nil if not deployed.
func (s *ContractStore) GetBytecode(ctx context.Context, address types.AztecAddress, selector types.FunctionSelector) ([]byte, error) {
	fn, err := s.function(address, selector)
	if err != nil || fn == nil {
		return nil, err
	}
	return fn.code, nil
}

// GetIsInternal reports whether the function is internal.
func (s *ContractStore) GetIsInternal(ctx context.Context, address types.AztecAddress, selector types.FunctionSelector) (bool, error) {
	fn, err := s.function(address, selector)
	if err != nil || fn == nil {
		return false, err
	}
	return fn.internal, nil
}

// GetPortalContractAddress returns the L1 portal of a contract.
func (s *ContractStore) GetPortalContractAddress(ctx context.Context, address types.AztecAddress) (types.EthAddress, error) {
	enc, err := s.db.Get(portalKey(address))
	if errors.Is(err, ethdb.ErrNotFound) {
		return types.EthAddress{}, nil
	} else if err != nil {
		return types.EthAddress{}, err
	}
	return common.BytesToAddress(enc), nil
}
