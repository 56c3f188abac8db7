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
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/bnb-chain/avm/core/types"
	"github.com/bnb-chain/avm/ethdb"
)

// storedL1ToL2Message is the database encoding of an L1 to L2 message.
type storedL1ToL2Message struct {
	Message L1ToL2Message
	Index   uint64
}

// CommitmentStore keeps the leaf indexes of the note hash, nullifier and L1
// to L2 message trees. It implements CommitmentsDB and is safe for
// concurrent use.
//
// Only leaf positions are tracked; membership paths are left to the prover.
type CommitmentStore struct {
	db   ethdb.Database
	lock sync.Mutex // Serializes leaf index allocation
}

// NewCommitmentStore creates a commitment store over db.
func NewCommitmentStore(db ethdb.Database) *CommitmentStore {
	return &CommitmentStore{db: db}
}

func (s *CommitmentStore) treeSize(tree []byte) (uint64, error) {
	enc, err := s.db.Get(treeSizeKey(tree))
	if errors.Is(err, ethdb.ErrNotFound) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(enc), nil
}

func (s *CommitmentStore) index(key []byte) (uint64, bool, error) {
	enc, err := s.db.Get(key)
	if errors.Is(err, ethdb.ErrNotFound) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	return binary.BigEndian.Uint64(enc), true, nil
}

// appendLeaves assigns the next leaf indexes of a tree to the keys.
func (s *CommitmentStore) appendLeaves(tree []byte, keys [][]byte, unique bool) (uint64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	next, err := s.treeSize(tree)
	if err != nil {
		return 0, err
	}
	first := next
	batch := s.db.NewBatch()
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if unique {
			if _, dup := seen[string(key)]; dup {
				return 0, fmt.Errorf("%w: %x", ErrDuplicateNullifier, key[1:])
			}
			if ok, err := s.db.Has(key); err != nil {
				return 0, err
			} else if ok {
				return 0, fmt.Errorf("%w: %x", ErrDuplicateNullifier, key[1:])
			}
			seen[string(key)] = struct{}{}
		}
		if err := batch.Put(key, encodeUint64(next)); err != nil {
			return 0, err
		}
		next++
	}
	if err := batch.Put(treeSizeKey(tree), encodeUint64(next)); err != nil {
		return 0, err
	}
	if err := batch.Write(); err != nil {
		return 0, err
	}
	return first, nil
}

// AddNoteHashes appends note hashes to the note hash tree.
func (s *CommitmentStore) AddNoteHashes(noteHashes []types.Fr) error {
	keys := make([][]byte, len(noteHashes))
	for i, h := range noteHashes {
		keys[i] = noteHashKey(h)
	}
	first, err := s.appendLeaves(noteHashTreeName, keys, false)
	if err != nil {
		return err
	}
	log.Debug("Appended note hashes", "count", len(noteHashes), "first", first)
	return nil
}

// AddNullifiers appends siloed nullifiers to the nullifier tree. Nullifiers
// already in the tree are rejected with ErrDuplicateNullifier and nothing is
// written.
func (s *CommitmentStore) AddNullifiers(nullifiers []types.Fr) error {
	keys := make([][]byte, len(nullifiers))
	for i, n := range nullifiers {
		keys[i] = nullifierIndexKey(n)
	}
	first, err := s.appendLeaves(nullifierTreeName, keys, true)
	if err != nil {
		return err
	}
	log.Debug("Appended nullifiers", "count", len(nullifiers), "first", first)
	return nil
}

// AddL1ToL2Message appends a message to the L1 to L2 message tree and returns
// its leaf index.
func (s *CommitmentStore) AddL1ToL2Message(msg *L1ToL2Message) (uint64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	index, err := s.treeSize(l1ToL2MsgTreeName)
	if err != nil {
		return 0, err
	}
	enc, err := rlp.EncodeToBytes(&storedL1ToL2Message{Message: *msg, Index: index})
	if err != nil {
		return 0, err
	}
	batch := s.db.NewBatch()
	if err := batch.Put(l1ToL2MsgKey(msg.EntryKey), enc); err != nil {
		return 0, err
	}
	if err := batch.Put(treeSizeKey(l1ToL2MsgTreeName), encodeUint64(index+1)); err != nil {
		return 0, err
	}
	if err := batch.Write(); err != nil {
		return 0, err
	}
	return index, nil
}

// GetL1ToL2MembershipWitness returns the message with the entry key, nil if
// there is none.
func (s *CommitmentStore) GetL1ToL2MembershipWitness(ctx context.Context, entryKey types.Fr) (*MessageLoadOracleInputs, error) {
	enc, err := s.db.Get(l1ToL2MsgKey(entryKey))
	if errors.Is(err, ethdb.ErrNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var stored storedL1ToL2Message
	if err := rlp.DecodeBytes(enc, &stored); err != nil {
		return nil, fmt.Errorf("corrupt l1 to l2 message %s: %w", entryKey.TerminalString(), err)
	}
	return &MessageLoadOracleInputs{Message: stored.Message, Index: stored.Index}, nil
}

// GetCommitmentIndex returns the leaf index of a note hash.
func (s *CommitmentStore) GetCommitmentIndex(ctx context.Context, commitment types.Fr) (uint64, bool, error) {
	return s.index(noteHashKey(commitment))
}

// GetNullifierIndex returns the leaf index of a siloed nullifier.
func (s *CommitmentStore) GetNullifierIndex(ctx context.Context, nullifier types.Fr) (uint64, bool, error) {
	return s.index(nullifierIndexKey(nullifier))
}

// GetNullifierMembershipWitnessAtLatestBlock returns the position of a siloed
// nullifier, nil if it is not in the tree.
func (s *CommitmentStore) GetNullifierMembershipWitnessAtLatestBlock(ctx context.Context, nullifier types.Fr) (*NullifierMembershipWitness, error) {
	index, ok, err := s.index(nullifierIndexKey(nullifier))
	if err != nil || !ok {
		return nil, err
	}
	return &NullifierMembershipWitness{Index: index, Nullifier: nullifier}, nil
}
