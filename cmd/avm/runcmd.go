// Copyright 2024 The go-ethereum Authors
// This file is part of go-ethereum.
//
// go-ethereum is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-ethereum is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-ethereum. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/bnb-chain/avm/cmd/utils"
	"github.com/bnb-chain/avm/core"
	"github.com/bnb-chain/avm/core/state"
	"github.com/bnb-chain/avm/core/types"
	"github.com/bnb-chain/avm/core/vm"
	"github.com/bnb-chain/avm/ethdb"
	"github.com/bnb-chain/avm/prover"
)

var (
	runCommand = &cli.Command{
		Action:    runTxs,
		Name:      "run",
		Usage:     "Execute the public part of a batch of transactions",
		ArgsUsage: "<block.json>",
		Description: `
The run command executes the enqueued public calls of the transactions in the
given block file against the public state of the data directory and prints
the processed and failed transactions as JSON.

The block file holds the global variables of the block and the transactions:
{"globals": {...}, "txs": [...]}`,
	}
	deployCommand = &cli.Command{
		Action:    deployContract,
		Name:      "deploy",
		Usage:     "Register the public functions of a contract",
		ArgsUsage: "<artifact.json>",
	}
)

// stores are the backing stores of the engine in a data directory.
type stores struct {
	db          ethdb.Database
	world       *state.WorldStateDB
	contracts   *state.ContractStore
	commitments *state.CommitmentStore

	dirLock *flock.Flock // Prevents concurrent writers on the data directory
}

// openStores opens the databases of the data directory. A writable data
// directory is locked until Close.
func openStores(cfg *nodeConfig, readonly bool) (*stores, error) {
	s := new(stores)
	if !readonly && cfg.DBEngine != utils.EngineMemory {
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, err
		}
		s.dirLock = flock.New(filepath.Join(cfg.DataDir, "LOCK"))
		locked, err := s.dirLock.TryLock()
		if err != nil {
			return nil, errors.Wrap(err, "lock data directory")
		}
		if !locked {
			return nil, errors.Errorf("data directory %s is in use", cfg.DataDir)
		}
	}
	db, err := utils.OpenDatabase(cfg.DBEngine, cfg.DataDir, cfg.DatabaseCache, readonly)
	if err != nil {
		s.unlock()
		return nil, errors.Wrap(err, "open database")
	}
	world, err := state.NewWorldStateDB(db, cfg.StateCache*1024*1024)
	if err != nil {
		db.Close()
		s.unlock()
		return nil, errors.Wrap(err, "open world state")
	}
	s.db, s.world = db, world
	s.contracts = state.NewContractStore(db, 0)
	s.commitments = state.NewCommitmentStore(db)
	return s, nil
}

func (s *stores) unlock() {
	if s.dirLock != nil {
		s.dirLock.Unlock()
	}
}

func (s *stores) Close() error {
	defer s.unlock()
	return s.db.Close()
}

// blockInput is the content of a block file.
type blockInput struct {
	Globals types.GlobalVariables `json:"globals"`
	Txs     []*types.Tx           `json:"txs"`
}

type failedTxOutput struct {
	Hash  common.Hash `json:"hash"`
	Error string      `json:"error"`
}

type runOutput struct {
	Processed      []*types.ProcessedTx `json:"processed"`
	Failed         []failedTxOutput     `json:"failed"`
	PublicDataTree types.TreeSnapshot   `json:"publicDataTree"`
}

func readJSON(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return errors.Wrapf(json.NewDecoder(f).Decode(v), "invalid %s", path)
}

func makeProver(ctx *cli.Context, cfg *proverConfig) (*prover.PublicProver, func(), error) {
	if cfg.URL == "" {
		return prover.NewPublicProver(prover.EmptyBackend{}), func() {}, nil
	}
	backend, err := prover.DialRPCBackend(ctx.Context, cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	return prover.NewPublicProver(backend), backend.Close, nil
}

// insertSideEffects appends the note hashes and nullifiers of the processed
// transactions to the commitment trees.
func insertSideEffects(commitments *state.CommitmentStore, txs []*types.ProcessedTx) error {
	for _, tx := range txs {
		for _, data := range []*types.AccumulatedData{&tx.Data.EndNonRevertibleData.AccumulatedData, &tx.Data.End.AccumulatedData} {
			noteHashes := make([]types.Fr, len(data.NewNoteHashes))
			for i, nh := range data.NewNoteHashes {
				noteHashes[i] = nh.Value
			}
			if err := commitments.AddNoteHashes(noteHashes); err != nil {
				return errors.Wrapf(err, "tx %s", tx.Hash)
			}
			nullifiers := make([]types.Fr, len(data.NewNullifiers))
			for i, n := range data.NewNullifiers {
				nullifiers[i] = n.Value
			}
			if err := commitments.AddNullifiers(nullifiers); err != nil {
				return errors.Wrapf(err, "tx %s", tx.Hash)
			}
		}
	}
	return nil
}

func runTxs(ctx *cli.Context) error {
	if ctx.Args().Len() != 1 {
		utils.Fatalf("This command requires a block file as the only argument.")
	}
	var block blockInput
	if err := readJSON(ctx.Args().First(), &block); err != nil {
		return err
	}
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	s, err := openStores(&cfg.Node, false)
	if err != nil {
		return err
	}
	defer s.Close()

	publicProver, closeProver, err := makeProver(ctx, &cfg.Prover)
	if err != nil {
		return err
	}
	defer closeProver()

	var header types.Header
	header.GlobalVariables = block.Globals
	header.State.Partial.PublicDataTree = s.world.Snapshot()

	processor := core.NewPublicProcessor(s.world, s.contracts, s.commitments, core.NativeKernelSimulator{},
		publicProver, block.Globals, header, cfg.Processor, cfg.Executor)
	processed, failed, err := processor.Process(ctx.Context, block.Txs)
	if err != nil {
		return err
	}
	if err := insertSideEffects(s.commitments, processed); err != nil {
		return err
	}
	out := runOutput{Processed: processed, PublicDataTree: s.world.Snapshot()}
	for _, tx := range failed {
		log.Warn("Dropped failed transaction", "hash", tx.Tx.Hash(), "err", tx.Err)
		out.Failed = append(out.Failed, failedTxOutput{Hash: tx.Tx.Hash(), Error: tx.Err.Error()})
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func deployContract(ctx *cli.Context) error {
	if ctx.Args().Len() != 1 {
		utils.Fatalf("This command requires a contract artifact as the only argument.")
	}
	var artifact state.ContractArtifact
	if err := readJSON(ctx.Args().First(), &artifact); err != nil {
		return err
	}
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	s, err := openStores(&cfg.Node, false)
	if err != nil {
		return err
	}
	defer s.Close()

	for _, fn := range artifact.Functions {
		if _, err := vm.DecodeProgram(fn.Bytecode); err != nil {
			return errors.Wrapf(err, "function %s (%s)", fn.Name, fn.Selector)
		}
	}
	return s.contracts.AddContract(&artifact)
}
