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

package core

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/bnb-chain/avm/common/gopool"
	"github.com/bnb-chain/avm/core/state"
	"github.com/bnb-chain/avm/core/types"
	"github.com/bnb-chain/avm/core/vm"
)

// ProcessorConfig are the configuration options of the public processor.
type ProcessorConfig struct {
	Workers int // Number of transactions processed concurrently, 0 for one per CPU
}

// DefaultProcessorConfig contains the default configurations of the public
// processor.
var DefaultProcessorConfig = ProcessorConfig{}

// PublicProcessor runs the public part of transactions on top of a shared
// world state. Every transaction reads the public data tree at the snapshot
// of the block header and commits its phases independently of the others.
type PublicProcessor struct {
	world       *state.WorldStateDB
	contracts   state.PublicContractsDB
	commitments state.CommitmentsDB
	kernel      KernelCircuitSimulator
	prover      PublicProver

	globals types.GlobalVariables
	header  types.Header

	config   ProcessorConfig
	executor vm.Config
	opts     []vm.Option
}

// NewPublicProcessor creates a processor for a block with the given globals,
// executing against the historical header.
func NewPublicProcessor(world *state.WorldStateDB, contracts state.PublicContractsDB, commitments state.CommitmentsDB,
	kernel KernelCircuitSimulator, prover PublicProver, globals types.GlobalVariables, header types.Header,
	config ProcessorConfig, executor vm.Config, opts ...vm.Option) *PublicProcessor {
	return &PublicProcessor{
		world:       world,
		contracts:   contracts,
		commitments: commitments,
		kernel:      kernel,
		prover:      prover,
		globals:     globals,
		header:      header,
		config:      config,
		executor:    executor,
		opts:        opts,
	}
}

// Process runs the public part of every transaction. Processed transactions
// are returned in input order; the failed ones are dropped from the block and
// returned separately.
func (p *PublicProcessor) Process(ctx context.Context, txs []*types.Tx) ([]*types.ProcessedTx, []*types.FailedTx, error) {
	defer processTimer.UpdateSince(time.Now())

	workers := p.config.Workers
	if workers <= 0 {
		workers = gopool.Threads(len(txs))
	}
	pool, err := gopool.New(workers)
	if err != nil {
		return nil, nil, err
	}
	defer pool.Release()

	var (
		wg        sync.WaitGroup
		processed = make([]*types.ProcessedTx, len(txs))
		failed    = make([]*types.FailedTx, len(txs))
	)
	for i, tx := range txs {
		i, tx := i, tx
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			processed[i], failed[i] = p.processTx(ctx, tx)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return nil, nil, err
		}
	}
	wg.Wait()

	var (
		done  []*types.ProcessedTx
		fails []*types.FailedTx
	)
	for i := range txs {
		if failed[i] != nil {
			fails = append(fails, failed[i])
			continue
		}
		done = append(done, processed[i])
	}
	log.Info("Processed public transactions", "processed", len(done), "failed", len(fails))
	return done, fails, nil
}

// processTx runs the phases of a single transaction. SETUP and TEARDOWN
// failures fail the transaction. An APP_LOGIC failure discards the phase and
// restores the kernel output it started from; TEARDOWN still runs.
func (p *PublicProcessor) processTx(ctx context.Context, tx *types.Tx) (*types.ProcessedTx, *types.FailedTx) {
	txState, err := state.NewTxStateDB(p.world, p.header.State.Partial.PublicDataTree)
	if err != nil {
		failedTxMeter.Mark(1)
		return nil, &types.FailedTx{Tx: tx, Err: err}
	}
	var (
		host     = state.NewHostStorage(txState, p.contracts, p.commitments)
		executor = vm.NewPublicExecutor(host, p.header, p.executor, p.opts...)
		output   = tx.Data.Copy()
		proof    = tx.Proof
		logs     = types.TxL2Logs{FunctionLogs: append([]types.FunctionL2Logs(nil), tx.UnencryptedLogs.FunctionLogs...)}

		revertedAppLogic bool
		revertReason     string
	)
	if phase, ok := initialPhase(tx.Data); ok {
		for m := NewPhaseManager(phase, executor, p.kernel, p.prover, txState, p.globals, p.header); m != nil; m = m.NextPhase() {
			result, err := m.Handle(ctx, tx, output, proof)
			if err == nil {
				output, proof = result.Output, result.Proof
				logs.AddFunctionLogs(result.Logs...)
				continue
			}
			if m.Phase() != PhaseAppLogic {
				failedTxMeter.Mark(1)
				return nil, m.Rollback(ctx, tx, err)
			}
			// Application logic is revertible: drop its writes and keep
			// going from the kernel output SETUP produced.
			m.Rollback(ctx, tx, err)
			revertedAppLogic, revertReason = true, err.Error()
			revertedAppLogicTxMeter.Mark(1)
		}
	}
	processedTxMeter.Mark(1)
	return &types.ProcessedTx{
		Hash:             tx.Hash(),
		Data:             output,
		Proof:            proof,
		EncryptedLogs:    tx.EncryptedLogs,
		UnencryptedLogs:  logs,
		RevertedAppLogic: revertedAppLogic,
		RevertReason:     revertReason,
	}, nil
}
