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

package vm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/bnb-chain/avm/core/state"
	"github.com/bnb-chain/avm/core/types"
	"github.com/bnb-chain/avm/params"
)

// Config are the configuration options for the public executor.
type Config struct {
	MaxCallDepth int      // Maximum number of frames on the call stack
	Strategy     Strategy // Strategy of executions created by NewExecution
}

// DefaultConfig contains the default configurations for the public executor.
var DefaultConfig = Config{
	MaxCallDepth: params.MaxCallStackDepth,
	Strategy:     StrategyAVM,
}

// sanitize checks the provided user configurations and changes anything that's
// unreasonable or unworkable.
func (config *Config) sanitize() Config {
	conf := *config
	if conf.MaxCallDepth < 1 {
		log.Warn("Sanitizing invalid executor call depth", "provided", conf.MaxCallDepth, "updated", DefaultConfig.MaxCallDepth)
		conf.MaxCallDepth = DefaultConfig.MaxCallDepth
	}
	return conf
}

// LegacySimulator runs public functions that are not AVM bytecode, e.g.
// through a binding to an external virtual machine. It must trace its side
// effects through the journal.
type LegacySimulator interface {
	Simulate(ctx context.Context, execution *PublicExecution, globals types.GlobalVariables, header types.Header, journal *state.Journal) (*PublicExecutionResult, error)
}

// Option configures optional executor collaborators.
type Option func(*PublicExecutor)

// WithLegacySimulator enables StrategyLegacy executions.
func WithLegacySimulator(sim LegacySimulator) Option {
	return func(e *PublicExecutor) { e.legacy = sim }
}

// PublicExecutor simulates public calls against the host storage of a
// transaction. Simulation never commits: on success the final storage values
// are staged in the host public state, which the caller commits or rolls
// back.
type PublicExecutor struct {
	host   *state.HostStorage
	header types.Header
	config Config
	legacy LegacySimulator
}

// NewPublicExecutor creates an executor over the host storage. header is the
// historical block header the calls execute against.
func NewPublicExecutor(host *state.HostStorage, header types.Header, config Config, opts ...Option) *PublicExecutor {
	e := &PublicExecutor{
		host:   host,
		header: header,
		config: config.sanitize(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewExecution wraps an enqueued call request with the configured strategy.
func (e *PublicExecutor) NewExecution(req *types.PublicCallRequest) *PublicExecution {
	return &PublicExecution{PublicCallRequest: *req, Strategy: e.config.Strategy}
}

// Simulate executes a public call and every call it makes.
//
// A REVERT in the top frame yields a result with Reverted set and nothing
// staged. Any other failure aborts the whole call tree and is returned as an
// *ExecutionError.
func (e *PublicExecutor) Simulate(ctx context.Context, execution *PublicExecution, globals types.GlobalVariables) (*PublicExecutionResult, error) {
	defer func(start time.Time) { simulateTimer.UpdateSince(start) }(time.Now())

	journal := state.NewJournal(e.host, execution.CallContext.StartSideEffectCounter)

	var (
		result *PublicExecutionResult
		err    error
	)
	switch execution.Strategy {
	case StrategyAVM:
		result, err = e.run(ctx, execution, globals, journal)
	case StrategyLegacy:
		if e.legacy == nil {
			return nil, fmt.Errorf("%w: %s", ErrStrategyUnavailable, execution.Strategy)
		}
		result, err = e.legacy.Simulate(ctx, execution, globals, e.header, journal)
	default:
		return nil, fmt.Errorf("%w: %d", ErrStrategyUnavailable, execution.Strategy)
	}
	if err != nil {
		failedCallMeter.Mark(1)
		return nil, err
	}
	if result.Reverted {
		revertedCallMeter.Mark(1)
		log.Debug("Public call reverted", "contract", execution.ContractAddress, "selector", execution.FunctionData.Selector, "reason", result.RevertReason)
		return result, nil
	}
	if err := journal.Publish(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// loadFrame fetches and decodes the bytecode of a call.
func (e *PublicExecutor) loadFrame(ctx context.Context, execution *PublicExecution, env *ExecutionEnvironment, journal *state.Journal) (*frame, error) {
	req := &execution.PublicCallRequest
	code, err := e.host.Contracts.GetBytecode(ctx, req.ContractAddress, req.FunctionData.Selector)
	if err != nil {
		return nil, err
	}
	if code == nil {
		return nil, fmt.Errorf("%w: %s", ErrBytecodeNotFound, types.ContractFunction{Address: req.ContractAddress, Selector: req.FunctionData.Selector})
	}
	internal, err := e.host.Contracts.GetIsInternal(ctx, req.ContractAddress, req.FunctionData.Selector)
	if err != nil {
		return nil, err
	}
	if internal && env.Sender != req.ContractAddress {
		return nil, fmt.Errorf("%w: %s called by %s", ErrInternalFunctionCall, req.ContractAddress.TerminalString(), env.Sender.TerminalString())
	}
	program, err := DecodeProgram(code)
	if err != nil {
		return nil, err
	}
	return &frame{
		env:     env,
		program: program,
		state:   newMachineState(),
		journal: journal,
		result: &PublicExecutionResult{
			Execution:              execution,
			StartSideEffectCounter: journal.Counter(),
		},
	}, nil
}

// run executes the call tree on an explicit stack of frames.
func (e *PublicExecutor) run(ctx context.Context, execution *PublicExecution, globals types.GlobalVariables, journal *state.Journal) (*PublicExecutionResult, error) {
	top, err := e.loadFrame(ctx, execution, newTopLevelEnvironment(&execution.PublicCallRequest, globals, e.header), journal)
	if err != nil {
		return nil, &ExecutionError{Err: err, CallStack: []CallSite{{Address: execution.ContractAddress, Selector: execution.FunctionData.Selector}}}
	}
	frames := []*frame{top}
	frameCounter.Inc(1)

	for {
		f := frames[len(frames)-1]

		if f.state.Halted {
			e.finish(f)
			if f.env.IsStaticCall && !f.state.Reverted && f.result.hasEffects() {
				return nil, e.abort(frames, fmt.Errorf("%w: static call left side effects", ErrStaticCallViolation))
			}
			frames = frames[:len(frames)-1]
			if len(frames) == 0 {
				return f.result, nil
			}
			if err := returnToCaller(frames[len(frames)-1], f); err != nil {
				return nil, e.abort(frames, err)
			}
			continue
		}
		if int(f.state.PC) >= len(f.program) {
			return nil, e.abort(frames, fmt.Errorf("%w: %d of %d", ErrInvalidProgramCounter, f.state.PC, len(f.program)))
		}
		inst := f.program[f.state.PC]
		opcodeCounter.Inc(1)
		if err := execute(ctx, f, inst); err != nil {
			return nil, e.abort(frames, err)
		}
		if f.pending == nil {
			continue
		}
		if len(frames) >= e.config.MaxCallDepth {
			return nil, e.abort(frames, fmt.Errorf("%w: depth %d", ErrCallStackOverflow, len(frames)))
		}
		req := f.pending.request
		portal, err := e.host.Contracts.GetPortalContractAddress(ctx, req.ContractAddress)
		if err != nil {
			return nil, e.abort(frames, err)
		}
		req.CallContext.PortalContractAddress = portal

		nested := &PublicExecution{PublicCallRequest: *req, Strategy: execution.Strategy}
		child, err := e.loadFrame(ctx, nested, f.env.deriveNested(req), f.journal.Fork())
		if err != nil {
			return nil, e.abort(frames, err)
		}
		frames = append(frames, child)
		frameCounter.Inc(1)
	}
}

// finish completes the result of a halted frame.
func (e *PublicExecutor) finish(f *frame) {
	f.result.ReturnValues = f.state.Output
	f.result.EndSideEffectCounter = f.journal.Counter()
	if f.state.Reverted {
		f.result.Reverted = true
		f.result.RevertReason = fmt.Sprintf("reverted with %d return values %v", len(f.state.Output), f.state.Output)
	}
	log.Trace("Public frame halted", "contract", f.env.Address, "selector", f.env.Selector, "depth", f.env.Depth, "reverted", f.state.Reverted)
}

// returnToCaller merges a halted nested frame into its caller and resumes
// the caller after the call instruction.
func returnToCaller(caller, callee *frame) error {
	call := caller.pending
	caller.pending = nil

	if callee.state.Reverted {
		caller.journal.RejectNestedCallState(callee.journal)
		callee.result.clearEffects()
	} else {
		caller.journal.AcceptNestedCallState(callee.journal)
	}
	caller.result.NestedExecutions = append(caller.result.NestedExecutions, callee.result)

	mem := caller.state.Memory
	mem.Set(call.successOffset, boolWord(!callee.state.Reverted))

	ret := callee.state.Output
	if uint32(len(ret)) > call.retSize {
		ret = ret[:call.retSize]
	}
	words := make([]MemoryValue, len(ret))
	for i, v := range ret {
		words[i] = NewField(v)
	}
	if err := mem.SetSlice(call.retOffset, words); err != nil {
		return err
	}
	caller.state.PC++
	return nil
}

// abort unwinds every frame after a fatal error. Journals are rejected into
// their parents so that the access trace survives.
func (e *PublicExecutor) abort(frames []*frame, err error) error {
	sites := make([]CallSite, 0, len(frames))
	for i := len(frames) - 1; i >= 0; i-- {
		sites = append(sites, frames[i].site())
		if i > 0 {
			frames[i-1].journal.RejectNestedCallState(frames[i].journal)
		}
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return err
	}
	log.Debug("Public execution failed", "err", err, "depth", len(frames))
	return &ExecutionError{Err: err, CallStack: sites}
}
