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
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnb-chain/avm/core/state"
	"github.com/bnb-chain/avm/core/types"
	"github.com/bnb-chain/avm/ethdb/memorydb"
	"github.com/bnb-chain/avm/params"
)

var (
	contractA = types.HexToAztecAddress("0xaa")
	contractB = types.HexToAztecAddress("0xbb")
	caller    = types.HexToAztecAddress("0xcc")
)

type testChain struct {
	tx        *state.TxStateDB
	contracts *state.ContractStore
	host      *state.HostStorage
}

func newTestChain(t *testing.T) *testChain {
	t.Helper()
	db := memorydb.New()
	world, err := state.NewWorldStateDB(db, 1<<20)
	require.NoError(t, err)
	tx, err := state.NewTxStateDB(world, world.Snapshot())
	require.NoError(t, err)
	contracts := state.NewContractStore(db, 16)
	return &testChain{
		tx:        tx,
		contracts: contracts,
		host:      state.NewHostStorage(tx, contracts, state.NewCommitmentStore(db)),
	}
}

func (c *testChain) deploy(t *testing.T, address types.AztecAddress, selector uint32, internal bool, program ...Instruction) {
	t.Helper()
	require.NoError(t, c.contracts.AddContract(&state.ContractArtifact{
		Address: address,
		Functions: []state.ContractFunctionArtifact{{
			Selector:   types.FunctionSelectorFromUint32(selector),
			IsInternal: internal,
			Bytecode:   EncodeProgram(program),
		}},
	}))
}

func (c *testChain) simulate(execution *PublicExecution) (*PublicExecutionResult, error) {
	return c.simulateWith(DefaultConfig, execution)
}

func (c *testChain) simulateWith(config Config, execution *PublicExecution, opts ...Option) (*PublicExecutionResult, error) {
	globals := types.GlobalVariables{BlockNumber: 7, Timestamp: 1700000000}
	return NewPublicExecutor(c.host, types.Header{}, config, opts...).Simulate(context.Background(), execution, globals)
}

func (c *testChain) storage(t *testing.T, contract types.AztecAddress, slot uint64) types.Fr {
	t.Helper()
	value, err := c.tx.StorageRead(context.Background(), contract, types.NewFr(slot))
	require.NoError(t, err)
	return value
}

func enqueued(address types.AztecAddress, selector uint32, args ...types.Fr) *PublicExecution {
	sel := types.FunctionSelectorFromUint32(selector)
	return &PublicExecution{PublicCallRequest: types.PublicCallRequest{
		ContractAddress: address,
		FunctionData:    types.FunctionData{Selector: sel},
		CallContext: types.CallContext{
			MsgSender:              caller,
			StorageContractAddress: address,
			FunctionSelector:       sel,
		},
		Args: args,
	}}
}

func set(tag TypeTag, value uint64, dst uint32) *Set {
	return &Set{InTag: tag, Value: *uint256.NewInt(value), DstOffset: dst}
}

func setAddress(address types.AztecAddress, dst uint32) *Set {
	return &Set{InTag: TagField, Value: *new(uint256.Int).SetBytes(address[:]), DstOffset: dst}
}

func ret(offset, size uint32) *Return {
	return &Return{HaltOperand{ReturnOffset: offset, RetSize: size}}
}

func frs(vs ...uint64) []types.Fr {
	out := make([]types.Fr, len(vs))
	for i, v := range vs {
		out[i] = types.NewFr(v)
	}
	return out
}

func TestSimulateArithmetic(t *testing.T) {
	c := newTestChain(t)
	c.deploy(t, contractA, 1, false,
		set(TagU32, 2, 0),
		set(TagU32, 3, 1),
		&Add{ThreeOperand{InTag: TagU32, AOffset: 0, BOffset: 1, DstOffset: 2}},
		&Mul{ThreeOperand{InTag: TagU32, AOffset: 2, BOffset: 2, DstOffset: 3}},
		ret(2, 2),
	)
	result, err := c.simulate(enqueued(contractA, 1))
	require.NoError(t, err)
	require.False(t, result.Reverted)
	require.Equal(t, frs(5, 25), result.ReturnValues)
}

func TestSimulateCalldata(t *testing.T) {
	c := newTestChain(t)
	c.deploy(t, contractA, 1, false,
		&CalldataCopy{CdOffset: 0, CopySize: 2, DstOffset: 0},
		&Add{ThreeOperand{InTag: TagField, AOffset: 0, BOffset: 1, DstOffset: 2}},
		ret(2, 1),
	)
	result, err := c.simulate(enqueued(contractA, 1, frs(40, 2)...))
	require.NoError(t, err)
	require.Equal(t, frs(42), result.ReturnValues)

	_, err = c.simulate(enqueued(contractA, 1, frs(40)...))
	require.ErrorIs(t, err, ErrCalldataOutOfRange)
}

func TestSimulateIndirectAddressing(t *testing.T) {
	c := newTestChain(t)
	c.deploy(t, contractA, 1, false,
		set(TagU32, 10, 0),
		set(TagField, 7, 10),
		&Mov{Indirect: 1, SrcOffset: 0, DstOffset: 1},
		ret(1, 1),
	)
	result, err := c.simulate(enqueued(contractA, 1))
	require.NoError(t, err)
	require.Equal(t, frs(7), result.ReturnValues)

	c.deploy(t, contractA, 2, false,
		set(TagField, 10, 0),
		&Mov{Indirect: 1, SrcOffset: 0, DstOffset: 1},
		ret(1, 1),
	)
	_, err = c.simulate(enqueued(contractA, 2))
	require.ErrorIs(t, err, ErrTagMismatch)

	var mismatch *TagMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, TagField, mismatch.Got)
	assert.Equal(t, TagU32, mismatch.Expected)
}

func TestSimulateStorage(t *testing.T) {
	c := newTestChain(t)
	c.deploy(t, contractA, 1, false,
		set(TagField, 5, 0),
		set(TagField, 7, 1),
		&SStore{SrcOffset: 1, Size: 1, SlotOffset: 0},
		&SLoad{SlotOffset: 0, Size: 1, DstOffset: 2},
		ret(2, 1),
	)
	result, err := c.simulate(enqueued(contractA, 1))
	require.NoError(t, err)
	require.Equal(t, frs(7), result.ReturnValues)

	require.Len(t, result.ContractStorageUpdateRequests, 1)
	assert.Equal(t, types.NewFr(5), result.ContractStorageUpdateRequests[0].StorageSlot)
	assert.Equal(t, uint32(0), result.ContractStorageUpdateRequests[0].SideEffectCounter)
	require.Len(t, result.ContractStorageReads, 1)
	assert.Equal(t, types.NewFr(7), result.ContractStorageReads[0].CurrentValue)
	assert.Equal(t, uint32(1), result.ContractStorageReads[0].SideEffectCounter)
	assert.Equal(t, uint32(2), result.EndSideEffectCounter)

	// Successful simulations are staged in the host state.
	require.Equal(t, types.NewFr(7), c.storage(t, contractA, 5))
}

func TestSimulateTopLevelRevert(t *testing.T) {
	c := newTestChain(t)
	c.deploy(t, contractA, 1, false,
		set(TagField, 5, 0),
		set(TagField, 7, 1),
		&SStore{SrcOffset: 1, Size: 1, SlotOffset: 0},
		&Revert{HaltOperand{ReturnOffset: 1, RetSize: 1}},
	)
	result, err := c.simulate(enqueued(contractA, 1))
	require.NoError(t, err)
	require.True(t, result.Reverted)
	require.Equal(t, frs(7), result.ReturnValues)
	require.True(t, c.storage(t, contractA, 5).IsZero())
}

func TestSimulateStaticCallViolation(t *testing.T) {
	tests := []struct {
		name string
		inst Instruction
	}{
		{"sstore", &SStore{SrcOffset: 0, Size: 1, SlotOffset: 0}},
		{"note hash", &EmitNoteHash{NoteHashOffset: 0}},
		{"nullifier", &EmitNullifier{NullifierOffset: 0}},
		{"log", &EmitUnencryptedLog{LogOffset: 0, LogSize: 1}},
		{"l2 to l1 message", &SendL2ToL1Message{RecipientOffset: 0, ContentOffset: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestChain(t)
			c.deploy(t, contractA, 1, false, set(TagField, 1, 0), tt.inst, ret(0, 0))

			execution := enqueued(contractA, 1)
			execution.CallContext.IsStaticCall = true
			_, err := c.simulate(execution)
			require.ErrorIs(t, err, ErrStaticCallViolation)

			// The same program is fine outside a static context.
			_, err = c.simulate(enqueued(contractA, 1))
			require.NoError(t, err)
		})
	}
}

func TestSimulateDuplicateNullifier(t *testing.T) {
	c := newTestChain(t)
	c.deploy(t, contractA, 1, false,
		set(TagField, 9, 0),
		&EmitNullifier{NullifierOffset: 0},
		&NullifierExists{NullifierOffset: 0, ExistsOffset: 1},
		&EmitNullifier{NullifierOffset: 0},
		ret(0, 0),
	)
	_, err := c.simulate(enqueued(contractA, 1))
	require.ErrorIs(t, err, state.ErrDuplicateNullifier)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	require.Len(t, execErr.CallStack, 1)
	assert.Equal(t, uint32(3), execErr.CallStack[0].PC)
}

// callProgram calls contract/selector with no arguments and returns the first
// return value followed by the success flag.
func callProgram(static bool, contract types.AztecAddress, selector uint64) []Instruction {
	ops := CallOperand{AddrOffset: 0, ArgsOffset: 2, ArgsSize: 0, RetOffset: 10, RetSize: 1, SuccessOffset: 11, FunctionSelectorOffset: 1}
	var call Instruction = &Call{ops}
	if static {
		call = &StaticCall{ops}
	}
	return []Instruction{
		setAddress(contract, 0),
		set(TagField, selector, 1),
		call,
		ret(10, 2),
	}
}

func storeProgram(slot, value uint64, halt Instruction) []Instruction {
	return []Instruction{
		set(TagField, slot, 0),
		set(TagField, value, 1),
		&SStore{SrcOffset: 1, Size: 1, SlotOffset: 0},
		halt,
	}
}

func TestSimulateNestedCall(t *testing.T) {
	c := newTestChain(t)
	c.deploy(t, contractB, 2, false, storeProgram(1, 99, ret(1, 1))...)
	c.deploy(t, contractA, 1, false, callProgram(false, contractB, 2)...)

	result, err := c.simulate(enqueued(contractA, 1))
	require.NoError(t, err)
	require.Equal(t, frs(99, 1), result.ReturnValues)

	require.Len(t, result.NestedExecutions, 1)
	nested := result.NestedExecutions[0]
	assert.Equal(t, contractB, nested.Execution.ContractAddress)
	assert.Equal(t, contractA, nested.Execution.CallContext.MsgSender)
	assert.Len(t, nested.ContractStorageUpdateRequests, 1)
	assert.Empty(t, result.ContractStorageUpdateRequests)

	require.Len(t, result.CallRequests(), 1)
	assert.Equal(t, nested.Execution.ToCallRequest(), result.CallRequests()[0])

	require.Equal(t, types.NewFr(99), c.storage(t, contractB, 1))
}

func TestSimulateNestedRevert(t *testing.T) {
	c := newTestChain(t)
	c.deploy(t, contractB, 3, false, storeProgram(1, 99, &Revert{HaltOperand{ReturnOffset: 1, RetSize: 1}})...)
	c.deploy(t, contractA, 1, false, callProgram(false, contractB, 3)...)

	result, err := c.simulate(enqueued(contractA, 1))
	require.NoError(t, err)
	require.False(t, result.Reverted)
	require.Equal(t, frs(99, 0), result.ReturnValues)

	nested := result.NestedExecutions[0]
	assert.True(t, nested.Reverted)
	assert.Empty(t, nested.ContractStorageUpdateRequests)

	require.True(t, c.storage(t, contractB, 1).IsZero())
}

func TestSimulateNestedStaticCall(t *testing.T) {
	c := newTestChain(t)
	c.deploy(t, contractB, 2, false, storeProgram(1, 99, ret(1, 1))...)
	c.deploy(t, contractA, 1, false, callProgram(true, contractB, 2)...)

	_, err := c.simulate(enqueued(contractA, 1))
	require.ErrorIs(t, err, ErrStaticCallViolation)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	require.Len(t, execErr.CallStack, 2)
	assert.Equal(t, contractB, execErr.CallStack[0].Address)
	assert.Equal(t, contractA, execErr.CallStack[1].Address)
	require.True(t, c.storage(t, contractB, 1).IsZero())
}

func TestSimulateBytecodeNotFound(t *testing.T) {
	c := newTestChain(t)
	_, err := c.simulate(enqueued(contractA, 1))
	require.ErrorIs(t, err, ErrBytecodeNotFound)

	c.deploy(t, contractA, 1, false, callProgram(false, contractB, 2)...)
	_, err = c.simulate(enqueued(contractA, 1))
	require.ErrorIs(t, err, ErrBytecodeNotFound)
}

func TestSimulateCallStackOverflow(t *testing.T) {
	c := newTestChain(t)
	c.deploy(t, contractA, 1, false, callProgram(false, contractA, 1)...)

	_, err := c.simulateWith(Config{MaxCallDepth: 4}, enqueued(contractA, 1))
	require.ErrorIs(t, err, ErrCallStackOverflow)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	require.Len(t, execErr.CallStack, 4)
}

func TestSimulateInternalFunction(t *testing.T) {
	c := newTestChain(t)
	c.deploy(t, contractA, 5, true, ret(0, 0))

	_, err := c.simulate(enqueued(contractA, 5))
	require.ErrorIs(t, err, ErrInternalFunctionCall)

	execution := enqueued(contractA, 5)
	execution.CallContext.MsgSender = contractA
	_, err = c.simulate(execution)
	require.NoError(t, err)
}

func TestSimulateControlFlow(t *testing.T) {
	c := newTestChain(t)
	c.deploy(t, contractA, 1, false,
		set(TagU32, 1, 0),
		&InternalCall{Loc: 5},
		&JumpI{Loc: 4, CondOffset: 0},
		&Revert{HaltOperand{ReturnOffset: 0, RetSize: 0}},
		ret(0, 1),
		&Add{ThreeOperand{InTag: TagU32, AOffset: 0, BOffset: 0, DstOffset: 0}},
		&InternalReturn{},
	)
	result, err := c.simulate(enqueued(contractA, 1))
	require.NoError(t, err)
	require.False(t, result.Reverted)
	require.Equal(t, frs(2), result.ReturnValues)

	c.deploy(t, contractA, 2, false, &InternalReturn{})
	_, err = c.simulate(enqueued(contractA, 2))
	require.ErrorIs(t, err, ErrInternalCallStackUnderflow)

	c.deploy(t, contractA, 3, false, &Jump{Loc: 9})
	_, err = c.simulate(enqueued(contractA, 3))
	require.ErrorIs(t, err, ErrInvalidJump)

	c.deploy(t, contractA, 4, false, set(TagU32, 1, 0))
	_, err = c.simulate(enqueued(contractA, 4))
	require.ErrorIs(t, err, ErrInvalidProgramCounter)
}

func TestSimulateInternalCallStackOverflow(t *testing.T) {
	c := newTestChain(t)
	c.deploy(t, contractA, 1, false, &InternalCall{Loc: 0})

	_, err := c.simulate(enqueued(contractA, 1))
	require.ErrorIs(t, err, ErrInternalCallStackOverflow)
}

func TestSimulateOversizedRanges(t *testing.T) {
	tests := []struct {
		name    string
		program []Instruction
	}{
		{"return", []Instruction{ret(0, 0xFFFFFFFF)}},
		{"revert", []Instruction{&Revert{HaltOperand{ReturnOffset: 0, RetSize: 0xFFFFFFFF}}}},
		{"return over the limit", []Instruction{ret(0, params.MaxReturnValuesLength+1)}},
		{"sload", []Instruction{set(TagField, 1, 0), &SLoad{SlotOffset: 0, Size: 0xFFFFFFFF, DstOffset: 1}, ret(0, 0)}},
		{"sstore", []Instruction{set(TagField, 1, 0), &SStore{SrcOffset: 1, Size: 0xFFFFFFFF, SlotOffset: 0}, ret(0, 0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestChain(t)
			c.deploy(t, contractA, 1, false, tt.program...)

			result, err := c.simulate(enqueued(contractA, 1))
			require.ErrorIs(t, err, ErrMemoryOutOfRange)
			require.Nil(t, result)
		})
	}

	// The largest return still fits.
	c := newTestChain(t)
	c.deploy(t, contractA, 1, false, ret(0, params.MaxReturnValuesLength))
	result, err := c.simulate(enqueued(contractA, 1))
	require.NoError(t, err)
	require.Len(t, result.ReturnValues, params.MaxReturnValuesLength)
}

func TestSimulateEnvironment(t *testing.T) {
	c := newTestChain(t)
	c.deploy(t, contractA, 1, false,
		&Address{GetterOperand{DstOffset: 0}},
		&Sender{GetterOperand{DstOffset: 1}},
		&BlockNumber{GetterOperand{DstOffset: 2}},
		&ContractCallDepth{GetterOperand{DstOffset: 3}},
		ret(0, 4),
	)
	result, err := c.simulate(enqueued(contractA, 1))
	require.NoError(t, err)
	require.Equal(t, []types.Fr{contractA.ToField(), caller.ToField(), types.NewFr(7), {}}, result.ReturnValues)
}

func TestSimulateKeccak(t *testing.T) {
	c := newTestChain(t)
	c.deploy(t, contractA, 1, false,
		set(TagU8, 'a', 0),
		set(TagU8, 'b', 1),
		set(TagU8, 'c', 2),
		&Keccak{DstOffset: 10, MessageOffset: 0, MessageSize: 3},
		ret(10, 32),
	)
	result, err := c.simulate(enqueued(contractA, 1))
	require.NoError(t, err)

	want := make([]types.Fr, 0, 32)
	for _, b := range crypto.Keccak256([]byte("abc")) {
		want = append(want, types.NewFr(uint64(b)))
	}
	require.Equal(t, want, result.ReturnValues)
}

type recordingSimulator struct {
	calls int
}

func (s *recordingSimulator) Simulate(ctx context.Context, execution *PublicExecution, globals types.GlobalVariables, header types.Header, journal *state.Journal) (*PublicExecutionResult, error) {
	s.calls++
	journal.WriteStorage(execution.ContractAddress, types.NewFr(1), types.NewFr(2))
	return &PublicExecutionResult{Execution: execution, ReturnValues: frs(3)}, nil
}

func TestSimulateLegacyStrategy(t *testing.T) {
	c := newTestChain(t)
	execution := enqueued(contractA, 1)
	execution.Strategy = StrategyLegacy

	_, err := c.simulate(execution)
	require.ErrorIs(t, err, ErrStrategyUnavailable)

	sim := new(recordingSimulator)
	result, err := c.simulateWith(DefaultConfig, execution, WithLegacySimulator(sim))
	require.NoError(t, err)
	require.Equal(t, 1, sim.calls)
	require.Equal(t, frs(3), result.ReturnValues)
	require.Equal(t, types.NewFr(2), c.storage(t, contractA, 1))
}

func TestNewExecutionStrategy(t *testing.T) {
	c := newTestChain(t)
	req := &enqueued(contractA, 1).PublicCallRequest

	exec := NewPublicExecutor(c.host, types.Header{}, Config{Strategy: StrategyLegacy}).NewExecution(req)
	require.Equal(t, StrategyLegacy, exec.Strategy)
	require.Equal(t, *req, exec.PublicCallRequest)

	// Invalid depths fall back to the default.
	e := NewPublicExecutor(c.host, types.Header{}, Config{MaxCallDepth: -1})
	require.Equal(t, DefaultConfig.MaxCallDepth, e.config.MaxCallDepth)
}

func TestStrategyText(t *testing.T) {
	for _, s := range []Strategy{StrategyAVM, StrategyLegacy} {
		text, err := s.MarshalText()
		require.NoError(t, err)

		var got Strategy
		require.NoError(t, got.UnmarshalText(text))
		require.Equal(t, s, got)
	}
	var s Strategy
	require.Error(t, s.UnmarshalText([]byte("evm")))
	_, err := Strategy(7).MarshalText()
	require.Error(t, err)
}
