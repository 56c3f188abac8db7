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
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/bnb-chain/avm/core/state"
	"github.com/bnb-chain/avm/core/types"
	"github.com/bnb-chain/avm/internal/logutil"
	"github.com/bnb-chain/avm/params"
)

// frame is a public call being executed.
type frame struct {
	env     *ExecutionEnvironment
	program []Instruction
	state   *MachineState
	journal *state.Journal
	result  *PublicExecutionResult

	// pending is the call this frame is waiting on.
	pending *pendingCall
}

// pendingCall is a nested call requested by CALL or STATICCALL. The offsets
// are already resolved.
type pendingCall struct {
	request       *types.PublicCallRequest
	retOffset     uint32
	retSize       uint32
	successOffset uint32
}

func (f *frame) site() CallSite {
	return CallSite{Address: f.env.Address, Selector: f.env.Selector, PC: f.state.PC}
}

// instructionTraceFilter samples the per instruction trace logs.
var instructionTraceFilter = &logutil.EveryN{N: 64}

// resolve returns the offset an operand refers to. If bit i of the indirect
// mask is set the operand points at a U32 word holding the actual offset.
func resolve(mem *TaggedMemory, indirect uint8, i uint, offset uint32) (uint32, error) {
	if indirect&(1<<i) == 0 {
		return offset, nil
	}
	ptr, err := mem.GetAs(offset, TagU32)
	if err != nil {
		return 0, err
	}
	return ptr.Uint32(), nil
}

// resolveAll resolves the operands in order, operand i using indirect bit i.
func resolveAll(mem *TaggedMemory, indirect uint8, offsets ...uint32) ([]uint32, error) {
	out := make([]uint32, len(offsets))
	for i, off := range offsets {
		r, err := resolve(mem, indirect, uint(i), off)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func checkStatic(env *ExecutionEnvironment, op Opcode) error {
	if env.IsStaticCall {
		return fmt.Errorf("%w: %s", ErrStaticCallViolation, op)
	}
	return nil
}

func boolWord(b bool) MemoryValue {
	if b {
		return NewUint8(1)
	}
	return NewUint8(0)
}

func fieldWords(mem *TaggedMemory, offset, size uint32) ([]types.Fr, error) {
	words, err := mem.GetSliceAs(offset, size, TagField)
	if err != nil {
		return nil, err
	}
	out := make([]types.Fr, len(words))
	for i, w := range words {
		out[i] = w.ToFr()
	}
	return out, nil
}

// execute runs a single instruction of the frame. It either advances the PC,
// jumps, halts the frame or leaves a pending call for the executor.
func execute(ctx context.Context, f *frame, inst Instruction) error {
	var (
		env  = f.env
		ms   = f.state
		mem  = ms.Memory
		next = ms.PC + 1
	)
	logutil.TraceBy(instructionTraceFilter, "Executing instruction", "contract", env.Address, "pc", ms.PC, "op", inst.Opcode())

	switch inst := inst.(type) {
	// Arithmetic, comparison and bitwise instructions.
	case *Add, *Sub, *Mul, *Div, *Eq, *Lt, *Lte, *And, *Or, *Xor, *Shl, *Shr:
		ops := binaryOperands(inst)
		if err := binaryOp(mem, inst.Opcode(), ops); err != nil {
			return err
		}

	case *Not:
		offs, err := resolveAll(mem, inst.Indirect, inst.AOffset, inst.DstOffset)
		if err != nil {
			return err
		}
		if !inst.Tag.IsInteger() {
			return fmt.Errorf("%w: %s on %s", ErrInvalidTagForOperation, NOT, inst.Tag)
		}
		a, err := mem.GetAs(offs[0], inst.Tag)
		if err != nil {
			return err
		}
		mem.Set(offs[1], a.Not())

	case *Cast:
		offs, err := resolveAll(mem, inst.Indirect, inst.AOffset, inst.DstOffset)
		if err != nil {
			return err
		}
		a := mem.Get(offs[0])
		if !a.Tag().Valid() {
			return &TagMismatchError{Offset: offs[0], Got: a.Tag(), Expected: inst.Tag}
		}
		v, err := a.Cast(inst.Tag)
		if err != nil {
			return err
		}
		mem.Set(offs[1], v)

	// Execution environment.
	case *Address, *StorageAddress, *Origin, *Sender, *Portal, *ChainID, *Version, *BlockNumber, *Timestamp, *Coinbase, *ContractCallDepth:
		getter := getterOperand(inst)
		dst, err := resolve(mem, getter.Indirect, 0, getter.DstOffset)
		if err != nil {
			return err
		}
		mem.Set(dst, NewField(environmentValue(env, inst.Opcode())))

	case *CalldataCopy:
		dst, err := resolve(mem, inst.Indirect, 0, inst.DstOffset)
		if err != nil {
			return err
		}
		if uint64(inst.CdOffset)+uint64(inst.CopySize) > uint64(len(env.Calldata)) {
			return fmt.Errorf("%w: %d+%d of %d", ErrCalldataOutOfRange, inst.CdOffset, inst.CopySize, len(env.Calldata))
		}
		words := make([]MemoryValue, inst.CopySize)
		for i := range words {
			words[i] = NewField(env.Calldata[inst.CdOffset+uint32(i)])
		}
		if err := mem.SetSlice(dst, words); err != nil {
			return err
		}

	// Control flow.
	case *Jump:
		if int(inst.Loc) >= len(f.program) {
			return fmt.Errorf("%w: %d", ErrInvalidJump, inst.Loc)
		}
		next = inst.Loc

	case *JumpI:
		cond, err := resolve(mem, inst.Indirect, 0, inst.CondOffset)
		if err != nil {
			return err
		}
		if !mem.Get(cond).IsZero() {
			if int(inst.Loc) >= len(f.program) {
				return fmt.Errorf("%w: %d", ErrInvalidJump, inst.Loc)
			}
			next = inst.Loc
		}

	case *InternalCall:
		if int(inst.Loc) >= len(f.program) {
			return fmt.Errorf("%w: %d", ErrInvalidJump, inst.Loc)
		}
		if err := ms.pushReturn(next); err != nil {
			return err
		}
		next = inst.Loc

	case *InternalReturn:
		pc, err := ms.popReturn()
		if err != nil {
			return err
		}
		next = pc

	// Memory.
	case *Set:
		dst, err := resolve(mem, inst.Indirect, 0, inst.DstOffset)
		if err != nil {
			return err
		}
		v, err := NewValue(inst.InTag, &inst.Value)
		if err != nil {
			return err
		}
		mem.Set(dst, v)

	case *Mov:
		offs, err := resolveAll(mem, inst.Indirect, inst.SrcOffset, inst.DstOffset)
		if err != nil {
			return err
		}
		mem.Set(offs[1], mem.Get(offs[0]))

	case *CMov:
		offs, err := resolveAll(mem, inst.Indirect, inst.AOffset, inst.BOffset, inst.CondOffset, inst.DstOffset)
		if err != nil {
			return err
		}
		if !mem.Get(offs[2]).IsZero() {
			mem.Set(offs[3], mem.Get(offs[0]))
		} else {
			mem.Set(offs[3], mem.Get(offs[1]))
		}

	// World state.
	case *SLoad:
		offs, err := resolveAll(mem, inst.Indirect, inst.SlotOffset, inst.DstOffset)
		if err != nil {
			return err
		}
		slot, err := mem.GetAs(offs[0], TagField)
		if err != nil {
			return err
		}
		if inst.Size > params.MaxPublicDataReadsPerCall {
			return fmt.Errorf("%w: storage read of %d slots, max %d", ErrMemoryOutOfRange, inst.Size, params.MaxPublicDataReadsPerCall)
		}
		words := make([]MemoryValue, inst.Size)
		for i := range words {
			s := slot.Add(NewFieldUint64(uint64(i))).ToFr()
			counter := f.journal.Counter()
			value, err := f.journal.ReadStorage(ctx, env.StorageAddress, s)
			if err != nil {
				return err
			}
			f.result.ContractStorageReads = append(f.result.ContractStorageReads, types.ContractStorageRead{
				StorageSlot:       s,
				CurrentValue:      value,
				SideEffectCounter: counter,
			})
			words[i] = NewField(value)
		}
		if err := mem.SetSlice(offs[1], words); err != nil {
			return err
		}

	case *SStore:
		if err := checkStatic(env, SSTORE); err != nil {
			return err
		}
		offs, err := resolveAll(mem, inst.Indirect, inst.SrcOffset, inst.SlotOffset)
		if err != nil {
			return err
		}
		slot, err := mem.GetAs(offs[1], TagField)
		if err != nil {
			return err
		}
		if inst.Size > params.MaxPublicDataUpdateRequestsPerCall {
			return fmt.Errorf("%w: storage write of %d slots, max %d", ErrMemoryOutOfRange, inst.Size, params.MaxPublicDataUpdateRequestsPerCall)
		}
		values, err := fieldWords(mem, offs[0], inst.Size)
		if err != nil {
			return err
		}
		for i, value := range values {
			s := slot.Add(NewFieldUint64(uint64(i))).ToFr()
			counter := f.journal.Counter()
			f.journal.WriteStorage(env.StorageAddress, s, value)
			f.result.ContractStorageUpdateRequests = append(f.result.ContractStorageUpdateRequests, types.ContractStorageUpdateRequest{
				StorageSlot:       s,
				NewValue:          value,
				SideEffectCounter: counter,
			})
		}

	// Accrued substate.
	case *NoteHashExists:
		offs, err := resolveAll(mem, inst.Indirect, inst.NoteHashOffset, inst.LeafIndexOffset, inst.ExistsOffset)
		if err != nil {
			return err
		}
		if err := mem.CheckTag(TagField, offs[0], offs[1]); err != nil {
			return err
		}
		exists, err := f.journal.CheckNoteHashExists(ctx, env.StorageAddress, mem.Get(offs[0]).ToFr(), mem.Get(offs[1]).ToFr())
		if err != nil {
			return err
		}
		mem.Set(offs[2], boolWord(exists))

	case *EmitNoteHash:
		if err := checkStatic(env, EMITNOTEHASH); err != nil {
			return err
		}
		off, err := resolve(mem, inst.Indirect, 0, inst.NoteHashOffset)
		if err != nil {
			return err
		}
		noteHash, err := mem.GetAs(off, TagField)
		if err != nil {
			return err
		}
		counter := f.journal.Counter()
		f.journal.WriteNoteHash(env.StorageAddress, noteHash.ToFr())
		f.result.NewNoteHashes = append(f.result.NewNoteHashes, types.SideEffect{Value: noteHash.ToFr(), Counter: counter})

	case *NullifierExists:
		offs, err := resolveAll(mem, inst.Indirect, inst.NullifierOffset, inst.ExistsOffset)
		if err != nil {
			return err
		}
		nullifier, err := mem.GetAs(offs[0], TagField)
		if err != nil {
			return err
		}
		exists, err := f.journal.CheckNullifierExists(ctx, env.StorageAddress, nullifier.ToFr())
		if err != nil {
			return err
		}
		mem.Set(offs[1], boolWord(exists))

	case *EmitNullifier:
		if err := checkStatic(env, EMITNULLIFIER); err != nil {
			return err
		}
		off, err := resolve(mem, inst.Indirect, 0, inst.NullifierOffset)
		if err != nil {
			return err
		}
		nullifier, err := mem.GetAs(off, TagField)
		if err != nil {
			return err
		}
		counter := f.journal.Counter()
		if err := f.journal.WriteNullifier(ctx, env.StorageAddress, nullifier.ToFr()); err != nil {
			return err
		}
		f.result.NewNullifiers = append(f.result.NewNullifiers, types.SideEffectLinkedToNoteHash{Value: nullifier.ToFr(), Counter: counter})

	case *L1ToL2MessageExists:
		offs, err := resolveAll(mem, inst.Indirect, inst.MsgHashOffset, inst.MsgLeafIndexOffset, inst.ExistsOffset)
		if err != nil {
			return err
		}
		if err := mem.CheckTag(TagField, offs[0], offs[1]); err != nil {
			return err
		}
		exists, _, err := f.journal.ReadL1ToL2Message(ctx, mem.Get(offs[0]).ToFr(), mem.Get(offs[1]).ToFr())
		if err != nil {
			return err
		}
		mem.Set(offs[2], boolWord(exists))

	case *EmitUnencryptedLog:
		if err := checkStatic(env, EMITUNENCRYPTEDLOG); err != nil {
			return err
		}
		off, err := resolve(mem, inst.Indirect, 0, inst.LogOffset)
		if err != nil {
			return err
		}
		data, err := fieldWords(mem, off, inst.LogSize)
		if err != nil {
			return err
		}
		f.journal.WriteLog(env.Address, env.Selector, data)
		f.result.UnencryptedLogs.Logs = append(f.result.UnencryptedLogs.Logs, types.UnencryptedL2Log{
			ContractAddress: env.Address,
			Selector:        env.Selector,
			Data:            data,
		})

	case *SendL2ToL1Message:
		if err := checkStatic(env, SENDL2TOL1MSG); err != nil {
			return err
		}
		offs, err := resolveAll(mem, inst.Indirect, inst.RecipientOffset, inst.ContentOffset)
		if err != nil {
			return err
		}
		if err := mem.CheckTag(TagField, offs[0], offs[1]); err != nil {
			return err
		}
		recipient := types.FieldToEthAddress(mem.Get(offs[0]).ToFr())
		content := mem.Get(offs[1]).ToFr()
		f.journal.WriteL1Message(recipient, content)
		f.result.NewL2ToL1Messages = append(f.result.NewL2ToL1Messages, types.L2ToL1Message{Recipient: recipient, Content: content})

	// Calls.
	case *Call:
		call, err := prepareCall(f, &inst.CallOperand, false)
		if err != nil {
			return err
		}
		f.pending = call
		return nil

	case *StaticCall:
		call, err := prepareCall(f, &inst.CallOperand, true)
		if err != nil {
			return err
		}
		f.pending = call
		return nil

	// Halting.
	case *Return:
		output, err := haltOutput(mem, &inst.HaltOperand)
		if err != nil {
			return err
		}
		ms.halt(output, false)
		return nil

	case *Revert:
		output, err := haltOutput(mem, &inst.HaltOperand)
		if err != nil {
			return err
		}
		ms.halt(output, true)
		return nil

	// Gadgets.
	case *Keccak:
		offs, err := resolveAll(mem, inst.Indirect, inst.DstOffset, inst.MessageOffset)
		if err != nil {
			return err
		}
		words, err := mem.GetSliceAs(offs[1], inst.MessageSize, TagU8)
		if err != nil {
			return err
		}
		msg := make([]byte, len(words))
		for i, w := range words {
			msg[i] = byte(w.Uint64())
		}
		hasher := sha3.NewLegacyKeccak256()
		hasher.Write(msg)
		digest := hasher.Sum(nil)
		out := make([]MemoryValue, len(digest))
		for i, b := range digest {
			out[i] = NewUint8(b)
		}
		if err := mem.SetSlice(offs[0], out); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: %s", ErrInvalidOpcode, inst.Opcode())
	}
	ms.PC = next
	return nil
}

func binaryOperands(inst Instruction) *ThreeOperand {
	switch inst := inst.(type) {
	case *Add:
		return &inst.ThreeOperand
	case *Sub:
		return &inst.ThreeOperand
	case *Mul:
		return &inst.ThreeOperand
	case *Div:
		return &inst.ThreeOperand
	case *Eq:
		return &inst.ThreeOperand
	case *Lt:
		return &inst.ThreeOperand
	case *Lte:
		return &inst.ThreeOperand
	case *And:
		return &inst.ThreeOperand
	case *Or:
		return &inst.ThreeOperand
	case *Xor:
		return &inst.ThreeOperand
	case *Shl:
		return &inst.ThreeOperand
	case *Shr:
		return &inst.ThreeOperand
	}
	panic(fmt.Sprintf("not a binary instruction: %s", inst.Opcode()))
}

func binaryOp(mem *TaggedMemory, op Opcode, ops *ThreeOperand) error {
	offs, err := resolveAll(mem, ops.Indirect, ops.AOffset, ops.BOffset, ops.DstOffset)
	if err != nil {
		return err
	}
	if !ops.InTag.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidTag, ops.InTag)
	}
	switch op {
	case AND, OR, XOR, SHL, SHR:
		if !ops.InTag.IsInteger() {
			return fmt.Errorf("%w: %s on %s", ErrInvalidTagForOperation, op, ops.InTag)
		}
	}
	if err := mem.CheckTag(ops.InTag, offs[0], offs[1]); err != nil {
		return err
	}
	a, b := mem.Get(offs[0]), mem.Get(offs[1])

	var res MemoryValue
	switch op {
	case ADD:
		res = a.Add(b)
	case SUB:
		res = a.Sub(b)
	case MUL:
		res = a.Mul(b)
	case DIV:
		if res, err = a.Div(b); err != nil {
			return err
		}
	case EQ:
		res = boolWord(a.Equal(b))
	case LT:
		res = boolWord(a.Lt(b))
	case LTE:
		res = boolWord(a.Lt(b) || a.Equal(b))
	case AND:
		res = a.And(b)
	case OR:
		res = a.Or(b)
	case XOR:
		res = a.Xor(b)
	case SHL:
		res = a.Shl(b)
	case SHR:
		res = a.Shr(b)
	}
	mem.Set(offs[2], res)
	return nil
}

func getterOperand(inst Instruction) *GetterOperand {
	switch inst := inst.(type) {
	case *Address:
		return &inst.GetterOperand
	case *StorageAddress:
		return &inst.GetterOperand
	case *Origin:
		return &inst.GetterOperand
	case *Sender:
		return &inst.GetterOperand
	case *Portal:
		return &inst.GetterOperand
	case *ChainID:
		return &inst.GetterOperand
	case *Version:
		return &inst.GetterOperand
	case *BlockNumber:
		return &inst.GetterOperand
	case *Timestamp:
		return &inst.GetterOperand
	case *Coinbase:
		return &inst.GetterOperand
	case *ContractCallDepth:
		return &inst.GetterOperand
	}
	panic(fmt.Sprintf("not an environment getter: %s", inst.Opcode()))
}

func environmentValue(env *ExecutionEnvironment, op Opcode) types.Fr {
	switch op {
	case ADDRESS:
		return env.Address.ToField()
	case STORAGEADDRESS:
		return env.StorageAddress.ToField()
	case ORIGIN:
		return env.Origin.ToField()
	case SENDER:
		return env.Sender.ToField()
	case PORTAL:
		return types.EthAddressToField(env.Portal)
	case CHAINID:
		return env.Globals.ChainID
	case VERSION:
		return env.Globals.Version
	case BLOCKNUMBER:
		return types.NewFr(env.Globals.BlockNumber)
	case TIMESTAMP:
		return types.NewFr(env.Globals.Timestamp)
	case COINBASE:
		return types.EthAddressToField(env.Globals.Coinbase)
	case CONTRACTCALLDEPTH:
		return types.NewFr(uint64(env.Depth))
	}
	panic(fmt.Sprintf("not an environment getter: %s", op))
}

// prepareCall resolves the operands of a nested call and builds its request.
func prepareCall(f *frame, ops *CallOperand, static bool) (*pendingCall, error) {
	mem := f.state.Memory
	offs, err := resolveAll(mem, ops.Indirect,
		ops.GasOffset, ops.AddrOffset, ops.ArgsOffset, ops.RetOffset, ops.SuccessOffset, ops.FunctionSelectorOffset)
	if err != nil {
		return nil, err
	}
	if err := mem.CheckTag(TagField, offs[1], offs[5]); err != nil {
		return nil, err
	}
	args, err := fieldWords(mem, offs[2], ops.ArgsSize)
	if err != nil {
		return nil, err
	}
	var (
		address  = types.AztecAddress(mem.Get(offs[1]).ToFr())
		selector = types.FunctionSelectorFromField(mem.Get(offs[5]).ToFr())
	)
	req := &types.PublicCallRequest{
		ContractAddress: address,
		FunctionData:    types.FunctionData{Selector: selector},
		CallContext: types.CallContext{
			MsgSender:              f.env.Address,
			StorageContractAddress: address,
			FunctionSelector:       selector,
			IsStaticCall:           static || f.env.IsStaticCall,
			StartSideEffectCounter: f.journal.Counter(),
		},
		Args: args,
	}
	return &pendingCall{
		request:       req,
		retOffset:     offs[3],
		retSize:       ops.RetSize,
		successOffset: offs[4],
	}, nil
}

func haltOutput(mem *TaggedMemory, ops *HaltOperand) ([]types.Fr, error) {
	if ops.RetSize > params.MaxReturnValuesLength {
		return nil, fmt.Errorf("%w: return data of %d words, max %d", ErrMemoryOutOfRange, ops.RetSize, params.MaxReturnValuesLength)
	}
	off, err := resolve(mem, ops.Indirect, 0, ops.ReturnOffset)
	if err != nil {
		return nil, err
	}
	words, err := mem.GetSlice(off, ops.RetSize)
	if err != nil {
		return nil, err
	}
	out := make([]types.Fr, len(words))
	for i, w := range words {
		out[i] = w.ToFr()
	}
	return out, nil
}
