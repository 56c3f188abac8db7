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
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
)

// Instruction is a decoded AVM instruction. The set of implementations is
// closed: every opcode has exactly one variant, its operand layout carries
// the wire codec, and the interpreter dispatches over the variants in a
// single switch.
type Instruction interface {
	Opcode() Opcode
	String() string

	encodeOperands(w *operandWriter)
	decodeOperands(r *operandReader)
}

// operandReader reads big-endian operands. The first short read is sticky
// and reported once decoding of the instruction finishes.
type operandReader struct {
	buf []byte
	pos int
	err error
}

func (r *operandReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf)-r.pos < n {
		r.err = fmt.Errorf("%w: need %d bytes at %d, have %d", ErrTruncatedInstruction, n, r.pos, len(r.buf)-r.pos)
		return nil
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *operandReader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *operandReader) tag() TypeTag { return TypeTag(r.u8()) }

func (r *operandReader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

func (r *operandReader) u128() uint256.Int {
	var v uint256.Int
	if b := r.take(16); b != nil {
		v.SetBytes(b)
	}
	return v
}

type operandWriter struct {
	buf []byte
}

func (w *operandWriter) u8(v uint8)    { w.buf = append(w.buf, v) }
func (w *operandWriter) tag(t TypeTag) { w.buf = append(w.buf, byte(t)) }
func (w *operandWriter) u32(v uint32)  { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }
func (w *operandWriter) u128(v *uint256.Int) {
	b := v.Bytes32()
	w.buf = append(w.buf, b[16:]...)
}

// Operand layouts. Each layout is embedded by every variant sharing it.

// ThreeOperand is the layout of binary arithmetic, comparison and bitwise
// instructions.
type ThreeOperand struct {
	Indirect  uint8
	InTag     TypeTag
	AOffset   uint32
	BOffset   uint32
	DstOffset uint32
}

func (o *ThreeOperand) encodeOperands(w *operandWriter) {
	w.u8(o.Indirect)
	w.tag(o.InTag)
	w.u32(o.AOffset)
	w.u32(o.BOffset)
	w.u32(o.DstOffset)
}

func (o *ThreeOperand) decodeOperands(r *operandReader) {
	o.Indirect, o.InTag = r.u8(), r.tag()
	o.AOffset, o.BOffset, o.DstOffset = r.u32(), r.u32(), r.u32()
}

func (o *ThreeOperand) String() string {
	return fmt.Sprintf("indirect=%d tag=%s a=%d b=%d dst=%d", o.Indirect, o.InTag, o.AOffset, o.BOffset, o.DstOffset)
}

// TwoOperand is the layout of unary instructions. For CAST the tag is the
// destination tag.
type TwoOperand struct {
	Indirect  uint8
	Tag       TypeTag
	AOffset   uint32
	DstOffset uint32
}

func (o *TwoOperand) encodeOperands(w *operandWriter) {
	w.u8(o.Indirect)
	w.tag(o.Tag)
	w.u32(o.AOffset)
	w.u32(o.DstOffset)
}

func (o *TwoOperand) decodeOperands(r *operandReader) {
	o.Indirect, o.Tag = r.u8(), r.tag()
	o.AOffset, o.DstOffset = r.u32(), r.u32()
}

func (o *TwoOperand) String() string {
	return fmt.Sprintf("indirect=%d tag=%s a=%d dst=%d", o.Indirect, o.Tag, o.AOffset, o.DstOffset)
}

// GetterOperand is the layout of the execution environment getters.
type GetterOperand struct {
	Indirect  uint8
	DstOffset uint32
}

func (o *GetterOperand) encodeOperands(w *operandWriter) {
	w.u8(o.Indirect)
	w.u32(o.DstOffset)
}

func (o *GetterOperand) decodeOperands(r *operandReader) {
	o.Indirect, o.DstOffset = r.u8(), r.u32()
}

func (o *GetterOperand) String() string {
	return fmt.Sprintf("indirect=%d dst=%d", o.Indirect, o.DstOffset)
}

// Arithmetic.

type Add struct{ ThreeOperand }
type Sub struct{ ThreeOperand }
type Mul struct{ ThreeOperand }
type Div struct{ ThreeOperand }

func (*Add) Opcode() Opcode { return ADD }
func (*Sub) Opcode() Opcode { return SUB }
func (*Mul) Opcode() Opcode { return MUL }
func (*Div) Opcode() Opcode { return DIV }

// Comparison.

type Eq struct{ ThreeOperand }
type Lt struct{ ThreeOperand }
type Lte struct{ ThreeOperand }

func (*Eq) Opcode() Opcode  { return EQ }
func (*Lt) Opcode() Opcode  { return LT }
func (*Lte) Opcode() Opcode { return LTE }

// Bitwise.

type And struct{ ThreeOperand }
type Or struct{ ThreeOperand }
type Xor struct{ ThreeOperand }
type Shl struct{ ThreeOperand }
type Shr struct{ ThreeOperand }
type Not struct{ TwoOperand }
type Cast struct{ TwoOperand }

func (*And) Opcode() Opcode  { return AND }
func (*Or) Opcode() Opcode   { return OR }
func (*Xor) Opcode() Opcode  { return XOR }
func (*Shl) Opcode() Opcode  { return SHL }
func (*Shr) Opcode() Opcode  { return SHR }
func (*Not) Opcode() Opcode  { return NOT }
func (*Cast) Opcode() Opcode { return CAST }

// Execution environment.

type Address struct{ GetterOperand }
type StorageAddress struct{ GetterOperand }
type Origin struct{ GetterOperand }
type Sender struct{ GetterOperand }
type Portal struct{ GetterOperand }
type ChainID struct{ GetterOperand }
type Version struct{ GetterOperand }
type BlockNumber struct{ GetterOperand }
type Timestamp struct{ GetterOperand }
type Coinbase struct{ GetterOperand }
type ContractCallDepth struct{ GetterOperand }

func (*Address) Opcode() Opcode           { return ADDRESS }
func (*StorageAddress) Opcode() Opcode    { return STORAGEADDRESS }
func (*Origin) Opcode() Opcode            { return ORIGIN }
func (*Sender) Opcode() Opcode            { return SENDER }
func (*Portal) Opcode() Opcode            { return PORTAL }
func (*ChainID) Opcode() Opcode           { return CHAINID }
func (*Version) Opcode() Opcode           { return VERSION }
func (*BlockNumber) Opcode() Opcode       { return BLOCKNUMBER }
func (*Timestamp) Opcode() Opcode         { return TIMESTAMP }
func (*Coinbase) Opcode() Opcode          { return COINBASE }
func (*ContractCallDepth) Opcode() Opcode { return CONTRACTCALLDEPTH }

// CalldataCopy copies CopySize calldata words starting at index CdOffset to
// memory. Bit 0 of Indirect applies to DstOffset.
type CalldataCopy struct {
	Indirect  uint8
	CdOffset  uint32
	CopySize  uint32
	DstOffset uint32
}

func (*CalldataCopy) Opcode() Opcode { return CALLDATACOPY }

func (i *CalldataCopy) encodeOperands(w *operandWriter) {
	w.u8(i.Indirect)
	w.u32(i.CdOffset)
	w.u32(i.CopySize)
	w.u32(i.DstOffset)
}

func (i *CalldataCopy) decodeOperands(r *operandReader) {
	i.Indirect = r.u8()
	i.CdOffset, i.CopySize, i.DstOffset = r.u32(), r.u32(), r.u32()
}

func (i *CalldataCopy) String() string {
	return fmt.Sprintf("indirect=%d cd=%d size=%d dst=%d", i.Indirect, i.CdOffset, i.CopySize, i.DstOffset)
}

// Control flow.

type Jump struct{ Loc uint32 }

func (*Jump) Opcode() Opcode                    { return JUMP }
func (i *Jump) encodeOperands(w *operandWriter) { w.u32(i.Loc) }
func (i *Jump) decodeOperands(r *operandReader) { i.Loc = r.u32() }
func (i *Jump) String() string                  { return fmt.Sprintf("loc=%d", i.Loc) }

type JumpI struct {
	Indirect   uint8
	Loc        uint32
	CondOffset uint32
}

func (*JumpI) Opcode() Opcode { return JUMPI }

func (i *JumpI) encodeOperands(w *operandWriter) {
	w.u8(i.Indirect)
	w.u32(i.Loc)
	w.u32(i.CondOffset)
}

func (i *JumpI) decodeOperands(r *operandReader) {
	i.Indirect = r.u8()
	i.Loc, i.CondOffset = r.u32(), r.u32()
}

func (i *JumpI) String() string {
	return fmt.Sprintf("indirect=%d loc=%d cond=%d", i.Indirect, i.Loc, i.CondOffset)
}

type InternalCall struct{ Loc uint32 }

func (*InternalCall) Opcode() Opcode                    { return INTERNALCALL }
func (i *InternalCall) encodeOperands(w *operandWriter) { w.u32(i.Loc) }
func (i *InternalCall) decodeOperands(r *operandReader) { i.Loc = r.u32() }
func (i *InternalCall) String() string                  { return fmt.Sprintf("loc=%d", i.Loc) }

type InternalReturn struct{}

func (*InternalReturn) Opcode() Opcode                  { return INTERNALRETURN }
func (*InternalReturn) encodeOperands(w *operandWriter) {}
func (*InternalReturn) decodeOperands(r *operandReader) {}
func (*InternalReturn) String() string                  { return "" }

// Memory.

// Set writes an immediate of up to 128 bits, encoded as 16 big-endian bytes.
type Set struct {
	Indirect  uint8
	InTag     TypeTag
	Value     uint256.Int
	DstOffset uint32
}

func (*Set) Opcode() Opcode { return SET }

func (i *Set) encodeOperands(w *operandWriter) {
	w.u8(i.Indirect)
	w.tag(i.InTag)
	w.u128(&i.Value)
	w.u32(i.DstOffset)
}

func (i *Set) decodeOperands(r *operandReader) {
	i.Indirect, i.InTag = r.u8(), r.tag()
	i.Value = r.u128()
	i.DstOffset = r.u32()
}

func (i *Set) String() string {
	return fmt.Sprintf("indirect=%d tag=%s value=%s dst=%d", i.Indirect, i.InTag, i.Value.Dec(), i.DstOffset)
}

type Mov struct {
	Indirect  uint8
	SrcOffset uint32
	DstOffset uint32
}

func (*Mov) Opcode() Opcode { return MOV }

func (i *Mov) encodeOperands(w *operandWriter) {
	w.u8(i.Indirect)
	w.u32(i.SrcOffset)
	w.u32(i.DstOffset)
}

func (i *Mov) decodeOperands(r *operandReader) {
	i.Indirect = r.u8()
	i.SrcOffset, i.DstOffset = r.u32(), r.u32()
}

func (i *Mov) String() string {
	return fmt.Sprintf("indirect=%d src=%d dst=%d", i.Indirect, i.SrcOffset, i.DstOffset)
}

type CMov struct {
	Indirect   uint8
	AOffset    uint32
	BOffset    uint32
	CondOffset uint32
	DstOffset  uint32
}

func (*CMov) Opcode() Opcode { return CMOV }

func (i *CMov) encodeOperands(w *operandWriter) {
	w.u8(i.Indirect)
	w.u32(i.AOffset)
	w.u32(i.BOffset)
	w.u32(i.CondOffset)
	w.u32(i.DstOffset)
}

func (i *CMov) decodeOperands(r *operandReader) {
	i.Indirect = r.u8()
	i.AOffset, i.BOffset, i.CondOffset, i.DstOffset = r.u32(), r.u32(), r.u32(), r.u32()
}

func (i *CMov) String() string {
	return fmt.Sprintf("indirect=%d a=%d b=%d cond=%d dst=%d", i.Indirect, i.AOffset, i.BOffset, i.CondOffset, i.DstOffset)
}

// World state.

type SLoad struct {
	Indirect   uint8
	SlotOffset uint32
	Size       uint32
	DstOffset  uint32
}

func (*SLoad) Opcode() Opcode { return SLOAD }

func (i *SLoad) encodeOperands(w *operandWriter) {
	w.u8(i.Indirect)
	w.u32(i.SlotOffset)
	w.u32(i.Size)
	w.u32(i.DstOffset)
}

func (i *SLoad) decodeOperands(r *operandReader) {
	i.Indirect = r.u8()
	i.SlotOffset, i.Size, i.DstOffset = r.u32(), r.u32(), r.u32()
}

func (i *SLoad) String() string {
	return fmt.Sprintf("indirect=%d slot=%d size=%d dst=%d", i.Indirect, i.SlotOffset, i.Size, i.DstOffset)
}

type SStore struct {
	Indirect   uint8
	SrcOffset  uint32
	Size       uint32
	SlotOffset uint32
}

func (*SStore) Opcode() Opcode { return SSTORE }

func (i *SStore) encodeOperands(w *operandWriter) {
	w.u8(i.Indirect)
	w.u32(i.SrcOffset)
	w.u32(i.Size)
	w.u32(i.SlotOffset)
}

func (i *SStore) decodeOperands(r *operandReader) {
	i.Indirect = r.u8()
	i.SrcOffset, i.Size, i.SlotOffset = r.u32(), r.u32(), r.u32()
}

func (i *SStore) String() string {
	return fmt.Sprintf("indirect=%d src=%d size=%d slot=%d", i.Indirect, i.SrcOffset, i.Size, i.SlotOffset)
}

// Accrued substate.

type NoteHashExists struct {
	Indirect        uint8
	NoteHashOffset  uint32
	LeafIndexOffset uint32
	ExistsOffset    uint32
}

func (*NoteHashExists) Opcode() Opcode { return NOTEHASHEXISTS }

func (i *NoteHashExists) encodeOperands(w *operandWriter) {
	w.u8(i.Indirect)
	w.u32(i.NoteHashOffset)
	w.u32(i.LeafIndexOffset)
	w.u32(i.ExistsOffset)
}

func (i *NoteHashExists) decodeOperands(r *operandReader) {
	i.Indirect = r.u8()
	i.NoteHashOffset, i.LeafIndexOffset, i.ExistsOffset = r.u32(), r.u32(), r.u32()
}

func (i *NoteHashExists) String() string {
	return fmt.Sprintf("indirect=%d noteHash=%d leafIndex=%d exists=%d", i.Indirect, i.NoteHashOffset, i.LeafIndexOffset, i.ExistsOffset)
}

type EmitNoteHash struct {
	Indirect       uint8
	NoteHashOffset uint32
}

func (*EmitNoteHash) Opcode() Opcode { return EMITNOTEHASH }

func (i *EmitNoteHash) encodeOperands(w *operandWriter) {
	w.u8(i.Indirect)
	w.u32(i.NoteHashOffset)
}

func (i *EmitNoteHash) decodeOperands(r *operandReader) {
	i.Indirect, i.NoteHashOffset = r.u8(), r.u32()
}

func (i *EmitNoteHash) String() string {
	return fmt.Sprintf("indirect=%d noteHash=%d", i.Indirect, i.NoteHashOffset)
}

type NullifierExists struct {
	Indirect        uint8
	NullifierOffset uint32
	ExistsOffset    uint32
}

func (*NullifierExists) Opcode() Opcode { return NULLIFIEREXISTS }

func (i *NullifierExists) encodeOperands(w *operandWriter) {
	w.u8(i.Indirect)
	w.u32(i.NullifierOffset)
	w.u32(i.ExistsOffset)
}

func (i *NullifierExists) decodeOperands(r *operandReader) {
	i.Indirect = r.u8()
	i.NullifierOffset, i.ExistsOffset = r.u32(), r.u32()
}

func (i *NullifierExists) String() string {
	return fmt.Sprintf("indirect=%d nullifier=%d exists=%d", i.Indirect, i.NullifierOffset, i.ExistsOffset)
}

type EmitNullifier struct {
	Indirect        uint8
	NullifierOffset uint32
}

func (*EmitNullifier) Opcode() Opcode { return EMITNULLIFIER }

func (i *EmitNullifier) encodeOperands(w *operandWriter) {
	w.u8(i.Indirect)
	w.u32(i.NullifierOffset)
}

func (i *EmitNullifier) decodeOperands(r *operandReader) {
	i.Indirect, i.NullifierOffset = r.u8(), r.u32()
}

func (i *EmitNullifier) String() string {
	return fmt.Sprintf("indirect=%d nullifier=%d", i.Indirect, i.NullifierOffset)
}

type L1ToL2MessageExists struct {
	Indirect           uint8
	MsgHashOffset      uint32
	MsgLeafIndexOffset uint32
	ExistsOffset       uint32
}

func (*L1ToL2MessageExists) Opcode() Opcode { return L1TOL2MSGEXISTS }

func (i *L1ToL2MessageExists) encodeOperands(w *operandWriter) {
	w.u8(i.Indirect)
	w.u32(i.MsgHashOffset)
	w.u32(i.MsgLeafIndexOffset)
	w.u32(i.ExistsOffset)
}

func (i *L1ToL2MessageExists) decodeOperands(r *operandReader) {
	i.Indirect = r.u8()
	i.MsgHashOffset, i.MsgLeafIndexOffset, i.ExistsOffset = r.u32(), r.u32(), r.u32()
}

func (i *L1ToL2MessageExists) String() string {
	return fmt.Sprintf("indirect=%d msgHash=%d leafIndex=%d exists=%d", i.Indirect, i.MsgHashOffset, i.MsgLeafIndexOffset, i.ExistsOffset)
}

type EmitUnencryptedLog struct {
	Indirect  uint8
	LogOffset uint32
	LogSize   uint32
}

func (*EmitUnencryptedLog) Opcode() Opcode { return EMITUNENCRYPTEDLOG }

func (i *EmitUnencryptedLog) encodeOperands(w *operandWriter) {
	w.u8(i.Indirect)
	w.u32(i.LogOffset)
	w.u32(i.LogSize)
}

func (i *EmitUnencryptedLog) decodeOperands(r *operandReader) {
	i.Indirect = r.u8()
	i.LogOffset, i.LogSize = r.u32(), r.u32()
}

func (i *EmitUnencryptedLog) String() string {
	return fmt.Sprintf("indirect=%d log=%d size=%d", i.Indirect, i.LogOffset, i.LogSize)
}

type SendL2ToL1Message struct {
	Indirect        uint8
	RecipientOffset uint32
	ContentOffset   uint32
}

func (*SendL2ToL1Message) Opcode() Opcode { return SENDL2TOL1MSG }

func (i *SendL2ToL1Message) encodeOperands(w *operandWriter) {
	w.u8(i.Indirect)
	w.u32(i.RecipientOffset)
	w.u32(i.ContentOffset)
}

func (i *SendL2ToL1Message) decodeOperands(r *operandReader) {
	i.Indirect = r.u8()
	i.RecipientOffset, i.ContentOffset = r.u32(), r.u32()
}

func (i *SendL2ToL1Message) String() string {
	return fmt.Sprintf("indirect=%d recipient=%d content=%d", i.Indirect, i.RecipientOffset, i.ContentOffset)
}

// Calls.

// CallOperand is the layout of CALL and STATICCALL. ArgsSize and RetSize are
// immediates, every other operand is a memory offset. Indirect bits apply,
// in order, to the gas, address, args, ret, success and selector offsets.
type CallOperand struct {
	Indirect               uint8
	GasOffset              uint32
	AddrOffset             uint32
	ArgsOffset             uint32
	ArgsSize               uint32
	RetOffset              uint32
	RetSize                uint32
	SuccessOffset          uint32
	FunctionSelectorOffset uint32
}

func (o *CallOperand) encodeOperands(w *operandWriter) {
	w.u8(o.Indirect)
	for _, v := range []uint32{o.GasOffset, o.AddrOffset, o.ArgsOffset, o.ArgsSize, o.RetOffset, o.RetSize, o.SuccessOffset, o.FunctionSelectorOffset} {
		w.u32(v)
	}
}

func (o *CallOperand) decodeOperands(r *operandReader) {
	o.Indirect = r.u8()
	o.GasOffset, o.AddrOffset, o.ArgsOffset, o.ArgsSize = r.u32(), r.u32(), r.u32(), r.u32()
	o.RetOffset, o.RetSize, o.SuccessOffset, o.FunctionSelectorOffset = r.u32(), r.u32(), r.u32(), r.u32()
}

func (o *CallOperand) String() string {
	return fmt.Sprintf("indirect=%d gas=%d addr=%d args=%d/%d ret=%d/%d success=%d selector=%d",
		o.Indirect, o.GasOffset, o.AddrOffset, o.ArgsOffset, o.ArgsSize, o.RetOffset, o.RetSize, o.SuccessOffset, o.FunctionSelectorOffset)
}

type Call struct{ CallOperand }
type StaticCall struct{ CallOperand }

func (*Call) Opcode() Opcode       { return CALL }
func (*StaticCall) Opcode() Opcode { return STATICCALL }

// Halting.

// HaltOperand is the layout of RETURN and REVERT.
type HaltOperand struct {
	Indirect     uint8
	ReturnOffset uint32
	RetSize      uint32
}

func (o *HaltOperand) encodeOperands(w *operandWriter) {
	w.u8(o.Indirect)
	w.u32(o.ReturnOffset)
	w.u32(o.RetSize)
}

func (o *HaltOperand) decodeOperands(r *operandReader) {
	o.Indirect = r.u8()
	o.ReturnOffset, o.RetSize = r.u32(), r.u32()
}

func (o *HaltOperand) String() string {
	return fmt.Sprintf("indirect=%d offset=%d size=%d", o.Indirect, o.ReturnOffset, o.RetSize)
}

type Return struct{ HaltOperand }
type Revert struct{ HaltOperand }

func (*Return) Opcode() Opcode { return RETURN }
func (*Revert) Opcode() Opcode { return REVERT }

// Gadgets.

// Keccak hashes MessageSize U8 words and writes the 32 byte digest as U8
// words at DstOffset.
type Keccak struct {
	Indirect      uint8
	DstOffset     uint32
	MessageOffset uint32
	MessageSize   uint32
}

func (*Keccak) Opcode() Opcode { return KECCAK }

func (i *Keccak) encodeOperands(w *operandWriter) {
	w.u8(i.Indirect)
	w.u32(i.DstOffset)
	w.u32(i.MessageOffset)
	w.u32(i.MessageSize)
}

func (i *Keccak) decodeOperands(r *operandReader) {
	i.Indirect = r.u8()
	i.DstOffset, i.MessageOffset, i.MessageSize = r.u32(), r.u32(), r.u32()
}

func (i *Keccak) String() string {
	return fmt.Sprintf("indirect=%d dst=%d msg=%d size=%d", i.Indirect, i.DstOffset, i.MessageOffset, i.MessageSize)
}

// instructionSet maps every opcode to a constructor of its variant.
var instructionSet = [opcodeCount]func() Instruction{
	ADD:  func() Instruction { return new(Add) },
	SUB:  func() Instruction { return new(Sub) },
	MUL:  func() Instruction { return new(Mul) },
	DIV:  func() Instruction { return new(Div) },
	EQ:   func() Instruction { return new(Eq) },
	LT:   func() Instruction { return new(Lt) },
	LTE:  func() Instruction { return new(Lte) },
	AND:  func() Instruction { return new(And) },
	OR:   func() Instruction { return new(Or) },
	XOR:  func() Instruction { return new(Xor) },
	NOT:  func() Instruction { return new(Not) },
	SHL:  func() Instruction { return new(Shl) },
	SHR:  func() Instruction { return new(Shr) },
	CAST: func() Instruction { return new(Cast) },

	ADDRESS:           func() Instruction { return new(Address) },
	STORAGEADDRESS:    func() Instruction { return new(StorageAddress) },
	ORIGIN:            func() Instruction { return new(Origin) },
	SENDER:            func() Instruction { return new(Sender) },
	PORTAL:            func() Instruction { return new(Portal) },
	CHAINID:           func() Instruction { return new(ChainID) },
	VERSION:           func() Instruction { return new(Version) },
	BLOCKNUMBER:       func() Instruction { return new(BlockNumber) },
	TIMESTAMP:         func() Instruction { return new(Timestamp) },
	COINBASE:          func() Instruction { return new(Coinbase) },
	CONTRACTCALLDEPTH: func() Instruction { return new(ContractCallDepth) },
	CALLDATACOPY:      func() Instruction { return new(CalldataCopy) },

	JUMP:           func() Instruction { return new(Jump) },
	JUMPI:          func() Instruction { return new(JumpI) },
	INTERNALCALL:   func() Instruction { return new(InternalCall) },
	INTERNALRETURN: func() Instruction { return new(InternalReturn) },
	SET:            func() Instruction { return new(Set) },
	MOV:            func() Instruction { return new(Mov) },
	CMOV:           func() Instruction { return new(CMov) },

	SLOAD:              func() Instruction { return new(SLoad) },
	SSTORE:             func() Instruction { return new(SStore) },
	NOTEHASHEXISTS:     func() Instruction { return new(NoteHashExists) },
	EMITNOTEHASH:       func() Instruction { return new(EmitNoteHash) },
	NULLIFIEREXISTS:    func() Instruction { return new(NullifierExists) },
	EMITNULLIFIER:      func() Instruction { return new(EmitNullifier) },
	L1TOL2MSGEXISTS:    func() Instruction { return new(L1ToL2MessageExists) },
	EMITUNENCRYPTEDLOG: func() Instruction { return new(EmitUnencryptedLog) },
	SENDL2TOL1MSG:      func() Instruction { return new(SendL2ToL1Message) },

	CALL:       func() Instruction { return new(Call) },
	STATICCALL: func() Instruction { return new(StaticCall) },
	RETURN:     func() Instruction { return new(Return) },
	REVERT:     func() Instruction { return new(Revert) },
	KECCAK:     func() Instruction { return new(Keccak) },
}

// NewInstruction returns a zero instruction for op.
func NewInstruction(op Opcode) (Instruction, error) {
	if op >= opcodeCount {
		return nil, fmt.Errorf("%w: %#x", ErrInvalidOpcode, byte(op))
	}
	return instructionSet[op](), nil
}

// DecodeInstruction decodes the instruction at the start of buf and returns
// it together with the number of bytes consumed.
func DecodeInstruction(buf []byte) (Instruction, int, error) {
	if len(buf) == 0 {
		return nil, 0, fmt.Errorf("%w: empty buffer", ErrTruncatedInstruction)
	}
	inst, err := NewInstruction(Opcode(buf[0]))
	if err != nil {
		return nil, 0, err
	}
	r := &operandReader{buf: buf, pos: 1}
	inst.decodeOperands(r)
	if r.err != nil {
		return nil, 0, fmt.Errorf("decoding %s: %w", inst.Opcode(), r.err)
	}
	return inst, r.pos, nil
}

// EncodeInstruction serializes an instruction: the opcode byte followed by
// its operands.
func EncodeInstruction(inst Instruction) []byte {
	w := &operandWriter{buf: []byte{byte(inst.Opcode())}}
	inst.encodeOperands(w)
	return w.buf
}

// DecodeProgram decodes a whole bytecode.
func DecodeProgram(code []byte) ([]Instruction, error) {
	var program []Instruction
	for pos := 0; pos < len(code); {
		inst, n, err := DecodeInstruction(code[pos:])
		if err != nil {
			return nil, fmt.Errorf("at byte %d: %w", pos, err)
		}
		program = append(program, inst)
		pos += n
	}
	return program, nil
}

// EncodeProgram serializes instructions back to bytecode.
func EncodeProgram(program []Instruction) []byte {
	var code []byte
	for _, inst := range program {
		code = append(code, EncodeInstruction(inst)...)
	}
	return code
}

// Disassemble returns a human readable form of the instruction.
func Disassemble(inst Instruction) string {
	if s := inst.String(); s != "" {
		return inst.Opcode().String() + " " + s
	}
	return inst.Opcode().String()
}
