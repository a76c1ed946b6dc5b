package vm

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction.
type Opcode byte

// Stack Operations
const (
	OpNop Opcode = 0x00 // no operation
	OpPop Opcode = 0x01 // discard top of stack
	OpDup Opcode = 0x02 // duplicate top of stack
)

// Push Constants
const (
	OpPushNil     Opcode = 0x10 // push nil
	OpPushTrue    Opcode = 0x11 // push true
	OpPushFalse   Opcode = 0x12 // push false
	OpPushSelf    Opcode = 0x13 // push receiver
	OpPushInt     Opcode = 0x14 // push 32-bit signed integer
	OpPushFloat   Opcode = 0x15 // push inline float64 (8 bytes)
	OpPushLiteral Opcode = 0x16 // push string literal (16-bit index)
)

// Variable Operations
const (
	OpPushLocal  Opcode = 0x20 // push local (8-bit lexical delta, 8-bit index)
	OpStoreLocal Opcode = 0x21 // store top into local (8-bit delta, 8-bit index)
	OpPushField  Opcode = 0x22 // push receiver field (8-bit index)
	OpStoreField Opcode = 0x23 // store top into receiver field (8-bit index)
	OpPushGlobal Opcode = 0x24 // push global named by literal (16-bit index)
	OpPushArray  Opcode = 0x25 // pop n values into a new Array (8-bit count)
)

// Message Sends
const (
	OpSend      Opcode = 0x30 // send message (16-bit selector literal, 8-bit argc)
	OpSendSuper Opcode = 0x31 // send to super (16-bit selector literal, 8-bit argc)
)

// Control Flow
const (
	OpJump      Opcode = 0x40 // unconditional jump (16-bit offset)
	OpJumpTrue  Opcode = 0x41 // pop, jump if true (16-bit offset)
	OpJumpFalse Opcode = 0x42 // pop, jump if false (16-bit offset)
)

// Blocks
const (
	OpBlock Opcode = 0x50 // push closure over nested block (16-bit block index)
)

// Returns
const (
	OpReturn      Opcode = 0x60 // return top; non-local when executed in a block
	OpBlockReturn Opcode = 0x61 // return top from block to its invoker
)

// Debugging
const (
	OpDebug Opcode = 0x70 // set source location (16-bit file literal, 16-bit line, 16-bit column)
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name         string // human-readable name
	OperandBytes int    // number of operand bytes
	StackEffect  int    // net effect on stack; see StackEffect for SEND and PUSH_ARRAY
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpNop: {"nop", 0, 0},
	OpPop: {"pop", 0, -1},
	OpDup: {"dup", 0, 1},

	OpPushNil:     {"nil", 0, 1},
	OpPushTrue:    {"true", 0, 1},
	OpPushFalse:   {"false", 0, 1},
	OpPushSelf:    {"self", 0, 1},
	OpPushInt:     {"push_int", 4, 1},
	OpPushFloat:   {"push_float", 8, 1},
	OpPushLiteral: {"push_literal", 2, 1},

	OpPushLocal:  {"push_local", 2, 1},
	OpStoreLocal: {"store_local", 2, 0},
	OpPushField:  {"push_field", 1, 1},
	OpStoreField: {"store_field", 1, 0},
	OpPushGlobal: {"push_global", 2, 1},
	OpPushArray:  {"push_array", 1, 1}, // pops n, pushes 1

	OpSend:      {"send", 3, 0}, // pops argc+1, pushes 1
	OpSendSuper: {"send_super", 3, 0},

	OpJump:      {"jump", 2, 0},
	OpJumpTrue:  {"jump_true", 2, -1},
	OpJumpFalse: {"jump_false", 2, -1},

	OpBlock: {"block", 2, 1},

	OpReturn:      {"return", 0, -1},
	OpBlockReturn: {"block_return", 0, -1},

	OpDebug: {"dbg", 6, 0},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// Valid reports whether op is a known opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeTable[op]
	return ok
}

// Name returns the mnemonic for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}

// OpcodeByName maps a mnemonic back to its opcode.
func OpcodeByName(name string) (Opcode, bool) {
	for op, info := range opcodeTable {
		if info.Name == name {
			return op, true
		}
	}
	return 0, false
}

// InstructionSize returns the size in bytes of the instruction at ip.
func InstructionSize(code []byte, ip int) int {
	return 1 + Opcode(code[ip]).Info().OperandBytes
}

// StackEffect returns the net operand-stack change of the instruction at
// ip, resolving operand-dependent effects.
func StackEffect(code []byte, ip int) int {
	op := Opcode(code[ip])
	switch op {
	case OpSend, OpSendSuper:
		return -int(code[ip+3])
	case OpPushArray:
		return 1 - int(code[ip+1])
	}
	return op.Info().StackEffect
}

// ---------------------------------------------------------------------------
// BytecodeBuilder: Helper for constructing bytecode
// ---------------------------------------------------------------------------

// BytecodeBuilder helps construct bytecode sequences.
type BytecodeBuilder struct {
	bytes []byte
}

// NewBytecodeBuilder creates a new bytecode builder.
func NewBytecodeBuilder() *BytecodeBuilder {
	return &BytecodeBuilder{
		bytes: make([]byte, 0, 64),
	}
}

// Bytes returns the constructed bytecode.
func (b *BytecodeBuilder) Bytes() []byte {
	return b.bytes
}

// Len returns the current length.
func (b *BytecodeBuilder) Len() int {
	return len(b.bytes)
}

// Emit appends an opcode with no operands.
func (b *BytecodeBuilder) Emit(op Opcode) {
	b.bytes = append(b.bytes, byte(op))
}

// EmitByte appends an opcode with a single byte operand.
func (b *BytecodeBuilder) EmitByte(op Opcode, operand byte) {
	b.bytes = append(b.bytes, byte(op), operand)
}

// EmitBytes appends an opcode with two byte operands.
func (b *BytecodeBuilder) EmitBytes(op Opcode, a, c byte) {
	b.bytes = append(b.bytes, byte(op), a, c)
}

// EmitUint16 appends an opcode with a 16-bit operand (little-endian).
func (b *BytecodeBuilder) EmitUint16(op Opcode, operand uint16) {
	b.bytes = append(b.bytes, byte(op), byte(operand), byte(operand>>8))
}

// EmitInt32 appends an opcode with a 32-bit operand (little-endian).
func (b *BytecodeBuilder) EmitInt32(op Opcode, operand int32) {
	b.bytes = append(b.bytes, byte(op))
	b.bytes = binary.LittleEndian.AppendUint32(b.bytes, uint32(operand))
}

// EmitFloat64 appends an opcode with a 64-bit float operand.
func (b *BytecodeBuilder) EmitFloat64(op Opcode, operand float64) {
	b.bytes = append(b.bytes, byte(op))
	b.bytes = binary.LittleEndian.AppendUint64(b.bytes, math.Float64bits(operand))
}

// EmitSend appends a SEND or SEND_SUPER instruction.
func (b *BytecodeBuilder) EmitSend(op Opcode, selector uint16, argc uint8) {
	b.bytes = append(b.bytes, byte(op), byte(selector), byte(selector>>8), argc)
}

// EmitDebug appends a DBG instruction.
func (b *BytecodeBuilder) EmitDebug(file, line, column uint16) {
	b.bytes = append(b.bytes, byte(OpDebug),
		byte(file), byte(file>>8),
		byte(line), byte(line>>8),
		byte(column), byte(column>>8))
}

// ---------------------------------------------------------------------------
// Label management for jumps
// ---------------------------------------------------------------------------

// Label represents a jump target, possibly not yet placed.
type Label struct {
	resolved bool
	position int   // target, once resolved
	refs     []int // operand positions waiting for the target
}

// NewLabel creates an unresolved label.
func (b *BytecodeBuilder) NewLabel() *Label {
	return &Label{refs: make([]int, 0, 2)}
}

// Mark resolves a label to the current position.
func (b *BytecodeBuilder) Mark(label *Label) {
	if label.resolved {
		panic("label already resolved")
	}
	label.resolved = true
	label.position = len(b.bytes)

	for _, ref := range label.refs {
		offset := label.position - (ref + 2) // relative to the end of the operand
		b.bytes[ref] = byte(offset)
		b.bytes[ref+1] = byte(offset >> 8)
	}
	label.refs = nil
}

// EmitJump emits a jump instruction with a label.
func (b *BytecodeBuilder) EmitJump(op Opcode, label *Label) {
	b.bytes = append(b.bytes, byte(op))
	if label.resolved {
		offset := label.position - (len(b.bytes) + 2)
		b.bytes = append(b.bytes, byte(offset), byte(offset>>8))
	} else {
		label.refs = append(label.refs, len(b.bytes))
		b.bytes = append(b.bytes, 0, 0)
	}
}

// Unresolved reports whether any label reference is still waiting.
func (l *Label) Unresolved() bool {
	return !l.resolved && len(l.refs) > 0
}

// ---------------------------------------------------------------------------
// Operand decoding
// ---------------------------------------------------------------------------

func readUint16(code []byte, pos int) int {
	return int(binary.LittleEndian.Uint16(code[pos:]))
}

func readInt16(code []byte, pos int) int {
	return int(int16(binary.LittleEndian.Uint16(code[pos:])))
}

func readInt32(code []byte, pos int) int64 {
	return int64(int32(binary.LittleEndian.Uint32(code[pos:])))
}

func readFloat64(code []byte, pos int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(code[pos:]))
}

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// DisassembleInstruction renders the instruction at ip, resolving literal
// operands against the block's literal pool.
func DisassembleInstruction(block *CompiledBlock, ip int) string {
	code := block.Bytecode
	if ip < 0 || ip >= len(code) {
		return fmt.Sprintf("%04d:  <end>", ip)
	}
	op := Opcode(code[ip])
	info := op.Info()
	if ip+1+info.OperandBytes > len(code) {
		return fmt.Sprintf("%04d:  %s <truncated>", ip, info.Name)
	}
	a := ip + 1

	switch op {
	case OpPushInt:
		return fmt.Sprintf("%04d:  %-12s %d", ip, info.Name, readInt32(code, a))

	case OpPushFloat:
		return fmt.Sprintf("%04d:  %-12s %g", ip, info.Name, readFloat64(code, a))

	case OpPushLiteral, OpPushGlobal:
		idx := readUint16(code, a)
		return fmt.Sprintf("%04d:  %-12s #%d:%s", ip, info.Name, idx, block.literalText(idx))

	case OpPushLocal, OpStoreLocal:
		return fmt.Sprintf("%04d:  %-12s %d, %d", ip, info.Name, code[a], code[a+1])

	case OpPushField, OpStoreField, OpPushArray:
		return fmt.Sprintf("%04d:  %-12s %d", ip, info.Name, code[a])

	case OpSend, OpSendSuper:
		idx := readUint16(code, a)
		return fmt.Sprintf("%04d:  %-12s %d, #%d:%s", ip, info.Name, code[a+2], idx, block.literalText(idx))

	case OpJump, OpJumpTrue, OpJumpFalse:
		offset := readInt16(code, a)
		return fmt.Sprintf("%04d:  %-12s %d (-> %04d)", ip, info.Name, offset, a+2+offset)

	case OpBlock:
		idx := readUint16(code, a)
		name := "?"
		if idx < len(block.Blocks) {
			name = block.Blocks[idx].Name
		}
		return fmt.Sprintf("%04d:  %-12s %d:%s", ip, info.Name, idx, name)

	case OpDebug:
		idx := readUint16(code, a)
		return fmt.Sprintf("%04d:  %-12s '%s', %d:%d", ip, info.Name,
			block.literalText(idx), readUint16(code, a+2), readUint16(code, a+4))
	}
	return fmt.Sprintf("%04d:  %s", ip, info.Name)
}

// Disassemble returns a full listing of a block's bytecode, one
// instruction per line.
func Disassemble(block *CompiledBlock) string {
	var sb strings.Builder
	for ip := 0; ip < len(block.Bytecode); ip += InstructionSize(block.Bytecode, ip) {
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(DisassembleInstruction(block, ip))
	}
	return sb.String()
}
