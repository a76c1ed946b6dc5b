package vm

import "fmt"

// ---------------------------------------------------------------------------
// CompiledBlock: bytecode for a method or a block body
// ---------------------------------------------------------------------------

// CompiledBlock is the immutable unit of code produced by a front end. A
// top-level method has Home == nil; a block body points at the method it
// is lexically nested in, which is where a non-local return goes.
type CompiledBlock struct {
	// Identity
	Name          string // selector, or a generated block name like "main-block0"
	QualifiedName string // e.g. "MainClass>>main"

	// Signature
	NumArgs   int // number of arguments
	NumLocals int // temporaries beyond the arguments
	MaxStack  int // operand stack size; 0 selects the VM default

	// Code
	Bytecode []byte
	Literals []string         // selectors, global names, string constants, file names
	Blocks   []*CompiledBlock // nested block bodies referenced by OpBlock

	// Home is the enclosing method for block bodies.
	Home *CompiledBlock
}

// MethodName implements Method.
func (b *CompiledBlock) MethodName() string {
	if b.QualifiedName != "" {
		return b.QualifiedName
	}
	return b.Name
}

// IsBlock reports whether b is a block body rather than a method.
func (b *CompiledBlock) IsBlock() bool {
	return b.Home != nil
}

// NumSlots returns the size of the locals array (arguments + temporaries).
func (b *CompiledBlock) NumSlots() int {
	return b.NumArgs + b.NumLocals
}

// Literal returns the literal at index, or false if out of range.
func (b *CompiledBlock) Literal(index int) (string, bool) {
	if index < 0 || index >= len(b.Literals) {
		return "", false
	}
	return b.Literals[index], true
}

func (b *CompiledBlock) literalText(index int) string {
	if s, ok := b.Literal(index); ok {
		return s
	}
	return fmt.Sprintf("<bad literal %d>", index)
}

// Link sets Home on every nested block body, transitively, so that each
// one points at this method. Decoders call it after rebuilding a tree.
func (b *CompiledBlock) Link() {
	var walk func(blocks []*CompiledBlock)
	walk = func(blocks []*CompiledBlock) {
		for _, nested := range blocks {
			nested.Home = b
			walk(nested.Blocks)
		}
	}
	walk(b.Blocks)
}

// ---------------------------------------------------------------------------
// BlockBuilder: Helper for constructing compiled blocks
// ---------------------------------------------------------------------------

// BlockBuilder helps construct CompiledBlock instances. Literals are
// interned so the same string always gets the same index.
type BlockBuilder struct {
	block    *CompiledBlock
	bytecode *BytecodeBuilder
	literals map[string]int
}

// NewBlockBuilder creates a builder for a method or block taking nargs
// arguments.
func NewBlockBuilder(name string, nargs int) *BlockBuilder {
	return &BlockBuilder{
		block:    &CompiledBlock{Name: name, QualifiedName: name, NumArgs: nargs},
		bytecode: NewBytecodeBuilder(),
		literals: make(map[string]int),
	}
}

// SetQualifiedName sets the name used in traces.
func (b *BlockBuilder) SetQualifiedName(name string) *BlockBuilder {
	b.block.QualifiedName = name
	return b
}

// SetLocals sets the number of temporaries beyond the arguments.
func (b *BlockBuilder) SetLocals(n int) *BlockBuilder {
	b.block.NumLocals = n
	return b
}

// SetMaxStack sets the operand stack size.
func (b *BlockBuilder) SetMaxStack(n int) *BlockBuilder {
	b.block.MaxStack = n
	return b
}

// AddLiteral interns s and returns its index.
func (b *BlockBuilder) AddLiteral(s string) int {
	if idx, ok := b.literals[s]; ok {
		return idx
	}
	idx := len(b.block.Literals)
	b.block.Literals = append(b.block.Literals, s)
	b.literals[s] = idx
	return idx
}

// AddBlock adds a nested block body and returns its index.
func (b *BlockBuilder) AddBlock(nested *CompiledBlock) int {
	b.block.Blocks = append(b.block.Blocks, nested)
	return len(b.block.Blocks) - 1
}

// Bytecode returns the underlying bytecode builder.
func (b *BlockBuilder) Bytecode() *BytecodeBuilder {
	return b.bytecode
}

// PushLiteral emits PUSH_LITERAL for s.
func (b *BlockBuilder) PushLiteral(s string) *BlockBuilder {
	b.bytecode.EmitUint16(OpPushLiteral, uint16(b.AddLiteral(s)))
	return b
}

// PushGlobal emits PUSH_GLOBAL for name.
func (b *BlockBuilder) PushGlobal(name string) *BlockBuilder {
	b.bytecode.EmitUint16(OpPushGlobal, uint16(b.AddLiteral(name)))
	return b
}

// PushInt emits PUSH_INT.
func (b *BlockBuilder) PushInt(v int32) *BlockBuilder {
	b.bytecode.EmitInt32(OpPushInt, v)
	return b
}

// PushLocal emits PUSH_LOCAL.
func (b *BlockBuilder) PushLocal(delta, index int) *BlockBuilder {
	b.bytecode.EmitBytes(OpPushLocal, byte(delta), byte(index))
	return b
}

// StoreLocal emits STORE_LOCAL.
func (b *BlockBuilder) StoreLocal(delta, index int) *BlockBuilder {
	b.bytecode.EmitBytes(OpStoreLocal, byte(delta), byte(index))
	return b
}

// Send emits SEND for selector with argc arguments.
func (b *BlockBuilder) Send(selector string, argc int) *BlockBuilder {
	b.bytecode.EmitSend(OpSend, uint16(b.AddLiteral(selector)), uint8(argc))
	return b
}

// SendSuper emits SEND_SUPER for selector with argc arguments.
func (b *BlockBuilder) SendSuper(selector string, argc int) *BlockBuilder {
	b.bytecode.EmitSend(OpSendSuper, uint16(b.AddLiteral(selector)), uint8(argc))
	return b
}

// Block emits BLOCK for a nested body, adding it to the block table.
func (b *BlockBuilder) Block(nested *CompiledBlock) *BlockBuilder {
	b.bytecode.EmitUint16(OpBlock, uint16(b.AddBlock(nested)))
	return b
}

// Debug emits DBG for a source position.
func (b *BlockBuilder) Debug(file string, line, column int) *BlockBuilder {
	b.bytecode.EmitDebug(uint16(b.AddLiteral(file)), uint16(line), uint16(column))
	return b
}

// Emit emits an operand-less opcode.
func (b *BlockBuilder) Emit(op Opcode) *BlockBuilder {
	b.bytecode.Emit(op)
	return b
}

// Build returns the compiled block. Nested bodies are linked to it as
// their home, so Build must be called on the method last.
func (b *BlockBuilder) Build() *CompiledBlock {
	b.block.Bytecode = b.bytecode.Bytes()
	b.block.Link()
	return b.block
}
