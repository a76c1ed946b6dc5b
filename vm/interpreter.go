package vm

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Entry points
// ---------------------------------------------------------------------------

// ExecMain instantiates the program's entry class and sends it the entry
// selector.
func (vm *VM) ExecMain() (Value, error) {
	vm.ctx, vm.depth = nil, 0
	cls, err := vm.LookupClass(vm.entry.Class)
	if err != nil {
		return nil, err
	}
	m, _ := cls.Lookup(vm.entry.Selector)
	if m == nil {
		return nil, vm.error(MessageNotUnderstood, "%s does not understand %s", cls.Name, vm.entry.Selector)
	}
	method, ok := m.(*CompiledBlock)
	if !ok {
		return nil, vm.error(VMException, "entry method %s is a primitive", m.MethodName())
	}
	return vm.Exec(vm.NewObject(cls), method)
}

// Exec runs block with receiver as self until the context chain is
// empty. It returns the value left by the final return, which is the
// receiver if the operand stack was empty. Host-level panics are reported
// as InternalVMException.
func (vm *VM) Exec(receiver Value, block *CompiledBlock) (result Value, err error) {
	vm.ctx, vm.depth = nil, 0
	if block == nil {
		return nil, vm.error(InternalVMException, "no block to execute")
	}
	if receiver == nil {
		receiver = Nil
	}
	initial := newContext(block, receiver, nil, vm.stackSizeFor(block))
	initial.MethodClass = vm.ClassOf(receiver)

	defer func() {
		if r := recover(); r != nil {
			cause, ok := r.(error)
			if !ok {
				cause = fmt.Errorf("%v", r)
			}
			result = nil
			err = vm.wrapError(InternalVMException, cause, "host failure in %s", vm.currentName())
		}
	}()

	if err := vm.pushContext(initial); err != nil {
		return nil, err
	}
	return vm.run()
}

// run is the fetch-decode-execute loop.
func (vm *VM) run() (Value, error) {
	for {
		if vm.trace {
			vm.traceInstr()
		}
		result, done, err := vm.step()
		if err != nil {
			if vm.trace {
				fmt.Fprintln(vm.traceOut)
			}
			return nil, err
		}
		if vm.trace {
			vm.traceStack()
		}
		if done {
			return result, nil
		}
	}
}

// step executes one instruction of the active context. done is true when
// the chain has become empty, in which case result is the final value.
func (vm *VM) step() (result Value, done bool, err error) {
	ctx := vm.ctx
	code := ctx.Block.Bytecode
	ctx.PrevIP = ctx.IP

	// Running off the end is an implicit return.
	if ctx.IP >= len(code) {
		if ctx.IsBlockContext() {
			return vm.blockReturn(ctx)
		}
		return vm.unwind(ctx, vm.returnValue(ctx))
	}

	op := Opcode(code[ctx.IP])
	info, ok := opcodeTable[op]
	if !ok {
		return nil, false, vm.error(InternalVMException, "invalid opcode 0x%02X at %d in %s", byte(op), ctx.IP, ctx.Block.MethodName())
	}
	a := ctx.IP + 1
	if a+info.OperandBytes > len(code) {
		return nil, false, vm.error(InternalVMException, "truncated %s at %d in %s", info.Name, ctx.IP, ctx.Block.MethodName())
	}
	ctx.IP = a + info.OperandBytes

	switch op {
	// --- Stack operations ---
	case OpNop:

	case OpPop:
		if err := vm.need(ctx, 1, "pop"); err != nil {
			return nil, false, err
		}
		ctx.pop()

	case OpDup:
		if err := vm.need(ctx, 1, "dup"); err != nil {
			return nil, false, err
		}
		return nil, false, vm.push(ctx, ctx.top())

	// --- Push constants ---
	case OpPushNil:
		return nil, false, vm.push(ctx, Nil)

	case OpPushTrue:
		return nil, false, vm.push(ctx, vm.True)

	case OpPushFalse:
		return nil, false, vm.push(ctx, vm.False)

	case OpPushSelf:
		return nil, false, vm.push(ctx, ctx.Receiver)

	case OpPushInt:
		return nil, false, vm.push(ctx, vm.NewInteger(readInt32(code, a)))

	case OpPushFloat:
		return nil, false, vm.push(ctx, vm.NewFloat(readFloat64(code, a)))

	case OpPushLiteral:
		s, err := vm.literal(ctx, readUint16(code, a))
		if err != nil {
			return nil, false, err
		}
		return nil, false, vm.push(ctx, vm.NewString(s))

	// --- Variables ---
	case OpPushLocal:
		target, err := vm.localScope(ctx, int(code[a]), int(code[a+1]))
		if err != nil {
			return nil, false, err
		}
		return nil, false, vm.push(ctx, target.Locals[code[a+1]])

	case OpStoreLocal:
		if err := vm.need(ctx, 1, "store_local"); err != nil {
			return nil, false, err
		}
		target, err := vm.localScope(ctx, int(code[a]), int(code[a+1]))
		if err != nil {
			return nil, false, err
		}
		target.Locals[code[a+1]] = ctx.top()

	case OpPushField:
		obj, err := vm.field(ctx, int(code[a]))
		if err != nil {
			return nil, false, err
		}
		return nil, false, vm.push(ctx, obj.Fields[code[a]])

	case OpStoreField:
		if err := vm.need(ctx, 1, "store_field"); err != nil {
			return nil, false, err
		}
		obj, err := vm.field(ctx, int(code[a]))
		if err != nil {
			return nil, false, err
		}
		obj.Fields[code[a]] = ctx.top()

	case OpPushGlobal:
		name, err := vm.literal(ctx, readUint16(code, a))
		if err != nil {
			return nil, false, err
		}
		v, err := vm.LookupGlobal(name)
		if err != nil {
			return nil, false, err
		}
		return nil, false, vm.push(ctx, v)

	case OpPushArray:
		n := int(code[a])
		if err := vm.need(ctx, n, "push_array"); err != nil {
			return nil, false, err
		}
		return nil, false, vm.push(ctx, vm.NewArray(ctx.popN(n)))

	// --- Message sends ---
	case OpSend, OpSendSuper:
		selector, err := vm.literal(ctx, readUint16(code, a))
		if err != nil {
			return nil, false, err
		}
		return nil, false, vm.send(ctx, selector, int(code[a+2]), op == OpSendSuper)

	// --- Control flow ---
	case OpJump:
		return nil, false, vm.jump(ctx, readInt16(code, a))

	case OpJumpTrue, OpJumpFalse:
		if err := vm.need(ctx, 1, info.Name); err != nil {
			return nil, false, err
		}
		cond, ok := ctx.pop().(*Boolean)
		if !ok {
			return nil, false, vm.error(TypeError, "%s expects a Boolean condition", info.Name)
		}
		if cond.V == (op == OpJumpTrue) {
			return nil, false, vm.jump(ctx, readInt16(code, a))
		}

	// --- Blocks ---
	case OpBlock:
		idx := readUint16(code, a)
		if idx >= len(ctx.Block.Blocks) {
			return nil, false, vm.error(InternalVMException, "block index %d out of range in %s", idx, ctx.Block.MethodName())
		}
		return nil, false, vm.push(ctx, vm.newBlock(ctx.Block.Blocks[idx], ctx))

	// --- Returns ---
	case OpReturn:
		if ctx.IsBlockContext() {
			return vm.nonLocalReturn(ctx)
		}
		return vm.unwind(ctx, vm.returnValue(ctx))

	case OpBlockReturn:
		return vm.blockReturn(ctx)

	// --- Debugging ---
	case OpDebug:
		file, err := vm.literal(ctx, readUint16(code, a))
		if err != nil {
			return nil, false, err
		}
		ctx.File = file
		ctx.Line = readUint16(code, a+2)
		ctx.Column = readUint16(code, a+4)
	}
	return nil, false, nil
}

// ---------------------------------------------------------------------------
// Context chain
// ---------------------------------------------------------------------------

// pushContext makes ctx the active context.
func (vm *VM) pushContext(ctx *Context) error {
	if vm.depth >= vm.maxDepth {
		return vm.error(StackOverflow, "context chain exceeded %d activations calling %s", vm.maxDepth, ctx.Block.MethodName())
	}
	ctx.Invoker = vm.ctx
	vm.ctx = ctx
	vm.depth++
	log.Debugf("push %s (depth %d)", ctx.Block.MethodName(), vm.depth)
	return nil
}

// popContext restores the invoker of the active context.
func (vm *VM) popContext() {
	log.Debugf("pop %s (depth %d)", vm.ctx.Block.MethodName(), vm.depth)
	popped := vm.ctx
	vm.ctx = popped.Invoker
	popped.Invoker = nil
	vm.depth--
}

// returnValue pops the value a return delivers, defaulting to the
// receiver when the operand stack is empty.
func (vm *VM) returnValue(ctx *Context) Value {
	if ctx.Depth() == 0 {
		return ctx.Receiver
	}
	return ctx.pop()
}

// unwind pops contexts up to and including target and delivers value to
// target's invoker. When the chain empties, value is the final result.
func (vm *VM) unwind(target *Context, value Value) (Value, bool, error) {
	for vm.ctx != target {
		vm.popContext()
	}
	vm.popContext()
	if vm.ctx == nil {
		return value, true, nil
	}
	return nil, false, vm.push(vm.ctx, value)
}

// blockReturn returns from a block to whoever invoked it. An empty block
// answers nil.
func (vm *VM) blockReturn(ctx *Context) (Value, bool, error) {
	value := Nil
	if ctx.Depth() > 0 {
		value = ctx.pop()
	}
	return vm.unwind(ctx, value)
}

// nonLocalReturn returns from the block's home method. The home context
// must still be on the chain.
func (vm *VM) nonLocalReturn(ctx *Context) (Value, bool, error) {
	home := ctx.Home
	if home == nil {
		return nil, false, vm.error(BlockCannotReturn, "%s cannot return: it has no home context", ctx.Block.MethodName())
	}
	if !ctx.isLive(home) {
		return nil, false, vm.error(BlockCannotReturn, "%s cannot return: its home context %s has already returned",
			ctx.Block.MethodName(), home.Block.MethodName())
	}
	return vm.unwind(home, vm.returnValue(ctx))
}

// ---------------------------------------------------------------------------
// Operand helpers
// ---------------------------------------------------------------------------

func (vm *VM) stackSizeFor(block *CompiledBlock) int {
	if block.MaxStack > 0 {
		return block.MaxStack
	}
	return vm.stackSize
}

func (vm *VM) push(ctx *Context, v Value) error {
	if !ctx.push(v) {
		return vm.error(StackOverflow, "operand stack of %s exceeded %d slots", ctx.Block.MethodName(), len(ctx.Stack))
	}
	return nil
}

// need verifies that n operands are available.
func (vm *VM) need(ctx *Context, n int, what string) error {
	if ctx.Depth() < n {
		return vm.error(StackUnderflow, "%s needs %d operands, stack has %d", what, n, ctx.Depth())
	}
	return nil
}

func (vm *VM) literal(ctx *Context, idx int) (string, error) {
	s, ok := ctx.Block.Literal(idx)
	if !ok {
		return "", vm.error(InternalVMException, "literal index %d out of range in %s", idx, ctx.Block.MethodName())
	}
	return s, nil
}

// localScope returns the context holding local index, delta lexical
// levels out from ctx.
func (vm *VM) localScope(ctx *Context, delta, index int) (*Context, error) {
	target := ctx.outer(delta)
	if target == nil || index >= len(target.Locals) {
		return nil, vm.error(InternalVMException, "no local %d at lexical depth %d in %s", index, delta, ctx.Block.MethodName())
	}
	return target, nil
}

// field returns the receiver as an object with slot index.
func (vm *VM) field(ctx *Context, index int) (*Object, error) {
	obj, ok := ctx.Receiver.(*Object)
	if !ok || index >= len(obj.Fields) {
		return nil, vm.error(UnknownField, "%s has no field %d", vm.ClassOf(ctx.Receiver).Name, index)
	}
	return obj, nil
}

func (vm *VM) jump(ctx *Context, offset int) error {
	target := ctx.IP + offset
	if target < 0 || target > len(ctx.Block.Bytecode) {
		return vm.error(InternalVMException, "jump target %d out of range in %s", target, ctx.Block.MethodName())
	}
	ctx.IP = target
	return nil
}

func (vm *VM) currentName() string {
	if vm.ctx == nil {
		return "<no context>"
	}
	return vm.ctx.Block.MethodName()
}
