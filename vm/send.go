package vm

// ---------------------------------------------------------------------------
// Message sends
// ---------------------------------------------------------------------------

// send dispatches selector to the receiver sitting argc slots below the
// top of ctx's stack. Lookup starts at the receiver's class, or at the
// superclass of the running method's class for super sends.
func (vm *VM) send(ctx *Context, selector string, argc int, super bool) error {
	if err := vm.need(ctx, argc+1, "send "+selector); err != nil {
		return err
	}
	recv := ctx.peek(argc)

	start := vm.ClassOf(recv)
	if super {
		if ctx.MethodClass == nil || ctx.MethodClass.Superclass == nil {
			return vm.notUnderstood(recv, selector)
		}
		start = ctx.MethodClass.Superclass
	}

	m, owner := start.Lookup(selector)
	switch m := m.(type) {
	case *Primitive:
		return vm.invokePrimitive(ctx, m, argc)
	case *CompiledBlock:
		return vm.invokeMethod(ctx, m, owner, argc)
	case nil:
		if blk, ok := recv.(*BlockDescriptor); ok && !super {
			if spread, ok := blockSelector(selector, argc); ok {
				return vm.invokeBlock(ctx, blk, argc, spread)
			}
		}
		return vm.notUnderstood(recv, selector)
	default:
		return vm.error(InternalVMException, "unexpected method %T for %s", m, selector)
	}
}

// blockSelector reports whether selector invokes a block with argc
// operands; spread is true for valueWithArguments:.
func blockSelector(selector string, argc int) (spread, ok bool) {
	switch selector {
	case "value", "value:", "value:value:", "value:value:value:", "value:value:value:value:":
		return false, SelectorArity(selector) == argc
	case "valueWithArguments:":
		return true, argc == 1
	}
	return false, false
}

// invokeMethod pops the receiver and arguments into a new context.
func (vm *VM) invokeMethod(ctx *Context, method *CompiledBlock, owner *Class, argc int) error {
	if method.NumArgs != argc {
		return vm.error(VMException, "%s expects %d arguments, got %d", method.MethodName(), method.NumArgs, argc)
	}
	operands := ctx.popN(argc + 1)
	callee := newContext(method, operands[0], operands[1:], vm.stackSizeFor(method))
	callee.MethodClass = owner
	return vm.pushContext(callee)
}

// invokeBlock runs a closure in a new block context whose receiver is the
// home method's receiver.
func (vm *VM) invokeBlock(ctx *Context, blk *BlockDescriptor, argc int, spread bool) error {
	var args []Value
	if spread {
		arr, ok := ctx.top().(*Object)
		if !ok || !arr.class.IsSubclassOf(vm.ArrayClass) {
			return vm.error(TypeError, "valueWithArguments: expects an Array, got %s", vm.ClassOf(ctx.top()).Name)
		}
		args = arr.Fields
	} else {
		args = ctx.Stack[ctx.SP-argc+1 : ctx.SP+1]
	}
	if len(args) != blk.NumArgs() {
		return vm.error(MismatchedBlockArg, "%s expects %d arguments, got %d", blk.Block.MethodName(), blk.NumArgs(), len(args))
	}
	args = append([]Value(nil), args...)
	ctx.popN(argc + 1)
	return vm.pushContext(newBlockContext(blk, args, vm.stackSizeFor(blk.Block)))
}

// invokePrimitive runs p on ctx's stack and pushes its result. A
// primitive must consume exactly its receiver and arguments.
func (vm *VM) invokePrimitive(ctx *Context, p *Primitive, argc int) error {
	before := ctx.SP
	log.Debugf("primitive %s", p.ID)
	result, err := p.Fn(vm, ctx, argc, p)
	if err != nil {
		return err
	}
	if popped := before - ctx.SP; popped != argc+1 {
		return vm.error(InternalVMException, "primitive %s popped %d operands, expected %d", p.ID, popped, argc+1)
	}
	if result == nil {
		result = Nil
	}
	return vm.push(ctx, result)
}

// notUnderstood reports a failed lookup. Instances sent a message only
// their class answers get the more specific ClassMessageSentToInstance.
func (vm *VM) notUnderstood(recv Value, selector string) error {
	cls := vm.ClassOf(recv)
	if _, isClass := recv.(*Class); !isClass && cls.Meta != nil && cls.Meta.Understands(selector) {
		return vm.error(ClassMessageSentToInstance, "%s is a class-side message; %s is an instance of %s",
			selector, RenderValue(recv), cls.Name)
	}
	return vm.error(MessageNotUnderstood, "%s does not understand %s", cls.Name, selector)
}
