package vm

// ---------------------------------------------------------------------------
// BlockDescriptor Primitives
// ---------------------------------------------------------------------------

// Invocation (value, value:, ... valueWithArguments:) is not a primitive:
// it needs a new context, so send handles it directly.

func (vm *VM) registerBlockPrimitives() {
	vm.Primitives.Register(vm.BlockClass, "numArgs", "BlockDescriptor_NUMARGS", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, _, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		return vm.NewInteger(int64(recv.(*BlockDescriptor).NumArgs())), nil
	})
}
