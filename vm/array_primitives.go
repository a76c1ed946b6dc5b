package vm

// ---------------------------------------------------------------------------
// Array Primitives
// ---------------------------------------------------------------------------

func (vm *VM) registerArrayPrimitives() {
	t, c := vm.Primitives, vm.ArrayClass

	t.Register(c, "size", "Array_SIZE", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, _, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		return vm.NewInteger(int64(len(recv.(*Object).Fields))), nil
	})

	t.Register(c, "at:", "Array_AT", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, args, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		elems := recv.(*Object).Fields
		i, err := vm.index(p, recv, args[0], len(elems))
		if err != nil {
			return nil, err
		}
		return elems[i], nil
	})

	t.Register(c, "at:put:", "Array_ATPUT", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, args, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		elems := recv.(*Object).Fields
		i, err := vm.index(p, recv, args[0], len(elems))
		if err != nil {
			return nil, err
		}
		elems[i] = args[1]
		return args[1], nil
	})

	t.Register(c.Meta, "new:", "Array_class_NEW", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, args, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		size, ok := args[0].(*Integer)
		if !ok {
			return nil, vm.typeError(p, recv, args[0])
		}
		if size.V < 0 {
			return nil, vm.error(IndexOutOfRange, "cannot create an Array of size %d", size.V)
		}
		elems := make([]Value, size.V)
		for i := range elems {
			elems[i] = Nil
		}
		return &Object{class: recv.(*Class), Fields: elems}, nil
	})
}
