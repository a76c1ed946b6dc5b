package vm

// ---------------------------------------------------------------------------
// Boolean Primitives
// ---------------------------------------------------------------------------

func (vm *VM) registerBooleanPrimitives() {
	t, c := vm.Primitives, vm.BooleanClass

	logical := func(op func(a, b bool) bool) PrimitiveFunc {
		return func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
			recv, args, err := vm.operands(ctx, n, p)
			if err != nil {
				return nil, err
			}
			b, ok := args[0].(*Boolean)
			if !ok {
				return nil, vm.typeError(p, recv, args[0])
			}
			return vm.NewBoolean(op(recv.(*Boolean).V, b.V)), nil
		}
	}
	t.Register(c, "&", "Boolean_AND", logical(func(a, b bool) bool { return a && b }))
	t.Register(c, "|", "Boolean_OR", logical(func(a, b bool) bool { return a || b }))

	t.Register(c, "not", "Boolean_NOT", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, _, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		return vm.NewBoolean(!recv.(*Boolean).V), nil
	})

	t.Register(c, "asString", "Boolean_ASSTRING", asStringPrimitive)
}
