package vm

import "unicode/utf8"

// ---------------------------------------------------------------------------
// String Primitives
// ---------------------------------------------------------------------------

// Strings are indexed by character, not byte.

func (vm *VM) registerStringPrimitives() {
	t, c := vm.Primitives, vm.StringClass

	t.Register(c, ",", "String_CONCAT", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, args, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		s, ok := args[0].(*String)
		if !ok {
			return nil, vm.typeError(p, recv, args[0])
		}
		return vm.NewString(recv.(*String).V + s.V), nil
	})

	t.Register(c, "size", "String_SIZE", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, _, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		return vm.NewInteger(int64(utf8.RuneCountInString(recv.(*String).V))), nil
	})

	t.Register(c, "at:", "String_AT", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, args, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		runes := []rune(recv.(*String).V)
		i, err := vm.index(p, recv, args[0], len(runes))
		if err != nil {
			return nil, err
		}
		return vm.NewString(string(runes[i])), nil
	})

	t.Register(c, "=", "String_EQ", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, args, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		return vm.NewBoolean(Equal(recv, args[0])), nil
	})

	t.Register(c, "asString", "String_ASSTRING", asStringPrimitive)
}
