package vm

// ---------------------------------------------------------------------------
// TranscriptStream Primitives
// ---------------------------------------------------------------------------

func (vm *VM) registerTranscriptPrimitives() {
	t, c := vm.Primitives, vm.TranscriptStreamClass

	t.Register(c, "show:", "TranscriptStream_SHOW", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, args, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		if err := vm.write(args[0].AsString() + "\n"); err != nil {
			return nil, err
		}
		return recv, nil
	})

	whitespace := func(s string) PrimitiveFunc {
		return func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
			recv, _, err := vm.operands(ctx, n, p)
			if err != nil {
				return nil, err
			}
			if err := vm.write(s); err != nil {
				return nil, err
			}
			return recv, nil
		}
	}
	t.Register(c, "cr", "TranscriptStream_CR", whitespace("\n"))
	t.Register(c, "tab", "TranscriptStream_TAB", whitespace("\t"))
	t.Register(c, "space", "TranscriptStream_SPACE", whitespace(" "))
}
