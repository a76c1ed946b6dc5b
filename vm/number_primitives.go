package vm

import "math"

// ---------------------------------------------------------------------------
// Integer and Float Primitives
// ---------------------------------------------------------------------------

// arithmetic is a binary operation on two numbers. ints is used when both
// operands are Integers, floats otherwise.
type arithmetic struct {
	ints   func(a, b int64) (Value, error)
	floats func(a, b float64) (Value, error)
}

// comparison is a numeric predicate.
type comparison func(a, b float64) bool

func (vm *VM) registerNumberPrimitives() {
	for _, c := range []*Class{vm.IntegerClass, vm.FloatClass} {
		prefix := c.Name + "_"
		vm.registerArithmetic(c, "+", prefix+"ADD", arithmetic{
			ints:   func(a, b int64) (Value, error) { return vm.NewInteger(a + b), nil },
			floats: func(a, b float64) (Value, error) { return vm.NewFloat(a + b), nil },
		})
		vm.registerArithmetic(c, "-", prefix+"SUB", arithmetic{
			ints:   func(a, b int64) (Value, error) { return vm.NewInteger(a - b), nil },
			floats: func(a, b float64) (Value, error) { return vm.NewFloat(a - b), nil },
		})
		vm.registerArithmetic(c, "*", prefix+"MULT", arithmetic{
			ints:   func(a, b int64) (Value, error) { return vm.NewInteger(a * b), nil },
			floats: func(a, b float64) (Value, error) { return vm.NewFloat(a * b), nil },
		})
		vm.registerArithmetic(c, "/", prefix+"DIV", arithmetic{
			ints: func(a, b int64) (Value, error) {
				if b == 0 {
					return nil, vm.error(VMException, "division by zero")
				}
				if a%b == 0 {
					return vm.NewInteger(a / b), nil
				}
				return vm.NewFloat(float64(a) / float64(b)), nil
			},
			floats: func(a, b float64) (Value, error) {
				if b == 0 {
					return nil, vm.error(VMException, "division by zero")
				}
				return vm.NewFloat(a / b), nil
			},
		})

		vm.registerComparison(c, "<", prefix+"LT", func(a, b float64) bool { return a < b })
		vm.registerComparison(c, ">", prefix+"GT", func(a, b float64) bool { return a > b })
		vm.registerComparison(c, "<=", prefix+"LE", func(a, b float64) bool { return a <= b })
		vm.registerComparison(c, ">=", prefix+"GE", func(a, b float64) bool { return a >= b })
		vm.registerEquality(c, "=", prefix+"EQ", true)
		vm.registerEquality(c, "~=", prefix+"NE", false)

		vm.Primitives.Register(c, "asString", prefix+"ASSTRING", asStringPrimitive)
	}

	// Integer only: floor division and modulo
	vm.registerArithmetic(vm.IntegerClass, "//", "Integer_INTDIV", arithmetic{
		ints: func(a, b int64) (Value, error) {
			if b == 0 {
				return nil, vm.error(VMException, "division by zero")
			}
			q := a / b
			if (a%b != 0) && ((a < 0) != (b < 0)) {
				q--
			}
			return vm.NewInteger(q), nil
		},
	})
	vm.registerArithmetic(vm.IntegerClass, "\\\\", "Integer_MOD", arithmetic{
		ints: func(a, b int64) (Value, error) {
			if b == 0 {
				return nil, vm.error(VMException, "division by zero")
			}
			m := a % b
			if m != 0 && ((m < 0) != (b < 0)) {
				m += b
			}
			return vm.NewInteger(m), nil
		},
	})

	vm.Primitives.Register(vm.IntegerClass, "negated", "Integer_NEGATED", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, _, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		return vm.NewInteger(-recv.(*Integer).V), nil
	})

	vm.Primitives.Register(vm.IntegerClass, "asFloat", "Integer_ASFLOAT", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, _, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		return vm.NewFloat(float64(recv.(*Integer).V)), nil
	})

	vm.Primitives.Register(vm.FloatClass, "negated", "Float_NEGATED", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, _, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		return vm.NewFloat(-recv.(*Float).V), nil
	})

	vm.Primitives.Register(vm.FloatClass, "asInteger", "Float_ASINTEGER", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, _, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		f := recv.(*Float).V
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, vm.error(VMException, "%s has no integer value", recv.AsString())
		}
		return vm.NewInteger(int64(math.Trunc(f))), nil
	})
}

// registerArithmetic installs a binary arithmetic primitive. Mixed
// Integer and Float operands are promoted to Float.
func (vm *VM) registerArithmetic(c *Class, selector, id string, op arithmetic) {
	vm.Primitives.Register(c, selector, id, func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, args, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		arg := args[0]
		if a, ok := recv.(*Integer); ok {
			if b, ok := arg.(*Integer); ok {
				return op.ints(a.V, b.V)
			}
		}
		a, okA := numberValue(recv)
		b, okB := numberValue(arg)
		if !okA || !okB || op.floats == nil {
			return nil, vm.typeError(p, recv, arg)
		}
		return op.floats(a, b)
	})
}

func (vm *VM) registerComparison(c *Class, selector, id string, cmp comparison) {
	vm.Primitives.Register(c, selector, id, func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, args, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		if a, ok := recv.(*Integer); ok {
			if b, ok := args[0].(*Integer); ok {
				return vm.NewBoolean(intCompare(selector, a.V, b.V)), nil
			}
		}
		a, okA := numberValue(recv)
		b, okB := numberValue(args[0])
		if !okA || !okB {
			return nil, vm.typeError(p, recv, args[0])
		}
		return vm.NewBoolean(cmp(a, b)), nil
	})
}

// intCompare redoes an integer comparison exactly, since large int64
// values lose precision as float64.
func intCompare(selector string, a, b int64) bool {
	switch selector {
	case "<":
		return a < b
	case ">":
		return a > b
	case "<=":
		return a <= b
	case ">=":
		return a >= b
	}
	return false
}

// registerEquality installs = (want true) or ~= (want false). Comparing a
// number with a non-number is never an error.
func (vm *VM) registerEquality(c *Class, selector, id string, want bool) {
	vm.Primitives.Register(c, selector, id, func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, args, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		if a, ok := recv.(*Integer); ok {
			if b, ok := args[0].(*Integer); ok {
				return vm.NewBoolean((a.V == b.V) == want), nil
			}
		}
		return vm.NewBoolean(Equal(recv, args[0]) == want), nil
	})
}
