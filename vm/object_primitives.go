package vm

import (
	"hash/fnv"
	"math"
)

// ---------------------------------------------------------------------------
// Object Primitives
// ---------------------------------------------------------------------------

func (vm *VM) registerObjectPrimitives() {
	t, c := vm.Primitives, vm.ObjectClass

	t.Register(c, "==", "Object_IDENTICAL", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, args, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		return vm.NewBoolean(Identical(recv, args[0])), nil
	})

	t.Register(c, "~~", "Object_NOTIDENTICAL", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, args, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		return vm.NewBoolean(!Identical(recv, args[0])), nil
	})

	t.Register(c, "=", "Object_EQ", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, args, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		return vm.NewBoolean(Equal(recv, args[0])), nil
	})

	t.Register(c, "~=", "Object_NE", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, args, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		return vm.NewBoolean(!Equal(recv, args[0])), nil
	})

	t.Register(c, "class", "Object_CLASS", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, _, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		return vm.ClassOf(recv), nil
	})

	t.Register(c, "asString", "Object_ASSTRING", asStringPrimitive)

	t.Register(c, "printString", "Object_PRINTSTRING", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, _, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		return vm.NewString(RenderValue(recv)), nil
	})

	t.Register(c, "isNil", "Object_ISNIL", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, _, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		return vm.NewBoolean(IsNil(recv)), nil
	})

	t.Register(c, "notNil", "Object_NOTNIL", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, _, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		return vm.NewBoolean(!IsNil(recv)), nil
	})

	t.Register(c, "error:", "Object_ERROR", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, args, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		return nil, vm.error(VMException, "%s: %s", RenderValue(recv), args[0].AsString())
	})

	t.Register(c, "hash", "Object_HASH", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, _, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		return vm.NewInteger(vm.hash(recv)), nil
	})
}

// asStringPrimitive answers the receiver's AsString. Strings answer
// themselves.
func asStringPrimitive(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
	recv, _, err := vm.operands(ctx, n, p)
	if err != nil {
		return nil, err
	}
	if s, ok := recv.(*String); ok {
		return s, nil
	}
	return vm.NewString(recv.AsString()), nil
}

// hash is consistent with Equal: numbers hash by value (integral floats
// like the matching integer), strings by content, the rest by identity.
func (vm *VM) hash(v Value) int64 {
	switch x := v.(type) {
	case *Integer:
		return x.V
	case *Float:
		if i, ok := floatAsInt(x.V); ok {
			return i
		}
		return int64(math.Float64bits(x.V))
	case *String:
		h := fnv.New64a()
		h.Write([]byte(x.V))
		return int64(h.Sum64() >> 1)
	case *Boolean:
		if x.V {
			return 1
		}
		return 0
	}
	if id, ok := vm.identities[v]; ok {
		return id
	}
	id := int64(len(vm.identities) + 1)
	vm.identities[v] = id
	return id
}

// ---------------------------------------------------------------------------
// Class-side Primitives
// ---------------------------------------------------------------------------

func (vm *VM) registerClassPrimitives() {
	t, c := vm.Primitives, vm.ClassClass

	t.Register(c, "new", "Object_class_NEW", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, _, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		return vm.instantiate(recv.(*Class))
	})

	t.Register(c, "name", "Object_class_NAME", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, _, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		return vm.NewString(recv.(*Class).Name), nil
	})

	t.Register(c, "superclass", "Object_class_SUPERCLASS", func(vm *VM, ctx *Context, n int, p *Primitive) (Value, error) {
		recv, _, err := vm.operands(ctx, n, p)
		if err != nil {
			return nil, err
		}
		if super := recv.(*Class).Superclass; super != nil {
			return super, nil
		}
		return Nil, nil
	})
}

// instantiate creates an instance of c. Immediate classes, blocks and
// metaclasses cannot be instantiated with new.
func (vm *VM) instantiate(c *Class) (Value, error) {
	switch {
	case c.IsMeta():
		return nil, vm.error(TypeError, "%s cannot be instantiated", c.Name)
	case c.IsSubclassOf(vm.IntegerClass), c.IsSubclassOf(vm.FloatClass),
		c.IsSubclassOf(vm.BooleanClass), c.IsSubclassOf(vm.UndefinedObjectClass),
		c.IsSubclassOf(vm.BlockClass):
		return nil, vm.error(TypeError, "%s cannot be instantiated with new", c.Name)
	case c.IsSubclassOf(vm.StringClass):
		return &String{class: c}, nil
	case c.IsSubclassOf(vm.ArrayClass):
		return &Object{class: c, Fields: []Value{}}, nil
	}
	return vm.NewObject(c), nil
}
