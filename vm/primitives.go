package vm

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Primitive table
// ---------------------------------------------------------------------------

// PrimitiveFunc implements a primitive. It runs on the sender's context:
// the receiver and nArgs arguments are the top nArgs+1 stack entries, and
// it must pop exactly those before returning its result.
type PrimitiveFunc func(vm *VM, ctx *Context, nArgs int, p *Primitive) (Value, error)

// Primitive is a native method identified by class and selector.
type Primitive struct {
	ID       string // stable id, e.g. "TranscriptStream_SHOW"
	Class    *Class
	Selector string
	Arity    int
	Fn       PrimitiveFunc
}

// MethodName returns "Class>>selector".
func (p *Primitive) MethodName() string {
	return p.Class.Name + ">>" + p.Selector
}

// classSide reports whether the primitive expects a class as receiver.
func (p *Primitive) classSide(vm *VM) bool {
	return p.Class.IsMeta() || p.Class == vm.ClassClass
}

// PrimitiveTable indexes primitives by id.
type PrimitiveTable struct {
	byID map[string]*Primitive
}

// NewPrimitiveTable returns an empty table.
func NewPrimitiveTable() *PrimitiveTable {
	return &PrimitiveTable{byID: make(map[string]*Primitive)}
}

// Register records a primitive and installs it in class's method
// dictionary under selector.
func (t *PrimitiveTable) Register(class *Class, selector, id string, fn PrimitiveFunc) *Primitive {
	p := &Primitive{
		ID:       id,
		Class:    class,
		Selector: selector,
		Arity:    SelectorArity(selector),
		Fn:       fn,
	}
	t.byID[id] = p
	class.Define(selector, p)
	return p
}

// ByID returns the primitive with the given id.
func (t *PrimitiveTable) ByID(id string) (*Primitive, bool) {
	p, ok := t.byID[id]
	return p, ok
}

// IDs returns all registered ids in sorted order.
func (t *PrimitiveTable) IDs() []string {
	ids := make([]string, 0, len(t.byID))
	for id := range t.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered primitives.
func (t *PrimitiveTable) Len() int {
	return len(t.byID)
}

// ---------------------------------------------------------------------------
// Operand helpers
// ---------------------------------------------------------------------------

// operands checks the primitive's operand contract and pops the receiver
// and arguments off ctx's stack.
func (vm *VM) operands(ctx *Context, nArgs int, p *Primitive) (Value, []Value, error) {
	if nArgs != p.Arity {
		return nil, nil, vm.error(VMException, "%s expects %d arguments, got %d", p.MethodName(), p.Arity, nArgs)
	}
	if ctx.Depth() < nArgs+1 {
		return nil, nil, vm.error(StackUnderflow, "%s needs %d operands, stack has %d", p.MethodName(), nArgs+1, ctx.Depth())
	}
	if err := vm.checkReceiver(ctx.peek(nArgs), p); err != nil {
		return nil, nil, err
	}
	popped := ctx.popN(nArgs + 1)
	return popped[0], popped[1:], nil
}

// checkReceiver verifies that recv may run p.
func (vm *VM) checkReceiver(recv Value, p *Primitive) error {
	if p.classSide(vm) {
		if _, ok := recv.(*Class); !ok {
			return vm.error(ClassMessageSentToInstance, "%s is a class-side message; %s is an instance of %s",
				p.Selector, RenderValue(recv), vm.ClassOf(recv).Name)
		}
	}
	if !vm.ClassOf(recv).IsSubclassOf(p.Class) {
		return vm.error(TypeError, "%s cannot run on %s", p.MethodName(), vm.ClassOf(recv).Name)
	}
	return nil
}

// typeError reports an argument of the wrong class, naming both operands.
func (vm *VM) typeError(p *Primitive, recv, arg Value) error {
	return vm.error(TypeError, "%s>>%s: %s is not a valid argument for %s",
		vm.ClassOf(recv).Name, p.Selector, vm.ClassOf(arg).Name, RenderValue(recv))
}

// index converts a 1-based Smalltalk index into a slice index.
func (vm *VM) index(p *Primitive, recv, arg Value, size int) (int, error) {
	i, ok := arg.(*Integer)
	if !ok {
		return 0, vm.typeError(p, recv, arg)
	}
	if i.V < 1 || i.V > int64(size) {
		return 0, vm.error(IndexOutOfRange, "index %d out of range 1..%d for %s", i.V, size, vm.ClassOf(recv).Name)
	}
	return int(i.V - 1), nil
}

// write sends TranscriptStream output to the VM's writer.
func (vm *VM) write(s string) error {
	if _, err := fmt.Fprint(vm.out, s); err != nil {
		return vm.wrapError(VMException, err, "transcript write failed")
	}
	return nil
}
