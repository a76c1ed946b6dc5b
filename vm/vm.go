package vm

import (
	"io"
	"os"
)

// ---------------------------------------------------------------------------
// VM: one interpreter instance
// ---------------------------------------------------------------------------

// Defaults for Options fields left at zero.
const (
	DefaultMaxDepth  = 10000
	DefaultStackSize = 64
)

// Options configures a VM.
type Options struct {
	Trace     bool      // trace each instruction and the chain after it
	MaxDepth  int       // maximum context chain length
	StackSize int       // operand stack size for blocks without MaxStack
	Out       io.Writer // TranscriptStream output, stdout if nil
	TraceOut  io.Writer // trace output, stdout if nil
}

// VM owns a global namespace, a primitive table and the context chain.
// A VM is single-threaded: run separate programs on separate VMs.
type VM struct {
	Globals    *Globals
	Primitives *PrimitiveTable

	// Well-known classes
	ObjectClass           *Class
	ClassClass            *Class
	MetaclassClass        *Class
	UndefinedObjectClass  *Class
	BooleanClass          *Class
	IntegerClass          *Class
	FloatClass            *Class
	StringClass           *Class
	ArrayClass            *Class
	BlockClass            *Class
	TranscriptStreamClass *Class

	True  Value
	False Value

	entry EntryPoint

	identities map[Value]int64 // identity hashes handed out so far

	// Execution state
	ctx   *Context // active context, head of the chain
	depth int      // length of the chain

	trace     bool
	maxDepth  int
	stackSize int
	out       io.Writer
	traceOut  io.Writer
}

// New bootstraps a VM and loads the program's class declarations into its
// namespace. prog may be nil for a VM with only the builtin classes.
func New(prog *Program, opts Options) (*VM, error) {
	vm := &VM{
		Globals:    NewGlobals(),
		Primitives: NewPrimitiveTable(),
		identities: make(map[Value]int64),
		trace:      opts.Trace,
		maxDepth:   opts.MaxDepth,
		stackSize:  opts.StackSize,
		out:        opts.Out,
		traceOut:   opts.TraceOut,
	}
	if vm.maxDepth <= 0 {
		vm.maxDepth = DefaultMaxDepth
	}
	if vm.stackSize <= 0 {
		vm.stackSize = DefaultStackSize
	}
	if vm.out == nil {
		vm.out = os.Stdout
	}
	if vm.traceOut == nil {
		vm.traceOut = os.Stdout
	}

	vm.bootstrap()

	if prog != nil {
		if err := vm.load(prog); err != nil {
			return nil, err
		}
		vm.entry = prog.Entry
	}
	log.Infof("bootstrapped %d globals, %d primitives", vm.Globals.Len(), vm.Primitives.Len())
	return vm, nil
}

// SetTrace turns instruction tracing on or off. It may be called at any
// time, including from a primitive while a program runs.
func (vm *VM) SetTrace(on bool) {
	vm.trace = on
}

// Tracing reports whether instruction tracing is on.
func (vm *VM) Tracing() bool {
	return vm.trace
}

// Current returns the active context; after a failed Exec it is the
// context that raised the error.
func (vm *VM) Current() *Context {
	return vm.ctx
}

// Depth returns the length of the context chain.
func (vm *VM) Depth() int {
	return vm.depth
}

// ---------------------------------------------------------------------------
// Bootstrap: Create core classes
// ---------------------------------------------------------------------------

func (vm *VM) bootstrap() {
	// Object, Class and Metaclass refer to each other; patch the links
	// that could not exist yet.
	vm.ObjectClass = vm.createClass("Object", nil, nil)
	vm.ClassClass = vm.createClass("Class", vm.ObjectClass, nil)
	vm.MetaclassClass = vm.createClass("Metaclass", vm.ClassClass, nil)
	for _, c := range []*Class{vm.ObjectClass, vm.ClassClass, vm.MetaclassClass} {
		c.Meta.class = vm.MetaclassClass
	}
	vm.ObjectClass.Meta.Superclass = vm.ClassClass

	vm.UndefinedObjectClass = vm.createClass("UndefinedObject", vm.ObjectClass, nil)
	vm.BooleanClass = vm.createClass("Boolean", vm.ObjectClass, nil)
	vm.IntegerClass = vm.createClass("Integer", vm.ObjectClass, nil)
	vm.FloatClass = vm.createClass("Float", vm.ObjectClass, nil)
	vm.StringClass = vm.createClass("String", vm.ObjectClass, nil)
	vm.ArrayClass = vm.createClass("Array", vm.ObjectClass, nil)
	vm.BlockClass = vm.createClass("BlockDescriptor", vm.ObjectClass, nil)
	vm.TranscriptStreamClass = vm.createClass("TranscriptStream", vm.ObjectClass, nil)

	vm.True = &Boolean{class: vm.BooleanClass, V: true}
	vm.False = &Boolean{class: vm.BooleanClass, V: false}

	vm.registerObjectPrimitives()
	vm.registerClassPrimitives()
	vm.registerNumberPrimitives()
	vm.registerBooleanPrimitives()
	vm.registerStringPrimitives()
	vm.registerArrayPrimitives()
	vm.registerBlockPrimitives()
	vm.registerTranscriptPrimitives()

	vm.Globals.Define("Transcript", vm.NewObject(vm.TranscriptStreamClass))
}

// createClass creates a class and its metaclass and binds the class in
// the namespace.
func (vm *VM) createClass(name string, super *Class, ivars []string) *Class {
	c := newClass(name, super, ivars)
	meta := newClass(name+" class", nil, nil)
	meta.Base = c
	meta.class = vm.MetaclassClass
	c.Meta = meta
	vm.setSuperclass(c, super)
	vm.Globals.Define(name, c)
	return c
}

// setSuperclass links c under super and keeps the metaclass chain
// parallel. The root's metaclass inherits from Class.
func (vm *VM) setSuperclass(c, super *Class) {
	c.Superclass = super
	if super != nil {
		c.Meta.Superclass = super.Meta
	} else {
		c.Meta.Superclass = vm.ClassClass
	}
}
